package playback

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"sync"

	"github.com/RyanBlaney/sonido-stage/logging"
)

// Sink receives rendered mono samples
type Sink interface {
	Write(samples []float64) error
	Close() error
}

// SinkFactory opens a sink for audio at sampleRate
type SinkFactory func(sampleRate int) (Sink, error)

// NullSink discards audio and counts it
type NullSink struct {
	mu      sync.Mutex
	written int
	peak    float64
	closed  bool
}

func (s *NullSink) Write(samples []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	s.written += len(samples)
	for _, v := range samples {
		s.peak = math.Max(s.peak, math.Abs(v))
	}
	return nil
}

func (s *NullSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Written returns the number of samples received
func (s *NullSink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Peak returns the largest absolute sample received
func (s *NullSink) Peak() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

// Closed reports whether Close was called
func (s *NullSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// FFplaySink pipes raw f64le PCM into an ffplay process
type FFplaySink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	cancel context.CancelFunc
	buf    []byte
	logger logging.Logger
}

// NewFFplaySink starts ffplay reading mono PCM at sampleRate from stdin
func NewFFplaySink(path string, sampleRate int) (*FFplaySink, error) {
	if path == "" {
		path = "ffplay"
	}
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, path,
		"-f", "f64le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-nodisp",
		"-autoexit",
		"-loglevel", "quiet",
		"-i", "pipe:0",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffplay stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffplay: %w", err)
	}

	return &FFplaySink{
		cmd:    cmd,
		stdin:  stdin,
		cancel: cancel,
		logger: logging.WithFields(logging.Fields{
			"component": "ffplay_sink",
			"pid":       cmd.Process.Pid,
		}),
	}, nil
}

// FFplaySinkFactory opens FFplaySinks using the ffplay binary at path
func FFplaySinkFactory(path string) SinkFactory {
	return func(sampleRate int) (Sink, error) {
		return NewFFplaySink(path, sampleRate)
	}
}

// Write blocks while ffplay's input pipe is full
func (s *FFplaySink) Write(samples []float64) error {
	if cap(s.buf) < len(samples)*8 {
		s.buf = make([]byte, len(samples)*8)
	}
	buf := s.buf[:len(samples)*8]
	for i, v := range samples {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	if _, err := s.stdin.Write(buf); err != nil {
		return fmt.Errorf("write to ffplay: %w", err)
	}
	return nil
}

func (s *FFplaySink) Close() error {
	_ = s.stdin.Close()
	s.cancel()
	if err := s.cmd.Wait(); err != nil {
		s.logger.Debug("ffplay exited", logging.Fields{"error": err.Error()})
	}
	return nil
}
