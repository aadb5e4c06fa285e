package spectral

import (
	"context"
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-stage/logging"
)

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft     *FFT
	workers int
	logger  logging.Logger
}

// STFTResult holds the magnitude spectrogram of a signal
type STFTResult struct {
	Magnitude      [][]float64 `json:"magnitude"`       // Time x Frequency magnitude matrix
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int         `json:"sample_rate"`     // Sample rate
	WindowSize     int         `json:"window_size"`     // FFT window size
	HopSize        int         `json:"hop_size"`        // Hop size between frames
	FreqResolution float64     `json:"freq_resolution"` // Hz per bin
	TimeResolution float64     `json:"time_resolution"` // Seconds per frame
}

// BinFrequency returns the centre frequency of bin k
func (r *STFTResult) BinFrequency(k int) float64 {
	return float64(k) * r.FreqResolution
}

// Window is applied to each frame before the FFT
type Window interface {
	ApplyInPlace(signal []float64) error
}

// NewSTFT creates a new STFT calculator. workers <= 0 sizes the pool from
// the workload and CPU count.
func NewSTFT(workers int) *STFT {
	return &STFT{
		fft:     NewFFT(),
		workers: workers,
		logger: logging.WithFields(logging.Fields{
			"component": "stft",
		}),
	}
}

// ComputeWithWindow computes the STFT frames in parallel. It stops early
// and returns ctx.Err() when ctx is cancelled.
func (s *STFT) ComputeWithWindow(ctx context.Context, signal []float64, windowSize, hopSize, sampleRate int, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}
	if len(signal) < windowSize {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	numFrames := (len(signal)-windowSize)/hopSize + 1
	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)
	for i := range numFrames {
		magnitude[i] = make([]float64, freqBins)
	}

	numWorkers := s.workers
	if numWorkers <= 0 {
		numWorkers = optimalWorkerCount(numFrames)
	}

	jobs := make(chan int, numFrames)
	errs := make(chan error, numWorkers)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// reused across this worker's frames
			frame := make([]float64, windowSize)

			for frameIdx := range jobs {
				if ctx.Err() != nil {
					continue
				}
				start := frameIdx * hopSize
				copy(frame, signal[start:start+windowSize])

				if window != nil {
					if err := window.ApplyInPlace(frame); err != nil {
						select {
						case errs <- err:
						default:
						}
						continue
					}
				}

				spectrum := s.fft.Compute(frame)
				row := magnitude[frameIdx]
				for k := range freqBins {
					row[k] = cmplx.Abs(spectrum[k])
				}
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case err := <-errs:
		s.logger.Error(err, "window application failed", logging.Fields{
			"window_size": windowSize,
		})
		return nil, fmt.Errorf("failed to window frame: %w", err)
	default:
	}

	return &STFTResult{
		Magnitude:      magnitude,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// optimalWorkerCount sizes the pool so small inputs are not over-parallelized
func optimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}
	if numFrames < 1000 {
		return min(numCPU, 8)
	}
	return numCPU
}
