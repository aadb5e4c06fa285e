package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-stage/logging"
)

var (
	// ErrUnsupportedFormat is returned when the input holds no decodable audio stream
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrDecoderUnavailable is returned when compressed input needs ffmpeg
	// and the binary cannot be run
	ErrDecoderUnavailable = errors.New("audio decoder unavailable")
)

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float64       `json:"-"` // interleaved when Channels > 1
	SampleRate int             `json:"sample_rate"`
	Channels   int             `json:"channels"`
	Duration   time.Duration   `json:"duration"`
	Timestamp  time.Time       `json:"timestamp"`
	Metadata   *StreamMetadata `json:"metadata,omitempty"`
}

// DownmixMono returns the channel average of the samples. Mono data is
// returned as is.
func (a *AudioData) DownmixMono() []float64 {
	if a.Channels <= 1 {
		return a.PCM
	}
	frames := len(a.PCM) / a.Channels
	out := make([]float64, frames)
	for i := range out {
		sum := 0.0
		for ch := 0; ch < a.Channels; ch++ {
			sum += a.PCM[i*a.Channels+ch]
		}
		out[i] = sum / float64(a.Channels)
	}
	return out
}

// Seconds is the decoded length in seconds
func (a *AudioData) Seconds() float64 {
	if a.SampleRate <= 0 || a.Channels <= 0 {
		return 0
	}
	return float64(len(a.PCM)/a.Channels) / float64(a.SampleRate)
}

// StreamMetadata describes where decoded audio came from
type StreamMetadata struct {
	URL         string            `json:"url,omitempty"`
	Type        string            `json:"type"`
	Format      string            `json:"format"`
	Bitrate     int               `json:"bitrate,omitempty"`
	SampleRate  int               `json:"sample_rate,omitempty"`
	Channels    int               `json:"channels,omitempty"`
	Codec       string            `json:"codec,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	TargetChannels   int           `json:"target_channels"`
	MaxDuration      time.Duration `json:"max_duration"`
	ResampleQuality  string        `json:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout"`
	// NativeWAV decodes RIFF/WAVE input in process at its own sample rate
	NativeWAV bool `json:"native_wav"`
	// Normalization options
	EnableNormalization bool    `json:"enable_normalization"`
	NormalizationMethod string  `json:"normalization_method"` // "loudnorm", "dynaudnorm"
	TargetLUFS          float64 `json:"target_lufs"`
	TargetPeak          float64 `json:"target_peak"`
	LoudnessRange       float64 `json:"loudness_range"`
}

// DefaultDecoderConfig returns default decoder configuration. Backing
// tracks are decoded to mono without loudness normalization; the playback
// graph applies its own dynamics.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate:    44100,
		TargetChannels:      1,
		ResampleQuality:     "medium",
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		Timeout:             60 * time.Second,
		NativeWAV:           true,
		NormalizationMethod: "loudnorm",
		TargetLUFS:          -16.0,
		TargetPeak:          -1.0,
		LoudnessRange:       8.0,
	}
}

// Decoder turns encoded audio bytes into PCM
type Decoder struct {
	config *DecoderConfig
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// Decode decodes audio bytes of any format ffmpeg understands. WAV input is
// handled in process when NativeWAV is set.
func (d *Decoder) Decode(ctx context.Context, data []byte) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "Decode",
		"data_size": len(data),
	})

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio data", ErrUnsupportedFormat)
	}

	if d.config.NativeWAV && IsWAV(data) {
		audio, err := DecodeWAV(data)
		if err != nil {
			logger.Error(err, "Failed to decode wav")
			return nil, err
		}
		if d.config.TargetChannels == 1 && audio.Channels > 1 {
			audio.PCM = audio.DownmixMono()
			audio.Channels = 1
		}
		audio = d.limitDuration(audio)
		logger.Debug("Decoded wav in process", logging.Fields{
			"sample_rate": audio.SampleRate,
			"channels":    audio.Channels,
			"duration":    audio.Duration.Seconds(),
		})
		return audio, nil
	}

	metadata, err := d.probe(ctx, data)
	if err != nil {
		logger.Error(err, "Failed to probe audio metadata")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
		"input_bitrate":     metadata.Bitrate,
	})

	return d.decodeWithFFmpeg(ctx, data, metadata)
}

func (d *Decoder) limitDuration(audio *AudioData) *AudioData {
	if d.config.MaxDuration <= 0 || audio.Duration <= d.config.MaxDuration {
		return audio
	}
	frames := int(d.config.MaxDuration.Seconds() * float64(audio.SampleRate))
	audio.PCM = audio.PCM[:frames*audio.Channels]
	audio.Duration = d.config.MaxDuration
	return audio
}

func (d *Decoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// run executes an ffmpeg tool with data on stdin and classifies failures
func (d *Decoder) run(ctx context.Context, path string, args []string, data []byte) ([]byte, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = bytes.NewReader(data)

	output, err := cmd.Output()
	if err == nil {
		return output, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s: %w", path, ctx.Err())
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecoderUnavailable, path, err)
	}
	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", path, err, strings.TrimSpace(string(exitError.Stderr)))
	}
	return nil, fmt.Errorf("%s failed: %w", path, err)
}

// probe uses ffprobe to read input audio properties from bytes
func (d *Decoder) probe(ctx context.Context, data []byte) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		"pipe:0",
	}

	output, err := d.run(ctx, d.config.FFprobePath, args, data)
	if err != nil {
		if errors.Is(err, ErrDecoderUnavailable) || ctx.Err() != nil {
			return nil, err
		}
		// ffprobe exits non-zero on input it cannot recognise
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return parseFFprobeOutput(output)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("%w: no audio streams found", ErrUnsupportedFormat)
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("%w: stream is %s", ErrUnsupportedFormat, stream.CodecType)
	}
	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("%w: invalid channel count %d", ErrUnsupportedFormat, stream.Channels)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil {
		sampleRate = 44100
	}
	duration, _ := strconv.ParseFloat(stream.Duration, 64)
	bitrate, _ := strconv.Atoi(stream.BitRate)

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

func (d *Decoder) decodeWithFFmpeg(ctx context.Context, data []byte, metadata *AudioMetadata) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "decodeWithFFmpeg",
	})

	args := append([]string{"-i", "pipe:0"}, d.buildFFmpegArgs(metadata)...)
	args = append(args, "pipe:1")

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	start := time.Now()
	output, err := d.run(ctx, d.config.FFmpegPath, args, data)
	if err != nil {
		logger.Error(err, "FFmpeg decode failed")
		return nil, err
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded")
	}

	frames := len(samples) / d.config.TargetChannels
	duration := time.Duration(frames) * time.Second / time.Duration(d.config.TargetSampleRate)

	logger.Debug("FFmpeg decode completed", logging.Fields{
		"output_samples":  len(samples),
		"output_duration": duration.Seconds(),
		"decode_time":     time.Since(start).Seconds(),
	})

	stream := &StreamMetadata{
		Type:        "decoded",
		Format:      "f64le",
		Bitrate:     metadata.Bitrate,
		SampleRate:  d.config.TargetSampleRate,
		Channels:    d.config.TargetChannels,
		Codec:       metadata.Codec,
		ContentType: contentTypeFromCodec(metadata.Codec),
		Headers:     make(map[string]string),
		Timestamp:   time.Now(),
	}
	if d.config.EnableNormalization {
		stream.Headers["normalization_method"] = d.config.NormalizationMethod
		stream.Headers["target_lufs"] = fmt.Sprintf("%.1f", d.config.TargetLUFS)
	}

	return &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Channels:   d.config.TargetChannels,
		Duration:   duration,
		Timestamp:  time.Now(),
		Metadata:   stream,
	}, nil
}

// buildFFmpegArgs builds the ffmpeg output arguments
func (d *Decoder) buildFFmpegArgs(metadata *AudioMetadata) []string {
	args := []string{
		"-vn",
		"-f", "f64le",
		"-ac", strconv.Itoa(d.config.TargetChannels),
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	}

	var filters []string
	if metadata.SampleRate != d.config.TargetSampleRate {
		switch d.config.ResampleQuality {
		case "fast":
			filters = append(filters, "aresample=resampler=soxr:precision=16")
		case "medium":
			filters = append(filters, "aresample=resampler=soxr:precision=20")
		case "high":
			filters = append(filters, "aresample=resampler=soxr:precision=28")
		}
	}
	if d.config.EnableNormalization {
		if f := d.buildNormalizationFilter(); f != "" {
			filters = append(filters, f)
		}
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}

	return append(args, "-v", "error")
}

func (d *Decoder) buildNormalizationFilter() string {
	switch d.config.NormalizationMethod {
	case "loudnorm":
		return fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f",
			d.config.TargetLUFS,
			d.config.TargetPeak,
			d.config.LoudnessRange)
	case "dynaudnorm":
		return "dynaudnorm=p=0.95:m=10:s=12"
	default:
		return ""
	}
}

func contentTypeFromCodec(codec string) string {
	switch codec {
	case "aac":
		return "audio/aac"
	case "mp3":
		return "audio/mpeg"
	case "flac":
		return "audio/flac"
	case "vorbis":
		return "audio/ogg"
	case "opus":
		return "audio/opus"
	case "pcm_s16le", "pcm_s24le", "pcm_f32le":
		return "audio/wav"
	default:
		return "audio/unknown"
	}
}

// bytesToFloat64 converts raw little-endian float64 bytes, dropping a
// trailing partial sample
func bytesToFloat64(data []byte) []float64 {
	count := len(data) / 8
	if count == 0 {
		return nil
	}
	samples := make([]float64, count)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return samples
}

// Validate checks the decoder configuration
func (d *Decoder) Validate() error {
	if d.config.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", d.config.TargetSampleRate)
	}
	if d.config.TargetChannels <= 0 || d.config.TargetChannels > 8 {
		return fmt.Errorf("target channels must be between 1 and 8: %d", d.config.TargetChannels)
	}
	if d.config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", d.config.Timeout)
	}
	return nil
}

// CheckAvailability runs ffmpeg and ffprobe with -version
func (d *Decoder) CheckAvailability(ctx context.Context) error {
	for _, path := range []string{d.config.FFmpegPath, d.config.FFprobePath} {
		if _, err := d.run(ctx, path, []string{"-version"}, nil); err != nil {
			return err
		}
	}
	return nil
}
