package transcode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// IsWAV reports whether data starts with a RIFF/WAVE header
func IsWAV(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WAVE"
}

type wavFormat struct {
	tag           uint16
	channels      int
	sampleRate    int
	bitsPerSample int
}

// DecodeWAV decodes integer or float PCM WAV data without external tools.
// Samples stay interleaved; DownmixMono folds them.
func DecodeWAV(data []byte) (*AudioData, error) {
	if !IsWAV(data) {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrUnsupportedFormat)
	}

	var (
		format  *wavFormat
		payload []byte
	)

	r := bytes.NewReader(data[12:])
	for {
		var header struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("read chunk header: %w", err)
		}

		size := int64(header.Size)
		if size > int64(r.Len()) {
			// truncated streams often carry a bogus data size
			size = int64(r.Len())
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, fmt.Errorf("read %q chunk: %w", header.ID[:], err)
		}
		if size%2 == 1 {
			_, _ = r.ReadByte()
		}

		switch string(header.ID[:]) {
		case "fmt ":
			f, err := parseWAVFormat(chunk)
			if err != nil {
				return nil, err
			}
			format = f
		case "data":
			payload = chunk
		}
		if format != nil && payload != nil {
			break
		}
	}

	if format == nil {
		return nil, fmt.Errorf("%w: no fmt chunk", ErrUnsupportedFormat)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: no data chunk", ErrUnsupportedFormat)
	}

	samples, err := wavSamples(format, payload)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded")
	}

	frames := len(samples) / format.channels
	return &AudioData{
		PCM:        samples,
		SampleRate: format.sampleRate,
		Channels:   format.channels,
		Duration:   time.Duration(frames) * time.Second / time.Duration(format.sampleRate),
		Timestamp:  time.Now(),
		Metadata: &StreamMetadata{
			Type:        "decoded",
			Format:      "wav",
			SampleRate:  format.sampleRate,
			Channels:    format.channels,
			Codec:       fmt.Sprintf("pcm_%dbit", format.bitsPerSample),
			ContentType: "audio/wav",
			Timestamp:   time.Now(),
		},
	}, nil
}

func parseWAVFormat(chunk []byte) (*wavFormat, error) {
	if len(chunk) < 16 {
		return nil, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
	}
	f := &wavFormat{
		tag:           binary.LittleEndian.Uint16(chunk[0:2]),
		channels:      int(binary.LittleEndian.Uint16(chunk[2:4])),
		sampleRate:    int(binary.LittleEndian.Uint32(chunk[4:8])),
		bitsPerSample: int(binary.LittleEndian.Uint16(chunk[14:16])),
	}
	if f.tag == wavFormatExtensible {
		if len(chunk) < 26 {
			return nil, fmt.Errorf("%w: short extensible fmt chunk", ErrUnsupportedFormat)
		}
		// the sub-format GUID starts with the plain format tag
		f.tag = binary.LittleEndian.Uint16(chunk[24:26])
	}
	if f.channels <= 0 || f.channels > 8 || f.sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, f.channels, f.sampleRate)
	}
	return f, nil
}

func wavSamples(f *wavFormat, payload []byte) ([]float64, error) {
	width := f.bitsPerSample / 8
	if width == 0 {
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, f.bitsPerSample)
	}
	frameBytes := width * f.channels
	count := (len(payload) / frameBytes) * f.channels
	out := make([]float64, count)

	switch {
	case f.tag == wavFormatPCM && width == 1:
		for i := range out {
			out[i] = (float64(payload[i]) - 128) / 128
		}
	case f.tag == wavFormatPCM && width == 2:
		for i := range out {
			out[i] = float64(int16(binary.LittleEndian.Uint16(payload[i*2:]))) / 32768
		}
	case f.tag == wavFormatPCM && width == 3:
		for i := range out {
			b := payload[i*3:]
			v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
			out[i] = float64(v) / 8388608
		}
	case f.tag == wavFormatPCM && width == 4:
		for i := range out {
			out[i] = float64(int32(binary.LittleEndian.Uint32(payload[i*4:]))) / 2147483648
		}
	case f.tag == wavFormatFloat && width == 4:
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:])))
		}
	case f.tag == wavFormatFloat && width == 8:
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[i*8:]))
		}
	default:
		return nil, fmt.Errorf("%w: wav format tag %d with %d bits", ErrUnsupportedFormat, f.tag, f.bitsPerSample)
	}
	return out, nil
}

// EncodeWAV writes samples as 16-bit PCM WAV. Samples are interleaved when
// channels > 1 and clipped to [-1, 1].
func EncodeWAV(w io.Writer, samples []float64, sampleRate, channels int) error {
	if channels <= 0 {
		channels = 1
	}
	dataSize := uint32(len(samples) * 2)

	header := struct {
		RIFF          [4]byte
		Size          uint32
		WAVE          [4]byte
		Fmt           [4]byte
		FmtSize       uint32
		Tag           uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataSize      uint32
	}{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		Size:          36 + dataSize,
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		Tag:           wavFormatPCM,
		Channels:      uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * 2),
		BlockAlign:    uint16(channels * 2),
		BitsPerSample: 16,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      dataSize,
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}

	pcm := make([]int16, len(samples))
	for i, s := range samples {
		pcm[i] = int16(math.Round(math.Max(-1, math.Min(1, s)) * 32767))
	}
	if err := binary.Write(w, binary.LittleEndian, pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}
