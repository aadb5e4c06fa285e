package playback

import (
	"bytes"
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-stage/algorithms/filters"
	"github.com/RyanBlaney/sonido-stage/transcode"
)

func sineAudio(amp float64, sampleRate int, seconds float64) *transcode.AudioData {
	pcm := make([]float64, int(seconds*float64(sampleRate)))
	for i := range pcm {
		pcm[i] = amp * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate))
	}
	return &transcode.AudioData{PCM: pcm, SampleRate: sampleRate, Channels: 1}
}

func quietConfig() StreamConfig {
	cfg := DefaultStreamConfig()
	cfg.DCCutoff = 0
	return cfg
}

func TestStreamGraphRenderUnity(t *testing.T) {
	audio := sineAudio(0.01, 8000, 1)
	g := NewStreamGraph(audio, &NullSink{}, quietConfig())

	out := append([]float64(nil), g.Render()...)
	require.Len(t, out, 1024)
	// below the compressor threshold the chain is transparent
	for i := range out {
		assert.InDelta(t, audio.PCM[i], out[i], 1e-9)
	}
	assert.InDelta(t, 1024.0/8000, g.SourcePosition(), 1e-9)
}

func TestStreamGraphParams(t *testing.T) {
	audio := sineAudio(0.01, 8000, 1)
	g := NewStreamGraph(audio, &NullSink{}, quietConfig())
	g.SetParams(GraphParams{Tempo: 1, VolumeDB: -6.0206, ThresholdDB: -24, Ratio: 4})

	out := append([]float64(nil), g.Render()...)
	for i := range out {
		assert.InDelta(t, audio.PCM[i]*0.5, out[i], 1e-6)
	}

	g.SetParams(GraphParams{Tempo: 2, ThresholdDB: -24, Ratio: 4})
	g.Render()
	assert.InDelta(t, 3072.0/8000, g.SourcePosition(), 1e-9)

	// exhaust the source
	for !g.Done() {
		g.Render()
	}
	assert.GreaterOrEqual(t, g.SourcePosition(), 1.0)
}

func TestStreamGraphCompressesLoudInput(t *testing.T) {
	audio := sineAudio(1, 8000, 2)
	cfg := DefaultStreamConfig()
	cfg.Compressor = filters.DefaultCompressorParams()
	g := NewStreamGraph(audio, &NullSink{}, cfg)

	peak := 0.0
	for i := 0; i < 12; i++ {
		block := g.Render()
		if i >= 8 {
			for _, v := range block {
				peak = math.Max(peak, math.Abs(v))
			}
		}
	}
	assert.Less(t, peak, 0.5)
}

func TestStreamGraphRunsAndDisposes(t *testing.T) {
	sink := &NullSink{}
	g := NewStreamGraph(sineAudio(0.1, 8000, 2), sink, quietConfig())

	require.NoError(t, g.Start(0.5))
	require.Eventually(t, func() bool { return sink.Written() > 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, g.Stop())
	require.NoError(t, g.Stop())

	written := sink.Written()
	assert.Equal(t, 0, written%1024)
	assert.Greater(t, sink.Peak(), 0.05)

	require.NoError(t, g.Dispose())
	assert.True(t, sink.Closed())
	assert.Error(t, sink.Write([]float64{1}))
}

func TestStreamGraphFactory(t *testing.T) {
	var opened int
	factory := StreamGraphFactory(DefaultStreamConfig(), func(sampleRate int) (Sink, error) {
		opened = sampleRate
		return &NullSink{}, nil
	})
	graph, err := factory(sineAudio(0.1, 8000, 1))
	require.NoError(t, err)
	assert.Equal(t, 8000, opened)
	require.NoError(t, graph.Dispose())
}

func TestFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/song.wav":
			_, _ = w.Write([]byte("RIFF...."))
		case "/big":
			_, _ = w.Write(make([]byte, 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fetch := NewFetcher(srv.Client(), 32)
	ctx := context.Background()

	data, err := fetch(ctx, srv.URL+"/song.wav")
	require.NoError(t, err)
	assert.Equal(t, "RIFF....", string(data))

	_, err = fetch(ctx, srv.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")

	_, err = fetch(ctx, srv.URL+"/big")
	assert.ErrorContains(t, err, "larger than 32 B")

	path := filepath.Join(t.TempDir(), "take.wav")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0o644))

	data, err = fetch(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))

	data, err = fetch(ctx, "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))

	_, err = fetch(ctx, "ftp://example.com/a.mp3")
	assert.ErrorContains(t, err, "unsupported url scheme")
}

func TestEngineWithStreamGraph(t *testing.T) {
	sink := &NullSink{}
	var wav bytes.Buffer
	audio := sineAudio(0.1, 8000, 1)
	require.NoError(t, transcode.EncodeWAV(&wav, audio.PCM, audio.SampleRate, 1))

	e := NewEngine(Options{
		Fetch:    func(context.Context, string) ([]byte, error) { return wav.Bytes(), nil },
		NewGraph: StreamGraphFactory(quietConfig(), func(int) (Sink, error) { return sink, nil }),
	})
	require.NoError(t, e.LoadFromURL(context.Background(), "mem://take", 2))
	assert.InDelta(t, 1.0, e.Snapshot().Duration, 1e-9)

	require.NoError(t, e.TogglePlayback())
	require.Eventually(t, func() bool { return sink.Written() > 0 }, 2*time.Second, 10*time.Millisecond)
	e.ResetEngine()
	assert.True(t, sink.Closed())
}
