package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() (*DefaultLogger, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewDefaultLoggerWithWriters(&out, &errOut, false), &out, &errOut
}

func TestParseLevel(t *testing.T) {
	assert := assert.New(t)

	cases := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		" warn ":  WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"fatal":   FatalLevel,
		"":        InfoLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		assert.NoError(err, in)
		assert.Equal(want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(err)
}

func TestDefaultLoggerRouting(t *testing.T) {
	logger, out, errOut := newTestLogger()

	logger.Debug("hidden")
	logger.Info("loaded", Fields{"url": "song.mp3"})
	logger.Warn("replacing graph")
	logger.Error(errors.New("boom"), "decode failed", Fields{"kind": "decode"})

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[INFO] loaded url=song.mp3")
	assert.Contains(t, errOut.String(), "[WARN] replacing graph")
	assert.Contains(t, errOut.String(), "[ERROR] decode failed: boom kind=decode")
}

func TestWithFieldsSharesLevel(t *testing.T) {
	logger, out, _ := newTestLogger()
	child := logger.WithFields(Fields{"component": "engine"})

	logger.SetLevel(DebugLevel)
	child.Debug("tick", Fields{"position": 1.5})

	line := out.String()
	assert.Contains(t, line, "component=engine")
	assert.Contains(t, line, "position=1.5")
	assert.True(t, strings.Index(line, "component") < strings.Index(line, "position"))
}

func TestWithContext(t *testing.T) {
	logger, out, _ := newTestLogger()

	ctx := ContextWithFields(context.Background(), Fields{"song": "abc"})
	ctx = ContextWithFields(ctx, Fields{"job": 2})
	logger.WithContext(ctx).Info("detecting")

	assert.Contains(t, out.String(), "job=2 song=abc")

	fields, ok := FieldsFromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, fields)
}

func TestFatalExits(t *testing.T) {
	logger, _, errOut := newTestLogger()
	code := -1
	logger.opts.exit = func(c int) { code = c }

	logger.Fatal(errors.New("unrecoverable"), "giving up")

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "[FATAL] giving up: unrecoverable")
}

func TestColors(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewDefaultLoggerWithWriters(&out, &errOut, true)
	logger.Warn("careful")
	assert.True(t, strings.Contains(errOut.String(), ColorYellow))

	logger.setColors(false)
	errOut.Reset()
	logger.Warn("careful")
	assert.NotContains(t, errOut.String(), ColorYellow)
}

func TestGlobalLogger(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	SetGlobalLogger(nil)
	_, ok := GetGlobalLogger().(*NoOpLogger)
	require.True(t, ok)

	logger, out, _ := newTestLogger()
	SetGlobalLogger(logger)
	WithFields(Fields{"component": "cli"}).Info("ready")
	assert.Contains(t, out.String(), "component=cli")
}
