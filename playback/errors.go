package playback

import (
	"context"
	"errors"
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/RyanBlaney/sonido-stage/transcode"
)

var (
	// ErrNotLoaded is returned by transport and parameter calls made while no
	// audio is loaded. The call has no effect.
	ErrNotLoaded = errors.New("playback engine has no audio loaded")

	// ErrSuperseded is returned by a load whose result arrived after a newer
	// load or a reset. The result is discarded.
	ErrSuperseded = errors.New("load superseded")
)

// LoadErrorKind classifies load failures
type LoadErrorKind int

const (
	LoadErrorNetwork LoadErrorKind = iota
	LoadErrorDecode
	LoadErrorUnsupportedFormat
	LoadErrorUnavailable
)

func (k LoadErrorKind) String() string {
	switch k {
	case LoadErrorNetwork:
		return "network"
	case LoadErrorDecode:
		return "decode"
	case LoadErrorUnsupportedFormat:
		return "unsupported_format"
	case LoadErrorUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

func (k LoadErrorKind) tag() ftag.Kind {
	return ftag.Kind("LOAD_" + k.String())
}

func (k LoadErrorKind) issue() string {
	switch k {
	case LoadErrorNetwork:
		return "Audio could not be fetched"
	case LoadErrorUnsupportedFormat:
		return "Format not supported"
	case LoadErrorUnavailable:
		return "Engine unreachable"
	default:
		return "Audio could not be decoded"
	}
}

// LoadError is returned by a failed load. Err carries a user-facing issue
// readable with UserMessage.
type LoadError struct {
	Kind LoadErrorKind
	URL  string
	Err  error
}

func newLoadError(kind LoadErrorKind, url string, err error) *LoadError {
	return &LoadError{
		Kind: kind,
		URL:  url,
		Err: fault.Wrap(err,
			fmsg.WithDesc(fmt.Sprintf("%s load failed", kind), kind.issue()),
			ftag.With(kind.tag()),
		),
	}
}

func (e *LoadError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("load audio: %v", e.Err)
	}
	return fmt.Sprintf("load audio %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// decodeErrorKind maps a decode failure to its load error kind
func decodeErrorKind(err error) LoadErrorKind {
	switch {
	case errors.Is(err, transcode.ErrUnsupportedFormat):
		return LoadErrorUnsupportedFormat
	case errors.Is(err, transcode.ErrDecoderUnavailable):
		return LoadErrorUnavailable
	default:
		return LoadErrorDecode
	}
}

// UserMessage returns the message to show a performer for err, or "" for
// nil. Errors without a user-facing issue get a generic message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrSuperseded) {
		return ""
	}
	if issue := fmsg.GetIssue(err); issue != "" {
		return issue
	}
	if errors.Is(err, ErrNotLoaded) {
		return "No audio loaded"
	}
	return "Something went wrong"
}
