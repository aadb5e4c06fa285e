package playback

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/RyanBlaney/sonido-stage/transcode"
)

// FetchFunc retrieves the encoded bytes behind a URL
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// DecodeFunc turns encoded bytes into PCM
type DecodeFunc func(ctx context.Context, data []byte) (*transcode.AudioData, error)

// DefaultMaxFetchBytes caps a single fetched file
const DefaultMaxFetchBytes = 256 << 20

// NewFetcher returns a FetchFunc for http(s) URLs, file:// URLs and plain
// paths. A nil client gets a 30 second timeout.
func NewFetcher(client *http.Client, maxBytes int64) FetchFunc {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFetchBytes
	}

	return func(ctx context.Context, raw string) ([]byte, error) {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse url: %w", err)
		}

		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return fetchHTTP(ctx, client, raw, maxBytes)
		case "file":
			return readFile(u.Path, maxBytes)
		case "":
			return readFile(raw, maxBytes)
		default:
			return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
		}
	}
}

func fetchHTTP(ctx context.Context, client *http.Client, raw string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch: status %d", resp.StatusCode)
	}
	return readLimited(resp.Body, maxBytes)
}

func readFile(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()
	return readLimited(f, maxBytes)
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("audio larger than %s", humanize.IBytes(uint64(maxBytes)))
	}
	return data, nil
}
