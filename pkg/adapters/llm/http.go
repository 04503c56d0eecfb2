// Package llm provides ports.TextStreamer backends for llm nodes.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"
)

const readChunkSize = 4096

// HTTPStreamer posts {prompt, systemPrompt} to an endpoint and streams the
// plain text response body as it arrives.
type HTTPStreamer struct {
	url    string
	client ports.HTTPDoer
	header http.Header
}

var _ ports.TextStreamer = (*HTTPStreamer)(nil)

// HTTPOption configures an HTTPStreamer.
type HTTPOption func(*HTTPStreamer)

// WithClient sets the HTTP client.
func WithClient(client ports.HTTPDoer) HTTPOption {
	return func(s *HTTPStreamer) {
		if client != nil {
			s.client = client
		}
	}
}

// WithHeader adds a request header, e.g. an authorization token.
func WithHeader(key, value string) HTTPOption {
	return func(s *HTTPStreamer) {
		s.header.Add(key, value)
	}
}

// NewHTTPStreamer creates a streamer for the endpoint at url.
func NewHTTPStreamer(url string, opts ...HTTPOption) *HTTPStreamer {
	s := &HTTPStreamer{
		url:    url,
		client: http.DefaultClient,
		header: make(http.Header),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream implements ports.TextStreamer. Deltas always end on a rune boundary.
func (s *HTTPStreamer) Stream(ctx context.Context, req ports.GenerationRequest, onDelta func(string)) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build generation request: %w", err)
	}
	for k, vs := range s.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/plain")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("generation endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	buf := make([]byte, readChunkSize)
	var pending []byte
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			cut := completeRunes(pending)
			if cut > 0 {
				onDelta(string(pending[:cut]))
				pending = append(pending[:0], pending[cut:]...)
			}
		}
		if err == io.EOF {
			if len(pending) > 0 {
				onDelta(string(pending))
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read generation stream: %w", err)
		}
	}
}

// completeRunes returns the length of the prefix of b that does not end in
// a truncated UTF-8 sequence.
func completeRunes(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}
