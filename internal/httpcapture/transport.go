// Package httpcapture provides an HTTP transport wrapper for capturing raw
// request and response bodies for debugging.
package httpcapture

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
)

// MaxCaptureBytes bounds how much of a body is retained per direction.
// Deep-research responses can be large; anything past the cap is truncated
// in the capture but untouched on the wire.
const MaxCaptureBytes = 1 << 20

// Transport wraps an http.RoundTripper to capture request and response
// bodies. Create a new instance per request to capture its payloads.
type Transport struct {
	// Base is the underlying transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// RequestBody contains the captured request body after RoundTrip completes.
	RequestBody []byte

	// ResponseBody contains the captured response body after RoundTrip completes.
	ResponseBody []byte
}

// New creates a new capturing transport with the default base transport.
func New() *Transport {
	return &Transport{
		Base: http.DefaultTransport,
	}
}

// RoundTrip implements http.RoundTripper. It captures the request body
// before sending and the response body after receiving, restoring both so
// the caller sees the untouched stream.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		t.RequestBody = clip(body)
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.Body != nil {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		t.ResponseBody = clip(body)
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}

	slog.Debug("captured upstream round trip",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"request_bytes", len(t.RequestBody),
		"response_bytes", len(t.ResponseBody),
	)

	return resp, nil
}

// Client returns an *http.Client configured to use this capturing transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

func clip(b []byte) []byte {
	if len(b) > MaxCaptureBytes {
		return b[:MaxCaptureBytes]
	}
	return b
}
