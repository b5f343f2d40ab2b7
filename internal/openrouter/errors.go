package openrouter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

// UpstreamError carries the OpenRouter HTTP status and message back to the
// caller so it can be surfaced in the tool result instead of crashing the
// request handler.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("openrouter: upstream error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("openrouter: upstream error: %s", e.Message)
}

// Class categorizes an upstream failure for logging. Nothing is retried on
// any class; classification only shapes log fields and error text.
type Class int

const (
	ClassUnknown Class = iota
	ClassAuth
	ClassInvalid
	ClassTransient
	ClassCanceled
)

// String returns the log-friendly class name.
func (c Class) String() string {
	switch c {
	case ClassAuth:
		return "auth"
	case ClassInvalid:
		return "invalid_request"
	case ClassTransient:
		return "transient"
	case ClassCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Classify inspects an upstream error and assigns a failure class.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassCanceled
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		switch {
		case upstream.StatusCode == 401 || upstream.StatusCode == 403:
			return ClassAuth
		case upstream.StatusCode == 400 || upstream.StatusCode == 404 || upstream.StatusCode == 422:
			return ClassInvalid
		case upstream.StatusCode == 429 || upstream.StatusCode >= 500:
			return ClassTransient
		}
	}

	errStr := strings.ToLower(err.Error())

	authPatterns := []string{
		"401", "403",
		"invalid_api_key", "authentication", "permission",
		"unauthorized", "unauthenticated",
	}
	for _, p := range authPatterns {
		if strings.Contains(errStr, p) {
			return ClassAuth
		}
	}

	invalidPatterns := []string{
		"400", "422",
		"invalid_request", "invalid_argument", "malformed", "validation",
	}
	for _, p := range invalidPatterns {
		if strings.Contains(errStr, p) {
			return ClassInvalid
		}
	}

	transientPatterns := []string{
		"429", "500", "502", "503", "504", "529",
		"rate", "overloaded", "server_error",
		"connection", "timeout", "temporary", "eof",
		"tls handshake", "no such host",
	}
	for _, p := range transientPatterns {
		if strings.Contains(errStr, p) {
			return ClassTransient
		}
	}

	return ClassUnknown
}

// wrapError converts SDK errors into *UpstreamError where an HTTP status is
// available, so callers can report the upstream status verbatim.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		message := apierr.Message
		if message == "" {
			message = apierr.Error()
		}
		return &UpstreamError{
			StatusCode: apierr.StatusCode,
			Message:    message,
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("openrouter request aborted: %w", err)
	}

	return &UpstreamError{Message: err.Error()}
}
