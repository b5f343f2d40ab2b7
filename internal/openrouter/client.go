// Package openrouter provides the outbound relay client for the OpenRouter
// chat-completions API. OpenRouter is an OpenAI-compatible gateway, so the
// client is built on the OpenAI SDK with the base URL pointed at OpenRouter.
package openrouter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ai8future/perplexity-mcp/internal/httpcapture"
	"github.com/ai8future/perplexity-mcp/internal/validation"
)

const (
	// DefaultBaseURL is the OpenRouter API endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultTimeout bounds a single upstream round trip when the caller's
	// context carries no deadline.
	DefaultTimeout = 5 * time.Minute
)

// Config holds relay client configuration.
type Config struct {
	APIKey  string
	BaseURL string // Empty means DefaultBaseURL
	Timeout time.Duration
}

// Client relays chat-completion requests to OpenRouter. Each call is a
// single best-effort round trip: no retries, no backoff, no caching.
type Client struct {
	config Config
}

// NewClient creates a new OpenRouter relay client.
func NewClient(config Config) (*Client, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("OpenRouter API key is required")
	}
	if config.BaseURL != "" {
		if err := validation.ValidateBaseURL(config.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
	} else {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Client{config: config}, nil
}

// ChatRequest describes a single upstream chat-completion call.
type ChatRequest struct {
	// Model is the OpenRouter model identifier (e.g. "perplexity/sonar-pro").
	Model string

	// Query is the user prompt.
	Query string

	// SystemPrompt is an optional system message.
	SystemPrompt string

	// MaxTokens optionally caps the completion length.
	MaxTokens *int

	// Temperature optionally overrides the sampling temperature.
	Temperature *float64

	// RequestID for tracing.
	RequestID string
}

// Citation is a url_citation annotation carried on the completion message.
// Perplexity models attach one per cited source, in citation order.
type Citation struct {
	URL        string
	Title      string
	StartIndex int
	EndIndex   int
}

// Usage contains token usage metrics.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// ChatResponse is the reshaped upstream response.
type ChatResponse struct {
	// Text is the answer content.
	Text string

	// Model is the model that actually served the request.
	Model string

	// Citations are the url_citation annotations, upstream order preserved.
	Citations []Citation

	// Usage contains token counts when the upstream reported them.
	Usage Usage

	// RequestJSON and ResponseJSON hold the raw wire payloads for debugging.
	RequestJSON  []byte
	ResponseJSON []byte
}

// ChatCompletion sends one chat-completion request to OpenRouter and maps
// the response. Exactly one HTTP request leaves this method per call; SDK
// retries are disabled.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	ctx, cancel := ensureTimeout(ctx, c.config.Timeout)
	defer cancel()

	if strings.TrimSpace(req.Query) == "" {
		return ChatResponse{}, fmt.Errorf("query is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return ChatResponse{}, fmt.Errorf("model is required")
	}

	capture := httpcapture.New()
	client := openai.NewClient(
		option.WithAPIKey(c.config.APIKey),
		option.WithBaseURL(c.config.BaseURL),
		option.WithHTTPClient(capture.Client()),
		option.WithMaxRetries(0),
	)

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(strings.TrimSpace(req.Query)))

	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: messages,
	}
	if req.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	slog.Info("openrouter request",
		"model", req.Model,
		"request_id", req.RequestID,
	)

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ChatResponse{}, wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return ChatResponse{}, &UpstreamError{
			StatusCode: http.StatusOK,
			Message:    "upstream returned no choices",
		}
	}

	message := resp.Choices[0].Message
	result := ChatResponse{
		Text:         strings.TrimSpace(message.Content),
		Model:        resp.Model,
		Citations:    extractCitations(message),
		RequestJSON:  capture.RequestBody,
		ResponseJSON: capture.ResponseBody,
	}
	result.Usage = Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}

	slog.Info("openrouter request completed",
		"model", result.Model,
		"request_id", req.RequestID,
		"tokens_in", result.Usage.InputTokens,
		"tokens_out", result.Usage.OutputTokens,
		"citations", len(result.Citations),
	)

	return result, nil
}

// extractCitations pulls url_citation annotations off the message,
// preserving upstream order.
func extractCitations(message openai.ChatCompletionMessage) []Citation {
	var citations []Citation
	for _, ann := range message.Annotations {
		if ann.Type != "url_citation" {
			continue
		}
		if ann.URLCitation.URL == "" {
			continue
		}
		citations = append(citations, Citation{
			URL:        ann.URLCitation.URL,
			Title:      ann.URLCitation.Title,
			StartIndex: int(ann.URLCitation.StartIndex),
			EndIndex:   int(ann.URLCitation.EndIndex),
		})
	}
	return citations
}

// ValidateKey probes the OpenRouter key endpoint to verify the configured
// API key. Used as a startup check; failures are reported, not fatal.
func (c *Client) ValidateKey(ctx context.Context) error {
	ctx, cancel := ensureTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/auth/key", nil)
	if err != nil {
		return fmt.Errorf("build key check request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("key check request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    "API key rejected by OpenRouter",
		}
	}
	return nil
}

// ensureTimeout returns a context with the given timeout if none exists.
// If the context already has a deadline, it is returned unchanged.
func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
