package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ai8future/perplexity-mcp/internal/openrouter"
)

// ErrUnknownTool is returned when a tool name is not in the advertised set.
// No upstream call is made for unknown tools.
var ErrUnknownTool = errors.New("unknown tool")

// ErrEmptyQuery is returned when the query parameter is missing or blank.
var ErrEmptyQuery = errors.New("query must not be empty")

// Relay is the outbound client used to reach OpenRouter. Satisfied by
// *openrouter.Client; tests substitute a recording fake.
type Relay interface {
	ChatCompletion(ctx context.Context, req openrouter.ChatRequest) (openrouter.ChatResponse, error)
}

// Source is one cited source carried through from the upstream response.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Result is the tool output shape: answer text plus the full ordered list
// of cited sources. It matches the official Perplexity MCP tool output so
// clients keep their citation metadata.
type Result struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Service dispatches validated tool calls to the relay. Stateless; one
// upstream round trip per call.
type Service struct {
	relay Relay
}

// NewService creates a search service backed by the given relay.
func NewService(relay Relay) *Service {
	return &Service{relay: relay}
}

// Run executes the named tool for the given query. The tool set is closed:
// anything outside it is rejected before the relay is touched.
func (s *Service) Run(ctx context.Context, tool Tool, query string) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, ErrEmptyQuery
	}

	model, err := tool.Model()
	if err != nil {
		return Result{}, err
	}

	requestID := uuid.New().String()
	slog.Info("tool call",
		"tool", string(tool),
		"model", model,
		"request_id", requestID,
	)

	resp, err := s.relay.ChatCompletion(ctx, openrouter.ChatRequest{
		Model:     model,
		Query:     query,
		RequestID: requestID,
	})
	if err != nil {
		slog.Error("tool call failed",
			"tool", string(tool),
			"request_id", requestID,
			"class", openrouter.Classify(err).String(),
			"error", err,
		)
		return Result{}, fmt.Errorf("%s: %w", tool, err)
	}

	return Result{
		Answer:  resp.Text,
		Sources: mapSources(resp.Citations),
	}, nil
}

// mapSources converts upstream citations into the client-facing source
// list. Count and order are preserved exactly; a missing title falls back
// to the URL.
func mapSources(citations []openrouter.Citation) []Source {
	sources := make([]Source, 0, len(citations))
	for _, c := range citations {
		title := c.Title
		if title == "" {
			title = c.URL
		}
		sources = append(sources, Source{URL: c.URL, Title: title})
	}
	return sources
}
