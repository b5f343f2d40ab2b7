package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// fakeCompletion builds a chat-completion payload with the given content and
// url_citation annotations.
func fakeCompletion(content string, citations []Citation) map[string]any {
	annotations := make([]map[string]any, 0, len(citations))
	for _, c := range citations {
		annotations = append(annotations, map[string]any{
			"type": "url_citation",
			"url_citation": map[string]any{
				"url":         c.URL,
				"title":       c.Title,
				"start_index": c.StartIndex,
				"end_index":   c.EndIndex,
			},
		})
	}

	return map[string]any{
		"id":    "gen-123",
		"model": "perplexity/sonar",
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]any{
					"role":        "assistant",
					"content":     content,
					"annotations": annotations,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     12,
			"completion_tokens": 34,
			"total_tokens":      46,
		},
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, srv
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		wantErr     bool
		errContains string
	}{
		{
			name:   "valid",
			config: Config{APIKey: "key"},
		},
		{
			name:        "missing api key",
			config:      Config{},
			wantErr:     true,
			errContains: "API key is required",
		},
		{
			name:        "bad base url",
			config:      Config{APIKey: "key", BaseURL: "ftp://openrouter.ai"},
			wantErr:     true,
			errContains: "invalid base URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.config.BaseURL != DefaultBaseURL {
				t.Errorf("BaseURL = %q, want default", c.config.BaseURL)
			}
			if c.config.Timeout != DefaultTimeout {
				t.Errorf("Timeout = %v, want default", c.config.Timeout)
			}
		})
	}
}

func TestChatCompletion(t *testing.T) {
	wantCitations := []Citation{
		{URL: "https://example.com/a", Title: "Source A", StartIndex: 10, EndIndex: 20},
		{URL: "https://example.com/b", Title: "Source B", StartIndex: 30, EndIndex: 40},
		{URL: "https://example.com/c", Title: "", StartIndex: 50, EndIndex: 60},
	}

	var requests atomic.Int64
	var gotAuth, gotModel string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		gotAuth = r.Header.Get("Authorization")

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = body.Model

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(fakeCompletion("Paris is sunny [1][2].", wantCitations))
	})

	client, _ := newTestClient(t, handler)

	resp, err := client.ChatCompletion(context.Background(), ChatRequest{
		Model:     "perplexity/sonar",
		Query:     "current weather in Paris",
		RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}

	if got := requests.Load(); got != 1 {
		t.Errorf("upstream requests = %d, want exactly 1", got)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want Bearer test-key", gotAuth)
	}
	if gotModel != "perplexity/sonar" {
		t.Errorf("model = %q, want perplexity/sonar", gotModel)
	}
	if resp.Text != "Paris is sunny [1][2]." {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Model != "perplexity/sonar" {
		t.Errorf("Model = %q", resp.Model)
	}
	if len(resp.Citations) != len(wantCitations) {
		t.Fatalf("citations = %d, want %d", len(resp.Citations), len(wantCitations))
	}
	for i, want := range wantCitations {
		if resp.Citations[i] != want {
			t.Errorf("citation[%d] = %+v, want %+v", i, resp.Citations[i], want)
		}
	}
	if resp.Usage.TotalTokens != 46 {
		t.Errorf("TotalTokens = %d, want 46", resp.Usage.TotalTokens)
	}
	if len(resp.RequestJSON) == 0 || len(resp.ResponseJSON) == 0 {
		t.Error("expected captured request/response payloads")
	}
}

func TestChatCompletionSkipsNonURLAnnotations(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := fakeCompletion("answer", []Citation{{URL: "https://example.com", Title: "T"}})
		choices := payload["choices"].([]map[string]any)
		msg := choices[0]["message"].(map[string]any)
		anns := msg["annotations"].([]map[string]any)
		anns = append(anns, map[string]any{"type": "file_citation"})
		anns = append(anns, map[string]any{
			"type":         "url_citation",
			"url_citation": map[string]any{"url": "", "title": "empty"},
		})
		msg["annotations"] = anns

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	})

	client, _ := newTestClient(t, handler)

	resp, err := client.ChatCompletion(context.Background(), ChatRequest{
		Model: "perplexity/sonar",
		Query: "q",
	})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if len(resp.Citations) != 1 {
		t.Fatalf("citations = %d, want 1", len(resp.Citations))
	}
	if resp.Citations[0].URL != "https://example.com" {
		t.Errorf("citation URL = %q", resp.Citations[0].URL)
	}
}

func TestChatCompletionUpstreamError(t *testing.T) {
	var requests atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "upstream exploded", "type": "server_error"},
		})
	})

	client, _ := newTestClient(t, handler)

	_, err := client.ChatCompletion(context.Background(), ChatRequest{
		Model: "perplexity/sonar",
		Query: "q",
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error type = %T, want *UpstreamError", err)
	}
	if upstream.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", upstream.StatusCode)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("upstream requests = %d, want exactly 1 (no retries)", got)
	}
	if Classify(err) != ClassTransient {
		t.Errorf("Classify = %v, want transient", Classify(err))
	}
}

func TestChatCompletionNoChoices(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "gen-1",
			"model":   "perplexity/sonar",
			"choices": []any{},
		})
	})

	client, _ := newTestClient(t, handler)

	_, err := client.ChatCompletion(context.Background(), ChatRequest{
		Model: "perplexity/sonar",
		Query: "q",
	})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
	if !strings.Contains(upstream.Message, "no choices") {
		t.Errorf("Message = %q, want mention of no choices", upstream.Message)
	}
}

func TestChatCompletionInputValidation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no upstream request expected")
	}))

	if _, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "m"}); err == nil {
		t.Error("expected error for empty query")
	}
	if _, err := client.ChatCompletion(context.Background(), ChatRequest{Query: "q"}); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "valid key", status: http.StatusOK},
		{name: "rejected key", status: http.StatusUnauthorized, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotAuth string
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotAuth = r.Header.Get("Authorization")
				w.WriteHeader(tt.status)
			}))

			err := client.ValidateKey(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var upstream *UpstreamError
				if !errors.As(err, &upstream) || upstream.StatusCode != tt.status {
					t.Errorf("error = %v, want *UpstreamError status %d", err, tt.status)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateKey: %v", err)
			}
			if gotPath != "/auth/key" {
				t.Errorf("path = %q, want /auth/key", gotPath)
			}
			if gotAuth != "Bearer test-key" {
				t.Errorf("Authorization = %q", gotAuth)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{name: "nil", err: nil, want: ClassUnknown},
		{name: "context canceled", err: context.Canceled, want: ClassCanceled},
		{name: "upstream 401", err: &UpstreamError{StatusCode: 401, Message: "bad key"}, want: ClassAuth},
		{name: "upstream 422", err: &UpstreamError{StatusCode: 422, Message: "bad model"}, want: ClassInvalid},
		{name: "upstream 429", err: &UpstreamError{StatusCode: 429, Message: "slow down"}, want: ClassTransient},
		{name: "upstream 503", err: &UpstreamError{StatusCode: 503, Message: "down"}, want: ClassTransient},
		{name: "auth text", err: errors.New("request unauthorized"), want: ClassAuth},
		{name: "network text", err: errors.New("connection refused"), want: ClassTransient},
		{name: "opaque", err: errors.New("weird"), want: ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}
