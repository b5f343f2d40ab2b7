package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testToken = "cli-secret"

// newFakeServer serves /health plus a /mcp endpoint that answers tools/list
// and tools/call with canned results. When sse is true, /mcp responses use
// event-stream framing.
func newFakeServer(t *testing.T, sse bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"status":"healthy","server":"perplexity-mcp","version":"test"}`)
			return
		case "/mcp":
		default:
			http.NotFound(w, r)
			return
		}

		if got := r.Header.Get("Authorization"); got != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req struct {
			ID     int    `json:"id"`
			Method string `json:"method"`
			Params struct {
				Name      string `json:"name"`
				Arguments struct {
					Query string `json:"query"`
				} `json:"arguments"`
			} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var result string
		switch req.Method {
		case "tools/list":
			result = `{"tools":[{"name":"perplexity_search","description":"Quick search"},{"name":"perplexity_ask","description":"Ask"}]}`
		case "tools/call":
			if req.Params.Name == "perplexity_broken" {
				result = `{"isError":true,"content":[{"type":"text","text":"upstream error (status 500)"}]}`
				break
			}
			if req.Params.Arguments.Query == "" {
				t.Error("tools/call carried no query")
			}
			result = `{"content":[{"type":"text","text":"{\"answer\":\"Paris is sunny.\",\"sources\":[]}"}],"structuredContent":{"answer":"Paris is sunny.","sources":[{"url":"https://weather.example.com","title":"Paris Weather"}]}}`
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		body := fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":%s}`, req.ID, result)
		if sse {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", body)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
}

func TestHealth(t *testing.T) {
	srv := newFakeServer(t, false)
	defer srv.Close()

	client := NewClient(srv.URL, testToken)
	health, err := client.Health()
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "healthy" || health.Server != "perplexity-mcp" {
		t.Errorf("health = %+v", health)
	}
}

func TestListTools(t *testing.T) {
	srv := newFakeServer(t, false)
	defer srv.Close()

	client := NewClient(srv.URL, testToken)
	tools, err := client.ListTools()
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("tools = %d, want 2", len(tools))
	}
	if tools[0].Name != "perplexity_search" {
		t.Errorf("tools[0] = %+v", tools[0])
	}
}

func TestCallTool(t *testing.T) {
	for _, framing := range []struct {
		name string
		sse  bool
	}{
		{name: "json response", sse: false},
		{name: "event-stream response", sse: true},
	} {
		t.Run(framing.name, func(t *testing.T) {
			srv := newFakeServer(t, framing.sse)
			defer srv.Close()

			client := NewClient(srv.URL, testToken)
			result, err := client.CallTool("perplexity_search", "current weather in Paris")
			if err != nil {
				t.Fatalf("CallTool: %v", err)
			}
			if result.Answer != "Paris is sunny." {
				t.Errorf("Answer = %q", result.Answer)
			}
			if len(result.Sources) != 1 || result.Sources[0].URL != "https://weather.example.com" {
				t.Errorf("Sources = %+v", result.Sources)
			}
		})
	}
}

func TestCallToolErrorResult(t *testing.T) {
	srv := newFakeServer(t, false)
	defer srv.Close()

	client := NewClient(srv.URL, testToken)
	_, err := client.CallTool("perplexity_broken", "q")
	if err == nil {
		t.Fatal("expected error for isError result")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("err = %v, want upstream message passed through", err)
	}
}

func TestCallUnauthorized(t *testing.T) {
	srv := newFakeServer(t, false)
	defer srv.Close()

	client := NewClient(srv.URL, "wrong-token")
	_, err := client.ListTools()
	if err == nil {
		t.Fatal("expected error for bad token")
	}
	if !strings.Contains(err.Error(), "unauthorized") {
		t.Errorf("err = %v, want unauthorized", err)
	}
}
