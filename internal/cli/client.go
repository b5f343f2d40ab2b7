// Package cli implements the perplexity-cli commands and the HTTP client
// they use to talk to a running server.
package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks MCP JSON-RPC over HTTP to a perplexity-mcp server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	nextID  int
}

// NewClient creates a client for the given server base URL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			// Deep research can run for minutes.
			Timeout: 10 * time.Minute,
		},
		nextID: 1,
	}
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Server  string `json:"server"`
	Version string `json:"version"`
}

// Health checks the unauthenticated health endpoint.
func (c *Client) Health() (*HealthResponse, error) {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check failed: %s", resp.Status)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &health, nil
}

// ToolInfo describes one advertised tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListTools fetches the advertised tool list.
func (c *Client) ListTools() ([]ToolInfo, error) {
	var result struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := c.call("tools/list", map[string]any{}, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// Source is one cited source in a tool result.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ToolResult is the parsed result of a tool call.
type ToolResult struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// CallTool invokes the named tool with a query.
func (c *Client) CallTool(name, query string) (*ToolResult, error) {
	var result struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StructuredContent json.RawMessage `json:"structuredContent"`
	}
	params := map[string]any{
		"name":      name,
		"arguments": map[string]any{"query": query},
	}
	if err := c.call("tools/call", params, &result); err != nil {
		return nil, err
	}

	if result.IsError {
		message := "tool call failed"
		if len(result.Content) > 0 {
			message = result.Content[0].Text
		}
		return nil, fmt.Errorf("%s", message)
	}

	var parsed ToolResult
	if len(result.StructuredContent) > 0 {
		if err := json.Unmarshal(result.StructuredContent, &parsed); err == nil {
			return &parsed, nil
		}
	}
	// Fall back to the text content, which carries the same JSON shape.
	if len(result.Content) > 0 {
		if err := json.Unmarshal([]byte(result.Content[0].Text), &parsed); err == nil {
			return &parsed, nil
		}
		return &ToolResult{Answer: result.Content[0].Text}, nil
	}
	return nil, fmt.Errorf("tool call returned no content")
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// call sends one JSON-RPC request to /mcp and decodes the result into out.
// The server may answer with plain JSON or a single-response SSE stream;
// both are handled.
func (c *Client) call(method string, params any, out any) error {
	id := c.nextID
	c.nextID++

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("unauthorized: check the bearer token")
	}

	payload, err := readRPCPayload(resp)
	if err != nil {
		return err
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(payload, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("server error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// readRPCPayload extracts the JSON-RPC response body, unwrapping an SSE
// stream when the server answers with text/event-stream.
func readRPCPayload(resp *http.Response) ([]byte, error) {
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/event-stream") {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK && len(data) == 0 {
			return nil, fmt.Errorf("request failed: %s", resp.Status)
		}
		return data, nil
	}

	var last []byte
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data:"); ok {
			last = []byte(strings.TrimSpace(data))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(last) == 0 {
		return nil, fmt.Errorf("empty event stream")
	}
	return last, nil
}
