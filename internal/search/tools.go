// Package search implements the Perplexity web-search tool set relayed
// through OpenRouter. Tool names and parameter shapes mirror the official
// Perplexity MCP server so existing client configurations work unmodified.
package search

import "fmt"

// Tool identifies one of the advertised search tools. The set is closed:
// dispatch happens by exhaustive matching, never by open-ended lookup.
type Tool string

const (
	// ToolSearch performs a direct web search (sonar).
	ToolSearch Tool = "perplexity_search"

	// ToolAsk answers questions with up-to-date information (sonar-pro).
	ToolAsk Tool = "perplexity_ask"

	// ToolResearch performs deep multi-source research (sonar-deep-research).
	ToolResearch Tool = "perplexity_research"

	// ToolReason handles problems requiring step-by-step reasoning
	// (sonar-reasoning-pro).
	ToolReason Tool = "perplexity_reason"
)

// OpenRouter model identifiers for the Perplexity variants, one per tool.
const (
	ModelSearch   = "perplexity/sonar"
	ModelAsk      = "perplexity/sonar-pro"
	ModelResearch = "perplexity/sonar-deep-research"
	ModelReason   = "perplexity/sonar-reasoning-pro"
)

// Model returns the OpenRouter model bound to the tool.
func (t Tool) Model() (string, error) {
	switch t {
	case ToolSearch:
		return ModelSearch, nil
	case ToolAsk:
		return ModelAsk, nil
	case ToolResearch:
		return ModelResearch, nil
	case ToolReason:
		return ModelReason, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, string(t))
	}
}

// Description returns the client-facing tool description.
func (t Tool) Description() string {
	switch t {
	case ToolSearch:
		return "Performs web search using the Perplexity Search API. Returns an answer with source citations. Perfect for finding up-to-date facts, news, or specific information."
	case ToolAsk:
		return "Engages in a conversation using the Sonar API. Accepts a query and returns a chat completion response from the Perplexity model. Best for answering questions with up-to-date information."
	case ToolResearch:
		return "Performs deep research using the Perplexity API. Returns a comprehensive research response with citations. Best for in-depth research requiring multiple sources."
	case ToolReason:
		return "Performs reasoning tasks using the Perplexity API. Returns a well-reasoned response using the sonar-reasoning-pro model. Best for complex problems requiring step-by-step reasoning."
	default:
		return ""
	}
}

// AllTools lists the advertised tools in registration order.
func AllTools() []Tool {
	return []Tool{ToolSearch, ToolAsk, ToolResearch, ToolReason}
}
