package ai

import (
	"context"
	"strings"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// JSONResponse asks the service to return a single JSON object.
	JSONResponse bool
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete returns the content of the first choice.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CleanMarkdownJSON removes backticks and "json" prefix if the model wraps its
// answer in a code block.
func CleanMarkdownJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}
