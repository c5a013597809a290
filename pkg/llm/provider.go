// Package llm provides the language-model completion client used by the
// transcript summarizer and the conversational responder.
package llm

import (
	"context"
)

// Role values for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider defines the interface for LLM completion providers.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai-gpt-4o").
	Name() string

	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is currently reachable.
	IsAvailable(ctx context.Context) bool

	// Close releases provider resources.
	Close() error
}

// CompletionRequest represents a request to the LLM.
type CompletionRequest struct {
	// SystemPrompt is the system-level instruction.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Messages are the conversation turns, oldest first. The final turn
	// should be the user content to respond to.
	Messages []Message `json:"messages"`

	// MaxTokens limits response length (0 = provider default).
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-1.0, 0 = provider default).
	Temperature float32 `json:"temperature,omitempty"`
}

// CompletionResponse represents a response from the LLM.
type CompletionResponse struct {
	// Content is the raw text response from the model.
	Content string `json:"content"`

	// TokensUsed tracks token consumption.
	TokensUsed TokenUsage `json:"tokens_used"`

	// LatencyMs is the response time in milliseconds.
	LatencyMs int `json:"latency_ms"`

	// Model is the actual model used (may differ from requested).
	Model string `json:"model"`

	// FinishReason indicates why the model stopped generating.
	// "stop" = natural end, "length" = hit max_tokens limit.
	FinishReason string `json:"finish_reason,omitempty"`
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Error codes for LLMError.
const (
	ErrUnavailable  = "UNAVAILABLE"
	ErrTimeout      = "TIMEOUT"
	ErrParseFailure = "PARSE_FAILURE"
	ErrTokenLimit   = "TOKEN_LIMIT"
)

// LLMError is a typed provider error.
type LLMError struct {
	Code    string
	Message string
}

func (e *LLMError) Error() string {
	return e.Code + ": " + e.Message
}

// IsTransient reports whether the error is worth retrying.
func (e *LLMError) IsTransient() bool {
	return e.Code == ErrUnavailable || e.Code == ErrTimeout
}
