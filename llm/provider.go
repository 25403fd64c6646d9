// Package llm defines the provider-neutral chat completion surface used to
// generate browse answers, plus the error taxonomy shared by every adapter.
package llm

import (
	"context"
	"errors"
	"time"
)

// ErrorCode aligns upstream failures with HTTP status and retryability.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "LLM_INVALID_REQUEST"  // malformed parameters
	ErrUnauthorized    ErrorCode = "LLM_UNAUTHORIZED"     // missing or expired key
	ErrForbidden       ErrorCode = "LLM_FORBIDDEN"        // permission or policy refusal
	ErrRateLimited     ErrorCode = "LLM_RATE_LIMITED"     // upstream throttling
	ErrUpstreamTimeout ErrorCode = "LLM_UPSTREAM_TIMEOUT" // deadline exceeded talking upstream
	ErrUpstreamError   ErrorCode = "LLM_UPSTREAM_ERROR"   // upstream 5xx or network failure
	ErrInvalidResponse ErrorCode = "LLM_INVALID_RESPONSE" // upstream replied with garbage
)

// Error is the structured failure every provider returns. Callers branch on
// Code, never on message text.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// IsTimeout reports whether err represents an upstream timeout, either as a
// classified provider error or a raw context deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if le, ok := AsError(err); ok {
		return le.Code == ErrUpstreamTimeout
	}
	return false
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is one synchronous completion request.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []Message     `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// FirstContent returns the first choice's message content, or "".
func (r *ChatResponse) FirstContent() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// HealthStatus is a provider liveness probe result.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Message string        `json:"message,omitempty"`
}

// Provider is the uniform adapter interface. Implementations live in the
// providers subpackage; callers select one at startup and never switch on
// concrete types afterwards.
type Provider interface {
	// Completion issues a synchronous chat request and returns the full
	// response. Errors are always *Error values.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// HealthCheck performs a lightweight upstream probe.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name returns the provider's unique identifier.
	Name() string
}
