package genai

import (
	"context"
	"errors"
	"fmt"
)

// Request is one call to the generation service.
type Request struct {
	// Prompt is the instruction for this call.
	Prompt string `json:"prompt"`

	// Context is supporting material (prior stage output, outline excerpt).
	Context string `json:"context,omitempty"`

	// Constraints bound the generation.
	Constraints Constraints `json:"constraints"`
}

// Constraints bound a generation call.
type Constraints struct {
	Model     string            `json:"model,omitempty"`
	MaxTokens int               `json:"maxTokens,omitempty"`
	Style     map[string]string `json:"style,omitempty"`
}

// Response is the generation service's output: text or binary, plus metadata.
type Response struct {
	Text     string            `json:"text,omitempty"`
	Binary   []byte            `json:"binary,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Client is the interface to the external generation service. The engine
// depends only on this; retry and time-budget policy live in the caller.
type Client interface {
	// Generate produces text for a prompt.
	Generate(ctx context.Context, req Request) (*Response, error)

	// RenderImage produces binary image data for a prompt.
	RenderImage(ctx context.Context, req Request) (*Response, error)
}

// Error is a typed upstream failure carrying its retryability class.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Transient  bool
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("genai: %s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("genai: %s: %s", e.Op, e.Message)
}

// IsTransient reports whether err is a retryable upstream failure. Timeouts
// and transient rejections qualify; malformed requests and policy rejections
// do not.
func IsTransient(err error) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Transient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
