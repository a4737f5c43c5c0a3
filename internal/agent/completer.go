// Package agent wraps the language model that writes reminder copy.
package agent

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned when the model finishes without any text.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Request is a single-turn completion request.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	// Model overrides the completer's default model when set.
	Model string
	// Draft is deterministic copy prepared by the caller. Completers that do
	// not call a model return it verbatim.
	Draft string
}

// Result is the text produced for a Request.
type Result struct {
	Text    string
	CostUSD float64
	Usage   UsageStats
}

// UsageStats holds token usage information.
type UsageStats struct {
	InputTokens  int
	OutputTokens int
}

// Completer produces text for a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Result, error)
}
