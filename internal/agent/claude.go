package agent

import (
	"context"
	"fmt"
	"strings"

	claude "github.com/shaharia-lab/claude-agent-sdk-go/claude"
)

// builtInTools are hidden from the model; reminder copy never needs tools.
var builtInTools = []string{
	"Read", "Write", "Edit", "Bash", "Glob", "Grep", "WebFetch", "WebSearch", "Task",
	"TaskOutput", "TaskStop", "NotebookEdit",
}

// ClaudeCompleter runs single-turn completions through the claude CLI.
type ClaudeCompleter struct {
	model string
}

// NewClaudeCompleter returns a completer using model unless a Request overrides it.
func NewClaudeCompleter(model string) *ClaudeCompleter {
	return &ClaudeCompleter{model: model}
}

func (c *ClaudeCompleter) options(req Request) []claude.Option {
	opts := []claude.Option{
		claude.WithPermissionMode(claude.PermissionModeBypassPermissions),
		claude.WithBypassPermissions(),
		claude.WithThinking(claude.ThinkingDisabled),
		claude.WithDisallowedTools(builtInTools...),
	}

	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	if model != "" {
		opts = append(opts, claude.WithModel(model))
	}
	if req.SystemPrompt != "" {
		opts = append(opts, claude.WithSystemPrompt(req.SystemPrompt))
	}
	return opts
}

// Complete runs the prompt to completion and returns the final answer.
func (c *ClaudeCompleter) Complete(ctx context.Context, req Request) (*Result, error) {
	stream, err := claude.Query(ctx, req.UserPrompt, c.options(req)...)
	if err != nil {
		return nil, fmt.Errorf("starting completion: %w", err)
	}

	var (
		result    *Result
		resultErr error
	)
	for event := range stream.Events() {
		if event.Type != claude.TypeResult || event.Result == nil {
			continue
		}
		if event.Result.IsError {
			msg := event.Result.Result
			if msg == "" && len(event.Result.Errors) > 0 {
				msg = strings.Join(event.Result.Errors, "; ")
			}
			if msg == "" {
				msg = fmt.Sprintf("subtype=%s", event.Result.Subtype)
			}
			resultErr = fmt.Errorf("completion error: %s", msg)
			continue
		}
		result = &Result{
			Text:    strings.TrimSpace(event.Result.Result),
			CostUSD: event.Result.TotalCostUSD,
			Usage: UsageStats{
				InputTokens:  event.Result.Usage.InputTokens,
				OutputTokens: event.Result.Usage.OutputTokens,
			},
		}
		// Keep draining so the subprocess exits before ctx is canceled.
	}

	if resultErr != nil {
		return nil, resultErr
	}
	if result == nil {
		return nil, fmt.Errorf("completion finished without returning a result")
	}
	if result.Text == "" {
		return nil, ErrEmptyCompletion
	}
	return result, nil
}

var _ Completer = (*ClaudeCompleter)(nil)
