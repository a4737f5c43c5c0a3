package agent

import (
	"context"
	"strings"
)

// TemplateCompleter returns the caller's Draft without calling a model. It is
// used for local runs and when no model credentials are available.
type TemplateCompleter struct{}

// Complete returns req.Draft, or ErrEmptyCompletion when it is blank.
func (TemplateCompleter) Complete(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Draft)
	if text == "" {
		return nil, ErrEmptyCompletion
	}
	return &Result{Text: text}, nil
}

var _ Completer = TemplateCompleter{}
