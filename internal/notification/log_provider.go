package notification

import (
	"context"
	"log/slog"
	"strings"
)

// LogProvider writes messages to the log instead of sending them. It is used
// when SMTP is not configured.
type LogProvider struct {
	logger *slog.Logger
}

// NewLogProvider returns a LogProvider writing to logger.
func NewLogProvider(logger *slog.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

// Name returns the provider identifier.
func (p *LogProvider) Name() string { return "log" }

// Send logs msg at info level.
func (p *LogProvider) Send(_ context.Context, msg Message) error {
	p.logger.Info("email not sent, smtp disabled",
		"to", strings.Join(msg.To, ","), "subject", msg.Subject, "body", msg.Body)
	return nil
}

var _ Provider = (*LogProvider)(nil)
