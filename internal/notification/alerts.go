package notification

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/kiranaconnect/kirana/internal/eventbus"
)

// SubjectPrefix is prepended to every operator alert subject.
const SubjectPrefix = "KiranaConnect alert - "

const defaultAlertTimeout = 30 * time.Second

// AlertHandler receives application events and emails operators about the
// ones listed in Subjects.
type AlertHandler struct {
	provider Provider
	to       []string
	subjects map[string]string
	logger   *slog.Logger
	timeout  time.Duration
}

// NewAlertHandler creates a handler that mails recipients when an event whose
// type is a key of subjects is published. The map value is the human subject.
func NewAlertHandler(provider Provider, recipients []string, subjects map[string]string, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{
		provider: provider,
		to:       recipients,
		subjects: subjects,
		logger:   logger,
		timeout:  defaultAlertTimeout,
	}
}

// Handle is an eventbus.Listener.
func (h *AlertHandler) Handle(e eventbus.Event) {
	subject, ok := h.subjects[e.Type]
	if !ok || len(h.to) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	msg := Message{
		To:      h.to,
		Subject: SubjectPrefix + subject,
		Body:    alertBody(e),
	}
	if err := h.provider.Send(ctx, msg); err != nil {
		h.logger.Error("failed to send operator alert",
			"event_type", e.Type, "provider", h.provider.Name(), "error", err)
		return
	}
	h.logger.Info("operator alert sent", "event_type", e.Type)
}

// alertBody lists the payload in key order under the event header.
func alertBody(e eventbus.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", e.Type)
	fmt.Fprintf(&b, "at: %s\n", e.Timestamp.Format(time.RFC3339))
	for _, k := range slices.Sorted(maps.Keys(e.Payload)) {
		fmt.Fprintf(&b, "%s: %s\n", k, e.Payload[k])
	}
	return b.String()
}
