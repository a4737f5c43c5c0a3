package notification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/kiranaconnect/kirana/internal/eventbus"
	"github.com/kiranaconnect/kirana/internal/logger"
	"github.com/kiranaconnect/kirana/internal/notification"
)

// --- stub provider ---

type stubProvider struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Send(_ context.Context, msg notification.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *stubProvider) messages() []notification.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notification.Message(nil), p.sent...)
}

// --- template ---

func TestBuildEmailHTML(t *testing.T) {
	html, err := notification.BuildEmailHTML(notification.Email{
		Subject:  "Your atta is waiting",
		Body:     "Hi <Asha>, your cart misses you.",
		CTALabel: "View cart",
		CTAURL:   "https://kiranaconnect.in/cart",
	})
	require.NoError(t, err)

	assert.Contains(t, html, "KiranaConnect")
	assert.Contains(t, html, "Your atta is waiting")
	assert.Contains(t, html, "Hi &lt;Asha&gt;", "body is escaped")
	assert.Contains(t, html, `href="https://kiranaconnect.in/cart"`)
	assert.Contains(t, html, "View cart")
}

func TestBuildEmailHTML_NoCTA(t *testing.T) {
	html, err := notification.BuildEmailHTML(notification.Email{Subject: "s", Body: "b", Footer: "custom footer"})
	require.NoError(t, err)

	assert.NotContains(t, html, "<a href")
	assert.Contains(t, html, "custom footer")
}

// --- rate limiting ---

func TestRateLimitedProvider_Delegates(t *testing.T) {
	next := &stubProvider{}
	p := notification.NewRateLimitedProvider(next, 0)

	assert.Equal(t, "stub", p.Name())
	for range 10 {
		require.NoError(t, p.Send(context.Background(), notification.Message{Subject: "x"}))
	}
	assert.Len(t, next.messages(), 10)
}

func TestRateLimitedProvider_WaitHonoursContext(t *testing.T) {
	next := &stubProvider{}
	p := notification.NewRateLimitedProvider(next, 1)

	require.NoError(t, p.Send(context.Background(), notification.Message{}))

	// The bucket is empty for the next minute.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Send(ctx, notification.Message{})
	require.Error(t, err)
	assert.Len(t, next.messages(), 1)
}

func TestRateLimitedProvider_PropagatesSendError(t *testing.T) {
	boom := errors.New("relay down")
	p := notification.NewRateLimitedProvider(&stubProvider{err: boom}, 60)

	assert.ErrorIs(t, p.Send(context.Background(), notification.Message{}), boom)
}

// --- log provider ---

func TestLogProvider(t *testing.T) {
	p := notification.NewLogProvider(logger.Discard())
	assert.Equal(t, "log", p.Name())
	assert.NoError(t, p.Send(context.Background(), notification.Message{To: []string{"a@b.c"}}))
}

// --- alerts ---

func TestAlertHandler_SendsForConfiguredEvents(t *testing.T) {
	prov := &stubProvider{}
	h := notification.NewAlertHandler(prov, []string{"ops@kiranaconnect.in"},
		map[string]string{"sweep.run.failed": "Abandoned-cart sweep failed"}, logger.Discard())

	h.Handle(eventbus.Event{Type: "reminder.item.sent"})
	assert.Empty(t, prov.messages())

	h.Handle(eventbus.Event{
		Type:      "sweep.run.failed",
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Payload:   map[string]string{"run_id": "r1", "error": "store unavailable"},
	})

	msgs := prov.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"ops@kiranaconnect.in"}, msgs[0].To)
	assert.Equal(t, notification.SubjectPrefix+"Abandoned-cart sweep failed", msgs[0].Subject)
	assert.Equal(t,
		"event: sweep.run.failed\nat: 2026-03-01T09:00:00Z\nerror: store unavailable\nrun_id: r1\n",
		msgs[0].Body)
}

func TestAlertHandler_NoRecipients(t *testing.T) {
	prov := &stubProvider{}
	h := notification.NewAlertHandler(prov, nil,
		map[string]string{"sweep.run.failed": "x"}, logger.Discard())

	h.Handle(eventbus.Event{Type: "sweep.run.failed"})
	assert.Empty(t, prov.messages())
}

func TestAlertHandler_ProviderErrorDoesNotPanic(t *testing.T) {
	prov := &stubProvider{err: errors.New("smtp down")}
	h := notification.NewAlertHandler(prov, []string{"ops@kiranaconnect.in"},
		map[string]string{"sweep.run.failed": "x"}, logger.Discard())

	assert.NotPanics(t, func() { h.Handle(eventbus.Event{Type: "sweep.run.failed"}) })
}

// --- smtp ---

func TestSMTPProvider_RejectsMissingRecipients(t *testing.T) {
	p := notification.NewSMTPProvider(notification.SMTPConfig{
		Host: "localhost", Port: 2525, FromAddr: "reminders@kiranaconnect.in",
	})
	assert.Equal(t, "smtp", p.Name())

	err := p.Send(context.Background(), notification.Message{To: []string{" "}, Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recipients")
}

func TestSMTPProvider_RejectsBadFrom(t *testing.T) {
	p := notification.NewSMTPProvider(notification.SMTPConfig{Host: "localhost", FromAddr: "not an address"})

	err := p.Send(context.Background(), notification.Message{To: []string{"a@b.c"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid from address")
}

func TestTLSPolicyFromEncryption(t *testing.T) {
	assert.Equal(t, mail.TLSMandatory, notification.TLSPolicyFromEncryption("ssl_tls"))
	assert.Equal(t, mail.TLSOpportunistic, notification.TLSPolicyFromEncryption("starttls"))
	assert.Equal(t, mail.NoTLS, notification.TLSPolicyFromEncryption(""))
}
