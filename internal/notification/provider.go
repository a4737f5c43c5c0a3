// Package notification delivers reminder emails. SMTPProvider sends through
// go-mail, RateLimitedProvider caps throughput, and AlertHandler turns failure
// events into operator emails.
package notification

import "context"

// Message is the content to be delivered by a Provider.
type Message struct {
	To      []string
	Subject string
	// Body is the plain-text part.
	Body string
	// HTML is the rich part. When empty the provider renders Body into the
	// branded template.
	HTML string
}

// Provider is the interface for notification delivery backends.
type Provider interface {
	// Name returns the provider identifier (e.g. "smtp").
	Name() string
	// Send delivers the message using the provider's transport.
	Send(ctx context.Context, msg Message) error
}
