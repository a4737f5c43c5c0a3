package notification

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedProvider wraps a Provider with a token bucket so bursts of
// reminders (a sweep over many carts, or many timers expiring together) do not
// exceed the mail relay's quota.
type RateLimitedProvider struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider allows perMinute sends per minute with a burst of the
// same size. perMinute <= 0 disables limiting.
func NewRateLimitedProvider(next Provider, perMinute int) *RateLimitedProvider {
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
		burst = perMinute
	}
	return &RateLimitedProvider{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Name returns the wrapped provider's name.
func (p *RateLimitedProvider) Name() string { return p.next.Name() }

// Send waits for a token, honouring ctx, then delegates.
func (p *RateLimitedProvider) Send(ctx context.Context, msg Message) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for send slot: %w", err)
	}
	return p.next.Send(ctx, msg)
}

var _ Provider = (*RateLimitedProvider)(nil)
