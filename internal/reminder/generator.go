// Package reminder builds the text and HTML of cart reminder emails. The body
// comes from a language model (or a deterministic draft); subject, discount
// line and call-to-action footer are always added by this package.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/kiranaconnect/kirana/internal/agent"
	"github.com/kiranaconnect/kirana/internal/notification"
	"github.com/kiranaconnect/kirana/internal/storage"
)

// Urgency is the tone tier of a per-item reminder.
type Urgency string

// Urgency tiers by attempt number.
const (
	UrgencyGentle   Urgency = "gentle"
	UrgencyModerate Urgency = "moderate"
	UrgencyFinal    Urgency = "final"
)

var urgencyTone = map[Urgency]string{
	UrgencyGentle:   "gentle and friendly, a light nudge",
	UrgencyModerate: "warm but a little more direct, mention that stock may run out",
	UrgencyFinal:    "a clear final reminder, polite and never pushy",
}

// UrgencyFor maps attempt 1 to gentle, 2 to moderate and 3 or more to final.
func UrgencyFor(attempt int) Urgency {
	switch {
	case attempt <= 1:
		return UrgencyGentle
	case attempt == 2:
		return UrgencyModerate
	default:
		return UrgencyFinal
	}
}

// ErrNoItems is returned by CartReminder when there is nothing to remind about.
var ErrNoItems = errors.New("no cart items to remind about")

// Message is a generated reminder ready for delivery.
type Message struct {
	Subject string
	// Text is the plain-text body including the footer.
	Text string
	HTML string
	// DiscountCode is empty when no discount was offered.
	DiscountCode string
	Urgency      Urgency
}

// Config wires a Generator.
type Config struct {
	Completer agent.Completer
	Copy      Copy
	// SiteURL is the storefront base, e.g. https://kiranaconnect.in.
	SiteURL string
	// DiscountThreshold is the cart total at or above which a code is offered.
	DiscountThreshold decimal.Decimal
	// Model overrides the completer's default model when set.
	Model string
	Clock clockwork.Clock
	// Pick returns an index in [0, n). Defaults to math/rand/v2.IntN.
	Pick func(n int) int
}

// Generator produces per-item and whole-cart reminders. The copy can be
// swapped at runtime with SetCopy.
type Generator struct {
	cfg  Config
	copy atomic.Pointer[Copy]
}

// NewGenerator returns a Generator, filling defaults for Clock, Pick and Copy.
func NewGenerator(cfg Config) *Generator {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Pick == nil {
		cfg.Pick = rand.IntN
	}
	if cfg.Copy.Item.UserPrompt == "" {
		cfg.Copy = DefaultCopy()
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	g := &Generator{cfg: cfg}
	g.SetCopy(cfg.Copy)
	return g
}

// SetCopy replaces the prompts, drafts and discount pool for later reminders.
func (g *Generator) SetCopy(c Copy) {
	g.copy.Store(&c)
}

// Copy returns the copy currently in use.
func (g *Generator) Copy() Copy {
	return *g.copy.Load()
}

// ItemReminder writes reminder number attempt for one cart item.
func (g *Generator) ItemReminder(ctx context.Context, buyer *storage.Buyer, item *storage.CartItem, attempt int) (*Message, error) {
	urgency := UrgencyFor(attempt)
	cp := g.copy.Load()
	code := g.discountCode(cp, buyer.Cart.TotalPrice)

	vars := g.baseVars(cp, buyer, code)
	vars["item_name"] = item.Name
	vars["quantity"] = strconv.Itoa(item.Quantity)
	vars["unit"] = item.Unit
	vars["unit_price"] = item.UnitPrice.StringFixed(2)
	vars["store_name"] = item.StoreName
	vars["minutes_in_cart"] = strconv.Itoa(g.minutesSince(item.AddedAt))
	vars["attempt"] = strconv.Itoa(attempt)
	vars["urgency"] = string(urgency)
	vars["urgency_tone"] = urgencyTone[urgency]

	c := cp.Item
	msg, err := g.compose(ctx, cp, vars, promptSet{
		system:  c.SystemPrompt,
		user:    c.UserPrompt,
		subject: c.Subjects[urgency],
		draft:   c.Drafts[urgency],
	}, code)
	if err != nil {
		return nil, fmt.Errorf("item reminder for %q attempt %d: %w", item.ItemID, attempt, err)
	}
	msg.Urgency = urgency
	return msg, nil
}

// CartReminder writes one whole-cart message covering items, with the buyer's
// purchase history as context.
func (g *Generator) CartReminder(ctx context.Context, buyer *storage.Buyer, items []storage.CartItem) (*Message, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	cp := g.copy.Load()
	code := g.discountCode(cp, buyer.Cart.TotalPrice)

	vars := g.baseVars(cp, buyer, code)
	vars["item_list"] = itemList(items)
	vars["item_count"] = strconv.Itoa(len(items))
	vars["item_count_label"] = countLabel(len(items))
	vars["cart_total"] = buyer.Cart.TotalPrice.StringFixed(2)
	vars["recent_purchases"] = "none on record"
	if len(buyer.RecentPurchases) > 0 {
		vars["recent_purchases"] = strings.Join(buyer.RecentPurchases, ", ")
	}

	c := cp.Cart
	msg, err := g.compose(ctx, cp, vars, promptSet{
		system:  c.SystemPrompt,
		user:    c.UserPrompt,
		subject: c.Subject,
		draft:   c.Draft,
	}, code)
	if err != nil {
		return nil, fmt.Errorf("cart reminder for buyer %q: %w", buyer.ID, err)
	}
	return msg, nil
}

type promptSet struct {
	system, user, subject, draft string
}

func (g *Generator) compose(ctx context.Context, cp *Copy, vars map[string]string, p promptSet, code string) (*Message, error) {
	system, err := agent.Interpolate(p.system, vars)
	if err != nil {
		return nil, err
	}
	user, err := agent.Interpolate(p.user, vars)
	if err != nil {
		return nil, err
	}
	subject, err := agent.Interpolate(p.subject, vars)
	if err != nil {
		return nil, err
	}
	draft, err := agent.Interpolate(p.draft, vars)
	if err != nil {
		return nil, err
	}

	res, err := g.cfg.Completer.Complete(ctx, agent.Request{
		SystemPrompt: system,
		UserPrompt:   user,
		Model:        g.cfg.Model,
		Draft:        draft,
	})
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(res.Text)
	if body == "" {
		return nil, agent.ErrEmptyCompletion
	}

	text := body + "\n\n" + g.footer(cp, code)
	html, err := notification.BuildEmailHTML(notification.Email{
		Subject:  subject,
		Body:     body + discountLine(code),
		CTALabel: "View your cart",
		CTAURL:   g.cartURL(),
		Footer:   signOff(cp) + " · " + g.cfg.SiteURL,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering html: %w", err)
	}

	return &Message{
		Subject:      subject,
		Text:         text,
		HTML:         html,
		DiscountCode: code,
	}, nil
}

func (g *Generator) baseVars(cp *Copy, buyer *storage.Buyer, code string) map[string]string {
	name := strings.TrimSpace(buyer.Name)
	if name == "" {
		name = "there"
	}
	hint := ""
	if code != "" {
		hint = fmt.Sprintf("The buyer qualifies for discount code %s; mention that a discount is available.", code)
	}
	return map[string]string{
		"brand":         cp.Brand,
		"buyer_name":    name,
		"discount_hint": hint,
	}
}

// discountCode picks a code from the pool when total reaches the threshold.
func (g *Generator) discountCode(cp *Copy, total decimal.Decimal) string {
	pool := cp.DiscountCodes
	if len(pool) == 0 || total.LessThan(g.cfg.DiscountThreshold) {
		return ""
	}
	return pool[g.cfg.Pick(len(pool))]
}

// footer is appended to every plain-text body regardless of model output.
func (g *Generator) footer(cp *Copy, code string) string {
	var b strings.Builder
	if code != "" {
		fmt.Fprintf(&b, "Use code %s at checkout to save on this order.\n\n", code)
	}
	fmt.Fprintf(&b, "View your cart: %s\n", g.cartURL())
	fmt.Fprintf(&b, "Shop local at %s\n\n", g.cfg.SiteURL)
	b.WriteString(signOff(cp))
	return b.String()
}

func signOff(cp *Copy) string {
	if cp.SignOff != "" {
		return cp.SignOff
	}
	return "Team " + cp.Brand
}

func (g *Generator) cartURL() string {
	return g.cfg.SiteURL + "/cart"
}

func (g *Generator) minutesSince(t time.Time) int {
	m := int(g.cfg.Clock.Since(t) / time.Minute)
	return max(m, 0)
}

func discountLine(code string) string {
	if code == "" {
		return ""
	}
	return fmt.Sprintf("\n\nUse code %s at checkout to save on this order.", code)
}

func itemList(items []storage.CartItem) string {
	lines := make([]string, 0, len(items))
	for i := range items {
		it := &items[i]
		line := fmt.Sprintf("- %s, %d %s at Rs. %s", it.Name, it.Quantity, it.Unit, it.UnitPrice.StringFixed(2))
		if it.StoreName != "" {
			line += " from " + it.StoreName
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func countLabel(n int) string {
	if n == 1 {
		return "1 item"
	}
	return strconv.Itoa(n) + " items"
}
