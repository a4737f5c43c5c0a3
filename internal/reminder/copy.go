package reminder

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_copy.yaml
var defaultCopyYAML []byte

// Copy holds the prompts, subjects, fallback drafts and discount pool used to
// build reminders.
type Copy struct {
	Brand         string   `yaml:"brand"`
	SignOff       string   `yaml:"sign_off"`
	DiscountCodes []string `yaml:"discount_codes"`
	Item          ItemCopy `yaml:"item"`
	Cart          CartCopy `yaml:"cart"`
}

// ItemCopy is the per-item reminder copy, keyed by urgency tier.
type ItemCopy struct {
	SystemPrompt string             `yaml:"system_prompt"`
	UserPrompt   string             `yaml:"user_prompt"`
	Subjects     map[Urgency]string `yaml:"subjects"`
	Drafts       map[Urgency]string `yaml:"drafts"`
}

// CartCopy is the whole-cart reminder copy.
type CartCopy struct {
	SystemPrompt string `yaml:"system_prompt"`
	UserPrompt   string `yaml:"user_prompt"`
	Subject      string `yaml:"subject"`
	Draft        string `yaml:"draft"`
}

// DefaultCopy returns the built-in copy.
func DefaultCopy() Copy {
	var c Copy
	if err := yaml.Unmarshal(defaultCopyYAML, &c); err != nil {
		panic(fmt.Sprintf("reminder: parsing built-in copy: %v", err))
	}
	return c
}

// LoadCopy reads a YAML file over the built-in copy. Keys missing from the
// file keep their defaults. An empty path returns the defaults.
func LoadCopy(path string) (Copy, error) {
	c := DefaultCopy()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return Copy{}, fmt.Errorf("reading reminder copy %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Copy{}, fmt.Errorf("parsing reminder copy %q: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Copy{}, fmt.Errorf("reminder copy %q: %w", path, err)
	}
	return c, nil
}

// Validate checks that every template the generator needs is present.
func (c Copy) Validate() error {
	var errs []error
	if len(c.DiscountCodes) == 0 {
		errs = append(errs, errors.New("discount_codes must not be empty"))
	}
	if c.Item.UserPrompt == "" || c.Cart.UserPrompt == "" {
		errs = append(errs, errors.New("item and cart user_prompt are required"))
	}
	for _, u := range []Urgency{UrgencyGentle, UrgencyModerate, UrgencyFinal} {
		if c.Item.Subjects[u] == "" {
			errs = append(errs, fmt.Errorf("item subject for %q is required", u))
		}
		if c.Item.Drafts[u] == "" {
			errs = append(errs, fmt.Errorf("item draft for %q is required", u))
		}
	}
	if c.Cart.Subject == "" || c.Cart.Draft == "" {
		errs = append(errs, errors.New("cart subject and draft are required"))
	}
	return errors.Join(errs...)
}
