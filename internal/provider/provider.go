package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SystonTigers/app-sub004/internal/entity"
)

// Tag identifies a supported payment provider. The set is closed: new
// providers are added as new implementations, never by open type inspection.
type Tag string

const (
	TagStripe Tag = "stripe"
	TagPayPal Tag = "paypal"
)

// ParseTag resolves a transport-level provider name onto a Tag.
func ParseTag(raw string) (Tag, error) {
	switch Tag(strings.ToLower(strings.TrimSpace(raw))) {
	case TagStripe:
		return TagStripe, nil
	case TagPayPal:
		return TagPayPal, nil
	default:
		return "", fmt.Errorf("unknown provider %q", raw)
	}
}

// ErrMalformedSignature reports signature input that could not be parsed at
// all, as opposed to a signature that parsed but did not match.
var ErrMalformedSignature = errors.New("malformed signature input")

// ErrMissingSecret reports a required credential absent from configuration.
var ErrMissingSecret = errors.New("missing provider credential")

// Headers is a case-insensitive-tolerant view over inbound request headers.
// Providers send both PascalCase and lower-case names depending on transport.
type Headers map[string]string

// Get looks a header up ignoring case.
func (h Headers) Get(name string) string {
	if v, ok := h[name]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Outcome is the result of an authenticity check. Detail carries enough
// context to log a mismatch; it is never an error by itself.
type Outcome struct {
	Valid  bool
	Detail string
}

// Provider bundles the two capabilities each payment provider must expose:
// deciding whether a raw request is authentic, and mapping a parsed event
// onto the canonical order record.
type Provider interface {
	Tag() Tag

	// Verify checks request authenticity. A false Outcome means the check
	// ran and did not pass; an error means the input was malformed or a
	// required credential was missing.
	Verify(ctx context.Context, rawBody []byte, headers Headers) (Outcome, error)

	// Normalize maps the provider's parsed event into an OrderRecord. An
	// empty OrderID is a valid result: the event carries no order object
	// and the caller acknowledges it without mutation.
	Normalize(ctx context.Context, event map[string]any, now time.Time) (entity.OrderRecord, error)
}

// Registry holds the closed provider set keyed by tag.
type Registry struct {
	providers map[Tag]Provider
}

// NewRegistry indexes the supplied providers.
func NewRegistry(providers ...Provider) *Registry {
	reg := &Registry{providers: make(map[Tag]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		reg.providers[p.Tag()] = p
	}
	return reg
}

// Lookup returns the provider for tag.
func (r *Registry) Lookup(tag Tag) (Provider, error) {
	p, ok := r.providers[tag]
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q", tag)
	}
	return p, nil
}

// FirstString returns the first non-empty string among the named keys of obj.
func FirstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}

// NestedMap descends obj along path, returning nil when any hop is absent.
func NestedMap(obj map[string]any, path ...string) map[string]any {
	current := obj
	for _, key := range path {
		next, ok := current[key].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return current
}
