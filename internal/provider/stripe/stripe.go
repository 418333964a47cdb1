package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/SystonTigers/app-sub004/internal/entity"
	"github.com/SystonTigers/app-sub004/internal/provider"
)

// SignatureHeader is the header Stripe signs webhook deliveries with.
const SignatureHeader = "Stripe-Signature"

// Config carries the Stripe webhook credentials.
type Config struct {
	WebhookSecret string
}

// Provider verifies and normalizes Stripe webhook events.
type Provider struct {
	secret string
}

// New constructs the Stripe provider.
func New(cfg Config) *Provider {
	return &Provider{secret: strings.TrimSpace(cfg.WebhookSecret)}
}

// Tag identifies this provider.
func (p *Provider) Tag() provider.Tag { return provider.TagStripe }

// signatureHeader holds the parsed `t=...,v1=...` scheme. Keys other than t
// and v1 are ignored.
type signatureHeader struct {
	timestamp  string
	candidates []string
}

func parseSignatureHeader(value string) (signatureHeader, error) {
	var parsed signatureHeader
	for _, part := range strings.Split(value, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed.timestamp = val
		case "v1":
			if val != "" {
				parsed.candidates = append(parsed.candidates, val)
			}
		}
	}
	if parsed.timestamp == "" {
		return signatureHeader{}, fmt.Errorf("%w: missing timestamp", provider.ErrMalformedSignature)
	}
	if len(parsed.candidates) == 0 {
		return signatureHeader{}, fmt.Errorf("%w: no v1 signatures", provider.ErrMalformedSignature)
	}
	return parsed, nil
}

// Verify checks the Stripe-Signature header against an HMAC-SHA256 of
// "{timestamp}.{rawBody}". Comparison is constant time via hmac.Equal.
func (p *Provider) Verify(_ context.Context, rawBody []byte, headers provider.Headers) (provider.Outcome, error) {
	if p.secret == "" {
		return provider.Outcome{}, fmt.Errorf("%w: stripe webhook secret", provider.ErrMissingSecret)
	}

	header := headers.Get(SignatureHeader)
	if strings.TrimSpace(header) == "" {
		return provider.Outcome{}, fmt.Errorf("%w: missing %s header", provider.ErrMalformedSignature, SignatureHeader)
	}

	parsed, err := parseSignatureHeader(header)
	if err != nil {
		return provider.Outcome{}, err
	}

	mac := hmac.New(sha256.New, []byte(p.secret))
	mac.Write([]byte(parsed.timestamp))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range parsed.candidates {
		if hmac.Equal([]byte(expected), []byte(strings.ToLower(candidate))) {
			return provider.Outcome{Valid: true}, nil
		}
	}
	return provider.Outcome{Valid: false, Detail: "no v1 signature matched"}, nil
}

// Normalize maps a Stripe event envelope onto the canonical order record.
// Stripe amounts arrive in minor currency units and are converted to major
// units with two decimals.
func (p *Provider) Normalize(_ context.Context, event map[string]any, now time.Time) (entity.OrderRecord, error) {
	record := entity.OrderRecord{
		Provider:      string(provider.TagStripe),
		RawEventID:    provider.FirstString(event, "id"),
		LastEventType: provider.FirstString(event, "type"),
		LastEventAt:   now.UTC(),
	}

	object := provider.NestedMap(event, "data", "object")
	if object == nil {
		object = map[string]any{}
	}

	record.OrderID = provider.FirstString(object, "id", "payment_intent", "subscription")
	record.Currency = strings.ToUpper(provider.FirstString(object, "currency", "currency_code"))

	if minor, ok := firstInteger(object, "amount_total", "amount_due", "amount"); ok {
		record.Amount = formatMinorUnits(minor)
	}

	record.Status = provider.FirstString(object, "payment_status", "status")
	if record.Status == "" {
		record.Status = record.LastEventType
	}

	if created, ok := asInt64(event["created"]); ok && created > 0 {
		record.LastEventAt = time.Unix(created, 0).UTC()
	}

	if meta, ok := object["metadata"].(map[string]any); ok && len(meta) > 0 {
		if encoded, err := json.Marshal(meta); err == nil {
			record.Metadata = string(encoded)
		}
	}

	record.CustomerEmail = provider.FirstString(object, "customer_email")
	if record.CustomerEmail == "" {
		if details := provider.NestedMap(object, "customer_details"); details != nil {
			record.CustomerEmail = provider.FirstString(details, "email")
		}
	}

	return record, nil
}

// firstInteger returns the first present amount field interpreted as an
// integer count of minor units.
func firstInteger(obj map[string]any, keys ...string) (int64, bool) {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			if n, ok := asInt64(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(math.Round(n)), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, true
		}
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func formatMinorUnits(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
