package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SystonTigers/app-sub004/internal/entity"
	"github.com/SystonTigers/app-sub004/internal/provider"
)

// Transmission headers PayPal attaches to every webhook delivery.
const (
	HeaderAuthAlgo         = "Paypal-Auth-Algo"
	HeaderCertURL          = "Paypal-Cert-Url"
	HeaderTransmissionID   = "Paypal-Transmission-Id"
	HeaderTransmissionSig  = "Paypal-Transmission-Sig"
	HeaderTransmissionTime = "Paypal-Transmission-Time"
)

const verificationSuccess = "SUCCESS"

// Config carries PayPal verification settings. APIBase points at the live or
// sandbox REST host without a trailing slash.
type Config struct {
	APIBase      string
	ClientID     string
	ClientSecret string
	WebhookID    string
}

// Provider verifies PayPal webhook deliveries through the remote
// verify-webhook-signature endpoint and normalizes their events. PayPal does
// no local cryptography; authenticity is decided by the API call.
type Provider struct {
	cfg    Config
	tokens *TokenSource
	client *http.Client
	logger *zap.Logger
}

// New constructs the PayPal provider.
func New(cfg Config, tokens *TokenSource, client *http.Client, logger *zap.Logger) *Provider {
	cfg.APIBase = strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, tokens: tokens, client: client, logger: logger}
}

// Tag identifies this provider.
func (p *Provider) Tag() provider.Tag { return provider.TagPayPal }

type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// Verify calls POST {apiBase}/v1/notifications/verify-webhook-signature with
// the five transmission headers, the configured webhook id and the event
// body. Any non-2xx response and any verification_status other than the
// exact success marker is a verification failure, not an error.
func (p *Provider) Verify(ctx context.Context, rawBody []byte, headers provider.Headers) (provider.Outcome, error) {
	if p.cfg.ClientID == "" || p.cfg.ClientSecret == "" {
		return provider.Outcome{}, fmt.Errorf("%w: paypal client credentials", provider.ErrMissingSecret)
	}
	if p.cfg.WebhookID == "" {
		return provider.Outcome{}, fmt.Errorf("%w: paypal webhook id", provider.ErrMissingSecret)
	}

	payload := verifyRequest{
		AuthAlgo:         headers.Get(HeaderAuthAlgo),
		CertURL:          headers.Get(HeaderCertURL),
		TransmissionID:   headers.Get(HeaderTransmissionID),
		TransmissionSig:  headers.Get(HeaderTransmissionSig),
		TransmissionTime: headers.Get(HeaderTransmissionTime),
		WebhookID:        p.cfg.WebhookID,
	}
	if payload.AuthAlgo == "" || payload.CertURL == "" || payload.TransmissionID == "" ||
		payload.TransmissionSig == "" || payload.TransmissionTime == "" {
		return provider.Outcome{}, fmt.Errorf("%w: incomplete paypal transmission headers", provider.ErrMalformedSignature)
	}
	if !json.Valid(rawBody) {
		return provider.Outcome{}, fmt.Errorf("%w: event body is not valid JSON", provider.ErrMalformedSignature)
	}
	payload.WebhookEvent = json.RawMessage(rawBody)

	token, err := p.tokens.AccessToken(ctx)
	if err != nil {
		return provider.Outcome{}, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return provider.Outcome{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.APIBase+"/v1/notifications/verify-webhook-signature", bytes.NewReader(body))
	if err != nil {
		return provider.Outcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return provider.Outcome{}, fmt.Errorf("paypal verification call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.Warn("paypal verification endpoint returned non-2xx", zap.Int("status", resp.StatusCode))
		return provider.Outcome{Valid: false, Detail: fmt.Sprintf("verification endpoint status %d", resp.StatusCode)}, nil
	}

	var verdict verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return provider.Outcome{Valid: false, Detail: "unreadable verification response"}, nil
	}
	if verdict.VerificationStatus != verificationSuccess {
		return provider.Outcome{Valid: false, Detail: "verification_status=" + verdict.VerificationStatus}, nil
	}
	return provider.Outcome{Valid: true}, nil
}

// Normalize maps a PayPal event onto the canonical order record. Amounts are
// already in major units and pass through verbatim, never divided.
func (p *Provider) Normalize(_ context.Context, event map[string]any, now time.Time) (entity.OrderRecord, error) {
	record := entity.OrderRecord{
		Provider:      string(provider.TagPayPal),
		RawEventID:    provider.FirstString(event, "id"),
		LastEventType: provider.FirstString(event, "event_type"),
		LastEventAt:   now.UTC(),
	}

	resource := provider.NestedMap(event, "resource")
	if resource == nil {
		resource = map[string]any{}
	}

	record.OrderID = provider.FirstString(resource, "id")

	amount, currency := resolveAmount(resource)
	record.Amount = amount
	record.Currency = strings.ToUpper(currency)

	record.Status = provider.FirstString(resource, "status")
	if record.Status == "" {
		record.Status = record.LastEventType
	}

	if created := provider.FirstString(resource, "create_time"); created != "" {
		if at, err := time.Parse(time.RFC3339, created); err == nil {
			record.LastEventAt = at.UTC()
		}
	}

	if custom := provider.FirstString(resource, "custom_id"); custom != "" {
		if encoded, err := json.Marshal(map[string]string{"custom_id": custom}); err == nil {
			record.Metadata = string(encoded)
		}
	}

	if payer := provider.NestedMap(resource, "payer"); payer != nil {
		record.CustomerEmail = provider.FirstString(payer, "email_address")
	}

	return record, nil
}

// resolveAmount picks the first present amount: the capture gross breakdown,
// the first purchase unit, then the flat amount field.
func resolveAmount(resource map[string]any) (value, currency string) {
	if gross := provider.NestedMap(resource, "seller_receivable_breakdown", "gross_amount"); gross != nil {
		if v := provider.FirstString(gross, "value"); v != "" {
			return v, provider.FirstString(gross, "currency_code", "currency")
		}
	}
	if units, ok := resource["purchase_units"].([]any); ok && len(units) > 0 {
		if unit, ok := units[0].(map[string]any); ok {
			if amount := provider.NestedMap(unit, "amount"); amount != nil {
				if v := provider.FirstString(amount, "value"); v != "" {
					return v, provider.FirstString(amount, "currency_code", "currency")
				}
			}
		}
	}
	if amount := provider.NestedMap(resource, "amount"); amount != nil {
		if v := provider.FirstString(amount, "value"); v != "" {
			return v, provider.FirstString(amount, "currency_code", "currency")
		}
	}
	return "", ""
}
