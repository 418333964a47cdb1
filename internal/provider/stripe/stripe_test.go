package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SystonTigers/app-sub004/internal/provider"
)

const testSecret = "whsec_test_secret"

func signBody(t *testing.T, secret, timestamp, body string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + body))
	return hex.EncodeToString(mac.Sum(nil))
}

func signedHeaders(t *testing.T, secret, body string) provider.Headers {
	t.Helper()
	ts := "1700000000"
	return provider.Headers{
		SignatureHeader: fmt.Sprintf("t=%s,v1=%s", ts, signBody(t, secret, ts, body)),
	}
}

func TestVerify_ValidSignature(t *testing.T) {
	p := New(Config{WebhookSecret: testSecret})
	body := `{"id":"evt_1","type":"checkout.session.completed"}`

	outcome, err := p.Verify(context.Background(), []byte(body), signedHeaders(t, testSecret, body))
	require.NoError(t, err)
	assert.True(t, outcome.Valid)
}

func TestVerify_LowercaseHeaderName(t *testing.T) {
	p := New(Config{WebhookSecret: testSecret})
	body := `{"id":"evt_1"}`
	ts := "1700000000"
	headers := provider.Headers{
		"stripe-signature": fmt.Sprintf("t=%s,v1=%s", ts, signBody(t, testSecret, ts, body)),
	}

	outcome, err := p.Verify(context.Background(), []byte(body), headers)
	require.NoError(t, err)
	assert.True(t, outcome.Valid)
}

func TestVerify_TamperedBodyFails(t *testing.T) {
	p := New(Config{WebhookSecret: testSecret})
	body := `{"id":"evt_1","amount":100}`
	headers := signedHeaders(t, testSecret, body)

	tampered := []byte(`{"id":"evt_1","amount":101}`)
	outcome, err := p.Verify(context.Background(), tampered, headers)
	require.NoError(t, err)
	assert.False(t, outcome.Valid)
	assert.NotEmpty(t, outcome.Detail)
}

func TestVerify_WrongSecretFails(t *testing.T) {
	p := New(Config{WebhookSecret: "whsec_other"})
	body := `{"id":"evt_1"}`

	outcome, err := p.Verify(context.Background(), []byte(body), signedHeaders(t, testSecret, body))
	require.NoError(t, err)
	assert.False(t, outcome.Valid)
}

func TestVerify_SecondCandidateMatches(t *testing.T) {
	p := New(Config{WebhookSecret: testSecret})
	body := `{"id":"evt_1"}`
	ts := "1700000000"
	good := signBody(t, testSecret, ts, body)
	headers := provider.Headers{
		SignatureHeader: fmt.Sprintf("t=%s,v1=%s,v1=%s", ts, "deadbeef", good),
	}

	outcome, err := p.Verify(context.Background(), []byte(body), headers)
	require.NoError(t, err)
	assert.True(t, outcome.Valid)
}

func TestVerify_MalformedHeader(t *testing.T) {
	p := New(Config{WebhookSecret: testSecret})

	tests := []struct {
		name   string
		header string
	}{
		{"missing_timestamp", "v1=deadbeef"},
		{"missing_v1", "t=1700000000"},
		{"empty", ""},
		{"unrelated_keys_only", "t0=1,v0=abc"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			headers := provider.Headers{SignatureHeader: tc.header}
			_, err := p.Verify(context.Background(), []byte("{}"), headers)
			require.Error(t, err)
			assert.ErrorIs(t, err, provider.ErrMalformedSignature)
		})
	}
}

func TestVerify_MissingSecret(t *testing.T) {
	p := New(Config{})
	_, err := p.Verify(context.Background(), []byte("{}"), provider.Headers{SignatureHeader: "t=1,v1=ab"})
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrMissingSecret)
}

func mustEvent(t *testing.T, raw string) map[string]any {
	t.Helper()
	var event map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	return event
}

func TestNormalize_CheckoutSession(t *testing.T) {
	p := New(Config{WebhookSecret: testSecret})
	event := mustEvent(t, `{
		"id": "evt_100",
		"type": "checkout.session.completed",
		"created": 1700000100,
		"data": {"object": {
			"id": "cs_test_1",
			"amount_total": 4999,
			"currency": "gbp",
			"payment_status": "paid",
			"customer_email": "fan@example.com",
			"metadata": {"plan": "season"}
		}}
	}`)

	record, err := p.Normalize(context.Background(), event, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "stripe", record.Provider)
	assert.Equal(t, "cs_test_1", record.OrderID)
	assert.Equal(t, "49.99", record.Amount)
	assert.Equal(t, "GBP", record.Currency)
	assert.Equal(t, "paid", record.Status)
	assert.Equal(t, "evt_100", record.RawEventID)
	assert.Equal(t, "checkout.session.completed", record.LastEventType)
	assert.Equal(t, time.Unix(1700000100, 0).UTC(), record.LastEventAt)
	assert.Equal(t, "fan@example.com", record.CustomerEmail)
	assert.JSONEq(t, `{"plan":"season"}`, record.Metadata)
}

func TestNormalize_FallbackFields(t *testing.T) {
	p := New(Config{WebhookSecret: testSecret})

	t.Run("invoice_amount_due_and_payment_intent", func(t *testing.T) {
		event := mustEvent(t, `{
			"id": "evt_101",
			"type": "invoice.payment_succeeded",
			"data": {"object": {
				"payment_intent": "pi_123",
				"amount_due": 1050,
				"currency": "usd",
				"status": "open"
			}}
		}`)
		// invoices have no top-level id here, so the payment intent wins
		delete(event["data"].(map[string]any)["object"].(map[string]any), "id")

		record, err := p.Normalize(context.Background(), event, time.Now())
		require.NoError(t, err)
		assert.Equal(t, "pi_123", record.OrderID)
		assert.Equal(t, "10.50", record.Amount)
		assert.Equal(t, "open", record.Status)
	})

	t.Run("status_falls_back_to_event_type", func(t *testing.T) {
		event := mustEvent(t, `{
			"id": "evt_102",
			"type": "customer.subscription.deleted",
			"data": {"object": {"subscription": "sub_9"}}
		}`)

		record, err := p.Normalize(context.Background(), event, time.Now())
		require.NoError(t, err)
		assert.Equal(t, "sub_9", record.OrderID)
		assert.Equal(t, "customer.subscription.deleted", record.Status)
	})
}

func TestNormalize_NoOrderObject(t *testing.T) {
	p := New(Config{WebhookSecret: testSecret})
	event := mustEvent(t, `{"id": "evt_103", "type": "ping", "data": {"object": {}}}`)

	now := time.Now().UTC()
	record, err := p.Normalize(context.Background(), event, now)
	require.NoError(t, err)
	assert.Empty(t, record.OrderID)
	assert.Equal(t, now, record.LastEventAt)
}

func TestFormatMinorUnits(t *testing.T) {
	assert.Equal(t, "49.99", formatMinorUnits(4999))
	assert.Equal(t, "0.05", formatMinorUnits(5))
	assert.Equal(t, "10.00", formatMinorUnits(1000))
	assert.Equal(t, "-1.23", formatMinorUnits(-123))
}
