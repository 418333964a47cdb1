package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag(t *testing.T) {
	cases := []struct {
		raw  string
		want Tag
		ok   bool
	}{
		{"stripe", TagStripe, true},
		{"paypal", TagPayPal, true},
		{"Stripe", TagStripe, true},
		{" PAYPAL ", TagPayPal, true},
		{"square", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		tag, err := ParseTag(tc.raw)
		if tc.ok {
			require.NoError(t, err, tc.raw)
			assert.Equal(t, tc.want, tag)
		} else {
			assert.Error(t, err, tc.raw)
		}
	}
}

func TestHeadersGetIsCaseInsensitive(t *testing.T) {
	h := Headers{"Stripe-Signature": "t=1,v1=abc"}

	assert.Equal(t, "t=1,v1=abc", h.Get("Stripe-Signature"))
	assert.Equal(t, "t=1,v1=abc", h.Get("stripe-signature"))
	assert.Equal(t, "t=1,v1=abc", h.Get("STRIPE-SIGNATURE"))
	assert.Empty(t, h.Get("Paypal-Transmission-Id"))
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Lookup(TagStripe)
	assert.Error(t, err)
}

func TestFirstString(t *testing.T) {
	obj := map[string]any{
		"id":             "",
		"payment_intent": "pi_1",
		"amount":         42,
	}

	assert.Equal(t, "pi_1", FirstString(obj, "id", "payment_intent"))
	assert.Empty(t, FirstString(obj, "id", "amount"))
	assert.Empty(t, FirstString(nil, "id"))
}

func TestNestedMap(t *testing.T) {
	obj := map[string]any{
		"data": map[string]any{
			"object": map[string]any{"id": "cs_1"},
		},
	}

	require.NotNil(t, NestedMap(obj, "data", "object"))
	assert.Equal(t, "cs_1", NestedMap(obj, "data", "object")["id"])
	assert.Nil(t, NestedMap(obj, "data", "missing"))
	assert.Nil(t, NestedMap(obj, "resource"))
}
