package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	"github.com/SystonTigers/app-sub004/internal/config"
	"github.com/SystonTigers/app-sub004/internal/database"
	"github.com/SystonTigers/app-sub004/internal/provider"
	"github.com/SystonTigers/app-sub004/internal/provider/stripe"
	repo "github.com/SystonTigers/app-sub004/internal/repository/order"
	"github.com/SystonTigers/app-sub004/pkg/errorbank"
)

const testSecret = "whsec_test"

var dbSeq int

func newTestLedger(t *testing.T) *repo.Repository {
	t.Helper()
	dbSeq++
	dsn := fmt.Sprintf("file:webhook_%s_%d?mode=memory&cache=shared", t.Name(), dbSeq)
	sqldb, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	db := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = db.Exec(`CREATE TABLE orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id VARCHAR(255) NOT NULL,
		provider VARCHAR(32) NOT NULL,
		status VARCHAR(255),
		amount VARCHAR(64),
		currency VARCHAR(8),
		customer_email VARCHAR(255),
		metadata TEXT,
		last_event_type VARCHAR(255),
		last_event_at TIMESTAMP,
		raw_event_id VARCHAR(255) NOT NULL,
		updated_at TIMESTAMP
	)`)
	require.NoError(t, err)

	return repo.NewRepository(&database.Connections{Writer: db, Reader: db})
}

func newTestService(t *testing.T, secret string) (*Service, *repo.Repository) {
	t.Helper()
	ledger := newTestLedger(t)
	svc := NewService(Params{
		Registry: provider.NewRegistry(stripe.New(stripe.Config{WebhookSecret: secret})),
		Ledger:   ledger,
		Config:   config.Config{},
		Logger:   zap.NewNop(),
	})
	return svc, ledger
}

func signedHeaders(t *testing.T, secret, body string) provider.Headers {
	t.Helper()
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + body))
	return provider.Headers{
		stripe.SignatureHeader: fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))),
	}
}

func requireKind(t *testing.T, err error, kind errorbank.Kind) {
	t.Helper()
	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, kind, appErr.Kind())
}

const checkoutBody = `{
	"id": "evt_1",
	"type": "checkout.session.completed",
	"created": 1709294400,
	"data": {
		"object": {
			"id": "cs_1",
			"amount_total": 4999,
			"currency": "gbp",
			"payment_status": "paid",
			"customer_email": "fan@example.com"
		}
	}
}`

func TestProcess_AppliesVerifiedEvent(t *testing.T) {
	svc, ledger := newTestService(t, testSecret)

	result, err := svc.Process(context.Background(), provider.TagStripe, []byte(checkoutBody), signedHeaders(t, testSecret, checkoutBody))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Updated)
	assert.False(t, result.Duplicate)
	assert.Equal(t, "stripe", result.Provider)
	assert.Equal(t, "cs_1", result.OrderID)
	assert.Equal(t, "evt_1", result.EventID)

	stored, err := ledger.GetByKey(context.Background(), "stripe", "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "49.99", stored.Amount)
	assert.Equal(t, "GBP", stored.Currency)
	assert.Equal(t, "paid", stored.Status)
}

func TestProcess_ReplayedEventIsDuplicate(t *testing.T) {
	svc, _ := newTestService(t, testSecret)
	ctx := context.Background()
	headers := signedHeaders(t, testSecret, checkoutBody)

	_, err := svc.Process(ctx, provider.TagStripe, []byte(checkoutBody), headers)
	require.NoError(t, err)

	result, err := svc.Process(ctx, provider.TagStripe, []byte(checkoutBody), headers)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Duplicate)
	assert.False(t, result.Updated)
}

func TestProcess_EmptyPayload(t *testing.T) {
	svc, _ := newTestService(t, testSecret)

	_, err := svc.Process(context.Background(), provider.TagStripe, nil, provider.Headers{})
	requireKind(t, err, errorbank.KindBadRequest)
}

func TestProcess_UnknownProvider(t *testing.T) {
	svc, _ := newTestService(t, testSecret)

	_, err := svc.Process(context.Background(), provider.Tag("paypal"), []byte(checkoutBody), provider.Headers{})
	requireKind(t, err, errorbank.KindBadRequest)
}

func TestProcess_TamperedBodyRejected(t *testing.T) {
	svc, ledger := newTestService(t, testSecret)

	headers := signedHeaders(t, testSecret, checkoutBody)
	tampered := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","amount_total":1}}}`)
	_, err := svc.Process(context.Background(), provider.TagStripe, tampered, headers)
	requireKind(t, err, errorbank.KindUnauthorized)

	_, err = ledger.GetByKey(context.Background(), "stripe", "cs_1")
	assert.ErrorIs(t, err, repo.ErrNotFound, "rejected deliveries must not touch the ledger")
}

func TestProcess_MalformedSignatureHeader(t *testing.T) {
	svc, _ := newTestService(t, testSecret)

	headers := provider.Headers{stripe.SignatureHeader: "v1=deadbeef"}
	_, err := svc.Process(context.Background(), provider.TagStripe, []byte(checkoutBody), headers)
	requireKind(t, err, errorbank.KindBadRequest)
}

func TestProcess_MissingSecretIsConfiguration(t *testing.T) {
	svc, _ := newTestService(t, "")

	_, err := svc.Process(context.Background(), provider.TagStripe, []byte(checkoutBody), signedHeaders(t, testSecret, checkoutBody))
	requireKind(t, err, errorbank.KindConfiguration)

	var appErr *errorbank.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 500, appErr.StatusCode(), "configuration faults must read as server errors so providers retry")
}

func TestProcess_InvalidJSONAfterValidSignature(t *testing.T) {
	svc, _ := newTestService(t, testSecret)

	body := "not json"
	_, err := svc.Process(context.Background(), provider.TagStripe, []byte(body), signedHeaders(t, testSecret, body))
	requireKind(t, err, errorbank.KindBadRequest)
}

func TestProcess_EventWithoutOrderIsIgnored(t *testing.T) {
	svc, _ := newTestService(t, testSecret)

	body := `{"id":"evt_ping","type":"ping","data":{}}`
	result, err := svc.Process(context.Background(), provider.TagStripe, []byte(body), signedHeaders(t, testSecret, body))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Ignored)
	assert.False(t, result.Updated)
	assert.Empty(t, result.OrderID)
}
