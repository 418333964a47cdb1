package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
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
	service "github.com/SystonTigers/app-sub004/internal/service/webhook"
)

const testSecret = "whsec_handler"

var dbSeq int

func newTestEcho(t *testing.T) *echo.Echo {
	t.Helper()
	dbSeq++
	dsn := fmt.Sprintf("file:handler_%s_%d?mode=memory&cache=shared", t.Name(), dbSeq)
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

	svc := service.NewService(service.Params{
		Registry: provider.NewRegistry(stripe.New(stripe.Config{WebhookSecret: testSecret})),
		Ledger:   repo.NewRepository(&database.Connections{Writer: db, Reader: db}),
		Config:   config.Config{},
		Logger:   zap.NewNop(),
	})

	e := echo.New()
	Register(e, NewHandler(svc))
	return e
}

func signatureFor(body string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(ts + "." + body))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func deliver(e *echo.Echo, path, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(stripe.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type webhookEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		Success   bool   `json:"success"`
		Updated   bool   `json:"updated"`
		Duplicate bool   `json:"duplicate"`
		Ignored   bool   `json:"ignored"`
		Provider  string `json:"provider"`
		OrderID   string `json:"order_id"`
		EventID   string `json:"event_id"`
	} `json:"data"`
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) webhookEnvelope {
	t.Helper()
	var envelope webhookEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

const checkoutBody = `{"id":"evt_1","type":"checkout.session.completed","created":1709294400,"data":{"object":{"id":"cs_1","amount_total":4999,"currency":"gbp","payment_status":"paid"}}}`

func TestReceive_Success(t *testing.T) {
	e := newTestEcho(t)

	rec := deliver(e, "/webhooks/stripe", checkoutBody, signatureFor(checkoutBody))
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.True(t, envelope.Success)
	assert.True(t, envelope.Data.Updated)
	assert.Equal(t, "stripe", envelope.Data.Provider)
	assert.Equal(t, "cs_1", envelope.Data.OrderID)
	assert.Equal(t, "evt_1", envelope.Data.EventID)
}

func TestReceive_Redelivery(t *testing.T) {
	e := newTestEcho(t)
	signature := signatureFor(checkoutBody)

	rec := deliver(e, "/webhooks/stripe", checkoutBody, signature)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = deliver(e, "/webhooks/stripe", checkoutBody, signature)
	require.Equal(t, http.StatusOK, rec.Code, "replays are acknowledged so the provider stops retrying")

	envelope := decodeEnvelope(t, rec)
	assert.True(t, envelope.Data.Duplicate)
	assert.False(t, envelope.Data.Updated)
}

func TestReceive_BadSignature(t *testing.T) {
	e := newTestEcho(t)

	tampered := strings.Replace(checkoutBody, "4999", "1", 1)
	rec := deliver(e, "/webhooks/stripe", tampered, signatureFor(checkoutBody))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.False(t, envelope.Success)
	assert.Equal(t, "unauthorized", envelope.Error.Kind)
}

func TestReceive_MissingSignatureHeader(t *testing.T) {
	e := newTestEcho(t)

	rec := deliver(e, "/webhooks/stripe", checkoutBody, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceive_UnknownProvider(t *testing.T) {
	e := newTestEcho(t)

	rec := deliver(e, "/webhooks/square", checkoutBody, signatureFor(checkoutBody))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "bad_request", envelope.Error.Kind)
}

func TestReceive_IgnoredEvent(t *testing.T) {
	e := newTestEcho(t)

	body := `{"id":"evt_ping","type":"ping","data":{}}`
	rec := deliver(e, "/webhooks/stripe", body, signatureFor(body))
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.True(t, envelope.Data.Ignored)
	assert.Empty(t, envelope.Data.OrderID)
}
