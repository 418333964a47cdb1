package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/SystonTigers/app-sub004/internal/cache"
	"github.com/SystonTigers/app-sub004/internal/config"
	"github.com/SystonTigers/app-sub004/internal/dto"
	"github.com/SystonTigers/app-sub004/internal/entity"
	"github.com/SystonTigers/app-sub004/internal/messaging"
	"github.com/SystonTigers/app-sub004/internal/metrics"
	"github.com/SystonTigers/app-sub004/internal/provider"
	repo "github.com/SystonTigers/app-sub004/internal/repository/order"
	"github.com/SystonTigers/app-sub004/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/SystonTigers/app-sub004/service/webhook")

// Service orchestrates verify, parse, normalize and upsert for inbound
// webhook deliveries. Every failure leaves through a typed errorbank error;
// nothing propagates as an unstructured fault past Process.
type Service struct {
	registry  *provider.Registry
	ledger    *repo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
	now       func() time.Time
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Registry  *provider.Registry
	Ledger    *repo.Repository
	Cache     cache.Store
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires a new Service instance. Absent provider credentials are
// reported once here; at request time they surface as configuration errors so
// providers keep retrying delivery.
func NewService(p Params) *Service {
	if p.Logger != nil {
		if p.Config.Providers.Stripe.WebhookSecret == "" {
			p.Logger.Warn("stripe webhook secret not configured")
		}
		pp := p.Config.Providers.PayPal
		if pp.ClientID == "" || pp.ClientSecret == "" || pp.WebhookID == "" {
			p.Logger.Warn("paypal webhook credentials not fully configured")
		}
	}
	return &Service{
		registry:  p.Registry,
		ledger:    p.Ledger,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Process runs one webhook delivery through verification, normalization and
// the ledger upsert. Headers must carry the provider's signature material;
// rawBody is the exact request body, unparsed.
func (s *Service) Process(ctx context.Context, tag provider.Tag, rawBody []byte, headers provider.Headers) (result dto.WebhookResult, err error) {
	started := s.now()
	metrics.WebhooksReceivedTotal.WithLabelValues(string(tag)).Inc()

	ctx, span := serviceTracer.Start(ctx, "WebhookService.Process", trace.WithAttributes(
		attribute.String("webhook.provider", string(tag)),
	))
	defer span.End()

	defer func() {
		metrics.WebhookProcessingDuration.WithLabelValues(string(tag)).Observe(s.now().Sub(started).Seconds())
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "panic")
			s.logger.Error("webhook processing panicked", zap.String("provider", string(tag)), zap.Any("panic", r))
			result = dto.WebhookResult{Provider: string(tag)}
			err = errorbank.Internal("webhook processing failed", errorbank.WithCause(fmt.Errorf("panic: %v", r)))
		}
		if err != nil {
			span.RecordError(err)
		}
	}()

	result = dto.WebhookResult{Provider: string(tag)}

	if len(rawBody) == 0 {
		metrics.WebhooksRejectedTotal.WithLabelValues(string(tag), "payload").Inc()
		return result, errorbank.BadRequest("empty payload")
	}

	prov, lookupErr := s.registry.Lookup(tag)
	if lookupErr != nil {
		metrics.WebhooksRejectedTotal.WithLabelValues(string(tag), "payload").Inc()
		return result, errorbank.BadRequest("unknown provider", errorbank.WithCause(lookupErr))
	}

	outcome, verifyErr := prov.Verify(ctx, rawBody, headers)
	if verifyErr != nil {
		switch {
		case errors.Is(verifyErr, provider.ErrMissingSecret):
			return result, errorbank.Configuration("provider credentials missing", errorbank.WithCause(verifyErr))
		case errors.Is(verifyErr, provider.ErrMalformedSignature):
			metrics.WebhooksRejectedTotal.WithLabelValues(string(tag), "payload").Inc()
			return result, errorbank.BadRequest("malformed signature input", errorbank.WithCause(verifyErr))
		default:
			return result, errorbank.Internal("verification unavailable", errorbank.WithCause(verifyErr))
		}
	}
	if !outcome.Valid {
		metrics.WebhooksRejectedTotal.WithLabelValues(string(tag), "authentication").Inc()
		s.logger.Warn("webhook signature rejected",
			zap.String("provider", string(tag)),
			zap.String("detail", outcome.Detail),
		)
		return result, errorbank.Unauthorized("signature verification failed")
	}

	var event map[string]any
	if parseErr := json.Unmarshal(rawBody, &event); parseErr != nil {
		metrics.WebhooksRejectedTotal.WithLabelValues(string(tag), "payload").Inc()
		return result, errorbank.BadRequest("invalid payload", errorbank.WithCause(parseErr))
	}

	record, normErr := prov.Normalize(ctx, event, s.now())
	if normErr != nil {
		return result, errorbank.Internal("event normalization failed", errorbank.WithCause(normErr))
	}
	result.EventID = record.RawEventID
	result.OrderID = record.OrderID

	if record.OrderID == "" {
		// Some event types carry no order-identifying object; acknowledge
		// without mutating so the provider does not redeliver.
		metrics.WebhooksIgnoredTotal.WithLabelValues(string(tag)).Inc()
		s.logger.Debug("webhook event ignored",
			zap.String("provider", string(tag)),
			zap.String("event_id", record.RawEventID),
			zap.String("event_type", record.LastEventType),
		)
		result.Success = true
		result.Ignored = true
		return result, nil
	}

	span.SetAttributes(
		attribute.String("order.id", record.OrderID),
		attribute.String("webhook.event_id", record.RawEventID),
	)

	upsert, storeErr := s.ledger.Upsert(ctx, &record)
	if storeErr != nil {
		span.SetStatus(codes.Error, "ledger error")
		return result, errorbank.Internal("ledger write failed", errorbank.WithCause(storeErr))
	}

	result.Success = true
	result.Updated = upsert.Updated
	result.Duplicate = upsert.Duplicate

	if upsert.Duplicate {
		metrics.WebhooksDuplicateTotal.WithLabelValues(string(tag)).Inc()
		return result, nil
	}

	metrics.WebhooksAppliedTotal.WithLabelValues(string(tag)).Inc()
	s.refreshCache(ctx, &record)
	s.publishReconciled(ctx, &record)

	return result, nil
}

func (s *Service) refreshCache(ctx context.Context, record *entity.OrderRecord) {
	key := cache.OrderKey(record.Provider, record.OrderID)
	if err := cache.SetJSON(ctx, s.cache, key, record, s.cacheTTL); err != nil {
		s.logger.Warn("orders cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) publishReconciled(ctx context.Context, record *entity.OrderRecord) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := OrderReconciledEvent{
		Provider:    record.Provider,
		OrderID:     record.OrderID,
		Status:      record.Status,
		Amount:      record.Amount,
		Currency:    record.Currency,
		EventID:     record.RawEventID,
		EventType:   record.LastEventType,
		LastEventAt: record.LastEventAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order reconciled", zap.Error(err))
		return
	}
	key := []byte(fmt.Sprintf("%s-%s", record.Provider, record.OrderID))
	headers := []messaging.Header{
		{Key: "provider", Value: record.Provider},
		{Key: "event_type", Value: record.LastEventType},
	}
	if err := s.publisher.Publish(ctx, key, payload, headers...); err != nil {
		s.logger.Error("publish order reconciled", zap.Error(err))
	}
}

// OrderReconciledEvent is emitted after a webhook mutates the ledger.
type OrderReconciledEvent struct {
	Provider    string    `json:"provider"`
	OrderID     string    `json:"order_id"`
	Status      string    `json:"status"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	LastEventAt time.Time `json:"last_event_at"`
}
