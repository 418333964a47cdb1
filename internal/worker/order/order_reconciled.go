package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/SystonTigers/app-sub004/internal/config"
	"github.com/SystonTigers/app-sub004/internal/messaging"
	webhooksvc "github.com/SystonTigers/app-sub004/internal/service/webhook"
	"github.com/SystonTigers/app-sub004/internal/worker"
)

var workerTracer = otel.Tracer("github.com/SystonTigers/app-sub004/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewOrderReconciledHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewOrderReconciledHandler sets up a worker handler that consumes ledger
// reconciliation events published by the webhook processor.
func NewOrderReconciledHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.reconciled", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event webhooksvc.OrderReconciledEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order reconciled", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		logger.Info("order reconciled event processed",
			zap.String("provider", event.Provider),
			zap.String("order_id", event.OrderID),
			zap.String("status", event.Status),
			zap.String("event_id", event.EventID),
		)

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
