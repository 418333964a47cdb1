package order

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/SystonTigers/app-sub004/internal/cache"
	"github.com/SystonTigers/app-sub004/internal/config"
	"github.com/SystonTigers/app-sub004/internal/entity"
	repo "github.com/SystonTigers/app-sub004/internal/repository/order"
	"github.com/SystonTigers/app-sub004/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/SystonTigers/app-sub004/service/order")

// Service exposes read access to reconciled orders. Writes go exclusively
// through the webhook processor; this service never mutates the ledger.
type Service struct {
	repo     *repo.Repository
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:     p.Repository,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		logger:   p.Logger,
	}
}

// Get retrieves the order for (provider, order id), consulting cache first.
func (s *Service) Get(ctx context.Context, providerTag, orderID string) (*entity.OrderRecord, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(
		attribute.String("order.provider", providerTag),
		attribute.String("order.id", orderID),
	))
	defer span.End()

	if record, err := s.getFromCache(ctx, providerTag, orderID); err == nil {
		return record, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		if s.logger != nil {
			s.logger.Warn("orders cache read failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	record, err := s.repo.GetByKey(ctx, providerTag, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, record); err != nil {
		if s.logger != nil {
			s.logger.Warn("orders cache write failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	return record, nil
}

func (s *Service) getFromCache(ctx context.Context, providerTag, orderID string) (*entity.OrderRecord, error) {
	var record entity.OrderRecord
	if err := cache.GetJSON(ctx, s.cache, cache.OrderKey(providerTag, orderID), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Service) storeInCache(ctx context.Context, record *entity.OrderRecord) error {
	if record == nil {
		return nil
	}
	return cache.SetJSON(ctx, s.cache, cache.OrderKey(record.Provider, record.OrderID), record, s.cacheTTL)
}
