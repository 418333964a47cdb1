package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/SystonTigers/app-sub004/internal/database"
	"github.com/SystonTigers/app-sub004/internal/entity"
)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Orders seeds example reconciled orders if they are missing.
func (s *Seeder) Orders(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.OrderRecord{
		{
			OrderID:       "cs_test_seed_1000",
			Provider:      "stripe",
			Status:        "paid",
			Amount:        "49.99",
			Currency:      "GBP",
			LastEventType: "checkout.session.completed",
			LastEventAt:   now,
			RawEventID:    "evt_seed_1000",
			UpdatedAt:     now,
		},
		{
			OrderID:       "5O190127TN364715T",
			Provider:      "paypal",
			Status:        "COMPLETED",
			Amount:        "25.00",
			Currency:      "USD",
			LastEventType: "PAYMENT.CAPTURE.COMPLETED",
			LastEventAt:   now,
			RawEventID:    "WH-seed-1001",
			UpdatedAt:     now,
		},
	}

	for _, sample := range samples {
		record := sample
		_, err := s.db.NewInsert().Model(&record).
			On("CONFLICT (raw_event_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	}
	return nil
}
