package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SystonTigers/app-sub004/internal/database"
	"github.com/SystonTigers/app-sub004/internal/entity"
)

var repoTracer = otel.Tracer("github.com/SystonTigers/app-sub004/repository/order")

// ErrNotFound is returned when no ledger row matches the requested key.
var ErrNotFound = errors.New("order record not found")

// UpsertResult reports what an Upsert did. Duplicate means the event id was
// already processed and nothing changed.
type UpsertResult struct {
	Updated   bool
	Duplicate bool
}

// Repository is the order ledger: an idempotent upsert store keyed by the
// provider's event id and by (provider, order id).
type Repository struct {
	writer *bun.DB
	reader *bun.DB
	locks  keyLocks
}

// NewRepository wires the ledger against the configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Upsert applies a normalized record exactly once. Replayed events (same
// RawEventID) are recognized and produce no mutation; otherwise the row for
// (Provider, OrderID) is fully replaced, or created when absent. Writes for
// the same key are serialized so concurrent events cannot interleave fields
// or double-insert.
func (r *Repository) Upsert(ctx context.Context, record *entity.OrderRecord) (UpsertResult, error) {
	if record == nil {
		return UpsertResult{}, errors.New("nil order record")
	}
	ctx, span := repoTracer.Start(ctx, "OrderLedger.Upsert", trace.WithAttributes(
		attribute.String("order.provider", record.Provider),
		attribute.String("order.id", record.OrderID),
	))
	defer span.End()

	unlock := r.locks.lock(record.Provider + ":" + record.OrderID)
	defer unlock()

	if err := r.ensureColumns(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "schema check failed")
		return UpsertResult{}, err
	}

	record.UpdatedAt = time.Now().UTC()

	var result UpsertResult
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*entity.OrderRecord)(nil)).
			Where("raw_event_id = ?", record.RawEventID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("scan event id: %w", err)
		}
		if exists {
			result = UpsertResult{Duplicate: true}
			return nil
		}

		current := new(entity.OrderRecord)
		err = tx.NewSelect().
			Model(current).
			Where("provider = ?", record.Provider).
			Where("order_id = ?", record.OrderID).
			Limit(1).
			Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
				return fmt.Errorf("insert record: %w", err)
			}
		case err != nil:
			return fmt.Errorf("scan order key: %w", err)
		default:
			// Full replace of every field, keyed by the existing row id.
			record.ID = current.ID
			if _, err := tx.NewUpdate().Model(record).WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("replace record: %w", err)
			}
		}
		result = UpsertResult{Updated: true}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return UpsertResult{}, err
	}

	span.SetAttributes(
		attribute.Bool("order.updated", result.Updated),
		attribute.Bool("order.duplicate", result.Duplicate),
	)
	return result, nil
}

// GetByKey fetches the ledger row for (provider, order id) using the read
// replica when available.
func (r *Repository) GetByKey(ctx context.Context, providerTag, orderID string) (*entity.OrderRecord, error) {
	ctx, span := repoTracer.Start(ctx, "OrderLedger.GetByKey", trace.WithAttributes(
		attribute.String("order.provider", providerTag),
		attribute.String("order.id", orderID),
	))
	defer span.End()

	record := new(entity.OrderRecord)
	err := r.reader.NewSelect().
		Model(record).
		Where("provider = ?", providerTag).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return record, nil
}

// columnTypes maps required ledger columns onto portable DDL types for
// additive schema evolution.
var columnTypes = map[string]string{
	"last_event_at": "TIMESTAMP",
	"updated_at":    "TIMESTAMP",
	"metadata":      "TEXT",
}

// ensureColumns inspects the live column set and adds any required column
// that is missing. Columns are only ever added, never dropped or reordered,
// so rows written by older deployments stay valid.
func (r *Repository) ensureColumns(ctx context.Context) error {
	rows, err := r.writer.QueryContext(ctx, "SELECT * FROM orders LIMIT 0")
	if err != nil {
		return fmt.Errorf("inspect ledger columns: %w", err)
	}
	existing, err := rows.Columns()
	if closeErr := rows.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("inspect ledger columns: %w", err)
	}

	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[strings.ToLower(name)] = true
	}

	for _, column := range entity.LedgerColumns {
		if present[column] {
			continue
		}
		ddlType, ok := columnTypes[column]
		if !ok {
			ddlType = "VARCHAR(255)"
		}
		_, err := r.writer.NewAddColumn().
			Model((*entity.OrderRecord)(nil)).
			ColumnExpr("? ?", bun.Ident(column), bun.Safe(ddlType)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("add ledger column %s: %w", column, err)
		}
	}
	return nil
}

// keyLocks serializes upserts per (provider, order id). Entries are retained
// for the process lifetime; the key space is bounded by distinct live orders.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &sync.Mutex{}
		k.locks[key] = entry
	}
	k.mu.Unlock()

	entry.Lock()
	return entry.Unlock
}
