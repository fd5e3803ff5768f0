package repository

import (
	"context"

	"signal-scanner/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// TradeRepository journals trade records. Inserts are idempotent on the
// record id, so replaying a record is harmless.
type TradeRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewTradeRepository(pool PgxPool, tracer trace.Tracer) *TradeRepository {
	return &TradeRepository{pool: pool, tracer: tracer}
}

// SaveTrade inserts rec and reports whether a new row was written.
func (r *TradeRepository) SaveTrade(ctx context.Context, rec domain.TradeRecord) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "trade-repo.save-trade")
	defer span.End()
	span.SetAttributes(attribute.String("trade.id", rec.ID), attribute.String("symbol", rec.Symbol))

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO trades (id, symbol, side, quantity, price, executed_at, simulated, order_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Symbol, string(rec.Side), rec.Quantity, rec.Price, rec.Timestamp, rec.Simulated, rec.OrderID,
	)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecentTrades returns up to limit trades, newest first.
func (r *TradeRepository) RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	ctx, span := r.tracer.Start(ctx, "trade-repo.recent-trades")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, symbol, side, quantity::float8, price::float8, executed_at, simulated, order_id
		 FROM trades
		 ORDER BY executed_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var (
			t    domain.TradeRecord
			side string
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &side, &t.Quantity, &t.Price, &t.Timestamp, &t.Simulated, &t.OrderID); err != nil {
			return nil, err
		}
		t.Side = domain.OrderSide(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
