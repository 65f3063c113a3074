// Package writer persists quotes and movement events to Postgres. The store
// schema is an external collaborator's concern; the writer supplies the two
// value shapes verbatim.
package writer

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/vigorish/oddscore/pkg/models"
)

// PostgresWriter writes core value shapes as rows.
type PostgresWriter struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresWriter{db: db}, nil
}

// NewPostgresWriter wraps an existing connection (used in tests).
func NewPostgresWriter(db *sql.DB) *PostgresWriter {
	return &PostgresWriter{db: db}
}

// WriteQuote upserts the latest quote for its series key.
func (w *PostgresWriter) WriteQuote(ctx context.Context, q models.Quote) error {
	query := `
		INSERT INTO quotes (
			event_id, market_type, provider, side, line,
			price_american, observed_at, sequence
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id, market_type, provider, side, COALESCE(line, 0))
		DO UPDATE SET
			price_american = EXCLUDED.price_american,
			observed_at = EXCLUDED.observed_at,
			sequence = EXCLUDED.sequence
		WHERE quotes.observed_at < EXCLUDED.observed_at
	`

	_, err := w.db.ExecContext(ctx, query,
		q.EventID, string(q.MarketType), q.Provider, string(q.Side), nullLine(q.Line),
		q.PriceAmerican, q.ObservedAt, q.Sequence,
	)
	if err != nil {
		return fmt.Errorf("failed to write quote: %w", err)
	}
	return nil
}

// WriteMovementEvent appends a movement event row.
func (w *PostgresWriter) WriteMovementEvent(ctx context.Context, ev models.MovementEvent) error {
	query := `
		INSERT INTO movement_events (
			key, kind, magnitude, from_price, to_price,
			provider, provider_count, degraded, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := w.db.ExecContext(ctx, query,
		ev.Key, string(ev.Kind), ev.Magnitude,
		ev.FromQuote.PriceAmerican, ev.ToQuote.PriceAmerican,
		ev.ToQuote.Provider, ev.ProviderCount, ev.Degraded, ev.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write movement event: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (w *PostgresWriter) Close() error {
	return w.db.Close()
}

func nullLine(line *float64) sql.NullFloat64 {
	if line == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *line, Valid: true}
}
