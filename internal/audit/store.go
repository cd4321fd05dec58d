package audit

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store writes audit records to PostgreSQL.
type Store struct {
	Pool *pgxpool.Pool
}

const insertSQL = `INSERT INTO checkout_audit
    (id, cart_id, session_id, status, redirect_url, currency, subtotal, shipping, tax, discount, total, promo_code, items, error, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO NOTHING`

// Insert implements Writer. Re-delivered records are ignored.
func (s Store) Insert(ctx context.Context, rec Record) error {
	if s.Pool == nil {
		return errors.New("audit: database pool not configured")
	}
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return fmt.Errorf("audit: encode items: %w", err)
	}
	_, err = s.Pool.Exec(ctx, insertSQL,
		rec.ID, rec.CartID, rec.SessionID, string(rec.Status), rec.RedirectURL, rec.Currency,
		rec.Subtotal, rec.Shipping, rec.Tax, rec.Discount, rec.Total, rec.PromoCode, items, rec.Error, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

const recentSQL = `SELECT id::text, cart_id, session_id, status, redirect_url, currency, subtotal, shipping, tax, discount, total, promo_code, items, error, created_at
FROM checkout_audit
WHERE ($1 = '' OR cart_id = $1)
ORDER BY created_at DESC
LIMIT $2`

// Recent lists the latest records, optionally for one cart.
func (s Store) Recent(ctx context.Context, cartID string, limit int) ([]Record, error) {
	if s.Pool == nil {
		return nil, errors.New("audit: database pool not configured")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, recentSQL, strings.TrimSpace(cartID), limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var (
			rec    Record
			status string
			items  []byte
		)
		if err := row.Scan(&rec.ID, &rec.CartID, &rec.SessionID, &status, &rec.RedirectURL, &rec.Currency,
			&rec.Subtotal, &rec.Shipping, &rec.Tax, &rec.Discount, &rec.Total, &rec.PromoCode, &items, &rec.Error, &rec.CreatedAt); err != nil {
			return Record{}, err
		}
		rec.Status = Status(status)
		if len(items) > 0 {
			if err := json.Unmarshal(items, &rec.Items); err != nil {
				return Record{}, fmt.Errorf("audit: decode items: %w", err)
			}
		}
		return rec, nil
	})
}

// Migrate applies the embedded schema migrations.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("audit: open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, MigrateURL(databaseURL))
	if err != nil {
		return fmt.Errorf("audit: init migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("audit: migrate up: %w", err)
	}
	return nil
}

// MigrateURL rewrites a postgres URL for the pgx/v5 migrate driver.
func MigrateURL(databaseURL string) string {
	trimmed := strings.TrimSpace(databaseURL)
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(trimmed, prefix) {
			return "pgx5://" + strings.TrimPrefix(trimmed, prefix)
		}
	}
	return trimmed
}
