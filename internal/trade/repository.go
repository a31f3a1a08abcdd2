package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edgewise/journal/internal/contracts"
)

// ErrNotFound is returned when a trade does not exist or is not owned
// by the requesting user.
var ErrNotFound = errors.New("trade not found")

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles trade persistence
type Repository struct {
	q querier
}

// NewRepository creates a new trade repository on the pool
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// WithTx returns a repository bound to the given transaction
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{q: tx}
}

const tradeColumns = `
	id, user_id, account_id, symbol, side, qty_units, entry_price, exit_price,
	open_time_utc, close_time_utc, gross_pnl, fees, net_pnl, created_at
`

// Insert persists one trade and fills its ID and creation time
func (r *Repository) Insert(ctx context.Context, t *contracts.Trade) error {
	query := `
		INSERT INTO trades (
			user_id, account_id, symbol, side, qty_units, entry_price, exit_price,
			open_time_utc, close_time_utc, gross_pnl, fees, net_pnl
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		t.UserID, t.AccountID, t.Symbol, t.Side, t.QtyUnits, t.EntryPrice, t.ExitPrice,
		t.OpenTime, t.CloseTime, t.GrossPnL, t.Fees, t.NetPnL,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	return nil
}

// Get returns one trade by ID
func (r *Repository) Get(ctx context.Context, userID, tradeID int64) (*contracts.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1 AND user_id = $2`

	t, err := scanTrade(r.q.QueryRow(ctx, query, tradeID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// ListFilter narrows List results
type ListFilter struct {
	AccountID *int64
	Start     *time.Time
	End       *time.Time
	Limit     int
}

// List returns a user's trades, most recent first by sequence time
func (r *Repository) List(ctx context.Context, userID int64, filter ListFilter) ([]contracts.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE user_id = $1`
	args := []any{userID}

	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		query += fmt.Sprintf(" AND account_id = $%d", len(args))
	}
	if filter.Start != nil {
		args = append(args, *filter.Start)
		query += fmt.Sprintf(" AND COALESCE(close_time_utc, open_time_utc) >= $%d", len(args))
	}
	if filter.End != nil {
		args = append(args, *filter.End)
		query += fmt.Sprintf(" AND COALESCE(close_time_utc, open_time_utc) < $%d", len(args))
	}

	query += " ORDER BY COALESCE(close_time_utc, open_time_utc) DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return r.queryTrades(ctx, query, args...)
}

// ListBetween returns the ledger slice for the streak series: trades
// whose sequence time (close time, open time as fallback) falls in
// [start, end), ordered ascending. A nil accountID unions all of the
// user's accounts.
func (r *Repository) ListBetween(ctx context.Context, userID int64, accountID *int64, start, end time.Time) ([]contracts.Trade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE user_id = $1
		  AND COALESCE(close_time_utc, open_time_utc) >= $2
		  AND COALESCE(close_time_utc, open_time_utc) < $3
	`
	args := []any{userID, start, end}

	if accountID != nil {
		args = append(args, *accountID)
		query += fmt.Sprintf(" AND account_id = $%d", len(args))
	}

	query += " ORDER BY COALESCE(close_time_utc, open_time_utc) ASC"

	return r.queryTrades(ctx, query, args...)
}

// Delete removes one trade. The streak checks recompute from the
// ledger on every call, so no invalidation is needed here.
func (r *Repository) Delete(ctx context.Context, userID, tradeID int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM trades WHERE id = $1 AND user_id = $2`, tradeID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) queryTrades(ctx context.Context, query string, args ...any) ([]contracts.Trade, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []contracts.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}

	return trades, rows.Err()
}

func scanTrade(row pgx.Row) (contracts.Trade, error) {
	var t contracts.Trade
	err := row.Scan(
		&t.ID, &t.UserID, &t.AccountID, &t.Symbol, &t.Side, &t.QtyUnits,
		&t.EntryPrice, &t.ExitPrice, &t.OpenTime, &t.CloseTime,
		&t.GrossPnL, &t.Fees, &t.NetPnL, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("failed to scan trade: %w", err)
	}
	return t, nil
}
