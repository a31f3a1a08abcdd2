package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edgewise/journal/internal/contracts"
)

// ErrNotFound is returned when a journal entry does not exist or is
// not owned by the requesting user.
var ErrNotFound = errors.New("journal entry not found")

// Repository stores daily journal entries and their trade links.
// Entries are keyed by (user, date, account); an absent account is one
// logical row per day.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new journal repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, user_id, account_id, entry_date, title, notes_md, reviewed, created_at, updated_at`

// Upsert inserts or updates the entry for the given user, date and
// account, filling ID and timestamps.
func (r *Repository) Upsert(ctx context.Context, e *contracts.JournalEntry) error {
	update := `
		UPDATE journal_entries
		SET title = $4, notes_md = $5, reviewed = $6, updated_at = NOW()
		WHERE user_id = $1
		  AND entry_date = $2
		  AND account_id IS NOT DISTINCT FROM $3
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, update,
		e.UserID, e.Date, e.AccountID, e.Title, e.NotesMD, e.Reviewed,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err == nil {
		return r.loadTradeIDs(ctx, e)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to update journal entry: %w", err)
	}

	insert := `
		INSERT INTO journal_entries (user_id, account_id, entry_date, title, notes_md, reviewed)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err = r.pool.QueryRow(ctx, insert,
		e.UserID, e.AccountID, e.Date, e.Title, e.NotesMD, e.Reviewed,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}

	e.TradeIDs = []int64{}
	return nil
}

// Get returns the entry for the given date. A nil accountID matches
// the entry with no account.
func (r *Repository) Get(ctx context.Context, userID int64, date string, accountID *int64) (*contracts.JournalEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM journal_entries
		WHERE user_id = $1 AND entry_date = $2 AND account_id IS NOT DISTINCT FROM $3
	`

	var e contracts.JournalEntry
	var day time.Time
	err := r.pool.QueryRow(ctx, query, userID, date, accountID).Scan(
		&e.ID, &e.UserID, &e.AccountID, &day, &e.Title, &e.NotesMD,
		&e.Reviewed, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entry: %w", err)
	}
	e.Date = day.Format("2006-01-02")

	if err := r.loadTradeIDs(ctx, &e); err != nil {
		return nil, err
	}

	return &e, nil
}

// ListDates returns the dates carrying an entry in [start, end],
// ascending. Empty bounds are open-ended.
func (r *Repository) ListDates(ctx context.Context, userID int64, start, end string) ([]string, error) {
	query := `SELECT DISTINCT entry_date FROM journal_entries WHERE user_id = $1`
	args := []any{userID}

	if start != "" {
		args = append(args, start)
		query += fmt.Sprintf(" AND entry_date >= $%d", len(args))
	}
	if end != "" {
		args = append(args, end)
		query += fmt.Sprintf(" AND entry_date <= $%d", len(args))
	}

	query += " ORDER BY entry_date ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan journal date: %w", err)
		}
		dates = append(dates, d.Format("2006-01-02"))
	}

	return dates, rows.Err()
}

// Delete removes the entry for the given date along with its trade
// links. Attached playbook responses keep their journal_id cleared by
// the schema's ON DELETE SET NULL.
func (r *Repository) Delete(ctx context.Context, userID int64, date string, accountID *int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM journal_entries
		WHERE user_id = $1 AND entry_date = $2 AND account_id IS NOT DISTINCT FROM $3
	`, userID, date, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete journal entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTrades replaces the entry's trade links. Trade IDs not owned by
// the user are silently dropped; the surviving set is returned.
func (r *Repository) SetTrades(ctx context.Context, userID, journalID int64, tradeIDs []int64) ([]int64, error) {
	var owner int64
	err := r.pool.QueryRow(ctx,
		`SELECT user_id FROM journal_entries WHERE id = $1 AND user_id = $2`,
		journalID, userID,
	).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check journal entry: %w", err)
	}

	valid := []int64{}
	if len(tradeIDs) > 0 {
		rows, err := r.pool.Query(ctx,
			`SELECT id FROM trades WHERE user_id = $1 AND id = ANY($2)`, userID, tradeIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to check trade ownership: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return nil, fmt.Errorf("failed to scan trade id: %w", err)
			}
			valid = append(valid, id)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM journal_trade_links WHERE journal_id = $1`, journalID); err != nil {
		return nil, fmt.Errorf("failed to clear trade links: %w", err)
	}
	for _, id := range valid {
		if _, err := tx.Exec(ctx,
			`INSERT INTO journal_trade_links (journal_id, trade_id) VALUES ($1, $2)`, journalID, id); err != nil {
			return nil, fmt.Errorf("failed to link trade: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit trade links: %w", err)
	}

	return valid, nil
}

// loadTradeIDs fills the entry's linked trade IDs
func (r *Repository) loadTradeIDs(ctx context.Context, e *contracts.JournalEntry) error {
	rows, err := r.pool.Query(ctx,
		`SELECT trade_id FROM journal_trade_links WHERE journal_id = $1 ORDER BY trade_id`, e.ID)
	if err != nil {
		return fmt.Errorf("failed to load trade links: %w", err)
	}
	defer rows.Close()

	e.TradeIDs = []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan trade link: %w", err)
		}
		e.TradeIDs = append(e.TradeIDs, id)
	}

	return rows.Err()
}
