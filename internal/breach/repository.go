package breach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edgewise/journal/internal/contracts"
)

// ErrNotFound is returned when a breach event does not exist or is not
// owned by the requesting user.
var ErrNotFound = errors.New("breach event not found")

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the ledger
// can participate in an enclosing transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the append-only breach event store. Appends are
// all-or-nothing with the enclosing operation when tx-bound via WithTx;
// acknowledgment is the sole mutation and never reverts.
type Repository struct {
	q querier
}

// NewRepository creates a new breach repository on the pool
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// WithTx returns a repository bound to the given transaction
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{q: tx}
}

// Append inserts one breach event and fills its ID and creation time
func (r *Repository) Append(ctx context.Context, ev *contracts.BreachEvent) error {
	var detailsJSON []byte
	if ev.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal breach details: %w", err)
		}
	}

	query := `
		INSERT INTO breach_events (
			user_id, account_id, scope, period_key, rule_key, details_json
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		ev.UserID, ev.AccountID, ev.Scope, ev.PeriodKey, ev.RuleKey, detailsJSON,
	).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append breach event: %w", err)
	}

	return nil
}

// ListFilter narrows List results. Start/End compare against the
// period key, which sorts lexicographically only within a single
// scope (YYYY-MM-DD, YYYY-Www, YYYY-MM), so callers must set Scope
// whenever they set a period range.
type ListFilter struct {
	Scope        *contracts.BreachScope
	Acknowledged *bool
	Start        string
	End          string
}

// List returns a user's breach events, most recent first
func (r *Repository) List(ctx context.Context, userID int64, filter ListFilter) ([]contracts.BreachEvent, error) {
	query := `
		SELECT id, user_id, account_id, scope, period_key, rule_key,
		       details_json, acknowledged, acknowledged_at, acknowledged_by, created_at
		FROM breach_events
		WHERE user_id = $1
	`
	args := []any{userID}

	if filter.Scope != nil {
		args = append(args, *filter.Scope)
		query += fmt.Sprintf(" AND scope = $%d", len(args))
	}
	if filter.Acknowledged != nil {
		args = append(args, *filter.Acknowledged)
		query += fmt.Sprintf(" AND acknowledged = $%d", len(args))
	}
	if filter.Start != "" {
		args = append(args, filter.Start)
		query += fmt.Sprintf(" AND period_key >= $%d", len(args))
	}
	if filter.End != "" {
		args = append(args, filter.End)
		query += fmt.Sprintf(" AND period_key <= $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list breach events: %w", err)
	}
	defer rows.Close()

	var events []contracts.BreachEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// Acknowledge flips an event to acknowledged. One-way and idempotent:
// a repeat call succeeds without touching acknowledged_at.
func (r *Repository) Acknowledge(ctx context.Context, userID, eventID, acknowledgedBy int64) (*contracts.BreachEvent, error) {
	query := `
		UPDATE breach_events
		SET acknowledged = TRUE,
		    acknowledged_at = COALESCE(acknowledged_at, NOW()),
		    acknowledged_by = COALESCE(acknowledged_by, $3)
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, account_id, scope, period_key, rule_key,
		          details_json, acknowledged, acknowledged_at, acknowledged_by, created_at
	`

	ev, err := scanEvent(r.q.QueryRow(ctx, query, eventID, userID, acknowledgedBy))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acknowledge breach event: %w", err)
	}

	return &ev, nil
}

// UserBreachCount is one row of the unacknowledged digest summary
type UserBreachCount struct {
	UserID int64
	Count  int
	Oldest time.Time
}

// UnacknowledgedSummary returns per-user unacknowledged breach counts
// for the daily digest job.
func (r *Repository) UnacknowledgedSummary(ctx context.Context) ([]UserBreachCount, error) {
	query := `
		SELECT user_id, COUNT(*), MIN(created_at)
		FROM breach_events
		WHERE acknowledged = FALSE
		GROUP BY user_id
		ORDER BY user_id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize breach events: %w", err)
	}
	defer rows.Close()

	var counts []UserBreachCount
	for rows.Next() {
		var c UserBreachCount
		if err := rows.Scan(&c.UserID, &c.Count, &c.Oldest); err != nil {
			return nil, fmt.Errorf("failed to scan breach summary: %w", err)
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// scanEvent reads one event row, decoding the details JSON
func scanEvent(row pgx.Row) (contracts.BreachEvent, error) {
	var ev contracts.BreachEvent
	var detailsJSON []byte

	err := row.Scan(
		&ev.ID, &ev.UserID, &ev.AccountID, &ev.Scope, &ev.PeriodKey, &ev.RuleKey,
		&detailsJSON, &ev.Acknowledged, &ev.AcknowledgedAt, &ev.AcknowledgedBy, &ev.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ev, err
		}
		return ev, fmt.Errorf("failed to scan breach event: %w", err)
	}

	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &ev.Details); err != nil {
			return ev, fmt.Errorf("failed to unmarshal breach details: %w", err)
		}
	}

	return ev, nil
}
