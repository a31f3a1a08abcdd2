package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edgewise/journal/internal/contracts"
)

// ErrNotFound is returned when an account does not exist or is not
// owned by the requesting user.
var ErrNotFound = errors.New("account not found")

// Repository handles trading account persistence
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new account repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, user_id, name, broker_label, base_ccy, status, account_max_risk_pct`

// Create persists a new account and fills its ID
func (r *Repository) Create(ctx context.Context, a *contracts.Account) error {
	if a.Status == "" {
		a.Status = "active"
	}

	query := `
		INSERT INTO accounts (user_id, name, broker_label, base_ccy, status, account_max_risk_pct)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		a.UserID, a.Name, a.BrokerLabel, a.BaseCcy, a.Status, a.AccountMaxRiskPct,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// Get returns one account by ID
func (r *Repository) Get(ctx context.Context, userID, accountID int64) (*contracts.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND user_id = $2`

	var a contracts.Account
	err := r.pool.QueryRow(ctx, query, accountID, userID).Scan(
		&a.ID, &a.UserID, &a.Name, &a.BrokerLabel, &a.BaseCcy, &a.Status, &a.AccountMaxRiskPct,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &a, nil
}

// List returns a user's accounts
func (r *Repository) List(ctx context.Context, userID int64) ([]contracts.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []contracts.Account
	for rows.Next() {
		var a contracts.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.BrokerLabel, &a.BaseCcy, &a.Status, &a.AccountMaxRiskPct); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}

	return accounts, rows.Err()
}

// Update saves the mutable account fields
func (r *Repository) Update(ctx context.Context, a *contracts.Account) error {
	query := `
		UPDATE accounts
		SET name = $3, broker_label = $4, base_ccy = $5, status = $6, account_max_risk_pct = $7
		WHERE id = $1 AND user_id = $2
	`

	tag, err := r.pool.Exec(ctx, query,
		a.ID, a.UserID, a.Name, a.BrokerLabel, a.BaseCcy, a.Status, a.AccountMaxRiskPct,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes an account
func (r *Repository) Delete(ctx context.Context, userID, accountID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1 AND user_id = $2`, accountID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
