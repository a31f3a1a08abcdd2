package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edgewise/journal/internal/contracts"
	"github.com/edgewise/journal/pkg/redis"
)

// Repository stores per-user trading rules. Reads go through a redis
// read-through cache because every gated write loads the rules; the
// cache entry is dropped on Put so reads stay read-after-write
// consistent.
type Repository struct {
	pool  *pgxpool.Pool
	cache *redis.Cache
	ttl   time.Duration
}

// NewRepository creates a new trading-rules repository
func NewRepository(pool *pgxpool.Pool, cache *redis.Cache, cacheTTL time.Duration) *Repository {
	return &Repository{pool: pool, cache: cache, ttl: cacheTTL}
}

// Get returns the user's trading rules. A user who never saved rules
// gets the documented defaults; a missing row is never an error.
func (r *Repository) Get(ctx context.Context, userID int64) (contracts.TradingRules, error) {
	cacheKey := fmt.Sprintf("rules:%d", userID)

	var cached contracts.TradingRules
	if found, _ := r.cache.Get(ctx, cacheKey, &cached); found {
		return cached, nil
	}

	query := `
		SELECT user_id, max_losses_row_day, max_losing_days_streak_week,
		       max_losing_weeks_streak_month, alerts_enabled, enforcement_mode
		FROM user_trading_rules
		WHERE user_id = $1
	`

	var rules contracts.TradingRules
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&rules.UserID, &rules.MaxLossesRowDay, &rules.MaxLosingDaysStreakWeek,
		&rules.MaxLosingWeeksStreakMonth, &rules.AlertsEnabled, &rules.EnforcementMode,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return contracts.DefaultTradingRules(userID), nil
	}
	if err != nil {
		return contracts.TradingRules{}, fmt.Errorf("failed to get trading rules: %w", err)
	}

	_ = r.cache.Set(ctx, cacheKey, rules, r.ttl)

	return rules, nil
}

// Put upserts the user's trading rules and invalidates the cache entry
func (r *Repository) Put(ctx context.Context, rules contracts.TradingRules) (contracts.TradingRules, error) {
	query := `
		INSERT INTO user_trading_rules (
			user_id, max_losses_row_day, max_losing_days_streak_week,
			max_losing_weeks_streak_month, alerts_enabled, enforcement_mode
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			max_losses_row_day = EXCLUDED.max_losses_row_day,
			max_losing_days_streak_week = EXCLUDED.max_losing_days_streak_week,
			max_losing_weeks_streak_month = EXCLUDED.max_losing_weeks_streak_month,
			alerts_enabled = EXCLUDED.alerts_enabled,
			enforcement_mode = EXCLUDED.enforcement_mode
	`

	_, err := r.pool.Exec(ctx, query,
		rules.UserID, rules.MaxLossesRowDay, rules.MaxLosingDaysStreakWeek,
		rules.MaxLosingWeeksStreakMonth, rules.AlertsEnabled, rules.Mode(),
	)
	if err != nil {
		return contracts.TradingRules{}, fmt.Errorf("failed to save trading rules: %w", err)
	}

	_ = r.cache.Delete(ctx, fmt.Sprintf("rules:%d", rules.UserID))

	return rules, nil
}
