package trade

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewise/journal/internal/breach"
	"github.com/edgewise/journal/internal/contracts"
	"github.com/edgewise/journal/internal/enforcement"
	"github.com/edgewise/journal/pkg/logger"
)

const tradeTablesDDL = `
	CREATE TABLE IF NOT EXISTS trades (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		account_id BIGINT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		qty_units DOUBLE PRECISION,
		entry_price DOUBLE PRECISION,
		exit_price DOUBLE PRECISION,
		open_time_utc TIMESTAMPTZ NOT NULL,
		close_time_utc TIMESTAMPTZ,
		gross_pnl DOUBLE PRECISION,
		fees DOUBLE PRECISION,
		net_pnl DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS breach_events (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		account_id BIGINT,
		scope TEXT NOT NULL,
		period_key TEXT NOT NULL,
		rule_key TEXT NOT NULL,
		details_json JSONB,
		acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
		acknowledged_at TIMESTAMPTZ,
		acknowledged_by BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	pool, err := pgxpool.New(context.Background(), os.Getenv("DATABASE_URL"))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(), tradeTablesDDL)
	require.NoError(t, err)

	return pool
}

// blockRules always enforces a one-loss daily limit in block mode
type blockRules struct{}

func (blockRules) Get(_ context.Context, userID int64) (contracts.TradingRules, error) {
	return contracts.TradingRules{
		UserID:                    userID,
		MaxLossesRowDay:           1,
		MaxLosingDaysStreakWeek:   2,
		MaxLosingWeeksStreakMonth: 2,
		EnforcementMode:           contracts.EnforcementBlock,
	}, nil
}

func TestRecordBlockCommitsBreachDiscardsTrade(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	userID := time.Now().UnixNano()

	tradeRepo := NewRepository(pool)
	breachRepo := breach.NewRepository(pool)
	log := logger.NewWithWriter(io.Discard, "error")
	svc := NewService(pool, tradeRepo, breachRepo, blockRules{}, enforcement.NewGate(log), log)

	closeAt := time.Date(2026, 1, 6, 15, 0, 0, 0, time.UTC)
	first := closedTrade(closeAt, -40)
	first.UserID = userID
	require.NoError(t, tradeRepo.Insert(ctx, &first))

	// The second consecutive loss of the day exceeds the limit of 1.
	second := closedTrade(closeAt.Add(time.Hour), -25)
	second.UserID = userID
	_, err := svc.Record(ctx, &second)

	var rejection *enforcement.Rejection
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, contracts.RuleLossStreakDay, rejection.RuleKey)
	assert.Equal(t, 2.0, rejection.Observed)
	assert.Equal(t, 1.0, rejection.Limit)

	// The rejected trade must not be persisted.
	trades, err := tradeRepo.List(ctx, userID, ListFilter{})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, first.ID, trades[0].ID)

	// The breach event must survive the aborted write.
	events, err := breachRepo.List(ctx, userID, breach.ListFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, contracts.ScopeDay, events[0].Scope)
	assert.Equal(t, "2026-01-06", events[0].PeriodKey)
	assert.False(t, events[0].Acknowledged)
}

func TestRecordWarnPersistsTradeAndBreach(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	userID := time.Now().UnixNano()

	tradeRepo := NewRepository(pool)
	breachRepo := breach.NewRepository(pool)
	log := logger.NewWithWriter(io.Discard, "error")

	warnRules := rulesFunc(func(uid int64) contracts.TradingRules {
		r, _ := blockRules{}.Get(context.Background(), uid)
		r.EnforcementMode = contracts.EnforcementWarn
		return r
	})
	svc := NewService(pool, tradeRepo, breachRepo, warnRules, enforcement.NewGate(log), log)

	closeAt := time.Date(2026, 1, 6, 15, 0, 0, 0, time.UTC)
	first := closedTrade(closeAt, -40)
	first.UserID = userID
	require.NoError(t, tradeRepo.Insert(ctx, &first))

	second := closedTrade(closeAt.Add(time.Hour), -25)
	second.UserID = userID
	result, err := svc.Record(ctx, &second)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Warning)

	trades, err := tradeRepo.List(ctx, userID, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, trades, 2)

	events, err := breachRepo.List(ctx, userID, breach.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

// rulesFunc adapts a function to the RulesSource interface
type rulesFunc func(userID int64) contracts.TradingRules

func (f rulesFunc) Get(_ context.Context, userID int64) (contracts.TradingRules, error) {
	return f(userID), nil
}
