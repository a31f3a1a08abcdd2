package breach

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewise/journal/internal/contracts"
)

const breachEventsDDL = `
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

func testRepository(t *testing.T) *Repository {
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

	_, err = pool.Exec(context.Background(), breachEventsDDL)
	require.NoError(t, err)

	return NewRepository(pool)
}

// testUserID keeps concurrent test runs from seeing each other's rows
func testUserID() int64 {
	return time.Now().UnixNano()
}

func TestAcknowledgeIsIdempotent(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()
	userID := testUserID()

	ev := &contracts.BreachEvent{
		UserID:    userID,
		Scope:     contracts.ScopeDay,
		PeriodKey: "2026-01-06",
		RuleKey:   contracts.RuleLossStreakDay,
		Details:   map[string]interface{}{"observed": 3, "limit": 2},
	}
	require.NoError(t, repo.Append(ctx, ev))
	require.NotZero(t, ev.ID)

	first, err := repo.Acknowledge(ctx, userID, ev.ID, userID)
	require.NoError(t, err)
	require.True(t, first.Acknowledged)
	require.NotNil(t, first.AcknowledgedAt)
	require.NotNil(t, first.AcknowledgedBy)
	assert.Equal(t, userID, *first.AcknowledgedBy)

	// A repeat ack, even by someone else, must not move the timestamp
	// or reassign the acknowledger.
	second, err := repo.Acknowledge(ctx, userID, ev.ID, userID+1)
	require.NoError(t, err)
	assert.True(t, second.Acknowledged)
	assert.True(t, first.AcknowledgedAt.Equal(*second.AcknowledgedAt))
	assert.Equal(t, *first.AcknowledgedBy, *second.AcknowledgedBy)
}

func TestAcknowledgeUnknownEvent(t *testing.T) {
	repo := testRepository(t)
	userID := testUserID()

	_, err := repo.Acknowledge(context.Background(), userID, 999999999, userID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFiltersScopeAndPeriod(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()
	userID := testUserID()

	events := []contracts.BreachEvent{
		{UserID: userID, Scope: contracts.ScopeDay, PeriodKey: "2026-01-05", RuleKey: contracts.RuleLossStreakDay},
		{UserID: userID, Scope: contracts.ScopeDay, PeriodKey: "2026-01-12", RuleKey: contracts.RuleLossStreakDay},
		{UserID: userID, Scope: contracts.ScopeWeek, PeriodKey: "2026-W02", RuleKey: contracts.RuleLosingDaysWeek},
	}
	for i := range events {
		require.NoError(t, repo.Append(ctx, &events[i]))
	}

	scope := contracts.ScopeDay
	got, err := repo.List(ctx, userID, ListFilter{Scope: &scope, Start: "2026-01-10", End: "2026-01-31"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2026-01-12", got[0].PeriodKey)
}
