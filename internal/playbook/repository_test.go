package playbook

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

const playbookResponsesDDL = `
	CREATE TABLE IF NOT EXISTS playbook_responses (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		trade_id BIGINT,
		journal_id BIGINT,
		template_id BIGINT NOT NULL,
		template_version INT NOT NULL,
		values_json JSONB NOT NULL,
		comments_json JSONB,
		intended_risk_pct DOUBLE PRECISION,
		computed_grade TEXT NOT NULL,
		compliance_score DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

func testRepo(t *testing.T) *Repository {
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

	_, err = pool.Exec(context.Background(), playbookResponsesDDL)
	require.NoError(t, err)

	return NewRepository(pool)
}

func TestUpsertResponseOverwritesSameSubjectInPlace(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	userID := time.Now().UnixNano()

	resp := &contracts.PlaybookResponse{
		UserID:          userID,
		TemplateID:      42,
		TemplateVersion: 1,
		Values:          map[string]interface{}{"setup_ok": true},
		ComputedGrade:   "A",
		ComplianceScore: 1.0,
	}
	require.NoError(t, repo.UpsertResponse(ctx, resp))
	firstID := resp.ID
	require.NotZero(t, firstID)

	// Same (user, subject, template, version): the resubmission must
	// land on the existing row, not create a sibling.
	resp.Values = map[string]interface{}{"setup_ok": false}
	resp.ComputedGrade = "D"
	resp.ComplianceScore = 0.0
	require.NoError(t, repo.UpsertResponse(ctx, resp))
	assert.Equal(t, firstID, resp.ID)

	got, err := repo.ListResponses(ctx, userID, ResponseFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "D", got[0].ComputedGrade)
	assert.Zero(t, got[0].ComplianceScore)
}

func TestUpsertResponseDistinguishesSubjectAndVersion(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	userID := time.Now().UnixNano()
	tradeID := int64(7)

	base := contracts.PlaybookResponse{
		UserID:          userID,
		TemplateID:      42,
		TemplateVersion: 1,
		Values:          map[string]interface{}{"setup_ok": true},
		ComputedGrade:   "A",
		ComplianceScore: 1.0,
	}

	noSubject := base
	require.NoError(t, repo.UpsertResponse(ctx, &noSubject))

	// A NULL trade_id and a concrete one are different subjects.
	forTrade := base
	forTrade.TradeID = &tradeID
	require.NoError(t, repo.UpsertResponse(ctx, &forTrade))
	assert.NotEqual(t, noSubject.ID, forTrade.ID)

	// A new template version starts a new row as well.
	nextVersion := base
	nextVersion.TemplateVersion = 2
	require.NoError(t, repo.UpsertResponse(ctx, &nextVersion))
	assert.NotEqual(t, noSubject.ID, nextVersion.ID)

	got, err := repo.ListResponses(ctx, userID, ResponseFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
