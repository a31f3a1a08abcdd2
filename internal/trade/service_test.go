package trade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewise/journal/internal/contracts"
)

func closedTrade(closeAt time.Time, netPnL float64) contracts.Trade {
	pnl := netPnL
	return contracts.Trade{
		UserID:    1,
		Symbol:    "ES",
		Side:      "Buy",
		OpenTime:  closeAt.Add(-time.Hour),
		CloseTime: &closeAt,
		NetPnL:    &pnl,
	}
}

func TestDayStreakViolationCountsCandidate(t *testing.T) {
	day := time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC)
	existing := []contracts.Trade{
		closedTrade(day, -50),
		closedTrade(day.Add(time.Hour), -20),
	}

	// Two losses recorded, limit 2: the candidate loss is the third.
	candidate := closedTrade(day.Add(2*time.Hour), -10)
	v := dayStreakViolation(existing, &candidate, 2)
	require.NotNil(t, v)
	assert.Equal(t, contracts.RuleLossStreakDay, v.RuleKey)
	assert.Equal(t, "2026-01-06", v.PeriodKey)
	assert.Equal(t, 3.0, v.Observed)
	assert.Equal(t, 2.0, v.Limit)
}

func TestDayStreakViolationRunAtLimitAllowed(t *testing.T) {
	day := time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC)
	existing := []contracts.Trade{closedTrade(day, -50)}

	candidate := closedTrade(day.Add(time.Hour), -20)
	assert.Nil(t, dayStreakViolation(existing, &candidate, 2))
}

func TestDayStreakViolationWinBreaksRun(t *testing.T) {
	day := time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC)
	existing := []contracts.Trade{
		closedTrade(day, -50),
		closedTrade(day.Add(time.Hour), -20),
		closedTrade(day.Add(2*time.Hour), 80),
	}

	candidate := closedTrade(day.Add(3*time.Hour), -10)
	assert.Nil(t, dayStreakViolation(existing, &candidate, 2), "the winner reset the run")
}

func TestDayStreakViolationOrdersBySequenceTime(t *testing.T) {
	day := time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC)

	// Recorded out of order: the winner closed between the two losses.
	existing := []contracts.Trade{
		closedTrade(day.Add(2*time.Hour), -20),
		closedTrade(day, -50),
		closedTrade(day.Add(time.Hour), 80),
	}

	candidate := closedTrade(day.Add(3*time.Hour), -10)
	v := dayStreakViolation(existing, &candidate, 1)
	require.NotNil(t, v)
	assert.Equal(t, 2.0, v.Observed, "run is win-loss-loss after reordering")
}

func TestDayStreakViolationCrossDayIgnored(t *testing.T) {
	yesterday := time.Date(2026, 1, 5, 21, 0, 0, 0, time.UTC)
	existing := []contracts.Trade{
		closedTrade(yesterday, -50),
		closedTrade(yesterday.Add(time.Hour), -20),
	}

	// UTC day boundary resets the run even though only hours passed.
	candidate := closedTrade(yesterday.Add(4*time.Hour), -10)
	assert.Nil(t, dayStreakViolation(existing, &candidate, 1))
}
