package calendar

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewise/journal/internal/contracts"
	"github.com/edgewise/journal/pkg/logger"
)

type fakeTrades struct {
	trades []contracts.Trade
	start  time.Time
	end    time.Time
}

func (f *fakeTrades) ListBetween(_ context.Context, _ int64, _ *int64, start, end time.Time) ([]contracts.Trade, error) {
	f.start, f.end = start, end
	var out []contracts.Trade
	for _, t := range f.trades {
		seq := t.SequenceTime()
		if !seq.Before(start) && seq.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeRules struct {
	rules contracts.TradingRules
}

func (f *fakeRules) Get(_ context.Context, userID int64) (contracts.TradingRules, error) {
	r := f.rules
	r.UserID = userID
	return r, nil
}

func closedLoss(at time.Time, pnl float64) contracts.Trade {
	p := pnl
	return contracts.Trade{
		UserID:    1,
		Symbol:    "NQ",
		Side:      "Sell",
		OpenTime:  at.Add(-time.Hour),
		CloseTime: &at,
		NetPnL:    &p,
	}
}

func testCalendar(trades *fakeTrades, rules contracts.TradingRules) *Service {
	return NewService(trades, &fakeRules{rules: rules}, logger.NewWithWriter(io.Discard, "error"))
}

func TestRangeAggregatesAndFlagsDayStreak(t *testing.T) {
	day := time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC)
	trades := &fakeTrades{trades: []contracts.Trade{
		closedLoss(day, -50),
		closedLoss(day.Add(time.Hour), -20),
		closedLoss(day.Add(2*time.Hour), -30),
	}}

	svc := testCalendar(trades, contracts.TradingRules{
		MaxLossesRowDay: 2, MaxLosingDaysStreakWeek: 5, MaxLosingWeeksStreakMonth: 5,
	})

	view, err := svc.Range(context.Background(), 1, nil, day, day.AddDate(0, 0, 1), time.UTC)
	require.NoError(t, err)
	cells := view.Days
	require.Len(t, cells, 2)

	assert.Equal(t, "2026-01-06", cells[0].Date)
	assert.Equal(t, 3, cells[0].TradeCount)
	assert.Equal(t, -100.0, cells[0].NetPnL)
	assert.Equal(t, []string{contracts.RuleLossStreakDay}, cells[0].BreachFlags)

	assert.Equal(t, "2026-01-07", cells[1].Date)
	assert.Zero(t, cells[1].TradeCount, "empty days still render")
	assert.Empty(t, cells[1].BreachFlags)
}

func TestRangeFlagsWeekStreakOutsideRequestedWindow(t *testing.T) {
	// Mon-Wed losing run; only Wednesday is requested, but the run
	// started earlier in the same ISO week.
	mon := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	trades := &fakeTrades{trades: []contracts.Trade{
		closedLoss(mon, -10),
		closedLoss(mon.AddDate(0, 0, 1), -10),
		closedLoss(mon.AddDate(0, 0, 2), -10),
	}}

	svc := testCalendar(trades, contracts.TradingRules{
		MaxLossesRowDay: 9, MaxLosingDaysStreakWeek: 2, MaxLosingWeeksStreakMonth: 9,
	})

	wed := mon.AddDate(0, 0, 2)
	view, err := svc.Range(context.Background(), 1, nil, wed, wed, time.UTC)
	require.NoError(t, err)
	require.Len(t, view.Days, 1)

	assert.Equal(t, []string{contracts.RuleLosingDaysWeek}, view.Days[0].BreachFlags)
}

func TestRangeWidensQueryToWholeWeeks(t *testing.T) {
	trades := &fakeTrades{}
	svc := testCalendar(trades, contracts.TradingRules{
		MaxLossesRowDay: 3, MaxLosingDaysStreakWeek: 2, MaxLosingWeeksStreakMonth: 2,
	})

	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	_, err := svc.Range(context.Background(), 1, nil, start, start, time.UTC)
	require.NoError(t, err)

	// January 2026 starts on a Thursday: the widened window opens on
	// Monday 2025-12-29 and closes after Sunday 2026-02-01.
	assert.Equal(t, time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC), trades.start)
	assert.Equal(t, time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), trades.end)
}

func TestRangeMonthStreakFlagsWholeWeeks(t *testing.T) {
	// Three consecutive losing ISO weeks in January 2026.
	w1 := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	w2 := w1.AddDate(0, 0, 7)
	w3 := w2.AddDate(0, 0, 7)
	trades := &fakeTrades{trades: []contracts.Trade{
		closedLoss(w1, -10),
		closedLoss(w2, -10),
		closedLoss(w3, -10),
	}}

	svc := testCalendar(trades, contracts.TradingRules{
		MaxLossesRowDay: 9, MaxLosingDaysStreakWeek: 9, MaxLosingWeeksStreakMonth: 2,
	})

	view, err := svc.Range(context.Background(), 1, nil, w1, w3, time.UTC)
	require.NoError(t, err)

	flagged := 0
	for _, c := range view.Days {
		for _, f := range c.BreachFlags {
			if f == contracts.RuleLosingWeeksMonth {
				flagged++
			}
		}
	}
	assert.Equal(t, 3, flagged, "each traded day of the three-week run is flagged")
}

func TestRangeSummaryKPIs(t *testing.T) {
	day := time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC)
	open := contracts.Trade{UserID: 1, Symbol: "ES", Side: "Buy", OpenTime: day.Add(3 * time.Hour)}
	trades := &fakeTrades{trades: []contracts.Trade{
		closedLoss(day, -50),
		closedLoss(day.Add(time.Hour), 120), // winner
		closedLoss(day.Add(2*time.Hour), -20),
		open,
		closedLoss(day.AddDate(0, 0, 10), -999), // same widened window, outside range
	}}

	svc := testCalendar(trades, contracts.TradingRules{
		MaxLossesRowDay: 9, MaxLosingDaysStreakWeek: 9, MaxLosingWeeksStreakMonth: 9,
	})

	view, err := svc.Range(context.Background(), 1, nil, day, day.AddDate(0, 0, 1), time.UTC)
	require.NoError(t, err)

	sum := view.Summary
	assert.Equal(t, 4, sum.TradeCount, "open trades count, out-of-range trades do not")
	assert.Equal(t, 1, sum.Wins)
	assert.Equal(t, 2, sum.Losses)
	require.NotNil(t, sum.WinRate)
	assert.InDelta(t, 1.0/3.0, *sum.WinRate, 1e-9)
	assert.Equal(t, 50.0, sum.NetPnL)
}

func TestRangeSummaryWinRateNilWithoutDecidedTrades(t *testing.T) {
	day := time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC)
	open := contracts.Trade{UserID: 1, Symbol: "ES", Side: "Buy", OpenTime: day}
	trades := &fakeTrades{trades: []contracts.Trade{open}}

	svc := testCalendar(trades, contracts.TradingRules{
		MaxLossesRowDay: 9, MaxLosingDaysStreakWeek: 9, MaxLosingWeeksStreakMonth: 9,
	})

	view, err := svc.Range(context.Background(), 1, nil, day, day, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, 1, view.Summary.TradeCount)
	assert.Nil(t, view.Summary.WinRate)
	assert.Zero(t, view.Summary.NetPnL)
}

func TestRangeTimezoneBucketing(t *testing.T) {
	// 23:30 New York on Jan 6 is 04:30 UTC Jan 7; the cell must land
	// on the 6th when bucketing in New York.
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	at := time.Date(2026, 1, 7, 4, 30, 0, 0, time.UTC)
	trades := &fakeTrades{trades: []contracts.Trade{closedLoss(at, -10)}}

	svc := testCalendar(trades, contracts.TradingRules{
		MaxLossesRowDay: 3, MaxLosingDaysStreakWeek: 2, MaxLosingWeeksStreakMonth: 2,
	})

	start := time.Date(2026, 1, 6, 0, 0, 0, 0, ny)
	view, err := svc.Range(context.Background(), 1, nil, start, start, ny)
	require.NoError(t, err)
	require.Len(t, view.Days, 1)

	assert.Equal(t, "2026-01-06", view.Days[0].Date)
	assert.Equal(t, 1, view.Days[0].TradeCount)
}
