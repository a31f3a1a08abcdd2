package calendar

import (
	"context"
	"time"

	"github.com/edgewise/journal/internal/contracts"
	"github.com/edgewise/journal/internal/discipline"
	"github.com/edgewise/journal/pkg/logger"
)

// TradeSource loads the trade series for a window
type TradeSource interface {
	ListBetween(ctx context.Context, userID int64, accountID *int64, start, end time.Time) ([]contracts.Trade, error)
}

// RulesSource loads the per-user trading rules
type RulesSource interface {
	Get(ctx context.Context, userID int64) (contracts.TradingRules, error)
}

// DayCell is one day of the calendar view with its streak annotations
type DayCell struct {
	Date        string   `json:"date"`
	TradeCount  int      `json:"trade_count"`
	NetPnL      float64  `json:"net_pnl"`
	BreachFlags []string `json:"breach_flags,omitempty"`
}

// Summary aggregates the requested range. WinRate is nil when no trade
// in the range has a decided (non-zero) net P&L.
type Summary struct {
	TradeCount int      `json:"trade_count"`
	Wins       int      `json:"wins"`
	Losses     int      `json:"losses"`
	WinRate    *float64 `json:"win_rate"`
	NetPnL     float64  `json:"net_pnl"`
}

// View is the calendar payload: per-day cells plus range-level KPIs
type View struct {
	Days    []DayCell `json:"days"`
	Summary Summary   `json:"summary"`
}

// Service renders the discipline calendar: per-day aggregates with
// day, week and month streak flags recomputed from the ledger on every
// call. Nothing here is cached, so edited or deleted trades are always
// reflected.
type Service struct {
	trades TradeSource
	rules  RulesSource
	logger *logger.Logger
}

// NewService creates a new calendar service
func NewService(trades TradeSource, rules RulesSource, log *logger.Logger) *Service {
	return &Service{trades: trades, rules: rules, logger: log}
}

// Range returns one cell per calendar day in [start, end] plus summary
// KPIs over that range, bucketed in the given location. The underlying
// query window widens to whole ISO weeks and months so week and month
// streaks crossing the range edges are flagged correctly; the summary
// counts only trades whose bucketed day falls inside [start, end].
func (s *Service) Range(ctx context.Context, userID int64, accountID *int64, start, end time.Time, loc *time.Location) (*View, error) {
	if loc == nil {
		loc = time.UTC
	}

	rules, err := s.rules.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)

	// Widen to the Monday of the week containing the first month's
	// start, through the end of the week containing the last month's
	// end. Month streaks read whole weeks touching each month.
	monthStart := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, loc)
	monthEnd := time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
	qStart := mondayOf(monthStart)
	qEnd := mondayOf(monthEnd.AddDate(0, 0, -1)).AddDate(0, 0, 7)

	trades, err := s.trades.ListBetween(ctx, userID, accountID, qStart, qEnd)
	if err != nil {
		return nil, err
	}

	stats := discipline.BuildDayStats(trades, loc)
	dayFlags := discipline.DayStreakFlags(stats, rules.MaxLossesRowDay)
	weekFlags := discipline.WeekStreakFlags(stats, rules.MaxLosingDaysStreakWeek)
	monthFlags := discipline.MonthStreakFlags(stats, rules.MaxLosingWeeksStreakMonth)

	byKey := make(map[string]discipline.DayStat, len(stats))
	for _, st := range stats {
		byKey[st.Key] = st
	}

	var cells []DayCell
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := d.Format(discipline.DayKeyFormat)
		cell := DayCell{Date: key}

		if st, ok := byKey[key]; ok {
			cell.TradeCount = st.TradeCount
			cell.NetPnL = st.NetPnL
		}

		if dayFlags[key] {
			cell.BreachFlags = append(cell.BreachFlags, contracts.RuleLossStreakDay)
		}
		if weekFlags[key] {
			cell.BreachFlags = append(cell.BreachFlags, contracts.RuleLosingDaysWeek)
		}
		if monthFlags[key] {
			cell.BreachFlags = append(cell.BreachFlags, contracts.RuleLosingWeeksMonth)
		}

		cells = append(cells, cell)
	}

	return &View{
		Days:    cells,
		Summary: summarize(trades, first, last, loc),
	}, nil
}

// summarize computes the range KPIs: win/loss counts over realized net
// P&L, win rate over decided trades only, and the P&L total.
func summarize(trades []contracts.Trade, first, last time.Time, loc *time.Location) Summary {
	var sum Summary
	firstKey := first.Format(discipline.DayKeyFormat)
	lastKey := last.Format(discipline.DayKeyFormat)

	for i := range trades {
		t := &trades[i]
		key := t.SequenceTime().In(loc).Format(discipline.DayKeyFormat)
		if key < firstKey || key > lastKey {
			continue
		}

		sum.TradeCount++
		if t.NetPnL == nil {
			continue
		}
		sum.NetPnL += *t.NetPnL
		if *t.NetPnL > 0 {
			sum.Wins++
		} else if *t.NetPnL < 0 {
			sum.Losses++
		}
	}

	if decided := sum.Wins + sum.Losses; decided > 0 {
		rate := float64(sum.Wins) / float64(decided)
		sum.WinRate = &rate
	}

	return sum
}

// mondayOf returns the Monday 00:00 of the ISO week containing d
func mondayOf(d time.Time) time.Time {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
