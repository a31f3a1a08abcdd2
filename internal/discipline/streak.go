package discipline

import (
	"fmt"
	"sort"
	"time"

	"github.com/edgewise/journal/internal/contracts"
)

// DayKeyFormat is the period key layout for day-scoped results
const DayKeyFormat = "2006-01-02"

// DayStat is one day of the per-day net-P&L series the streak checks
// run over. The series is built fresh from the ledger on every call —
// there is no cached or incrementally maintained streak state, so
// edits and deletes are reflected correctly on the next call.
type DayStat struct {
	Date       time.Time `json:"date"`
	Key        string    `json:"key"` // YYYY-MM-DD in the bucketing location
	TradeCount int       `json:"trade_count"`
	NetPnL     float64   `json:"net_pnl"`
	MaxLossRun int       `json:"max_loss_run"` // longest run of consecutive losing trades
}

// ISOWeekKey formats the ISO (year, week) bucket of a date, Monday-start
func ISOWeekKey(d time.Time) string {
	year, week := d.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthKey formats the calendar month bucket of a date
func MonthKey(d time.Time) string {
	return d.Format("2006-01")
}

// BuildDayStats buckets trades into days of the given location and
// aggregates each day's trade count, summed net P&L and longest
// consecutive-loss run. Trades are ordered by close time, falling back
// to open time for unclosed trades; a trade without a realized net P&L
// breaks a loss run.
func BuildDayStats(trades []contracts.Trade, loc *time.Location) []DayStat {
	if loc == nil {
		loc = time.UTC
	}

	ordered := make([]contracts.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SequenceTime().Before(ordered[j].SequenceTime())
	})

	var stats []DayStat
	var cur *DayStat
	lossRun := 0

	for i := range ordered {
		t := &ordered[i]
		seq := t.SequenceTime().In(loc)
		key := seq.Format(DayKeyFormat)

		if cur == nil || cur.Key != key {
			stats = append(stats, DayStat{
				Date: time.Date(seq.Year(), seq.Month(), seq.Day(), 0, 0, 0, 0, loc),
				Key:  key,
			})
			cur = &stats[len(stats)-1]
			lossRun = 0
		}

		cur.TradeCount++
		if t.NetPnL != nil {
			cur.NetPnL += *t.NetPnL
		}

		if t.IsLoss() {
			lossRun++
			if lossRun > cur.MaxLossRun {
				cur.MaxLossRun = lossRun
			}
		} else {
			lossRun = 0
		}
	}

	return stats
}

// DayStreakFlags flags days whose longest consecutive-loss run exceeds
// the threshold. Strictly greater: a run exactly at the limit is allowed.
func DayStreakFlags(stats []DayStat, maxLossesRowDay int) map[string]bool {
	flags := make(map[string]bool)
	for _, st := range stats {
		if st.MaxLossRun > maxLossesRowDay {
			flags[st.Key] = true
		}
	}
	return flags
}

// WeekStreakFlags flags every day of a run of consecutive losing days
// longer than the threshold, runs evaluated within each ISO week. A day
// is losing iff its summed net P&L is negative; a non-losing day breaks
// the run, and runs never cross a week boundary.
func WeekStreakFlags(stats []DayStat, maxLosingDaysStreakWeek int) map[string]bool {
	flags := make(map[string]bool)
	var run []string
	curWeek := ""

	flush := func() {
		if len(run) > maxLosingDaysStreakWeek {
			for _, key := range run {
				flags[key] = true
			}
		}
		run = nil
	}

	for _, st := range stats {
		week := ISOWeekKey(st.Date)
		if week != curWeek {
			flush()
			curWeek = week
		}
		if st.NetPnL < 0 {
			run = append(run, st.Key)
		} else {
			flush()
		}
	}
	flush()

	return flags
}

// WeekStreakWeekKeys reports the ISO week keys containing at least one
// flagged day, for audit period keys.
func WeekStreakWeekKeys(stats []DayStat, flags map[string]bool) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, st := range stats {
		if !flags[st.Key] {
			continue
		}
		week := ISOWeekKey(st.Date)
		if !seen[week] {
			seen[week] = true
			keys = append(keys, week)
		}
	}
	return keys
}

// weekAgg is one ISO week of the series with its summed net P&L and
// member days, used by the month-scope check.
type weekAgg struct {
	key    string
	sum    float64
	days   []string
	months map[string]bool
}

// MonthStreakFlags flags every day belonging to a run of consecutive
// losing ISO weeks longer than the threshold, runs evaluated over the
// distinct weeks touching each calendar month in order. A week is
// losing iff its summed net P&L is negative.
func MonthStreakFlags(stats []DayStat, maxLosingWeeksStreakMonth int) map[string]bool {
	flags := make(map[string]bool)
	if len(stats) == 0 {
		return flags
	}

	// Aggregate weeks in series order; a week spanning two months
	// belongs to both.
	var weeks []*weekAgg
	byKey := make(map[string]*weekAgg)
	var months []string
	seenMonth := make(map[string]bool)

	for _, st := range stats {
		wk := ISOWeekKey(st.Date)
		agg, ok := byKey[wk]
		if !ok {
			agg = &weekAgg{key: wk, months: make(map[string]bool)}
			byKey[wk] = agg
			weeks = append(weeks, agg)
		}
		agg.sum += st.NetPnL
		agg.days = append(agg.days, st.Key)

		month := MonthKey(st.Date)
		agg.months[month] = true
		if !seenMonth[month] {
			seenMonth[month] = true
			months = append(months, month)
		}
	}

	flagWeeks := func(run []*weekAgg) {
		if len(run) > maxLosingWeeksStreakMonth {
			for _, w := range run {
				for _, day := range w.days {
					flags[day] = true
				}
			}
		}
	}

	for _, month := range months {
		var run []*weekAgg
		for _, w := range weeks {
			if !w.months[month] {
				continue
			}
			if w.sum < 0 {
				run = append(run, w)
			} else {
				flagWeeks(run)
				run = nil
			}
		}
		flagWeeks(run)
	}

	return flags
}

// MaxLossRunOn returns the longest consecutive-loss run recorded for
// the given day key, 0 when the day has no trades.
func MaxLossRunOn(stats []DayStat, dayKey string) int {
	for _, st := range stats {
		if st.Key == dayKey {
			return st.MaxLossRun
		}
	}
	return 0
}
