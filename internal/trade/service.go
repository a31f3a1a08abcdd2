package trade

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edgewise/journal/internal/breach"
	"github.com/edgewise/journal/internal/contracts"
	"github.com/edgewise/journal/internal/discipline"
	"github.com/edgewise/journal/internal/enforcement"
	"github.com/edgewise/journal/pkg/logger"
)

// RulesSource loads the per-user trading rules for gating
type RulesSource interface {
	Get(ctx context.Context, userID int64) (contracts.TradingRules, error)
}

// Service records trades through the enforcement gate. Only a closed
// losing trade can extend a daily loss streak, so only those pass
// through the gate; everything else is a plain insert.
type Service struct {
	pool     *pgxpool.Pool
	trades   *Repository
	breaches *breach.Repository
	rules    RulesSource
	gate     *enforcement.Gate
	logger   *logger.Logger
}

// NewService creates a new trade service
func NewService(pool *pgxpool.Pool, trades *Repository, breaches *breach.Repository, rules RulesSource, gate *enforcement.Gate, log *logger.Logger) *Service {
	return &Service{
		pool:     pool,
		trades:   trades,
		breaches: breaches,
		rules:    rules,
		gate:     gate,
		logger:   log,
	}
}

// RecordResult is the outcome of a recorded trade. Warning is set when
// the write went through under warn mode despite a violation.
type RecordResult struct {
	Trade   *contracts.Trade
	Warning string
}

// Record persists a trade, checking the daily loss streak rule first
// when the trade is a closed loss. The candidate trade itself counts
// toward the streak: with a limit of N, the N+1th consecutive loss of
// the day is the violating one.
//
// Under block mode a violation commits the breach event and returns a
// *enforcement.Rejection without persisting the trade. Streak days are
// bucketed in UTC.
func (s *Service) Record(ctx context.Context, t *contracts.Trade) (*RecordResult, error) {
	if !t.IsClosedLoss() {
		if err := s.trades.Insert(ctx, t); err != nil {
			return nil, err
		}
		return &RecordResult{Trade: t}, nil
	}

	rules, err := s.rules.Get(ctx, t.UserID)
	if err != nil {
		return nil, err
	}

	day := t.CloseTime.In(time.UTC)
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	existing, err := s.trades.ListBetween(ctx, t.UserID, t.AccountID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	violation := dayStreakViolation(existing, t, rules.MaxLossesRowDay)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	outcome, err := s.gate.Enforce(ctx, s.breaches.WithTx(tx), t.UserID, rules.Mode(), violation)
	if err != nil {
		return nil, err
	}

	if outcome.Rejection != nil {
		// The trade is discarded but the audit record must survive.
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit breach event: %w", err)
		}
		return nil, outcome.Rejection
	}

	if err := s.trades.WithTx(tx).Insert(ctx, t); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit trade: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":  t.UserID,
		"trade_id": t.ID,
		"symbol":   t.Symbol,
	}).Info("Trade recorded")

	return &RecordResult{Trade: t, Warning: outcome.Warning}, nil
}

// dayStreakViolation recomputes the candidate day's consecutive-loss
// run over the already recorded trades plus the candidate, and returns
// the violation when the run exceeds the limit.
func dayStreakViolation(existing []contracts.Trade, candidate *contracts.Trade, maxLossesRowDay int) *enforcement.Violation {
	series := make([]contracts.Trade, 0, len(existing)+1)
	series = append(series, existing...)
	series = append(series, *candidate)

	dayKey := candidate.SequenceTime().In(time.UTC).Format(discipline.DayKeyFormat)
	stats := discipline.BuildDayStats(series, time.UTC)
	run := discipline.MaxLossRunOn(stats, dayKey)

	return enforcement.DayStreakViolation(run, maxLossesRowDay, candidate.AccountID, dayKey)
}
