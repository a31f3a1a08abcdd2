package digest

import (
	"context"
	"fmt"

	"github.com/edgewise/journal/internal/breach"
	"github.com/edgewise/journal/internal/contracts"
	"github.com/edgewise/journal/pkg/logger"
)

// SummarySource provides per-user unacknowledged breach counts
type SummarySource interface {
	UnacknowledgedSummary(ctx context.Context) ([]breach.UserBreachCount, error)
}

// RulesSource loads the per-user trading rules for the alert opt-out
type RulesSource interface {
	Get(ctx context.Context, userID int64) (contracts.TradingRules, error)
}

// Job is the daily breach digest: one log line per user with pending
// unacknowledged breaches, skipping users who disabled alerts. Delivery
// beyond the structured log (mail, push) hangs off these entries.
type Job struct {
	breaches SummarySource
	rules    RulesSource
	schedule string
	logger   *logger.Logger
}

// NewJob creates the breach digest job with its cron schedule
func NewJob(breaches SummarySource, rules RulesSource, schedule string, log *logger.Logger) *Job {
	return &Job{breaches: breaches, rules: rules, schedule: schedule, logger: log}
}

// Name returns the job name
func (j *Job) Name() string { return "breach-digest" }

// Schedule returns the cron schedule expression
func (j *Job) Schedule() string { return j.schedule }

// Run emits the digest for all users with unacknowledged breaches
func (j *Job) Run(ctx context.Context) error {
	summary, err := j.breaches.UnacknowledgedSummary(ctx)
	if err != nil {
		return fmt.Errorf("breach digest: %w", err)
	}

	notified := 0
	for _, entry := range summary {
		rules, err := j.rules.Get(ctx, entry.UserID)
		if err != nil {
			return fmt.Errorf("breach digest: load rules for user %d: %w", entry.UserID, err)
		}
		if !rules.AlertsEnabled {
			continue
		}

		j.logger.WithFields(map[string]interface{}{
			"user_id":        entry.UserID,
			"pending_count":  entry.Count,
			"oldest_pending": entry.Oldest,
		}).Info("Unacknowledged breach digest")
		notified++
	}

	j.logger.WithFields(map[string]interface{}{
		"users_with_pending": len(summary),
		"users_notified":     notified,
	}).Info("Breach digest completed")

	return nil
}
