package playbook

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

// AccountSource loads an account for its configured risk ceiling
type AccountSource interface {
	Get(ctx context.Context, userID, accountID int64) (*contracts.Account, error)
}

// RulesSource loads the per-user trading rules for gating
type RulesSource interface {
	Get(ctx context.Context, userID int64) (contracts.TradingRules, error)
}

// Service evaluates checklist submissions and persists them through
// the enforcement gate. Evaluate and Submit run the same scoring path,
// so a previewed grade never differs from the saved one.
type Service struct {
	pool      *pgxpool.Pool
	playbooks *Repository
	breaches  *breach.Repository
	accounts  AccountSource
	rules     RulesSource
	gate      *enforcement.Gate
	logger    *logger.Logger
}

// NewService creates a new playbook service
func NewService(pool *pgxpool.Pool, playbooks *Repository, breaches *breach.Repository,
	accounts AccountSource, rules RulesSource, gate *enforcement.Gate, log *logger.Logger) *Service {
	return &Service{
		pool:      pool,
		playbooks: playbooks,
		breaches:  breaches,
		accounts:  accounts,
		rules:     rules,
		gate:      gate,
		logger:    log,
	}
}

// EvaluateInput is one checklist submission to score
type EvaluateInput struct {
	TemplateID      int64
	TemplateVersion *int // nil means the current version
	Values          map[string]interface{}
	IntendedRiskPct *float64
	AccountID       *int64
}

// Evaluation is the scored result of a submission
type Evaluation struct {
	ComplianceScore float64                 `json:"compliance_score"`
	Grade           string                  `json:"grade"`
	RiskCapPct      float64                 `json:"risk_cap_pct"`
	CapBreakdown    discipline.CapBreakdown `json:"cap_breakdown"`
	Exceeded        *bool                   `json:"exceeded,omitempty"`
	Messages        []string                `json:"messages,omitempty"`
}

// Evaluate scores a submission against its template version without
// persisting anything. Used both as the dry-run preview endpoint and
// as the scoring step inside Submit.
func (s *Service) Evaluate(ctx context.Context, userID int64, input EvaluateInput) (*Evaluation, error) {
	snap, err := s.playbooks.GetSnapshot(ctx, userID, input.TemplateID, input.TemplateVersion)
	if err != nil {
		return nil, err
	}
	return s.evaluateSnapshot(ctx, userID, snap, input)
}

func (s *Service) evaluateSnapshot(ctx context.Context, userID int64, snap *TemplateSnapshot, input EvaluateInput) (*Evaluation, error) {
	thresholds := snap.GradeThresholds
	if len(thresholds) == 0 {
		thresholds = contracts.DefaultGradeThresholds()
	}
	schedule := snap.RiskSchedule
	if len(schedule) == 0 {
		schedule = contracts.DefaultRiskSchedule()
	}

	score, grade := discipline.Evaluate(snap.Schema, input.Values, thresholds)

	var accountMax *float64
	if input.AccountID != nil {
		account, err := s.accounts.Get(ctx, userID, *input.AccountID)
		if err != nil {
			return nil, err
		}
		accountMax = account.AccountMaxRiskPct
	}

	cap, breakdown := discipline.ResolveCap(grade, schedule, snap.TemplateMaxRiskPct, accountMax)
	exceeded := discipline.CheckCap(input.IntendedRiskPct, cap)

	eval := &Evaluation{
		ComplianceScore: score,
		Grade:           grade,
		RiskCapPct:      cap,
		CapBreakdown:    breakdown,
		Exceeded:        exceeded,
	}
	if exceeded != nil && *exceeded {
		eval.Messages = append(eval.Messages,
			fmt.Sprintf("Intended risk %.2f%% exceeds the %.2f%% cap for grade %s",
				*input.IntendedRiskPct, cap, grade))
	}

	return eval, nil
}

// SubmitInput is one checklist submission to persist
type SubmitInput struct {
	TemplateID      int64
	TemplateVersion *int
	TradeID         *int64
	JournalID       *int64
	Values          map[string]interface{}
	Comments        map[string]string
	IntendedRiskPct *float64
	AccountID       *int64
}

// SubmitResult carries the stored response, its evaluation and any
// warn-mode message.
type SubmitResult struct {
	Response   *contracts.PlaybookResponse
	Evaluation *Evaluation
	Warning    string
}

// Submit scores a submission and upserts it keyed by (user, subject,
// template, version). A submission carrying an intended risk is gated
// against the resolved cap: under block mode a breach commits and the
// upsert is discarded, returning a *enforcement.Rejection.
func (s *Service) Submit(ctx context.Context, userID int64, input SubmitInput) (*SubmitResult, error) {
	snap, err := s.playbooks.GetSnapshot(ctx, userID, input.TemplateID, input.TemplateVersion)
	if err != nil {
		return nil, err
	}

	eval, err := s.evaluateSnapshot(ctx, userID, snap, EvaluateInput{
		TemplateID:      input.TemplateID,
		TemplateVersion: input.TemplateVersion,
		Values:          input.Values,
		IntendedRiskPct: input.IntendedRiskPct,
		AccountID:       input.AccountID,
	})
	if err != nil {
		return nil, err
	}

	dayKey := time.Now().UTC().Format(discipline.DayKeyFormat)
	violation := enforcement.RiskCapViolation(
		input.IntendedRiskPct, eval.RiskCapPct, eval.Grade, eval.CapBreakdown,
		input.AccountID, dayKey,
	)

	rules, err := s.rules.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	outcome, err := s.gate.Enforce(ctx, s.breaches.WithTx(tx), userID, rules.Mode(), violation)
	if err != nil {
		return nil, err
	}

	if outcome.Rejection != nil {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit breach event: %w", err)
		}
		return nil, outcome.Rejection
	}

	resp := &contracts.PlaybookResponse{
		UserID:          userID,
		TradeID:         input.TradeID,
		JournalID:       input.JournalID,
		TemplateID:      snap.TemplateID,
		TemplateVersion: snap.Version,
		Values:          input.Values,
		Comments:        input.Comments,
		IntendedRiskPct: input.IntendedRiskPct,
		ComputedGrade:   eval.Grade,
		ComplianceScore: eval.ComplianceScore,
	}

	if err := s.playbooks.WithTx(tx).UpsertResponse(ctx, resp); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit playbook response: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":     userID,
		"template_id": snap.TemplateID,
		"version":     snap.Version,
		"grade":       eval.Grade,
		"score":       eval.ComplianceScore,
	}).Info("Playbook response saved")

	return &SubmitResult{Response: resp, Evaluation: eval, Warning: outcome.Warning}, nil
}

// CreateTemplate validates and persists a new template at version 1
func (s *Service) CreateTemplate(ctx context.Context, t *contracts.PlaybookTemplate) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	return s.playbooks.InsertTemplate(ctx, t)
}

// UpdateTemplate validates an edit and saves it as the next version
func (s *Service) UpdateTemplate(ctx context.Context, t *contracts.PlaybookTemplate) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	return s.playbooks.UpdateTemplate(ctx, t)
}

func validateTemplate(t *contracts.PlaybookTemplate) error {
	if err := t.Schema.Validate(); err != nil {
		return err
	}
	if t.GradeThresholds != nil {
		if err := t.GradeThresholds.Validate(); err != nil {
			return err
		}
	}
	return nil
}
