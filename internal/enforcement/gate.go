package enforcement

import (
	"context"
	"fmt"

	"github.com/edgewise/journal/internal/contracts"
	"github.com/edgewise/journal/pkg/logger"
)

// LedgerWriter appends breach events. Callers running inside a
// transaction pass a tx-bound writer so the audit record commits or
// rolls back with the enclosing operation.
type LedgerWriter interface {
	Append(ctx context.Context, event *contracts.BreachEvent) error
}

// Rejection is the structured error surfaced to the caller when a
// violation occurs under block mode. It is the only error the gate
// ever raises for a rule outcome.
type Rejection struct {
	RuleKey  string  `json:"rule_key"`
	Message  string  `json:"message"`
	Observed float64 `json:"observed"`
	Limit    float64 `json:"limit"`
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.RuleKey, r.Message)
}

// Outcome is the gate's disposition of a single check
type Outcome struct {
	Violated  bool       `json:"violated"`
	Allowed   bool       `json:"allowed"`
	Warning   string     `json:"warning,omitempty"`   // set in warn mode
	Rejection *Rejection `json:"rejection,omitempty"` // set in block mode
}

// Gate converts detected violations into silent logging, a warning, or
// a hard block, per the user's enforcement mode. The audit trail is
// unconditional: every violation appends exactly one breach event no
// matter the mode, including blocked attempts.
type Gate struct {
	logger *logger.Logger
}

// NewGate creates a new enforcement gate
func NewGate(log *logger.Logger) *Gate {
	return &Gate{logger: log}
}

// Enforce disposes of a violation for the given user and mode. A nil
// violation means the rule predicate passed: allowed, nothing written.
//
// A ledger append failure aborts the whole operation — the gate must
// never report an outcome while losing the audit record.
func (g *Gate) Enforce(ctx context.Context, ledger LedgerWriter, userID int64, mode contracts.EnforcementMode, v *Violation) (*Outcome, error) {
	if v == nil {
		return &Outcome{Allowed: true}, nil
	}

	if !mode.Valid() {
		mode = contracts.EnforcementOff
	}

	event := &contracts.BreachEvent{
		UserID:    userID,
		AccountID: v.AccountID,
		Scope:     v.Scope,
		PeriodKey: v.PeriodKey,
		RuleKey:   v.RuleKey,
		Details:   v.Details,
	}
	if err := ledger.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("append breach event: %w", err)
	}

	outcome := &Outcome{Violated: true}

	switch mode {
	case contracts.EnforcementWarn:
		outcome.Allowed = true
		outcome.Warning = v.Message
		g.logger.WithFields(map[string]interface{}{
			"user_id":    userID,
			"rule_key":   v.RuleKey,
			"period_key": v.PeriodKey,
			"observed":   v.Observed,
			"limit":      v.Limit,
			"mode":       mode,
		}).Warn("Rule violation, write allowed with warning")

	case contracts.EnforcementBlock:
		outcome.Allowed = false
		outcome.Rejection = &Rejection{
			RuleKey:  v.RuleKey,
			Message:  v.Message,
			Observed: v.Observed,
			Limit:    v.Limit,
		}
		g.logger.WithFields(map[string]interface{}{
			"user_id":    userID,
			"rule_key":   v.RuleKey,
			"period_key": v.PeriodKey,
			"observed":   v.Observed,
			"limit":      v.Limit,
			"mode":       mode,
		}).Error("Rule violation, write blocked")

	default: // off
		outcome.Allowed = true
		g.logger.WithFields(map[string]interface{}{
			"user_id":    userID,
			"rule_key":   v.RuleKey,
			"period_key": v.PeriodKey,
			"mode":       mode,
		}).Debug("Rule violation logged, enforcement off")
	}

	return outcome, nil
}
