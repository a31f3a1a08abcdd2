package enforcement

import (
	"fmt"

	"github.com/edgewise/journal/internal/contracts"
	"github.com/edgewise/journal/internal/discipline"
)

// Violation is rule-check output handed to the gate for disposition.
// It is data, not an error: the gate decides what the caller sees.
type Violation struct {
	Scope     contracts.BreachScope
	PeriodKey string
	RuleKey   string
	AccountID *int64
	Message   string
	Observed  float64
	Limit     float64
	Details   map[string]interface{}
}

// RiskCapViolation evaluates the risk-cap predicate and returns a
// violation when the intended risk exceeds the resolved cap, nil
// otherwise. An absent intended risk is never a violation.
func RiskCapViolation(intendedRiskPct *float64, cap float64, grade string, breakdown discipline.CapBreakdown, accountID *int64, dayKey string) *Violation {
	exceeded := discipline.CheckCap(intendedRiskPct, cap)
	if exceeded == nil || !*exceeded {
		return nil
	}

	details := map[string]interface{}{
		"intended_risk_pct": *intendedRiskPct,
		"cap":               cap,
		"grade":             grade,
		"grade_cap":         breakdown.Grade,
	}
	if breakdown.Template != nil {
		details["template_cap"] = *breakdown.Template
	}
	if breakdown.Account != nil {
		details["account_cap"] = *breakdown.Account
	}

	return &Violation{
		Scope:     contracts.ScopeTrade,
		PeriodKey: dayKey,
		RuleKey:   contracts.RuleRiskCapExceeded,
		AccountID: accountID,
		Message: fmt.Sprintf("Risk cap breach: intended %.2f%% exceeds cap of %.2f%% (grade: %s)",
			*intendedRiskPct, cap, grade),
		Observed: *intendedRiskPct,
		Limit:    cap,
		Details:  details,
	}
}

// DayStreakViolation evaluates the day-scope loss streak predicate:
// a breach iff the consecutive-loss run strictly exceeds the limit.
func DayStreakViolation(lossRun, maxLossesRowDay int, accountID *int64, dayKey string) *Violation {
	if lossRun <= maxLossesRowDay {
		return nil
	}

	return &Violation{
		Scope:     contracts.ScopeDay,
		PeriodKey: dayKey,
		RuleKey:   contracts.RuleLossStreakDay,
		AccountID: accountID,
		Message: fmt.Sprintf("Daily loss streak: %d consecutive losses (max: %d)",
			lossRun, maxLossesRowDay),
		Observed: float64(lossRun),
		Limit:    float64(maxLossesRowDay),
		Details: map[string]interface{}{
			"consecutive_losses": lossRun,
			"max":                maxLossesRowDay,
		},
	}
}
