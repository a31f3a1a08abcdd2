package contracts

import "time"

// BreachScope identifies the aggregation horizon a breach was detected on
type BreachScope string

const (
	ScopeTrade BreachScope = "trade"
	ScopeDay   BreachScope = "day"
	ScopeWeek  BreachScope = "week"
	ScopeMonth BreachScope = "month"
)

// Valid reports whether the scope is one of the known values
func (s BreachScope) Valid() bool {
	switch s {
	case ScopeTrade, ScopeDay, ScopeWeek, ScopeMonth:
		return true
	}
	return false
}

// Rule keys carried by breach events and enforcement rejections
const (
	RuleRiskCapExceeded  = "risk_cap_exceeded"
	RuleLossStreakDay    = "loss_streak_day"
	RuleLosingDaysWeek   = "losing_days_week"
	RuleLosingWeeksMonth = "losing_weeks_month"
)

// BreachEvent is the immutable audit record of a detected violation,
// written regardless of whether the triggering action was blocked.
// Acknowledgment is the only permitted mutation and never reverts.
type BreachEvent struct {
	ID             int64                  `json:"id"`
	UserID         int64                  `json:"user_id"`
	AccountID      *int64                 `json:"account_id,omitempty"`
	Scope          BreachScope            `json:"scope"`
	PeriodKey      string                 `json:"period_key"` // YYYY-MM-DD, YYYY-Www or YYYY-MM
	RuleKey        string                 `json:"rule_key"`
	Details        map[string]interface{} `json:"details,omitempty"`
	Acknowledged   bool                   `json:"acknowledged"`
	AcknowledgedAt *time.Time             `json:"acknowledged_at,omitempty"`
	AcknowledgedBy *int64                 `json:"acknowledged_by,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
