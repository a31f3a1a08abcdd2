package contracts

// EnforcementMode decides how a rule violation affects the triggering
// write. A closed three-way choice, deliberately not a boolean.
type EnforcementMode string

const (
	EnforcementOff   EnforcementMode = "off"   // log only, nothing surfaced
	EnforcementWarn  EnforcementMode = "warn"  // allow with a warning
	EnforcementBlock EnforcementMode = "block" // abort the triggering write
)

// Valid reports whether the mode is one of the known values
func (m EnforcementMode) Valid() bool {
	switch m {
	case EnforcementOff, EnforcementWarn, EnforcementBlock:
		return true
	}
	return false
}

// TradingRules holds a user's self-declared discipline limits.
// Streak thresholds are inclusive maxima: a run exactly at the limit
// is allowed, one past it is a breach.
type TradingRules struct {
	UserID                    int64           `json:"user_id"`
	MaxLossesRowDay           int             `json:"max_losses_row_day"`
	MaxLosingDaysStreakWeek   int             `json:"max_losing_days_streak_week"`
	MaxLosingWeeksStreakMonth int             `json:"max_losing_weeks_streak_month"`
	AlertsEnabled             bool            `json:"alerts_enabled"`
	EnforcementMode           EnforcementMode `json:"enforcement_mode"`
}

// DefaultTradingRules returns the documented defaults applied when a
// user has never saved rules.
func DefaultTradingRules(userID int64) TradingRules {
	return TradingRules{
		UserID:                    userID,
		MaxLossesRowDay:           3,
		MaxLosingDaysStreakWeek:   2,
		MaxLosingWeeksStreakMonth: 2,
		AlertsEnabled:             true,
		EnforcementMode:           EnforcementOff,
	}
}

// Mode returns the enforcement mode, falling back to off for
// unknown/empty values rather than erroring.
func (r TradingRules) Mode() EnforcementMode {
	if r.EnforcementMode.Valid() {
		return r.EnforcementMode
	}
	return EnforcementOff
}
