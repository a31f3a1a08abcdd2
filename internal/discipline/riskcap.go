package discipline

import "github.com/edgewise/journal/internal/contracts"

// CapBreakdown shows which sources contributed to the effective cap.
// The grade cap always participates; template and account caps only
// when configured.
type CapBreakdown struct {
	Template *float64 `json:"template"`
	Grade    float64  `json:"grade"`
	Account  *float64 `json:"account"`
}

// ResolveCap derives the effective risk cap as the minimum of whichever
// inputs are present. A grade missing from the schedule caps at 0.0 —
// an absent D entry intentionally zeroes a failing grade.
func ResolveCap(grade string, schedule contracts.RiskSchedule, templateMax, accountMax *float64) (float64, CapBreakdown) {
	gradeCap := schedule[grade]

	breakdown := CapBreakdown{
		Template: templateMax,
		Grade:    gradeCap,
		Account:  accountMax,
	}

	cap := gradeCap
	if templateMax != nil && *templateMax < cap {
		cap = *templateMax
	}
	if accountMax != nil && *accountMax < cap {
		cap = *accountMax
	}

	return cap, breakdown
}

// CheckCap compares the intended risk against the cap. An absent
// intended risk yields nil ("not evaluated"), never false.
func CheckCap(intendedRiskPct *float64, cap float64) *bool {
	if intendedRiskPct == nil {
		return nil
	}
	exceeded := *intendedRiskPct > cap
	return &exceeded
}
