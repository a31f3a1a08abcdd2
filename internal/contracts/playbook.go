package contracts

import (
	"fmt"
	"time"
)

// FieldType enumerates the supported checklist field types
type FieldType string

const (
	FieldBoolean  FieldType = "boolean"
	FieldText     FieldType = "text"
	FieldRichText FieldType = "rich_text"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
	FieldRating   FieldType = "rating"
)

// Valid reports whether the field type is one of the supported kinds
func (t FieldType) Valid() bool {
	switch t {
	case FieldBoolean, FieldText, FieldRichText, FieldNumber, FieldSelect, FieldRating:
		return true
	}
	return false
}

// FieldValidation holds optional per-field constraints
type FieldValidation struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Options []string `json:"options,omitempty"`
}

// FieldSpec is one entry of a checklist schema
type FieldSpec struct {
	Key        string           `json:"key"`
	Label      string           `json:"label,omitempty"`
	Type       FieldType        `json:"type"`
	Weight     *float64         `json:"weight,omitempty"`
	Required   bool             `json:"required,omitempty"`
	Validation *FieldValidation `json:"validation,omitempty"`
}

// EffectiveWeight returns the field weight, defaulting to 1.0 when the
// schema omits it. An explicit zero stays zero.
func (f FieldSpec) EffectiveWeight() float64 {
	if f.Weight == nil {
		return 1.0
	}
	if *f.Weight < 0 {
		return 0
	}
	return *f.Weight
}

// ChecklistSchema is an ordered list of field specs. Schemas are
// immutable per template version; editing a template creates a new
// version instead of mutating an existing one.
type ChecklistSchema []FieldSpec

// Validate checks the schema for structural problems
func (s ChecklistSchema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("schema must have at least one field")
	}
	seen := make(map[string]bool, len(s))
	for i, f := range s {
		if f.Key == "" {
			return fmt.Errorf("field %d: key is required", i)
		}
		if seen[f.Key] {
			return fmt.Errorf("field %d: duplicate key %q", i, f.Key)
		}
		seen[f.Key] = true
		if !f.Type.Valid() {
			return fmt.Errorf("field %q: unknown type %q", f.Key, f.Type)
		}
	}
	return nil
}

// GradeThresholds maps letter grades A, B, C to the minimum compliance
// score that earns them. D is the implicit fallback.
type GradeThresholds map[string]float64

// DefaultGradeThresholds returns the documented default thresholds
func DefaultGradeThresholds() GradeThresholds {
	return GradeThresholds{"A": 0.90, "B": 0.75, "C": 0.60}
}

// Validate enforces the A > B > C total order. Missing entries are
// filled from the defaults before comparison.
func (t GradeThresholds) Validate() error {
	defaults := DefaultGradeThresholds()
	get := func(g string) float64 {
		if v, ok := t[g]; ok {
			return v
		}
		return defaults[g]
	}
	a, b, c := get("A"), get("B"), get("C")
	if !(a > b && b > c) {
		return fmt.Errorf("grade thresholds must satisfy A > B > C, got A=%.2f B=%.2f C=%.2f", a, b, c)
	}
	return nil
}

// RiskSchedule maps a letter grade to the maximum position risk (%)
// that grade permits.
type RiskSchedule map[string]float64

// DefaultRiskSchedule returns the documented default schedule
func DefaultRiskSchedule() RiskSchedule {
	return RiskSchedule{"A": 1.0, "B": 0.5, "C": 0.25, "D": 0.0}
}

// PlaybookTemplate is a versioned, weighted checklist a trader should
// satisfy before/during/after a trade.
type PlaybookTemplate struct {
	ID                 int64           `json:"id"`
	UserID             int64           `json:"user_id"`
	Name               string          `json:"name"`
	Purpose            string          `json:"purpose"` // pre | in | post | generic
	Schema             ChecklistSchema `json:"schema"`
	Version            int             `json:"version"`
	Active             bool            `json:"active"`
	GradeThresholds    GradeThresholds `json:"grade_thresholds,omitempty"`
	RiskSchedule       RiskSchedule    `json:"risk_schedule,omitempty"`
	TemplateMaxRiskPct *float64        `json:"template_max_risk_pct,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ThresholdsOrDefault returns the template thresholds or the defaults
func (t *PlaybookTemplate) ThresholdsOrDefault() GradeThresholds {
	if len(t.GradeThresholds) > 0 {
		return t.GradeThresholds
	}
	return DefaultGradeThresholds()
}

// ScheduleOrDefault returns the template risk schedule or the defaults
func (t *PlaybookTemplate) ScheduleOrDefault() RiskSchedule {
	if len(t.RiskSchedule) > 0 {
		return t.RiskSchedule
	}
	return DefaultRiskSchedule()
}

// PlaybookResponse is one answer to one template version for one
// trade or journal entry. Grade and score are always derived by the
// evaluator, never set by the caller.
type PlaybookResponse struct {
	ID              int64                  `json:"id"`
	UserID          int64                  `json:"user_id"`
	TradeID         *int64                 `json:"trade_id,omitempty"`
	JournalID       *int64                 `json:"journal_id,omitempty"`
	TemplateID      int64                  `json:"template_id"`
	TemplateVersion int                    `json:"template_version"`
	Values          map[string]interface{} `json:"values"`
	Comments        map[string]string      `json:"comments,omitempty"`
	IntendedRiskPct *float64               `json:"intended_risk_pct,omitempty"`
	ComputedGrade   string                 `json:"computed_grade"`
	ComplianceScore float64                `json:"compliance_score"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}
