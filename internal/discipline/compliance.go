package discipline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/edgewise/journal/internal/contracts"
)

// Evaluate computes the weighted compliance score and letter grade for
// a set of submitted values against a checklist schema. It is the
// single source of truth for both the dry-run preview and persisted
// submissions, so the previewed grade always matches what gets saved.
//
// Malformed or missing values never error; they score as unsatisfied.
func Evaluate(schema contracts.ChecklistSchema, values map[string]interface{}, thresholds contracts.GradeThresholds) (float64, string) {
	score := Score(schema, values)
	return score, GradeFor(score, thresholds)
}

// Score computes the compliance fraction in [0,1]: the satisfied weight
// over the total weight. A schema with zero total weight scores 0.
func Score(schema contracts.ChecklistSchema, values map[string]interface{}) float64 {
	totalWeight := 0.0
	satisfiedWeight := 0.0

	for _, f := range schema {
		w := f.EffectiveWeight()
		totalWeight += w
		if fieldSatisfied(f, values[f.Key]) {
			satisfiedWeight += w
		}
	}

	if totalWeight <= 0 {
		return 0
	}
	return satisfiedWeight / totalWeight
}

// GradeFor maps a score to the first of A, B, C whose threshold it
// meets, else D. Missing threshold entries fall back to the defaults.
func GradeFor(score float64, thresholds contracts.GradeThresholds) string {
	defaults := contracts.DefaultGradeThresholds()
	minFor := func(grade string) float64 {
		if v, ok := thresholds[grade]; ok {
			return v
		}
		return defaults[grade]
	}

	switch {
	case score >= minFor("A"):
		return "A"
	case score >= minFor("B"):
		return "B"
	case score >= minFor("C"):
		return "C"
	default:
		return "D"
	}
}

// fieldSatisfied applies the per-type satisfaction rule. Any parse or
// type failure counts as unsatisfied.
func fieldSatisfied(f contracts.FieldSpec, val interface{}) bool {
	switch f.Type {
	case contracts.FieldBoolean:
		b, ok := val.(bool)
		return ok && b

	case contracts.FieldText, contracts.FieldRichText:
		return val != nil && strings.TrimSpace(stringify(val)) != ""

	case contracts.FieldNumber:
		num, ok := toFloat(val)
		if !ok {
			return false
		}
		if v := f.Validation; v != nil {
			if v.Min != nil && num < *v.Min {
				return false
			}
			if v.Max != nil && num > *v.Max {
				return false
			}
		}
		return true

	case contracts.FieldSelect:
		if f.Validation != nil && len(f.Validation.Options) > 0 {
			if val == nil {
				return false
			}
			s := stringify(val)
			for _, opt := range f.Validation.Options {
				if s == opt {
					return true
				}
			}
			return false
		}
		return val != nil

	case contracts.FieldRating:
		r, ok := toFloat(val)
		return ok && r >= 0 && r <= 5

	default:
		return false
	}
}

// stringify renders a submitted value for presence and membership
// checks. JSON-decoded values are scalars or nested containers.
func stringify(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// toFloat coerces the value kinds a JSON decode can produce
func toFloat(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
