package discipline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edgewise/journal/internal/contracts"
)

func fptr(v float64) *float64 { return &v }

func TestFieldSatisfied(t *testing.T) {
	tests := []struct {
		name string
		spec contracts.FieldSpec
		val  interface{}
		want bool
	}{
		// boolean: exactly true
		{"bool true", contracts.FieldSpec{Key: "b", Type: contracts.FieldBoolean}, true, true},
		{"bool false", contracts.FieldSpec{Key: "b", Type: contracts.FieldBoolean}, false, false},
		{"bool string true", contracts.FieldSpec{Key: "b", Type: contracts.FieldBoolean}, "true", false},
		{"bool nil", contracts.FieldSpec{Key: "b", Type: contracts.FieldBoolean}, nil, false},

		// text: present and non-blank after trim
		{"text present", contracts.FieldSpec{Key: "t", Type: contracts.FieldText}, "plan noted", true},
		{"text blank", contracts.FieldSpec{Key: "t", Type: contracts.FieldText}, "   ", false},
		{"text nil", contracts.FieldSpec{Key: "t", Type: contracts.FieldText}, nil, false},
		{"rich text present", contracts.FieldSpec{Key: "t", Type: contracts.FieldRichText}, "# Setup", true},
		{"text numeric value", contracts.FieldSpec{Key: "t", Type: contracts.FieldText}, 42.0, true},

		// number: parseable, within optional min/max
		{"number float", contracts.FieldSpec{Key: "n", Type: contracts.FieldNumber}, 1.5, true},
		{"number string", contracts.FieldSpec{Key: "n", Type: contracts.FieldNumber}, "2.5", true},
		{"number garbage", contracts.FieldSpec{Key: "n", Type: contracts.FieldNumber}, "two", false},
		{"number nil", contracts.FieldSpec{Key: "n", Type: contracts.FieldNumber}, nil, false},
		{
			"number below min",
			contracts.FieldSpec{Key: "n", Type: contracts.FieldNumber, Validation: &contracts.FieldValidation{Min: fptr(1)}},
			0.5, false,
		},
		{
			"number above max",
			contracts.FieldSpec{Key: "n", Type: contracts.FieldNumber, Validation: &contracts.FieldValidation{Max: fptr(2)}},
			3.0, false,
		},
		{
			"number within range",
			contracts.FieldSpec{Key: "n", Type: contracts.FieldNumber, Validation: &contracts.FieldValidation{Min: fptr(1), Max: fptr(2)}},
			1.5, true,
		},

		// select: among options when given, else merely present
		{
			"select in options",
			contracts.FieldSpec{Key: "s", Type: contracts.FieldSelect, Validation: &contracts.FieldValidation{Options: []string{"long", "short"}}},
			"long", true,
		},
		{
			"select not in options",
			contracts.FieldSpec{Key: "s", Type: contracts.FieldSelect, Validation: &contracts.FieldValidation{Options: []string{"long", "short"}}},
			"flat", false,
		},
		{"select no options present", contracts.FieldSpec{Key: "s", Type: contracts.FieldSelect}, "anything", true},
		{"select no options nil", contracts.FieldSpec{Key: "s", Type: contracts.FieldSelect}, nil, false},

		// rating: parseable number in [0,5]
		{"rating in range", contracts.FieldSpec{Key: "r", Type: contracts.FieldRating}, 4.0, true},
		{"rating zero", contracts.FieldSpec{Key: "r", Type: contracts.FieldRating}, 0.0, true},
		{"rating out of range", contracts.FieldSpec{Key: "r", Type: contracts.FieldRating}, 6.0, false},
		{"rating negative", contracts.FieldSpec{Key: "r", Type: contracts.FieldRating}, -1.0, false},
		{"rating garbage", contracts.FieldSpec{Key: "r", Type: contracts.FieldRating}, "great", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fieldSatisfied(tt.spec, tt.val)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScore(t *testing.T) {
	schema := contracts.ChecklistSchema{
		{Key: "setup_ok", Type: contracts.FieldBoolean},
		{Key: "plan", Type: contracts.FieldText, Weight: fptr(2)},
		{Key: "confidence", Type: contracts.FieldRating},
	}

	// 1 + 2 satisfied out of total weight 4
	score := Score(schema, map[string]interface{}{
		"setup_ok": true,
		"plan":     "breakout retest",
	})
	assert.InDelta(t, 0.75, score, 1e-9)

	// nothing satisfied
	assert.Equal(t, 0.0, Score(schema, map[string]interface{}{}))

	// everything satisfied
	assert.Equal(t, 1.0, Score(schema, map[string]interface{}{
		"setup_ok":   true,
		"plan":       "breakout retest",
		"confidence": 3.0,
	}))
}

func TestScoreZeroTotalWeight(t *testing.T) {
	schema := contracts.ChecklistSchema{
		{Key: "a", Type: contracts.FieldBoolean, Weight: fptr(0)},
		{Key: "b", Type: contracts.FieldText, Weight: fptr(0)},
	}

	score := Score(schema, map[string]interface{}{"a": true, "b": "x"})
	assert.Equal(t, 0.0, score, "all-zero-weight schema scores 0")
}

func TestScoreBounds(t *testing.T) {
	schema := contracts.ChecklistSchema{
		{Key: "a", Type: contracts.FieldBoolean, Weight: fptr(0.5)},
		{Key: "b", Type: contracts.FieldNumber, Weight: fptr(3)},
	}

	for _, values := range []map[string]interface{}{
		nil,
		{"a": true},
		{"b": 1.0},
		{"a": true, "b": 1.0},
		{"a": "junk", "b": "junk"},
	} {
		score := Score(schema, values)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestGradeFor(t *testing.T) {
	defaults := contracts.DefaultGradeThresholds()

	assert.Equal(t, "A", GradeFor(0.95, defaults))
	assert.Equal(t, "A", GradeFor(0.90, defaults), "threshold is inclusive")
	assert.Equal(t, "B", GradeFor(0.80, defaults))
	assert.Equal(t, "C", GradeFor(0.60, defaults))
	assert.Equal(t, "D", GradeFor(0.59, defaults))
	assert.Equal(t, "D", GradeFor(0, defaults))

	// missing entries fall back to defaults
	assert.Equal(t, "A", GradeFor(0.92, contracts.GradeThresholds{}))
	assert.Equal(t, "B", GradeFor(0.92, contracts.GradeThresholds{"A": 0.95}))
}

func TestGradeMonotonicInScore(t *testing.T) {
	rank := map[string]int{"D": 0, "C": 1, "B": 2, "A": 3}
	thresholds := contracts.GradeThresholds{"A": 0.85, "B": 0.7, "C": 0.5}

	prev := -1
	for score := 0.0; score <= 1.0; score += 0.01 {
		r := rank[GradeFor(score, thresholds)]
		assert.GreaterOrEqual(t, r, prev, "grade must not decrease as score rises (score=%.2f)", score)
		prev = r
	}
}

// Failing checklist drives the grade to D, which the default schedule
// caps at zero risk; any intended risk then exceeds the cap.
func TestEvaluateFailingChecklistZeroCap(t *testing.T) {
	schema := contracts.ChecklistSchema{
		{Key: "setup_ok", Type: contracts.FieldBoolean},
		{Key: "intended_risk_pct", Type: contracts.FieldNumber, Validation: &contracts.FieldValidation{Max: fptr(1)}},
	}

	score, grade := Evaluate(schema, map[string]interface{}{
		"setup_ok":          false,
		"intended_risk_pct": 2.0,
	}, contracts.DefaultGradeThresholds())

	assert.Equal(t, 0.0, score)
	assert.Equal(t, "D", grade)

	cap, _ := ResolveCap(grade, contracts.DefaultRiskSchedule(), nil, nil)
	assert.Equal(t, 0.0, cap)

	exceeded := CheckCap(fptr(2.0), cap)
	assert.NotNil(t, exceeded)
	assert.True(t, *exceeded)
}
