package discipline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edgewise/journal/internal/contracts"
)

func TestResolveCap(t *testing.T) {
	schedule := contracts.RiskSchedule{"B": 0.5}

	tests := []struct {
		name        string
		grade       string
		templateMax *float64
		accountMax  *float64
		wantCap     float64
	}{
		{"grade cap alone", "B", nil, nil, 0.5},
		{"template cap wins", "B", fptr(0.25), fptr(0.75), 0.25},
		{"account cap wins", "B", fptr(0.75), fptr(0.3), 0.3},
		{"grade cap wins over larger limits", "B", fptr(0.9), fptr(0.8), 0.5},
		{"missing grade caps at zero", "D", fptr(0.25), nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cap, breakdown := ResolveCap(tt.grade, schedule, tt.templateMax, tt.accountMax)
			assert.Equal(t, tt.wantCap, cap)
			assert.Equal(t, schedule[tt.grade], breakdown.Grade)
			assert.Equal(t, tt.templateMax, breakdown.Template)
			assert.Equal(t, tt.accountMax, breakdown.Account)
		})
	}
}

func TestResolveCapDefaultSchedule(t *testing.T) {
	schedule := contracts.DefaultRiskSchedule()

	for grade, want := range map[string]float64{"A": 1.0, "B": 0.5, "C": 0.25, "D": 0.0} {
		cap, _ := ResolveCap(grade, schedule, nil, nil)
		assert.Equal(t, want, cap, "grade %s", grade)
	}
}

func TestCheckCap(t *testing.T) {
	// absent intended risk is "not evaluated", never false
	assert.Nil(t, CheckCap(nil, 0.5))

	exceeded := CheckCap(fptr(1.0), 0.5)
	assert.NotNil(t, exceeded)
	assert.True(t, *exceeded)

	notExceeded := CheckCap(fptr(0.5), 0.5)
	assert.NotNil(t, notExceeded)
	assert.False(t, *notExceeded, "intended risk equal to the cap is allowed")

	under := CheckCap(fptr(0.1), 0.5)
	assert.False(t, *under)
}
