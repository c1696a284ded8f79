package tax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name        string
		base        float64
		tipoIVA     int
		claimed     float64
		corrected   float64
		discrepancy bool
	}{
		{"exact match", 100, 21, 21, 21, false},
		{"within tolerance", 100, 21, 21.04, 21, false},
		{"beyond tolerance", 100, 21, 21.10, 21, true},
		{"wildly off", 100, 21, 35, 21, true},
		{"ocr misread corrected", 50, 21, 105, 10.5, true},
		{"reduced rate", 200, 10, 20, 20, false},
		{"superreduced rate", 80, 4, 3.2, 3.2, false},
		{"exempt has no cuota", 300, 0, 0, 0, false},
		{"exempt with claimed cuota", 300, 0, 63, 0, true},
		{"rounding half up", 33.33, 21, 7, 7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corrected, discrepancy := Reconcile(tt.base, tt.tipoIVA, tt.claimed)
			assert.InDelta(t, tt.corrected, corrected, 0.001)
			assert.Equal(t, tt.discrepancy, discrepancy)
		})
	}
}

func TestDeductibleCuota(t *testing.T) {
	assert.InDelta(t, 21.0, DeductibleCuota(21, 100), 0.001)
	assert.InDelta(t, 10.5, DeductibleCuota(21, 50), 0.001)
	assert.InDelta(t, 6.3, DeductibleCuota(21, 30), 0.001)
	assert.InDelta(t, 0.0, DeductibleCuota(21, 0), 0.001)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.23, Round2(1.2345))
	assert.Equal(t, 1.24, Round2(1.236))
	assert.Equal(t, -1.23, Round2(-1.2349))
	assert.Equal(t, 0.0, Round2(0))
}
