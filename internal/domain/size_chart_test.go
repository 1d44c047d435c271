package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func testChart() *SizeChart {
	return &SizeChart{
		ID:  "CHART-1",
		Key: "ST-32-R-32",
		Dimensions: map[string]Tolerance{
			"waist":  {Min: d(30), Target: d(32), Max: d(34)},
			"inseam": {Min: d(31), Target: d(32), Max: d(33)},
		},
	}
}

func TestSizeChart_Check(t *testing.T) {
	tests := []struct {
		name         string
		measurements map[string]decimal.Decimal
		wantPassed   bool
		wantFailed   []string
		wantErr      error
	}{
		{
			name:         "All within tolerance",
			measurements: map[string]decimal.Decimal{"waist": d(32), "inseam": d(32.5)},
			wantPassed:   true,
		},
		{
			name:         "Bounds are inclusive",
			measurements: map[string]decimal.Decimal{"waist": d(30), "inseam": d(33)},
			wantPassed:   true,
		},
		{
			name:         "Waist below minimum",
			measurements: map[string]decimal.Decimal{"waist": d(29), "inseam": d(32)},
			wantFailed:   []string{"waist"},
		},
		{
			name:         "Both out of tolerance",
			measurements: map[string]decimal.Decimal{"waist": d(35), "inseam": d(30)},
			wantFailed:   []string{"inseam", "waist"},
		},
		{
			name:         "Missing dimension",
			measurements: map[string]decimal.Decimal{"waist": d(32)},
			wantErr:      ErrMissingMeasurement,
		},
		{
			name:         "Unknown dimension",
			measurements: map[string]decimal.Decimal{"waist": d(32), "inseam": d(32), "rise": d(10)},
			wantErr:      ErrUnknownMeasurement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := testChart().Check(tt.measurements)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPassed, report.Passed)

			var failed []string
			for _, f := range report.Failures() {
				failed = append(failed, f.Dimension)
			}
			assert.Equal(t, tt.wantFailed, failed)
		})
	}
}
