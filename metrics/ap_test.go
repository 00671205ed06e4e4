package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func nan() float64 { return math.NaN() }

func TestAveragePrecision(t *testing.T) {
	tests := []struct {
		name      string
		recall    []float64
		precision []float64
		wantAP    float64
	}{
		{"perfect", []float64{1}, []float64{1}, 1},
		{"empty", nil, nil, 0},
		{"two steps", []float64{0.5, 1}, []float64{1, 0.5}, 0.75},
		{"envelope lifts dip", []float64{0.5, 0.5, 1}, []float64{1, 0.5, 0.66}, 0.5 + 0.5*0.66},
		{"never recalled", []float64{0, 0}, []float64{0, 0}, 0},
		{"half recall", []float64{0.25, 0.5, 0.5}, []float64{1, 1, 0.66}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := AveragePrecision(tt.recall, tt.precision)
			assert.InDelta(t, tt.wantAP, c.AP, 1e-12)
		})
	}
}

func TestAveragePrecision_Curve(t *testing.T) {
	c := AveragePrecision([]float64{0.5, 1}, []float64{1, 0.5})
	assert.Equal(t, []float64{1, 1, 0.5}, c.Precision)
	assert.Equal(t, []float64{0, 0.5, 1}, c.Recall)
	assert.Equal(t, []int{1, 2}, c.Steps)

	for i := 1; i < len(c.Precision); i++ {
		assert.GreaterOrEqual(t, c.Precision[i-1], c.Precision[i])
	}
}
