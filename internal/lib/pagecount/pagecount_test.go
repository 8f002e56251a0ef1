package pagecount

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/print-queue-service/internal/model"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		size     []float64
		duplex   bool
		copies   int
		expected int
	}{
		{name: "standard single sided", total: 2, size: []float64{297, 210}, copies: 1, expected: 2},
		{name: "standard duplex odd", total: 3, size: []float64{297, 210}, duplex: true, copies: 1, expected: 2},
		{name: "copies multiply", total: 3, size: []float64{297, 210}, copies: 4, expected: 12},
		{name: "smaller sheet is normalised to standard area", total: 2, size: []float64{210, 148}, copies: 1, expected: 5},
		{name: "a3 packs two pages per sheet", total: 4, size: []float64{420, 297}, copies: 1, expected: 2},
		{name: "a3 rounds up", total: 5, size: []float64{420, 297}, copies: 1, expected: 3},
		{name: "duplex after copies", total: 1, size: []float64{297, 210}, duplex: true, copies: 3, expected: 2},
		{name: "fractional a5 holds half a standard sheet", total: 1, size: []float64{148.5, 210}, copies: 1, expected: 2},
		{name: "fractional size rounds up", total: 3, size: []float64{297, 209.5}, copies: 1, expected: 4},
		{name: "largest sheet fits the document on one page", total: 10, size: []float64{MaxSide, MaxSide}, copies: 1, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(tt.total, tt.size, tt.duplex, tt.copies, A4)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCalculateInvalidArguments(t *testing.T) {
	tests := []struct {
		name   string
		total  int
		size   []float64
		copies int
	}{
		{name: "nil size", total: 1, size: nil, copies: 1},
		{name: "three dimensions", total: 1, size: []float64{1, 2, 3}, copies: 1},
		{name: "zero height", total: 1, size: []float64{0, 210}, copies: 1},
		{name: "negative width", total: 1, size: []float64{297, -1}, copies: 1},
		{name: "zero pages", total: 0, size: []float64{297, 210}, copies: 1},
		{name: "zero copies", total: 1, size: []float64{297, 210}, copies: 0},
		{name: "height above limit", total: 1, size: []float64{4294967295, 4294967297}, copies: 1},
		{name: "huge height with small width", total: 1, size: []float64{1 << 62, 3}, copies: 1},
		{name: "both sides huge", total: 1, size: []float64{1 << 32, 1 << 32}, copies: 1},
		{name: "infinite width", total: 1, size: []float64{297, math.Inf(1)}, copies: 1},
		{name: "nan height", total: 1, size: []float64{math.NaN(), 210}, copies: 1},
		{name: "tiny sheet needs too many pages", total: 1000, size: []float64{1e-6, 1e-6}, copies: 1},
		{name: "underflowing area", total: 1, size: []float64{1e-200, 1e-200}, copies: 1},
		{name: "copies overflow page limit", total: 2, size: []float64{297, 210}, copies: MaxPages},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, duplex := range []bool{false, true} {
				n, err := Calculate(tt.total, tt.size, duplex, tt.copies, A4)
				require.ErrorIs(t, err, model.ErrInvalidArgument)
				assert.Zero(t, n)
			}
		})
	}
}

// результат всегда положительный, а удвоение копий удваивает страницы до деления на два
func TestCalculateProperties(t *testing.T) {
	sizes := [][]float64{{297, 210}, {210, 148}, {420, 297}, {1, 1}, {1000, 1000}, {148, 105}, {148.5, 210}, {0.5, 0.25}, {MaxSide, MaxSide}}
	for total := 1; total <= 40; total++ {
		for _, size := range sizes {
			for copies := 1; copies <= 5; copies++ {
				for _, duplex := range []bool{false, true} {
					got, err := Calculate(total, size, duplex, copies, A4)
					require.NoError(t, err)
					require.GreaterOrEqual(t, got, 1, "total=%d size=%v copies=%d duplex=%v", total, size, copies, duplex)
				}

				single, err := Adjusted(total, size, copies, A4)
				require.NoError(t, err)
				double, err := Adjusted(total, size, 2*copies, A4)
				require.NoError(t, err)
				require.Equal(t, 2*single, double, "total=%d size=%v copies=%d", total, size, copies)
			}
		}
	}
}
