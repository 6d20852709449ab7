package material

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SquaresIndices(t *testing.T) {
	b, err := New(1.444, 3.478)
	require.NoError(t, err)

	assert.InDelta(t, 2.0851, b.LowerEpsilon, 1e-3)
	assert.InDelta(t, 3.478*3.478, b.HigherEpsilon, 1e-9)
	assert.InDelta(t, 12.0965, b.HigherEpsilon, 1e-3)
	assert.Equal(t, [2]float64{b.LowerEpsilon, b.HigherEpsilon}, b.Levels())
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi float64
	}{
		{"inverted", 3.478, 1.444},
		{"zero", 0, 1.5},
		{"negative", -1, 1.5},
		{"nan", math.NaN(), 1.5},
		{"inf", 1.0, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.lo, tt.hi)
			assert.ErrorIs(t, err, ErrInvalidBounds)
		})
	}
}

func TestNew_EqualIndicesAllowed(t *testing.T) {
	b, err := New(2, 2)
	require.NoError(t, err)
	assert.Equal(t, 4.0, b.Lerp(0.7))
	assert.Equal(t, 0.0, b.Density(4))
}

func TestLerpClampContains(t *testing.T) {
	b := Default()

	assert.Equal(t, b.LowerEpsilon, b.Lerp(0))
	assert.Equal(t, b.HigherEpsilon, b.Lerp(1))
	assert.InDelta(t, (b.LowerEpsilon+b.HigherEpsilon)/2, b.Lerp(0.5), 1e-12)

	assert.Equal(t, b.LowerEpsilon, b.Clamp(0))
	assert.Equal(t, b.HigherEpsilon, b.Clamp(100))
	assert.True(t, b.Contains(b.Lerp(0.3)))
	assert.False(t, b.Contains(b.HigherEpsilon+1e-6))

	assert.InDelta(t, 0.3, b.Density(b.Lerp(0.3)), 1e-12)
}
