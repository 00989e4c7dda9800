package qpsk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSineNormQuadrantFolding(t *testing.T) {
	// The LUT quantizes to 1/256 of a cycle; the folding must stay
	// within one step of the real function across all four quadrants
	// and past the wrap.
	for tt := 0.0; tt < 2.0; tt += 0.001 {
		want := math.Sin(2 * math.Pi * tt)
		got := float64(sineNorm(float32(tt)))
		assert.InDelta(t, want, got, 0.03, "t=%v", tt)
	}
}

func TestCosineNormMatchesSineShift(t *testing.T) {
	for tt := 0.0; tt < 1.0; tt += 0.01 {
		want := math.Cos(2 * math.Pi * tt)
		got := float64(cosineNorm(float32(tt)))
		assert.InDelta(t, want, got, 0.03, "t=%v", tt)
	}
}

func TestFractionalPartTruncatesTowardZero(t *testing.T) {
	assert.Equal(t, float32(0.5), fractionalPart(2.5))
	assert.Equal(t, float32(-0.25), fractionalPart(-1.25))
	assert.Equal(t, float32(0), fractionalPart(3))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, float32(0), clamp32(-1, 0, 1))
	assert.Equal(t, float32(1), clamp32(2, 0, 1))
	assert.Equal(t, float32(0.5), clamp32(0.5, 0, 1))
}
