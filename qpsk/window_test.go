package qpsk

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowRunningSum(t *testing.T) {
	w := NewWindow(5)

	for i := 1; i <= 5; i++ {
		w.Write(float32(i))
	}
	assert.InDelta(t, 15.0, w.Sum(), 1e-6)

	w.Write(6) // displaces the 1
	assert.InDelta(t, 20.0, w.Sum(), 1e-6)

	assert.Equal(t, float32(6), w.Tap(0))
	assert.Equal(t, float32(2), w.Tap(4))
}

func TestWindowSumStaysExactOverLongRuns(t *testing.T) {
	// The running sum is rebuilt from a parallel accumulator every L
	// writes, so rounding error cannot build up over a long stream.
	const length = 48
	w := NewWindow(length)
	rng := rand.New(rand.NewSource(1))

	recent := make([]float32, 0, length)
	for i := 0; i < 1_000_000; i++ {
		v := float32(rng.NormFloat64())
		w.Write(v)
		recent = append(recent, v)
		if len(recent) > length {
			recent = recent[1:]
		}
	}

	var naive float32
	for _, v := range recent {
		naive += v
	}
	assert.InDelta(t, naive, w.Sum(), 1e-3)
}

func TestWindowPhysicalLengthRounding(t *testing.T) {
	// Logical length 5 lives in a size-8 ring; after many wraparounds
	// the taps within the logical length must still read back in order.
	w := NewWindow(5)
	for i := 0; i < 100; i++ {
		w.Write(float32(i))
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, float32(99-i), w.Tap(i))
	}
}

func TestBayCascade(t *testing.T) {
	// Width 2, length 3: window 0 holds the newest three samples,
	// window 1 the three before that.
	b := NewBay(3, 2)
	for i := 1; i <= 6; i++ {
		b.Write(float32(i))
	}

	require.Equal(t, float32(6), b.Window(0).Tap(0))
	require.Equal(t, float32(4), b.Window(0).Tap(2))
	require.Equal(t, float32(3), b.Window(1).Tap(0))
	require.Equal(t, float32(1), b.Window(1).Tap(2))

	assert.InDelta(t, 21.0, b.Window(0).Sum()+b.Window(1).Sum(), 1e-6)
	assert.InDelta(t, 21.0, b.Sum(), 1e-6)

	b.Write(7) // pushes the 1 out of the cascade
	assert.InDelta(t, 27.0, b.Sum(), 1e-6)
}

func TestBayReset(t *testing.T) {
	b := NewBay(4, 2)
	for i := 0; i < 20; i++ {
		b.Write(2)
	}
	b.Reset()
	assert.Zero(t, b.Sum())
	assert.Zero(t, b.Window(0).Sum())
	assert.Zero(t, b.Window(1).Tap(3))
}
