package math

import (
	"fmt"
	m "math"
	"testing"

	"github.com/bradleyjkemp/cupaloy/v2"
	"github.com/stretchr/testify/assert"
)

func TestSolveCubicThreeRoots(t *testing.T) {
	// (x-1)(x-2)(x-3)
	roots, n := SolveCubic(1, -6, 11, -6)
	assert.Equal(t, 3, n)
	assert.InDelta(t, 1, roots[0], 1e-12)
	assert.InDelta(t, 2, roots[1], 1e-12)
	assert.InDelta(t, 3, roots[2], 1e-12)
}

func TestSolveCubicOneRoot(t *testing.T) {
	roots, n := SolveCubic(1, 0, 1, -2)
	assert.Equal(t, 1, n)
	assert.InDelta(t, 1, roots[0], 1e-12)
}

func TestSolveCubicDegenerate(t *testing.T) {
	roots, n := SolveCubic(0, 1, -3, 2)
	assert.Equal(t, 2, n)
	assert.InDelta(t, 1, roots[0], 1e-12)
	assert.InDelta(t, 2, roots[1], 1e-12)

	roots, n = SolveCubic(0, 0, 2, -1)
	assert.Equal(t, 1, n)
	assert.InDelta(t, 0.5, roots[0], 1e-15)

	_, n = SolveCubic(0, 0, 0, 1)
	assert.Equal(t, 0, n)

	_, n = SolveCubic(0, 1, 0, 1)
	assert.Equal(t, 0, n)
}

func TestSolveCubicTripleRoot(t *testing.T) {
	// 8(x-0.5)^3
	roots, n := SolveCubic(8, -12, 6, -1)
	assert.GreaterOrEqual(t, n, 1)
	for i := range n {
		assert.InDelta(t, 0.5, roots[i], 1e-5)
	}
}

func TestKinematics(t *testing.T) {
	cupaloy.SnapshotT(t, fmt.Sprintf("distance %.9f\nvelocity %.9f\nacceleration %.9f",
		Distance(2, 1, 0.5, -0.25),
		Velocity(2, 0.5, -0.25),
		Acceleration(2, -0.25),
	))
	assert.InDelta(t, 2+1-1.0/3, Distance(2, 1, 0.5, -0.25), 1e-15)
	assert.InDelta(t, 0.5, Velocity(2, 0.5, -0.25), 1e-15)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, -1.0, Sign(-3))
	assert.Equal(t, 0.0, Sign(0))
	assert.Equal(t, 1.0, Sign(1e-300))
	assert.Equal(t, 2.0, Clamp(5, -2, 2))
	assert.Equal(t, -2.0, Clamp(-5, -2, 2))
	assert.True(t, Finite(1, -1, 0))
	assert.False(t, Finite(1, m.NaN()))
	assert.False(t, Finite(m.Inf(-1)))
}

func TestMovingAverage(t *testing.T) {
	ma := MovingAverage{}
	ma.Init(3)
	assert.Equal(t, 0.0, ma.Raw())
	ma.Update(3)
	ma.Update(6)
	assert.Equal(t, 4.5, ma.Estimate)
	ma.Update(9)
	ma.Update(0)
	assert.Equal(t, 5.0, ma.Estimate)
	assert.Equal(t, 9.0, ma.Peak)
	assert.Equal(t, 0.0, ma.Raw())

	ma.Reset()
	assert.Equal(t, 0.0, ma.Estimate)

	lazy := MovingAverage{}
	assert.Equal(t, 2.0, lazy.Update(2))
}
