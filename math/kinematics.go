package math

import (
	m "math"
)

// Distance travelled after t seconds starting at velocity v and acceleration a
// under constant jerk j.
func Distance(t, v, a, j float64) float64 {
	return t * (v + t*(0.5*a+j*t/6))
}

// Velocity change after t seconds starting at acceleration a under constant jerk j.
func Velocity(t, a, j float64) float64 {
	return t * (a + 0.5*j*t)
}

// Acceleration change after t seconds under constant jerk j.
func Acceleration(t, j float64) float64 {
	return j * t
}

// Sign returns -1, 0 or 1.
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func Clamp(x, lo, hi float64) float64 {
	return m.Max(lo, m.Min(hi, x))
}

// Finite reports whether every value is neither NaN nor infinite.
func Finite(values ...float64) bool {
	for _, v := range values {
		if m.IsNaN(v) || m.IsInf(v, 0) {
			return false
		}
	}
	return true
}
