package math

import (
	m "math"
)

const (
	cubicEpsilon    = 1e-12
	newtonTolerance = 1e-14
	newtonSteps     = 4
)

// SolveCubic returns the real roots of a*x^3 + b*x^2 + c*x + d = 0 in
// ascending order. Degenerate leading coefficients fall back to the
// quadratic and linear cases. The roots array is fixed size so the call never
// allocates; n is the number of valid entries.
func SolveCubic(a, b, c, d float64) (roots [3]float64, n int) {
	scale := m.Max(m.Max(m.Abs(a), m.Abs(b)), m.Max(m.Abs(c), m.Abs(d)))
	if scale == 0 {
		return roots, 0
	}
	if m.Abs(a) <= cubicEpsilon*scale {
		return solveQuadratic(b, c, d)
	}

	// depressed cubic t^3 + p*t + q = 0 with x = t - b/(3a)
	bn, cn, dn := b/a, c/a, d/a
	shift := bn / 3
	p := cn - bn*bn/3
	q := 2*bn*bn*bn/27 - bn*cn/3 + dn

	disc := q*q/4 + p*p*p/27
	switch {
	case m.Abs(p) < cubicEpsilon && m.Abs(q) < cubicEpsilon:
		roots[0] = -shift
		n = 1
	case disc > 0:
		sq := m.Sqrt(disc)
		roots[0] = m.Cbrt(-q/2+sq) + m.Cbrt(-q/2-sq) - shift
		n = 1
	default:
		r := m.Sqrt(-p / 3)
		cosArg := Clamp(3*q/(2*p*r), -1, 1)
		phi := m.Acos(cosArg) / 3
		for k := 0; k < 3; k++ {
			roots[k] = 2*r*m.Cos(phi-2*m.Pi*float64(k)/3) - shift
		}
		n = 3
	}

	for i := 0; i < n; i++ {
		roots[i] = polishCubic(a, b, c, d, roots[i])
	}
	sortRoots(&roots, n)
	return roots, n
}

func solveQuadratic(a, b, c float64) (roots [3]float64, n int) {
	scale := m.Max(m.Abs(a), m.Max(m.Abs(b), m.Abs(c)))
	if m.Abs(a) <= cubicEpsilon*scale {
		if m.Abs(b) <= cubicEpsilon*scale {
			return roots, 0
		}
		roots[0] = -c / b
		return roots, 1
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		if disc > -cubicEpsilon*b*b {
			disc = 0
		} else {
			return roots, 0
		}
	}
	sq := m.Sqrt(disc)
	// avoid cancellation between -b and sq
	qq := -0.5 * (b + m.Copysign(sq, b))
	if qq == 0 {
		roots[0] = 0
		return roots, 1
	}
	roots[0] = qq / a
	roots[1] = c / qq
	sortRoots(&roots, 2)
	return roots, 2
}

// polishCubic runs a few Newton steps, the same refinement the closed form
// needs near repeated roots.
func polishCubic(a, b, c, d, x float64) float64 {
	eval := func(x float64) float64 { return ((a*x+b)*x+c)*x + d }
	f := eval(x)
	for i := 0; i < newtonSteps && f != 0; i++ {
		df := (3*a*x+2*b)*x + c
		if df == 0 {
			break
		}
		next := x - f/df
		fn := eval(next)
		if m.Abs(fn) >= m.Abs(f) {
			break
		}
		x, f = next, fn
		if m.Abs(f/df) <= newtonTolerance*m.Max(1, m.Abs(x)) {
			break
		}
	}
	return x
}

func sortRoots(roots *[3]float64, n int) {
	for i := 1; i < n; i++ {
		for j := i; j > 0 && roots[j] < roots[j-1]; j-- {
			roots[j], roots[j-1] = roots[j-1], roots[j]
		}
	}
}
