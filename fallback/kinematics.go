// Package fallback holds closed-form jerk-limited kinematics for the servo
// loop, plus an Estimator that answers the questions the closed forms cannot
// by running a full plan.
package fallback

import (
	"math"

	"github.com/pkg/errors"
	m "pfeifer.dev/scurve/math"
)

const (
	// VelocityEpsilon is the speed below which an end speed counts as zero.
	VelocityEpsilon = 1e-8
	// stoppedVelocity and settledAcceleration are the thresholds below
	// which no further motion is needed.
	stoppedVelocity     = 1e-4
	settledAcceleration = 1e-4
	degenerateLimit     = 1e-10
)

var (
	ErrNoJerkPhase = errors.New("no positive jerk phase duration")
	ErrNoHoldPhase = errors.New("constant acceleration phase collapsed")
	ErrNoDistance  = errors.New("distance too short for a conservative estimate")
)

// DecelerateTimes returns the jerk phase and constant deceleration durations
// for stopping from v. A full stop takes 2*t1 + t2.
func DecelerateTimes(v, maxAcc, maxJerk float64) (t1, t2 float64) {
	v = math.Abs(v)
	t1 = maxAcc / maxJerk
	if maxJerk*t1*t1/2 >= v/2 {
		// the jerk phases alone shed v
		return math.Sqrt(v / maxJerk), 0
	}
	return t1, v/maxAcc - t1
}

// DecelerateTime is the total time DecelerateTimes describes.
func DecelerateTime(v, maxAcc, maxJerk float64) float64 {
	t1, t2 := DecelerateTimes(v, maxAcc, maxJerk)
	return 2*t1 + t2
}

// StoppingDistance is the unsigned distance covered while stopping from
// velocity v and acceleration a. Any acceleration along v is released first,
// then the deceleration ramps in, holds at its limit and ramps back out.
func StoppingDistance(v, a, maxAcc, maxJerk float64) float64 {
	if math.Abs(v) < stoppedVelocity {
		return 0
	}
	if v < 0 {
		v, a = -v, -a
	}

	var d float64
	if a > 0 {
		t := a / maxJerk
		d += m.Distance(t, v, a, -maxJerk)
		v += m.Velocity(t, a, -maxJerk)
		a = 0
	}

	decel := math.Max(-math.Sqrt(v*maxJerk+0.5*a*a), -maxAcc)
	if decel < a {
		t := (a - decel) / maxJerk
		d += m.Distance(t, v, a, -maxJerk)
		v += m.Velocity(t, a, -maxJerk)
		a = decel
	}

	if release := 0.5 * a * a / maxJerk; release < v {
		t := (v - release) / -a
		d += m.Distance(t, v, a, 0)
		v += m.Velocity(t, a, 0)
	}

	d += m.Distance(-a/maxJerk, v, a, maxJerk)
	return d
}

// FinishWithSpeedDistance is the distance needed to go from velocity v and
// acceleration a to the end speed ve with zero acceleration.
func FinishWithSpeedDistance(v, ve, a, maxAcc, maxJerk float64) float64 {
	if v < 0 {
		v, a, ve = -v, -a, -ve
	}
	if math.Abs(v-ve) < stoppedVelocity && math.Abs(a) < settledAcceleration {
		return 0
	}

	var d float64
	if ve > v {
		if a < 0 {
			t := -a / maxJerk
			d += m.Distance(t, v, a, maxJerk)
			v += m.Velocity(t, a, maxJerk)
			a = 0
		}
		peak := math.Min(math.Sqrt(math.Max((ve-v)*maxJerk+0.5*a*a, 0)), maxAcc)
		if peak > a {
			t := (peak - a) / maxJerk
			d += m.Distance(t, v, a, maxJerk)
			v += m.Velocity(t, a, maxJerk)
			a = peak
		}
		if release := ve - 0.5*a*a/maxJerk; v < release && a > settledAcceleration {
			t := (release - v) / a
			d += m.Distance(t, v, a, 0)
			v += m.Velocity(t, a, 0)
		}
		if a > settledAcceleration {
			d += m.Distance(a/maxJerk, v, a, -maxJerk)
		}
		return d
	}

	if a > 0 {
		t := a / maxJerk
		d += m.Distance(t, v, a, -maxJerk)
		v += m.Velocity(t, a, -maxJerk)
		a = 0
	}
	decel := math.Max(-math.Sqrt(math.Max((v-ve)*maxJerk+0.5*a*a, 0)), -maxAcc)
	if decel < a {
		t := (a - decel) / maxJerk
		d += m.Distance(t, v, a, -maxJerk)
		v += m.Velocity(t, a, -maxJerk)
		a = decel
	}
	if release := ve + 0.5*a*a/maxJerk; release < v && a < -settledAcceleration {
		t := (v - release) / -a
		d += m.Distance(t, v, a, 0)
		v += m.Velocity(t, a, 0)
	}
	if a < -settledAcceleration {
		d += m.Distance(-a/maxJerk, v, a, maxJerk)
	}
	return d
}

// NextAcceleration is the acceleration to command after a cycle of length t
// when tracking targetV: the largest one that can still be released to zero
// at targetV, limited to maxAcc and to one cycle of maxJerk.
func NextAcceleration(t, targetV, v, a, maxAcc, maxJerk float64) float64 {
	maxDa := m.Acceleration(t, maxJerk)
	tinyDa := maxDa * t * 0.001
	velErr := targetV - v

	var req float64
	switch {
	case velErr > tinyDa:
		req = -maxDa + math.Sqrt(2*maxJerk*velErr+maxDa*maxDa)
	case velErr < -tinyDa:
		req = maxDa - math.Sqrt(-2*maxJerk*velErr+maxDa*maxDa)
	}
	req = m.Clamp(req, -maxAcc, maxAcc)
	return m.Clamp(req, a-maxDa, a+maxDa)
}

// Step is one cycle of closed-form velocity tracking.
type Step struct {
	Velocity     float64
	Acceleration float64
	Jerk         float64
}

// NextVelocityStep advances velocity tracking by one cycle of length t. A step
// that would cross targetV lands on it exactly instead.
func NextVelocityStep(v, a, t, targetV, maxAcc, maxJerk float64) Step {
	next := NextAcceleration(t, targetV, v, a, maxAcc, maxJerk)

	dv := (a + next) * t / 2
	if (dv < 0 && targetV < v && v+dv < targetV) || (dv > 0 && v < targetV && targetV < v+dv) {
		// trapezoidal update overshoots, pick the acceleration that lands on targetV
		next = 2*(targetV-v)/t - a
		landing := targetV
		if math.Abs(next) > maxAcc {
			next = m.Clamp(next, -maxAcc, maxAcc)
			// a clamped acceleration may still carry past the target
			landing = v + (a+next)*t/2
			if dv > 0 {
				landing = math.Min(landing, targetV)
			} else {
				landing = math.Max(landing, targetV)
			}
		}
		v = landing
	} else {
		v += dv
	}

	jerk := (next - a) / t
	if jerk > maxJerk {
		jerk = maxJerk
		next = a + maxJerk*t
	} else if jerk < -maxJerk {
		jerk = -maxJerk
		next = a - maxJerk*t
	}
	return Step{Velocity: v, Acceleration: next, Jerk: jerk}
}

// SpeedWithTime is the speed gained by a symmetric jerk-limited acceleration
// lasting T seconds.
func SpeedWithTime(maxAcc, maxJerk, T float64) float64 {
	if T <= 0 || maxJerk <= 0 || maxAcc <= 0 {
		return 0
	}
	t1 := math.Min(maxAcc/maxJerk, T/2)
	t2 := T - 2*t1
	return maxJerk * t1 * (t1 + t2)
}

// holdDuration is the constant acceleration time of a ramp that starts at
// rest, reaches maxAcc and covers half of a move ending at ve.
func holdDuration(ve, halfDistance, maxAcc, maxJerk float64) float64 {
	if math.Abs(maxAcc) < degenerateLimit || math.Abs(maxJerk) < degenerateLimit {
		return 0
	}
	a2 := maxAcc * maxAcc
	disc := 2*halfDistance*maxAcc + ve*ve + a2*a2/(4*maxJerk*maxJerk) - a2*ve/maxJerk
	if disc <= 0 {
		return 0
	}
	root := math.Sqrt(disc)
	common := 3 * a2 / maxJerk
	if t := -(2*ve - 2*root + common) / (2 * maxAcc); t > 0 {
		return t
	}
	if t := -(2*ve + 2*root + common) / (2 * maxAcc); t > 0 {
		return t
	}
	return 0
}

// PeakVelocity is the closed-form peak of a rest-to-rest move over distance.
func PeakVelocity(distance, maxAcc, maxJerk float64) float64 {
	half := distance / 2
	t1 := math.Cbrt(half / maxJerk)
	if maxJerk*t1 < maxAcc {
		return maxJerk * t1 * t1
	}
	t2 := holdDuration(0, half, maxAcc, maxJerk)
	if t2 <= 0 {
		return maxJerk * t1 * t1
	}
	t1 = maxAcc / maxJerk
	return maxJerk*t1*t1 + maxJerk*t2*t1
}

// PeakVelocityWithEndSpeed is the closed-form start speed from which a move
// over distance can finish at ve. The value is always usable; the error only
// reports which degenerate case produced it.
func PeakVelocityWithEndSpeed(distance, ve, maxAcc, maxJerk float64) (float64, error) {
	if math.Abs(ve) <= VelocityEpsilon {
		return PeakVelocity(distance, maxAcc, maxJerk), nil
	}
	half := distance / 2

	// maxJerk*t^3 + 2*ve*t - half = 0
	roots, n := m.SolveCubic(maxJerk, 0, 2*ve, -half)
	t1 := math.Inf(-1)
	for _, r := range roots[:n] {
		t1 = math.Max(t1, r)
	}
	var err error
	if n == 0 || t1 < 0 {
		t1 = 0.001
		err = errors.Wrapf(ErrNoJerkPhase, "distance %g end speed %g", distance, ve)
	}

	if maxJerk*t1 < maxAcc {
		return maxJerk*t1*t1 + ve, err
	}
	t2 := holdDuration(ve, half, maxAcc, maxJerk)
	if t2 <= 0 {
		return maxJerk*t1*t1 + ve, errors.Wrapf(ErrNoHoldPhase, "distance %g end speed %g", distance, ve)
	}
	t1 = maxAcc / maxJerk
	return maxJerk*t1*t1 + maxJerk*t2*t1 + ve, err
}

// ConservativePeakVelocity is PeakVelocityWithEndSpeed for a move that may
// start at full acceleration. On error it returns ve.
func ConservativePeakVelocity(distance, ve, maxAcc, maxJerk float64) (float64, error) {
	if distance <= 0 || maxAcc <= 0 || maxJerk <= 0 {
		return ve, errors.Wrapf(ErrNoDistance, "distance %g", distance)
	}
	gain := 0.5 * maxAcc * maxAcc / maxJerk
	effective := distance - maxAcc*maxAcc/(2*maxJerk)
	if effective <= 0 {
		return ve, errors.Wrapf(ErrNoDistance, "distance %g leaves %g after releasing acceleration", distance, effective)
	}
	v, err := PeakVelocityWithEndSpeed(effective, ve, maxAcc, maxJerk)
	if err != nil {
		return ve, err
	}
	return math.Max(v-gain*0.5, ve), nil
}
