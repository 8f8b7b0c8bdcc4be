package planner

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cycle = 0.001

func newPlanner(t *testing.T) *Planner {
	t.Helper()
	p, err := New(cycle)
	require.NoError(t, err)
	p.SetLogging(false)
	return p
}

func TestNewRejectsCycleTime(t *testing.T) {
	for _, c := range []float64{0, -0.001, math.NaN(), math.Inf(1)} {
		p, err := New(c)
		assert.Nil(t, p)
		assert.Equal(t, KindInvalidCycleTime, KindOf(err), "cycle %g", c)
	}
}

func TestPlanPositionReachesTarget(t *testing.T) {
	p := newPlanner(t)
	require.NoError(t, p.PlanPosition(0, 0, 0, 10, 0, 0, -5, 5, 10, 100))

	d, err := p.Duration()
	require.NoError(t, err)
	assert.Greater(t, d, 0.0)

	s, err := p.Sample(d)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, s.Position, 1e-9)
	assert.InDelta(t, 0.0, s.Velocity, 1e-8)
	assert.InDelta(t, 0.0, s.Acceleration, 1e-8)

	finished, err := p.IsFinished(d)
	require.NoError(t, err)
	assert.True(t, finished)
	finished, err = p.IsFinished(d / 2)
	require.NoError(t, err)
	assert.False(t, finished)
}

func TestSampleBeyondDurationIsTerminal(t *testing.T) {
	p := newPlanner(t)
	require.NoError(t, p.PlanPosition(0, 0, 0, 10, 0, 0, -5, 5, 10, 100))
	d, _ := p.Duration()

	end, err := p.Sample(d)
	require.NoError(t, err)
	for _, after := range []float64{d + cycle, d + 1, d * 10} {
		s, err := p.Sample(after)
		require.NoError(t, err)
		assert.Equal(t, end.Position, s.Position)
		assert.Equal(t, end.Velocity, s.Velocity)
		assert.Equal(t, end.Acceleration, s.Acceleration)
		assert.Zero(t, s.Jerk)
	}
}

func TestFailedPlanKeepsTrajectory(t *testing.T) {
	p := newPlanner(t)
	require.NoError(t, p.PlanPosition(0, 0, 0, 10, 0, 0, -5, 5, 10, 100))
	before, _ := p.Duration()
	mid, err := p.Sample(before / 2)
	require.NoError(t, err)

	err = p.PlanPosition(1, 0, 0, 20, 0, 0, -5, 5, 0, 100)
	assert.Equal(t, KindInvalidLimits, KindOf(err))
	assert.Equal(t, -1, Code(err))

	err = p.PlanPosition(1, 0, 0, math.NaN(), 0, 0, -5, 5, 10, 100)
	assert.Equal(t, KindInvalidInput, KindOf(err))

	after, err := p.Duration()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, PositionControl, p.Mode())

	again, err := p.Sample(before / 2)
	require.NoError(t, err)
	assert.Equal(t, mid.Position, again.Position)
	assert.Equal(t, mid.Velocity, again.Velocity)
}

func TestFailedFirstPlanStaysUnplanned(t *testing.T) {
	p := newPlanner(t)
	err := p.PlanVelocity(1, 0, 0, 0, 0, 0, 1)
	assert.True(t, errors.Is(err, ErrInvalidLimits))
	assert.False(t, p.Planned())

	_, err = p.Duration()
	assert.Equal(t, KindNotPlanned, KindOf(err))
}

func TestCode(t *testing.T) {
	assert.Equal(t, 0, Code(nil))

	p := newPlanner(t)
	// moving too fast to stop at the target without reversing
	err := p.PlanPosition(0, 2, 0, 0.01, 0, 0, 0, 2, 1, 1)
	assert.Equal(t, KindExecutionTimeCalculation, KindOf(err))
	assert.Equal(t, -2, Code(err))

	assert.Equal(t, -1, Code(errors.New("something else")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("something else")))
	assert.Equal(t, "execution_time_calculation", KindExecutionTimeCalculation.String())
}

func TestPositionLimits(t *testing.T) {
	p := newPlanner(t)
	p.SetPositionLimits(-1, 1)
	err := p.PlanPosition(0, 0, 0, 5, 0, 0, -5, 5, 10, 100)
	assert.Equal(t, KindPositionalLimits, KindOf(err))

	p.ClearPositionLimits()
	assert.NoError(t, p.PlanPosition(0, 0, 0, 5, 0, 0, -5, 5, 10, 100))
}

func TestSampleErrors(t *testing.T) {
	p := newPlanner(t)
	_, err := p.Sample(0)
	assert.True(t, errors.Is(err, ErrNotPlanned))

	require.NoError(t, p.PlanPosition(0, 0, 0, 1, 0, 0, -1, 1, 1, 1))
	_, err = p.Sample(-cycle)
	assert.True(t, errors.Is(err, ErrNegativeTime))
	_, err = p.Sample(math.NaN())
	assert.True(t, errors.Is(err, ErrNegativeTime))

	p.Reset()
	assert.False(t, p.Planned())
	_, err = p.Sample(0)
	assert.True(t, errors.Is(err, ErrNotPlanned))

	require.NoError(t, p.Close())
	assert.True(t, errors.Is(p.Close(), ErrClosed))
	_, err = p.Sample(0)
	assert.True(t, errors.Is(err, ErrClosed))
	assert.True(t, errors.Is(p.PlanPosition(0, 0, 0, 1, 0, 0, -1, 1, 1, 1), ErrClosed))
}

func TestAlreadyAtTarget(t *testing.T) {
	p := newPlanner(t)
	require.NoError(t, p.PlanPosition(2, 0, 0, 2, 0, 0, -1, 1, 1, 1))
	d, err := p.Duration()
	require.NoError(t, err)
	assert.Zero(t, d)

	s, err := p.Sample(0)
	require.NoError(t, err)
	assert.Equal(t, Sample{Position: 2}, s)
}

func TestPlanVelocityStops(t *testing.T) {
	p := newPlanner(t)
	require.NoError(t, p.PlanVelocity(3, 1, 0, 0, 0, 2, 4))
	assert.Equal(t, VelocityControl, p.Mode())

	d, _ := p.Duration()
	s, err := p.Sample(d)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Velocity)
	assert.Equal(t, 0.0, s.Acceleration)
	assert.Greater(t, s.Position, 0.0)

	start, err := p.StartVelocity()
	require.NoError(t, err)
	assert.Equal(t, 3.0, start)

	peak, err := p.PeakVelocity()
	require.NoError(t, err)
	assert.InDelta(t, 3.125, peak, 1e-9)

	t1, t2, err := p.DecelerationPhases()
	require.NoError(t, err)
	assert.InDelta(t, 0.75, t1, 1e-9)
	assert.InDelta(t, 1.0625, t2, 1e-9)
}

func TestPlanVelocityRejectsReverseTarget(t *testing.T) {
	p := newPlanner(t)
	err := p.PlanVelocity(1, 0, -1, 0, 0, 2, 4)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestPositionCorrectionWindow(t *testing.T) {
	p := newPlanner(t)
	tol := DefaultTolerances()
	tol.PositionSnap = 100
	tol.WindowFraction = 0.5
	tol.WindowCycles = 0
	p.SetTolerances(tol)
	require.NoError(t, p.PlanPosition(0, 0, 0, 10, 0, 0, -2, 2, 1, 1))
	d, _ := p.Duration()

	early, err := p.Sample(0.4 * d)
	require.NoError(t, err)
	assert.NotEqual(t, 10.0, early.Position)

	late, err := p.Sample(0.6 * d)
	require.NoError(t, err)
	assert.Equal(t, 10.0, late.Position)
	// velocity is left alone until the end
	assert.NotEqual(t, 0.0, late.Velocity)
}

func TestPositionWindowLeavesVelocityAlone(t *testing.T) {
	p := newPlanner(t)
	tol := DefaultTolerances()
	tol.WindowFraction = 0.5
	tol.WindowCycles = 0
	tol.VelocitySnap = 100
	tol.AccelerationSnap = 100
	p.SetTolerances(tol)
	require.NoError(t, p.PlanPosition(0, 0, 0, 10, 0, 0, -2, 2, 1, 1))

	// inside the window, mid deceleration
	s, err := p.Sample(6.5)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.Velocity, 1e-6)
	assert.InDelta(t, -1.0, s.Acceleration, 1e-6)
}

func TestVelocityModeSnapsOnlyAtEnd(t *testing.T) {
	p := newPlanner(t)
	tol := DefaultTolerances()
	tol.VelocitySnap = 100
	tol.AccelerationSnap = 100
	p.SetTolerances(tol)
	require.NoError(t, p.PlanVelocity(0, 0, 1, 0, 0, 1, 1))
	d, _ := p.Duration()
	require.InDelta(t, 2.0, d, 1e-6)

	mid, err := p.Sample(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, mid.Velocity, 1e-6)
	assert.InDelta(t, 1.0, mid.Acceleration, 1e-6)

	end, err := p.Sample(d)
	require.NoError(t, err)
	assert.Equal(t, 1.0, end.Velocity)
	assert.Equal(t, 0.0, end.Acceleration)
}

func TestUnconvergedTerminalKeepsJerk(t *testing.T) {
	run := func(tol Tolerances) Sample {
		p := newPlanner(t)
		p.SetTolerances(tol)
		require.NoError(t, p.PlanPosition(0, 0, 0, 10, 0, 0, -2, 2, 1, 1))
		hold, err := p.Sample(6.5)
		require.NoError(t, err)
		require.InDelta(t, -1.0, hold.Acceleration, 1e-6)
		d, _ := p.Duration()
		s, err := p.Sample(d + 1)
		require.NoError(t, err)
		return s
	}

	assert.Equal(t, 0.0, run(DefaultTolerances()).Jerk)

	// position never counts as converged, so nothing forces the jerk to zero
	tol := DefaultTolerances()
	tol.PositionSnap = -1
	tol.VelocitySnap = -1
	s := run(tol)
	assert.InDelta(t, 1000.0, s.Jerk, 1e-3)
}

func TestUnconvergedVelocityTerminalKeepsJerk(t *testing.T) {
	p := newPlanner(t)
	tol := DefaultTolerances()
	tol.VelocitySnap = -1
	p.SetTolerances(tol)
	require.NoError(t, p.PlanVelocity(0, 0, 1, 0, 0, 1, 1))

	peak, err := p.Sample(1)
	require.NoError(t, err)
	require.InDelta(t, 1.0, peak.Acceleration, 1e-6)

	s, err := p.Sample(3)
	require.NoError(t, err)
	assert.InDelta(t, -1000.0, s.Jerk, 1e-3)
	assert.NotEqual(t, 0.0, s.Jerk)
}

func TestSeedAccelerationOnlyOnFirstPlan(t *testing.T) {
	p := newPlanner(t)
	require.NoError(t, p.PlanPosition(0, 0, 0.5, 10, 0, 0, -2, 2, 1, 1))
	assert.Equal(t, 0.5, p.LastSampledAcceleration())

	s, err := p.Sample(0.5)
	require.NoError(t, err)

	require.NoError(t, p.PlanPosition(s.Position, s.Velocity, 0.9, 10, 0, 0, -2, 2, 1, 1))
	assert.Equal(t, s.Acceleration, p.LastSampledAcceleration())

	p.Reset()
	assert.Equal(t, s.Acceleration, p.LastSampledAcceleration())
}

func TestFirstSampleUsesCarriedAcceleration(t *testing.T) {
	p := newPlanner(t)
	require.NoError(t, p.PlanPosition(0, 0, 0, 10, 0, 0, -2, 2, 1, 1))
	var s Sample
	var err error
	for i := 1; i <= 500; i++ {
		s, err = p.Sample(float64(i) * cycle)
		require.NoError(t, err)
	}

	require.NoError(t, p.PlanPosition(s.Position, s.Velocity, s.Acceleration, -3, 0, 0, -2, 2, 1, 1))
	next, err := p.Sample(cycle)
	require.NoError(t, err)
	assert.InDelta(t, (next.Acceleration-s.Acceleration)/cycle, next.Jerk, 1e-9)
}

func TestReplanJerkContinuity(t *testing.T) {
	const (
		vMax = 2.0
		aMax = 1.5
		jMax = 4.0
	)
	rng := rand.New(rand.NewSource(7))
	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	for trial := 0; trial < 200; trial++ {
		p := newPlanner(t)
		v := uniform(-vMax, vMax)
		a := uniform(-aMax, aMax)
		require.NoError(t, p.PlanPosition(0, v, a, uniform(-5, 5), 0, 0, -vMax, vMax, aMax, jMax), "trial %d", trial)

		var s Sample
		steps := 1 + rng.Intn(400)
		for i := 1; i <= steps; i++ {
			var err error
			s, err = p.Sample(float64(i) * cycle)
			require.NoError(t, err)
			assert.LessOrEqual(t, math.Abs(s.Jerk), jMax*(1+1e-6), "trial %d step %d", trial, i)
		}

		target := uniform(-5, 5)
		err := p.PlanPosition(s.Position, s.Velocity, s.Acceleration, target, 0, 0, -vMax, vMax, aMax, jMax)
		require.NoError(t, err, "trial %d", trial)

		next, err := p.Sample(cycle)
		require.NoError(t, err)
		assert.LessOrEqual(t, math.Abs(next.Acceleration-s.Acceleration), jMax*cycle*(1+1e-6), "trial %d", trial)
	}
}

func TestTimeAtPosition(t *testing.T) {
	p := newPlanner(t)
	_, err := p.TimeAtPosition(1, 0)
	assert.Equal(t, KindNotPlanned, KindOf(err))

	require.NoError(t, p.PlanPosition(0, 0, 0, 10, 0, 0, -2, 2, 1, 1))
	ts, err := p.TimeAtPosition(5, 0)
	require.NoError(t, err)
	s, err := p.Sample(ts)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, s.Position, 1e-9)

	_, err = p.TimeAtPosition(12, 0)
	assert.Equal(t, KindPositionNotReached, KindOf(err))
}
