package profile

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultLimits = Limits{MinVelocity: -2, MaxVelocity: 2, MaxAcceleration: 1, MaxJerk: 1}

// checkLimits walks the profile and verifies continuity and the limits.
func checkLimits(t *testing.T, p Profile, lim Limits) {
	t.Helper()
	const steps = 2000
	prev := p.At(0)
	for i := 1; i <= steps; i++ {
		ts := p.Duration * float64(i) / steps
		s := p.At(ts)
		dt := p.Duration / steps
		assert.LessOrEqual(t, math.Abs(s.Acceleration), lim.MaxAcceleration+1e-9, "acceleration at %g", ts)
		assert.InDelta(t, prev.Acceleration, s.Acceleration, lim.MaxJerk*dt+1e-9, "jerk at %g", ts)
		assert.InDelta(t, prev.Velocity, s.Velocity, lim.MaxAcceleration*dt+1e-9, "velocity jump at %g", ts)
		prev = s
	}
}

func TestSolvePositionTrapezoid(t *testing.T) {
	p, err := SolvePosition(State{}, State{Position: 10}, defaultLimits, Bounds{})
	require.NoError(t, err)

	assert.InDelta(t, 8.0, p.Duration, 1e-9)
	assert.InDelta(t, 2.0, p.PeakVelocity(), 1e-9)
	assert.InDelta(t, 2.0, p.Phases[CruisePhase].Duration, 1e-9)

	end := p.At(p.Duration + 1)
	assert.InDelta(t, 10.0, end.Position, 1e-9)
	assert.InDelta(t, 0.0, end.Velocity, 1e-9)
	assert.InDelta(t, 0.0, end.Acceleration, 1e-9)

	t1, t2 := p.DecelerationPhases()
	assert.InDelta(t, 1.0, t1, 1e-9)
	assert.InDelta(t, 1.0, t2, 1e-9)

	checkLimits(t, p, defaultLimits)
}

func TestSolvePositionTriangular(t *testing.T) {
	p, err := SolvePosition(State{}, State{Position: 0.1}, defaultLimits, Bounds{})
	require.NoError(t, err)

	assert.Less(t, p.PeakVelocity(), defaultLimits.MaxVelocity)
	assert.Zero(t, p.Phases[CruisePhase].Duration)
	_, hold := p.DecelerationPhases()
	assert.InDelta(t, 0.0, hold, 1e-9)
	assert.InDelta(t, 0.1, p.End().Position, 1e-9)
	checkLimits(t, p, defaultLimits)
}

func TestSolvePositionNegativeDirection(t *testing.T) {
	p, err := SolvePosition(State{Position: 5}, State{Position: -5}, defaultLimits, Bounds{})
	require.NoError(t, err)

	assert.InDelta(t, -2.0, p.PeakVelocity(), 1e-9)
	assert.InDelta(t, -5.0, p.End().Position, 1e-9)
	lo, hi := p.PositionExtrema()
	assert.InDelta(t, -5.0, lo, 1e-9)
	assert.InDelta(t, 5.0, hi, 1e-9)
}

func TestSolvePositionMovingStart(t *testing.T) {
	start := State{Position: 1, Velocity: 1.5, Acceleration: 0.5}
	target := State{Position: 4, Velocity: 0.5}
	p, err := SolvePosition(start, target, defaultLimits, Bounds{})
	require.NoError(t, err)

	assert.Equal(t, start, p.Start())
	end := p.End()
	assert.InDelta(t, 4.0, end.Position, 1e-6)
	assert.InDelta(t, 0.5, end.Velocity, 1e-9)
	checkLimits(t, p, defaultLimits)
}

func TestSolvePositionReverses(t *testing.T) {
	// moving away from the target fast enough that it has to come back
	p, err := SolvePosition(State{Velocity: 2}, State{Position: -1}, defaultLimits, Bounds{})
	require.NoError(t, err)

	lo, hi := p.PositionExtrema()
	assert.InDelta(t, -1.0, lo, 1e-9)
	assert.Greater(t, hi, 1.0)
	assert.InDelta(t, -1.0, p.End().Position, 1e-6)

	_, err = SolvePosition(State{Velocity: 2}, State{Position: -1}, defaultLimits, Bounds{Enabled: true, Min: -1, Max: 1})
	assert.True(t, errors.Is(err, ErrPositionalLimits))
}

func TestSolvePositionBrake(t *testing.T) {
	start := State{Acceleration: 3}
	p, err := SolvePosition(start, State{Position: 20}, defaultLimits, Bounds{})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, p.Phases[BrakePhase].Duration, 1e-12)
	assert.Equal(t, -1.0, p.Phases[BrakePhase].Jerk)
	assert.InDelta(t, 1.0, p.At(2).Acceleration, 1e-12)
	assert.InDelta(t, 20.0, p.End().Position, 1e-6)
}

func TestSolvePositionAlreadyAtTarget(t *testing.T) {
	s := State{Position: 3, Velocity: 0.5}
	p, err := SolvePosition(s, s, defaultLimits, Bounds{})
	require.NoError(t, err)
	assert.Zero(t, p.Duration)
	assert.Equal(t, s, p.At(1))
}

func TestSolvePositionErrors(t *testing.T) {
	cases := []struct {
		name   string
		start  State
		target State
		lim    Limits
		want   error
	}{
		{"nan", State{Position: math.NaN()}, State{Position: 1}, defaultLimits, ErrInvalidInput},
		{"collapsed window", State{}, State{Position: 1}, Limits{MinVelocity: 1, MaxVelocity: 1, MaxAcceleration: 1, MaxJerk: 1}, ErrZeroLimits},
		{"target acceleration", State{}, State{Position: 1, Acceleration: 2}, defaultLimits, ErrInvalidInput},
		{"target velocity", State{}, State{Position: 1, Velocity: 3}, defaultLimits, ErrInvalidInput},
		{"no reverse", State{Velocity: 2}, State{Position: 0.01}, Limits{MaxVelocity: 2, MaxAcceleration: 1, MaxJerk: 1}, ErrExecutionTimeCalculation},
		{"too long", State{}, State{Position: 1e6}, Limits{MaxVelocity: 1, MaxAcceleration: 1, MaxJerk: 1}, ErrDurationOverflow},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p, err := SolvePosition(c.start, c.target, c.lim, Bounds{})
			assert.True(t, errors.Is(err, c.want), "got %v", err)
			assert.Zero(t, p.Duration)
		})
	}
}

func TestSolveVelocityStop(t *testing.T) {
	lim := Limits{MaxAcceleration: 2, MaxJerk: 4}
	p, err := SolveVelocity(State{Velocity: 3, Acceleration: 1}, 0, 0, lim)
	require.NoError(t, err)

	assert.Equal(t, VelocityControl, p.Control)
	end := p.End()
	assert.InDelta(t, 0.0, end.Velocity, 1e-9)
	assert.InDelta(t, 0.0, end.Acceleration, 1e-9)
	assert.Greater(t, end.Position, 0.0)
	assert.InDelta(t, 3.0+1.0/8, p.PeakVelocity(), 1e-9)

	t1, t2 := p.DecelerationPhases()
	assert.Equal(t, p.Phases[AccelJerkPhase].Duration, t1)
	assert.Equal(t, p.Phases[AccelHoldPhase].Duration, t2)
	checkLimits(t, p, lim)
}

func TestSolveVelocityErrors(t *testing.T) {
	lim := Limits{MaxAcceleration: 2, MaxJerk: 4}
	_, err := SolveVelocity(State{Velocity: 1}, -1, 0, lim)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = SolveVelocity(State{Velocity: 1}, 0, 3, lim)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = SolveVelocity(State{Velocity: math.Inf(1)}, 0, 0, lim)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestTimeAtPosition(t *testing.T) {
	p, err := SolvePosition(State{}, State{Position: 10}, defaultLimits, Bounds{})
	require.NoError(t, err)

	for _, x := range []float64{0.1, 3, 5, 9.99} {
		ts, ok := p.TimeAtPosition(x, 0)
		require.True(t, ok, "position %g", x)
		assert.InDelta(t, x, p.At(ts).Position, 1e-9)
	}

	ts, ok := p.TimeAtPosition(0, 0)
	assert.True(t, ok)
	assert.Zero(t, ts)

	ts, ok = p.TimeAtPosition(10, 0)
	assert.True(t, ok)
	assert.InDelta(t, p.Duration, ts, 1e-3)

	_, ok = p.TimeAtPosition(11, 0)
	assert.False(t, ok)

	_, ok = p.TimeAtPosition(1, 5)
	assert.False(t, ok)
}

func TestProfileIsValue(t *testing.T) {
	p, err := SolvePosition(State{}, State{Position: 10}, defaultLimits, Bounds{})
	require.NoError(t, err)

	q := p
	q.Phases[CruisePhase].Duration = 100
	q.build(State{})
	assert.InDelta(t, 8.0, p.Duration, 1e-9)
}
