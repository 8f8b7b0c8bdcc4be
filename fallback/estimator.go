package fallback

import (
	"math"

	"github.com/pkg/errors"
	"pfeifer.dev/scurve/planner"
)

var ErrInvalidDistance = errors.New("distance must be finite and non-negative")

// Estimator answers peak and start speed questions by planning full moves on
// a planner it owns. The planner is reset before every use. An Estimator is
// not safe for concurrent use; give each axis its own.
type Estimator struct {
	planner *planner.Planner
}

func NewEstimator(cycleTime float64) (*Estimator, error) {
	p, err := planner.New(cycleTime)
	if err != nil {
		return nil, errors.Wrap(err, "create estimator planner")
	}
	p.SetLogging(false)
	return &Estimator{planner: p}, nil
}

func (e *Estimator) Close() error {
	return e.planner.Close()
}

// speedCap bounds the peak of any move over distance from above, so a plan
// limited by it never cruises.
func speedCap(distance, ve, maxAcc, maxJerk float64) float64 {
	return 2 * (math.Abs(ve) + math.Cbrt(maxJerk*distance*distance) + math.Sqrt(maxAcc*distance))
}

func checkDistance(distance float64) error {
	if !(distance >= 0) || math.IsInf(distance, 1) {
		return errors.Wrapf(ErrInvalidDistance, "distance %g", distance)
	}
	return nil
}

// SymmetricPeakVelocity is the peak of a rest-to-rest move over distance.
func (e *Estimator) SymmetricPeakVelocity(distance, maxAcc, maxJerk float64) (float64, error) {
	if err := checkDistance(distance); err != nil {
		return 0, err
	}
	if distance == 0 {
		return 0, nil
	}
	e.planner.Reset()
	vCap := speedCap(distance, 0, maxAcc, maxJerk)
	if err := e.planner.PlanPosition(0, 0, 0, distance, 0, 0, 0, vCap, maxAcc, maxJerk); err != nil {
		return 0, errors.Wrap(err, "symmetric peak velocity")
	}
	return e.planner.PeakVelocity()
}

// PeakVelocityWithEndSpeed is the peak of a move from rest over distance that
// finishes at ve.
func (e *Estimator) PeakVelocityWithEndSpeed(distance, ve, maxAcc, maxJerk float64) (float64, error) {
	if math.Abs(ve) <= VelocityEpsilon {
		return e.SymmetricPeakVelocity(distance, maxAcc, maxJerk)
	}
	if err := checkDistance(distance); err != nil {
		return 0, err
	}
	ve = math.Abs(ve)
	e.planner.Reset()
	vCap := speedCap(distance, ve, maxAcc, maxJerk)
	if err := e.planner.PlanPosition(0, 0, 0, distance, ve, 0, 0, vCap, maxAcc, maxJerk); err != nil {
		return 0, errors.Wrap(err, "peak velocity with end speed")
	}
	return e.planner.PeakVelocity()
}

// MaxStartSpeed is the largest speed from which a move can still finish at ve
// within distance. It never returns a speed that cannot be planned: an
// infeasible estimate falls back to the symmetric peak for the distance.
func (e *Estimator) MaxStartSpeed(distance, ve, maxAcc, maxJerk float64) (float64, error) {
	if err := checkDistance(distance); err != nil {
		return 0, err
	}
	ve = math.Abs(ve)
	symmetric, err := e.SymmetricPeakVelocity(distance, maxAcc, maxJerk)
	if err != nil {
		return 0, err
	}

	estimate := math.Sqrt(ve*ve + 2*maxAcc*distance)
	e.planner.Reset()
	result := symmetric
	if err := e.planner.PlanPosition(0, estimate, 0, distance, ve, 0, 0, estimate, maxAcc, maxJerk); err == nil {
		result = math.Min(estimate, symmetric)
	}
	// finishing at ve from ve is a cruise, always feasible
	return math.Max(result, ve), nil
}
