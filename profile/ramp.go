package profile

import (
	"math"

	m "pfeifer.dev/scurve/math"
)

// brake returns the segment that brings an acceleration outside
// [-aMax, aMax] back onto the limit. It is empty when a0 is already inside.
func brake(a0, aMax, jMax float64) Segment {
	if math.Abs(a0) <= aMax {
		return Segment{}
	}
	return Segment{
		Duration: (math.Abs(a0) - aMax) / jMax,
		Jerk:     -m.Sign(a0) * jMax,
	}
}

// ramp returns the fastest three phase jerk-limited change from (v0, a0) to
// (v1, a1): jerk towards a peak acceleration, an optional hold at the
// acceleration limit, and jerk back to a1. Both accelerations must already
// lie within [-aMax, aMax].
func ramp(v0, a0, v1, a1, aMax, jMax float64) [3]Segment {
	dv := v1 - v0
	direct := (a0 + a1) / 2 * math.Abs(a1-a0) / jMax
	mean := (a0*a0 + a1*a1) / 2

	var peak float64
	if dv >= direct {
		peak = math.Min(math.Sqrt(math.Max(jMax*dv+mean, 0)), aMax)
	} else {
		peak = math.Max(-math.Sqrt(math.Max(-jMax*dv+mean, 0)), -aMax)
	}

	t1 := math.Abs(peak-a0) / jMax
	t3 := math.Abs(a1-peak) / jMax
	var hold float64
	if peak != 0 {
		dv1 := (a0 + peak) / 2 * t1
		dv3 := (peak + a1) / 2 * t3
		hold = math.Max((dv-dv1-dv3)/peak, 0)
	}

	return [3]Segment{
		{Duration: t1, Jerk: m.Sign(peak-a0) * jMax},
		{Duration: hold},
		{Duration: t3, Jerk: m.Sign(a1-peak) * jMax},
	}
}
