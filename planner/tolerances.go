package planner

// Tolerances tune the sampler's precision correction. The defaults match a
// solver that is accurate to about 1e-8.
type Tolerances struct {
	// WindowFraction and WindowCycles size the correction window at the end
	// of a position trajectory: max(WindowFraction*duration, WindowCycles*cycle).
	WindowFraction float64 `json:"window_fraction"`
	WindowCycles   float64 `json:"window_cycles"`

	PositionSnap     float64 `json:"position_snap"`
	VelocitySnap     float64 `json:"velocity_snap"`
	AccelerationSnap float64 `json:"acceleration_snap"`
	// AccelerationZero is how small the terminal acceleration must be before
	// it and the jerk are forced to zero.
	AccelerationZero float64 `json:"acceleration_zero"`
}

func DefaultTolerances() Tolerances {
	return Tolerances{
		WindowFraction:   0.1,
		WindowCycles:     10,
		PositionSnap:     1e-6,
		VelocitySnap:     1e-7,
		AccelerationSnap: 1e-7,
		AccelerationZero: 1e-8,
	}
}

func (t Tolerances) window(duration, cycleTime float64) float64 {
	return max(t.WindowFraction*duration, t.WindowCycles*cycleTime)
}
