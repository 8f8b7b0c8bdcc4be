package utils

import (
	"math"
	"time"
)

// Float64Tracker remembers a value and when it last changed by more than
// Epsilon.
type Float64Tracker struct {
	LastValue   float64
	Value       float64
	UpdatedTime time.Time
	Epsilon     float64
	set         bool
}

// Differs reports whether val would count as a change.
func (t *Float64Tracker) Differs(val float64) bool {
	if !t.set {
		return true
	}
	if math.IsNaN(val) != math.IsNaN(t.Value) {
		return true
	}
	return math.Abs(t.Value-val) > t.Epsilon
}

func (t *Float64Tracker) Update(val float64) (updated bool) {
	if !t.Differs(val) {
		return false
	}
	if t.set {
		t.LastValue = t.Value
	}
	t.set = true
	t.UpdatedTime = time.Now()
	t.Value = val
	return true
}
