package trace

import (
	"math"

	"capnproto.org/go/capnp/v3"
	"pfeifer.dev/scurve/axis"
)

// Record is one servo cycle of an axis.
type Record struct {
	Time          float64 `json:"time"`
	Position      float64 `json:"position"`
	Velocity      float64 `json:"velocity"`
	Acceleration  float64 `json:"acceleration"`
	Jerk          float64 `json:"jerk"`
	PositionError float64 `json:"position_error"`
	Fallback      bool    `json:"fallback"`
	Decelerating  bool    `json:"decelerating"`
	Replanned     bool    `json:"replanned"`
}

func FromOutput(t float64, out axis.Output) Record {
	return Record{
		Time:          t,
		Position:      out.Position,
		Velocity:      out.Velocity,
		Acceleration:  out.Acceleration,
		Jerk:          out.Jerk,
		PositionError: out.PositionError,
		Fallback:      out.Fallback,
		Decelerating:  out.Decelerating,
		Replanned:     out.Replanned,
	}
}

// wire layout, all in the data section:
//
//	word 0-5  time, position, velocity, acceleration, jerk, position error
//	word 6    flags: bit 0 fallback, bit 1 decelerating, bit 2 replanned
const (
	timeOffset          capnp.DataOffset = 0
	positionOffset      capnp.DataOffset = 8
	velocityOffset      capnp.DataOffset = 16
	accelerationOffset  capnp.DataOffset = 24
	jerkOffset          capnp.DataOffset = 32
	positionErrorOffset capnp.DataOffset = 40

	fallbackBit     capnp.BitOffset = 384
	deceleratingBit capnp.BitOffset = 385
	replannedBit    capnp.BitOffset = 386
)

var recordSize = capnp.ObjectSize{DataSize: 56, PointerCount: 0}

type record capnp.Struct

func newRootRecord(s *capnp.Segment) (record, error) {
	st, err := capnp.NewRootStruct(s, recordSize)
	return record(st), err
}

func readRootRecord(msg *capnp.Message) (record, error) {
	root, err := msg.Root()
	return record(root.Struct()), err
}

func (r record) setFloat(off capnp.DataOffset, v float64) {
	capnp.Struct(r).SetUint64(off, math.Float64bits(v))
}

func (r record) float(off capnp.DataOffset) float64 {
	return math.Float64frombits(capnp.Struct(r).Uint64(off))
}

func (r record) set(rec Record) {
	r.setFloat(timeOffset, rec.Time)
	r.setFloat(positionOffset, rec.Position)
	r.setFloat(velocityOffset, rec.Velocity)
	r.setFloat(accelerationOffset, rec.Acceleration)
	r.setFloat(jerkOffset, rec.Jerk)
	r.setFloat(positionErrorOffset, rec.PositionError)
	s := capnp.Struct(r)
	s.SetBit(fallbackBit, rec.Fallback)
	s.SetBit(deceleratingBit, rec.Decelerating)
	s.SetBit(replannedBit, rec.Replanned)
}

func (r record) get() Record {
	s := capnp.Struct(r)
	return Record{
		Time:          r.float(timeOffset),
		Position:      r.float(positionOffset),
		Velocity:      r.float(velocityOffset),
		Acceleration:  r.float(accelerationOffset),
		Jerk:          r.float(jerkOffset),
		PositionError: r.float(positionErrorOffset),
		Fallback:      s.Bit(fallbackBit),
		Decelerating:  s.Bit(deceleratingBit),
		Replanned:     s.Bit(replannedBit),
	}
}
