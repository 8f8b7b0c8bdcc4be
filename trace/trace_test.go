package trace

import (
	"bytes"
	"io"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pfeifer.dev/scurve/axis"
)

func TestWriteRead(t *testing.T) {
	records := []Record{
		{Time: 0.001, Position: 1e-9, Velocity: 2.5e-6, Acceleration: 0.005, Jerk: 5},
		{Time: 0.002, Position: -3.25, Velocity: -1, Acceleration: -0.5, Jerk: -100, PositionError: 1e-7, Decelerating: true},
		{Time: 0.003, Position: math.MaxFloat64, Fallback: true, Replanned: true},
		{},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, rec := range records {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, len(records), w.Count())

	r := NewReader(&buf)
	got, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, records, got)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, r.Close())
}

func TestEmptyStream(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "move.trace")
	w, err := Create(path)
	require.NoError(t, err)
	rec := FromOutput(0.5, axis.Output{Position: 2, Velocity: 1, Fallback: true})
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	got, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.5, got[0].Time)
	assert.Equal(t, 2.0, got[0].Position)
	assert.True(t, got[0].Fallback)
	assert.False(t, got[0].Replanned)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
