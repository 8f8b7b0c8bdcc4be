package params

import (
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempParams(t *testing.T) {
	t.Helper()
	old := ParamsPath
	SetParamsPath(filepath.Join(t.TempDir(), "params", "d"))
	t.Cleanup(func() { SetParamsPath(old) })
}

func TestPutGetRemove(t *testing.T) {
	useTempParams(t)

	require.NoError(t, PutParam(SCURVE_SETTINGS, []byte(`{"log_level":"info"}`)))
	data, err := GetParam(SCURVE_SETTINGS)
	require.NoError(t, err)
	assert.Equal(t, `{"log_level":"info"}`, string(data))

	require.NoError(t, PutParam(SCURVE_SETTINGS, []byte(`{}`)))
	data, err = GetParam(SCURVE_SETTINGS)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	require.NoError(t, PutParam(LAST_AXIS_STATE, []byte(`{}`)))
	names, err := GetParams()
	require.NoError(t, err)
	assert.Equal(t, []string{LAST_AXIS_STATE, SCURVE_SETTINGS}, names)

	require.NoError(t, RemoveParam(SCURVE_SETTINGS))
	_, err = GetParam(SCURVE_SETTINGS)
	assert.Error(t, err)
	assert.NoError(t, RemoveParam(SCURVE_SETTINGS))

	exists, err := Exists(ParamPath(LAST_AXIS_STATE))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLockStaysInsideParamsDirectory(t *testing.T) {
	useTempParams(t)
	require.NoError(t, EnsureParamDirectories())

	// an unrelated lock in the parent directory must not be contended or removed
	parentLock := filepath.Join(filepath.Dir(ParamsPath), ".lock")
	other := flock.New(parentLock)
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	t.Cleanup(func() { _ = other.Unlock() })

	require.NoError(t, PutParam(LAST_TRACE_PATH, []byte("trace.capnp")))
	exists, err := Exists(parentLock)
	require.NoError(t, err)
	assert.True(t, exists)

	names, err := GetParams()
	require.NoError(t, err)
	assert.Equal(t, []string{LAST_TRACE_PATH}, names)

	require.NoError(t, RemoveParam(LAST_TRACE_PATH))
	assert.True(t, other.Locked())
}

func TestRemoveParamWithoutDirectory(t *testing.T) {
	useTempParams(t)
	assert.NoError(t, RemoveParam(SCURVE_SETTINGS))
}

func TestParamsPathFromEnv(t *testing.T) {
	t.Setenv("SCURVE_PARAMS_DIR", "/tmp/scurve-test")
	assert.Equal(t, "/tmp/scurve-test", GetParamsPath())
}
