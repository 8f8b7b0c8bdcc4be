package settings

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/bradleyjkemp/cupaloy/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"pfeifer.dev/scurve/params"
)

func useTempParams(t *testing.T) {
	t.Helper()
	old := params.ParamsPath
	params.SetParamsPath(filepath.Join(t.TempDir(), "params", "d"))
	t.Cleanup(func() { params.SetParamsPath(old) })
}

func TestDefaults(t *testing.T) {
	s := ScurveSettings{}
	s.Default()
	require.NoError(t, s.Validate())

	data, err := json.MarshalIndent(s, "", "  ")
	require.NoError(t, err)
	cupaloy.SnapshotT(t, string(data))
}

func TestRecommendedIsValid(t *testing.T) {
	s := ScurveSettings{}
	s.Recommended()
	assert.NoError(t, s.Validate())
	assert.Equal(t, 0.004, s.CycleTime)
}

func TestValidateReportsEveryField(t *testing.T) {
	s := ScurveSettings{}
	s.Default()
	s.CycleTime = 0
	s.MaxJerk = -1
	s.LogLevel = "loud"
	s.Tolerances.PositionSnap = -1

	err := s.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
}

func TestSet(t *testing.T) {
	s := ScurveSettings{}
	s.Default()

	require.NoError(t, s.Set("max_jerk", "250"))
	assert.Equal(t, 250.0, s.MaxJerk)
	v, err := s.Get("max_jerk")
	require.NoError(t, err)
	assert.Equal(t, "250", v)

	require.NoError(t, s.Set("tolerances.window_cycles", "4"))
	assert.Equal(t, 4.0, s.Tolerances.WindowCycles)

	require.NoError(t, s.Set("log_level", "DEBUG"))
	assert.Equal(t, "debug", s.LogLevel)

	assert.ErrorIs(t, s.Set("speed", "1"), ErrUnknownSetting)
	assert.Error(t, s.Set("max_jerk", "fast"))

	// invalid values leave the settings untouched
	assert.Error(t, s.Set("max_velocity", "-200"))
	assert.Equal(t, 100.0, s.MaxVelocity)
	require.NoError(t, s.Set("log_level", "error"))
}

func TestNames(t *testing.T) {
	s := ScurveSettings{}
	names := s.Names()
	assert.Equal(t, "log_level", names[0])
	assert.Contains(t, names, "tolerances.acceleration_zero")
	assert.IsNonDecreasing(t, names[1:])
}

func TestSaveLoad(t *testing.T) {
	useTempParams(t)

	s := ScurveSettings{}
	assert.False(t, s.Load())
	assert.Equal(t, DEFAULT_CYCLE_TIME, s.CycleTime)

	s.MaxAcceleration = 42
	s.Save()

	loaded := ScurveSettings{}
	require.True(t, loaded.Load())
	assert.Equal(t, s, loaded)
}

func TestLoadRejectsInvalid(t *testing.T) {
	useTempParams(t)
	require.NoError(t, params.PutParam(params.SCURVE_SETTINGS, []byte(`{"cycle_time": -1}`)))

	s := ScurveSettings{}
	assert.False(t, s.Load())
	assert.Equal(t, DEFAULT_CYCLE_TIME, s.CycleTime)
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	useTempParams(t)
	require.NoError(t, params.PutParam(params.SCURVE_SETTINGS, []byte(`{"max_jerk": 5}`)))

	s := ScurveSettings{}
	require.True(t, s.Load())
	assert.Equal(t, 5.0, s.MaxJerk)
	assert.Equal(t, 1000.0, s.MaxAcceleration)
}
