package settings

import (
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"pfeifer.dev/scurve/params"
	"pfeifer.dev/scurve/planner"
	"pfeifer.dev/scurve/profile"
	"pfeifer.dev/scurve/utils"
)

var (
	Settings = ScurveSettings{}
)

var ErrUnknownSetting = errors.New("unknown setting")

type ScurveSettings struct {
	LogLevel        string             `json:"log_level"`
	CycleTime       float64            `json:"cycle_time"`
	MinVelocity     float64            `json:"min_velocity"`
	MaxVelocity     float64            `json:"max_velocity"`
	MaxAcceleration float64            `json:"max_acceleration"`
	MaxJerk         float64            `json:"max_jerk"`
	ParamEpsilon    float64            `json:"param_epsilon"`
	Tolerances      planner.Tolerances `json:"tolerances"`
}

func (s *ScurveSettings) Default() {
	s.LogLevel = DEFAULT_LOG_LEVEL
	s.CycleTime = DEFAULT_CYCLE_TIME
	s.MinVelocity = -100
	s.MaxVelocity = 100
	s.MaxAcceleration = 1000
	s.MaxJerk = 10000
	s.ParamEpsilon = 1e-8
	s.Tolerances = planner.DefaultTolerances()
}

// Recommended trades the default servo rate for a slower loop with a
// tighter correction window.
func (s *ScurveSettings) Recommended() {
	s.Default()
	s.LogLevel = "warn"
	s.CycleTime = 0.004
	s.Tolerances.WindowCycles = 5
}

// Limits returns the configured default kinematic limits.
func (s *ScurveSettings) Limits() profile.Limits {
	return profile.Limits{
		MinVelocity:     s.MinVelocity,
		MaxVelocity:     s.MaxVelocity,
		MaxAcceleration: s.MaxAcceleration,
		MaxJerk:         s.MaxJerk,
	}
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return errors.Errorf("%s must be positive and finite, got %v", name, v)
	}
	return nil
}

func nonNegative(name string, v float64) error {
	if !(v >= 0) || math.IsInf(v, 0) {
		return errors.Errorf("%s must be non-negative and finite, got %v", name, v)
	}
	return nil
}

// Validate reports every invalid field at once.
func (s *ScurveSettings) Validate() error {
	var err error
	if s.CycleTime < MIN_CYCLE_TIME || s.CycleTime > MAX_CYCLE_TIME || math.IsNaN(s.CycleTime) {
		err = multierr.Append(err, errors.Errorf("cycle_time must be within [%v, %v], got %v", MIN_CYCLE_TIME, MAX_CYCLE_TIME, s.CycleTime))
	}
	if !(s.MinVelocity < s.MaxVelocity) {
		err = multierr.Append(err, errors.Errorf("min_velocity %v must be below max_velocity %v", s.MinVelocity, s.MaxVelocity))
	}
	err = multierr.Combine(
		err,
		positive("max_velocity", s.MaxVelocity),
		positive("max_acceleration", s.MaxAcceleration),
		positive("max_jerk", s.MaxJerk),
		nonNegative("param_epsilon", s.ParamEpsilon),
		nonNegative("tolerances.window_fraction", s.Tolerances.WindowFraction),
		nonNegative("tolerances.window_cycles", s.Tolerances.WindowCycles),
		nonNegative("tolerances.position_snap", s.Tolerances.PositionSnap),
		nonNegative("tolerances.velocity_snap", s.Tolerances.VelocitySnap),
		nonNegative("tolerances.acceleration_snap", s.Tolerances.AccelerationSnap),
		nonNegative("tolerances.acceleration_zero", s.Tolerances.AccelerationZero),
	)
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, errors.Errorf("unknown log_level %q", s.LogLevel))
	}
	return err
}

func (s *ScurveSettings) Load() (success bool) {
	s.Default() // set defaults so settings not already in param are defaulted
	data, err := params.GetParam(params.SCURVE_SETTINGS)
	if err != nil {
		utils.Logde(err)
		return false
	}

	err = json.Unmarshal(data, s)
	if err != nil {
		utils.Loge(errors.Wrap(err, "could not parse settings"))
		return false
	}

	if err := s.Validate(); err != nil {
		for _, e := range multierr.Errors(err) {
			utils.Logwe(e)
		}
		s.Default()
		return false
	}

	s.setLogLevel()

	return true
}

func (s *ScurveSettings) LoadWithRetries(tries int) {
	for i := range tries {
		if s.Load() {
			break
		}
		if i < tries-1 {
			time.Sleep(LOAD_RETRY_DELAY)
		}
	}
	s.Save()
}

func (s *ScurveSettings) Save() {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		utils.Loge(err)
		return
	}
	err = params.PutParam(params.SCURVE_SETTINGS, data)
	if err != nil {
		utils.Loge(err)
		return
	}
}

func (s *ScurveSettings) setLogLevel() {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		slog.SetLogLoggerLevel(slog.LevelDebug)
	case "info":
		slog.SetLogLoggerLevel(slog.LevelInfo)
	case "warn":
		slog.SetLogLoggerLevel(slog.LevelWarn)
	case "error":
		slog.SetLogLoggerLevel(slog.LevelError)
	default:
		slog.SetLogLoggerLevel(slog.LevelError)
	}
}

func (s *ScurveSettings) fields() map[string]*float64 {
	return map[string]*float64{
		"cycle_time":                   &s.CycleTime,
		"min_velocity":                 &s.MinVelocity,
		"max_velocity":                 &s.MaxVelocity,
		"max_acceleration":             &s.MaxAcceleration,
		"max_jerk":                     &s.MaxJerk,
		"param_epsilon":                &s.ParamEpsilon,
		"tolerances.window_fraction":   &s.Tolerances.WindowFraction,
		"tolerances.window_cycles":     &s.Tolerances.WindowCycles,
		"tolerances.position_snap":     &s.Tolerances.PositionSnap,
		"tolerances.velocity_snap":     &s.Tolerances.VelocitySnap,
		"tolerances.acceleration_snap": &s.Tolerances.AccelerationSnap,
		"tolerances.acceleration_zero": &s.Tolerances.AccelerationZero,
	}
}

// Names lists every setting accepted by Set and Get.
func (s *ScurveSettings) Names() []string {
	names := []string{"log_level"}
	for name := range s.fields() {
		names = append(names, name)
	}
	sort.Strings(names[1:])
	return names
}

func (s *ScurveSettings) Get(name string) (string, error) {
	if name == "log_level" {
		return s.LogLevel, nil
	}
	field, ok := s.fields()[name]
	if !ok {
		return "", errors.Wrap(ErrUnknownSetting, name)
	}
	return strconv.FormatFloat(*field, 'g', -1, 64), nil
}

// Set parses value into the named setting. The settings are left untouched
// when the result would not validate.
func (s *ScurveSettings) Set(name, value string) error {
	next := *s
	if name == "log_level" {
		next.LogLevel = strings.ToLower(value)
	} else {
		field, ok := next.fields()[name]
		if !ok {
			return errors.Wrap(ErrUnknownSetting, name)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrapf(err, "could not parse %s", name)
		}
		*field = v
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*s = next
	if name == "log_level" {
		s.setLogLevel()
	}
	return nil
}

// SettingsPath is where Save persists the settings.
func SettingsPath() string {
	return params.ParamPath(params.SCURVE_SETTINGS)
}
