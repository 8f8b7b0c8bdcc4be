package params

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

var (
	ParamsPath string = GetParamsPath()
)

// Params
var (
	SCURVE_SETTINGS   = "ScurveSettings"
	LAST_AXIS_STATE   = "LastAxisState"
	LAST_TRACE_PATH   = "LastTracePath"
	lockRetries       = 50
	forceUnlockRetry  = 30
	lockRetryInterval = 1 * time.Millisecond
)

// GetParamsPath picks the params directory: $SCURVE_PARAMS_DIR, then the
// user config directory, then the working directory.
func GetParamsPath() string {
	if dir := os.Getenv("SCURVE_PARAMS_DIR"); dir != "" {
		return dir
	}
	config, err := os.UserConfigDir()
	if err != nil {
		slog.Warn("could not find user config directory", "error", err)
		return filepath.Join(".", "params", "d")
	}
	return filepath.Join(config, "scurve", "params", "d")
}

// SetParamsPath points every later param access at dir.
func SetParamsPath(dir string) {
	ParamsPath = dir
}

// exists returns whether the given file or directory exists
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err, "could not check param file stats")
}

func EnsureParamDirectories() error {
	err := os.MkdirAll(ParamsPath, 0o775)
	if err != nil {
		slog.Warn("could not make params directory", "error", err, "directory", ParamsPath)
		return errors.Wrap(err, "could not make params directory")
	}
	return nil
}

func GetParams() ([]string, error) {
	files, err := os.ReadDir(ParamsPath)
	if err != nil {
		return nil, errors.Wrap(err, "could not read params directory")
	}

	paramFiles := []string{}
	for _, file := range files {
		name := file.Name()
		if file.Type().IsRegular() && name[0] != '.' {
			paramFiles = append(paramFiles, name)
		}
	}
	sort.Strings(paramFiles)

	return paramFiles, nil
}

func ParamPath(name string) string {
	return filepath.Join(ParamsPath, name)
}

func GetParam(name string) ([]byte, error) {
	data, err := os.ReadFile(ParamPath(name))
	if err != nil {
		return nil, errors.Wrapf(err, "could not read param %s", name)
	}
	return data, nil
}

// withLock runs fn while holding the lock file inside the params directory.
// A lock that stays taken is assumed stale and removed.
func withLock(dir string, fn func() error) error {
	lockPath := filepath.Join(dir, ".lock")
	fileLock := flock.New(lockPath)

	retries := 0
	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrap(err, "could not try locking params directory")
		}
		if locked {
			break
		}
		retries += 1
		if retries > forceUnlockRetry {
			// try to force the lock to be removed
			if err := os.Remove(lockPath); err != nil {
				slog.Debug("failed to force delete params lock", "error", err)
			}
		}
		if retries > lockRetries {
			return errors.New("could not obtain lock")
		}
		time.Sleep(lockRetryInterval)
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			slog.Error("could not unlock params directory", "error", err)
		}
	}()
	defer func() {
		if err := os.Remove(lockPath); err != nil {
			slog.Error("could not remove params lock file", "error", err)
		}
	}()

	if err := fn(); err != nil {
		return err
	}

	directory, err := os.Open(dir)
	if err != nil {
		return errors.Wrap(err, "could not open params directory")
	}
	defer directory.Close()
	if err := directory.Sync(); err != nil {
		return errors.Wrap(err, "could not fsync params directory")
	}
	return nil
}

// PutParam atomically replaces the param with data.
func PutParam(name string, data []byte) error {
	if err := EnsureParamDirectories(); err != nil {
		return err
	}
	path := ParamPath(name)
	dir := filepath.Dir(path)
	file, err := os.CreateTemp(dir, ".tmp_value_"+filepath.Base(path))
	if err != nil {
		return errors.Wrap(err, "could not create temp param file")
	}
	tmpName := file.Name()
	defer os.Remove(tmpName)
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return errors.Wrap(err, "could not write data to temp param file")
	}
	if err := file.Sync(); err != nil {
		return errors.Wrap(err, "could not fsync temp param file")
	}

	return withLock(dir, func() error {
		if err := os.Rename(tmpName, path); err != nil {
			return errors.Wrap(err, "could not move temp param file to persistent location")
		}
		return nil
	})
}

func RemoveParam(name string) error {
	path := ParamPath(name)
	dir := filepath.Dir(path)
	exists, err := Exists(dir)
	if err != nil || !exists {
		return err
	}
	return withLock(dir, func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "could not remove param")
		}
		return nil
	})
}
