package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sivukhin/htapbench/internal/experiment"
	"github.com/sivukhin/htapbench/internal/logging"
)

const RerunDir = "rerun"

var (
	ErrAlreadyRerun = errors.New("experiment was already rerun")
	ErrNoConfig     = errors.New("no experiment configuration")
)

// LoadConfig reads the configuration record of a run directory.
func LoadConfig(runDir string) (experiment.Config, error) {
	path := filepath.Join(runDir, ConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return experiment.Config{}, fmt.Errorf("%w at %v: %w", ErrNoConfig, runDir, err)
	}
	config, err := experiment.Deserialize(data)
	if err != nil {
		return experiment.Config{}, fmt.Errorf("%w at %v: %w", ErrNoConfig, runDir, err)
	}
	if unknown, err := experiment.UnknownKeys(data); err == nil && len(unknown) > 0 {
		logging.Logger.Warnf("ignoring unknown configuration keys in %v: %v", path, unknown)
	}
	return config, nil
}

// Rerun repeats the run recorded at path and stores the new artifacts in
// path/rerun. An existing rerun is only replaced when force is set.
func Rerun(ctx context.Context, executor *Executor, path string, force bool) (Result, error) {
	resultPath := filepath.Join(path, RerunDir)
	if _, err := os.Stat(resultPath); err == nil {
		if !force {
			return Result{}, fmt.Errorf("%w: %v", ErrAlreadyRerun, resultPath)
		}
		logging.Logger.Infof("removing previous rerun %v", resultPath)
		if err := os.RemoveAll(resultPath); err != nil {
			return Result{}, fmt.Errorf("failed to remove previous rerun %v: %w", resultPath, err)
		}
	}
	config, err := LoadConfig(path)
	if err != nil {
		return Result{}, err
	}
	return executor.Execute(ctx, config, resultPath)
}
