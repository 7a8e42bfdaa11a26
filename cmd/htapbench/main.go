package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sivukhin/htapbench/internal/config"
	"github.com/sivukhin/htapbench/internal/logging"
	"github.com/sivukhin/htapbench/internal/runner"
)

var (
	settingsFile string
	envFiles     []string
	logLevel     string
	assignments  []string
)

var rootCmd = &cobra.Command{
	Use:           "htapbench",
	Short:         "Run HTAP benchmark sweeps and reduce their telemetry",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			return nil
		}
		return logging.SetLevel(logLevel)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&settingsFile, "settings", "s", "", "path to a YAML or JSON settings file")
	flags.StringSliceVar(&envFiles, "env-file", nil, "dotenv files loaded before the environment is read (default .env)")
	flags.StringVar(&logLevel, "log-level", "", "log level, e.g. debug or warn")
	flags.StringArrayVar(&assignments, "set", nil, "override a run parameter, e.g. --set benchmark=10")
}

// loadSettings resolves the driver settings: defaults, then the settings
// file, then HTAPBENCH_* variables. --set assignments extend the overrides
// of the settings file.
func loadSettings() (*config.Settings, error) {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	settings := config.Default()
	if settingsFile != "" {
		loaded, err := config.LoadFromFile(settingsFile)
		if err != nil {
			return nil, err
		}
		settings = loaded
	}
	if err := config.LoadFromEnv(settings); err != nil {
		return nil, err
	}
	settings.Overrides = append(settings.Overrides, assignments...)
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func newExecutor(settings *config.Settings) *runner.Executor {
	return &runner.Executor{
		WorkDir:   settings.WorkDir,
		TraceFile: runner.TraceFile,
		Timeout:   settings.RunTimeout.Duration,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logging.Logger.Errorf("%v", err)
		_ = logging.Logger.Sync()
		os.Exit(1)
	}
	_ = logging.Logger.Sync()
}
