package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sivukhin/htapbench/internal/logging"
	"github.com/sivukhin/htapbench/internal/runner"
)

var forceRerun bool

var runCmd = &cobra.Command{
	Use:   "run <output>",
	Short: "Execute a single run with the default configuration and --set overrides",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		config, err := settings.Experiment().Overrides(settings.Overrides)
		if err != nil {
			return err
		}
		result, err := newExecutor(settings).Execute(cmd.Context(), config, args[0])
		if err != nil {
			return err
		}
		if result.Failed() {
			return fmt.Errorf("run %v exited with code %v", result.Path, result.ReturnCode)
		}
		return nil
	},
}

var rerunCmd = &cobra.Command{
	Use:   "rerun <run>",
	Short: "Repeat a recorded run into its rerun subdirectory",
	Long: `Rerun reads the config.json of a previous run and executes it again into
<run>/rerun. An existing rerun directory is kept unless -f is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		result, err := runner.Rerun(cmd.Context(), newExecutor(settings), args[0], forceRerun)
		if err != nil {
			return err
		}
		if result.Failed() {
			return fmt.Errorf("rerun of %v exited with code %v", args[0], result.ReturnCode)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import [results]",
	Short: "Create the benchmark database on every configured disk",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		root := settings.ResultsDir
		if len(args) == 1 {
			root = args[0]
		}
		if err := newExecutor(settings).ImportDatabases(cmd.Context(), settings, root); err != nil {
			return err
		}
		logging.Logger.Infof("databases ready on %v disks", len(settings.Sweep.Disks))
		return nil
	},
}

func init() {
	rerunCmd.Flags().BoolVarP(&forceRerun, "force", "f", false, "replace an existing rerun directory")
	rootCmd.AddCommand(runCmd, rerunCmd, importCmd)
}
