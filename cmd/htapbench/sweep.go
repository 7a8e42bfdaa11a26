package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sivukhin/htapbench/internal/catalog"
	"github.com/sivukhin/htapbench/internal/config"
	"github.com/sivukhin/htapbench/internal/logging"
	"github.com/sivukhin/htapbench/internal/sweep"
)

var (
	dryRun     bool
	skipImport bool
	onlyFailed bool
)

func sweepNames() []string {
	names := make([]string, 0, len(sweep.Matrices)+1)
	for _, matrix := range sweep.Matrices {
		names = append(names, matrix.Name)
	}
	return append(names, "all")
}

var sweepCmd = &cobra.Command{
	Use:       fmt.Sprintf("sweep {%v} [results]", strings.Join(sweepNames(), "|")),
	Short:     "Execute an experiment matrix run by run",
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: sweepNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		entries, err := sweep.Generate(args[0], settings)
		if err != nil {
			return err
		}
		root := settings.ResultsDir
		if len(args) == 2 {
			root = args[1]
		}
		if dryRun {
			for _, entry := range entries {
				fmt.Fprintln(cmd.OutOrStdout(), entry.Config.CommandString(filepath.Join(root, filepath.FromSlash(entry.Path))))
			}
			return nil
		}

		executor := newExecutor(settings)
		if !skipImport {
			if err := executor.ImportDatabases(cmd.Context(), settings, root); err != nil {
				return err
			}
		}
		var recorder sweep.Recorder
		if settings.Catalog != "" {
			ledger, err := catalog.Open(cmd.Context(), settings.Catalog)
			if err != nil {
				return err
			}
			defer ledger.Close()
			recorder = ledger
		}
		report, err := sweep.Run(cmd.Context(), root, entries, executor, recorder)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session %v: %v executed, %v non-zero, %v skipped\n",
			report.Session, report.Executed, report.NonZero, len(report.Failures))
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs [session]",
	Short: "List the runs recorded in the catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		return listRuns(cmd, settings, args)
	},
}

func listRuns(cmd *cobra.Command, settings *config.Settings, args []string) error {
	if settings.Catalog == "" {
		return fmt.Errorf("catalog is not configured, set %vCATALOG", config.EnvPrefix)
	}
	ledger, err := catalog.Open(cmd.Context(), settings.Catalog)
	if err != nil {
		return err
	}
	defer ledger.Close()

	session := ""
	if len(args) == 1 {
		session = args[0]
	}
	list := ledger.Runs
	if onlyFailed {
		list = ledger.Failed
	}
	runs, err := list(cmd.Context(), session)
	if err != nil {
		return err
	}
	for _, run := range runs {
		status := fmt.Sprintf("returncode=%v", run.ReturnCode)
		if run.ErrorKind != "" {
			status = fmt.Sprintf("%v: %v", run.ErrorKind, run.Error)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%v\t%v\t%v\t%v\n",
			run.Session, run.Started.Format("2006-01-02 15:04:05"), run.Path, status)
	}
	logging.Logger.Debugf("listed %v runs", len(runs))
	return nil
}

func init() {
	sweepCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the command lines instead of running them")
	sweepCmd.Flags().BoolVar(&skipImport, "skip-import", false, "do not check or import the databases first")
	runsCmd.Flags().BoolVar(&onlyFailed, "failed", false, "list only runs that were skipped or exited non-zero")
	rootCmd.AddCommand(sweepCmd, runsCmd)
}
