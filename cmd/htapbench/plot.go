package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sivukhin/htapbench/internal/analysis"
	"github.com/sivukhin/htapbench/internal/logging"
	"github.com/sivukhin/htapbench/internal/render"
	"github.com/sivukhin/htapbench/internal/runner"
	"github.com/sivukhin/htapbench/internal/sweep"
	"github.com/sivukhin/htapbench/internal/trace"
)

var plotsDir string

var plotCmd = &cobra.Command{
	Use:   "plot [results]",
	Short: "Render the sweep summaries and the per-run timelines of a result tree",
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
		out := plotsDir
		if out == "" {
			out = filepath.Join(root, "plots")
		}
		if err := os.MkdirAll(out, 0o755); err != nil {
			return err
		}
		if err := plotScalability(root, out); err != nil {
			return err
		}
		if err := plotWorkingSet(root, out); err != nil {
			return err
		}
		return plotRuns(root, out)
	},
}

func toSeries(name string, points []analysis.Point) analysis.Series {
	series := analysis.Series{Name: name}
	for _, p := range points {
		series.X = append(series.X, p.X)
		series.Y = append(series.Y, p.Y)
	}
	return series
}

func plotScalability(root, out string) error {
	oltp, err := analysis.OltpScalability(filepath.Join(root, sweep.OltpScalabilityDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	olap, err := analysis.OlapScalability(filepath.Join(root, sweep.OlapScalabilityDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if len(oltp) > 0 {
		err := render.Lines(filepath.Join(out, "oltp_scalability.png"),
			render.Chart{Title: "TPC-C", XLabel: "# Threads", YLabel: "OLTP Throughput [MtpmC]"},
			toSeries("no_success", oltp))
		if err != nil {
			return err
		}
	}
	if len(olap) > 0 {
		err := render.Lines(filepath.Join(out, "olap_scalability.png"),
			render.Chart{Title: "Q09", XLabel: "# Threads", YLabel: "OLAP Throughput [q/s]"},
			toSeries("q09", olap))
		if err != nil {
			return err
		}
	}
	return nil
}

func plotWorkingSet(root, out string) error {
	byDisk, err := analysis.WorkingSet(filepath.Join(root, sweep.WorkingSetDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	disks := make([]string, 0, len(byDisk))
	for disk := range byDisk {
		disks = append(disks, disk)
	}
	slices.Sort(disks)
	series := make([]analysis.Series, 0, len(disks))
	for _, disk := range disks {
		series = append(series, toSeries(disk, byDisk[disk]))
	}
	return render.Lines(filepath.Join(out, "working_set.png"),
		render.Chart{Title: "Working set", XLabel: "Memory limit [MB]", YLabel: "OLTP Throughput [MtpmC]"},
		series...)
}

// plotRuns renders throughput and hit rate of every run, the average latency
// of its transactions when a latency log exists, and its page-access trace.
func plotRuns(root, out string) error {
	runs, err := analysis.LoadRuns(root)
	if err != nil {
		return err
	}
	for _, run := range runs {
		w := window(run.Stats.Elapsed)
		var series []analysis.Series
		if throughput, ok := run.Stats.Throughput(w); ok {
			series = append(series, throughput)
		}
		if len(series) > 0 {
			err := render.Lines(filepath.Join(out, run.Name+"-throughput.png"),
				render.Chart{Title: run.Name, XLabel: "elapsed time [s]", YLabel: "MtpmC"},
				series...)
			if err != nil {
				return err
			}
		}
		if rate, ok := run.Stats.HitRate(w); ok {
			err := render.Lines(filepath.Join(out, run.Name+"-hitrate.png"),
				render.Chart{Title: run.Name, XLabel: "elapsed time [s]", YLabel: "hit rate [%]"},
				rate)
			if err != nil {
				return err
			}
		}
		if err := skipBroken(run, plotLatency(run, w, out)); err != nil {
			return err
		}
		if err := skipBroken(run, plotTrace(run, out)); err != nil {
			return err
		}
	}
	return nil
}

// skipBroken drops the chart of a run whose artifact cannot be read, so one
// broken run does not stop the rest of the tree.
func skipBroken(run analysis.Run, err error) error {
	if err == nil {
		return nil
	}
	if analysis.IsUnavailable(err) || errors.Is(err, analysis.ErrMissingColumn) || errors.Is(err, trace.ErrMalformed) {
		logging.Logger.Warnf("skipping chart of run %v: %v", run.Path, err)
		return nil
	}
	return err
}

func plotLatency(run analysis.Run, w float64, out string) error {
	latencies, _, err := analysis.LoadLatencies(run.Path)
	if analysis.IsUnavailable(err) {
		logging.Logger.Debugf("no latency log for %v: %v", run.Path, err)
		return nil
	} else if err != nil {
		return err
	}
	var series []analysis.Series
	for _, tag := range analysis.TransactionTags {
		if avg := latencies.AverageLatency(tag, w); len(avg.X) > 0 {
			series = append(series, avg)
		}
	}
	if len(series) == 0 {
		return nil
	}
	return render.Lines(filepath.Join(out, run.Name+"-latency.png"),
		render.Chart{Title: run.Name, XLabel: "elapsed time [s]", YLabel: "latency [ms]"},
		series...)
}

func plotTrace(run analysis.Run, out string) error {
	path := filepath.Join(run.Path, runner.TraceFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	events, err := trace.ReadAll(path)
	if err != nil {
		return fmt.Errorf("trace of %v: %w", run.Path, err)
	}
	return render.TraceScatter(filepath.Join(out, run.Name+"-cache.png"),
		render.Chart{Title: run.Name, XLabel: "elapsed time [s]", YLabel: "pid"},
		trace.Persistent(events, trace.TempIDThreshold))
}

func init() {
	plotCmd.Flags().StringVarP(&plotsDir, "out", "o", "", "directory for the images (default <results>/plots)")
	rootCmd.AddCommand(plotCmd)
}
