package main

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sivukhin/htapbench/internal/analysis"
	"github.com/sivukhin/htapbench/internal/runner"
	"github.com/sivukhin/htapbench/internal/trace"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarize the telemetry of a single run",
}

var analyzeStatsCmd = &cobra.Command{
	Use:   "stats <run>",
	Short: "Summarize the counters of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, config, err := analysis.LoadStats(args[0])
		if err != nil {
			return err
		}
		out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(out, "samples\t%v\n", stats.Len())
		fmt.Fprintf(out, "throughput\t%.4f MtpmC\n", stats.TpmC(config))
		w := window(stats.Elapsed)
		if rate, ok := stats.HitRate(w); ok {
			fmt.Fprintf(out, "hit rate\t%.2f%%\n", analysis.Mean(rate.Y))
		}
		for _, column := range stats.Columns {
			values, _ := stats.Column(column)
			fmt.Fprintf(out, "mean %v\t%.2f\n", column, analysis.Mean(values))
		}
		return out.Flush()
	},
}

var analyzeLatencyCmd = &cobra.Command{
	Use:   "latency <run>",
	Short: "Summarize the latency log of a run per transaction and query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		latencies, _, err := analysis.LoadLatencies(args[0])
		if err != nil {
			return err
		}
		latencies = latencies.Classify(analysis.DefaultClassifier)
		out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(out, "tag\tcount\tmean [s]\tp50 [us]\tp99 [us]\tidle\tolap\talloc")
		tags := append(append([]string{}, analysis.TransactionTags...), analysis.DefaultClassifier.AnalyticTags...)
		for _, tag := range tags {
			times := latencies.Times(tag)
			if len(times) == 0 {
				continue
			}
			phases := latencies.PhaseCounts(tag)
			fmt.Fprintf(out, "%v\t%v\t%.4f\t%.0f\t%.0f\t%v\t%v\t%v\n",
				tag, len(times), latencies.MeanSeconds(tag),
				latencies.Percentile(0.5, tag), latencies.Percentile(0.99, tag),
				phases[analysis.Idle], phases[analysis.Olap], phases[analysis.Alloc],
			)
		}
		return out.Flush()
	},
}

var analyzeTraceCmd = &cobra.Command{
	Use:   "trace <run>",
	Short: "Count the page-access trace events of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := trace.Open(filepath.Join(args[0], runner.TraceFile))
		if err != nil {
			return err
		}
		counts := make(map[trace.Action]int)
		persistent := 0
		for event, err := range file.Events() {
			if err != nil {
				return err
			}
			counts[event.Action]++
			if event.ID < trace.TempIDThreshold {
				persistent++
			}
		}
		return printTrace(cmd.OutOrStdout(), file, counts, persistent)
	},
}

func printTrace(w io.Writer, file *trace.File, counts map[trace.Action]int, persistent int) error {
	out := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(out, "events\t%v\n", file.Len())
	for _, action := range []trace.Action{trace.Evict, trace.Fault, trace.Ref} {
		fmt.Fprintf(out, "%v\t%v\n", action, counts[action])
	}
	fmt.Fprintf(out, "persistent pages\t%v\n", persistent)
	return out.Flush()
}

// window picks the aggregation width for a run spanning elapsed.
func window(elapsed []float64) float64 {
	maxElapsed := 0.0
	for _, e := range elapsed {
		maxElapsed = max(maxElapsed, e)
	}
	return analysis.DefaultWindow(maxElapsed)
}

func init() {
	analyzeCmd.AddCommand(analyzeStatsCmd, analyzeLatencyCmd, analyzeTraceCmd)
	rootCmd.AddCommand(analyzeCmd)
}
