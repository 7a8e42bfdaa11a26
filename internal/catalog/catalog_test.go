package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sivukhin/htapbench/internal/config"
	"github.com/sivukhin/htapbench/internal/experiment"
	"github.com/sivukhin/htapbench/internal/runner"
	"github.com/sivukhin/htapbench/internal/sweep"
)

func TestDriver(t *testing.T) {
	require.Equal(t, "libsql", Driver("libsql://runs-sivukhin.turso.io?authToken=x"))
	require.Equal(t, "libsql", Driver("https://runs.turso.io"))
	require.Equal(t, "sqlite3", Driver("runs.db"))
	require.Equal(t, "sqlite3", Driver("file:runs.db?cache=shared"))
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	catalog, err := Open(ctx, filepath.Join(t.TempDir(), "runs.db"))
	require.Nil(t, err)
	defer catalog.Close()

	entries, err := sweep.TradCoop(config.Default())
	require.Nil(t, err)
	entries = entries[:3]
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	for i, entry := range entries {
		outcome := sweep.Outcome{
			Session:  "s1",
			Entry:    entry,
			Started:  start.Add(time.Duration(i) * time.Minute),
			Finished: start.Add(time.Duration(i)*time.Minute + 30*time.Second),
		}
		if i == 1 {
			outcome.Err = fmt.Errorf("%w: %v", runner.ErrOutputExists, entry.Path)
			outcome.Kind = sweep.Kind(outcome.Err)
		}
		if i == 2 {
			outcome.ReturnCode = 134
		}
		require.Nil(t, catalog.Record(ctx, outcome))
	}
	require.Nil(t, catalog.Record(ctx, sweep.Outcome{Session: "s2", Entry: entries[0], Started: start, Finished: start}))

	runs, err := catalog.Runs(ctx, "s1")
	require.Nil(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, "trad-coop/NVMe/simulated/traditional", runs[0].Path)
	require.Equal(t, "simulated", runs[0].Workload)
	require.Equal(t, "traditional", runs[0].Paradigm)
	require.Equal(t, "NVMe", runs[0].Disk)
	require.Contains(t, runs[0].Command, "--partitioning_strategy=partitioned")
	require.True(t, start.Equal(runs[0].Started))
	require.True(t, start.Add(30*time.Second).Equal(runs[0].Finished))

	failed, err := catalog.Failed(ctx, "s1")
	require.Nil(t, err)
	require.Len(t, failed, 2)
	require.Equal(t, sweep.KindPrecondition, failed[0].ErrorKind)
	require.Contains(t, failed[0].Error, "output path already exists")
	require.Equal(t, 134, failed[1].ReturnCode)

	all, err := catalog.Runs(ctx, "")
	require.Nil(t, err)
	require.Len(t, all, 4)

	// the same entry cannot be recorded twice in a session
	require.Error(t, catalog.Record(ctx, sweep.Outcome{Session: "s2", Entry: entries[0], Started: start, Finished: start}))
}

func TestSweepRecordsIntoCatalog(t *testing.T) {
	ctx := context.Background()
	catalog, err := Open(ctx, filepath.Join(t.TempDir(), "runs.db"))
	require.Nil(t, err)
	defer catalog.Close()

	settings := config.Default()
	settings.Sweep.ThreadCounts = []int{1}
	entries, err := sweep.Scalability(settings)
	require.Nil(t, err)
	report, err := sweep.Run(ctx, t.TempDir(), entries, skipExecutor{}, catalog)
	require.Nil(t, err)
	require.Len(t, report.Failures, 2)

	runs, err := catalog.Runs(ctx, report.Session)
	require.Nil(t, err)
	require.Len(t, runs, 2)
	for _, run := range runs {
		require.Equal(t, sweep.KindStart, run.ErrorKind)
	}
}

type skipExecutor struct{}

func (skipExecutor) Execute(ctx context.Context, _ experiment.Config, outputPath string) (runner.Result, error) {
	return runner.Result{}, fmt.Errorf("%w %v", runner.ErrStart, outputPath)
}
