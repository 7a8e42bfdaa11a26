package sweep

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sivukhin/htapbench/internal/config"
	"github.com/sivukhin/htapbench/internal/experiment"
	"github.com/sivukhin/htapbench/internal/runner"
)

func find(t *testing.T, entries []Entry, path string) Entry {
	t.Helper()
	for _, entry := range entries {
		if entry.Path == path {
			return entry
		}
	}
	require.Failf(t, "entry not found", "%v", path)
	return Entry{}
}

func TestTempPages(t *testing.T) {
	require.Equal(t, int64(170000), TempPages("q09", 2_000_000_000))
	require.Equal(t, int64(170000), TempPages("q09", 64_000_000_000))
	require.Equal(t, int64(170000), TempPages("mixed", 1))
	require.Equal(t, int64(2000), TempPages("q06", 2_000_000_000))
	// 2e9 / 2 / 4096 = 244140.625, rounded up to the next multiple of 100
	require.Equal(t, int64(244200), TempPages("none", 2_000_000_000))
	require.Equal(t, int64(100), TempPages("simulated", 4096*2*100))
	require.Equal(t, int64(200), TempPages("simulated", 4096*2*101))
}

func TestTradCoopParadigms(t *testing.T) {
	entries, err := TradCoop(config.Default())
	require.Nil(t, err)

	q09 := find(t, entries, "trad-coop/NVMe/q09/traditional").Config
	require.Equal(t, experiment.StrategyPartitioned, q09.PartitioningStrategy)
	require.Equal(t, experiment.Some(170000), q09.PartitionedNumTempPages)
	require.Equal(t, int64(2_000_000_000), q09.MemoryLimit)
	require.Equal(t, 30, q09.OlapInterval)
	require.Equal(t, "/data2/tpcch-100.db", q09.DatabasePath)

	none := find(t, entries, "trad-coop/SATA/none/traditional").Config
	require.Equal(t, experiment.Some(244200), none.PartitionedNumTempPages)
	require.Equal(t, "/data/tpcch-100.db", none.DatabasePath)

	coop := find(t, entries, "trad-coop/NVMe/q09/cooperative").Config
	require.Equal(t, experiment.StrategyBasic, coop.PartitioningStrategy)
	require.False(t, coop.PartitionedNumTempPages.Set)

	continuous := find(t, entries, "trad-coop/NVMe/q06-continuous/traditional").Config
	require.Equal(t, "q06", continuous.Olap)
	require.Equal(t, 0, continuous.OlapInterval)
	require.Equal(t, experiment.Some(2000), continuous.PartitionedNumTempPages)
}

func TestTradCoopAblations(t *testing.T) {
	entries, err := TradCoop(config.Default())
	require.Nil(t, err)

	inMemory := find(t, entries, "trad-coop/NVMe/q09/ablation-inmemory/traditional").Config
	require.Equal(t, int64(64_000_000_000), inMemory.MemoryLimit)
	require.Equal(t, experiment.Some(170000), inMemory.PartitionedNumTempPages)

	// the nominal limit is restored after the in-memory ablation
	writeback := find(t, entries, "trad-coop/NVMe/q09/ablation+writeback/cooperative").Config
	require.Equal(t, int64(2_000_000_000), writeback.MemoryLimit)
	require.True(t, writeback.NoAsyncFlush)
	require.True(t, writeback.NoEvictionTarget)
	require.False(t, writeback.NoDirtyWriteback)

	idle := find(t, entries, "trad-coop/NVMe/q09/ablation+idlewriters/cooperative").Config
	require.False(t, idle.NoAsyncFlush)
	require.True(t, idle.NoEvictionTarget)

	target := find(t, entries, "trad-coop/NVMe/q09/ablation+evictiontarget/cooperative").Config
	require.True(t, target.NoAsyncFlush)
	require.False(t, target.NoEvictionTarget)

	// flags of the last ablation never leak into the next workload
	next := find(t, entries, "trad-coop/NVMe/q09-continuous/cooperative").Config
	require.False(t, next.NoAsyncFlush)
	require.False(t, next.NoEvictionTarget)

	noneInMemory := find(t, entries, "trad-coop/NVMe/none/ablation-inmemory/traditional").Config
	require.Equal(t, experiment.Some(TempPages("none", 64_000_000_000)), noneInMemory.PartitionedNumTempPages)

	ablated := 0
	for _, entry := range entries {
		if entry.Ablation != "" {
			ablated++
		}
	}
	// (4 ablations for q09 + 1 for none) * 2 paradigms * 2 disks
	require.Equal(t, 20, ablated)
	// 8 workloads * 2 paradigms * 2 disks + ablations
	require.Len(t, entries, 32+20)
}

func TestScalability(t *testing.T) {
	settings := config.Default()
	settings.Sweep.ThreadCounts = []int{1, 8}
	entries, err := Scalability(settings)
	require.Nil(t, err)
	require.Len(t, entries, 4)

	oltp := find(t, entries, "oltp-scalability/8").Config
	require.Equal(t, 8, oltp.Oltp)
	require.Equal(t, experiment.OlapNone, oltp.Olap)
	require.Equal(t, 30, oltp.Warmup)
	require.Equal(t, 60, oltp.Benchmark)
	require.False(t, oltp.OlapStdout)

	olap := find(t, entries, "olap-scalability/1").Config
	require.Equal(t, 0, olap.Oltp)
	require.Equal(t, 1, olap.Parallel)
	require.Equal(t, "q09", olap.Olap)
	require.Equal(t, 0, olap.OlapInterval)
	require.Equal(t, 0, olap.Warmup)
	require.Equal(t, 60, olap.Benchmark)
	require.True(t, olap.OlapStdout)
}

func TestWorkingSet(t *testing.T) {
	entries, err := WorkingSet(config.Default())
	require.Nil(t, err)
	require.Len(t, entries, 16)
	require.Equal(t, "working-set/NVMe/500M", entries[0].Path)
	require.Equal(t, "working-set/SATA/4000M", entries[15].Path)

	entry := find(t, entries, "working-set/SATA/1500M")
	require.Equal(t, int64(1_500_000_000), entry.Config.MemoryLimit)
	require.Equal(t, "/data/tpcch-100.db", entry.Config.DatabasePath)
	require.Equal(t, 30, entry.Config.Benchmark)
	require.Equal(t, 38, entry.Config.Oltp)
}

func TestGenerateIsDeterministic(t *testing.T) {
	first, err := Generate("all", config.Default())
	require.Nil(t, err)
	second, err := Generate("all", config.Default())
	require.Nil(t, err)
	require.Equal(t, first, second)

	paths := make(map[string]bool, len(first))
	for _, entry := range first {
		require.False(t, paths[entry.Path], "duplicate path %v", entry.Path)
		paths[entry.Path] = true
	}

	_, err = Generate("unknown", config.Default())
	require.Error(t, err)
}

func TestGenerateAppliesSettings(t *testing.T) {
	settings := config.Default()
	settings.Binary = "frontend/tpcch-release"
	settings.NumactlArgs = "-C 0-3"
	entries, err := Generate("trad-coop", settings)
	require.Nil(t, err)
	for _, entry := range entries {
		require.Equal(t, "frontend/tpcch-release", entry.Config.Binary)
		require.Equal(t, "-C 0-3", entry.Config.NumactlArgs)
	}
}

func TestOverridesPrecedeDerivedValues(t *testing.T) {
	settings := config.Default()
	settings.Overrides = []string{"memory_limit=4000000000", "benchmark=10"}
	entries, err := TradCoop(settings)
	require.Nil(t, err)

	none := find(t, entries, "trad-coop/NVMe/none/traditional").Config
	require.Equal(t, int64(4_000_000_000), none.MemoryLimit)
	require.Equal(t, experiment.Some(488300), none.PartitionedNumTempPages)
	require.Equal(t, 10, none.Benchmark)

	// the in-memory ablation still replaces the limit
	inMemory := find(t, entries, "trad-coop/NVMe/none/ablation-inmemory/traditional").Config
	require.Equal(t, int64(64_000_000_000), inMemory.MemoryLimit)
	require.Equal(t, experiment.Some(TempPages("none", 64_000_000_000)), inMemory.PartitionedNumTempPages)
}

func TestOverridesKeepScalabilityAxis(t *testing.T) {
	settings := config.Default()
	settings.Sweep.ThreadCounts = []int{1, 8}
	settings.Overrides = []string{"warmup=5"}
	entries, err := Scalability(settings)
	require.Nil(t, err)
	require.Equal(t, 1, find(t, entries, "oltp-scalability/1").Config.Oltp)
	require.Equal(t, 8, find(t, entries, "oltp-scalability/8").Config.Oltp)
	require.Equal(t, 8, find(t, entries, "olap-scalability/8").Config.Parallel)
	for _, entry := range entries {
		require.Equal(t, 5, entry.Config.Warmup)
	}

	settings.Overrides = []string{"oltp=4"}
	_, err = Scalability(settings)
	require.ErrorIs(t, err, ErrSweptKey)
	settings.Overrides = []string{" memory_limit = 1"}
	_, err = WorkingSet(settings)
	require.ErrorIs(t, err, ErrSweptKey)
	settings.Overrides = []string{"olap=q06"}
	_, err = Generate("all", settings)
	require.ErrorIs(t, err, ErrSweptKey)
	settings.Overrides = []string{"nope=1"}
	_, err = TradCoop(settings)
	require.ErrorIs(t, err, experiment.ErrUnknownKey)
}

func TestScalabilityUsesFirstDisk(t *testing.T) {
	settings := config.Default()
	settings.Sweep.Disks = []config.Disk{{Name: "local", Path: "/tmp/tpcch.db"}}
	entries, err := Scalability(settings)
	require.Nil(t, err)
	for _, entry := range entries {
		require.Equal(t, "/tmp/tpcch.db", entry.Config.DatabasePath)
	}
}

type fakeExecutor struct {
	calls []string
	fail  map[string]error
}

func (f *fakeExecutor) Execute(ctx context.Context, config experiment.Config, outputPath string) (runner.Result, error) {
	f.calls = append(f.calls, outputPath)
	if err, ok := f.fail[outputPath]; ok {
		return runner.Result{}, err
	}
	if err := os.Mkdir(outputPath, 0o755); err != nil {
		return runner.Result{}, err
	}
	return runner.Result{Path: outputPath, ReturnCode: config.Oltp % 2}, nil
}

type memoryRecorder struct {
	outcomes []Outcome
}

func (m *memoryRecorder) Record(ctx context.Context, outcome Outcome) error {
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

func TestRunContinuesAfterFailures(t *testing.T) {
	root := t.TempDir()
	settings := config.Default()
	settings.Sweep.ThreadCounts = []int{1, 2, 4}
	entries, err := Scalability(settings)
	require.Nil(t, err)

	broken := filepath.Join(root, "oltp-scalability", "2")
	executor := &fakeExecutor{fail: map[string]error{
		broken: fmt.Errorf("%w: %v", runner.ErrOutputExists, broken),
	}}
	recorder := &memoryRecorder{}

	report, err := Run(context.Background(), root, entries, executor, recorder)
	require.Nil(t, err)
	require.Len(t, executor.calls, 6)
	require.Equal(t, 5, report.Executed)
	require.Equal(t, []Failure{{Path: broken, Kind: KindPrecondition, Err: executor.fail[broken]}}, report.Failures)
	// oltp runs with 1 thread report an odd return code
	require.Equal(t, 1, report.NonZero)
	require.NotEmpty(t, report.Session)

	for _, entry := range entries {
		if path := filepath.Join(root, entry.Path); path != broken {
			require.DirExists(t, path)
		}
	}
	require.Len(t, recorder.outcomes, 6)
	require.Equal(t, KindPrecondition, recorder.outcomes[1].Kind)
	require.Equal(t, report.Session, recorder.outcomes[5].Session)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	executor := &fakeExecutor{}

	entries, err := WorkingSet(config.Default())
	require.Nil(t, err)
	report, err := Run(ctx, t.TempDir(), entries, executor, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, executor.calls)
	require.Zero(t, report.Executed)
}

func TestKind(t *testing.T) {
	require.Equal(t, KindPrecondition, Kind(fmt.Errorf("x: %w", runner.ErrOutputExists)))
	require.Equal(t, KindStart, Kind(runner.ErrStart))
	require.Equal(t, KindTimeout, Kind(runner.ErrTimeout))
	require.Equal(t, KindInterrupted, Kind(fmt.Errorf("%w: %w", runner.ErrInterrupted, context.Canceled)))
	require.Equal(t, KindIO, Kind(os.ErrPermission))
}
