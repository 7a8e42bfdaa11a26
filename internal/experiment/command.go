package experiment

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	BuildDir = "build"

	StatsFile   = "stats.csv"
	LatencyFile = "llog.csv"
)

// BinaryPath resolves the binary relative to the build directory.
func (c Config) BinaryPath() string {
	if filepath.IsAbs(c.Binary) {
		return c.Binary
	}
	return filepath.Join(BuildDir, c.Binary)
}

// CommandLine renders the argv of the run whose artifacts go to outputPath.
// The flag order is fixed. The numactl prefix is dropped when no numactl
// arguments are configured.
func (c Config) CommandLine(outputPath string) []string {
	var args []string
	if isolation := strings.Fields(c.NumactlArgs); len(isolation) > 0 {
		args = append(args, "numactl")
		args = append(args, isolation...)
	}
	args = append(args,
		c.BinaryPath(),
		c.DatabasePath,
		fmt.Sprintf("--ch_path=%v", c.DatasetPath),
		fmt.Sprintf("--memory_limit=%v", c.MemoryLimit),
		fmt.Sprintf("--warmup=%v", c.Warmup),
		fmt.Sprintf("--benchmark=%v", c.Benchmark),
		fmt.Sprintf("--oltp=%v", c.Oltp),
		fmt.Sprintf("--olap=%v", c.Olap),
		fmt.Sprintf("--olap_interval=%v", c.OlapInterval),
		fmt.Sprintf("--parallel=%v", c.Parallel),
		fmt.Sprintf("--partitioning_strategy=%v", c.PartitioningStrategy),
	)
	if c.PartitionedNumTempPages.Set {
		args = append(args, fmt.Sprintf("--partitioned_num_temp_pages=%v", c.PartitionedNumTempPages.Value))
	}
	for _, flag := range []struct {
		name string
		on   bool
	}{
		{"--olap_stdout", c.OlapStdout},
		{"--sandbox", c.Sandbox},
		{"--no_dirty_writeback", c.NoDirtyWriteback},
		{"--no_async_flush", c.NoAsyncFlush},
		{"--no_eviction_target", c.NoEvictionTarget},
	} {
		if flag.on {
			args = append(args, flag.name)
		}
	}
	args = append(args,
		fmt.Sprintf("--collect_stats=%v", filepath.Join(outputPath, StatsFile)),
		fmt.Sprintf("--latency_log=%v", filepath.Join(outputPath, LatencyFile)),
	)
	return args
}

// CommandString is the command line as recorded in the run directory.
func (c Config) CommandString(outputPath string) string {
	return strings.Join(c.CommandLine(outputPath), " ")
}

// ImportCommandLine renders the one-off invocation that loads the dataset into
// the database file instead of running a benchmark.
func (c Config) ImportCommandLine() []string {
	var args []string
	if isolation := strings.Fields(c.NumactlArgs); len(isolation) > 0 {
		args = append(args, "numactl")
		args = append(args, isolation...)
	}
	return append(args,
		c.BinaryPath(),
		c.DatabasePath,
		fmt.Sprintf("--ch_path=%v", c.DatasetPath),
		"--import_only",
		"--parallel=1",
	)
}
