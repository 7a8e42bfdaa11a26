package experiment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandLineDefault(t *testing.T) {
	require.Equal(t,
		"numactl -c 0 build/frontend/tpcch /data2/tpcch-100.db --ch_path=data/tpcch/100 --memory_limit=17179869184"+
			" --warmup=15 --benchmark=120 --oltp=38 --olap=none --olap_interval=30 --parallel=0"+
			" --partitioning_strategy=basic --sandbox --collect_stats=out/run/stats.csv --latency_log=out/run/llog.csv",
		Default().CommandString("out/run"),
	)
}

func TestCommandLineOptionalFlags(t *testing.T) {
	config := Default().With(func(c *Config) {
		c.PartitionedNumTempPages = Some(170000)
		c.PartitioningStrategy = StrategyPartitioned
		c.OlapStdout = true
		c.Sandbox = false
		c.NoDirtyWriteback = true
		c.NoAsyncFlush = true
		c.NoEvictionTarget = true
	})
	args := config.CommandLine("r")
	tail := args[len(args)-8:]
	require.Equal(t, []string{
		"--partitioned_num_temp_pages=170000",
		"--olap_stdout",
		"--no_dirty_writeback",
		"--no_async_flush",
		"--no_eviction_target",
		"--collect_stats=r/stats.csv",
		"--latency_log=r/llog.csv",
	}, tail[1:])
	require.Equal(t, "--partitioning_strategy=partitioned", tail[0])
	require.Equal(t, config.CommandString("r"), config.CommandString("r"))

	for _, arg := range Default().CommandLine("r") {
		require.False(t, strings.HasPrefix(arg, "--partitioned_num_temp_pages"))
		require.NotEqual(t, "--olap_stdout", arg)
	}
}

func TestCommandLineWithoutIsolation(t *testing.T) {
	config := Default().With(func(c *Config) {
		c.NumactlArgs = ""
		c.Binary = "/opt/bin/tpcch"
	})
	args := config.CommandLine("r")
	require.Equal(t, "/opt/bin/tpcch", args[0])
	require.Equal(t, "/data2/tpcch-100.db", args[1])
	require.Equal(t,
		[]string{"numactl", "-c", "0", "build/frontend/tpcch", "/data2/tpcch-100.db", "--ch_path=data/tpcch/100", "--import_only", "--parallel=1"},
		Default().ImportCommandLine(),
	)
}
