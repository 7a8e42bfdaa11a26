package render

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sivukhin/htapbench/internal/analysis"
	"github.com/sivukhin/htapbench/internal/trace"
)

func requirePNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.Nil(t, err)
	require.Greater(t, len(data), 8)
	require.Equal(t, []byte("\x89PNG"), data[:4])
}

func TestLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scalability.png")
	err := Lines(path, Chart{Title: "TPC-C", XLabel: "# Threads", YLabel: "OLTP Throughput [MtpmC]"},
		analysis.Series{Name: "NVMe", X: []float64{1, 2, 4}, Y: []float64{0.1, math.NaN(), 0.4}},
		analysis.Series{Name: "empty"},
	)
	require.Nil(t, err)
	requirePNG(t, path)
}

func TestTraceScatter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.png")
	err := TraceScatter(path, Chart{Title: "cache", XLabel: "elapsed time [s]", YLabel: "pid"}, []trace.Event{
		{Timestamp: 0.1, ID: 10, Action: trace.Fault},
		{Timestamp: 0.2, ID: 10, Action: trace.Evict},
		{Timestamp: 0.3, ID: 12, Action: trace.Ref},
	})
	require.Nil(t, err)
	requirePNG(t, path)
}
