// Package analysis reduces the raw telemetry of finished runs into series:
// counters normalized to megabytes over the benchmark window, latencies
// classified by the contention they ran under, and windowed aggregates.
package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sivukhin/htapbench/internal/experiment"
	"github.com/sivukhin/htapbench/internal/runner"
)

var (
	// ErrUnavailable marks a run whose artifacts cannot be analyzed; callers
	// aggregating many runs skip it.
	ErrUnavailable   = errors.New("run unavailable")
	ErrMissingColumn = errors.New("missing column")
)

const ElapsedColumn = "elapsed"

type table struct {
	header []string
	rows   [][]string
}

func (t *table) index(column string) (int, error) {
	for i, name := range t.header {
		if name == column {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrMissingColumn, column)
}

// float parses column i of every row; empty cells become NaN.
func (t *table) float(i int) ([]float64, error) {
	values := make([]float64, len(t.rows))
	for r, row := range t.rows {
		if i >= len(row) || strings.TrimSpace(row[i]) == "" {
			values[r] = math.NaN()
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %v, column %q: %w", r+2, t.header[i], err)
		}
		values[r] = value
	}
	return values, nil
}

func (t *table) text(i int) []string {
	values := make([]string, len(t.rows))
	for r, row := range t.rows {
		if i < len(row) {
			values[r] = row[i]
		}
	}
	return values
}

func readTable(path string) (*table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %v: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%v has no header", path)
	}
	header := make([]string, len(records[0]))
	for i, name := range records[0] {
		header[i] = strings.TrimSpace(name)
	}
	return &table{header: header, rows: records[1:]}, nil
}

// loadRun reads a telemetry table of a run together with its configuration.
// Either one missing or unreadable makes the run unavailable.
func loadRun(runDir, file string) (*table, experiment.Config, error) {
	data, err := readTable(filepath.Join(runDir, file))
	if err != nil {
		return nil, experiment.Config{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	config, err := runner.LoadConfig(runDir)
	if err != nil {
		return nil, experiment.Config{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return data, config, nil
}

// inWindow reports whether a shifted elapsed time lies in [0, benchmark].
func inWindow(elapsed float64, config experiment.Config) bool {
	return elapsed >= 0 && elapsed <= float64(config.Benchmark)
}
