package analysis

import (
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/sivukhin/htapbench/internal/experiment"
)

// OverlayColumns are counted in events or bytes rather than pages and are
// never converted.
var OverlayColumns = []string{
	"no_success_count",
	"accessed_pages",
	"faulted_pages",
	"evicted_pages",
	"dirty_write_pages",
	"statm_size",
	"statm_resident",
	"statm_shared",
}

const (
	SuccessColumn        = "no_success_count"
	DataPagesColumn      = "data_pages"
	DirtyDataPagesColumn = "dirty_data_pages"
	TempPagesColumn      = "temp_pages"
	TempInUseColumn      = "temp_in_use"
	AccessedColumn       = "accessed_pages"
	FaultedColumn        = "faulted_pages"
)

// PagesToMB converts a page count to megabytes.
func PagesToMB(pages float64) float64 {
	return pages * experiment.PageSize / 1e6
}

// CounterSeries is the counters table of a run, shifted so that zero is the
// end of the warmup and trimmed to the benchmark window.
type CounterSeries struct {
	Elapsed []float64
	// Columns holds every counter in file order, page counters already in MB
	Columns []string
	Values  map[string][]float64
	// Overlay lists the overlay columns present in the file
	Overlay []string
}

func (s *CounterSeries) Len() int { return len(s.Elapsed) }

func (s *CounterSeries) Column(name string) ([]float64, bool) {
	values, ok := s.Values[name]
	return values, ok
}

// LoadStats normalizes the counters of the run in runDir.
func LoadStats(runDir string) (*CounterSeries, experiment.Config, error) {
	data, config, err := loadRun(runDir, experiment.StatsFile)
	if err != nil {
		return nil, config, err
	}
	elapsedIndex, err := data.index(ElapsedColumn)
	if err != nil {
		return nil, config, err
	}
	elapsed, err := data.float(elapsedIndex)
	if err != nil {
		return nil, config, err
	}

	series := &CounterSeries{Values: make(map[string][]float64)}
	raw := make(map[string][]float64)
	for i, name := range data.header {
		if i == elapsedIndex {
			continue
		}
		values, err := data.float(i)
		if err != nil {
			return nil, config, err
		}
		if slices.Contains(OverlayColumns, name) {
			series.Overlay = append(series.Overlay, name)
		} else {
			for k := range values {
				values[k] = PagesToMB(values[k])
			}
		}
		series.Columns = append(series.Columns, name)
		raw[name] = values
	}

	for row := range elapsed {
		shifted := elapsed[row] - float64(config.Warmup)
		if !inWindow(shifted, config) {
			continue
		}
		series.Elapsed = append(series.Elapsed, shifted)
		for _, name := range series.Columns {
			series.Values[name] = append(series.Values[name], raw[name][row])
		}
	}
	for _, name := range series.Columns {
		if series.Values[name] == nil {
			series.Values[name] = []float64{}
		}
	}
	return series, config, nil
}

// CleanDataPages is the buffer-pool volume without its dirty part, or the
// plain volume when the run did not report dirty pages.
func (s *CounterSeries) CleanDataPages() ([]float64, bool) {
	data, ok := s.Column(DataPagesColumn)
	if !ok {
		return nil, false
	}
	clean := append([]float64{}, data...)
	if dirty, ok := s.Column(DirtyDataPagesColumn); ok {
		floats.Sub(clean, dirty)
	}
	return clean, true
}

// Throughput is the OLTP throughput in MtpmC per window of width w.
func (s *CounterSeries) Throughput(w float64) (Series, bool) {
	values, ok := s.Column(SuccessColumn)
	if !ok {
		return Series{}, false
	}
	return Windowed("throughput", s.Elapsed, values, w, Sum).Scale(60 / w / 1e6), true
}

// Rate is the per-second rate of an event counter over windows of width w.
func (s *CounterSeries) Rate(column string, w float64) (Series, bool) {
	values, ok := s.Column(column)
	if !ok {
		return Series{}, false
	}
	return Windowed(column, s.Elapsed, values, w, Sum).Scale(1 / w), true
}

// MemoryMB is the windowed mean of a byte counter in megabytes.
func (s *CounterSeries) MemoryMB(column string, w float64) (Series, bool) {
	values, ok := s.Column(column)
	if !ok {
		return Series{}, false
	}
	return Windowed(column, s.Elapsed, values, w, Mean).Scale(1 / 1e6), true
}

// HitRate is the buffer-pool hit rate in percent over windows of width w.
func (s *CounterSeries) HitRate(w float64) (Series, bool) {
	accessed, ok := s.Column(AccessedColumn)
	if !ok {
		return Series{}, false
	}
	faulted, ok := s.Column(FaultedColumn)
	if !ok {
		return Series{}, false
	}
	accesses := Windowed("accessed", s.Elapsed, accessed, w, Sum)
	faults := Windowed("faulted", s.Elapsed, faulted, w, Sum)
	rate := Series{Name: "hit rate", X: accesses.X, Y: make([]float64, len(accesses.Y))}
	for i := range rate.Y {
		rate.Y[i] = 100 - faults.Y[i]/accesses.Y[i]*100
	}
	return rate, true
}

// TpmC is the OLTP throughput of the whole benchmark window in MtpmC.
func (s *CounterSeries) TpmC(config experiment.Config) float64 {
	values, ok := s.Column(SuccessColumn)
	if !ok || config.Benchmark == 0 {
		return 0
	}
	return Sum(values) / float64(config.Benchmark) * 60 / 1e6
}
