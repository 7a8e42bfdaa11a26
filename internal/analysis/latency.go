package analysis

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sivukhin/htapbench/internal/experiment"
)

const (
	MeasurementColumn = "measurement"
	TimeColumn        = "time"
)

// TransactionTags are the TPC-C transaction types of the latency log.
var TransactionTags = []string{"D", "N", "O", "P", "S"}

type Phase string

const (
	Idle  Phase = "idle"
	Olap  Phase = "olap"
	Alloc Phase = "alloc"
)

// LatencyRecord is one measured event. Time is in microseconds, Elapsed in
// seconds at the end of the event.
type LatencyRecord struct {
	Elapsed     float64
	Measurement string
	Time        float64
	Phase       Phase
}

// Begin is the elapsed time at which the event started.
func (r LatencyRecord) Begin() float64 { return r.Elapsed - r.Time/1e6 }

// overlaps reports whether r ran at any instant of other, bounds included.
func (r LatencyRecord) overlaps(other LatencyRecord) bool {
	return r.Begin() <= other.Elapsed && r.Elapsed >= other.Begin()
}

type LatencySeries struct {
	Records []LatencyRecord
}

// LoadLatencies reads the latency log of the run in runDir, trimmed like the
// counters. Every record starts out idle.
func LoadLatencies(runDir string) (*LatencySeries, experiment.Config, error) {
	data, config, err := loadRun(runDir, experiment.LatencyFile)
	if err != nil {
		return nil, config, err
	}
	var columns [3]int
	for i, name := range []string{ElapsedColumn, MeasurementColumn, TimeColumn} {
		if columns[i], err = data.index(name); err != nil {
			return nil, config, err
		}
	}
	elapsed, err := data.float(columns[0])
	if err != nil {
		return nil, config, err
	}
	measurements := data.text(columns[1])
	times, err := data.float(columns[2])
	if err != nil {
		return nil, config, err
	}

	series := &LatencySeries{}
	for row := range elapsed {
		shifted := elapsed[row] - float64(config.Warmup)
		if !inWindow(shifted, config) {
			continue
		}
		series.Records = append(series.Records, LatencyRecord{
			Elapsed:     shifted,
			Measurement: measurements[row],
			Time:        times[row],
			Phase:       Idle,
		})
	}
	return series, config, nil
}

// Classifier names the measurements that cause contention.
type Classifier struct {
	AnalyticTags []string
	AllocTag     string
}

var DefaultClassifier = Classifier{AnalyticTags: []string{"q06", "q09"}, AllocTag: "alloc"}

// Classify assigns every record the phase it ran in. All records start idle.
// Records overlapping an analytic query become olap; afterwards records
// overlapping an allocation become alloc, so allocation wins over a query.
// Triggering events overlap themselves and are classified too.
func Classify(records []LatencyRecord, classifier Classifier) []LatencyRecord {
	result := make([]LatencyRecord, len(records))
	for i, record := range records {
		record.Phase = Idle
		result[i] = record
	}
	mark := func(isTrigger func(LatencyRecord) bool, phase Phase) {
		for _, trigger := range records {
			if !isTrigger(trigger) {
				continue
			}
			for i := range result {
				if result[i].overlaps(trigger) {
					result[i].Phase = phase
				}
			}
		}
	}
	mark(func(r LatencyRecord) bool { return slices.Contains(classifier.AnalyticTags, r.Measurement) }, Olap)
	mark(func(r LatencyRecord) bool { return r.Measurement == classifier.AllocTag }, Alloc)
	return result
}

// Classify returns a copy of the series with phases assigned.
func (s *LatencySeries) Classify(classifier Classifier) *LatencySeries {
	return &LatencySeries{Records: Classify(s.Records, classifier)}
}

// Times returns the durations in microseconds of the records with one of tags.
func (s *LatencySeries) Times(tags ...string) []float64 {
	var times []float64
	for _, record := range s.Records {
		if slices.Contains(tags, record.Measurement) {
			times = append(times, record.Time)
		}
	}
	return times
}

// QueryThroughput is the number of queries of kind tag per second, derived
// from the median query latency. It is zero when no such query ran.
func (s *LatencySeries) QueryThroughput(tag string) float64 {
	times := s.Times(tag)
	if len(times) == 0 {
		return 0
	}
	return 1e6 / Quantile(0.5, times)
}

// MeanSeconds is the mean latency of tag in seconds, NaN if it never ran.
func (s *LatencySeries) MeanSeconds(tag string) float64 {
	return Mean(s.Times(tag)) / 1e6
}

// Percentile is the q-quantile of the latencies of tags in microseconds.
func (s *LatencySeries) Percentile(q float64, tags ...string) float64 {
	return Quantile(q, s.Times(tags...))
}

// PhaseCounts counts the records with one of tags per phase.
func (s *LatencySeries) PhaseCounts(tags ...string) map[Phase]int {
	counts := map[Phase]int{Idle: 0, Olap: 0, Alloc: 0}
	for _, record := range s.Records {
		if slices.Contains(tags, record.Measurement) {
			counts[record.Phase]++
		}
	}
	return counts
}

// AverageLatency is the windowed mean latency of tag in milliseconds.
func (s *LatencySeries) AverageLatency(tag string, w float64) Series {
	var elapsed, times []float64
	for _, record := range s.Records {
		if record.Measurement == tag {
			elapsed = append(elapsed, record.Elapsed)
			times = append(times, record.Time)
		}
	}
	return Windowed(tag, elapsed, times, w, Mean).Scale(1 / 1e3)
}

// Quantile interpolates linearly between the closest ranks, matching the
// default of numpy and pandas. It is NaN for an empty sample.
func Quantile(q float64, values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	h := q * float64(len(sorted)-1)
	lower := math.Floor(h)
	below := sorted[int(lower)]
	if int(lower)+1 >= len(sorted) {
		return below
	}
	return below + (h-lower)*(sorted[int(lower)+1]-below)
}

// HistogramEdges are the latency bins in milliseconds: zero followed by 200
// logarithmically spaced edges from 10^-1.9 to 10^3.
func HistogramEdges() []float64 {
	edges := make([]float64, 201)
	floats.LogSpan(edges[1:], math.Pow(10, -1.9), 1e3)
	return edges
}

// Histogram counts the latencies of tags, converted to milliseconds, per
// phase. Values outside the edges are dropped; the last bin includes its
// upper edge.
func (s *LatencySeries) Histogram(edges []float64, tags ...string) map[Phase][]float64 {
	last := edges[len(edges)-1]
	samples := make(map[Phase][]float64)
	topBin := make(map[Phase]float64)
	for _, record := range s.Records {
		if !slices.Contains(tags, record.Measurement) {
			continue
		}
		ms := record.Time / 1e3
		switch {
		case ms == last:
			topBin[record.Phase]++
		case ms >= edges[0] && ms < last:
			samples[record.Phase] = append(samples[record.Phase], ms)
		}
	}
	result := make(map[Phase][]float64)
	for _, phase := range []Phase{Idle, Olap, Alloc} {
		counts := make([]float64, len(edges)-1)
		if values := samples[phase]; len(values) > 0 {
			sort.Float64s(values)
			stat.Histogram(counts, edges, values, nil)
		}
		counts[len(counts)-1] += topBin[phase]
		result[phase] = counts
	}
	return result
}
