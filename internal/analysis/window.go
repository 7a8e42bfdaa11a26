package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Series is a reduced curve handed to a rendering sink.
type Series struct {
	Name string
	X, Y []float64
}

// Aggregator reduces the values that fell into one window.
type Aggregator func(values []float64) float64

// Sum and Mean skip the NaN of empty cells.
var (
	Sum   Aggregator = func(values []float64) float64 { return floats.Sum(present(values)) }
	Count Aggregator = func(values []float64) float64 { return float64(len(values)) }
	// Mean of a window without values is NaN.
	Mean Aggregator = func(values []float64) float64 {
		values = present(values)
		if len(values) == 0 {
			return math.NaN()
		}
		return stat.Mean(values, nil)
	}
)

func present(values []float64) []float64 {
	kept := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			kept = append(kept, v)
		}
	}
	return kept
}

// DefaultWindow picks half-second windows for short runs and five-second
// windows once the series spans 200 seconds or more.
func DefaultWindow(maxElapsed float64) float64 {
	if maxElapsed < 200 {
		return 0.5
	}
	return 5
}

// WindowStarts returns min, min+w, min+2w, ... strictly below max-w.
func WindowStarts(min, max, w float64) []float64 {
	stop := max - w
	if w <= 0 || !(stop > min) {
		return nil
	}
	n := int(math.Ceil((stop - min) / w))
	starts := make([]float64, n)
	for i := range starts {
		starts[i] = min + float64(i)*w
	}
	return starts
}

// Aggregate reduces, for every window start s, the values whose elapsed time
// lies in [s, s+w]. Both ends are inclusive, so adjacent windows share the
// sample on their common boundary.
func Aggregate(elapsed, values, starts []float64, w float64, aggregate Aggregator) []float64 {
	order := make([]int, len(elapsed))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return elapsed[order[a]] < elapsed[order[b]] })

	result := make([]float64, len(starts))
	window := make([]float64, 0)
	for i, start := range starts {
		end := start + w
		first := sort.Search(len(order), func(k int) bool { return elapsed[order[k]] >= start })
		window = window[:0]
		for k := first; k < len(order) && elapsed[order[k]] <= end; k++ {
			window = append(window, values[order[k]])
		}
		result[i] = aggregate(window)
	}
	return result
}

// Windowed aggregates values over windows spanning the whole elapsed range.
func Windowed(name string, elapsed, values []float64, w float64, aggregate Aggregator) Series {
	if len(elapsed) == 0 {
		return Series{Name: name}
	}
	starts := WindowStarts(floats.Min(elapsed), floats.Max(elapsed), w)
	return Series{Name: name, X: starts, Y: Aggregate(elapsed, values, starts, w, aggregate)}
}

// Scale multiplies every point of s by factor.
func (s Series) Scale(factor float64) Series {
	y := make([]float64, len(s.Y))
	copy(y, s.Y)
	floats.Scale(factor, y)
	return Series{Name: s.Name, X: s.X, Y: y}
}

// PadRight extends the series to endX by repeating its last value.
func (s Series) PadRight(endX float64) Series {
	if len(s.X) == 0 || len(s.Y) == 0 || s.X[len(s.X)-1] >= endX {
		return s
	}
	return Series{
		Name: s.Name,
		X:    append(append([]float64{}, s.X...), endX),
		Y:    append(append([]float64{}, s.Y...), s.Y[len(s.Y)-1]),
	}
}
