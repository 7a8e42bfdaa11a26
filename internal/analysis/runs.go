package analysis

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sivukhin/htapbench/internal/experiment"
	"github.com/sivukhin/htapbench/internal/logging"
)

// Run is a loaded run of a result tree.
type Run struct {
	// Name is the path below the root with separators replaced by dashes
	Name   string
	Path   string
	Stats  *CounterSeries
	Config experiment.Config
}

// LoadRuns loads the counters of every run below root in lexical path order.
// Runs that cannot be analyzed are logged and left out.
func LoadRuns(root string) ([]Run, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && entry.Name() == experiment.StatsFile {
			dirs = append(dirs, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(dirs)

	var runs []Run
	for _, dir := range dirs {
		stats, config, err := LoadStats(dir)
		if err != nil {
			logging.Logger.Warnf("skipping run %v: %v", dir, err)
			continue
		}
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			return nil, err
		}
		runs = append(runs, Run{
			Name:   strings.ReplaceAll(filepath.ToSlash(rel), "/", "-"),
			Path:   dir,
			Stats:  stats,
			Config: config,
		})
	}
	return runs, nil
}

// Point is one measurement of a parameter sweep.
type Point struct {
	X, Y float64
}

func sortPoints(points []Point) []Point {
	sort.Slice(points, func(i, j int) bool { return points[i].X < points[j].X })
	return points
}

// subdirs lists the directories directly below path.
func subdirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(path, entry.Name()))
		}
	}
	return dirs, nil
}

// OltpScalability is the OLTP throughput in MtpmC per thread count. Runs
// without throughput are left out.
func OltpScalability(path string) ([]Point, error) {
	dirs, err := subdirs(path)
	if err != nil {
		return nil, err
	}
	var points []Point
	for _, dir := range dirs {
		threads, err := strconv.Atoi(filepath.Base(dir))
		if err != nil {
			continue
		}
		stats, config, err := LoadStats(dir)
		if err != nil {
			logging.Logger.Warnf("skipping run %v: %v", dir, err)
			continue
		}
		if tpmc := stats.TpmC(config); tpmc != 0 {
			points = append(points, Point{X: float64(threads), Y: tpmc})
		}
	}
	return sortPoints(points), nil
}

// OlapScalability is the number of Q09 queries per second per thread count.
func OlapScalability(path string) ([]Point, error) {
	dirs, err := subdirs(path)
	if err != nil {
		return nil, err
	}
	var points []Point
	for _, dir := range dirs {
		threads, err := strconv.Atoi(filepath.Base(dir))
		if err != nil {
			continue
		}
		latencies, _, err := LoadLatencies(dir)
		if err != nil {
			logging.Logger.Warnf("skipping run %v: %v", dir, err)
			continue
		}
		if throughput := latencies.QueryThroughput("q09"); throughput != 0 {
			points = append(points, Point{X: float64(threads), Y: throughput})
		}
	}
	return sortPoints(points), nil
}

// WorkingSet is the OLTP throughput in MtpmC per memory limit in MB, per disk.
func WorkingSet(path string) (map[string][]Point, error) {
	disks, err := subdirs(path)
	if err != nil {
		return nil, err
	}
	result := make(map[string][]Point)
	for _, disk := range disks {
		limits, err := subdirs(disk)
		if err != nil {
			return nil, err
		}
		var points []Point
		for _, dir := range limits {
			stats, config, err := LoadStats(dir)
			if err != nil {
				logging.Logger.Warnf("skipping run %v: %v", dir, err)
				continue
			}
			if tpmc := stats.TpmC(config); tpmc != 0 {
				points = append(points, Point{X: float64(config.MemoryLimit / 1_000_000), Y: tpmc})
			}
		}
		result[filepath.Base(disk)] = sortPoints(points)
	}
	return result, nil
}

// IsUnavailable reports whether err marks a skippable run.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
