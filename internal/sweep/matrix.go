// Package sweep builds the experiment matrices and executes them one run at a
// time.
package sweep

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/sivukhin/htapbench/internal/config"
	"github.com/sivukhin/htapbench/internal/experiment"
)

const (
	OltpScalabilityDir = "oltp-scalability"
	OlapScalabilityDir = "olap-scalability"
	WorkingSetDir      = "working-set"
	TradCoopDir        = "trad-coop"
)

const (
	Traditional = "traditional"
	Cooperative = "cooperative"
)

// Entry is one run of a matrix. Path is relative to the sweep root.
type Entry struct {
	Experiment string
	Disk       string
	Workload   string
	Paradigm   string
	Ablation   string
	Path       string
	Config     experiment.Config
}

// ErrSweptKey rejects an override of a parameter the matrix varies itself.
var ErrSweptKey = errors.New("parameter is varied by the sweep")

// override applies settings.Overrides to the base of a matrix, before the
// matrix derives its entries, so that derived values follow the overrides.
func override(settings *config.Settings, axes []string, base experiment.Config) (experiment.Config, error) {
	for _, assignment := range settings.Overrides {
		key, _, _ := strings.Cut(assignment, "=")
		if key = strings.TrimSpace(key); slices.Contains(axes, key) {
			return base, fmt.Errorf("%w: %v", ErrSweptKey, key)
		}
	}
	return base.Overrides(settings.Overrides)
}

var scalabilityAxes = []string{"oltp", "olap", "parallel"}

// Scalability escalates the OLTP worker count with analytics disabled, then the
// parallelism of a continuous Q09 stream with OLTP disabled. Both run against
// the first disk.
func Scalability(settings *config.Settings) ([]Entry, error) {
	base := settings.Experiment().With(func(c *experiment.Config) {
		c.Benchmark = 60
		if len(settings.Sweep.Disks) > 0 {
			c.DatabasePath = settings.Sweep.Disks[0].Path
		}
	})
	oltp, err := override(settings, scalabilityAxes, base.With(func(c *experiment.Config) {
		c.Warmup = 30
		c.Olap = experiment.OlapNone
		c.Parallel = 0
	}))
	if err != nil {
		return nil, err
	}
	olap, err := override(settings, scalabilityAxes, base.With(func(c *experiment.Config) {
		c.Warmup = 0
		c.Oltp = 0
		c.Olap = "q09"
		c.OlapInterval = 0
		c.OlapStdout = true
	}))
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, n := range settings.Sweep.ThreadCounts {
		entries = append(entries, Entry{
			Experiment: OltpScalabilityDir,
			Workload:   experiment.OlapNone,
			Path:       path.Join(OltpScalabilityDir, fmt.Sprint(n)),
			Config:     oltp.With(func(c *experiment.Config) { c.Oltp = n }),
		})
	}
	for _, n := range settings.Sweep.ThreadCounts {
		entries = append(entries, Entry{
			Experiment: OlapScalabilityDir,
			Workload:   "q09",
			Path:       path.Join(OlapScalabilityDir, fmt.Sprint(n)),
			Config:     olap.With(func(c *experiment.Config) { c.Parallel = n }),
		})
	}
	return entries, nil
}

var workingSetAxes = []string{"database_path", "memory_limit"}

// WorkingSet runs the OLTP workload alone on every disk for every memory limit.
func WorkingSet(settings *config.Settings) ([]Entry, error) {
	base, err := override(settings, workingSetAxes, settings.Experiment().With(func(c *experiment.Config) {
		c.Warmup = 30
		c.Benchmark = 30
		c.Oltp = settings.Sweep.OltpThreads
		c.Parallel = settings.Sweep.PhysicalCores
		c.Olap = experiment.OlapNone
	}))
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, disk := range settings.Sweep.Disks {
		for _, mb := range settings.Sweep.WorkingSetLimitsMB {
			entries = append(entries, Entry{
				Experiment: WorkingSetDir,
				Disk:       disk.Name,
				Workload:   experiment.OlapNone,
				Path:       path.Join(WorkingSetDir, disk.Name, fmt.Sprintf("%dM", mb)),
				Config: base.With(func(c *experiment.Config) {
					c.DatabasePath = disk.Path
					c.MemoryLimit = int64(mb) * 1_000_000
				}),
			})
		}
	}
	return entries, nil
}

// Workload is an analytic workload of the paradigm comparison.
type Workload struct {
	Label    string
	Olap     string
	Interval int
	// Ablations lists the ablations the workload is additionally run with
	Ablations []string
}

var Workloads = []Workload{
	{Label: "simulated", Olap: "simulated", Interval: 30},
	{Label: "q09", Olap: "q09", Interval: 30, Ablations: Ablations},
	{Label: "q09-continuous", Olap: "q09", Interval: 0},
	{Label: "q06", Olap: "q06", Interval: 30},
	{Label: "mixed", Olap: "mixed", Interval: 30},
	{Label: "q06-continuous", Olap: "q06", Interval: 0},
	{Label: "mixed-continuous", Olap: "mixed", Interval: 0},
	{Label: "none", Olap: experiment.OlapNone, Interval: 0, Ablations: []string{InMemory}},
}

const (
	InMemory       = "-inmemory"
	Writeback      = "+writeback"
	IdleWriters    = "+idlewriters"
	EvictionTarget = "+evictiontarget"
)

var Ablations = []string{InMemory, Writeback, IdleWriters, EvictionTarget}

// ablate derives the configuration of an ablation from the full prototype.
func ablate(ablation string, inMemoryLimit int64) func(c *experiment.Config) {
	return func(c *experiment.Config) {
		c.NoDirtyWriteback = false
		switch ablation {
		case InMemory:
			c.NoAsyncFlush, c.NoEvictionTarget = false, false
			c.MemoryLimit = inMemoryLimit
		case Writeback:
			c.NoAsyncFlush, c.NoEvictionTarget = true, true
		case IdleWriters:
			c.NoAsyncFlush, c.NoEvictionTarget = false, true
		case EvictionTarget:
			c.NoAsyncFlush, c.NoEvictionTarget = true, false
		default:
			panic(fmt.Sprintf("unknown ablation %v", ablation))
		}
	}
}

// TempPages is the temporary memory reserved for the traditional paradigm:
// fixed for the analytic queries with known demand, otherwise half of the
// memory limit rounded up to a multiple of 100 pages.
func TempPages(olap string, memoryLimit int64) int64 {
	switch olap {
	case "q06":
		return 2000
	case "q09", "mixed":
		return 170000
	}
	return (memoryLimit/2/experiment.PageSize + 99) / 100 * 100
}

// paradigm derives the configuration of a paradigm.
func paradigm(name string) func(c *experiment.Config) {
	return func(c *experiment.Config) {
		switch name {
		case Traditional:
			c.PartitioningStrategy = experiment.StrategyPartitioned
			c.PartitionedNumTempPages = experiment.Some(TempPages(c.Olap, c.MemoryLimit))
		case Cooperative:
			c.PartitioningStrategy = experiment.StrategyBasic
			c.PartitionedNumTempPages = experiment.Optional{}
		default:
			panic(fmt.Sprintf("unsupported paradigm %v", name))
		}
	}
}

var tradCoopAxes = []string{
	"database_path",
	"olap",
	"olap_interval",
	"partitioning_strategy",
	"partitioned_num_temp_pages",
	"no_dirty_writeback",
	"no_async_flush",
	"no_eviction_target",
}

// TradCoop crosses disks and analytic workloads with both paradigms, followed
// by the ablations declared for each workload.
func TradCoop(settings *config.Settings) ([]Entry, error) {
	params := settings.Sweep
	base, err := override(settings, tradCoopAxes, settings.Experiment().With(func(c *experiment.Config) {
		c.Warmup = 30
		c.Benchmark = 120
		c.Oltp = params.OltpThreads
		c.Parallel = params.PhysicalCores
		c.MemoryLimit = params.ComparisonMemoryLimit
		c.NoDirtyWriteback = false
		c.NoAsyncFlush = false
		c.NoEvictionTarget = false
	}))
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, disk := range params.Disks {
		for _, workload := range Workloads {
			prototype := base.With(func(c *experiment.Config) {
				c.DatabasePath = disk.Path
				c.Olap = workload.Olap
				c.OlapInterval = workload.Interval
			})
			dir := path.Join(TradCoopDir, disk.Name, workload.Label)
			for _, name := range []string{Traditional, Cooperative} {
				entries = append(entries, Entry{
					Experiment: TradCoopDir,
					Disk:       disk.Name,
					Workload:   workload.Label,
					Paradigm:   name,
					Path:       path.Join(dir, name),
					Config:     prototype.With(paradigm(name)),
				})
			}
			for _, ablation := range workload.Ablations {
				for _, name := range []string{Traditional, Cooperative} {
					entries = append(entries, Entry{
						Experiment: TradCoopDir,
						Disk:       disk.Name,
						Workload:   workload.Label,
						Paradigm:   name,
						Ablation:   ablation,
						Path:       path.Join(dir, "ablation"+ablation, name),
						Config:     prototype.With(ablate(ablation, params.InMemoryLimit), paradigm(name)),
					})
				}
			}
		}
	}
	return entries, nil
}

// Matrices maps sweep names to their generators, in the order "all" runs them.
var Matrices = []struct {
	Name     string
	Generate func(*config.Settings) ([]Entry, error)
}{
	{"scalability", Scalability},
	{"working-set", WorkingSet},
	{"trad-coop", TradCoop},
}

// Generate returns the matrix of the named sweep; "all" concatenates every matrix.
func Generate(name string, settings *config.Settings) ([]Entry, error) {
	var entries []Entry
	found := false
	for _, matrix := range Matrices {
		if name == "all" || name == matrix.Name {
			found = true
			generated, err := matrix.Generate(settings)
			if err != nil {
				return nil, fmt.Errorf("sweep %v: %w", matrix.Name, err)
			}
			entries = append(entries, generated...)
		}
	}
	if !found {
		return nil, fmt.Errorf("unknown sweep %q", name)
	}
	return entries, nil
}
