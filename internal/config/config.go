// Package config holds the driver settings: where the binary and databases
// live and which parameter values the sweeps explore.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sivukhin/htapbench/internal/experiment"
)

const EnvPrefix = "HTAPBENCH_"

// Disk is a storage target holding one copy of the benchmark database.
type Disk struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// Sweep holds the parameter space of the experiment matrices.
type Sweep struct {
	// ThreadCounts is the escalation list of the scalability sweep
	ThreadCounts []int `json:"thread_counts" yaml:"thread_counts"`

	// OltpThreads is the OLTP worker count of the working-set and comparison sweeps
	OltpThreads int `json:"oltp_threads" yaml:"oltp_threads"`

	// PhysicalCores is passed as parallelism; 0 lets the binary use the whole socket
	PhysicalCores int `json:"physical_cores" yaml:"physical_cores"`

	// ComparisonMemoryLimit is the nominal memory limit of the comparison sweep in bytes
	ComparisonMemoryLimit int64 `json:"comparison_memory_limit" yaml:"comparison_memory_limit"`

	// InMemoryLimit emulates an in-memory regime for the -inmemory ablation
	InMemoryLimit int64 `json:"in_memory_limit" yaml:"in_memory_limit"`

	// WorkingSetLimitsMB are the memory limits of the working-set sweep in megabytes
	WorkingSetLimitsMB []int `json:"working_set_limits_mb" yaml:"working_set_limits_mb"`

	// Disks are the storage targets, in sweep order
	Disks []Disk `json:"disks" yaml:"disks"`
}

// Settings is the driver configuration.
type Settings struct {
	// WorkDir is the repository base directory the binary is started from
	WorkDir string `json:"work_dir" yaml:"work_dir"`

	// ResultsDir is where sweeps place their run directories
	ResultsDir string `json:"results_dir" yaml:"results_dir"`

	// Binary overrides the benchmark binary of every generated run
	Binary string `json:"binary" yaml:"binary"`

	// NumactlArgs overrides the isolation arguments of every generated run
	NumactlArgs string `json:"numactl_args" yaml:"numactl_args"`

	// DatasetPath is the CSV dataset used to import databases
	DatasetPath string `json:"dataset_path" yaml:"dataset_path"`

	// Catalog is the DSN of the run ledger; empty disables it
	Catalog string `json:"catalog" yaml:"catalog"`

	// RunTimeout bounds a single run; zero means no timeout
	RunTimeout Duration `json:"run_timeout" yaml:"run_timeout"`

	// Overrides are key=value assignments applied to every generated run
	Overrides []string `json:"overrides" yaml:"overrides"`

	Sweep Sweep `json:"sweep" yaml:"sweep"`
}

// Default returns the settings the published experiments were run with.
func Default() *Settings {
	return &Settings{
		WorkDir:     ".",
		ResultsDir:  "results",
		Binary:      "frontend/tpcch",
		NumactlArgs: "-c 0",
		DatasetPath: "data/tpcch/100",
		Sweep: Sweep{
			ThreadCounts:          []int{1, 2, 4, 8, 16, 32, 38, 64, 76},
			OltpThreads:           38,
			PhysicalCores:         0,
			ComparisonMemoryLimit: 2_000_000_000,
			InMemoryLimit:         64_000_000_000,
			WorkingSetLimitsMB:    []int{500, 1000, 1500, 2000, 2500, 3000, 3500, 4000},
			Disks: []Disk{
				{Name: "NVMe", Path: "/data2/tpcch-100.db"},
				{Name: "SATA", Path: "/data/tpcch-100.db"},
			},
		},
	}
}

// Validate validates the settings.
func (s *Settings) Validate() error {
	if s.Binary == "" {
		return fmt.Errorf("binary is required")
	}
	if s.ResultsDir == "" {
		return fmt.Errorf("results_dir is required")
	}
	if len(s.Sweep.Disks) == 0 {
		return fmt.Errorf("sweep.disks must not be empty")
	}
	seen := make(map[string]bool, len(s.Sweep.Disks))
	for _, disk := range s.Sweep.Disks {
		if disk.Name == "" || disk.Path == "" {
			return fmt.Errorf("sweep.disks entries need a name and a path, got %+v", disk)
		}
		if seen[disk.Name] {
			return fmt.Errorf("duplicate disk name %q", disk.Name)
		}
		seen[disk.Name] = true
	}
	for _, n := range s.Sweep.ThreadCounts {
		if n <= 0 {
			return fmt.Errorf("sweep.thread_counts must be positive, got %d", n)
		}
	}
	for _, mb := range s.Sweep.WorkingSetLimitsMB {
		if mb <= 0 {
			return fmt.Errorf("sweep.working_set_limits_mb must be positive, got %d", mb)
		}
	}
	if s.Sweep.ComparisonMemoryLimit <= 0 {
		return fmt.Errorf("sweep.comparison_memory_limit must be positive")
	}
	if s.RunTimeout.Duration < 0 {
		return fmt.Errorf("run_timeout must not be negative")
	}
	if _, err := experiment.Default().Overrides(s.Overrides); err != nil {
		return fmt.Errorf("overrides: %w", err)
	}
	return nil
}

// Experiment is the default run configuration with the driver-wide
// overrides applied.
func (s *Settings) Experiment() experiment.Config {
	return experiment.Default().With(func(c *experiment.Config) {
		c.Binary = s.Binary
		c.NumactlArgs = s.NumactlArgs
		c.DatasetPath = s.DatasetPath
	})
}

// LoadFromFile loads settings from a YAML or JSON file over the defaults.
func LoadFromFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	settings := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse YAML settings: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse JSON settings: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported settings file format: %s", filepath.Ext(path))
	}

	return settings, nil
}

// LoadDotEnv loads variables from the given .env files (".env" when none is
// given) into the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// LoadFromEnv applies HTAPBENCH_* environment variables.
func LoadFromEnv(s *Settings) error {
	if v, ok := lookup("WORK_DIR"); ok {
		s.WorkDir = v
	}
	if v, ok := lookup("RESULTS_DIR"); ok {
		s.ResultsDir = v
	}
	if v, ok := lookup("BINARY"); ok {
		s.Binary = v
	}
	if v, ok := lookup("NUMACTL_ARGS"); ok {
		s.NumactlArgs = v
	}
	if v, ok := lookup("DATASET_PATH"); ok {
		s.DatasetPath = v
	}
	if v, ok := lookup("CATALOG"); ok {
		s.Catalog = v
	}
	if v, ok := lookup("RUN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %vRUN_TIMEOUT: %w", EnvPrefix, err)
		}
		s.RunTimeout = Duration{d}
	}
	if v, ok := lookup("OLTP_THREADS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %vOLTP_THREADS: %w", EnvPrefix, err)
		}
		s.Sweep.OltpThreads = n
	}
	if v, ok := lookup("PHYSICAL_CORES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %vPHYSICAL_CORES: %w", EnvPrefix, err)
		}
		s.Sweep.PhysicalCores = n
	}
	if v, ok := lookup("THREAD_COUNTS"); ok {
		counts, err := parseInts(v)
		if err != nil {
			return fmt.Errorf("invalid %vTHREAD_COUNTS: %w", EnvPrefix, err)
		}
		s.Sweep.ThreadCounts = counts
	}
	if v, ok := lookup("DISKS"); ok {
		disks, err := parseDisks(v)
		if err != nil {
			return fmt.Errorf("invalid %vDISKS: %w", EnvPrefix, err)
		}
		s.Sweep.Disks = disks
	}
	return nil
}

func lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func parseInts(value string) ([]int, error) {
	var result []int
	for _, part := range strings.Split(value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, nil
}

// parseDisks parses "NVMe=/data2/db,SATA=/data/db".
func parseDisks(value string) ([]Disk, error) {
	var disks []Disk
	for _, part := range strings.Split(value, ",") {
		name, path, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("expected name=path, got %q", part)
		}
		disks = append(disks, Disk{Name: name, Path: path})
	}
	return disks, nil
}
