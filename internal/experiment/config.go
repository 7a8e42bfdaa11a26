// Package experiment describes a single benchmark run: its parameters, their
// persisted record and the command line handed to the database binary.
package experiment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
)

const (
	// PageSize is the size of a buffer-pool page of the benchmarked binary.
	PageSize = 4096

	StrategyBasic       = "basic"
	StrategyPartitioned = "partitioned"

	OlapNone = "none"
)

var (
	ErrParse      = errors.New("malformed experiment configuration")
	ErrUnknownKey = errors.New("unknown configuration key")
)

// Optional is an int64 that may be absent. It is serialized as null when unset.
type Optional struct {
	Value int64
	Set   bool
}

func Some(v int64) Optional { return Optional{Value: v, Set: true} }

func (o Optional) String() string {
	if !o.Set {
		return "null"
	}
	return strconv.FormatInt(o.Value, 10)
}

func (o Optional) MarshalJSON() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Optional) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional{}
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Config is the full parameter set of one run. It is a plain value: copies
// never share state, and sweeps derive new values with With instead of
// assigning fields of a shared instance.
//
// Fields are declared in sorted key order so that the JSON record is canonical.
type Config struct {
	Benchmark               int      `json:"benchmark"`
	Binary                  string   `json:"binary"`
	DatabasePath            string   `json:"database_path"`
	DatasetPath             string   `json:"dataset_path"`
	MemoryLimit             int64    `json:"memory_limit"`
	NoAsyncFlush            bool     `json:"no_async_flush"`
	NoDirtyWriteback        bool     `json:"no_dirty_writeback"`
	NoEvictionTarget        bool     `json:"no_eviction_target"`
	NumactlArgs             string   `json:"numactl_args"`
	Olap                    string   `json:"olap"`
	OlapInterval            int      `json:"olap_interval"`
	OlapStdout              bool     `json:"olap_stdout"`
	Oltp                    int      `json:"oltp"`
	Parallel                int      `json:"parallel"`
	PartitionedNumTempPages Optional `json:"partitioned_num_temp_pages"`
	PartitioningStrategy    string   `json:"partitioning_strategy"`
	Sandbox                 bool     `json:"sandbox"`
	Warmup                  int      `json:"warmup"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		NumactlArgs:          "-c 0",
		Binary:               "frontend/tpcch",
		DatabasePath:         "/data2/tpcch-100.db",
		DatasetPath:          "data/tpcch/100",
		Warmup:               15,
		Benchmark:            120,
		Oltp:                 38,
		Olap:                 OlapNone,
		OlapInterval:         30,
		Parallel:             0,
		Sandbox:              true,
		MemoryLimit:          16 * 1024 * 1024 * 1024,
		PartitioningStrategy: StrategyBasic,
	}
}

// With returns a copy of c with the mutators applied in order.
func (c Config) With(mutators ...func(*Config)) Config {
	for _, mutate := range mutators {
		mutate(&c)
	}
	return c
}

func (c Config) String() string {
	type plain Config
	return fmt.Sprintf("%+v", plain(c))
}

// Serialize renders the canonical record: sorted keys, four-space indent.
func (c Config) Serialize() ([]byte, error) {
	return json.MarshalIndent(c, "", "    ")
}

// Deserialize parses a record produced by Serialize. Keys may appear in any
// order; missing keys keep their defaults and unmodeled keys are ignored
// (see UnknownKeys).
func Deserialize(data []byte) (Config, error) {
	config := Default()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return config, nil
}

// UnknownKeys lists the keys of a record that Config does not model. They are
// accepted by Deserialize but never written back.
func UnknownKeys(data []byte) ([]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	var unknown []string
	for key := range raw {
		if _, ok := fields[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	slices.Sort(unknown)
	return unknown, nil
}
