package experiment

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type field struct {
	set func(c *Config, value string) error
}

func intField(target func(c *Config) *int) field {
	return field{set: func(c *Config, value string) error {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		*target(c) = parsed
		return nil
	}}
}

func int64Field(target func(c *Config) *int64) field {
	return field{set: func(c *Config, value string) error {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		*target(c) = parsed
		return nil
	}}
}

func boolField(target func(c *Config) *bool) field {
	return field{set: func(c *Config, value string) error {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*target(c) = parsed
		return nil
	}}
}

func stringField(target func(c *Config) *string) field {
	return field{set: func(c *Config, value string) error {
		*target(c) = value
		return nil
	}}
}

// fields is the registry of every modeled key.
var fields = map[string]field{
	"numactl_args":          stringField(func(c *Config) *string { return &c.NumactlArgs }),
	"binary":                stringField(func(c *Config) *string { return &c.Binary }),
	"database_path":         stringField(func(c *Config) *string { return &c.DatabasePath }),
	"dataset_path":          stringField(func(c *Config) *string { return &c.DatasetPath }),
	"warmup":                intField(func(c *Config) *int { return &c.Warmup }),
	"benchmark":             intField(func(c *Config) *int { return &c.Benchmark }),
	"oltp":                  intField(func(c *Config) *int { return &c.Oltp }),
	"olap":                  stringField(func(c *Config) *string { return &c.Olap }),
	"olap_interval":         intField(func(c *Config) *int { return &c.OlapInterval }),
	"olap_stdout":           boolField(func(c *Config) *bool { return &c.OlapStdout }),
	"parallel":              intField(func(c *Config) *int { return &c.Parallel }),
	"sandbox":               boolField(func(c *Config) *bool { return &c.Sandbox }),
	"no_dirty_writeback":    boolField(func(c *Config) *bool { return &c.NoDirtyWriteback }),
	"no_async_flush":        boolField(func(c *Config) *bool { return &c.NoAsyncFlush }),
	"no_eviction_target":    boolField(func(c *Config) *bool { return &c.NoEvictionTarget }),
	"memory_limit":          int64Field(func(c *Config) *int64 { return &c.MemoryLimit }),
	"partitioning_strategy": stringField(func(c *Config) *string { return &c.PartitioningStrategy }),
	"partitioned_num_temp_pages": {set: func(c *Config, value string) error {
		if value == "" || value == "null" {
			c.PartitionedNumTempPages = Optional{}
			return nil
		}
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		c.PartitionedNumTempPages = Some(parsed)
		return nil
	}},
}

// Keys returns the modeled keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Override returns a copy of c with key set to the textual value.
func (c Config) Override(key, value string) (Config, error) {
	f, ok := fields[key]
	if !ok {
		return c, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if err := f.set(&c, value); err != nil {
		return c, fmt.Errorf("%w: %s=%q: %v", ErrParse, key, value, err)
	}
	return c, nil
}

// Overrides applies "key=value" assignments in order.
func (c Config) Overrides(assignments []string) (Config, error) {
	for _, assignment := range assignments {
		key, value, ok := strings.Cut(assignment, "=")
		if !ok {
			return c, fmt.Errorf("%w: expected key=value, got %q", ErrParse, assignment)
		}
		var err error
		c, err = c.Override(strings.TrimSpace(key), strings.TrimSpace(value))
		if err != nil {
			return c, err
		}
	}
	return c, nil
}
