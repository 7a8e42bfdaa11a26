package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.Nil(t, Default().Validate())
	require.Equal(t, []string{"NVMe", "SATA"}, []string{Default().Sweep.Disks[0].Name, Default().Sweep.Disks[1].Name})
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.Nil(t, os.WriteFile(path, []byte(`
binary: frontend/tpcch-debug
run_timeout: 10m
sweep:
  thread_counts: [1, 2]
  disks:
    - name: local
      path: /tmp/tpcch.db
`), 0o644))

	settings, err := LoadFromFile(path)
	require.Nil(t, err)
	require.Equal(t, "frontend/tpcch-debug", settings.Binary)
	require.Equal(t, 10*time.Minute, settings.RunTimeout.Duration)
	require.Equal(t, []int{1, 2}, settings.Sweep.ThreadCounts)
	require.Equal(t, []Disk{{Name: "local", Path: "/tmp/tpcch.db"}}, settings.Sweep.Disks)
	require.Equal(t, 38, settings.Sweep.OltpThreads)
	require.Nil(t, settings.Validate())
}

func TestLoadFromFileRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.Nil(t, os.WriteFile(path, []byte("binary = 1"), 0o644))
	_, err := LoadFromFile(path)
	require.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTAPBENCH_THREAD_COUNTS", "4, 8")
	t.Setenv("HTAPBENCH_DISKS", "A=/a.db,B=/b.db")
	t.Setenv("HTAPBENCH_RUN_TIMEOUT", "90s")
	t.Setenv("HTAPBENCH_CATALOG", "runs.db")

	settings := Default()
	require.Nil(t, LoadFromEnv(settings))
	require.Equal(t, []int{4, 8}, settings.Sweep.ThreadCounts)
	require.Equal(t, []Disk{{"A", "/a.db"}, {"B", "/b.db"}}, settings.Sweep.Disks)
	require.Equal(t, 90*time.Second, settings.RunTimeout.Duration)
	require.Equal(t, "runs.db", settings.Catalog)

	t.Setenv("HTAPBENCH_OLTP_THREADS", "lots")
	require.Error(t, LoadFromEnv(settings))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.Nil(t, os.WriteFile(file, []byte("HTAPBENCH_TEST_DOTENV=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("HTAPBENCH_TEST_DOTENV") })

	require.Nil(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
	require.Nil(t, LoadDotEnv(file))
	require.Equal(t, "loaded", os.Getenv("HTAPBENCH_TEST_DOTENV"))
}

func TestValidate(t *testing.T) {
	settings := Default()
	settings.Sweep.Disks = append(settings.Sweep.Disks, Disk{Name: "NVMe", Path: "/x"})
	require.Error(t, settings.Validate())

	settings = Default()
	settings.Sweep.ThreadCounts = []int{0}
	require.Error(t, settings.Validate())
}

func TestExperimentAppliesOverrides(t *testing.T) {
	settings := Default()
	settings.Binary = "/opt/tpcch"
	settings.NumactlArgs = ""
	settings.DatasetPath = "data/tpcch/1"

	config := settings.Experiment()
	require.Equal(t, "/opt/tpcch", config.Binary)
	require.Equal(t, "", config.NumactlArgs)
	require.Equal(t, "data/tpcch/1", config.DatasetPath)
	require.Equal(t, 38, config.Oltp)
}

func TestRunTimeoutInJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.Nil(t, os.WriteFile(path, []byte(`{"run_timeout": "30m"}`), 0o644))
	settings, err := LoadFromFile(path)
	require.Nil(t, err)
	require.Equal(t, 30*time.Minute, settings.RunTimeout.Duration)

	require.Nil(t, os.WriteFile(path, []byte(`{"run_timeout": 1500000000}`), 0o644))
	settings, err = LoadFromFile(path)
	require.Nil(t, err)
	require.Equal(t, 1500*time.Millisecond, settings.RunTimeout.Duration)

	require.Nil(t, os.WriteFile(path, []byte(`{"run_timeout": "soon"}`), 0o644))
	_, err = LoadFromFile(path)
	require.Error(t, err)
}

func TestValidateOverrides(t *testing.T) {
	settings := Default()
	settings.Overrides = []string{"benchmark=10", "memory_limit=4000000000"}
	require.Nil(t, settings.Validate())

	settings.Overrides = []string{"no_such_key=1"}
	require.Error(t, settings.Validate())
	settings.Overrides = []string{"benchmark"}
	require.Error(t, settings.Validate())
}
