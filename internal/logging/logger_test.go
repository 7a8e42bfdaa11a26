package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSetLevel(t *testing.T) {
	defer AtomicLevel.SetLevel(AtomicLevel.Level())
	require.Nil(t, SetLevel("WARN"))
	require.Equal(t, zap.WarnLevel, AtomicLevel.Level())
	require.Nil(t, SetLevel("debug"))
	require.Equal(t, zap.DebugLevel, AtomicLevel.Level())
	require.Error(t, SetLevel("loud"))
	require.Equal(t, zap.DebugLevel, AtomicLevel.Level())
}

func TestNewJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	logger, err := New("json", path)
	require.Nil(t, err)
	logger.Sugar().Warnf("run %v exited with code %v", "trad-coop/NVMe/q06", 1)
	require.Nil(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.Nil(t, err)
	require.Contains(t, string(data), `"L":"WARN"`)
	require.Contains(t, string(data), `"M":"run trad-coop/NVMe/q06 exited with code 1"`)
}
