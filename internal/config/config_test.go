package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default("/data")
	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, "catalog.json", cfg.CatalogFileName)
	assert.Equal(t, "wal.log", cfg.WalFileName)
	assert.Equal(t, 256, cfg.BufferPoolPages)
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slotdb.yaml")
	writeFile(t, path, `
data_dir: /var/lib/slotdb
log_level: debug
raft:
  enabled: true
  node_id: node-1
  bind_addr: 127.0.0.1:7000
  bootstrap: true
  peers:
    - node-2@127.0.0.1:7001
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/slotdb", cfg.DataDir)
	assert.Equal(t, "catalog.json", cfg.CatalogFileName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Raft.Enabled)
	assert.Equal(t, []string{"node-2@127.0.0.1:7001"}, cfg.Raft.Peers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
