package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := NewViper()
	v.Set(KeyHome, t.TempDir())

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "socket", cfg.ABCI.Transport)
	require.Equal(t, "tcp://127.0.0.1:26658", cfg.ABCI.Addr)
	require.Equal(t, "goleveldb", cfg.DB.Backend)
}

func TestLoad_AppTomlThenEnv(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "config", "app.toml"), []byte(`
[rest]
addr = "0.0.0.0:9090"

[log]
level = "debug"
`), 0o644))
	t.Setenv("SWEEPD_LOG_LEVEL", "error")

	v := NewViper()
	v.Set(KeyHome, home)
	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9090", cfg.REST.Addr)
	require.Equal(t, "error", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SWEEPD_DB_BACKEND=memdb\n"), 0o644))
	t.Setenv("SWEEPD_DB_BACKEND", "")
	require.NoError(t, os.Unsetenv("SWEEPD_DB_BACKEND"))

	loaded, err := LoadDotEnv(filepath.Join(dir, "missing.env"), path)
	require.NoError(t, err)
	require.Equal(t, path, loaded)

	v := NewViper()
	v.Set(KeyHome, dir)
	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "memdb", cfg.DB.Backend)
}

func TestValidate_Rejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ABCI.Transport = "http"
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Log.Level = "loud"
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.DB.Backend = "rocksdb"
	require.Error(t, cfg.Validate())
}
