package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/librarian/pkg/catalog"
	"github.com/cuemby/librarian/pkg/replication"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "librarian.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `SECRET_KEY = "shh"`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.NWorkerThreads)
	assert.Equal(t, 1, cfg.NServerProcesses)
	assert.Equal(t, catalog.ObsidNone, cfg.ObsidInferenceMode)
	assert.Equal(t, replication.ModeNormal, cfg.StandingOrderMode)
	assert.Equal(t, PermissionsReadWrite, cfg.PermissionsMode)
}

func TestLoadMissingSecretKeyFails(t *testing.T) {
	path := writeConfig(t, `host = "localhost"`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsRelativeStorePathPrefix(t *testing.T) {
	path := writeConfig(t, `
SECRET_KEY = "shh"

[add-stores.nas1]
path_prefix = "relative/path"
ssh_host = "nas1.local"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadParsesSourcesAndStores(t *testing.T) {
	path := writeConfig(t, `
SECRET_KEY = "shh"
obsid_inference_mode = "hera"
standing_order_mode = "nighttime"

[sources.peer1]
authenticator = "tok-123"

[add-stores.nas1]
path_prefix = "/data/nas1"
ssh_host = "nas1.local"
available = false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Contains(t, cfg.Sources, "peer1")
	assert.Equal(t, "tok-123", cfg.Sources["peer1"].Authenticator)

	require.Contains(t, cfg.AddStores, "nas1")
	store := cfg.AddStores["nas1"]
	assert.Equal(t, "/data/nas1", store.PathPrefix)
	assert.False(t, store.StoreAvailable())

	assert.Equal(t, catalog.ObsidHERA, cfg.ObsidInferenceMode)
	assert.Equal(t, replication.ModeNighttime, cfg.StandingOrderMode)
}

func TestStoreConfigDefaultAvailableIsTrue(t *testing.T) {
	var s StoreConfig
	assert.True(t, s.StoreAvailable())
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "librarian.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
SECRET_KEY: shh
obsid_inference_mode: so
standing_order_mode: disabled
sources:
  peer1:
    authenticator: tok-123
add-stores:
  nas1:
    path_prefix: /data/nas1
    ssh_host: nas1.local
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, catalog.ObsidSO, cfg.ObsidInferenceMode)
	assert.Equal(t, replication.ModeDisabled, cfg.StandingOrderMode)
	assert.Equal(t, "tok-123", cfg.Sources["peer1"].Authenticator)
	assert.Equal(t, "/data/nas1", cfg.AddStores["nas1"].PathPrefix)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, `SECRET_KEY = "shh"`)
	initial, err := Load(path)
	require.NoError(t, err)

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, initial, func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(`
SECRET_KEY = "shh"
standing_order_mode = "disabled"
`), 0644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, replication.ModeDisabled, cfg.StandingOrderMode)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
