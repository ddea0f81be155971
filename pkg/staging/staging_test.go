package staging

import (
	"context"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuemby/librarian/pkg/catalog"
	"github.com/cuemby/librarian/pkg/notify"
	"github.com/cuemby/librarian/pkg/search"
	"github.com/cuemby/librarian/pkg/stores"
	"github.com/cuemby/librarian/pkg/stores/fakedriver"
	"github.com/cuemby/librarian/pkg/tasks"
	"github.com/cuemby/librarian/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func currentUsername(t *testing.T) string {
	t.Helper()
	u, err := user.Current()
	require.NoError(t, err)
	return u.Username
}

func newStagingRig(t *testing.T) (*Engine, *catalog.Catalog, *fakedriver.Driver, *tasks.Manager, types.Store, string) {
	t.Helper()

	bus := notify.NewBus()
	cat, err := catalog.Open(t.TempDir(), bus)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	store, err := cat.CreateStore(types.Store{Name: "hera-store", SSHHost: "herastore01", PathPrefix: "/data", Available: true})
	require.NoError(t, err)

	driver := fakedriver.New(1 << 30)
	reg := stores.NewRegistry()
	reg.Register(store.Name, driver)

	mgr := tasks.NewManager(2)
	t.Cleanup(mgr.Drain)

	destRoot := t.TempDir()
	engine := NewEngine(search.NewEngine(cat), reg, mgr, destRoot, "herastore01", nil)

	return engine, cat, driver, mgr, store, destRoot
}

func TestLaunchStageCopiesMatchingFiles(t *testing.T) {
	engine, cat, driver, mgr, store, destRoot := newStagingRig(t)

	require.NoError(t, cat.RegisterInstances(store.ID, "test", catalog.ObsidTesting, map[string]catalog.FileStat{
		"zen.1.1.sum.uvh5": {Size: 4, Digest: "abc", Type: "uvh5"},
	}))
	require.NoError(t, driver.Stage(context.Background(), "zen.1.1.sum.uvh5", strings.NewReader("data")))

	dest := filepath.Join(destRoot, "stage-out")
	result, err := engine.LaunchStage(currentUsername(t), `{"always-true": true}`, dest)
	require.NoError(t, err)
	assert.Equal(t, 1, result.InstanceCount)
	assert.EqualValues(t, 4, result.TotalBytes)

	mgr.Drain()

	data, err := os.ReadFile(filepath.Join(dest, "zen.1.1.sum.uvh5"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	_, err = os.Stat(filepath.Join(dest, sentinelSucceeded))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dest, sentinelInProgress))
	assert.True(t, os.IsNotExist(err))
}

func TestLaunchStageRejectsDestinationOutsidePrefix(t *testing.T) {
	engine, _, _, _, _, _ := newStagingRig(t)

	_, err := engine.LaunchStage(currentUsername(t), `{"always-true": true}`, "/etc/somewhere")
	assert.Error(t, err)
}

func TestLaunchStageRejectsConcurrentStageIntoSameDir(t *testing.T) {
	engine, cat, driver, mgr, store, destRoot := newStagingRig(t)

	require.NoError(t, cat.RegisterInstances(store.ID, "test", catalog.ObsidTesting, map[string]catalog.FileStat{
		"zen.2.2.sum.uvh5": {Size: 4, Digest: "abc", Type: "uvh5"},
	}))
	require.NoError(t, driver.Stage(context.Background(), "zen.2.2.sum.uvh5", strings.NewReader("data")))

	dest := filepath.Join(destRoot, "stage-out")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	lock, err := os.OpenFile(filepath.Join(dest, sentinelInProgress), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o666)
	require.NoError(t, err)
	lock.Close()

	_, err = engine.LaunchStage(currentUsername(t), `{"always-true": true}`, dest)
	assert.Error(t, err)

	mgr.Drain()
}
