package catalog

import (
	"testing"

	"github.com/cuemby/librarian/pkg/notify"
	"github.com/cuemby/librarian/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileNamed(name string) types.File {
	return types.File{Name: name, Type: "uvh5", Source: "test"}
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	bus := notify.NewBus()
	c, err := Open(t.TempDir(), bus)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOpenCreatesAllBuckets(t *testing.T) {
	c := newTestCatalog(t)

	files, err := c.ListFiles()
	require.NoError(t, err)
	assert.Empty(t, files)

	stores, err := c.ListStores()
	require.NoError(t, err)
	assert.Empty(t, stores)
}

func TestCreateFileRecordRejectsPathSeparator(t *testing.T) {
	c := newTestCatalog(t)

	err := c.CreateFileRecord(fileNamed("sub/dir/name.uvh5"))
	assert.Error(t, err)
}

func TestCreateFileRecordConflict(t *testing.T) {
	c := newTestCatalog(t)

	require.NoError(t, c.CreateFileRecord(fileNamed("zen.12345.sum.uvh5")))
	err := c.CreateFileRecord(fileNamed("zen.12345.sum.uvh5"))
	assert.Error(t, err)
}
