package catalog

import (
	"testing"

	"github.com/cuemby/librarian/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerTwoInstances(t *testing.T, c *Catalog, name string) {
	t.Helper()
	require.NoError(t, c.CreateFileRecord(types.File{Name: name, Type: "uvh5", Source: "test", Size: 10, Digest: "abc"}))
	require.NoError(t, c.RegisterInstances(1, "test", ObsidNone, map[string]FileStat{
		"a/" + name: {Size: 10, Digest: "abc", Type: "uvh5"},
	}))
	require.NoError(t, c.RegisterInstances(2, "test", ObsidNone, map[string]FileStat{
		"b/" + name: {Size: 10, Digest: "abc", Type: "uvh5"},
	}))
}

func TestDeleteInstancesStandardRefusesTotalDeletion(t *testing.T) {
	c := newTestCatalog(t)
	registerTwoInstances(t, c, "zen.1.uvh5")

	require.NoError(t, c.SetOneFileDeletionPolicy("zen.1.uvh5", types.DeletionAllowed, int64Ptr(1)))
	require.NoError(t, c.SetOneFileDeletionPolicy("zen.1.uvh5", types.DeletionAllowed, int64Ptr(2)))

	_, err := c.DeleteInstances("zen.1.uvh5", DeletionStandard, nil)
	assert.Error(t, err)
}

func TestDeleteInstancesForceAllowsTotalDeletion(t *testing.T) {
	c := newTestCatalog(t)
	registerTwoInstances(t, c, "zen.2.uvh5")

	require.NoError(t, c.SetOneFileDeletionPolicy("zen.2.uvh5", types.DeletionAllowed, int64Ptr(1)))
	require.NoError(t, c.SetOneFileDeletionPolicy("zen.2.uvh5", types.DeletionAllowed, int64Ptr(2)))

	removed, err := c.DeleteInstances("zen.2.uvh5", DeletionForce, nil)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	remaining, err := c.ListInstancesForFile("zen.2.uvh5")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestDeleteInstancesNoopDoesNotRemove(t *testing.T) {
	c := newTestCatalog(t)
	registerTwoInstances(t, c, "zen.3.uvh5")
	require.NoError(t, c.SetOneFileDeletionPolicy("zen.3.uvh5", types.DeletionAllowed, int64Ptr(1)))

	removed, err := c.DeleteInstances("zen.3.uvh5", DeletionNoop, nil)
	require.NoError(t, err)
	assert.Len(t, removed, 1)

	remaining, err := c.ListInstancesForFile("zen.3.uvh5")
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestDeleteInstancesRestrictedToStore(t *testing.T) {
	c := newTestCatalog(t)
	registerTwoInstances(t, c, "zen.4.uvh5")
	require.NoError(t, c.SetOneFileDeletionPolicy("zen.4.uvh5", types.DeletionAllowed, int64Ptr(1)))
	require.NoError(t, c.SetOneFileDeletionPolicy("zen.4.uvh5", types.DeletionAllowed, int64Ptr(2)))

	removed, err := c.DeleteInstances("zen.4.uvh5", DeletionStandard, int64Ptr(1))
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, int64(1), removed[0].StoreID)
}

func int64Ptr(v int64) *int64 { return &v }
