package catalog

import (
	"testing"

	"github.com/cuemby/librarian/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, c *Catalog, name string) types.Store {
	t.Helper()
	s, err := c.CreateStore(types.Store{Name: name, PathPrefix: "/data/" + name, Available: true})
	require.NoError(t, err)
	return s
}

func fileWithObsid(name string, obsid int64) types.File {
	f := fileNamed(name)
	f.Obsid = &obsid
	return f
}

func TestInferObsidNoneModeRefuses(t *testing.T) {
	c := newTestCatalog(t)
	store := newTestStore(t, c, "s1")

	err := c.RegisterInstances(store.ID, "src", ObsidNone, map[string]FileStat{
		"zen.1234567.12345.sum.uvh5": {Size: 10, Digest: "abc", Type: "uvh5"},
	})
	assert.Error(t, err)
}

func TestInferObsidHERARequiresExistingCertainty(t *testing.T) {
	c := newTestCatalog(t)
	store := newTestStore(t, c, "s1")

	// No existing file shares the "zen.1234567.12345." prefix yet, so
	// there are zero candidate obsids and inference must fail.
	err := c.RegisterInstances(store.ID, "src", ObsidHERA, map[string]FileStat{
		"zen.1234567.12345.sum.uvh5": {Size: 10, Digest: "abc", Type: "uvh5"},
	})
	assert.Error(t, err)

	// Seed a file with a known obsid directly, then register a second
	// instance sharing its three-component prefix: inference now has
	// exactly one candidate and succeeds.
	obsid := int64(987654321)
	require.NoError(t, c.CreateFileRecord(fileWithObsid("zen.1234567.12345.raw.uvh5", obsid)))

	require.NoError(t, c.RegisterInstances(store.ID, "src", ObsidHERA, map[string]FileStat{
		"zen.1234567.12345.sum.uvh5": {Size: 10, Digest: "abc", Type: "uvh5"},
	}))

	f, err := c.GetFile("zen.1234567.12345.sum.uvh5")
	require.NoError(t, err)
	require.NotNil(t, f.Obsid)
	assert.Equal(t, obsid, *f.Obsid)
}

func TestInferObsidHERAAmbiguousFails(t *testing.T) {
	c := newTestCatalog(t)
	store := newTestStore(t, c, "s1")

	require.NoError(t, c.CreateFileRecord(fileWithObsid("zen.1234567.12345.raw.uvh5", 1)))
	require.NoError(t, c.CreateFileRecord(fileWithObsid("zen.1234567.12345.alt.uvh5", 2)))

	err := c.RegisterInstances(store.ID, "src", ObsidHERA, map[string]FileStat{
		"zen.1234567.12345.sum.uvh5": {Size: 10, Digest: "abc", Type: "uvh5"},
	})
	assert.Error(t, err)
}

func TestInferObsidSOTwoFieldPrefix(t *testing.T) {
	c := newTestCatalog(t)
	store := newTestStore(t, c, "s1")

	obsid := int64(555)
	require.NoError(t, c.CreateFileRecord(fileWithObsid("book_42_satA.g3", obsid)))

	require.NoError(t, c.RegisterInstances(store.ID, "src", ObsidSO, map[string]FileStat{
		"book_42_satB.g3": {Size: 10, Digest: "abc", Type: "g3"},
	}))

	f, err := c.GetFile("book_42_satB.g3")
	require.NoError(t, err)
	require.NotNil(t, f.Obsid)
	assert.Equal(t, obsid, *f.Obsid)
}

func TestInferObsidSOTwoTokenName(t *testing.T) {
	c := newTestCatalog(t)
	store := newTestStore(t, c, "s1")

	obsid := int64(777)
	require.NoError(t, c.CreateFileRecord(fileWithObsid("obs_12345.g3_satA", obsid)))

	// A bare two-token "book_id" name is valid under SO inference; only a
	// name with no underscore at all looks weird to it.
	require.NoError(t, c.RegisterInstances(store.ID, "src", ObsidSO, map[string]FileStat{
		"obs_12345.g3": {Size: 10, Digest: "abc", Type: "g3"},
	}))

	f, err := c.GetFile("obs_12345.g3")
	require.NoError(t, err)
	require.NotNil(t, f.Obsid)
	assert.Equal(t, obsid, *f.Obsid)

	err = c.RegisterInstances(store.ID, "src", ObsidSO, map[string]FileStat{
		"plainname.g3": {Size: 10, Digest: "abc", Type: "g3"},
	})
	assert.Error(t, err)
}

func TestInferObsidTestingModeParsesJD(t *testing.T) {
	c := newTestCatalog(t)
	store := newTestStore(t, c, "s1")

	require.NoError(t, c.RegisterInstances(store.ID, "src", ObsidTesting, map[string]FileStat{
		"zen.2459000.123456.sum.uvh5": {Size: 10, Digest: "abc", Type: "uvh5"},
	}))

	f, err := c.GetFile("zen.2459000.123456.sum.uvh5")
	require.NoError(t, err)
	require.NotNil(t, f.Obsid)
	assert.NotZero(t, *f.Obsid)
}

func TestInferObsidUnknownModeErrors(t *testing.T) {
	c := newTestCatalog(t)
	store := newTestStore(t, c, "s1")

	err := c.RegisterInstances(store.ID, "src", ObsidInferenceMode("bogus"), map[string]FileStat{
		"whatever.uvh5": {Size: 1, Digest: "x", Type: "uvh5"},
	})
	assert.Error(t, err)
}
