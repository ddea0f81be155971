package search

import (
	"testing"
	"time"

	"github.com/cuemby/librarian/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineFilesMatchesSizeAndSource(t *testing.T) {
	fc := newFakeCatalog()
	fc.addFile("a.uv", "correlator", 2000, nil)
	fc.addFile("b.uv", "correlator", 500, nil)
	fc.addFile("c.uv", "other", 3000, nil)

	e := mustEngine(fc)
	files, err := e.Files(`{"size-greater-than": 1000, "source-is-exactly": "correlator"}`)
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"a.uv": true}, fileNameSet(files))
}

func TestEngineFileNames(t *testing.T) {
	fc := newFakeCatalog()
	fc.addFile("a.uv", "correlator", 2000, nil)

	e := mustEngine(fc)
	names, err := e.FileNames(`{"always-true": true}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.uv"}, names)
}

func TestEngineFileProxiesObservationClause(t *testing.T) {
	fc := newFakeCatalog()
	obsid := int64(100)
	fc.obs[obsid] = types.Observation{Obsid: obsid, StartJD: 2458000.5}
	fc.addFile("zen.100.uv", "correlator", 100, &obsid)

	e := mustEngine(fc)
	files, err := e.Files(`{"start-time-jd-greater-than": 2458000.0}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"zen.100.uv": true}, fileNameSet(files))

	files, err = e.Files(`{"start-time-jd-greater-than": 2459000.0}`)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestEngineObsMatchesSubQuery(t *testing.T) {
	fc := newFakeCatalog()
	obsid := int64(7)
	fc.obs[obsid] = types.Observation{Obsid: obsid, StartJD: 10.0}
	fc.addFile("a.uv", "x", 1, &obsid)

	e := mustEngine(fc)
	files, err := e.Files(`{"obs-matches": {"obsid-is-exactly": 7}}`)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	files, err = e.Files(`{"obs-matches": {"obsid-is-exactly": 9}}`)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestEngineObservationsDerivedAttrs(t *testing.T) {
	fc := newFakeCatalog()
	obsid := int64(5)
	fc.obs[obsid] = types.Observation{Obsid: obsid, StartJD: 1.0, StopJD: floatPtr(2.0)}
	fc.addFile("a.uv", "x", 100, &obsid)
	fc.addFile("b.uv", "x", 200, &obsid)

	e := mustEngine(fc)
	obs, err := e.Observations(`{"num-files-is-exactly": 2, "total-size-is-exactly": 300}`)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, obsid, obs[0].Obsid)
}

func TestEngineSessionsNoFileHasEvent(t *testing.T) {
	fc := newFakeCatalog()
	obsid := int64(9)
	sessionID := int64(9)
	fc.sessions[sessionID] = types.ObservingSession{ID: sessionID, StartJD: 1.0, StopJD: 2.0}
	fc.obs[obsid] = types.Observation{Obsid: obsid, StartJD: 1.0, StopJD: floatPtr(2.0), SessionID: &sessionID}
	fc.addFile("a.uv", "x", 1, &obsid)

	e := mustEngine(fc)

	matches, err := e.Sessions(`{"no-file-has-event": "copy_finished"}`)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	fc.addEvent("a.uv", "copy_finished")
	matches, err = e.Sessions(`{"no-file-has-event": "copy_finished"}`)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestEngineInstancesWithStores(t *testing.T) {
	fc := newFakeCatalog()
	fc.addFile("a.uv", "correlator", 100, nil)
	fc.stores[1] = types.Store{ID: 1, Name: "store-a"}
	fc.instances = append(fc.instances, types.FileInstance{StoreID: 1, ParentDirs: "d", Name: "a.uv"})

	e := mustEngine(fc)
	pairs, err := e.InstancesWithStores(`{"always-true": true}`)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "store-a", pairs[0].Store.Name)
	assert.Equal(t, "a.uv", pairs[0].File.Name)
}

func TestEngineNotOlderThanUsesCreateTime(t *testing.T) {
	fc := newFakeCatalog()
	fc.files["recent.uv"] = types.File{Name: "recent.uv", CreateTime: time.Now().UTC()}
	e := mustEngine(fc)

	files, err := e.Files(`{"not-older-than": 1}`)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
