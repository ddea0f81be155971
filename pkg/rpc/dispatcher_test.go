package rpc

import (
	"context"
	"testing"

	"github.com/cuemby/librarian/pkg/catalog"
	"github.com/cuemby/librarian/pkg/notify"
	"github.com/cuemby/librarian/pkg/offload"
	"github.com/cuemby/librarian/pkg/replication"
	"github.com/cuemby/librarian/pkg/search"
	"github.com/cuemby/librarian/pkg/staging"
	"github.com/cuemby/librarian/pkg/stores"
	"github.com/cuemby/librarian/pkg/stores/fakedriver"
	"github.com/cuemby/librarian/pkg/tasks"
	"github.com/cuemby/librarian/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchRig struct {
	cat  *catalog.Catalog
	mgr  *tasks.Manager
	d    *Dispatcher
	reg  *stores.Registry
	df   *stores.DFCache
}

func newDispatchRig(t *testing.T) *dispatchRig {
	t.Helper()

	bus := notify.NewBus()
	cat, err := catalog.Open(t.TempDir(), bus)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	localStores := stores.NewRegistry()
	peers := stores.NewRegistry()
	mgr := tasks.NewManager(4)
	t.Cleanup(mgr.Drain)

	searchEngine := search.NewEngine(cat)
	replEngine := replication.NewEngine(cat, searchEngine, localStores, peers, mgr, replication.ModeNormal)
	offloadEngine := offload.NewEngine(cat, localStores, mgr)
	stagingEngine := staging.NewEngine(searchEngine, localStores, mgr, "/tmp", "", nil)
	df := stores.NewDFCache()

	d := New(cat, searchEngine, replEngine, offloadEngine, stagingEngine, localStores, df, catalog.ObsidNone)
	return &dispatchRig{cat: cat, mgr: mgr, d: d, reg: localStores, df: df}
}

func TestDispatchPing(t *testing.T) {
	r := newDispatchRig(t)
	result, err := r.d.Dispatch(context.Background(), "ping", "test", nil)
	require.NoError(t, err)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "hello", result["message"])
}

func TestDispatchUnknownOperation(t *testing.T) {
	r := newDispatchRig(t)
	_, err := r.d.Dispatch(context.Background(), "nope", "test", nil)
	require.Error(t, err)
}

func TestDispatchCreateFileRecordAndLocateInstance(t *testing.T) {
	r := newDispatchRig(t)

	_, err := r.d.Dispatch(context.Background(), "create_file_record", "test", map[string]any{
		"file_name": "zen.123.456.sum.uvh5",
		"size":      float64(4),
	})
	require.NoError(t, err)

	store, err := r.cat.CreateStore(types.Store{Name: "nas1", PathPrefix: "/data/nas1", Available: true})
	require.NoError(t, err)
	driver := fakedriver.New(1 << 30)
	r.reg.Register(store.Name, driver)

	_, err = r.d.Dispatch(context.Background(), "register_instances", "test", map[string]any{
		"store_name": "nas1",
		"file_info": map[string]any{
			"zen.123.456.sum.uvh5": map[string]any{"size": float64(4), "md5": "abc"},
		},
	})
	require.NoError(t, err)

	result, err := r.d.Dispatch(context.Background(), "locate_file_instance", "test", map[string]any{
		"file_name": "zen.123.456.sum.uvh5",
	})
	require.NoError(t, err)
	assert.Equal(t, "nas1", mustStoreName(t, r, result["store_id"]))
}

func mustStoreName(t *testing.T, r *dispatchRig, storeID any) string {
	t.Helper()
	id, ok := storeID.(int64)
	require.True(t, ok)
	s, err := r.cat.GetStore(id)
	require.NoError(t, err)
	return s.Name
}

func TestDispatchCreateFileEventMissingFileFails(t *testing.T) {
	r := newDispatchRig(t)
	_, err := r.d.Dispatch(context.Background(), "create_file_event", "test", map[string]any{
		"file_name": "nope.uvh5",
		"type":      "some_event",
	})
	require.Error(t, err)
}

func TestDispatchReadOnlyRejectsMutations(t *testing.T) {
	r := newDispatchRig(t)
	r.d.ReadOnly = true

	_, err := r.d.Dispatch(context.Background(), "create_file_record", "test", map[string]any{
		"file_name": "zen.1.2.sum.uvh5",
		"size":      float64(4),
	})
	require.Error(t, err)

	_, err = r.d.Dispatch(context.Background(), "ping", "test", nil)
	require.NoError(t, err)
}

func TestDispatchRecommendedStore(t *testing.T) {
	r := newDispatchRig(t)

	store, err := r.cat.CreateStore(types.Store{Name: "nas1", PathPrefix: "/data/nas1", Available: true})
	require.NoError(t, err)
	driver := fakedriver.New(1 << 30)
	r.reg.Register(store.Name, driver)

	result, err := r.d.Dispatch(context.Background(), "recommended_store", "test", map[string]any{
		"file_size": float64(1024),
	})
	require.NoError(t, err)
	assert.Equal(t, "nas1", result["store_name"])
}

func TestDispatchSearchFileListing(t *testing.T) {
	r := newDispatchRig(t)
	require.NoError(t, r.cat.CreateFileRecord(types.File{Name: "zen.1.1.sum.uvh5", Type: "uvh5", Source: "test"}))

	result, err := r.d.Dispatch(context.Background(), "search", "test", map[string]any{
		"search":        `{"always-true": true}`,
		"output_format": outputFileListing,
	})
	require.NoError(t, err)
	results, ok := result["results"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, "zen.1.1.sum.uvh5", results[0]["name"])
}

func TestDispatchCreateOrUpdateObservationAndAssignSessions(t *testing.T) {
	r := newDispatchRig(t)

	_, err := r.d.Dispatch(context.Background(), "create_or_update_observation", "test", map[string]any{
		"obsid":         float64(1000),
		"start_time_jd": float64(2459000.1),
		"stop_time_jd":  float64(2459000.2),
	})
	require.NoError(t, err)

	result, err := r.d.Dispatch(context.Background(), "assign_observing_sessions", "test", nil)
	require.NoError(t, err)
	sessions, ok := result["new_sessions"].([]int64)
	require.True(t, ok)
	assert.Equal(t, []int64{1000}, sessions)
}

func TestDispatchDescribeSessionWithoutEventNoMatch(t *testing.T) {
	r := newDispatchRig(t)
	result, err := r.d.Dispatch(context.Background(), "describe_session_without_event", "test", map[string]any{
		"source":     "test",
		"event_type": "processed",
	})
	require.NoError(t, err)
	assert.Equal(t, false, result["any_matching"])
}
