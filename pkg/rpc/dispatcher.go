// Package rpc implements the librarian's 16 RPC operations as a plain Go
// dispatch table. There is no HTTP listener, router, or TLS here - those
// belong to the gateway that fronts a deployment. A Dispatcher is a thin
// adapter: it holds references to the catalog and engines and exposes one
// method per operation, registered in a string-keyed map.
package rpc

import (
	"context"

	"github.com/cuemby/librarian/pkg/catalog"
	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/log"
	"github.com/cuemby/librarian/pkg/metrics"
	"github.com/cuemby/librarian/pkg/offload"
	"github.com/cuemby/librarian/pkg/replication"
	"github.com/cuemby/librarian/pkg/search"
	"github.com/cuemby/librarian/pkg/staging"
	"github.com/cuemby/librarian/pkg/stores"
	"github.com/rs/zerolog"
)

// OperationFunc implements one RPC operation. ctx carries cancellation
// for the operation's catalog/search work; source is the caller identity
// resolved by pkg/auth; payload is the decoded request body.
type OperationFunc func(ctx context.Context, d *Dispatcher, source string, payload map[string]any) (map[string]any, error)

// Dispatcher holds every component an RPC operation might need and maps
// operation names to their implementations.
type Dispatcher struct {
	Catalog     *catalog.Catalog
	Search      *search.Engine
	Replication *replication.Engine
	Offload     *offload.Engine
	Staging     *staging.Engine
	LocalStores *stores.Registry
	DFCache     *stores.DFCache
	ObsidMode   catalog.ObsidInferenceMode

	// ReadOnly rejects every mutating operation, for deployments that
	// serve an archive copy of the catalog (permissions_mode: readonly).
	ReadOnly bool

	logger zerolog.Logger
	ops    map[string]OperationFunc
}

// mutatingOps lists the operations refused when ReadOnly is set. Search,
// lookup, and staging operations stay available: staging copies bytes to
// local disk without touching the catalog.
var mutatingOps = map[string]bool{
	"create_file_event":                    true,
	"set_one_file_deletion_policy":         true,
	"delete_file_instances":                true,
	"delete_file_instances_matching_query": true,
	"register_instances":                   true,
	"create_file_record":                   true,
	"launch_file_copy":                     true,
	"initiate_offload":                     true,
	"create_or_update_observation":         true,
	"assign_observing_sessions":            true,
}

// New builds a Dispatcher with every operation registered.
func New(cat *catalog.Catalog, searchEngine *search.Engine, repl *replication.Engine, offloadEngine *offload.Engine, stagingEngine *staging.Engine, localStores *stores.Registry, dfCache *stores.DFCache, obsidMode catalog.ObsidInferenceMode) *Dispatcher {
	d := &Dispatcher{
		Catalog:     cat,
		Search:      searchEngine,
		Replication: repl,
		Offload:     offloadEngine,
		Staging:     stagingEngine,
		LocalStores: localStores,
		DFCache:     dfCache,
		ObsidMode:   obsidMode,
		logger:      log.WithComponent("rpc"),
	}
	d.ops = map[string]OperationFunc{
		"ping":                                opPing,
		"create_file_event":                   opCreateFileEvent,
		"locate_file_instance":                opLocateFileInstance,
		"set_one_file_deletion_policy":         opSetOneFileDeletionPolicy,
		"delete_file_instances":                opDeleteFileInstances,
		"delete_file_instances_matching_query": opDeleteFileInstancesMatchingQuery,
		"register_instances":                   opRegisterInstances,
		"create_file_record":                   opCreateFileRecord,
		"gather_file_record":                   opGatherFileRecord,
		"launch_file_copy":                     opLaunchFileCopy,
		"initiate_offload":                     opInitiateOffload,
		"recommended_store":                    opRecommendedStore,
		"create_or_update_observation":         opCreateOrUpdateObservation,
		"assign_observing_sessions":            opAssignObservingSessions,
		"describe_session_without_event":       opDescribeSessionWithoutEvent,
		"search":                               opSearch,
	}
	return d
}

// Dispatch runs the named operation for source, returning the handler's
// result map with `success` filled in if absent. Handler errors are
// returned unchanged; errs.KindOf reports Internal for any that is not an
// *errs.Error. Callers (an HTTP adapter, a test) map errs.KindOf to
// whatever transport status they use - this package knows nothing about
// transports.
func (d *Dispatcher) Dispatch(ctx context.Context, operation, source string, payload map[string]any) (map[string]any, error) {
	fn, ok := d.ops[operation]
	if !ok {
		return nil, errs.BadRequestf("unknown operation %q", operation)
	}
	if d.ReadOnly && mutatingOps[operation] {
		return nil, errs.BadRequestf("this librarian is read-only; operation %q is not permitted", operation)
	}

	timer := metrics.NewTimer()
	result, err := fn(ctx, d, source, payload)
	outcome := "success"
	if err != nil {
		outcome = string(errs.KindOf(err))
	}
	metrics.RPCRequestsTotal.WithLabelValues(operation, outcome).Inc()
	timer.ObserveDurationVec(metrics.RPCRequestDuration, operation)

	if err != nil {
		d.logger.Warn().Err(err).Str("operation", operation).Str("source", source).Msg("rpc operation failed")
		return nil, err
	}

	if result == nil {
		result = map[string]any{}
	}
	if _, ok := result["success"]; !ok {
		result["success"] = true
	}
	return result, nil
}

func opPing(_ context.Context, _ *Dispatcher, _ string, _ map[string]any) (map[string]any, error) {
	return map[string]any{"message": "hello"}, nil
}
