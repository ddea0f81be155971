// Package offload drains file instances off a store being decommissioned
// onto another store, so the source can eventually be deleted. The usual
// case is a temporary emergency store that needs to be emptied back onto
// permanent storage.
package offload

import (
	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/log"
	"github.com/cuemby/librarian/pkg/stores"
	"github.com/cuemby/librarian/pkg/tasks"
	"github.com/cuemby/librarian/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultBatchSize bounds how many instances one InitiateOffload call
// moves, so a single call stays fast; callers re-invoke it until the
// source store reports store-shut-down.
const DefaultBatchSize = 200

// Catalog is the subset of *catalog.Catalog the offload engine needs.
type Catalog interface {
	GetStoreByName(name string) (types.Store, error)
	ListInstances() ([]types.FileInstance, error)
	SetOneFileDeletionPolicy(name string, policy types.DeletionPolicy, restrictToStore *int64) error
	SetStoreAvailable(id int64, available bool) error
}

// Outcome is the result of one InitiateOffload call.
type Outcome struct {
	Result        string // "store-shut-down" or "task-launched"
	InstanceCount int
}

// Engine launches OffloaderTasks on behalf of InitiateOffload calls.
type Engine struct {
	cat         Catalog
	localStores *stores.Registry
	mgr         *tasks.Manager
	batchSize   int
	logger      zerolog.Logger
}

// NewEngine builds an Engine with DefaultBatchSize.
func NewEngine(cat Catalog, localStores *stores.Registry, mgr *tasks.Manager) *Engine {
	return &Engine{
		cat:         cat,
		localStores: localStores,
		mgr:         mgr,
		batchSize:   DefaultBatchSize,
		logger:      log.WithComponent("offload"),
	}
}

// InitiateOffload gathers up to one batch of instances on sourceStoreName
// that have no instance on any other store, and either launches an
// OffloaderTask to move them onto destStoreName, or - if the source store
// is already empty of such instances - marks it unavailable so it is safe
// to decommission.
func (e *Engine) InitiateOffload(sourceStoreName, destStoreName string) (Outcome, error) {
	source, err := e.cat.GetStoreByName(sourceStoreName)
	if err != nil {
		return Outcome{}, err
	}
	dest, err := e.cat.GetStoreByName(destStoreName)
	if err != nil {
		return Outcome{}, err
	}

	batch, err := e.eligibleInstances(source.ID)
	if err != nil {
		return Outcome{}, err
	}

	if len(batch) == 0 {
		if err := e.cat.SetStoreAvailable(source.ID, false); err != nil {
			return Outcome{}, errs.Wrap(errs.Internal, err, "offload: failed to mark store %q unavailable", source.Name)
		}
		e.logger.Info().Str("store", source.Name).Msg("offload: source store drained, marked unavailable")
		return Outcome{Result: "store-shut-down"}, nil
	}

	srcDriver, err := e.localStores.Get(source.Name)
	if err != nil {
		return Outcome{}, err
	}
	destDriver, err := e.localStores.Get(dest.Name)
	if err != nil {
		return Outcome{}, err
	}

	task := &OffloaderTask{
		cat:           e.cat,
		src:           srcDriver,
		dest:          destDriver,
		sourceStoreID: source.ID,
		sourceName:    source.Name,
		destName:      dest.Name,
		instances:     batch,
	}

	h := e.mgr.Submit(task)
	if h == nil {
		return Outcome{}, errs.Transientf("offload: task manager is draining, try again later")
	}

	e.logger.Info().Str("source", source.Name).Str("dest", dest.Name).Int("count", len(batch)).
		Msg("offload: task launched")
	return Outcome{Result: "task-launched", InstanceCount: len(batch)}, nil
}

// eligibleInstances returns up to batchSize FileInstances on storeID whose
// File has no instance on any other store - the only copies that must be
// preserved by moving rather than simply deleting.
func (e *Engine) eligibleInstances(storeID int64) ([]types.FileInstance, error) {
	all, err := e.cat.ListInstances()
	if err != nil {
		return nil, err
	}

	storesByName := map[string]map[int64]bool{}
	for _, inst := range all {
		if storesByName[inst.Name] == nil {
			storesByName[inst.Name] = map[int64]bool{}
		}
		storesByName[inst.Name][inst.StoreID] = true
	}

	var out []types.FileInstance
	for _, inst := range all {
		if inst.StoreID != storeID {
			continue
		}
		if len(storesByName[inst.Name]) > 1 {
			continue // a copy exists elsewhere; not eligible
		}
		out = append(out, inst)
		if len(out) >= e.batchSize {
			break
		}
	}
	return out, nil
}
