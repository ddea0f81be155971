// Package librarian wires every long-lived component into one top-level
// application struct instead of leaving them as process-global mutable
// state. App is explicitly constructed, owned by cmd/librarian, and
// passed by reference wherever a handler or timer needs it.
package librarian

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/librarian/pkg/auth"
	"github.com/cuemby/librarian/pkg/catalog"
	"github.com/cuemby/librarian/pkg/config"
	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/log"
	"github.com/cuemby/librarian/pkg/mc"
	"github.com/cuemby/librarian/pkg/metrics"
	"github.com/cuemby/librarian/pkg/notify"
	"github.com/cuemby/librarian/pkg/offload"
	"github.com/cuemby/librarian/pkg/replication"
	"github.com/cuemby/librarian/pkg/rpc"
	"github.com/cuemby/librarian/pkg/search"
	"github.com/cuemby/librarian/pkg/staging"
	"github.com/cuemby/librarian/pkg/stores"
	"github.com/cuemby/librarian/pkg/tasks"
	"github.com/cuemby/librarian/pkg/types"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

// metricsPollInterval is how often the metrics Collector re-reads
// catalog/task-manager/store-registry state.
const metricsPollInterval = 15 * time.Second

// App owns every long-lived component a running librarian process needs:
// the catalog, the search compiler, the replication/offload/staging
// engines, the background task manager, the RPC dispatcher, and the
// optional metrics/M&C reporters. Exactly one App exists per process.
type App struct {
	Config *config.Config

	Catalog     *catalog.Catalog
	Bus         *notify.Bus
	LocalStores *stores.Registry
	PeerStores  *stores.Registry
	DFCache     *stores.DFCache
	Search      *search.Engine
	Tasks       *tasks.Manager
	Replication *replication.Engine
	Offload     *offload.Engine
	Staging     *staging.Engine
	Dispatcher  *rpc.Dispatcher
	HTTP        *rpc.HTTPAdapter
	Metrics     *metrics.Collector
	MC          *mc.Reporter

	identityChecker auth.IdentityChecker

	primaryLock *flock.Flock
	isPrimary   bool

	logger zerolog.Logger
}

// New assembles an App from cfg but does not yet start any goroutine.
// identityChecker may be nil (third-party auth disabled); sink may be nil
// (M&C reporting disabled, matching cfg.ReportToMandc = false).
func New(cfg *config.Config, identityChecker auth.IdentityChecker, sink mc.Sink) (*App, error) {
	logger := log.WithComponent("app")

	bus := notify.NewBus()
	cat, err := catalog.Open(cfg.DataDir, bus)
	if err != nil {
		return nil, fmt.Errorf("librarian: open catalog: %w", err)
	}

	localStores := stores.NewRegistry()
	for name, sc := range cfg.AddStores {
		if err := localStores.BuildLocal(name, sc.PathPrefix); err != nil {
			cat.Close()
			return nil, fmt.Errorf("librarian: build store %q: %w", name, err)
		}
		if _, err := cat.GetStoreByName(name); errs.Is(err, errs.NotFound) {
			_, err = cat.CreateStore(types.Store{
				Name:       name,
				SSHHost:    sc.SSHHost,
				PathPrefix: sc.PathPrefix,
				HTTPPrefix: sc.HTTPPrefix,
				Available:  sc.StoreAvailable(),
			})
			if err != nil {
				cat.Close()
				return nil, fmt.Errorf("librarian: register store %q: %w", name, err)
			}
		} else if err != nil {
			cat.Close()
			return nil, fmt.Errorf("librarian: look up store %q: %w", name, err)
		}
	}

	peerStores := stores.NewRegistry()
	dfCache := stores.NewDFCache()

	searchEngine := search.NewEngine(cat)
	mgr := tasks.NewManager(cfg.NWorkerThreads)
	replEngine := replication.NewEngine(cat, searchEngine, localStores, peerStores, mgr, cfg.StandingOrderMode)
	if cfg.UseGlobus {
		replEngine.SetTransferOpts(stores.TransferOpts{
			Provider:   stores.TransferBulk,
			EndpointID: cfg.GlobusEndpointID,
			ClientID:   cfg.GlobusClientID,
			Token:      cfg.GlobusTransferToken,
		})
	}
	offloadEngine := offload.NewEngine(cat, localStores, mgr)
	stagingEngine := staging.NewEngine(searchEngine, localStores, mgr,
		cfg.LocalDiskStaging.DestPrefix, cfg.LocalDiskStaging.SSHHost, cfg.LocalDiskStaging.ChownCommand)

	dispatcher := rpc.New(cat, searchEngine, replEngine, offloadEngine, stagingEngine, localStores, dfCache, cfg.ObsidInferenceMode)
	dispatcher.ReadOnly = cfg.PermissionsMode == config.PermissionsReadOnly
	httpAdapter := rpc.NewHTTPAdapter(dispatcher, cfg, identityChecker)

	collector := metrics.NewCollector(cat, mgr, localStores, dfCache, metricsPollInterval)

	var reporter *mc.Reporter
	if cfg.ReportToMandc && sink != nil {
		reporter = mc.NewReporter(sink, mcSnapshot(cat, localStores, dfCache), "librarian", "")
	}

	return &App{
		Config:          cfg,
		Catalog:         cat,
		Bus:             bus,
		LocalStores:     localStores,
		PeerStores:      peerStores,
		DFCache:         dfCache,
		Search:          searchEngine,
		Tasks:           mgr,
		Replication:     replEngine,
		Offload:         offloadEngine,
		Staging:         stagingEngine,
		Dispatcher:      dispatcher,
		HTTP:            httpAdapter,
		Metrics:         collector,
		MC:              reporter,
		identityChecker: identityChecker,
		logger:          logger,
	}, nil
}

// mcSnapshot closes over the components the M&C reporter's periodic
// check-in needs, without the mc package importing any of them directly
// (see pkg/mc's doc comment on why Snapshot is a callback, not an
// interface).
func mcSnapshot(cat *catalog.Catalog, localStores *stores.Registry, dfCache *stores.DFCache) mc.Snapshot {
	return func() (numFiles int, dataVolumeBytes, freeSpaceBytes int64, numProcesses int) {
		files, err := cat.ListFiles()
		if err == nil {
			numFiles = len(files)
			for _, f := range files {
				dataVolumeBytes += f.Size
			}
		}
		storeList, err := cat.ListStores()
		if err == nil {
			for _, s := range storeList {
				if !s.Available {
					continue
				}
				if d, err := localStores.Get(s.Name); err == nil {
					if free, err := dfCache.FreeBytes(context.Background(), s.Name, d); err == nil {
						freeSpaceBytes += free
					}
				}
			}
		}
		return numFiles, dataVolumeBytes, freeSpaceBytes, 1
	}
}

// AcquirePrimary attempts to become the primary process via an exclusive
// file lock in the data directory. Only the primary evaluates standing
// orders; non-primary processes still serve RPCs, they just never run
// replication's coordinator loop.
func (a *App) AcquirePrimary() (bool, error) {
	lockPath := filepath.Join(a.Config.DataDir, "librarian.primary.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("librarian: acquire primary lock: %w", err)
	}
	a.primaryLock = lock
	a.isPrimary = locked
	return locked, nil
}

// IsPrimary reports whether this process won the primary-process lock.
func (a *App) IsPrimary() bool {
	return a.isPrimary
}

// Start begins every background goroutine: the task manager is already
// running (NewManager starts its coordinator), so Start only needs to
// arm the replication engine (primary only), the metrics collector, and
// the M&C reporter.
func (a *App) Start() {
	if a.isPrimary {
		a.Replication.Start(a.Catalog.Subscribe())
		a.logger.Info().Msg("standing order replication armed: primary process")
	} else {
		a.logger.Info().Msg("standing order replication not armed: non-primary process")
	}
	a.Metrics.Start()
	if a.MC != nil {
		a.MC.Start()
	}
}

// Shutdown drains the task manager (letting in-flight uploads/offloads/
// stages finish their work phase and run wrapup), stops every timer, and
// closes the catalog.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("shutting down")
	if a.isPrimary {
		a.Replication.Stop()
	}
	a.Metrics.Stop()
	if a.MC != nil {
		a.MC.Stop()
	}

	done := make(chan struct{})
	go func() {
		a.Tasks.Drain()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn().Msg("shutdown context expired before task drain completed")
	}

	if a.primaryLock != nil {
		_ = a.primaryLock.Unlock()
	}
	return a.Catalog.Close()
}
