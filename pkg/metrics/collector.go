package metrics

import (
	"context"
	"time"

	"github.com/cuemby/librarian/pkg/stores"
	"github.com/cuemby/librarian/pkg/tasks"
	"github.com/cuemby/librarian/pkg/types"
)

// Catalog is the subset of *catalog.Catalog the collector needs to
// populate cardinality gauges. Defined here (rather than imported from
// pkg/catalog) to avoid metrics depending on the catalog's storage
// internals; satisfied implicitly by *catalog.Catalog.
type Catalog interface {
	ListFiles() ([]types.File, error)
	ListInstances() ([]types.FileInstance, error)
	ListObservations() ([]types.Observation, error)
	ListSessions() ([]types.ObservingSession, error)
	ListStandingOrders() ([]types.StandingOrder, error)
	ListStores() ([]types.Store, error)
}

// Collector polls the catalog, the task manager, and the store registry on
// a timer and republishes their current state as Prometheus gauges.
type Collector struct {
	cat         Catalog
	mgr         *tasks.Manager
	localStores *stores.Registry
	dfCache     *stores.DFCache
	interval    time.Duration
	stopCh      chan struct{}
}

// NewCollector builds a Collector. interval defaults to 15s if <= 0.
func NewCollector(cat Catalog, mgr *tasks.Manager, localStores *stores.Registry, dfCache *stores.DFCache, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		cat:         cat,
		mgr:         mgr,
		localStores: localStores,
		dfCache:     dfCache,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start begins collecting on a ticker, polling immediately on start.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the collection loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectCatalogMetrics()
	c.collectStoreMetrics()
	c.collectTaskMetrics()
}

func (c *Collector) collectCatalogMetrics() {
	if files, err := c.cat.ListFiles(); err == nil {
		FilesTotal.Set(float64(len(files)))
	}
	if obs, err := c.cat.ListObservations(); err == nil {
		ObservationsTotal.Set(float64(len(obs)))
	}
	if sessions, err := c.cat.ListSessions(); err == nil {
		SessionsTotal.Set(float64(len(sessions)))
	}
	if orders, err := c.cat.ListStandingOrders(); err == nil {
		StandingOrdersTotal.Set(float64(len(orders)))
	}

	instances, err := c.cat.ListInstances()
	if err != nil {
		return
	}
	storeList, err := c.cat.ListStores()
	if err != nil {
		return
	}
	storeNames := make(map[int64]string, len(storeList))
	for _, s := range storeList {
		storeNames[s.ID] = s.Name
	}
	counts := make(map[string]int)
	for _, inst := range instances {
		counts[storeNames[inst.StoreID]]++
	}
	for name, n := range counts {
		InstancesTotal.WithLabelValues(name).Set(float64(n))
	}
}

func (c *Collector) collectStoreMetrics() {
	storeList, err := c.cat.ListStores()
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, s := range storeList {
		available := 0.0
		if s.Available {
			available = 1.0
		}
		StoreAvailable.WithLabelValues(s.Name).Set(available)

		if !s.Available {
			continue
		}
		driver, err := c.localStores.Get(s.Name)
		if err != nil {
			continue
		}
		free, err := c.dfCache.FreeBytes(ctx, s.Name, driver)
		if err != nil {
			continue
		}
		StoreFreeBytes.WithLabelValues(s.Name).Set(float64(free))
	}
}

func (c *Collector) collectTaskMetrics() {
	TasksInFlight.Set(float64(c.mgr.UnfinishedCount()))
}
