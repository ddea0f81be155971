// Package replication drives standing-order copies: it watches the
// catalog for new files, matches them against administrator-defined
// StandingOrder searches, and submits UploadTasks to ship matching files
// to peer librarians. It never blocks a caller; every match-and-launch
// cycle runs on the Task Manager's coordinator goroutine or a timer
// callback.
package replication

import (
	"path"
	"sync"
	"time"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/log"
	"github.com/cuemby/librarian/pkg/notify"
	"github.com/cuemby/librarian/pkg/search"
	"github.com/cuemby/librarian/pkg/stores"
	"github.com/cuemby/librarian/pkg/tasks"
	"github.com/cuemby/librarian/pkg/types"
	"github.com/rs/zerolog"
)

// launchCopyDelay is how long QueueCheck waits before actually evaluating
// standing orders, so a batch of uploads triggers one evaluation instead
// of one per file.
const launchCopyDelay = 90 * time.Second

// minCheckInterval rate-limits full standing-order evaluation: running
// every order's search can be expensive, so MaybeLaunchCopies skips the
// evaluation if the last one ran more recently than this, and a queued
// check that was skipped is tried again after another launchCopyDelay.
const minCheckInterval = 20 * time.Minute

// safetyTickInterval is how often the engine queues a check on its own,
// independent of catalog activity, to catch anything a missed
// notification would otherwise leave unreplicated.
const safetyTickInterval = 10 * time.Minute

// Mode controls whether/when the engine evaluates standing orders.
type Mode string

const (
	// ModeNormal evaluates standing orders on every check.
	ModeNormal Mode = "normal"
	// ModeDisabled never evaluates standing orders.
	ModeDisabled Mode = "disabled"
	// ModeNighttime only evaluates standing orders during the local
	// nighttime window [18,6).
	ModeNighttime Mode = "nighttime"
)

// Catalog is the subset of *catalog.Catalog the replication engine needs.
type Catalog interface {
	ListStandingOrders() ([]types.StandingOrder, error)
	HasEvent(fileName, eventType string) (bool, error)
	CreateFileEvent(fileName, eventType string, payload any) error
	ListInstancesForFile(name string) ([]types.FileInstance, error)
	GatherFileRecord(name string) (types.RecInfo, error)
	GetStore(id int64) (types.Store, error)
}

// Engine evaluates standing orders and launches UploadTasks for files
// that match them. Bursts of catalog mutations coalesce into a single
// delayed evaluation rather than one evaluation per mutation.
type Engine struct {
	cat         Catalog
	search      *search.Engine
	localStores *stores.Registry
	peers       *stores.Registry
	mgr         *tasks.Manager
	logger      zerolog.Logger

	transferOpts stores.TransferOpts

	now func() time.Time

	mu           sync.Mutex
	mode         Mode
	lastCheck    time.Time
	launchQueued bool
	stopCh       chan struct{}
	stopped      bool
}

// NewEngine builds an Engine. localStores resolves a StandingOrder's
// source instances; peers resolves a StandingOrder's ConnName to the
// Driver fronting that destination.
func NewEngine(cat Catalog, searchEngine *search.Engine, localStores, peers *stores.Registry, mgr *tasks.Manager, mode Mode) *Engine {
	if mode == "" {
		mode = ModeNormal
	}
	return &Engine{
		cat:         cat,
		search:      searchEngine,
		localStores: localStores,
		peers:       peers,
		mgr:         mgr,
		logger:      log.WithComponent("replication"),
		now:         time.Now,
		mode:        mode,
	}
}

// SetTransferOpts configures the out-of-band transport every launched
// copy uses (e.g. a bulk/Globus provider with its credentials). Call
// before Start; the zero value means direct streaming.
func (e *Engine) SetTransferOpts(opts stores.TransferOpts) {
	e.transferOpts = opts
}

// SetMode changes the engine's operating mode at runtime, e.g. in
// response to a config hot-reload.
func (e *Engine) SetMode(mode Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = mode
}

// Start begins consuming catalog change notifications (turning each into
// a QueueCheck) and runs the periodic safety tick. Callers should only
// call Start on the primary server process: standing-order evaluation is
// redundant (though harmless) if run on more than one process at once.
func (e *Engine) Start(sub notify.Subscriber) {
	e.mu.Lock()
	if e.stopCh != nil {
		e.mu.Unlock()
		return
	}
	e.stopCh = make(chan struct{})
	stopCh := e.stopCh
	e.mu.Unlock()

	go e.consumeNotifications(sub, stopCh)
	go e.runSafetyTicker(stopCh)
}

// Stop halts the notification consumer and safety ticker. It does not
// wait for an in-flight evaluation or any UploadTask to finish; that is
// the Task Manager's Drain's job.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped || e.stopCh == nil {
		return
	}
	e.stopped = true
	close(e.stopCh)
}

func (e *Engine) consumeNotifications(sub notify.Subscriber, stopCh chan struct{}) {
	for {
		select {
		case n, ok := <-sub:
			if !ok {
				return
			}
			if n.Kind == notify.FileRegistered || n.Kind == notify.EventCreated {
				e.QueueCheck()
			}
		case <-stopCh:
			return
		}
	}
}

func (e *Engine) runSafetyTicker(stopCh chan struct{}) {
	ticker := time.NewTicker(safetyTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.QueueCheck()
		case <-stopCh:
			return
		}
	}
}

// QueueCheck schedules a standing-order evaluation after launchCopyDelay,
// coalescing repeated calls within that window into a single evaluation.
func (e *Engine) QueueCheck() {
	e.mu.Lock()
	if e.launchQueued {
		e.mu.Unlock()
		return
	}
	e.launchQueued = true
	e.mu.Unlock()

	e.logger.Debug().Msg("queued standing order check")
	time.AfterFunc(launchCopyDelay, e.runQueuedCheck)
}

func (e *Engine) runQueuedCheck() {
	if e.MaybeLaunchCopies() {
		e.mu.Lock()
		e.launchQueued = false
		e.mu.Unlock()
		return
	}

	// Rate-limited: we didn't actually evaluate. Re-arm so a file that
	// arrived during the rate-limit window still eventually gets picked
	// up.
	e.logger.Debug().Msg("re-scheduling standing order check: rate limited")
	time.AfterFunc(launchCopyDelay, e.runQueuedCheck)
}

// MaybeLaunchCopies evaluates every standing order against the catalog
// and launches UploadTasks for newly matching files. It returns false
// (without evaluating anything) if the last evaluation ran too recently,
// so callers can decide whether to retry later.
func (e *Engine) MaybeLaunchCopies() bool {
	e.mu.Lock()
	now := e.now()
	if now.Sub(e.lastCheck) < minCheckInterval {
		e.mu.Unlock()
		return false
	}
	mode := e.mode
	e.mu.Unlock()

	switch mode {
	case ModeDisabled:
		e.logger.Debug().Msg("not checking standing orders: explicitly disabled")
		return true
	case ModeNighttime:
		hour := now.Local().Hour()
		if hour >= 6 && hour < 18 {
			e.logger.Debug().Int("hour", hour).Msg(`not checking standing orders: "nighttime" mode and it's daytime`)
			return true
		}
	}

	e.mu.Lock()
	e.lastCheck = now
	e.mu.Unlock()

	orders, err := e.cat.ListStandingOrders()
	if err != nil {
		e.logger.Warn().Err(err).Msg("failed to list standing orders")
		return true
	}

	for _, order := range orders {
		e.evaluateOrder(order)
	}
	return true
}

func (e *Engine) evaluateOrder(order types.StandingOrder) {
	logger := log.WithOrder(order.Name)

	switch Mode(order.Mode) {
	case ModeDisabled:
		logger.Debug().Msg("skipping standing order: disabled")
		return
	case ModeNighttime:
		hour := e.now().Local().Hour()
		if hour >= 6 && hour < 18 {
			logger.Debug().Int("hour", hour).Msg(`skipping standing order: "nighttime" mode and it's daytime`)
			return
		}
	}

	logger.Debug().Msg("evaluating standing order")

	files, err := e.search.Files(order.Search)
	if err != nil {
		logger.Warn().Err(err).Msg("standing order search failed to compile/run")
		return
	}

	inFlight := e.alreadyLaunched(order.Name)

	for _, f := range files {
		done, err := e.cat.HasEvent(f.Name, order.EventType())
		if err != nil {
			logger.Warn().Err(err).Str("file", f.Name).Msg("failed to check standing order completion event")
			continue
		}
		if done || inFlight[f.Name] {
			continue
		}
		logger.Debug().Str("file", f.Name).Msg("standing order matched file")
		e.launchCopy(order, f.Name)
	}
}

// alreadyLaunched returns the set of file names that already have an
// UploadTask for order in the Manager's task list whose outcome isn't a
// recorded failure. This index isn't persisted: after a restart it
// starts empty, so a task that was mid-flight at shutdown may be
// re-launched and the peer resolves the duplicate on commit.
func (e *Engine) alreadyLaunched(orderName string) map[string]bool {
	launched := map[string]bool{}
	for _, h := range e.mgr.Handles() {
		ut, ok := h.Task().(*UploadTask)
		if !ok || ut.orderName != orderName {
			continue
		}
		if h.Err() != nil {
			continue
		}
		launched[ut.fileName] = true
	}
	return launched
}

// LaunchFileCopy submits an UploadTask for a single file outside of any
// standing order, realizing the `launch_file_copy` RPC operation.
// remoteStorePath, if non-empty, overrides the path the file is written
// to on the destination store. knownStagingStore/knownStagingSubdir, if
// non-empty, tell the destination the bytes were already shipped out of
// band and are staged there; they are forwarded to the transport as a
// staging hint.
func (e *Engine) LaunchFileCopy(fileName, connName, remoteStorePath, knownStagingStore, knownStagingSubdir string) error {
	instances, err := e.cat.ListInstancesForFile(fileName)
	if err != nil {
		return err
	}

	src, srcInst, srcStore := e.pickSourceInstance(instances)
	if src == nil {
		return errs.NotFoundf("no available instance of file %q to copy from", fileName)
	}

	dest, err := e.peers.Get(connName)
	if err != nil {
		return err
	}

	rec, err := e.cat.GatherFileRecord(fileName)
	if err != nil {
		return err
	}

	task := &UploadTask{
		cat:       e.cat,
		src:       src,
		dest:      dest,
		fileName:  fileName,
		storePath: path.Join(srcInst.ParentDirs, srcInst.Name),
		destPath:  remoteStorePath,
		destConn:  connName,
		rec:       rec,
		opts:      e.transferOpts,
	}
	task.opts.KnownStagingStore = knownStagingStore
	task.opts.KnownStagingSubdir = knownStagingSubdir

	h := e.mgr.Submit(task)
	if h == nil {
		return errs.Transientf("launch_file_copy: task manager is draining, try again later")
	}

	return e.cat.CreateFileEvent(fileName, types.EventCopyLaunched, map[string]any{
		"dest":      connName,
		"src_store": srcStore.Name,
	})
}

// pickSourceInstance returns the first instance that lives on an
// available store with a registered local driver, or a nil Driver if none
// qualifies.
func (e *Engine) pickSourceInstance(instances []types.FileInstance) (stores.Driver, types.FileInstance, types.Store) {
	for _, inst := range instances {
		st, err := e.cat.GetStore(inst.StoreID)
		if err != nil || !st.Available {
			continue
		}
		d, err := e.localStores.Get(st.Name)
		if err != nil {
			continue
		}
		return d, inst, st
	}
	return nil, types.FileInstance{}, types.Store{}
}

func (e *Engine) launchCopy(order types.StandingOrder, fileName string) {
	logger := log.WithOrder(order.Name)

	instances, err := e.cat.ListInstancesForFile(fileName)
	if err != nil {
		logger.Warn().Err(err).Str("file", fileName).Msg("failed to list instances for standing order copy")
		return
	}

	src, srcInst, srcStore := e.pickSourceInstance(instances)
	if src == nil {
		logger.Warn().Str("file", fileName).Str("dest", order.ConnName).
			Msg("standing order should copy file, but no instances of it are available")
		return
	}

	dest, err := e.peers.Get(order.ConnName)
	if err != nil {
		logger.Warn().Err(err).Str("dest", order.ConnName).Msg("standing order destination has no registered connection")
		return
	}

	rec, err := e.cat.GatherFileRecord(fileName)
	if err != nil {
		logger.Warn().Err(err).Str("file", fileName).Msg("failed to gather file record for standing order copy")
		return
	}

	task := &UploadTask{
		cat:       e.cat,
		src:       src,
		dest:      dest,
		fileName:  fileName,
		storePath: path.Join(srcInst.ParentDirs, srcInst.Name),
		orderName: order.Name,
		destConn:  order.ConnName,
		rec:       rec,
		opts:      e.transferOpts,
	}

	h := e.mgr.Submit(task)
	if h == nil {
		logger.Warn().Str("file", fileName).Msg("task manager rejected standing order copy: draining")
		return
	}

	if err := e.cat.CreateFileEvent(fileName, types.EventCopyLaunched, map[string]any{
		"standing_order": order.Name,
		"dest":           order.ConnName,
		"src_store":      srcStore.Name,
	}); err != nil {
		logger.Warn().Err(err).Str("file", fileName).Msg("failed to record copy_launched event")
	}
}
