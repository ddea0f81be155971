package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/librarian/pkg/log"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// maxPurgeFrequency bounds how often the manager sweeps finished
	// tasks out of its listing.
	maxPurgeFrequency = 60 * time.Second
	// minTaskListLength is the floor below which a purge is skipped
	// even if it is due, so recent activity stays visible.
	minTaskListLength = 20
	// taskLingerTime is how long a finished task stays in the listing
	// before becoming eligible for purge.
	taskLingerTime = 600 * time.Second

	defaultWorkerCount = 8
)

type wrapupJob struct {
	handle  *Handle
	result  any
	workErr error
}

// Manager runs submitted Tasks on a bounded worker pool and serializes
// their Wrapup phase on a single coordinator goroutine, so wrapup
// functions never have to guard against concurrent catalog access from
// two tasks at once. Handles returned by Handles() stay live while their
// tasks run; their lifecycle fields are read through accessors that
// synchronize with the worker and coordinator writes.
type Manager struct {
	logger zerolog.Logger

	mu        sync.Mutex
	handles   []*Handle
	lastPurge time.Time

	workerSem chan struct{}
	wrapupCh  chan wrapupJob
	stopCh    chan struct{}
	draining  bool
	taskWG    sync.WaitGroup // counts tasks still in Work or Wrapup
	coordWG   sync.WaitGroup // the coordinator goroutine itself
}

// NewManager creates a Manager with workerCount concurrent Work slots
// (defaultWorkerCount if workerCount <= 0) and starts its coordinator
// goroutine.
func NewManager(workerCount int) *Manager {
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}
	m := &Manager{
		logger:    log.WithComponent("tasks"),
		lastPurge: time.Now(),
		workerSem: make(chan struct{}, workerCount),
		wrapupCh:  make(chan wrapupJob, workerCount*4),
		stopCh:    make(chan struct{}),
	}
	m.coordWG.Add(1)
	go m.coordinate()
	return m
}

// Submit schedules task to run. It returns immediately with a Handle that
// is updated in place as the task progresses. Once Drain has been called,
// Submit stops accepting new work and returns nil.
func (m *Manager) Submit(task Task) *Handle {
	h := &Handle{
		ID:         uuid.NewString(),
		Desc:       task.Describe(),
		SubmitTime: time.Now(),
		task:       task,
	}

	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		m.logger.Warn().Str("task", h.Desc).Msg("rejecting submission: manager is draining")
		return nil
	}
	m.maybePurgeLocked()
	m.handles = append(m.handles, h)
	m.mu.Unlock()

	m.taskWG.Add(1)
	go m.runWork(h)

	return h
}

func (m *Manager) runWork(h *Handle) {
	m.workerSem <- struct{}{}
	defer func() { <-m.workerSem }()

	h.markStarted()
	result, err := h.task.Work(context.Background())

	select {
	case m.wrapupCh <- wrapupJob{handle: h, result: result, workErr: err}:
	case <-m.stopCh:
		m.taskWG.Done()
	}
}

// coordinate runs every Wrapup call serially, in submission order of
// completion.
func (m *Manager) coordinate() {
	defer m.coordWG.Done()
	for {
		select {
		case job := <-m.wrapupCh:
			m.runWrapup(job)
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) runWrapup(job wrapupJob) {
	h := job.handle
	err := job.workErr

	if wrapupErr := h.task.Wrapup(job.result, job.workErr); wrapupErr != nil {
		m.logger.Warn().Err(wrapupErr).Str("task", h.Desc).Msg("wrapup failed")
		if err == nil {
			err = wrapupErr
		}
	}

	h.markFinished(err)

	m.mu.Lock()
	m.maybePurgeLocked()
	m.mu.Unlock()

	m.taskWG.Done()
}

func (m *Manager) maybePurgeLocked() {
	now := time.Now()
	if now.Sub(m.lastPurge) < maxPurgeFrequency {
		return
	}
	m.lastPurge = now

	if len(m.handles) <= minTaskListLength {
		return
	}

	kept := m.handles[:0:0]
	for _, h := range m.handles {
		finish := h.FinishTime()
		if finish.IsZero() || now.Sub(finish) < taskLingerTime {
			kept = append(kept, h)
		}
	}
	m.handles = kept
}

// Handles returns a snapshot of every tracked task handle, pending,
// active, or recently finished.
func (m *Manager) Handles() []*Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Handle, len(m.handles))
	copy(out, m.handles)
	return out
}

// UnfinishedCount reports the number of active or pending tasks, used by
// the M&C reporter.
func (m *Manager) UnfinishedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, h := range m.handles {
		if !h.Finished() {
			n++
		}
	}
	return n
}

// Drain stops accepting new submissions, blocks until every already
// submitted task has finished Work and Wrapup, then stops the coordinator
// goroutine. Used during graceful shutdown. A later call waits for the
// first drain to finish and then returns.
func (m *Manager) Drain() {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		m.coordWG.Wait()
		return
	}
	m.draining = true
	m.mu.Unlock()

	m.taskWG.Wait()
	close(m.stopCh)
	m.coordWG.Wait()
}
