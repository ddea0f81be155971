package tasks

import (
	"context"
	"sync"
	"time"
)

// Task is a unit of background work split into two phases: Work is run
// on a pool worker and may take a long time but must not touch the
// catalog; Wrapup is run on the single coordinator goroutine, may touch
// the catalog, and must be fast.
type Task interface {
	// Describe is a short human-readable label shown in task listings.
	Describe() string

	// Work performs the slow part of the task and returns a result value
	// handed to Wrapup. Work must be safe to run concurrently with other
	// tasks' Work calls.
	Work(ctx context.Context) (any, error)

	// Wrapup is called exactly once with Work's result (or the error it
	// returned). It runs serially with respect to every other task's
	// Wrapup, so it may safely mutate shared state such as the catalog.
	Wrapup(result any, workErr error) error
}

// Handle tracks one submitted Task's lifecycle. ID, Desc, and SubmitTime
// are fixed at submission; the start/finish/error fields are written by
// the manager's worker and coordinator goroutines while callers holding
// a Handles() snapshot may read them at any time, so they are guarded by
// a per-handle mutex and exposed only through accessors.
type Handle struct {
	ID         string
	Desc       string
	SubmitTime time.Time

	mu         sync.Mutex
	startTime  time.Time
	finishTime time.Time
	err        error

	task Task
}

// markStarted records that Work has begun. Called by the manager's worker
// goroutine only.
func (h *Handle) markStarted() {
	h.mu.Lock()
	h.startTime = time.Now()
	h.mu.Unlock()
}

// markFinished records Wrapup's completion and the task's final error.
// Called by the manager's coordinator goroutine only.
func (h *Handle) markFinished(err error) {
	h.mu.Lock()
	h.err = err
	h.finishTime = time.Now()
	h.mu.Unlock()
}

// StartTime reports when Work began, or the zero time if it hasn't.
func (h *Handle) StartTime() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.startTime
}

// FinishTime reports when Wrapup completed, or the zero time if it
// hasn't.
func (h *Handle) FinishTime() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finishTime
}

// Err reports the task's work or wrapup error, nil while the task is
// still in flight or if it succeeded.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Runtime reports how long the task has been or was running, or 0 before
// Work starts.
func (h *Handle) Runtime() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.startTime.IsZero() {
		return 0
	}
	if h.finishTime.IsZero() {
		return time.Since(h.startTime)
	}
	return h.finishTime.Sub(h.startTime)
}

// WaitTime reports how long the task sat queued before Work started, or
// how long it has been waiting so far if Work hasn't started yet.
func (h *Handle) WaitTime() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.startTime.IsZero() {
		return time.Since(h.SubmitTime)
	}
	return h.startTime.Sub(h.SubmitTime)
}

// TimeSinceCompleted reports how long ago Wrapup finished, or 0 if the
// task hasn't finished yet.
func (h *Handle) TimeSinceCompleted() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finishTime.IsZero() {
		return 0
	}
	return time.Since(h.finishTime)
}

// Finished reports whether Wrapup has run.
func (h *Handle) Finished() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.finishTime.IsZero()
}

// Task returns the Task this handle was created for, so callers that
// track their own task subtypes (e.g. the replication engine's
// UploadTask) can type-assert it back out of a Handles() snapshot.
func (h *Handle) Task() Task {
	return h.task
}

// Outcome is "success" or the work/wrapup error's message.
func (h *Handle) Outcome() string {
	if err := h.Err(); err != nil {
		return err.Error()
	}
	return "success"
}
