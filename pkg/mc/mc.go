// Package mc integrates with an optional external monitor-and-control
// system. The librarian only produces a periodic status tuple and hands
// it to a Sink; what happens to that tuple (a real M&C database, a log
// line, nothing at all) is entirely up to the Sink implementation the
// deployment wires in. Reporting is disabled unless a non-nil Sink is
// supplied to NewReporter.
package mc

import (
	"context"
	"time"

	"github.com/cuemby/librarian/pkg/log"
	"github.com/rs/zerolog"
)

// checkInInterval is how often every Reporter gathers and sends a Status.
const checkInInterval = 60 * time.Second

// Status is one periodic report: a snapshot of catalog size, free space
// across stores, and background-task load, plus version metadata.
type Status struct {
	Time             time.Time
	NumFiles         int
	DataVolumeBytes  int64
	FreeSpaceBytes   int64
	UploadMinElapsed float64
	NumProcesses     int
	Version          string
	GitHash          string
}

// Sink receives periodic Status reports. A real implementation talks to
// an on-site monitor-and-control database; tests and deployments that
// don't report anywhere can leave it unset.
type Sink interface {
	CheckIn(ctx context.Context, s Status) error
}

// Snapshot is gathered fresh on every tick by the reporter's owner (the
// top-level application struct), since only it can see across the
// catalog, store registry, and task manager without creating an import
// cycle between this package and any of them.
type Snapshot func() (numFiles int, dataVolumeBytes, freeSpaceBytes int64, numProcesses int)

// Reporter periodically calls Snapshot and hands the result to Sink.
type Reporter struct {
	sink     Sink
	snapshot Snapshot
	version  string
	gitHash  string
	interval time.Duration
	logger   zerolog.Logger

	lastUpload time.Time
	stopCh     chan struct{}
}

// NewReporter builds a Reporter. If sink is nil, Start is a no-op and
// reporting is entirely disabled.
func NewReporter(sink Sink, snapshot Snapshot, version, gitHash string) *Reporter {
	return &Reporter{
		sink:       sink,
		snapshot:   snapshot,
		version:    version,
		gitHash:    gitHash,
		interval:   checkInInterval,
		logger:     log.WithComponent("mc"),
		lastUpload: time.Now(),
	}
}

// NoteFileUploadSucceeded records that an upload just completed, so the
// next report's UploadMinElapsed reflects it instead of time since boot.
func (r *Reporter) NoteFileUploadSucceeded() {
	r.lastUpload = time.Now()
}

// Start begins the periodic check-in loop. It is a no-op if no Sink was
// configured.
func (r *Reporter) Start() {
	if r.sink == nil {
		r.logger.Debug().Msg("mc reporting disabled: no sink configured")
		return
	}
	r.stopCh = make(chan struct{})
	go r.run()
}

// Stop halts the check-in loop. Safe to call even if Start was a no-op.
func (r *Reporter) Stop() {
	if r.stopCh == nil {
		return
	}
	close(r.stopCh)
}

func (r *Reporter) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.checkIn()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Reporter) checkIn() {
	numFiles, dataVolume, freeSpace, numProcesses := r.snapshot()

	status := Status{
		Time:             time.Now(),
		NumFiles:         numFiles,
		DataVolumeBytes:  dataVolume,
		FreeSpaceBytes:   freeSpace,
		UploadMinElapsed: time.Since(r.lastUpload).Minutes(),
		NumProcesses:     numProcesses,
		Version:          r.version,
		GitHash:          r.gitHash,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.sink.CheckIn(ctx, status); err != nil {
		r.logger.Warn().Err(err).Msg("mc check-in failed")
	}
}

// LogSink is a trivial Sink that writes each Status to the librarian's own
// structured logger, useful for deployments that want the observability
// without standing up a real M&C database.
type LogSink struct{}

func (LogSink) CheckIn(_ context.Context, s Status) error {
	logger := log.WithComponent("mc")
	logger.Info().
		Int("num_files", s.NumFiles).
		Int64("data_volume_bytes", s.DataVolumeBytes).
		Int64("free_space_bytes", s.FreeSpaceBytes).
		Float64("upload_min_elapsed", s.UploadMinElapsed).
		Int("num_processes", s.NumProcesses).
		Str("version", s.Version).
		Msg("mc check-in")
	return nil
}
