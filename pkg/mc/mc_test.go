package mc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	statuses []Status
	done     chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{}, 1)}
}

func (s *recordingSink) CheckIn(_ context.Context, status Status) error {
	s.mu.Lock()
	s.statuses = append(s.statuses, status)
	s.mu.Unlock()
	select {
	case s.done <- struct{}{}:
	default:
	}
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.statuses)
}

func TestReporterNoSinkIsNoop(t *testing.T) {
	r := NewReporter(nil, func() (int, int64, int64, int) { return 0, 0, 0, 0 }, "v1", "abc")
	r.Start()
	r.Stop()
}

func TestReporterChecksIn(t *testing.T) {
	sink := newRecordingSink()
	r := NewReporter(sink, func() (int, int64, int64, int) { return 3, 1024, 2048, 1 }, "v1", "abc")
	r.interval = 10 * time.Millisecond
	r.Start()
	defer r.Stop()

	select {
	case <-sink.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for check-in")
	}

	require.GreaterOrEqual(t, sink.count(), 1)
	s := sink.statuses[0]
	assert.Equal(t, 3, s.NumFiles)
	assert.Equal(t, int64(1024), s.DataVolumeBytes)
	assert.Equal(t, int64(2048), s.FreeSpaceBytes)
	assert.Equal(t, "v1", s.Version)
}

func TestReporterNoteFileUploadSucceededResetsElapsed(t *testing.T) {
	sink := newRecordingSink()
	r := NewReporter(sink, func() (int, int64, int64, int) { return 0, 0, 0, 0 }, "v1", "abc")
	r.lastUpload = time.Now().Add(-time.Hour)
	r.NoteFileUploadSucceeded()
	assert.Less(t, time.Since(r.lastUpload), time.Second)
}

func TestLogSinkCheckIn(t *testing.T) {
	var sink LogSink
	require.NoError(t, sink.CheckIn(context.Background(), Status{NumFiles: 1}))
}
