package tasks

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTask struct {
	desc       string
	workResult any
	workErr    error
	wrapupErr  error
}

func (f *fakeTask) Describe() string { return f.desc }

func (f *fakeTask) Work(_ context.Context) (any, error) {
	return f.workResult, f.workErr
}

func (f *fakeTask) Wrapup(result any, workErr error) error {
	return f.wrapupErr
}

func TestManagerSubmitRunsWorkAndWrapup(t *testing.T) {
	m := NewManager(2)

	h := m.Submit(&fakeTask{desc: "t1", workResult: 42})
	m.Drain()

	assert.True(t, h.Finished())
	assert.Equal(t, "success", h.Outcome())
}

func TestManagerPropagatesWorkError(t *testing.T) {
	m := NewManager(1)

	wantErr := assert.AnError
	h := m.Submit(&fakeTask{desc: "t-err", workErr: wantErr})
	m.Drain()

	require.True(t, h.Finished())
	assert.ErrorIs(t, h.Err(), wantErr)
}

func TestManagerUnfinishedCount(t *testing.T) {
	m := NewManager(4)

	for i := 0; i < 3; i++ {
		m.Submit(&fakeTask{desc: "t"})
	}
	m.Drain()

	assert.Equal(t, 0, m.UnfinishedCount())
}

func TestManagerRejectsSubmissionsAfterDrain(t *testing.T) {
	m := NewManager(1)
	m.Submit(&fakeTask{desc: "before-drain"})
	m.Drain()

	h := m.Submit(&fakeTask{desc: "after-drain"})
	assert.Nil(t, h)
}

func TestHandleAccessorsSafeWhileTaskRuns(t *testing.T) {
	m := NewManager(1)

	release := make(chan struct{})
	h := m.Submit(&blockingTask{release: release})

	// Poll every lifecycle accessor while Work is still blocked, the way
	// the replication engine's dedup scan reads in-flight handles.
	for i := 0; i < 100; i++ {
		assert.NoError(t, h.Err())
		assert.False(t, h.Finished())
		_ = h.Runtime()
		_ = h.WaitTime()
		_ = h.TimeSinceCompleted()
	}

	close(release)
	m.Drain()

	assert.True(t, h.Finished())
	assert.Equal(t, "success", h.Outcome())
}

type blockingTask struct {
	release chan struct{}
}

func (b *blockingTask) Describe() string { return "blocking" }

func (b *blockingTask) Work(_ context.Context) (any, error) {
	<-b.release
	return nil, nil
}

func (b *blockingTask) Wrapup(result any, workErr error) error {
	return nil
}

func TestManagerWorkerPoolBoundsConcurrency(t *testing.T) {
	const workers = 2
	m := NewManager(workers)

	var active, maxActive int32
	var mu sync.Mutex
	bump := func(delta int32) {
		mu.Lock()
		active += delta
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
	}

	for i := 0; i < 6; i++ {
		m.Submit(&boundedTask{bump: bump})
	}
	m.Drain()

	assert.LessOrEqual(t, int(maxActive), workers)
}

type boundedTask struct {
	bump func(int32)
}

func (b *boundedTask) Describe() string { return "bounded" }

func (b *boundedTask) Work(_ context.Context) (any, error) {
	b.bump(1)
	defer b.bump(-1)
	return nil, nil
}

func (b *boundedTask) Wrapup(result any, workErr error) error {
	return nil
}
