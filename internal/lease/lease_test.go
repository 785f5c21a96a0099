package lease

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	id       string
	done     chan struct{}
	released bool
	mu       sync.Mutex
}

func (h *fakeHandle) ID() string            { return h.id }
func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released = true
}

func (h *fakeHandle) wasReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// revoke simulates the OS invalidating the grant out-of-band.
func (h *fakeHandle) revoke() { close(h.done) }

type fakeGrantor struct {
	mu       sync.Mutex
	requests int
	handles  []*fakeHandle
	err      error
	block    chan struct{} // if set, Acquire waits on it
}

func (g *fakeGrantor) Acquire(ctx context.Context) (Handle, error) {
	g.mu.Lock()
	g.requests++
	block := g.block
	err := g.err
	g.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	h := &fakeHandle{id: "grant", done: make(chan struct{})}
	g.mu.Lock()
	g.handles = append(g.handles, h)
	g.mu.Unlock()
	return h, nil
}

func (g *fakeGrantor) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests
}

func newTestManager(g Grantor) *Manager {
	return NewManager(g, time.Millisecond, time.Millisecond)
}

func TestAcquireReleaseLifecycle(t *testing.T) {
	grantor := &fakeGrantor{}
	m := newTestManager(grantor)

	m.Acquire(context.Background())
	require.Equal(t, 1, m.RetainCount())
	require.True(t, m.Active())
	require.Equal(t, 1, grantor.requestCount())

	// Second holder: counted, no second OS request.
	m.Acquire(context.Background())
	assert.Equal(t, 2, m.RetainCount())
	assert.Equal(t, 1, grantor.requestCount())

	m.Release()
	assert.Equal(t, 1, m.RetainCount())
	assert.True(t, m.Active(), "handle must survive until the last holder releases")
	assert.False(t, grantor.handles[0].wasReleased())

	m.Release()
	assert.Equal(t, 0, m.RetainCount())
	assert.False(t, m.Active())
	assert.True(t, grantor.handles[0].wasReleased())

	// Release at zero is a no-op.
	m.Release()
	assert.Equal(t, 0, m.RetainCount())
}

func TestConcurrentAcquireSingleGrantRequest(t *testing.T) {
	grantor := &fakeGrantor{block: make(chan struct{})}
	m := newTestManager(grantor)

	first := make(chan struct{})
	go func() {
		m.Acquire(context.Background())
		close(first)
	}()

	// Wait for the first acquire to be in flight.
	require.Eventually(t, func() bool { return grantor.requestCount() == 1 }, time.Second, time.Millisecond)

	// Second acquire while in flight: counted immediately, no OS call.
	m.Acquire(context.Background())

	close(grantor.block)
	<-first

	assert.Equal(t, 2, m.RetainCount())
	assert.Equal(t, 1, grantor.requestCount())
	assert.True(t, m.Active())
}

func TestOSRevocationDoesNotReacquire(t *testing.T) {
	grantor := &fakeGrantor{}
	m := newTestManager(grantor)

	m.Acquire(context.Background())
	require.True(t, m.Active())

	grantor.handles[0].revoke()
	require.Eventually(t, func() bool { return !m.Active() }, time.Second, time.Millisecond)

	// No reacquisition without an explicit new Acquire.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, grantor.requestCount())
	// The logical holder still counts; the grant is just gone.
	assert.Equal(t, 1, m.RetainCount())
}

func TestStaleHandleSettledBeforeNewRequest(t *testing.T) {
	grantor := &fakeGrantor{}
	m := newTestManager(grantor)

	m.Acquire(context.Background())
	stale := grantor.handles[0]
	stale.revoke()
	require.Eventually(t, func() bool { return !m.Active() }, time.Second, time.Millisecond)
	m.Release()

	// Next acquire must explicitly invalidate the stale handle before
	// requesting a fresh grant.
	m.Acquire(context.Background())
	assert.True(t, stale.wasReleased())
	assert.Equal(t, 2, grantor.requestCount())
	assert.True(t, m.Active())
}

func TestAcquireFailureLeavesConsistentState(t *testing.T) {
	grantor := &fakeGrantor{err: errors.New("bus unavailable")}
	m := newTestManager(grantor)

	m.Acquire(context.Background())
	assert.Equal(t, 0, m.RetainCount())
	assert.False(t, m.Active())

	// A later acquire can retry from scratch.
	grantor.mu.Lock()
	grantor.err = nil
	grantor.mu.Unlock()
	m.Acquire(context.Background())
	assert.Equal(t, 1, m.RetainCount())
	assert.True(t, m.Active())
}

func TestAcquireHonorsContextDuringSettle(t *testing.T) {
	grantor := &fakeGrantor{}
	m := NewManager(grantor, time.Hour, time.Millisecond)

	m.Acquire(context.Background())
	grantor.handles[0].revoke()
	require.Eventually(t, func() bool { return !m.Active() }, time.Second, time.Millisecond)
	m.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	m.Acquire(ctx) // gives up during the hour-long settle wait
	assert.Equal(t, 1, grantor.requestCount())
	assert.False(t, m.Active())
}

func TestNoopGrantor(t *testing.T) {
	m := newTestManager(NoopGrantor{})
	m.Acquire(context.Background())
	assert.True(t, m.Active())
	m.Release()
	assert.False(t, m.Active())
}
