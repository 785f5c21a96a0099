// Package lease mediates access to the one truly exclusive OS resource the
// timer uses: a background-execution grant that keeps the machine from
// sleeping while a phase runs. The grant is single-instance at the OS
// level, so acquisition is retain-counted and serialized here; nothing
// else in the daemon may talk to the grantor directly.
package lease

import (
	"context"
	"log"
	"sync"
	"time"
)

// Handle is a live OS grant.
type Handle interface {
	// ID identifies the grant for logging.
	ID() string
	// Done is closed if the OS revokes the grant out-of-band.
	Done() <-chan struct{}
	// Release gives the grant back. Must be idempotent.
	Release()
}

// Grantor obtains grants from the OS. Injected so tests can substitute a
// fake and so the daemon can run grantless where no session bus exists.
type Grantor interface {
	Acquire(ctx context.Context) (Handle, error)
}

// Manager retain-counts logical holders of the grant. The OS handle is
// requested when the count leaves zero and released when it returns to
// zero. Acquire and Release are safe for concurrent use.
type Manager struct {
	grantor Grantor
	// settle is how long to wait after invalidating a stale handle before
	// requesting a new grant, so the OS finishes tearing the old one down.
	// confirm is how long to wait after a new grant before returning, so an
	// immediately re-entering caller sees the session as live. Both are
	// empirically tuned workarounds for OS exclusivity timing, not derived
	// from any documented contract.
	settle  time.Duration
	confirm time.Duration

	mu        sync.Mutex
	retain    int
	handle    Handle
	stale     Handle
	acquiring bool
}

// NewManager wraps grantor with retain-count semantics.
func NewManager(grantor Grantor, settle, confirm time.Duration) *Manager {
	return &Manager{grantor: grantor, settle: settle, confirm: confirm}
}

// Acquire registers one more logical holder and, if no grant is live,
// requests one. Concurrent callers while a request is in flight are
// counted but issue no second OS request: OS sessions are single-instance
// and a duplicate request would be rejected. Failures are logged, never
// returned; state is left consistent with what was actually granted.
func (m *Manager) Acquire(ctx context.Context) {
	m.mu.Lock()
	if m.acquiring {
		m.retain++
		m.mu.Unlock()
		return
	}
	if m.retain > 0 && m.handle != nil {
		m.retain++
		m.mu.Unlock()
		return
	}
	m.acquiring = true
	stale := m.stale
	m.stale = nil
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.acquiring = false
		m.mu.Unlock()
	}()

	if stale != nil {
		// The previous grant may still be tearing down; requesting a new
		// one too early gets rejected by the OS.
		stale.Release()
		if !sleepCtx(ctx, m.settle) {
			return
		}
	}

	// Race guard: a grant may have appeared while we were settling.
	m.mu.Lock()
	if m.handle != nil {
		m.retain++
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	handle, err := m.grantor.Acquire(ctx)
	if err != nil {
		log.Printf("lease: acquire failed: %v", err)
		return
	}

	m.mu.Lock()
	// The caller may have lost interest while the OS request was in
	// flight; keeping the grant would leak it, since the matching Release
	// already ran as a no-op.
	if ctx.Err() != nil {
		m.mu.Unlock()
		handle.Release()
		return
	}
	m.handle = handle
	m.retain++
	m.mu.Unlock()

	go m.watch(handle)

	// Let the OS confirm the session is live before returning, so a caller
	// that immediately re-enters Acquire does not misdetect "no active
	// session" and fire a conflicting second request.
	sleepCtx(ctx, m.confirm)
}

// Release drops one logical holder. When the count reaches zero the OS
// handle is released synchronously. Releasing at zero is a no-op.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.retain == 0 {
		return
	}
	m.retain--
	if m.retain == 0 && m.handle != nil {
		m.handle.Release()
		m.handle = nil
	}
}

// watch observes out-of-band revocation. The dead handle is parked as
// stale for the next Acquire to settle against. Deliberately no
// reacquisition here: that decision belongs to an explicit run-state
// change, otherwise a suppressed grant turns into a reacquire loop.
func (m *Manager) watch(handle Handle) {
	<-handle.Done()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle != handle {
		return
	}
	log.Printf("lease: grant %s revoked by OS", handle.ID())
	m.handle = nil
	m.stale = handle
}

// RetainCount returns the number of logical holders.
func (m *Manager) RetainCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retain
}

// Active reports whether an OS grant is currently believed live.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
