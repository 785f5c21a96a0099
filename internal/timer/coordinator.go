// Package timer is the coordinator that owns the timer core: the phase
// sequence machine, the run-loop scheduler, the background lease, the
// snapshot publisher and persistence. All mutable state is confined to a
// single actor goroutine; ticks and externally triggered actions are
// funneled through the same serialized queue so no two mutations ever
// overlap.
package timer

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"pomodoro/daemon/internal/apperr"
	"pomodoro/daemon/internal/lease"
	"pomodoro/daemon/internal/model"
	"pomodoro/daemon/internal/notify"
	"pomodoro/daemon/internal/repository"
	"pomodoro/daemon/internal/schedule"
	"pomodoro/daemon/internal/sequence"
	"pomodoro/daemon/internal/snapshot"
	"pomodoro/daemon/internal/timeline"
)

// StateView is the wall-clock-correct view of the core returned to API
// callers. Remaining time is recomputed at read time, never cached.
type StateView struct {
	DisplayMode              string        `json:"displayMode"`
	CurrentPhaseIndex        int           `json:"currentPhaseIndex"`
	CurrentPhaseName         string        `json:"currentPhaseName"`
	TimerRunning             bool          `json:"timerRunning"`
	RemainingSeconds         int           `json:"remainingSeconds"`
	FlowElapsedSeconds       int           `json:"flowElapsedSeconds"`
	IsInFlowCountUp          bool          `json:"isInFlowCountUp"`
	IsCurrentPhaseWorkPhase  bool          `json:"isCurrentPhaseWorkPhase"`
	CompletedCycles          int           `json:"completedCycles"`
	PhaseCompletionStatus    []string      `json:"phaseCompletionStatus"`
	HasSkippedInCurrentCycle bool          `json:"hasSkippedInCurrentCycle"`
	Phases                   []model.Phase `json:"phases"`
	Version                  int           `json:"version"`
	ServerTime               time.Time     `json:"serverTime"`
}

// Coordinator wires the core together. Sub-components are owned outright
// and communicate back through return values and callbacks only.
type Coordinator struct {
	now func() time.Time

	seq      *sequence.Machine
	loop     *schedule.Loop
	lease    *lease.Manager
	pub      *snapshot.Publisher
	alerts   notify.Alerter
	states   *repository.StateRepository
	sessions *repository.SessionRepository

	actions chan func()
	stop    chan struct{}
	done    chan struct{}

	// Actor-confined state below; only touched from the actor goroutine.
	run            *model.TimerRun
	eval           *timeline.Evaluator
	remaining      int // last known remaining seconds while not running
	cadence        schedule.CadencePolicy
	version        int
	leaseHeld      bool
	leaseCancel    context.CancelFunc
	sessionID      string
	sessionPlanned int
}

// Options carries the injected collaborators.
type Options struct {
	Phases   []model.Phase
	Lease    *lease.Manager
	Pub      *snapshot.Publisher
	Alerts   notify.Alerter
	States   *repository.StateRepository
	Sessions *repository.SessionRepository
	// Now overrides the clock in tests.
	Now func() time.Time
}

// New builds the coordinator and restores persisted sequence state. A
// missing or corrupt persisted state starts a fresh cycle; it is never
// fatal.
func New(opts Options) *Coordinator {
	clock := opts.Now
	if clock == nil {
		clock = time.Now
	}

	c := &Coordinator{
		now:      clock,
		seq:      sequence.New(opts.Phases),
		lease:    opts.Lease,
		pub:      opts.Pub,
		alerts:   opts.Alerts,
		states:   opts.States,
		sessions: opts.Sessions,
		actions:  make(chan func(), 16),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		cadence:  schedule.CadenceNormal,
	}
	c.loop = schedule.NewLoop(c.postTick, c.postSync)
	c.restore()
	c.remaining = c.seq.CurrentPhase().DurationSeconds
	return c
}

func (c *Coordinator) restore() {
	if c.states == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	persisted, err := c.states.Load(ctx)
	if err == repository.ErrNotFound {
		return
	}
	if err != nil {
		log.Printf("timer: cannot load persisted state: %v, starting fresh", err)
		return
	}
	if err := c.seq.Restore(
		persisted.CurrentIndex,
		persisted.Statuses,
		persisted.CompletedCycles,
		persisted.HasSkippedInCurrentCycle,
	); err != nil {
		log.Printf("timer: persisted state rejected: %v, starting fresh", err)
	}
}

// Done is closed once Run has finished its shutdown sequence. Callers
// that stop the daemon wait on this so the final pause and publish are
// not cut off by process exit.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Run processes actions until ctx is cancelled, then pauses any active
// run so remaining time survives the restart.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.done)

	c.publish()
	for {
		select {
		case fn := <-c.actions:
			fn()
		case <-ctx.Done():
			c.shutdown()
			return
		}
	}
}

func (c *Coordinator) shutdown() {
	close(c.stop)
	// Drain without blocking: anything queued behind shutdown is stale.
	for {
		select {
		case fn := <-c.actions:
			fn()
		default:
			if c.run != nil {
				c.pauseLocked()
			}
			c.loop.Stop()
			if c.alerts != nil {
				c.alerts.CancelAll()
			}
			return
		}
	}
}

// do runs fn on the actor goroutine and waits for its result.
func (c *Coordinator) do(fn func() (*StateView, *apperr.Error)) (*StateView, *apperr.Error) {
	type result struct {
		view *StateView
		err  *apperr.Error
	}
	ch := make(chan result, 1)
	action := func() {
		view, err := fn()
		ch <- result{view, err}
	}

	select {
	case c.actions <- action:
	case <-c.stop:
		return nil, apperr.Internal("timer core is shutting down")
	}
	select {
	case r := <-ch:
		return r.view, r.err
	case <-c.done:
		return nil, apperr.Internal("timer core is shutting down")
	}
}

// postTick and postSync feed scheduler callbacks into the actor queue.
// Sends are non-blocking: a tick that cannot be queued is simply dropped,
// the next evaluation recomputes from the reference instant anyway.
func (c *Coordinator) postTick() {
	select {
	case c.actions <- c.handleTick:
	default:
	}
}

func (c *Coordinator) postSync() {
	select {
	case c.actions <- c.handleSync:
	default:
	}
}

// --- external triggers ---

func (c *Coordinator) State() (*StateView, *apperr.Error) {
	return c.do(func() (*StateView, *apperr.Error) {
		return c.viewLocked(), nil
	})
}

func (c *Coordinator) Start() (*StateView, *apperr.Error) {
	return c.do(func() (*StateView, *apperr.Error) {
		c.startLocked()
		return c.viewLocked(), nil
	})
}

func (c *Coordinator) Pause() (*StateView, *apperr.Error) {
	return c.do(func() (*StateView, *apperr.Error) {
		c.pauseLocked()
		return c.viewLocked(), nil
	})
}

func (c *Coordinator) Toggle() (*StateView, *apperr.Error) {
	return c.do(func() (*StateView, *apperr.Error) {
		if c.run != nil {
			c.pauseLocked()
		} else {
			c.startLocked()
		}
		return c.viewLocked(), nil
	})
}

// Skip abandons the current phase and advances with the skip recorded,
// voiding cycle credit. Works running or paused.
func (c *Coordinator) Skip() (*StateView, *apperr.Error) {
	return c.do(func() (*StateView, *apperr.Error) {
		c.completePhaseLocked(true)
		return c.viewLocked(), nil
	})
}

// ResetPhase abandons any active run and restores the current phase to its
// full duration. Statuses and cycle bookkeeping are untouched.
func (c *Coordinator) ResetPhase() (*StateView, *apperr.Error) {
	return c.do(func() (*StateView, *apperr.Error) {
		c.cancelRunLocked()
		c.remaining = c.seq.CurrentPhase().DurationSeconds
		c.publish()
		return c.viewLocked(), nil
	})
}

// ResetCycle abandons any active run and restarts the cycle at phase zero.
// The historical completed-cycle count survives.
func (c *Coordinator) ResetCycle() (*StateView, *apperr.Error) {
	return c.do(func() (*StateView, *apperr.Error) {
		c.cancelRunLocked()
		c.seq.Reset()
		c.persist()
		c.remaining = c.seq.CurrentPhase().DurationSeconds
		c.publish()
		return c.viewLocked(), nil
	})
}

// StartPhase jumps directly to the phase at index and starts it. Used by
// deep links.
func (c *Coordinator) StartPhase(index int) (*StateView, *apperr.Error) {
	return c.do(func() (*StateView, *apperr.Error) {
		c.cancelRunLocked()
		if err := c.seq.Jump(index); err != nil {
			return nil, apperr.BadRequest("invalid_phase_index", err.Error())
		}
		c.persist()
		c.remaining = c.seq.CurrentPhase().DurationSeconds
		c.startLocked()
		return c.viewLocked(), nil
	})
}

// HandleResumeSignal resumes a paused run. Idempotent: a second signal
// while already running is a no-op, not a double-advance.
func (c *Coordinator) HandleResumeSignal() (*StateView, *apperr.Error) {
	return c.do(func() (*StateView, *apperr.Error) {
		if c.run == nil {
			c.startLocked()
		}
		return c.viewLocked(), nil
	})
}

// StartFlow switches the current work phase into open-ended count-up mode.
func (c *Coordinator) StartFlow() (*StateView, *apperr.Error) {
	return c.do(func() (*StateView, *apperr.Error) {
		if !c.seq.IsWorkPhase() {
			return nil, apperr.BadRequest("flow_requires_work_phase", "flow mode is only available during a work phase")
		}
		if c.run != nil && c.run.Mode == model.RunCountUp {
			return c.viewLocked(), nil
		}
		c.cancelRunLocked()

		now := c.now()
		c.run = &model.TimerRun{Mode: model.RunCountUp, ReferenceInstant: now, Running: true}
		c.eval = timeline.NewEvaluator()
		c.openSession(c.seq.CurrentPhase().DurationSeconds, now)
		c.engageLease()
		// No advisory alert: a flow session has no scheduled end.
		c.loop.Start(c.cadence)
		c.publish()
		return c.viewLocked(), nil
	})
}

// StopFlow ends the flow session: the boundary of a count-up run is always
// externally triggered. The elapsed time is recorded on the phase and the
// cycle advances as a normal completion.
func (c *Coordinator) StopFlow() (*StateView, *apperr.Error) {
	return c.do(func() (*StateView, *apperr.Error) {
		if c.run == nil || c.run.Mode != model.RunCountUp {
			return nil, apperr.BadRequest("not_in_flow", "no flow session is active")
		}
		now := c.now()
		elapsed := timeline.Seconds(c.run, now)

		c.loop.Stop()
		c.run = nil
		c.eval = nil
		c.finishSession(elapsed, model.OutcomeFlow, now)
		c.seq.SetAdjustedDuration(elapsed)
		c.seq.Advance(false)
		c.releaseLease()
		c.persist()
		c.remaining = c.seq.CurrentPhase().DurationSeconds
		c.publish()
		return c.viewLocked(), nil
	})
}

// SetCadence adapts tick alignment to the display's power state. A live
// run is re-armed in place; the run reference never resets.
func (c *Coordinator) SetCadence(policy schedule.CadencePolicy) (*StateView, *apperr.Error) {
	return c.do(func() (*StateView, *apperr.Error) {
		c.cadence = policy
		c.loop.Reschedule(policy)
		return c.viewLocked(), nil
	})
}

// History lists recent phase sessions. Read-only, no actor round-trip.
func (c *Coordinator) History(ctx context.Context, limit int) ([]model.PhaseSession, *apperr.Error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sessions, err := c.sessions.List(ctx, limit)
	if err != nil {
		log.Printf("timer: list history: %v", err)
		return nil, apperr.Internal("failed to load history")
	}
	return sessions, nil
}

// --- actor-confined internals ---

func (c *Coordinator) startLocked() {
	if c.run != nil {
		return
	}

	budget := c.remaining
	if budget <= 0 {
		budget = c.seq.CurrentPhase().DurationSeconds
	}

	now := c.now()
	c.run = &model.TimerRun{
		Mode:             model.RunCountdown,
		ReferenceInstant: now,
		TotalSeconds:     budget,
		Running:          true,
	}
	c.eval = timeline.NewEvaluator()
	if c.sessionID == "" {
		c.openSession(budget, now)
	}
	c.engageLease()
	c.scheduleBoundaryAlert(budget)
	c.loop.Start(c.cadence)
	c.publish()
}

func (c *Coordinator) pauseLocked() {
	if c.run == nil {
		return
	}
	now := c.now()
	seconds := timeline.Seconds(c.run, now)

	c.loop.Stop()
	if c.run.Mode == model.RunCountUp {
		// Pausing a flow session ends it; there is nothing to resume into.
		c.finishSession(seconds, model.OutcomeFlow, now)
		c.seq.SetAdjustedDuration(seconds)
		c.remaining = c.seq.CurrentPhase().DurationSeconds
	} else {
		c.remaining = seconds
	}
	c.run = nil
	c.eval = nil
	c.releaseLease()
	if c.alerts != nil {
		c.alerts.CancelAll()
	}
	c.publish()
}

// handleTick re-evaluates the timeline. On a boundary crossing the
// ordering is load-bearing: stop ticking, transition, release the lease,
// persist, then publish. A snapshot published earlier would mix the old
// phase index with the new status array.
func (c *Coordinator) handleTick() {
	if c.run == nil {
		return
	}
	reading := c.eval.Evaluate(c.run, c.now())
	if reading.CrossedBoundary {
		c.completePhaseLocked(false)
	}
}

// handleSync is the slow periodic publish that keeps external surfaces
// from drifting more than a minute even when nothing else changes.
func (c *Coordinator) handleSync() {
	if c.run == nil {
		return
	}
	c.publish()
}

// completePhaseLocked finishes the current phase, either naturally
// (countdown expired) or as an explicit skip.
func (c *Coordinator) completePhaseLocked(skipped bool) {
	now := c.now()

	var actual int
	if c.run != nil {
		seconds := timeline.Seconds(c.run, now)
		switch c.run.Mode {
		case model.RunCountUp:
			actual = seconds
		default:
			// Count from the session's original budget so time elapsed
			// before a pause/resume is included.
			planned := c.sessionPlanned
			if planned == 0 {
				planned = c.run.TotalSeconds
			}
			actual = planned - seconds
		}
		c.loop.Stop()
	} else {
		actual = c.sessionPlanned - c.remaining
	}
	wasRunning := c.run != nil
	wasFlow := wasRunning && c.run.Mode == model.RunCountUp
	c.run = nil
	c.eval = nil

	outcome := model.OutcomeCompleted
	if skipped {
		outcome = model.OutcomeSkipped
		if c.alerts != nil {
			c.alerts.CancelAll()
		}
	}
	if wasFlow {
		c.seq.SetAdjustedDuration(actual)
	}
	c.finishSession(actual, outcome, now)

	c.seq.Advance(skipped)
	if wasRunning {
		c.releaseLease()
	}
	c.persist()
	c.remaining = c.seq.CurrentPhase().DurationSeconds
	c.publish()
}

// cancelRunLocked discards any active run without advancing the cycle.
func (c *Coordinator) cancelRunLocked() {
	if c.run == nil {
		if c.sessionID != "" {
			// Paused mid-phase: the open session is abandoned.
			c.finishSession(c.sessionPlanned-c.remaining, model.OutcomeCancelled, c.now())
		}
		return
	}
	now := c.now()
	seconds := timeline.Seconds(c.run, now)

	c.loop.Stop()
	actual := seconds
	if c.run.Mode == model.RunCountdown {
		actual = c.run.TotalSeconds - seconds
	}
	c.run = nil
	c.eval = nil
	c.finishSession(actual, model.OutcomeCancelled, now)
	c.releaseLease()
	if c.alerts != nil {
		c.alerts.CancelAll()
	}
}

func (c *Coordinator) engageLease() {
	if c.lease == nil || c.leaseHeld {
		return
	}
	c.leaseHeld = true
	ctx, cancel := context.WithCancel(context.Background())
	c.leaseCancel = cancel
	// Acquire suspends for the settle/confirm waits; never on the actor.
	go c.lease.Acquire(ctx)
}

func (c *Coordinator) releaseLease() {
	if c.lease == nil || !c.leaseHeld {
		return
	}
	c.leaseHeld = false
	// Cancel first so an acquire still in flight aborts instead of landing
	// after the release below has already run.
	if c.leaseCancel != nil {
		c.leaseCancel()
		c.leaseCancel = nil
	}
	c.lease.Release()
}

func (c *Coordinator) scheduleBoundaryAlert(remaining int) {
	if c.alerts == nil {
		return
	}
	c.alerts.CancelAll()

	next := c.peekNextPhase()
	c.alerts.ScheduleAfter(time.Duration(remaining)*time.Second, notify.Alert{
		Title:            phaseLabel(c.seq.CurrentPhase().Name) + " finished",
		NextPhaseName:    phaseLabel(next.Name),
		NextPhaseSeconds: next.DurationSeconds,
	})
}

func (c *Coordinator) peekNextPhase() model.Phase {
	st := c.seq.State()
	return st.Phases[(st.CurrentIndex+1)%len(st.Phases)]
}

func (c *Coordinator) openSession(planned int, now time.Time) {
	c.sessionID = uuid.NewString()
	c.sessionPlanned = planned
	if c.sessions == nil {
		return
	}
	session := model.PhaseSession{
		ID:             c.sessionID,
		PhaseName:      c.seq.CurrentPhase().Name,
		PlannedSeconds: planned,
		StartedAt:      now,
		Outcome:        model.OutcomeRunning,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.sessions.Insert(ctx, &session); err != nil {
		log.Printf("timer: record session: %v", err)
	}
}

func (c *Coordinator) finishSession(actual int, outcome string, now time.Time) {
	if c.sessionID == "" {
		return
	}
	id := c.sessionID
	c.sessionID = ""
	c.sessionPlanned = 0
	if c.sessions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stamp := now.UTC().Format(time.RFC3339Nano)
	if err := c.sessions.Finish(ctx, id, actual, outcome, stamp, stamp); err != nil {
		log.Printf("timer: finish session: %v", err)
	}
}

// persist writes the sequence state wholesale. Failures are logged; the
// in-memory machine stays authoritative and the next write self-heals.
func (c *Coordinator) persist() {
	if c.states == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.states.Save(ctx, c.seq.State()); err != nil {
		log.Printf("timer: persist state: %v", err)
	}
}

func (c *Coordinator) publish() {
	if c.pub == nil {
		return
	}
	c.version++
	now := c.now()
	c.pub.Publish(snapshot.Build(snapshot.Input{
		Seq:     c.seq.State(),
		Run:     c.run,
		Seconds: c.currentSeconds(now),
		Now:     now,
		Version: c.version,
	}))
}

// currentSeconds is remaining time for countdown/paused states and elapsed
// time during flow.
func (c *Coordinator) currentSeconds(now time.Time) int {
	if c.run == nil {
		return c.remaining
	}
	return timeline.Seconds(c.run, now)
}

func (c *Coordinator) viewLocked() *StateView {
	now := c.now()
	st := c.seq.State()
	seconds := c.currentSeconds(now)
	inFlow := c.run != nil && c.run.Mode == model.RunCountUp

	view := &StateView{
		CurrentPhaseIndex:        st.CurrentIndex,
		CurrentPhaseName:         st.Phases[st.CurrentIndex].Name,
		TimerRunning:             c.run != nil,
		IsCurrentPhaseWorkPhase:  c.seq.IsWorkPhase(),
		CompletedCycles:          st.CompletedCycles,
		PhaseCompletionStatus:    st.Statuses,
		HasSkippedInCurrentCycle: st.HasSkippedInCurrentCycle,
		Phases:                   st.Phases,
		Version:                  c.version,
		ServerTime:               now,
	}

	switch {
	case inFlow:
		view.DisplayMode = model.DisplayFlow
		view.IsInFlowCountUp = true
		view.FlowElapsedSeconds = seconds
	case c.run != nil:
		view.DisplayMode = model.DisplayCountdown
		view.RemainingSeconds = seconds
	case seconds > 0:
		view.DisplayMode = model.DisplayPaused
		view.RemainingSeconds = seconds
	default:
		view.DisplayMode = model.DisplayIdle
	}

	return view
}

func phaseLabel(name string) string {
	switch name {
	case model.PhaseWork:
		return "Work"
	case model.PhaseShortBreak:
		return "Short break"
	case model.PhaseLongBreak:
		return "Long break"
	default:
		return name
	}
}
