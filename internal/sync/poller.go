package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/shuttledesk/internal/logging"
	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/source"
	"github.com/nhle/shuttledesk/internal/store"
)

var (
	// ErrPollInFlight is returned when a cycle is requested while another
	// one is still running. The request is dropped, not queued.
	ErrPollInFlight = errors.New("poll already in flight")

	// ErrNoSession is returned when no identity is being polled.
	ErrNoSession = errors.New("no active polling session")

	// ErrSessionEnded is returned when a cycle finished after its session
	// was stopped. Its results were discarded.
	ErrSessionEnded = errors.New("polling session ended")
)

// Trigger says what started a cycle.
type Trigger string

const (
	TriggerInitial Trigger = "initial"
	TriggerTick    Trigger = "tick"
	TriggerManual  Trigger = "manual"
)

// PollResultMsg is a tea.Msg sent when a poll cycle completes.
type PollResultMsg struct {
	Identity model.Identity
	Trigger  Trigger

	// Snapshot is the visible set of this cycle. It is nil when the
	// fetch failed.
	Snapshot model.Snapshot

	// Events are the change events recorded by this cycle.
	Events []model.ChangeEvent

	Error       error
	AuthExpired bool
	At          time.Time
}

// RefreshSkippedMsg is a tea.Msg sent when a manual refresh could not run.
type RefreshSkippedMsg struct {
	Reason error
}

// Recorder is the notification store as seen by the poller. Record
// prepends events to the feed and persists the feed together with extra
// entries in one commit, returning the events as stored. Dispatch raises
// one alert per event.
type Recorder interface {
	Record(ctx context.Context, events []model.ChangeEvent, extra ...store.Entry) []model.ChangeEvent
	Dispatch(ctx context.Context, events []model.ChangeEvent)
}

// defaultFetchTimeout bounds a single fetch when the source has no
// timeout of its own.
const defaultFetchTimeout = 30 * time.Second

// Options configures a Poller.
type Options struct {
	Interval     time.Duration
	PageLimit    int
	FetchTimeout time.Duration

	// Kinds restricts the event kinds recorded per role. Roles without an
	// entry record every kind.
	Kinds map[model.Role]KindFilter

	Logger  *slog.Logger
	Metrics *PollMetrics

	// Now is the clock used for event timestamps.
	Now func() time.Time
}

// session is the cancellation token of one identity's polling run.
type session struct {
	identity model.Identity
	gen      uint64
	ctx      context.Context
	cancel   context.CancelFunc

	// baseline is guarded by Poller.mu.
	baseline model.Snapshot

	// inFlight admits one cycle at a time.
	inFlight atomic.Bool
}

// Poller polls the appointment list for one identity at a time, diffs
// consecutive snapshots and hands the changes to the notification store.
type Poller struct {
	src      source.AppointmentSource
	store    store.FeedStore
	recorder Recorder
	opts     Options
	logger   *slog.Logger

	resultCh chan PollResultMsg

	mu         gosync.Mutex
	session    *session
	generation uint64
	lastPoll   time.Time
}

// New creates a Poller. Zero options fall back to a 30 s interval and the
// source's default page size.
func New(src source.AppointmentSource, s store.FeedStore, rec Recorder, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Poller{
		src:      src,
		store:    s,
		recorder: rec,
		opts:     opts,
		logger:   logging.OrDiscard(opts.Logger),
		resultCh: make(chan PollResultMsg, 16),
	}
}

// Start begins polling for id: one cycle immediately, then one per
// interval. A running session for a different identity is stopped first;
// starting the identity already being polled is a no-op.
func (p *Poller) Start(ctx context.Context, id model.Identity) error {
	if err := id.Validate(); err != nil {
		return fmt.Errorf("starting poller: %w", err)
	}

	baseline, err := p.store.LoadSnapshot(ctx, id)
	if err != nil {
		p.logger.Warn("loading baseline failed, starting empty", "identity", id.ID, "err", err)
		baseline = model.Snapshot{}
	}

	p.mu.Lock()
	if p.session != nil {
		if p.session.identity.ID == id.ID && p.session.identity.Role == id.Role {
			p.mu.Unlock()
			return nil
		}
		p.endLocked()
	}

	p.generation++
	sctx, cancel := context.WithCancel(ctx)
	sess := &session{
		identity: id,
		gen:      p.generation,
		ctx:      sctx,
		cancel:   cancel,
		baseline: baseline,
	}
	p.session = sess
	p.mu.Unlock()

	p.logger.Info("polling started",
		"identity", id.ID, "role", id.Role,
		"interval", p.opts.Interval, "baseline", len(baseline))

	go p.run(sess)
	return nil
}

// Stop ends the current session. A cycle still in flight completes its
// fetch but writes nothing.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLocked()
}

func (p *Poller) endLocked() {
	if p.session == nil {
		return
	}
	p.logger.Info("polling stopped", "identity", p.session.identity.ID)
	p.generation++
	p.session.cancel()
	p.session = nil
}

// Running reports whether an identity is being polled.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil
}

// InFlight reports whether a cycle is currently running.
func (p *Poller) InFlight() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil && p.session.inFlight.Load()
}

// LastPoll returns when the last successful cycle committed.
func (p *Poller) LastPoll() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPoll
}

// Baseline returns a copy of the current session's baseline.
func (p *Poller) Baseline() model.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	return append(model.Snapshot(nil), p.session.baseline...)
}

// PollNow runs one cycle synchronously on the current session.
func (p *Poller) PollNow() (PollResultMsg, error) {
	p.mu.Lock()
	sess := p.session
	p.mu.Unlock()
	if sess == nil {
		return PollResultMsg{}, ErrNoSession
	}
	return p.cycle(sess, TriggerManual)
}

// RefreshNow returns a tea.Cmd that runs a manual cycle. The result
// arrives through WaitForNextResult like any other cycle; the command
// itself only reports a refresh that could not run.
func (p *Poller) RefreshNow() tea.Cmd {
	return func() tea.Msg {
		_, err := p.PollNow()
		if errors.Is(err, ErrPollInFlight) || errors.Is(err, ErrNoSession) {
			return RefreshSkippedMsg{Reason: err}
		}
		return nil
	}
}

// Results exposes the result channel for callers outside Bubble Tea.
func (p *Poller) Results() <-chan PollResultMsg {
	return p.resultCh
}

// WaitForNextResult returns a tea.Cmd that waits for the next poll result.
// This should be called after processing a PollResultMsg to continue
// listening for future results.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// run drives the ticker of one session. Each cycle runs on its own
// goroutine so a slow fetch never queues ticks behind it; the in-flight
// guard drops the ticks that fire meanwhile.
func (p *Poller) run(sess *session) {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	go p.cycleLogged(sess, TriggerInitial)

	for {
		select {
		case <-sess.ctx.Done():
			return
		case <-ticker.C:
			go p.cycleLogged(sess, TriggerTick)
		}
	}
}

func (p *Poller) cycleLogged(sess *session, trigger Trigger) {
	if _, err := p.cycle(sess, trigger); errors.Is(err, ErrPollInFlight) {
		p.logger.Debug("tick dropped, poll in flight", "identity", sess.identity.ID)
	}
}

// cycle performs fetch, scope, diff and commit for one session.
func (p *Poller) cycle(sess *session, trigger Trigger) (PollResultMsg, error) {
	if !sess.inFlight.CompareAndSwap(false, true) {
		p.opts.Metrics.observeCycle(resultSkipped, 0)
		return PollResultMsg{}, ErrPollInFlight
	}
	defer sess.inFlight.Store(false)

	started := time.Now()
	id := sess.identity

	fctx, cancel := context.WithTimeout(sess.ctx, p.opts.FetchTimeout)
	res, err := p.src.FetchAppointments(fctx, source.FetchOptions{
		Page:  1,
		Limit: p.opts.PageLimit,
	})
	cancel()

	if err != nil {
		if sess.ctx.Err() != nil {
			p.opts.Metrics.observeCycle(resultDiscarded, 0)
			return PollResultMsg{}, ErrSessionEnded
		}

		msg := PollResultMsg{
			Identity: id,
			Trigger:  trigger,
			Error:    err,
			At:       p.opts.Now(),
		}
		if source.IsAuthError(err) {
			msg.AuthExpired = true
			p.opts.Metrics.observeCycle(resultAuth, 0)
		} else {
			p.opts.Metrics.observeCycle(resultError, 0)
		}
		p.logger.Warn("poll failed, keeping baseline",
			"identity", id.ID, "trigger", trigger, "err", err)
		p.sendResult(msg)
		return msg, err
	}

	next, dropped := model.NewSnapshot(p.scope(id, res.Appointments))
	if dropped > 0 {
		p.logger.Warn("dropped duplicate appointment ids", "identity", id.ID, "dropped", dropped)
	}

	p.mu.Lock()
	if p.session != sess || sess.gen != p.generation {
		p.mu.Unlock()
		p.opts.Metrics.observeCycle(resultDiscarded, 0)
		p.logger.Debug("discarding poll for ended session", "identity", id.ID)
		return PollResultMsg{}, ErrSessionEnded
	}

	events := Diff(sess.baseline, next, p.opts.Now())
	events = p.opts.Kinds[id.Role].Apply(events)
	sess.baseline = next

	var recorded []model.ChangeEvent
	snapEntry, encErr := store.SnapshotEntry(id, next)
	switch {
	case encErr != nil:
		p.logger.Error("encoding baseline", "identity", id.ID, "err", encErr)
		if len(events) > 0 {
			recorded = p.recorder.Record(sess.ctx, events)
		}
	case len(events) == 0:
		if err := p.store.Commit(sess.ctx, snapEntry); err != nil {
			p.logger.Error("persisting baseline failed", "identity", id.ID, "err", err)
		}
	default:
		recorded = p.recorder.Record(sess.ctx, events, snapEntry)
	}
	p.lastPoll = p.opts.Now()
	p.mu.Unlock()

	if len(recorded) > 0 && sess.ctx.Err() == nil {
		p.recorder.Dispatch(sess.ctx, recorded)
	}

	p.opts.Metrics.observeCycle(resultOK, time.Since(started))
	p.opts.Metrics.observeEvents(recorded)
	p.opts.Metrics.observeSnapshot(len(next))

	p.logger.Debug("poll complete",
		"identity", id.ID, "trigger", trigger,
		"visible", len(next), "events", len(recorded))

	msg := PollResultMsg{
		Identity: id,
		Trigger:  trigger,
		Snapshot: next,
		Events:   recorded,
		At:       p.opts.Now(),
	}
	p.sendResult(msg)
	return msg, nil
}

// scope narrows the global list to what id may see.
func (p *Poller) scope(id model.Identity, list []model.Appointment) []model.Appointment {
	if id.Role.SeesAll() {
		return list
	}
	return model.Snapshot(list).OwnedBy(id.ID)
}

// sendResult sends a PollResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg PollResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}
