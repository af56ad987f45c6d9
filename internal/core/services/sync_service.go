// Package services hosts the synchronization service: one loop owning the
// reconciler, the reorder engine and the connection manager, fed by a
// single inbox.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/melih/lighthouse-console/internal/core/cache"
	"github.com/melih/lighthouse-console/internal/core/connection"
	"github.com/melih/lighthouse-console/internal/core/domain"
	"github.com/melih/lighthouse-console/internal/core/ports"
	"github.com/melih/lighthouse-console/internal/core/reconcile"
	"github.com/melih/lighthouse-console/internal/core/reorder"
)

var (
	// ErrStopped is returned by calls made after Stop.
	ErrStopped = errors.New("sync service stopped")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("sync service already started")
)

// Config tunes the service.
type Config struct {
	Connection connection.Config
	// SettleDelay separates a committed mutation from the reload that
	// confirms it.
	SettleDelay    time.Duration
	RequestTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Connection:     connection.DefaultConfig(),
		SettleDelay:    300 * time.Millisecond,
		RequestTimeout: 15 * time.Second,
	}
}

// Metrics receives sync engine metrics.
type Metrics interface {
	connection.Recorder
	PushEvent(event string)
	Poll(outcome string)
	StatusTransitions(n int)
	Mutation(kind, outcome string)
	Reload(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) ConnectionState(domain.ConnectionState) {}
func (nopMetrics) ReconnectAttempt()                      {}
func (nopMetrics) PushEvent(string)                       {}
func (nopMetrics) Poll(string)                            {}
func (nopMetrics) StatusTransitions(int)                  {}
func (nopMetrics) Mutation(string, string)                {}
func (nopMetrics) Reload(string)                          {}

// Dependencies are the collaborators of a SyncService.
type Dependencies struct {
	Backend ports.BackendService
	Dialer  ports.PushDialer
	Prefs   ports.Preferences
	Surface ports.Surface
	Cache   *cache.Cache
	Clock   clockwork.Clock
	Metrics Metrics
	Logger  *slog.Logger
}

// Inbox messages produced by the service itself.
type (
	invoke struct {
		fn   func()
		done chan struct{}
	}
	reloadResult struct {
		epoch uint64
		data  collections
		err   error
	}
	pollResult struct {
		issued   time.Time
		statuses map[string]domain.Status
		err      error
	}
	mutationResult struct {
		plan domain.Plan
		err  error
	}
	settleDue struct{}
)

type pendingMutation struct {
	plan      domain.Plan
	reloading bool
}

// SyncService keeps the board consistent with the backend. Push events,
// poll ticks, network completions and API calls all arrive as messages in
// one inbox and are handled one at a time by the loop goroutine, so no
// handler ever observes a half-applied update. Network calls run on their
// own goroutines and report back through the inbox.
type SyncService struct {
	cfg     Config
	backend ports.BackendService
	prefs   ports.Preferences
	surface ports.Surface
	clock   clockwork.Clock
	metrics Metrics
	logger  *slog.Logger

	loader     *loader
	conn       *connection.Manager
	poller     *connection.Poller
	reconciler *reconcile.Reconciler
	engine     *reorder.Engine

	inbox     chan any
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once

	// Loop-owned.
	epoch      uint64
	pending    *pendingMutation
	lastReload time.Time
}

// NewSyncService wires a service. Nothing runs until Start.
func NewSyncService(cfg Config, deps Dependencies) *SyncService {
	def := DefaultConfig()
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = def.SettleDelay
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Cache == nil {
		deps.Cache = cache.New(cache.DefaultOptions(), cache.WithClock(deps.Clock))
	}

	s := &SyncService{
		cfg:     cfg,
		backend: deps.Backend,
		prefs:   deps.Prefs,
		surface: deps.Surface,
		clock:   deps.Clock,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		inbox:   make(chan any, 256),
		done:    make(chan struct{}),
	}
	s.loader = newLoader(deps.Backend, deps.Cache, deps.Clock)
	s.poller = connection.NewPoller(deps.Clock, deps.Prefs, func() bool { return s.conn.Live() },
		s.post, deps.Logger.With("component", "poller"))
	s.conn = connection.NewManager(cfg.Connection, deps.Dialer, deps.Prefs, s.poller, deps.Surface,
		s.post, deps.Clock,
		connection.WithRecorder(deps.Metrics),
		connection.WithLogger(deps.Logger.With("component", "connection")))
	s.reconciler = reconcile.New(deps.Surface, deps.Logger.With("component", "reconciler"))
	s.engine = reorder.New(deps.Surface, deps.Clock)
	return s
}

// Start launches the loop, the first load and the push channel.
func (s *SyncService) Start(ctx context.Context) error {
	started := false
	s.startOnce.Do(func() {
		s.ctx, s.cancel = context.WithCancel(ctx)
		go s.run()
		started = true
	})
	if !started {
		return ErrAlreadyStarted
	}
	return s.do(ctx, func() {
		s.reload(false)
		s.conn.Connect(s.ctx)
	})
}

// Stop tears the service down and waits for the loop to exit.
func (s *SyncService) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
	})
}

func (s *SyncService) run() {
	defer close(s.done)
	s.logger.Info("sync service started")
	for {
		select {
		case <-s.ctx.Done():
			s.conn.Close()
			s.logger.Info("sync service stopped")
			return
		case msg := <-s.inbox:
			s.dispatch(msg)
		}
	}
}

func (s *SyncService) post(msg any) {
	select {
	case s.inbox <- msg:
	case <-s.done:
	}
}

// do runs fn on the loop and waits for it.
func (s *SyncService) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case s.inbox <- invoke{fn: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrStopped
	}
}

func (s *SyncService) dispatch(msg any) {
	switch m := msg.(type) {
	case invoke:
		m.fn()
		close(m.done)
	case connection.DialResult:
		s.conn.HandleDialResult(m)
	case connection.ConnLost:
		s.conn.HandleLost(m)
	case connection.ReconnectDue:
		s.conn.HandleReconnectDue(s.ctx, m)
	case connection.PushReceived:
		if !s.conn.Current(m.Gen) {
			s.logger.Debug("dropping event from detached channel", "event", m.Event.Name)
			return
		}
		s.metrics.PushEvent(m.Event.Name)
		snapshot := m.Event.Snapshot
		if snapshot.ObservedAt.IsZero() {
			snapshot.ObservedAt = s.clock.Now()
		}
		s.applyStatuses(snapshot)
	case connection.PollTick:
		if s.poller.HandleTick(m) {
			s.poll()
		}
	case pollResult:
		s.handlePoll(m)
	case reloadResult:
		s.handleReload(m)
	case mutationResult:
		s.handleMutation(m)
	case settleDue:
		s.handleSettle()
	default:
		s.logger.Warn("unknown inbox message", "type", fmt.Sprintf("%T", msg))
	}
}

func (s *SyncService) applyStatuses(snapshot domain.StatusSnapshot) {
	changes := s.reconciler.Apply(snapshot)
	if len(changes) > 0 {
		s.metrics.StatusTransitions(len(changes))
	}
}

// =============================================================================
// Polling and reloads
// =============================================================================

func (s *SyncService) poll() {
	issued := s.clock.Now()
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RequestTimeout)
		defer cancel()
		statuses, err := s.backend.ContainerStatuses(ctx)
		s.post(pollResult{issued: issued, statuses: statuses, err: err})
	}()
}

func (s *SyncService) handlePoll(r pollResult) {
	if r.err != nil {
		s.metrics.Poll("error")
		s.logger.Warn("status poll failed", "error", r.err)
		return
	}
	s.metrics.Poll("ok")
	s.applyStatuses(domain.StatusSnapshot{
		Statuses:   r.statuses,
		Source:     domain.SourcePoll,
		ObservedAt: r.issued,
	})
}

func (s *SyncService) reload(force bool) {
	epoch := s.epoch
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RequestTimeout)
		defer cancel()
		data, err := s.loader.load(ctx, force)
		s.post(reloadResult{epoch: epoch, data: data, err: err})
	}()
}

// handleReload is the full render path: the only place cards are created
// or removed.
func (s *SyncService) handleReload(r reloadResult) {
	if r.epoch != s.epoch {
		s.metrics.Reload("stale")
		s.logger.Debug("discarding reload issued before invalidation")
		return
	}
	if r.err != nil {
		s.metrics.Reload("error")
		s.logger.Warn("reload failed", "error", r.err)
		if s.pending != nil && s.pending.reloading {
			s.finishPending()
		}
		return
	}

	layout := domain.Assign(r.data.categories, r.data.containers)
	s.surface.Render(layout, r.data.containers)
	s.applyStatuses(domain.StatusSnapshot{
		Statuses:   domain.StatusesOf(r.data.containers),
		Source:     domain.SourceRender,
		ObservedAt: r.data.observedAt,
	})
	s.reconciler.Repaint()
	s.lastReload = s.clock.Now()
	s.metrics.Reload("ok")

	if s.pending != nil && s.pending.reloading {
		s.finishPending()
	}
}

func (s *SyncService) invalidate() {
	s.loader.invalidate(cache.KeyCategories, cache.KeyContainers)
	s.epoch++
}

// =============================================================================
// Mutations
// =============================================================================

func (s *SyncService) dispatchPlan(plan domain.Plan) {
	s.surface.SetBusy(true)
	s.logger.Info("sending mutation", "kind", plan.Kind, "container", plan.Container,
		"source", plan.SourceCategory, "target", plan.TargetCategory,
		"from", plan.FromIndex, "to", plan.TargetIndex)

	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RequestTimeout)
		defer cancel()
		var err error
		switch plan.Kind {
		case domain.PlanMove:
			err = s.backend.MoveContainer(ctx, reorder.MoveRequest(plan))
		case domain.PlanReorder:
			err = s.backend.ReorderContainer(ctx, reorder.ReorderRequest(plan))
		case domain.PlanOrder:
			err = s.backend.SaveCategoryOrder(ctx, domain.PositionsFor(plan.CategoryOrder))
		default:
			err = fmt.Errorf("unsupported plan %q", plan.Kind)
		}
		s.post(mutationResult{plan: plan, err: err})
	}()
}

// handleMutation never touches the layout. On success the confirmed order
// arrives with the forced reload; on failure the board stays as it was.
func (s *SyncService) handleMutation(m mutationResult) {
	if m.err != nil {
		s.metrics.Mutation(string(m.plan.Kind), "failed")
		s.logger.Warn("mutation failed", "kind", m.plan.Kind, "container", m.plan.Container, "error", m.err)
		s.engine.Resolve()
		s.surface.SetBusy(false)
		s.notify(domain.NotifyError, failureMessage(m.plan, m.err))
		return
	}

	s.metrics.Mutation(string(m.plan.Kind), "committed")
	s.invalidate()
	s.pending = &pendingMutation{plan: m.plan}
	s.clock.AfterFunc(s.cfg.SettleDelay, func() {
		s.post(settleDue{})
	})
}

func (s *SyncService) handleSettle() {
	if s.pending == nil || s.pending.reloading {
		return
	}
	s.pending.reloading = true
	s.reload(true)
}

func (s *SyncService) finishPending() {
	plan := s.pending.plan
	s.pending = nil
	s.engine.Resolve()
	s.surface.SetBusy(false)
	s.notify(domain.NotifySuccess, successMessage(plan))
}

func (s *SyncService) notify(level domain.NotificationLevel, msg string) {
	s.surface.Notify(domain.Notification{Level: level, Message: msg, At: s.clock.Now()})
}

func successMessage(p domain.Plan) string {
	switch p.Kind {
	case domain.PlanMove:
		return fmt.Sprintf("Moved %s to %s", p.Container, p.TargetCategory)
	case domain.PlanReorder:
		return fmt.Sprintf("Moved %s to position %d in %s", p.Container, p.TargetIndex+1, p.TargetCategory)
	default:
		return "Category order saved"
	}
}

func failureMessage(p domain.Plan, err error) string {
	reason := err.Error()
	var rejected *ports.RejectedError
	if errors.As(err, &rejected) && rejected.Reason != "" {
		reason = rejected.Reason
	}
	switch p.Kind {
	case domain.PlanMove, domain.PlanReorder:
		return fmt.Sprintf("Failed to move %s: %s", p.Container, reason)
	default:
		return "Failed to save category order: " + reason
	}
}

// =============================================================================
// ConsoleService
// =============================================================================

// Reload re-renders from the collections, bypassing the cache if force.
func (s *SyncService) Reload(ctx context.Context, force bool) error {
	return s.do(ctx, func() { s.reload(force) })
}

// StartDrag begins a gesture on container.
func (s *SyncService) StartDrag(ctx context.Context, container string) (domain.DragGesture, error) {
	var (
		g   domain.DragGesture
		err error
	)
	if doErr := s.do(ctx, func() { g, err = s.engine.Start(container) }); doErr != nil {
		return domain.DragGesture{}, doErr
	}
	return g, err
}

// Drop resolves the current gesture and sends the resulting request. The
// returned plan describes what was sent; its outcome arrives later as a
// notification.
func (s *SyncService) Drop(ctx context.Context, target domain.DropTarget) (domain.Plan, error) {
	var (
		plan domain.Plan
		err  error
	)
	doErr := s.do(ctx, func() {
		plan, err = s.engine.Drop(target)
		if err != nil {
			s.logger.Info("drop rejected", "category", target.Category, "sibling", target.Sibling, "error", err)
			return
		}
		if plan.Kind == domain.PlanNoop {
			return
		}
		s.dispatchPlan(plan)
	})
	if doErr != nil {
		return domain.Plan{}, doErr
	}
	return plan, err
}

// CancelDrag abandons the current gesture.
func (s *SyncService) CancelDrag(ctx context.Context) error {
	return s.do(ctx, func() { s.engine.Cancel() })
}

// ReorderCategories persists a new category order. Categories missing from
// order keep their relative position after the listed ones; the reserved
// category is always kept last.
func (s *SyncService) ReorderCategories(ctx context.Context, order []string) (domain.Plan, error) {
	var (
		plan domain.Plan
		err  error
	)
	doErr := s.do(ctx, func() {
		current := withoutReserved(s.surface.CategoryIDs())
		requested := withoutReserved(order)
		for _, id := range requested {
			if !slices.Contains(current, id) {
				err = fmt.Errorf("%w: %s", reorder.ErrUnknownCategory, id)
				return
			}
		}
		for _, id := range current {
			if !slices.Contains(requested, id) {
				requested = append(requested, id)
			}
		}
		plan = domain.Plan{Kind: domain.PlanOrder, CategoryOrder: requested}
		if slices.Equal(current, requested) {
			plan.Kind = domain.PlanNoop
			return
		}
		if err = s.engine.Acquire(plan); err != nil {
			return
		}
		s.dispatchPlan(plan)
	})
	if doErr != nil {
		return domain.Plan{}, doErr
	}
	return plan, err
}

// AfterMutation invalidates the collections and reloads. Passthrough
// requests that changed backend state call it.
func (s *SyncService) AfterMutation(ctx context.Context) error {
	return s.do(ctx, func() {
		s.invalidate()
		s.reload(true)
	})
}

// PreferencesChanged re-evaluates scheduling after a preference edit.
func (s *SyncService) PreferencesChanged(ctx context.Context) error {
	return s.do(ctx, func() {
		if s.prefs.AutoUpdate() && !s.conn.Live() && !s.conn.Connecting() {
			s.conn.ResetBackoff()
			s.conn.Connect(s.ctx)
		}
		if s.poller.Armed() && s.prefs.RefreshInterval() != s.poller.Interval() {
			s.poller.Arm(s.prefs.RefreshInterval())
		}
	})
}

// Status reports the engine's diagnostic state.
func (s *SyncService) Status(ctx context.Context) (domain.SyncStatus, error) {
	var st domain.SyncStatus
	err := s.do(ctx, func() {
		st = domain.SyncStatus{
			Connection:        s.conn.State(),
			ReconnectAttempts: s.conn.Attempts(),
			PollingArmed:      s.poller.Armed(),
			PollInterval:      s.poller.Interval(),
			Engine:            s.engine.State().String(),
			KnownStatuses:     s.reconciler.Len(),
			LastReload:        s.lastReload,
		}
	})
	return st, err
}

func withoutReserved(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != domain.ReservedCategoryID && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

var _ ports.ConsoleService = (*SyncService)(nil)
