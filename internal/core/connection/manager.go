// Package connection owns the push channel lifecycle and the polling
// fallback that covers for it.
package connection

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/melih/lighthouse-console/internal/core/domain"
	"github.com/melih/lighthouse-console/internal/core/ports"
)

// Config controls reconnection.
type Config struct {
	// ReconnectDelay is the fixed delay before the first reconnect.
	ReconnectDelay time.Duration
	// ReconnectMaxDelay caps the backoff between consecutive failures.
	ReconnectMaxDelay time.Duration
	// MaxAttempts bounds consecutive reconnects before going offline.
	MaxAttempts int
	// Jitter is the backoff randomization factor. Zero keeps delays exact.
	Jitter      float64
	DialTimeout time.Duration
}

// DefaultConfig returns a 3s reconnect delay, capped at 60s, 10 attempts.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    3 * time.Second,
		ReconnectMaxDelay: 60 * time.Second,
		MaxAttempts:       10,
		DialTimeout:       10 * time.Second,
	}
}

// Recorder receives connection metrics.
type Recorder interface {
	ConnectionState(state domain.ConnectionState)
	ReconnectAttempt()
}

type nopRecorder struct{}

func (nopRecorder) ConnectionState(domain.ConnectionState) {}
func (nopRecorder) ReconnectAttempt()                      {}

// Manager guarantees at most one live push channel. All methods must be
// called from the owning loop; results of blocking work come back through
// the Poster as DialResult, PushReceived, ConnLost and ReconnectDue.
type Manager struct {
	cfg       Config
	dialer    ports.PushDialer
	prefs     ports.Preferences
	poller    *Poller
	indicator ports.Indicator
	post      Poster
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   Recorder

	connecting bool
	conn       ports.PushConn
	gen        uint64
	timer      clockwork.Timer
	timerSeq   uint64
	backoff    backoff.BackOff
	attempts   int
	state      domain.ConnectionState
	closed     bool
}

// Option customizes a Manager.
type Option func(*Manager)

// WithRecorder reports connection metrics.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.metrics = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a disconnected Manager.
func NewManager(cfg Config, dialer ports.PushDialer, prefs ports.Preferences, poller *Poller,
	indicator ports.Indicator, post Poster, clock clockwork.Clock, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.ReconnectMaxDelay < cfg.ReconnectDelay {
		cfg.ReconnectMaxDelay = cfg.ReconnectDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}

	m := &Manager{
		cfg:       cfg,
		dialer:    dialer,
		prefs:     prefs,
		poller:    poller,
		indicator: indicator,
		post:      post,
		clock:     clock,
		logger:    slog.Default(),
		metrics:   nopRecorder{},
		state:     domain.ConnectionDisconnected,
	}
	for _, o := range opts {
		o(m)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.ReconnectDelay
	eb.MaxInterval = cfg.ReconnectMaxDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = cfg.Jitter
	eb.MaxElapsedTime = 0
	eb.Clock = clock
	eb.Reset()
	m.backoff = backoff.WithMaxRetries(eb, uint64(cfg.MaxAttempts))
	return m
}

// State is the indicator state.
func (m *Manager) State() domain.ConnectionState { return m.state }

// Live reports whether a push channel is connected.
func (m *Manager) Live() bool { return m.conn != nil }

// Connecting reports whether a dial is outstanding.
func (m *Manager) Connecting() bool { return m.connecting }

// Attempts is the number of reconnects since the last successful connect.
func (m *Manager) Attempts() int { return m.attempts }

// Current reports whether gen is the live channel generation. Events from
// any other generation come from a discarded channel and must be dropped.
func (m *Manager) Current(gen uint64) bool {
	return m.conn != nil && gen == m.gen
}

// Connect starts a dial unless one is outstanding or a channel is live.
// It reports whether a dial was started.
func (m *Manager) Connect(ctx context.Context) bool {
	if m.closed || m.connecting || m.conn != nil {
		return false
	}
	m.connecting = true
	m.gen++
	gen := m.gen
	m.setState(domain.ConnectionConnecting)

	go func() {
		dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
		defer cancel()
		conn, err := m.dialer.Dial(dialCtx)
		m.post(DialResult{Gen: gen, Conn: conn, Err: err})
	}()
	return true
}

// Reconnect drops the current channel, if any, and dials again with a
// fresh backoff budget.
func (m *Manager) Reconnect(ctx context.Context) bool {
	if m.closed || m.connecting {
		return false
	}
	m.cancelTimer()
	m.detach()
	m.ResetBackoff()
	return m.Connect(ctx)
}

// ResetBackoff restores the full reconnect budget.
func (m *Manager) ResetBackoff() {
	m.attempts = 0
	m.backoff.Reset()
}

// HandleDialResult completes a Connect.
func (m *Manager) HandleDialResult(r DialResult) {
	if m.closed || r.Gen != m.gen {
		if r.Conn != nil {
			_ = r.Conn.Close()
		}
		return
	}
	m.connecting = false
	if r.Err != nil {
		m.logger.Warn("push channel dial failed", "error", r.Err)
		m.lost()
		return
	}

	m.conn = r.Conn
	m.ResetBackoff()
	m.cancelTimer()
	m.poller.Disarm()
	m.setState(domain.ConnectionConnected)
	m.logger.Info("push channel connected")

	go m.read(r.Gen, r.Conn)
}

func (m *Manager) read(gen uint64, conn ports.PushConn) {
	if err := conn.RequestInitialStatus(); err != nil {
		m.post(ConnLost{Gen: gen, Err: err})
		return
	}
	for {
		ev, err := conn.Receive()
		if err != nil {
			m.post(ConnLost{Gen: gen, Err: err})
			return
		}
		m.post(PushReceived{Gen: gen, Event: ev})
	}
}

// HandleLost reacts to a channel that stopped delivering.
func (m *Manager) HandleLost(l ConnLost) {
	if m.closed || !m.Current(l.Gen) {
		return
	}
	m.logger.Warn("push channel lost", "error", l.Err)
	m.detach()
	m.lost()
}

// HandleReconnectDue runs the single scheduled reconnect.
func (m *Manager) HandleReconnectDue(ctx context.Context, d ReconnectDue) {
	if m.timer == nil || d.Seq != m.timerSeq {
		return
	}
	m.timer = nil
	if m.closed || !m.prefs.AutoUpdate() {
		return
	}
	m.metrics.ReconnectAttempt()
	m.Connect(ctx)
}

// Close tears down the channel, any pending reconnect and the poller.
func (m *Manager) Close() {
	m.closed = true
	m.cancelTimer()
	m.detach()
	m.connecting = false
	m.gen++
	m.poller.Disarm()
}

// lost arms the fallback and schedules one reconnect. Failed redials come
// back here; the fallback ticker must survive them.
func (m *Manager) lost() {
	m.setState(domain.ConnectionDisconnected)
	m.poller.Ensure(m.prefs.RefreshInterval())

	if !m.prefs.AutoUpdate() {
		m.logger.Info("auto-update disabled, not reconnecting")
		return
	}
	if m.timer != nil {
		return
	}
	delay := m.backoff.NextBackOff()
	if delay == backoff.Stop {
		m.setState(domain.ConnectionOffline)
		m.logger.Warn("reconnect attempts exhausted, staying on polling", "attempts", m.attempts)
		return
	}
	m.attempts++
	m.timerSeq++
	seq := m.timerSeq
	m.timer = m.clock.AfterFunc(delay, func() {
		m.post(ReconnectDue{Seq: seq})
	})
	m.logger.Info("reconnect scheduled", "delay", delay, "attempt", m.attempts)
}

// detach closes the live channel. Bumping the generation detaches its
// reader: anything it still posts is dropped by Current.
func (m *Manager) detach() {
	if m.conn == nil {
		return
	}
	_ = m.conn.Close()
	m.conn = nil
	m.gen++
}

func (m *Manager) cancelTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) setState(state domain.ConnectionState) {
	m.state = state
	m.indicator.SetConnection(state)
	m.metrics.ConnectionState(state)
}
