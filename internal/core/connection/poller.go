package connection

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/melih/lighthouse-console/internal/core/ports"
)

// DefaultPollInterval is used when the preference holds no usable value.
const DefaultPollInterval = 30 * time.Second

// Poller is the timer-driven fallback that requests full status while the
// push channel is down. Ticks are delivered to the loop as PollTick
// messages; HandleTick decides whether a tick does network work.
type Poller struct {
	clock  clockwork.Clock
	prefs  ports.Preferences
	live   func() bool
	post   Poster
	logger *slog.Logger

	ticker   clockwork.Ticker
	stop     chan struct{}
	interval time.Duration
	gen      uint64
}

// NewPoller creates a disarmed Poller. live reports whether the push
// channel is connected.
func NewPoller(clock clockwork.Clock, prefs ports.Preferences, live func() bool, post Poster, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		clock:  clock,
		prefs:  prefs,
		live:   live,
		post:   post,
		logger: logger,
	}
}

// Arm starts ticking every interval, clearing any previous ticker first.
func (p *Poller) Arm(interval time.Duration) {
	p.Disarm()
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	p.gen++
	p.interval = interval
	p.ticker = p.clock.NewTicker(interval)
	p.stop = make(chan struct{})

	go func(gen uint64, ticks <-chan time.Time, stop <-chan struct{}) {
		for {
			select {
			case <-ticks:
				p.post(PollTick{Gen: gen})
			case <-stop:
				return
			}
		}
	}(p.gen, p.ticker.Chan(), p.stop)

	p.logger.Debug("fallback polling armed", "interval", interval)
}

// Ensure arms the ticker unless it is already running at interval, so a
// ticker in progress keeps its phase.
func (p *Poller) Ensure(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if p.ticker != nil && p.interval == interval {
		return
	}
	p.Arm(interval)
}

// Disarm stops the ticker. Ticks already queued are ignored by HandleTick.
func (p *Poller) Disarm() {
	if p.ticker == nil {
		return
	}
	p.ticker.Stop()
	close(p.stop)
	p.ticker = nil
	p.stop = nil
	p.logger.Debug("fallback polling disarmed")
}

// Armed reports whether a ticker is running.
func (p *Poller) Armed() bool {
	return p.ticker != nil
}

// Interval is the current tick interval, zero when disarmed.
func (p *Poller) Interval() time.Duration {
	if p.ticker == nil {
		return 0
	}
	return p.interval
}

// HandleTick reports whether tick should issue a status request. Ticks
// from a superseded ticker, ticks while the push channel is live, and ticks
// while auto-update is off do nothing. A changed refresh interval re-arms
// the ticker; the current tick still polls.
func (p *Poller) HandleTick(tick PollTick) bool {
	if p.ticker == nil || tick.Gen != p.gen {
		return false
	}
	if p.live() {
		return false
	}
	if !p.prefs.AutoUpdate() {
		return false
	}
	if interval := p.prefs.RefreshInterval(); interval > 0 && interval != p.interval {
		p.Arm(interval)
	}
	return true
}
