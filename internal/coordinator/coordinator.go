package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
	"github.com/JakeFAU/robot-leaderboard/internal/metrics"
	"github.com/JakeFAU/robot-leaderboard/internal/reconcile"
)

// DefaultInterval is the timer period when Config leaves it unset.
const DefaultInterval = 24 * time.Hour

// State is the coordinator's position in its two-state machine.
type State int32

const (
	// Idle means no cycle is running and the next request will start one.
	Idle State = iota
	// Refreshing means a cycle holds the gate; requests are dropped.
	Refreshing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Refreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText renders the state name in JSON status payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Trigger labels why a refresh was requested.
type Trigger string

// Known triggers.
const (
	TriggerStartup  Trigger = "startup"
	TriggerTimer    Trigger = "timer"
	TriggerMutation Trigger = "mutation"
	TriggerManual   Trigger = "manual"
)

// Source supplies the entries a cycle publishes.
type Source interface {
	ListAll(ctx context.Context) ([]leaderboard.Entry, error)
}

// Rescraper re-scrapes every entry before a timer cycle when enabled.
type Rescraper interface {
	RefreshAll(ctx context.Context) (reconcile.RefreshSummary, error)
}

// Config controls scheduling.
type Config struct {
	Interval  time.Duration
	OnStartup bool
	// Rescrape runs the Rescraper at the start of every timer cycle.
	Rescrape bool
}

// Status is a point-in-time snapshot of the coordinator.
type Status struct {
	State        State     `json:"state"`
	Cycles       int64     `json:"cycles"`
	Dropped      int64     `json:"dropped"`
	LastTrigger  Trigger   `json:"last_trigger,omitempty"`
	LastStarted  time.Time `json:"last_started"`
	LastFinished time.Time `json:"last_finished"`
	LastPanels   int       `json:"last_panels"`
	LastFailures int       `json:"last_failures"`
}

// Coordinator owns the refresh gate.
type Coordinator struct {
	source    Source
	channel   leaderboard.Channel
	rescraper Rescraper
	clock     leaderboard.Clock
	logger    *zap.Logger
	cfg       Config

	state   atomic.Int32
	cycles  atomic.Int64
	dropped atomic.Int64

	// lifeMu guards closed and pending. pending is closed when the current
	// background cycle returns; single-flight means there is at most one.
	lifeMu  sync.Mutex
	closed  bool
	pending chan struct{}

	mu   sync.Mutex
	last Status
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithRescraper enables the re-scrape step used by timer cycles.
func WithRescraper(r Rescraper) Option {
	return func(c *Coordinator) { c.rescraper = r }
}

// WithClock overrides the wall clock used for status timestamps.
func WithClock(clock leaderboard.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// New constructs a Coordinator in the Idle state.
func New(source Source, channel leaderboard.Channel, cfg Config, logger *zap.Logger, opts ...Option) (*Coordinator, error) {
	if source == nil {
		return nil, leaderboard.ErrNotConfigured
	}
	if channel == nil {
		return nil, errors.New("channel is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	c := &Coordinator{
		source:  source,
		channel: channel,
		clock:   leaderboard.SystemClock,
		logger:  logger.Named("coordinator"),
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run performs the optional startup cycle, then requests a timer cycle every
// Interval until ctx is done. Missed ticks are not replayed. Run waits for
// any background cycle before returning.
func (c *Coordinator) Run(ctx context.Context) {
	if c.cfg.OnStartup {
		c.RefreshNow(ctx, TriggerStartup)
	}
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Wait()
			return
		case <-ticker.C:
			c.RefreshNow(ctx, TriggerTimer)
		}
	}
}

// Trigger requests a cycle without blocking. It reports whether the request
// was accepted; a false result means a cycle was already running and the
// request was dropped, or the coordinator was closed. The cycle outlives
// ctx's cancellation.
func (c *Coordinator) Trigger(ctx context.Context, trigger Trigger) bool {
	c.lifeMu.Lock()
	if c.closed {
		c.lifeMu.Unlock()
		c.logger.Debug("refresh request after close ignored", zap.String("trigger", string(trigger)))
		return false
	}
	if !c.acquire(trigger) {
		c.lifeMu.Unlock()
		return false
	}
	done := make(chan struct{})
	c.pending = done
	c.lifeMu.Unlock()

	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		c.cycle(bg, trigger)
	}()
	return true
}

// RefreshNow runs a cycle on the calling goroutine. It returns false without
// doing anything when a cycle is already running or the coordinator is closed.
func (c *Coordinator) RefreshNow(ctx context.Context, trigger Trigger) bool {
	c.lifeMu.Lock()
	closed := c.closed
	c.lifeMu.Unlock()
	if closed || !c.acquire(trigger) {
		return false
	}
	c.cycle(ctx, trigger)
	return true
}

// Wait blocks until the cycle started by Trigger, if any, has finished.
func (c *Coordinator) Wait() {
	c.lifeMu.Lock()
	pending := c.pending
	c.lifeMu.Unlock()
	if pending != nil {
		<-pending
	}
}

// Close rejects further refresh requests and waits for a background cycle
// still in flight. It is safe to call more than once.
func (c *Coordinator) Close() {
	c.lifeMu.Lock()
	c.closed = true
	c.lifeMu.Unlock()
	c.Wait()
}

// State returns the current state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Status returns a snapshot of counters and the last cycle's outcome.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	s := c.last
	c.mu.Unlock()
	s.State = c.State()
	s.Cycles = c.cycles.Load()
	s.Dropped = c.dropped.Load()
	return s
}

func (c *Coordinator) acquire(trigger Trigger) bool {
	if c.state.CompareAndSwap(int32(Idle), int32(Refreshing)) {
		return true
	}
	n := c.dropped.Add(1)
	metrics.ObserveRefreshDropped(string(trigger))
	c.logger.Debug("refresh already in progress; request dropped",
		zap.String("trigger", string(trigger)),
		zap.Int64("dropped_total", n),
	)
	return false
}

// cycle must only run while the gate is held; it always releases it.
func (c *Coordinator) cycle(ctx context.Context, trigger Trigger) {
	started := c.clock.Now()
	c.mu.Lock()
	c.last.LastTrigger = trigger
	c.last.LastStarted = started
	c.mu.Unlock()

	var (
		panels   int
		failures int
		entries  int
	)
	defer func() {
		finished := c.clock.Now()
		c.mu.Lock()
		c.last.LastFinished = finished
		c.last.LastPanels = panels
		c.last.LastFailures = failures
		c.mu.Unlock()
		c.cycles.Add(1)
		c.state.Store(int32(Idle))
		metrics.ObserveRefreshCycle(string(trigger), finished.Sub(started), entries)
	}()

	logger := c.logger.With(zap.String("trigger", string(trigger)))
	logger.Info("refresh cycle started")

	if trigger == TriggerTimer && c.cfg.Rescrape && c.rescraper != nil {
		summary, err := c.rescraper.RefreshAll(ctx)
		if err != nil {
			logger.Warn("re-scrape before refresh failed", zap.Error(err))
		} else {
			logger.Info("re-scrape before refresh complete",
				zap.Int("updated", summary.Updated),
				zap.Int("failed", summary.Failed),
			)
		}
	}

	// Publishing on top of panels that could not be cleared would duplicate them.
	if err := c.channel.Purge(ctx); err != nil {
		failures++
		logger.Error("purge published panels failed; nothing published", zap.Error(err))
		return
	}

	list, err := c.source.ListAll(ctx)
	if err != nil {
		failures++
		logger.Error("list entries failed; nothing published", zap.Error(err))
		return
	}
	entries = len(list)

	for _, panel := range leaderboard.Render(leaderboard.GroupAndRank(list)) {
		if err := c.channel.Send(ctx, panel); err != nil {
			failures++
			metrics.ObservePanel("failed")
			logger.Error("publish panel failed",
				zap.String("category", panel.Category),
				zap.Error(fmt.Errorf("%w: %w", leaderboard.ErrPublishFailed, err)),
			)
			continue
		}
		panels++
		metrics.ObservePanel("sent")
	}

	logger.Info("refresh cycle finished",
		zap.Int("entries", entries),
		zap.Int("panels", panels),
		zap.Int("failures", failures),
	)
}
