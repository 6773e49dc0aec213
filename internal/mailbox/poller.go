package mailbox

import (
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Ticker calls fn every interval on a goroutine of its own until the returned
// stop function is called. A tick already in flight when stop is called may
// still run once.
type Ticker interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// Session is one run of a periodic callback.
type Session struct {
	id       uint64
	run      uint64 // bumped on every (re)start; ticks from older runs are dropped
	stop     func()
	active   bool
	callback func()
	interval time.Duration
}

// Active reports whether the session is still ticking.
func (s *Session) Active() bool { return s != nil && s.active }

// Poller runs a callback immediately and then periodically, suspending while
// the client is not visible. All methods must be called on the Loop.
type Poller struct {
	loop   Loop
	ticker Ticker
	logger *slog.Logger

	nextID  uint64
	current *Session

	visible   bool
	suspended *Session // session stopped by SetVisible(false), resumed on true
}

// NewPoller creates a poller that is initially visible.
func NewPoller(loop Loop, ticker Ticker, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		loop:    loop,
		ticker:  ticker,
		logger:  logger,
		visible: true,
	}
}

// Start stops the current session, if any, and begins a new one. callback
// runs once right away and then every interval. While hidden, the session is
// recorded but not started until the client becomes visible again.
func (p *Poller) Start(callback func(), interval time.Duration) *Session {
	p.Stop(p.current)
	p.suspended = nil

	p.nextID++
	s := &Session{id: p.nextID, callback: callback, interval: interval}
	if !p.visible {
		p.suspended = s
		return s
	}
	p.begin(s)
	return s
}

// Stop cancels s. Stopping a nil or already stopped session does nothing.
func (p *Poller) Stop(s *Session) {
	if s == nil {
		return
	}
	if p.suspended == s {
		p.suspended = nil
	}
	if !s.active {
		return
	}
	s.active = false
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	if p.current == s {
		p.current = nil
	}
	p.logger.Debug("poll session stopped", "session", s.id)
}

// SetVisible suspends the running session when the client is hidden and
// restarts it, with an immediate callback, when it is shown again. The
// restarted session keeps its handle, so Stop still reaches it.
func (p *Poller) SetVisible(visible bool) {
	if p.visible == visible {
		return
	}
	p.visible = visible

	if !visible {
		if s := p.current; s != nil {
			p.Stop(s)
			p.suspended = s
		}
		return
	}

	if s := p.suspended; s != nil {
		p.suspended = nil
		p.begin(s)
	}
}

// Visible reports the last visibility passed to SetVisible.
func (p *Poller) Visible() bool { return p.visible }

// Current returns the running session, or nil.
func (p *Poller) Current() *Session { return p.current }

func (p *Poller) begin(s *Session) {
	s.run++
	run := s.run
	s.active = true
	p.current = s
	p.logger.Debug("poll session started", "session", s.id, "interval", s.interval)

	s.stop = p.ticker.Every(s.interval, func() {
		p.loop.Post(func() {
			// A tick posted just before Stop lands here after the fact.
			if !s.active || s.run != run {
				return
			}
			p.fire(s)
		})
	})
	p.fire(s)
}

func (p *Poller) fire(s *Session) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poll callback panic", "session", s.id, "panic", r)
		}
	}()
	s.callback()
}

// CronTicker implements Ticker on top of a robfig/cron scheduler. Intervals
// are rounded down to whole seconds, with a one second minimum.
type CronTicker struct {
	cron      *cron.Cron
	closeOnce sync.Once
}

// NewCronTicker starts a cron scheduler for periodic callbacks.
func NewCronTicker(logger *slog.Logger) *CronTicker {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{logger})))
	c.Start()
	return &CronTicker{cron: c}
}

// Every implements Ticker. Intervals are truncated to whole seconds, and
// anything shorter than a second runs every second.
func (t *CronTicker) Every(interval time.Duration, fn func()) func() {
	id := t.cron.Schedule(cron.Every(interval), cron.FuncJob(fn))
	var once sync.Once
	return func() {
		once.Do(func() { t.cron.Remove(id) })
	}
}

// Close stops the scheduler and waits for running callbacks to return.
func (t *CronTicker) Close() {
	t.closeOnce.Do(func() {
		<-t.cron.Stop().Done()
	})
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
