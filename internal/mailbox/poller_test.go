package mailbox

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

func newTestPoller() (*Poller, *testLoop, *fakeTicker) {
	loop := newTestLoop()
	ticker := newFakeTicker()
	return NewPoller(loop, ticker, discardLogger()), loop, ticker
}

func TestPoller_ImmediateThenPeriodic(t *testing.T) {
	p, loop, ticker := newTestPoller()
	calls := 0
	s := p.Start(func() { calls++ }, 5*time.Second)

	if calls != 1 {
		t.Fatalf("calls after Start = %d, want 1", calls)
	}
	if !s.Active() {
		t.Fatal("session not active after Start")
	}

	// 20 visible seconds at a 5s interval: four ticks plus the initial call.
	for i := 0; i < 4; i++ {
		ticker.tick()
		loop.next(t)
	}
	if calls != 5 {
		t.Errorf("calls = %d, want 5", calls)
	}
}

func TestPoller_StopIsIdempotent(t *testing.T) {
	p, _, ticker := newTestPoller()
	s := p.Start(func() {}, time.Second)

	p.Stop(s)
	p.Stop(s)
	p.Stop(nil)

	if s.Active() {
		t.Error("session still active after Stop")
	}
	if n := ticker.active(); n != 0 {
		t.Errorf("live ticker handles = %d, want 0", n)
	}
	if p.Current() != nil {
		t.Error("Current() not cleared after Stop")
	}
}

func TestPoller_LateTickAfterStopIsDropped(t *testing.T) {
	p, loop, ticker := newTestPoller()
	calls := 0
	s := p.Start(func() { calls++ }, time.Second)

	ticker.tick() // fired, not yet run on the loop
	p.Stop(s)
	loop.flush(t)

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (late tick must not run)", calls)
	}
}

func TestPoller_SuspendWhileHidden(t *testing.T) {
	p, loop, ticker := newTestPoller()
	calls := 0
	s := p.Start(func() { calls++ }, 5*time.Second)

	p.SetVisible(false)
	if n := ticker.active(); n != 0 {
		t.Fatalf("live ticker handles while hidden = %d, want 0", n)
	}
	ticker.tick()
	loop.flush(t)
	if calls != 1 {
		t.Fatalf("calls while hidden = %d, want 1", calls)
	}

	p.SetVisible(true)
	if calls != 2 {
		t.Fatalf("calls after becoming visible = %d, want 2 (immediate refresh)", calls)
	}
	if !s.Active() || p.Current() != s {
		t.Fatal("resumed session should keep its handle")
	}
	if n := ticker.active(); n != 1 {
		t.Errorf("live ticker handles = %d, want 1", n)
	}

	// The original handle still stops the resumed session.
	p.Stop(s)
	if n := ticker.active(); n != 0 {
		t.Errorf("live ticker handles after Stop = %d, want 0", n)
	}
}

func TestPoller_TickFromPreviousRunIsDropped(t *testing.T) {
	p, loop, ticker := newTestPoller()
	calls := 0
	p.Start(func() { calls++ }, time.Second)

	ticker.tick()
	p.SetVisible(false)
	p.SetVisible(true) // immediate call
	loop.flush(t)

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestPoller_StartWhileHidden(t *testing.T) {
	p, _, ticker := newTestPoller()
	p.SetVisible(false)

	calls := 0
	s := p.Start(func() { calls++ }, time.Second)
	if calls != 0 || ticker.active() != 0 {
		t.Fatalf("hidden Start ran callback %d times with %d handles", calls, ticker.active())
	}

	p.SetVisible(true)
	if calls != 1 || !s.Active() {
		t.Errorf("calls = %d active = %v after show, want 1 true", calls, s.Active())
	}
}

func TestPoller_StopWhileSuspended(t *testing.T) {
	p, _, ticker := newTestPoller()
	calls := 0
	s := p.Start(func() { calls++ }, time.Second)

	p.SetVisible(false)
	p.Stop(s)
	p.SetVisible(true)

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (stopped session must not resume)", calls)
	}
	if n := ticker.active(); n != 0 {
		t.Errorf("live ticker handles = %d, want 0", n)
	}
}

func TestPoller_StartReplacesCurrent(t *testing.T) {
	p, _, ticker := newTestPoller()
	first := p.Start(func() {}, time.Second)
	second := p.Start(func() {}, time.Second)

	if first.Active() {
		t.Error("first session still active")
	}
	if !second.Active() || p.Current() != second {
		t.Error("second session is not current")
	}
	if n := ticker.active(); n != 1 {
		t.Errorf("live ticker handles = %d, want 1", n)
	}
}

func TestPoller_CallbackPanicKeepsTicking(t *testing.T) {
	p, loop, ticker := newTestPoller()
	calls := 0
	p.Start(func() {
		calls++
		panic("counts render")
	}, time.Second)

	ticker.tick()
	loop.next(t)
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestCronTicker_FiresAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ct := NewCronTicker(discardLogger())
	fired := make(chan struct{}, 8)
	stop := ct.Every(time.Second, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("cron ticker never fired")
	}
	stop()
	stop()
	ct.Close()
	ct.Close()
}
