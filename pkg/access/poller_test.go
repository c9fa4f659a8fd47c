package access

import (
	"sync"
	"testing"
	"time"

	"github.com/fpga-tools/regaccess-go/pkg/log"
	"github.com/fpga-tools/regaccess-go/pkg/regmap"
	"github.com/fpga-tools/regaccess-go/pkg/transport"
)

// fakeClock drives the poller from the test instead of wall time.
type fakeClock struct {
	mu          sync.Mutex
	now         time.Time
	tick        chan time.Time
	tickerMade  bool
	tickerEvery time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:  time.Unix(1000, 0),
		tick: make(chan time.Time),
	}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	f.tickerMade = true
	f.tickerEvery = d
	f.mu.Unlock()
	return fakeTicker{c: f.tick}
}

func (f *fakeClock) tickerInterval() (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickerEvery, f.tickerMade
}

// Advance moves the clock and delivers one tick to the poller.
func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	f.mu.Unlock()
	f.tick <- now
}

type fakeTicker struct {
	c chan time.Time
}

func (t fakeTicker) C() <-chan time.Time { return t.c }
func (t fakeTicker) Stop()               {}

// chanLogger forwards events to a channel so tests can await them.
type chanLogger struct {
	ch chan log.Event
}

func (l chanLogger) Log(event log.Event) {
	l.ch <- event
}

// pollPass collects the poll events of one tick. The poller goroutine
// emits them synchronously, so a timeout means "nothing was polled".
func pollPass(t *testing.T, ch chan log.Event, want int) map[string]uint64 {
	t.Helper()
	got := make(map[string]uint64, want)
	for i := 0; i < want; i++ {
		select {
		case ev := <-ch:
			if ev.Op != log.OpPoll || ev.Origin != log.OriginPoller {
				t.Fatalf("unexpected event %+v", ev)
			}
			got[ev.Register] = ev.Value
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for poll event %d of %d, got %v", i+1, want, got)
		}
	}
	return got
}

func newPollerFixture(t *testing.T) (*Poller, *transport.Loopback, *fakeClock, chan log.Event) {
	t.Helper()

	m, err := regmap.Load("testdata/poll.json")
	if err != nil {
		t.Fatalf("load map failed: %v", err)
	}
	clock := newFakeClock()
	events := make(chan log.Event, 16)
	tr := transport.NewLoopback()
	e := New(tr, Config{Logger: chanLogger{ch: events}, Clock: clock})
	if err := e.Attach(m); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	return NewPoller(e), tr, clock, events
}

func TestPollerSchedule(t *testing.T) {
	p, tr, clock, events := newPollerFixture(t)
	tr.Preload(0, []byte{0x11, 0, 0, 0})
	tr.Preload(4, []byte{0x22, 0, 0, 0})
	if err := tr.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	p.Start()
	defer p.Stop()

	// First tick warms every polled register.
	clock.Advance(100 * time.Millisecond)
	got := pollPass(t, events, 2)
	if every, _ := clock.tickerInterval(); every != 100*time.Millisecond {
		t.Fatalf("base tick = %v, want gcd 100ms", every)
	}
	if got["status"] != 0x11 || got["counter"] != 0x22 {
		t.Errorf("first pass = %v", got)
	}

	// 100ms after the warm-up nothing is due (intervals are 200/300ms).
	clock.Advance(100 * time.Millisecond)

	// 200ms after the warm-up only status is due.
	tr.Preload(0, []byte{0x33, 0, 0, 0})
	clock.Advance(100 * time.Millisecond)
	got = pollPass(t, events, 1)
	if got["status"] != 0x33 {
		t.Errorf("second pass = %v, want status 0x33", got)
	}

	// 300ms after the warm-up only counter is due.
	clock.Advance(100 * time.Millisecond)
	got = pollPass(t, events, 1)
	if _, ok := got["counter"]; !ok {
		t.Errorf("third pass = %v, want counter", got)
	}

	select {
	case ev := <-events:
		t.Errorf("unexpected extra event %+v", ev)
	default:
	}
}

func TestPollerDisconnected(t *testing.T) {
	p, _, clock, events := newPollerFixture(t)

	p.Start()
	defer p.Stop()

	// Transport never opened: polls fail but the loop keeps going and
	// retries unfetched registers on every pass.
	for pass := 0; pass < 2; pass++ {
		clock.Advance(100 * time.Millisecond)
		for i := 0; i < 2; i++ {
			select {
			case ev := <-events:
				if ev.Error == "" || ev.Connected {
					t.Errorf("event = %+v, want disconnected error", ev)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for poll events")
			}
		}
	}
}

func TestPollerNoPolledRegisters(t *testing.T) {
	clock := newFakeClock()
	e := New(transport.NewLoopback(), Config{Clock: clock})

	empty, err := regmap.NewMap(regmap.NewGroup("root"))
	if err != nil {
		t.Fatalf("NewMap failed: %v", err)
	}
	if err := e.Attach(empty); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	p := NewPoller(e)
	p.Start()
	if _, made := clock.tickerInterval(); made {
		t.Error("poller should not tick with no polled registers")
	}
	p.Stop()
}

func TestPollerStopIsIdempotent(t *testing.T) {
	p, tr, clock, events := newPollerFixture(t)
	if err := tr.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	p.Start()
	clock.Advance(100 * time.Millisecond)
	pollPass(t, events, 2)

	p.Stop()
	p.Stop()

	select {
	case ev := <-events:
		t.Errorf("event after stop: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
