package access

import (
	"sync"
	"time"

	"github.com/fpga-tools/regaccess-go/pkg/regmap"
)

// Poller refreshes polled registers in the background. It ticks at the
// greatest common divisor of all polled intervals, so every interval is
// hit exactly without per-register timers.
type Poller struct {
	engine *Engine
	clock  Clock

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewPoller creates a Poller for the engine's polled registers. The
// engine must be attached before Start.
func NewPoller(e *Engine) *Poller {
	return &Poller{
		engine: e,
		clock:  e.clock,
	}
}

// Start launches the background refresh loop. It is a no-op when the
// map has no polled registers. Start after Start is a no-op too.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	targets := p.engine.polled()
	if len(targets) == 0 {
		return
	}

	base := baseTick(targets)
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	p.running = true
	go p.run(targets, base, p.stopCh, p.done)
}

// Stop halts the refresh loop and waits for it to exit. Stopping an
// idle poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stopCh, done := p.stopCh, p.done
	p.mu.Unlock()

	close(stopCh)
	<-done
}

func (p *Poller) run(targets map[*regmap.Register]*regState, base time.Duration, stopCh, done chan struct{}) {
	defer close(done)

	ticker := p.clock.NewTicker(base)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C():
			now := p.clock.Now()
			for r, st := range targets {
				if due(st, now) {
					// Errors are logged by the engine; one failing
					// register must not starve the rest.
					_ = p.engine.pollOnce(r, st)
				}
			}
		}
	}
}

func due(st *regState, now time.Time) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return !st.fetched || now.Sub(st.lastRead) >= st.interval
}

// baseTick returns the greatest common divisor of the polled intervals.
// Intervals are clamped to MinPollInterval at attach time, so the
// result never falls below it.
func baseTick(targets map[*regmap.Register]*regState) time.Duration {
	var base time.Duration
	for _, st := range targets {
		if base == 0 {
			base = st.interval
			continue
		}
		base = gcd(base, st.interval)
	}
	return base
}

func gcd(a, b time.Duration) time.Duration {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
