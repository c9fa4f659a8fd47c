package access

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fpga-tools/regaccess-go/pkg/log"
	"github.com/fpga-tools/regaccess-go/pkg/regmap"
	"github.com/fpga-tools/regaccess-go/pkg/transport"
)

// Config carries the engine's tunables. The zero value is usable:
// static default policy, one-second default poll interval, no event
// logging, system clock.
type Config struct {
	// DefaultPolicy applies to registers without a policy of their own.
	DefaultPolicy Policy

	// DefaultPollInterval applies to polled registers without an
	// interval of their own. Zero means DefaultPollInterval.
	DefaultPollInterval time.Duration

	// SessionID is stamped on every emitted event.
	SessionID string

	// Logger receives one event per operation. Nil disables logging.
	Logger log.Logger

	// Clock drives timestamps and the poller. Nil means system clock.
	Clock Clock
}

// regState is the runtime state of one attached register. The mutex
// serializes all value access for the register, which makes field
// read-modify-write atomic with respect to concurrent writers.
type regState struct {
	mu       sync.Mutex
	policy   Policy
	interval time.Duration
	value    uint64
	fetched  bool
	lastRead time.Time
}

// Engine performs policy-driven register access. Create one with New,
// attach a register map once, then read and write through it. All
// methods are safe for concurrent use.
type Engine struct {
	tr     transport.Transport
	logger log.Logger
	clock  Clock

	defaultPolicy   Policy
	defaultInterval time.Duration
	sessionID       string

	mu     sync.RWMutex
	rmap   *regmap.Map
	states map[*regmap.Register]*regState
}

// New creates an Engine over the given transport.
func New(tr transport.Transport, cfg Config) *Engine {
	e := &Engine{
		tr:              tr,
		logger:          cfg.Logger,
		clock:           cfg.Clock,
		defaultPolicy:   cfg.DefaultPolicy,
		defaultInterval: cfg.DefaultPollInterval,
		sessionID:       cfg.SessionID,
	}
	if e.logger == nil {
		e.logger = log.NoopLogger{}
	}
	if e.clock == nil {
		e.clock = NewClock()
	}
	if e.defaultInterval <= 0 {
		e.defaultInterval = DefaultPollInterval
	}
	return e
}

// Attach binds the engine to a register map, resolving every register's
// policy string to its enumeration and clamping poll intervals to
// MinPollInterval. Attach may be called once; the map must not change
// afterwards.
func (e *Engine) Attach(m *regmap.Map) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rmap != nil {
		return ErrAlreadyAttached
	}

	states := make(map[*regmap.Register]*regState, m.Len())
	for _, r := range m.Registers() {
		st := &regState{
			policy:   e.defaultPolicy,
			interval: e.defaultInterval,
		}
		if r.Policy != "" {
			p, err := ParsePolicy(r.Policy)
			if err != nil {
				return fmt.Errorf("register %q: %w", r.Name, err)
			}
			st.policy = p
		}
		if r.PollIntervalMS > 0 {
			st.interval = time.Duration(r.PollIntervalMS) * time.Millisecond
		}
		if st.interval < MinPollInterval {
			st.interval = MinPollInterval
		}
		states[r] = st
	}

	e.rmap = m
	e.states = states
	return nil
}

// Map returns the attached register map, or nil before Attach.
func (e *Engine) Map() *regmap.Map {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rmap
}

// State is a snapshot of one register's runtime state.
type State struct {
	Policy       Policy
	PollInterval time.Duration
	Value        uint64
	Fetched      bool
	LastRead     time.Time
}

// State returns a snapshot of the register's runtime state.
func (e *Engine) State(r *regmap.Register) (State, error) {
	st, err := e.stateOf(r)
	if err != nil {
		return State{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return State{
		Policy:       st.policy,
		PollInterval: st.interval,
		Value:        st.value,
		Fetched:      st.fetched,
		LastRead:     st.lastRead,
	}, nil
}

func (e *Engine) stateOf(r *regmap.Register) (*regState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.states[r]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAttached, r.Name)
	}
	return st, nil
}

// Read returns the register's value according to its access policy.
// Static registers fetch once and cache, immediate registers fetch on
// every call, polled registers serve the cache the poller maintains.
// With the transport disconnected the cached value is served instead,
// whatever the policy.
func (e *Engine) Read(r *regmap.Register) (uint64, error) {
	st, err := e.stateOf(r)
	if err != nil {
		return 0, err
	}
	if !r.Access.CanRead() {
		return 0, fmt.Errorf("%w: %s", ErrNotReadable, r.Name)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return e.readLocked(r, st, log.OpRead, "")
}

// readLocked serves a read under st.mu, fetching from hardware when the
// policy calls for it and the transport is up.
func (e *Engine) readLocked(r *regmap.Register, st *regState, op log.Op, field string) (uint64, error) {
	wantFetch := false
	switch st.policy {
	case PolicyImmediate:
		wantFetch = true
	case PolicyStatic:
		wantFetch = !st.fetched
	case PolicyPolled:
		// The poller keeps the cache fresh.
	}

	connected := e.tr.Connected()
	ev := log.Event{
		Timestamp: e.clock.Now(),
		SessionID: e.sessionID,
		Op:        op,
		Origin:    log.OriginCaller,
		Register:  r.Name,
		Addr:      r.Addr,
		Field:     field,
		Policy:    st.policy.String(),
		Connected: connected,
	}

	if wantFetch && connected {
		if err := e.fetchLocked(r, st, &ev); err != nil {
			ev.Error = err.Error()
			e.logger.Log(ev)
			return 0, err
		}
	}

	ev.Value = st.value
	e.logger.Log(ev)
	return st.value, nil
}

// fetchLocked reads the register from hardware and refreshes the cache.
// Caller holds st.mu.
func (e *Engine) fetchLocked(r *regmap.Register, st *regState, ev *log.Event) error {
	start := e.clock.Now()
	data, err := e.tr.Read(r.Addr, r.Size)
	if err != nil {
		return fmt.Errorf("read register %q at 0x%X: %w", r.Name, r.Addr, err)
	}
	st.value = decodeLE(data)
	st.fetched = true
	st.lastRead = e.clock.Now()
	if ev != nil {
		ev.Fetched = true
		ev.Latency = e.clock.Now().Sub(start)
	}
	return nil
}

// Write writes the register's value and refreshes the cache. Readable
// registers are read back after the write so the cache reflects what
// the hardware actually latched; write-only registers shadow the
// written value instead.
func (e *Engine) Write(r *regmap.Register, value uint64) error {
	st, err := e.stateOf(r)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return e.writeLocked(r, st, value, log.OpWrite, "")
}

func (e *Engine) writeLocked(r *regmap.Register, st *regState, value uint64, op log.Op, field string) error {
	ev := log.Event{
		Timestamp: e.clock.Now(),
		SessionID: e.sessionID,
		Op:        op,
		Origin:    log.OriginCaller,
		Register:  r.Name,
		Addr:      r.Addr,
		Field:     field,
		Policy:    st.policy.String(),
		Value:     value,
		Connected: e.tr.Connected(),
	}

	err := func() error {
		if !r.Access.CanWrite() {
			return fmt.Errorf("%w: %s", ErrNotWritable, r.Name)
		}
		if max := maxForSize(r.Size); value > max {
			return fmt.Errorf("%w: 0x%X exceeds %d-byte register %q",
				ErrValueRange, value, r.Size, r.Name)
		}
		if !e.tr.Connected() {
			return fmt.Errorf("write register %q: %w", r.Name, transport.ErrNotConnected)
		}

		start := e.clock.Now()
		if err := e.tr.Write(r.Addr, encodeLE(value, r.Size)); err != nil {
			return fmt.Errorf("write register %q at 0x%X: %w", r.Name, r.Addr, err)
		}
		ev.Fetched = true
		ev.Latency = e.clock.Now().Sub(start)

		if r.Access.CanRead() {
			return e.fetchLocked(r, st, nil)
		}
		st.value = value
		st.fetched = true
		st.lastRead = e.clock.Now()
		return nil
	}()

	if err != nil {
		ev.Error = err.Error()
	} else {
		ev.Value = st.value
	}
	e.logger.Log(ev)
	return err
}

// ReadField returns the named bit field's value, extracted from the
// register value the policy yields.
func (e *Engine) ReadField(r *regmap.Register, name string) (uint64, error) {
	st, err := e.stateOf(r)
	if err != nil {
		return 0, err
	}
	f, ok := r.Field(name)
	if !ok {
		return 0, fmt.Errorf("%w: field %q of register %q", regmap.ErrNotFound, name, r.Name)
	}
	if !f.Access.CanRead() {
		return 0, fmt.Errorf("%w: field %q of register %q", ErrNotReadable, name, r.Name)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	v, err := e.readLocked(r, st, log.OpFieldRead, name)
	if err != nil {
		return 0, err
	}
	return (v & f.Mask) >> f.Shift(), nil
}

// WriteField writes the named bit field, leaving the register's other
// bits untouched. The read-modify-write runs against the cached value
// under the register's lock, so concurrent field writes to the same
// register never clobber each other.
func (e *Engine) WriteField(r *regmap.Register, name string, value uint64) error {
	st, err := e.stateOf(r)
	if err != nil {
		return err
	}
	f, ok := r.Field(name)
	if !ok {
		return fmt.Errorf("%w: field %q of register %q", regmap.ErrNotFound, name, r.Name)
	}
	if !f.Access.CanWrite() {
		return fmt.Errorf("%w: field %q of register %q", ErrNotWritable, name, r.Name)
	}
	if value > f.Max() {
		return fmt.Errorf("%w: 0x%X exceeds field %q (max 0x%X)",
			ErrValueRange, value, name, f.Max())
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	merged := (st.value &^ f.Mask) | (value << f.Shift() & f.Mask)
	return e.writeLocked(r, st, merged, log.OpFieldWrite, name)
}

// ReadAll force-fetches every readable register, refreshing the whole
// cache in one pass. Failures are collected, not fatal to the pass.
func (e *Engine) ReadAll() error {
	e.mu.RLock()
	m := e.rmap
	e.mu.RUnlock()
	if m == nil {
		return ErrNotAttached
	}

	var errs []error
	for _, r := range m.Registers() {
		if !r.Access.CanRead() {
			continue
		}
		st, err := e.stateOf(r)
		if err != nil {
			return err
		}
		st.mu.Lock()
		ev := log.Event{
			Timestamp: e.clock.Now(),
			SessionID: e.sessionID,
			Op:        log.OpRead,
			Origin:    log.OriginCaller,
			Register:  r.Name,
			Addr:      r.Addr,
			Policy:    st.policy.String(),
			Connected: e.tr.Connected(),
		}
		err = e.fetchLocked(r, st, &ev)
		if err != nil {
			ev.Error = err.Error()
			errs = append(errs, err)
		} else {
			ev.Value = st.value
		}
		e.logger.Log(ev)
		st.mu.Unlock()
	}
	return errors.Join(errs...)
}

// polled returns the registers the poller has to refresh, paired with
// their intervals.
func (e *Engine) polled() map[*regmap.Register]*regState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[*regmap.Register]*regState)
	for r, st := range e.states {
		if st.policy == PolicyPolled && r.Access.CanRead() {
			out[r] = st
		}
	}
	return out
}

// pollOnce refreshes one polled register on behalf of the scheduler.
func (e *Engine) pollOnce(r *regmap.Register, st *regState) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	ev := log.Event{
		Timestamp: e.clock.Now(),
		SessionID: e.sessionID,
		Op:        log.OpPoll,
		Origin:    log.OriginPoller,
		Register:  r.Name,
		Addr:      r.Addr,
		Policy:    st.policy.String(),
		Connected: e.tr.Connected(),
	}
	if !e.tr.Connected() {
		ev.Error = transport.ErrNotConnected.Error()
		e.logger.Log(ev)
		return transport.ErrNotConnected
	}
	if err := e.fetchLocked(r, st, &ev); err != nil {
		ev.Error = err.Error()
		e.logger.Log(ev)
		return err
	}
	ev.Value = st.value
	e.logger.Log(ev)
	return nil
}

// decodeLE decodes a little-endian register value. Registers wider than
// 8 bytes keep only the low 8; an empty buffer decodes to zero.
func decodeLE(data []byte) uint64 {
	var v uint64
	for i := 0; i < len(data) && i < 8; i++ {
		v |= uint64(data[i]) << (8 * i)
	}
	return v
}

// encodeLE encodes a value into a little-endian buffer of the register's
// byte size.
func encodeLE(value uint64, size uint32) []byte {
	buf := make([]byte, size)
	if size >= 8 {
		binary.LittleEndian.PutUint64(buf, value)
		return buf
	}
	for i := uint32(0); i < size; i++ {
		buf[i] = byte(value >> (8 * i))
	}
	return buf
}

// maxForSize returns the largest value a register of the given byte
// size can hold.
func maxForSize(size uint32) uint64 {
	if size >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*size) - 1
}
