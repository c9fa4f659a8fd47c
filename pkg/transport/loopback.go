package transport

import (
	"fmt"
	"sync"
)

// Loopback is an in-memory Transport that echoes writes: a read returns
// whatever was last written at the address, and zeroes elsewhere. It is
// used for bring-up without hardware and throughout the test suite.
//
// Loopback is safe for concurrent use. The zero value is usable but
// starts disconnected; call Open first.
type Loopback struct {
	mu        sync.Mutex
	connected bool
	mem       map[uint64]byte

	readErr  error
	writeErr error
}

// NewLoopback creates a disconnected loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{}
}

// Open implements Transport.
func (l *Loopback) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mem == nil {
		l.mem = make(map[uint64]byte)
	}
	l.connected = true
	return nil
}

// Close implements Transport. The memory content survives a close so a
// reopen sees the same device state.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	return nil
}

// Connected implements Transport.
func (l *Loopback) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Read implements Transport.
func (l *Loopback) Read(addr uint64, length uint32) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected {
		return nil, ErrNotConnected
	}
	if l.readErr != nil {
		return nil, fmt.Errorf("loopback read 0x%X: %w", addr, l.readErr)
	}

	out := make([]byte, length)
	for i := range out {
		out[i] = l.mem[addr+uint64(i)]
	}
	return out, nil
}

// Write implements Transport.
func (l *Loopback) Write(addr uint64, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected {
		return ErrNotConnected
	}
	if l.writeErr != nil {
		return fmt.Errorf("loopback write 0x%X: %w", addr, l.writeErr)
	}

	for i, b := range data {
		l.mem[addr+uint64(i)] = b
	}
	return nil
}

// Preload seeds device memory without requiring the transport to be
// open, so tests can model registers with existing hardware state.
func (l *Loopback) Preload(addr uint64, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mem == nil {
		l.mem = make(map[uint64]byte)
	}
	for i, b := range data {
		l.mem[addr+uint64(i)] = b
	}
}

// SetReadError makes subsequent reads fail with err. Nil restores
// normal operation.
func (l *Loopback) SetReadError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readErr = err
}

// SetWriteError makes subsequent writes fail with err. Nil restores
// normal operation.
func (l *Loopback) SetWriteError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeErr = err
}

// Compile-time interface satisfaction check.
var _ Transport = (*Loopback)(nil)
