package transport

import "errors"

// Transport errors. Callers receive them wrapped; the access layer
// never interprets transport failures beyond the not-connected
// degradation rules.
var (
	// ErrNotConnected indicates an operation on a transport that is not
	// open.
	ErrNotConnected = errors.New("transport not connected")

	// ErrOutOfWindow indicates an access outside the mapped window.
	ErrOutOfWindow = errors.New("access outside transport window")

	// ErrDeviceAbsent indicates the backing device node does not exist.
	ErrDeviceAbsent = errors.New("device not present")
)

// Transport is the capability that performs physical memory access on
// behalf of the register access engine.
//
// Implementations must be safe for concurrent use: the polling
// scheduler and caller-initiated operations may issue reads and writes
// from different goroutines. Per-operation timeouts are the transport's
// own concern; the engine never retries a failed operation.
type Transport interface {
	// Open establishes the connection to the device.
	Open() error

	// Close releases the device. Closing an unopened transport is a
	// no-op.
	Close() error

	// Connected reports whether the transport is open and usable.
	Connected() bool

	// Read fetches length bytes starting at the absolute address.
	Read(addr uint64, length uint32) ([]byte, error)

	// Write stores data starting at the absolute address.
	Write(addr uint64, data []byte) error
}
