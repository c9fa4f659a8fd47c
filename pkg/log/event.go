package log

import "time"

// Event is one register access event. CBOR encoding uses integer keys
// for compactness; a one-hour poll log at 100ms cadence is tens of
// thousands of events.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the service session that produced the event
	// (UUID).
	SessionID string `cbor:"2,keyasint,omitempty"`

	// Op is the operation kind.
	Op Op `cbor:"3,keyasint"`

	// Origin indicates whether a caller or the polling scheduler
	// initiated the operation.
	Origin Origin `cbor:"4,keyasint"`

	// Register is the register name, empty for transport-level events.
	Register string `cbor:"5,keyasint,omitempty"`

	// Addr is the register's absolute address.
	Addr uint64 `cbor:"6,keyasint,omitempty"`

	// Field is the bit field name for field operations.
	Field string `cbor:"7,keyasint,omitempty"`

	// Policy is the register's resolved access policy name.
	Policy string `cbor:"8,keyasint,omitempty"`

	// Value is the value read or written.
	Value uint64 `cbor:"9,keyasint,omitempty"`

	// Fetched is true when the operation touched hardware, false when
	// it was served from the cache.
	Fetched bool `cbor:"10,keyasint,omitempty"`

	// Connected is the transport connection state at event time.
	Connected bool `cbor:"11,keyasint,omitempty"`

	// Latency is the hardware access duration, zero for cache hits.
	Latency time.Duration `cbor:"12,keyasint,omitempty"`

	// Error is the failure message, empty on success.
	Error string `cbor:"13,keyasint,omitempty"`
}

// Op is the operation kind of an access event.
type Op uint8

const (
	// OpRead is a caller-initiated register read.
	OpRead Op = 0
	// OpWrite is a caller-initiated register write.
	OpWrite Op = 1
	// OpFieldRead is a bit field read.
	OpFieldRead Op = 2
	// OpFieldWrite is a bit field read-modify-write.
	OpFieldWrite Op = 3
	// OpPoll is a scheduler-initiated refresh.
	OpPoll Op = 4
	// OpOpen is a transport open.
	OpOpen Op = 5
	// OpClose is a transport close.
	OpClose Op = 6
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpFieldRead:
		return "FIELD_READ"
	case OpFieldWrite:
		return "FIELD_WRITE"
	case OpPoll:
		return "POLL"
	case OpOpen:
		return "OPEN"
	case OpClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// Origin indicates which actor initiated an operation.
type Origin uint8

const (
	// OriginCaller is a foreground caller operation.
	OriginCaller Origin = 0
	// OriginPoller is the background polling scheduler.
	OriginPoller Origin = 1
)

// String returns the origin name.
func (o Origin) String() string {
	switch o {
	case OriginCaller:
		return "CALLER"
	case OriginPoller:
		return "POLLER"
	default:
		return "UNKNOWN"
	}
}
