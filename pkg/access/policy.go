package access

import (
	"fmt"
	"strings"
	"time"
)

// Policy decides when a register read touches hardware.
type Policy uint8

const (
	// PolicyStatic fetches the register once on first read and serves
	// the cache afterwards. Suitable for build IDs, version words and
	// other values that never change while the device is up.
	PolicyStatic Policy = iota
	// PolicyImmediate fetches the register on every read.
	PolicyImmediate
	// PolicyPolled serves reads from the cache, which the background
	// poller refreshes at the register's poll interval.
	PolicyPolled
)

const (
	// MinPollInterval is the floor for per-register poll intervals.
	// Requested intervals below it are clamped, not rejected.
	MinPollInterval = 100 * time.Millisecond

	// DefaultPollInterval applies to polled registers that do not carry
	// an interval of their own.
	DefaultPollInterval = time.Second
)

// String returns the canonical policy name.
func (p Policy) String() string {
	switch p {
	case PolicyStatic:
		return "static"
	case PolicyImmediate:
		return "immediate"
	case PolicyPolled:
		return "polled"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a policy name to a Policy. Both the canonical
// names and their legacy aliases are accepted, case-insensitively:
// "static"/"once", "immediate"/"direct", "polled"/"looped".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "static", "once":
		return PolicyStatic, nil
	case "immediate", "direct":
		return PolicyImmediate, nil
	case "polled", "looped":
		return PolicyPolled, nil
	default:
		return PolicyStatic, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}
