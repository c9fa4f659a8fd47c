// Package transport defines the capability the access engine uses to
// reach physical device memory, plus the bundled implementations.
//
// A Transport exposes exactly five operations: Open, Close, Connected,
// Read, and Write. The access layer never depends on which
// implementation backs the capability and degrades gracefully whenever
// Connected reports false.
//
// Two implementations ship with the package: Loopback, a thread-safe
// in-memory window that echoes writes (bring-up and tests), and XDMA, a
// memory-mapped window over a /dev/xdmaN_user character device on
// Linux.
package transport
