// Package log provides structured logging of register access events.
//
// Every hardware-touching operation (caller reads and writes, field
// access, poll refreshes, transport open/close) can be captured as an
// Event and handed to a Logger. Applications choose the sink: discard
// (NoopLogger), the process slog logger (SlogAdapter), or a compact
// CBOR file (FileLogger) that Reader can filter and replay later for
// bus-traffic analysis.
package log
