// Package access implements policy-driven register access on top of a
// register map and a transport. Each register resolves to one of three
// access policies that decide when hardware is touched: static registers
// are fetched once, immediate registers on every read, polled registers
// in the background at a fixed rate.
//
// The Engine owns all runtime state (cached values, fetch timestamps,
// resolved policies); the register map itself stays immutable.
package access
