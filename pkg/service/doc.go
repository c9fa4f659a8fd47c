// Package service wires the register map, access engine, poller and
// transport into one lifecycle, and exposes a path-addressed query
// surface on top. Callers work in names ("ctrl/control/enable"), not
// addresses.
package service
