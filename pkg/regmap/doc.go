// Package regmap models a firmware-authored register map as a tree of
// named, addressable memory nodes.
//
// A map document (XML or JSON, see Load) is parsed once at startup into a
// Map: an immutable tree whose interior nodes are Groups (namespaces) and
// whose leaves are Registers, each optionally carrying a set of BitFields.
// An optional policy-overwrite document adjusts per-register access
// policies after the tree is built.
//
// The package is intentionally a pure data container. It knows nothing
// about transports, caching, or polling; all of that lives in pkg/access
// so the same representation can back future transports.
package regmap
