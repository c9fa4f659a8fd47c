package regmap

import (
	"fmt"
	"math/bits"
	"strings"
)

// Access flags for registers and bit fields.
type Access uint8

const (
	// AccessRead allows reading the value.
	AccessRead Access = 1 << iota

	// AccessWrite allows writing the value.
	AccessWrite
)

// ParseAccess derives access flags from a firmware permission string.
// The test is a case-insensitive substring check for 'r' and 'w', so
// "rw", "RW", "read/write" all decompose the same way. A node with
// neither flag is legal but unusable for value access.
func ParseAccess(permission string) Access {
	var a Access
	p := strings.ToLower(permission)
	if strings.Contains(p, "r") {
		a |= AccessRead
	}
	if strings.Contains(p, "w") {
		a |= AccessWrite
	}
	return a
}

// CanRead returns true if reading is allowed.
func (a Access) CanRead() bool { return a&AccessRead != 0 }

// CanWrite returns true if writing is allowed.
func (a Access) CanWrite() bool { return a&AccessWrite != 0 }

// String returns the access flags as a string.
func (a Access) String() string {
	var s string
	if a.CanRead() {
		s += "R"
	}
	if a.CanWrite() {
		s += "W"
	}
	if s == "" {
		return "-"
	}
	return s
}

// Node is one entry in the address-space tree: either a *Register leaf
// or a *Group namespace. Traversal sites switch exhaustively on the two
// variants.
type Node interface {
	// NodeName returns the node's name within its parent.
	NodeName() string
}

// BitField is a named, masked sub-range of bits within a Register's
// value. It owns no storage; it is a read/write lens into the owning
// register's cached value.
type BitField struct {
	// Name is the field identifier within the register.
	Name string

	// Description is a human-readable description.
	Description string

	// Permission is the raw permission string from the map document.
	Permission string

	// Access is the decomposed permission.
	Access Access

	// Mask selects the bits the field relates to. Non-zero, and all set
	// bits fall within the owning register's width (load-time checked).
	Mask uint64
}

// Shift returns the number of trailing zero bits in the mask, i.e. how
// far a masked value must be shifted right to recover the field value.
func (f BitField) Shift() uint {
	return uint(bits.TrailingZeros64(f.Mask))
}

// Max returns the largest value the field can hold.
func (f BitField) Max() uint64 {
	return f.Mask >> f.Shift()
}

// Register is an addressable, sized unit of device memory. Registers are
// immutable after load; runtime state (cached value, last-read time) is
// owned by the access engine, not the model.
type Register struct {
	// Name is the register identifier within its parent group.
	Name string

	// Description is a human-readable description.
	Description string

	// Permission is the raw permission string from the map document.
	Permission string

	// Access is the decomposed permission.
	Access Access

	// Addr is the absolute byte offset of the register. Unique across
	// the whole tree.
	Addr uint64

	// Size is the register width in bytes, always a positive multiple
	// of 4 in the supported encodings.
	Size uint32

	// Fields holds the register's bit fields in document order, empty
	// for plain registers.
	Fields []BitField

	// Policy is the raw access-policy string from the map or overwrite
	// document. Empty means "use the engine's default". The string is
	// converted to a closed enumeration once, at attach time.
	Policy string

	// PollIntervalMS is the requested poll interval in milliseconds for
	// polled registers. Zero means "use the engine's default".
	PollIntervalMS int
}

// NodeName implements Node.
func (r *Register) NodeName() string { return r.Name }

// Field returns the named bit field, or false if absent.
func (r *Register) Field(name string) (BitField, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return BitField{}, false
}

func (r *Register) String() string {
	return fmt.Sprintf("%s@0x%08X[%d]%s", r.Name, r.Addr, r.Size, r.Access)
}

// Group is a namespace node holding an ordered set of child nodes.
type Group struct {
	// Name is the group identifier within its parent.
	Name string

	order    []string
	children map[string]Node
}

// NewGroup creates an empty group.
func NewGroup(name string) *Group {
	return &Group{
		Name:     name,
		children: make(map[string]Node),
	}
}

// NodeName implements Node.
func (g *Group) NodeName() string { return g.Name }

// Child returns the named child node, or false if absent.
func (g *Group) Child(name string) (Node, bool) {
	n, ok := g.children[name]
	return n, ok
}

// Children returns the child nodes in document order.
func (g *Group) Children() []Node {
	out := make([]Node, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.children[name])
	}
	return out
}

// Len returns the number of direct children.
func (g *Group) Len() int { return len(g.order) }

func (g *Group) add(n Node) {
	name := n.NodeName()
	if _, exists := g.children[name]; !exists {
		g.order = append(g.order, name)
	}
	g.children[name] = n
}

// Map is the loaded address-space model: a root group plus a flat
// address index. Construct one with Load; a Map is immutable afterwards.
type Map struct {
	root   *Group
	byAddr map[uint64]*Register
}

// NewMap builds a Map around the given root group, indexing every
// register by address. It fails with ErrDuplicateAddress if two
// registers share an address.
func NewMap(root *Group) (*Map, error) {
	m := &Map{
		root:   root,
		byAddr: make(map[uint64]*Register),
	}
	if err := m.index(root); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Map) index(g *Group) error {
	for _, n := range g.Children() {
		switch node := n.(type) {
		case *Register:
			if prev, dup := m.byAddr[node.Addr]; dup {
				return fmt.Errorf("%w: 0x%X used by %q and %q",
					ErrDuplicateAddress, node.Addr, prev.Name, node.Name)
			}
			m.byAddr[node.Addr] = node
		case *Group:
			if err := m.index(node); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown node kind %T", ErrMalformed, n)
		}
	}
	return nil
}

// Root returns the root group.
func (m *Map) Root() *Group { return m.root }

// ByAddress returns the register at the given absolute address.
func (m *Map) ByAddress(addr uint64) (*Register, bool) {
	r, ok := m.byAddr[addr]
	return r, ok
}

// Len returns the total number of registers in the map.
func (m *Map) Len() int { return len(m.byAddr) }

// Registers returns every register in tree order. The slice is rebuilt
// on each call so it always reflects the current tree.
func (m *Map) Registers() []*Register {
	var out []*Register
	collectRegisters(m.root, &out)
	return out
}

func collectRegisters(g *Group, out *[]*Register) {
	for _, n := range g.Children() {
		switch node := n.(type) {
		case *Register:
			*out = append(*out, node)
		case *Group:
			collectRegisters(node, out)
		}
	}
}
