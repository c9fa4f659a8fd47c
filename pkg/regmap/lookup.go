package regmap

import (
	"fmt"
	"strings"
)

// Resolve resolves a path expression to registers. The traversal is
// recomputed on each call; no cursor is retained.
//
// A path containing '/' is an exact path: it is split on the separator
// (a trailing separator is tolerated) and descended one segment at a
// time. Only the terminal segment may name a register; a missing
// segment, or a register in a non-terminal position, fails with
// ErrInvalidPath naming the offending segment. An exact path yields at
// most one register.
//
// A bare name fans out: every register anywhere in the tree whose name
// equals the path is returned. Name collisions across sub-trees are
// legal and all matches are returned.
func (m *Map) Resolve(path string) ([]*Register, error) {
	if !strings.Contains(path, "/") {
		var out []*Register
		findByName(m.root, path, &out)
		return out, nil
	}

	segments := strings.Split(path, "/")
	if segments[len(segments)-1] == "" {
		segments = segments[:len(segments)-1]
	}

	var current Node = m.root
	for i, seg := range segments {
		g, ok := current.(*Group)
		if !ok {
			// A register was resolved before the terminal segment.
			return nil, fmt.Errorf("%w: %q is not a group", ErrInvalidPath, segments[i-1])
		}
		child, ok := g.Child(seg)
		if !ok {
			return nil, fmt.Errorf("%w: segment %q not found", ErrInvalidPath, seg)
		}
		current = child
	}

	reg, ok := current.(*Register)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a register", ErrInvalidPath,
			segments[len(segments)-1])
	}
	return []*Register{reg}, nil
}

func findByName(g *Group, name string, out *[]*Register) {
	for _, n := range g.Children() {
		switch node := n.(type) {
		case *Register:
			if node.Name == name {
				*out = append(*out, node)
			}
		case *Group:
			findByName(node, name, out)
		}
	}
}

// PathOf returns the full slash path of the register within the map, or
// false if the register is not part of this map.
func (m *Map) PathOf(r *Register) (string, bool) {
	return pathOf(m.root, r, nil)
}

func pathOf(g *Group, target *Register, prefix []string) (string, bool) {
	for _, n := range g.Children() {
		switch node := n.(type) {
		case *Register:
			if node == target {
				return strings.Join(append(prefix, node.Name), "/"), true
			}
		case *Group:
			if p, ok := pathOf(node, target, append(prefix, node.Name)); ok {
				return p, true
			}
		}
	}
	return "", false
}
