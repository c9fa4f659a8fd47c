package regmap

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Attribute keys of the element-attribute encoding, matching the
// firmware-generated XML register definition files.
const (
	xmlNameKey = "id"
	xmlAddrKey = "absolute_offset"
	xmlDescKey = "description"
	xmlPermKey = "permission"
	xmlSizeKey = "size"
	xmlMaskKey = "mask"
)

// xmlElement is a generic view of one document element. The encoding is
// schema-less: the same element shape serves groups, registers, and
// fields, distinguished per node by the rule in parseXMLNode.
type xmlElement struct {
	XMLName  xml.Name
	Attrs    []xml.Attr   `xml:",any,attr"`
	Children []xmlElement `xml:",any"`
}

func (e *xmlElement) attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == key {
			return a.Value, true
		}
	}
	return "", false
}

func parseXMLMap(data []byte) (*Group, error) {
	var root xmlElement
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	node, err := parseXMLNode(&root)
	if err != nil {
		return nil, err
	}

	// A document whose root element is itself a register still needs a
	// group to hang from.
	switch n := node.(type) {
	case *Group:
		return n, nil
	case *Register:
		g := NewGroup("")
		g.add(n)
		return g, nil
	}
	return nil, fmt.Errorf("%w: unparsable document root", ErrMalformed)
}

// parseXMLNode converts one element into a model node. The children of
// an element are its bit fields iff the first child carries a mask
// attribute, is not itself an address-bearing node, and sits at the
// parent's own address; otherwise the children are sub-registers of a
// namespace node. The rule is applied per node, since one map can mix
// both layouts.
func parseXMLNode(e *xmlElement) (Node, error) {
	name, _ := e.attr(xmlNameKey)

	if len(e.Children) > 0 && !childrenAreFields(e) {
		g := NewGroup(name)
		for i := range e.Children {
			child, err := parseXMLNode(&e.Children[i])
			if err != nil {
				return nil, err
			}
			g.add(child)
		}
		return g, nil
	}

	var fields []BitField
	for i := range e.Children {
		f, err := parseXMLField(&e.Children[i])
		if err != nil {
			return nil, fmt.Errorf("register %q: %w", name, err)
		}
		fields = append(fields, f)
	}

	return parseXMLRegister(e, fields)
}

func childrenAreFields(e *xmlElement) bool {
	first := &e.Children[0]
	_, hasMask := first.attr(xmlMaskKey)
	_, hasAddress := first.attr("address")
	firstOffset, _ := first.attr(xmlAddrKey)
	parentOffset, _ := e.attr(xmlAddrKey)
	return hasMask && !hasAddress && firstOffset == parentOffset
}

func parseXMLRegister(e *xmlElement, fields []BitField) (*Register, error) {
	name, _ := e.attr(xmlNameKey)

	addrStr, ok := e.attr(xmlAddrKey)
	if !ok {
		return nil, fmt.Errorf("%w: register %q has no %s attribute",
			ErrMalformed, name, xmlAddrKey)
	}
	addr, err := parseHex(addrStr)
	if err != nil {
		return nil, fmt.Errorf("%w: register %q: bad address %q",
			ErrMalformed, name, addrStr)
	}

	words := 1
	if sizeStr, ok := e.attr(xmlSizeKey); ok {
		words, err = strconv.Atoi(sizeStr)
		if err != nil || words <= 0 {
			return nil, fmt.Errorf("%w: register %q: bad size %q",
				ErrMalformed, name, sizeStr)
		}
	}

	desc, _ := e.attr(xmlDescKey)
	perm, _ := e.attr(xmlPermKey)

	r := &Register{
		Name:        name,
		Description: desc,
		Permission:  perm,
		Access:      ParseAccess(perm),
		Addr:        addr,
		Size:        uint32(words) * WordSize,
		Fields:      fields,
	}
	if err := validateRegister(r); err != nil {
		return nil, err
	}
	return r, nil
}

func parseXMLField(e *xmlElement) (BitField, error) {
	name, _ := e.attr(xmlNameKey)

	maskStr, ok := e.attr(xmlMaskKey)
	if !ok {
		return BitField{}, fmt.Errorf("%w: field %q has no mask", ErrMalformed, name)
	}
	mask, err := parseHex(maskStr)
	if err != nil {
		return BitField{}, fmt.Errorf("%w: field %q: bad mask %q",
			ErrMalformed, name, maskStr)
	}

	desc, _ := e.attr(xmlDescKey)
	perm, ok := e.attr(xmlPermKey)
	if !ok {
		perm = "r"
	}

	return BitField{
		Name:        name,
		Description: desc,
		Permission:  perm,
		Access:      ParseAccess(perm),
		Mask:        mask,
	}, nil
}

// parseHex parses a base-16 value with or without a 0x prefix, matching
// the firmware files which use both spellings.
func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}
