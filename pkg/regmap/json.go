package regmap

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// jsonRegister is the key-value encoding of a register, as produced by
// the convert tool and consumed directly by firmware deployments.
type jsonRegister struct {
	Addr       *uint64 `json:"addr"`
	Size       *uint32 `json:"size"`
	Desc       string  `json:"desc"`
	Permission string  `json:"permission"`
	Policy     string  `json:"access_policy"`
	PollRate   int     `json:"poll_rate"`
}

type jsonField struct {
	Mask       uint64 `json:"mask"`
	Desc       string `json:"desc"`
	Permission string `json:"permission"`
}

// member is one key of a JSON object with its raw value, in document
// order. encoding/json maps do not preserve order, so objects are
// walked with a token decoder instead.
type member struct {
	key string
	raw json.RawMessage
}

func parseJSONMap(data []byte) (*Group, error) {
	members, err := objectMembers(data)
	if err != nil {
		return nil, err
	}
	return parseJSONGroup("", members)
}

func parseJSONGroup(name string, members []member) (*Group, error) {
	g := NewGroup(name)
	for _, m := range members {
		node, err := parseJSONNode(m.key, m.raw)
		if err != nil {
			return nil, err
		}
		g.add(node)
	}
	return g, nil
}

// parseJSONNode converts one object into a model node. An object is a
// register iff it carries an "addr" key; otherwise it is a namespace of
// sub-registers.
func parseJSONNode(name string, raw json.RawMessage) (Node, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: node %q: %v", ErrMalformed, name, err)
	}

	if _, isRegister := probe["addr"]; !isRegister {
		members, err := objectMembers(raw)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", name, err)
		}
		return parseJSONGroup(name, members)
	}

	var jr jsonRegister
	if err := json.Unmarshal(raw, &jr); err != nil {
		return nil, fmt.Errorf("%w: register %q: %v", ErrMalformed, name, err)
	}
	if jr.Addr == nil {
		return nil, fmt.Errorf("%w: register %q: bad addr", ErrMalformed, name)
	}

	size := uint32(WordSize)
	if jr.Size != nil {
		size = *jr.Size
	}

	var fields []BitField
	if rawFields, ok := probe["fields"]; ok {
		fieldMembers, err := objectMembers(rawFields)
		if err != nil {
			return nil, fmt.Errorf("register %q: fields: %w", name, err)
		}
		for _, fm := range fieldMembers {
			var jf jsonField
			if err := json.Unmarshal(fm.raw, &jf); err != nil {
				return nil, fmt.Errorf("%w: field %q of register %q: %v",
					ErrMalformed, fm.key, name, err)
			}
			perm := jf.Permission
			if perm == "" {
				perm = "r"
			}
			fields = append(fields, BitField{
				Name:        fm.key,
				Description: jf.Desc,
				Permission:  perm,
				Access:      ParseAccess(perm),
				Mask:        jf.Mask,
			})
		}
	}

	r := &Register{
		Name:           name,
		Description:    jr.Desc,
		Permission:     jr.Permission,
		Access:         ParseAccess(jr.Permission),
		Addr:           *jr.Addr,
		Size:           size,
		Fields:         fields,
		Policy:         jr.Policy,
		PollIntervalMS: jr.PollRate,
	}
	if err := validateRegister(r); err != nil {
		return nil, err
	}
	return r, nil
}

// objectMembers decodes a JSON object into key order-preserving members.
func objectMembers(data []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected object, got %v", ErrMalformed, tok)
	}

	var members []member
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string object key %v", ErrMalformed, keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: value of %q: %v", ErrMalformed, key, err)
		}
		members = append(members, member{key: key, raw: raw})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return members, nil
}
