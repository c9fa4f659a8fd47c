package regmap

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the map in the key-value encoding understood by
// Load: the root group's children become the top-level object. Child
// order is preserved.
func (m *Map) MarshalJSON() ([]byte, error) {
	return m.root.MarshalJSON()
}

// MarshalJSON encodes the group as an object of child nodes in document
// order.
func (g *Group) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range g.Children() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(n.NodeName())
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var val []byte
		switch node := n.(type) {
		case *Register:
			val, err = node.MarshalJSON()
		case *Group:
			val, err = node.MarshalJSON()
		default:
			err = fmt.Errorf("unknown node kind %T", n)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes the register in the key-value encoding. Policy and
// poll-rate keys are emitted only when set; fields only when present.
func (r *Register) MarshalJSON() ([]byte, error) {
	out := struct {
		Addr       uint64               `json:"addr"`
		Size       uint32               `json:"size"`
		Desc       string               `json:"desc,omitempty"`
		Permission string               `json:"permission"`
		Policy     string               `json:"access_policy,omitempty"`
		PollRate   int                  `json:"poll_rate,omitempty"`
		Fields     map[string]jsonField `json:"fields,omitempty"`
	}{
		Addr:       r.Addr,
		Size:       r.Size,
		Desc:       r.Description,
		Permission: r.Permission,
		Policy:     r.Policy,
		PollRate:   r.PollIntervalMS,
	}

	if len(r.Fields) > 0 {
		out.Fields = make(map[string]jsonField, len(r.Fields))
		for _, f := range r.Fields {
			out.Fields[f.Name] = jsonField{
				Mask:       f.Mask,
				Desc:       f.Description,
				Permission: f.Permission,
			}
		}
	}

	return json.Marshal(out)
}
