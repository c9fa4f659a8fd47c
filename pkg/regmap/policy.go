package regmap

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// PolicyOverride adjusts one register's access policy. Both keys are
// optional; a zero value leaves the register's existing setting alone.
type PolicyOverride struct {
	// Policy is the access-policy name (static/once, immediate/direct,
	// polled/looped).
	Policy string `json:"policy,omitempty"`

	// Frequency is the poll interval in milliseconds for polled
	// registers.
	Frequency int `json:"frequency,omitempty"`
}

// PolicyDoc is a policy-overwrite document: overrides keyed by register
// name or by full slash path. A bare name fans out to every register
// with that name.
type PolicyDoc map[string]PolicyOverride

// LoadPolicyDoc reads a policy-overwrite document from a JSON file.
func LoadPolicyDoc(path string) (PolicyDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc PolicyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: policy document %s: %v", ErrMalformed, path, err)
	}
	return doc, nil
}

// ApplyPolicy merges a policy-overwrite document into the map, applied
// exactly once during load. Keys that resolve to no register are logged
// and skipped, never fatal.
func (l *Loader) ApplyPolicy(m *Map, doc PolicyDoc) {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		override := doc[key]
		regs, err := m.Resolve(key)
		if err != nil || len(regs) == 0 {
			l.logger().Warn("policy overwrite key does not resolve", "key", key)
			continue
		}
		for _, reg := range regs {
			if override.Policy != "" {
				reg.Policy = override.Policy
			}
			if override.Frequency != 0 {
				reg.PollIntervalMS = override.Frequency
			}
		}
	}
}
