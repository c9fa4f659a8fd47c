package regmap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// WordSize is the register size granularity in bytes. Encoded XML sizes
// are counts of 32-bit words; a missing size defaults to one word.
const WordSize = 4

// A Loader parses register map documents into a Map.
// The zero value is ready to use.
type Loader struct {
	// Logger receives warnings for non-fatal load issues such as
	// unresolvable policy-overwrite keys. Nil means slog.Default().
	Logger *slog.Logger
}

// Load parses the map document at mapPath. The encoding is chosen by
// file extension: ".xml" selects the element-attribute encoding, ".json"
// the key-value encoding.
func (l *Loader) Load(mapPath string) (*Map, error) {
	data, err := os.ReadFile(mapPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, mapPath)
		}
		return nil, fmt.Errorf("reading register map %s: %w", mapPath, err)
	}

	var root *Group
	switch strings.ToLower(filepath.Ext(mapPath)) {
	case ".xml":
		root, err = parseXMLMap(data)
	case ".json":
		root, err = parseJSONMap(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, mapPath)
	}
	if err != nil {
		return nil, err
	}

	return NewMap(root)
}

// LoadWithPolicy parses the map document and then merges the policy
// overwrite document at policyPath into it. An empty policyPath loads
// the map alone; a missing policy file is a warning, not an error.
func (l *Loader) LoadWithPolicy(mapPath, policyPath string) (*Map, error) {
	m, err := l.Load(mapPath)
	if err != nil {
		return nil, err
	}

	if policyPath == "" {
		return m, nil
	}

	doc, err := LoadPolicyDoc(policyPath)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger().Info("policy file not found, using map policies only",
				"path", policyPath)
			return m, nil
		}
		return nil, err
	}

	l.ApplyPolicy(m, doc)
	return m, nil
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Load parses the map document at mapPath with a default Loader.
func Load(mapPath string) (*Map, error) {
	return (&Loader{}).Load(mapPath)
}

// validateRegister checks the invariants every loaded register must
// satisfy regardless of encoding.
func validateRegister(r *Register) error {
	if r.Name == "" {
		return fmt.Errorf("%w: register at 0x%X has no name", ErrMalformed, r.Addr)
	}
	if r.Size == 0 || r.Size%WordSize != 0 {
		return fmt.Errorf("%w: register %q: size %d is not a positive multiple of %d",
			ErrMalformed, r.Name, r.Size, WordSize)
	}

	width := uint64(r.Size) * 8
	for _, f := range r.Fields {
		if f.Mask == 0 {
			return fmt.Errorf("%w: field %q of register %q has a zero mask",
				ErrMalformed, f.Name, r.Name)
		}
		if width < 64 && f.Mask>>width != 0 {
			return fmt.Errorf("%w: field %q of register %q: mask 0x%X exceeds %d bits",
				ErrMalformed, f.Name, r.Name, f.Mask, width)
		}
	}
	return nil
}
