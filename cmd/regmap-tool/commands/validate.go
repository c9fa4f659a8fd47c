package commands

import (
	"fmt"
	"io"

	"github.com/fpga-tools/regaccess-go/pkg/access"
	"github.com/fpga-tools/regaccess-go/pkg/regmap"
)

// RunValidate loads a map and reports every problem it finds: load
// failures, unknown policy strings, inaccessible registers and
// overwrite keys that match nothing. It returns false when the map has
// problems.
func RunValidate(path, policyFile string, w io.Writer) (bool, error) {
	m, err := regmap.Load(path)
	if err != nil {
		fmt.Fprintf(w, "FAIL: %v\n", err)
		return false, nil
	}

	problems := 0
	report := func(format string, args ...any) {
		problems++
		fmt.Fprintf(w, "  "+format+"\n", args...)
	}

	for _, r := range m.Registers() {
		name := r.Name
		if p, ok := m.PathOf(r); ok {
			name = p
		}
		if r.Policy != "" {
			if _, err := access.ParsePolicy(r.Policy); err != nil {
				report("%s: unknown access policy %q", name, r.Policy)
			}
		}
		if r.PollIntervalMS < 0 {
			report("%s: negative poll rate %d", name, r.PollIntervalMS)
		}
		if !r.Access.CanRead() && !r.Access.CanWrite() {
			report("%s: permission %q allows neither read nor write", name, r.Permission)
		}
	}

	if policyFile != "" {
		doc, err := regmap.LoadPolicyDoc(policyFile)
		if err != nil {
			fmt.Fprintf(w, "FAIL: %v\n", err)
			return false, nil
		}
		for key, ov := range doc {
			regs, err := m.Resolve(key)
			if err != nil || len(regs) == 0 {
				report("policy key %q matches no register", key)
				continue
			}
			if ov.Policy != "" {
				if _, err := access.ParsePolicy(ov.Policy); err != nil {
					report("policy key %q: unknown access policy %q", key, ov.Policy)
				}
			}
		}
	}

	if problems > 0 {
		fmt.Fprintf(w, "FAIL: %d problems in %d registers\n", problems, m.Len())
		return false, nil
	}
	fmt.Fprintf(w, "OK: %d registers\n", m.Len())
	return true, nil
}
