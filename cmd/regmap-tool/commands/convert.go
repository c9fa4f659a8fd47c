// Package commands implements the regmap-tool CLI commands.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fpga-tools/regaccess-go/pkg/access"
	"github.com/fpga-tools/regaccess-go/pkg/regmap"
)

// ConvertOptions configures the convert command.
type ConvertOptions struct {
	// DefaultPolicy is stamped on every register without an overwrite.
	DefaultPolicy string

	// DefaultPollRate is the poll rate in milliseconds for polled
	// registers without an explicit frequency.
	DefaultPollRate int

	// PolicyFile is an optional overwrite document.
	PolicyFile string

	// Output is the destination path. Empty means the input path with
	// its extension replaced by .json.
	Output string
}

// RunConvert converts an XML register map to the JSON key-value
// encoding, attaching an access policy to every register.
func RunConvert(path string, opts ConvertOptions, w io.Writer) error {
	defaultPolicy, err := access.ParsePolicy(opts.DefaultPolicy)
	if err != nil {
		return err
	}

	loader := &regmap.Loader{}
	m, err := loader.LoadWithPolicy(path, opts.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to load map: %w", err)
	}

	// Overwrites are already applied; everything still unset gets the
	// defaults. Policy strings are written in canonical form.
	for _, r := range m.Registers() {
		p := defaultPolicy
		if r.Policy != "" {
			if p, err = access.ParsePolicy(r.Policy); err != nil {
				return fmt.Errorf("register %q: %w", r.Name, err)
			}
		}
		r.Policy = p.String()
		if p == access.PolicyPolled && r.PollIntervalMS == 0 {
			r.PollIntervalMS = opts.DefaultPollRate
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode map: %w", err)
	}
	data = append(data, '\n')

	dest := opts.Output
	if dest == "" {
		dest = outputPath(path)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Fprintf(w, "Converted %d registers to %s\n", m.Len(), dest)
	return nil
}

// outputPath replaces the input's extension with .json.
func outputPath(path string) string {
	if i := strings.LastIndex(path, "."); i > strings.LastIndex(path, "/") {
		return path[:i] + ".json"
	}
	return path + ".json"
}
