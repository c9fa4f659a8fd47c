package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/fpga-tools/regaccess-go/pkg/regmap"
)

// RunShow prints the registers of a map, address sorted, as a table or
// as the JSON key-value encoding.
func RunShow(path, format string, w io.Writer) error {
	m, err := regmap.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load map: %w", err)
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode map: %w", err)
		}
		fmt.Fprintf(w, "%s\n", data)
		return nil
	case "table":
		return showTable(m, w)
	default:
		return fmt.Errorf("unknown format %q (want table or json)", format)
	}
}

func showTable(m *regmap.Map, w io.Writer) error {
	regs := m.Registers()
	sort.Slice(regs, func(i, j int) bool { return regs[i].Addr < regs[j].Addr })

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tNAME\tSIZE\tPERM\tPOLICY\tFIELDS\tDESCRIPTION")
	for _, r := range regs {
		name := r.Name
		if p, ok := m.PathOf(r); ok {
			name = p
		}
		policy := r.Policy
		if policy == "" {
			policy = "-"
		} else if r.PollIntervalMS > 0 {
			policy = fmt.Sprintf("%s@%dms", policy, r.PollIntervalMS)
		}
		fmt.Fprintf(tw, "0x%08X\t%s\t%d\t%s\t%s\t%d\t%s\n",
			r.Addr, name, r.Size, r.Access, policy, len(r.Fields), r.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d registers\n", len(regs))
	return nil
}
