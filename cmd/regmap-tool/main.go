// Command regmap-tool converts and inspects FPGA register map files.
//
// Register maps come out of the firmware build as XML; the runtime
// consumes the JSON key-value encoding with access policies attached.
//
// Usage:
//
//	regmap-tool <command> [flags] <file>
//
// Commands:
//
//	convert   Convert an XML map to the JSON encoding with policies
//	show      Print a map as a table or JSON
//	validate  Load a map and report problems
//
// Examples:
//
//	# Convert with defaults (static policy, 1000ms poll rate)
//	regmap-tool convert fem.xml
//
//	# Convert with a policy overwrite file, everything else polled
//	regmap-tool convert -policy polled -policy-file policies.json -o out.json fem.xml
//
//	# Show the registers of a map, address sorted
//	regmap-tool show fem.json
//
//	# Validate a map plus its overwrite file
//	regmap-tool validate -policy-file policies.json fem.xml
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fpga-tools/regaccess-go/cmd/regmap-tool/commands"
)

const usage = `regmap-tool - FPGA register map converter

Usage:
  regmap-tool <command> [flags] <file>

Commands:
  convert   Convert an XML map to the JSON encoding with policies
  show      Print a map as a table or JSON
  validate  Load a map and report problems

Use "regmap-tool <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "convert":
		runConvert(args)
	case "show":
		runShow(args)
	case "validate":
		runValidate(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runConvert(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `regmap-tool convert - Convert an XML map to the JSON encoding

Usage:
  regmap-tool convert [flags] <map.xml>

Flags:
`)
		fs.PrintDefaults()
	}

	policy := fs.String("policy", "static", "Default access policy (static, immediate, polled)")
	pollRate := fs.Int("poll-rate", 1000, "Default poll rate for polled registers, in milliseconds")
	policyFile := fs.String("policy-file", "", "JSON access policy overwrite file")
	output := fs.String("o", "", "Output file (default: input with .json extension)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: map file path required")
		fs.Usage()
		os.Exit(1)
	}

	opts := commands.ConvertOptions{
		DefaultPolicy:   *policy,
		DefaultPollRate: *pollRate,
		PolicyFile:      *policyFile,
		Output:          *output,
	}
	if err := commands.RunConvert(fs.Arg(0), opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runShow(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `regmap-tool show - Print a map as a table or JSON

Usage:
  regmap-tool show [flags] <map.xml|map.json>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "table", "Output format (table, json)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: map file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunShow(fs.Arg(0), *format, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `regmap-tool validate - Load a map and report problems

Usage:
  regmap-tool validate [flags] <map.xml|map.json>

Flags:
`)
		fs.PrintDefaults()
	}

	policyFile := fs.String("policy-file", "", "JSON access policy overwrite file to check against the map")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: map file path required")
		fs.Usage()
		os.Exit(1)
	}

	ok, err := commands.RunValidate(fs.Arg(0), *policyFile, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}
