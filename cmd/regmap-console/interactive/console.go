// Package interactive provides the interactive command-line interface
// for the register console.
package interactive

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/fpga-tools/regaccess-go/pkg/access"
	"github.com/fpga-tools/regaccess-go/pkg/service"
)

// Console handles interactive mode for regmap-console.
type Console struct {
	svc *service.Service
	rl  *readline.Instance
}

// New creates a new interactive console over a started service.
func New(svc *service.Service) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "regmap> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{svc: svc, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop. It returns when the user
// exits; the caller owns service shutdown.
func (c *Console) Run() {
	defer c.rl.Close()

	c.printHelp()

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "list", "ls", "l":
			c.cmdList()

		case "read", "r":
			c.cmdRead(args)

		case "write", "w":
			c.cmdWrite(args)

		case "info", "i":
			c.cmdInfo(args)

		case "poll":
			c.cmdPoll()

		case "open":
			c.cmdOpen()

		case "close":
			c.cmdClose()

		case "status":
			c.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Register Console Commands:
  Access:
    read <path>        - Read a register or field
    write <path> <val> - Write a register or field (val accepts 0x prefix)
    info <path>        - Show register metadata and field values

  Inspection:
    list               - List all registers, address sorted
    poll               - Show polled registers and their freshness

  Session:
    open               - Start the session (load map, open transport)
    close              - Stop the session
    status             - Show session status

  General:
    help               - Show this help
    quit               - Exit console

  Path Format:
    group/register or group/register/field - e.g., ctrl/control/enable
    Bare register names work when unambiguous: control/enable`)
}

func (c *Console) cmdList() {
	m := c.svc.Map()
	if m == nil {
		fmt.Fprintln(c.rl.Stdout(), "No map loaded (session closed?)")
		return
	}

	regs := m.Registers()
	sort.Slice(regs, func(i, j int) bool { return regs[i].Addr < regs[j].Addr })
	for _, r := range regs {
		path, _ := m.PathOf(r)
		fmt.Fprintf(c.rl.Stdout(), "  0x%08X  %-4s %-30s %s\n",
			r.Addr, r.Access, path, r.Description)
	}
	fmt.Fprintf(c.rl.Stdout(), "%d registers\n", len(regs))
}

func (c *Console) cmdRead(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: read <path>")
		fmt.Fprintln(c.rl.Stdout(), "  Example: read ctrl/control/enable")
		return
	}

	v, err := c.svc.Get(args[0], false)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s = 0x%X (%d)\n", args[0], v, v)
}

func (c *Console) cmdWrite(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: write <path> <value>")
		fmt.Fprintln(c.rl.Stdout(), "  Example: write ctrl/control/enable 1")
		return
	}

	value, err := parseValue(args[1])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid value: %v\n", err)
		return
	}
	if err := c.svc.SetValue(args[0], value); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s <- 0x%X\n", args[0], value)
}

func (c *Console) cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: info <path>")
		return
	}

	v, err := c.svc.Get(args[0], true)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	info, ok := v.(*service.RegisterInfo)
	if !ok {
		// Field path: there is no metadata beyond the value.
		fmt.Fprintf(c.rl.Stdout(), "%s = 0x%X\n", args[0], v)
		return
	}

	out := c.rl.Stdout()
	fmt.Fprintf(out, "%s\n", info.Path)
	fmt.Fprintf(out, "  Address:    0x%08X\n", info.Addr)
	fmt.Fprintf(out, "  Size:       %d bytes\n", info.Size)
	fmt.Fprintf(out, "  Permission: %s\n", info.Permission)
	fmt.Fprintf(out, "  Policy:     %s\n", info.Policy)
	if info.PollInterval > 0 {
		fmt.Fprintf(out, "  Poll every: %s\n", info.PollInterval)
	}
	fmt.Fprintf(out, "  Value:      0x%X\n", info.Value)
	if !info.LastRead.IsZero() {
		fmt.Fprintf(out, "  Last read:  %s\n", info.LastRead.Format("15:04:05.000"))
	}
	if info.Description != "" {
		fmt.Fprintf(out, "  Desc:       %s\n", info.Description)
	}
	for _, f := range info.Fields {
		fmt.Fprintf(out, "  .%-12s = 0x%X (mask 0x%X, %s)\n",
			f.Name, f.Value, f.Mask, f.Permission)
	}
}

func (c *Console) cmdPoll() {
	m := c.svc.Map()
	engine := c.svc.Engine()
	if m == nil || engine == nil {
		fmt.Fprintln(c.rl.Stdout(), "No session")
		return
	}

	count := 0
	for _, r := range m.Registers() {
		st, err := engine.State(r)
		if err != nil || st.Policy != access.PolicyPolled {
			continue
		}
		count++
		path, _ := m.PathOf(r)
		age := "never"
		if st.Fetched {
			age = st.LastRead.Format("15:04:05.000")
		}
		fmt.Fprintf(c.rl.Stdout(), "  %-30s every %-8s value 0x%-10X last %s\n",
			path, st.PollInterval, st.Value, age)
	}
	if count == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No polled registers")
	}
}

func (c *Console) cmdOpen() {
	if err := c.svc.Start(); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Session started")
}

func (c *Console) cmdClose() {
	if err := c.svc.Stop(); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Session stopped")
}

func (c *Console) cmdStatus() {
	out := c.rl.Stdout()
	fmt.Fprintf(out, "  Session:   %s\n", c.svc.SessionID())
	fmt.Fprintf(out, "  Connected: %v\n", c.svc.Connected())
	if m := c.svc.Map(); m != nil {
		fmt.Fprintf(out, "  Registers: %d\n", m.Len())
	}
}

// parseValue parses a register value, accepting decimal, 0x hex, 0b
// binary and 0o octal forms.
func parseValue(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}
