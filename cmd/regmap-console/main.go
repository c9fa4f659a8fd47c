// Command regmap-console is an interactive console for register access.
//
// It loads a register map, opens the configured transport and drops
// into a readline prompt where registers and bit fields can be read
// and written by name. Without a config file it runs against the
// loopback transport, which echoes writes, useful for map bring-up
// before hardware exists.
//
// Usage:
//
//	regmap-console [flags]
//
// Flags:
//
//	-config string     YAML configuration file path
//	-map string        Register map file (.xml or .json)
//	-policy string     Access policy overwrite file
//	-transport string  Transport kind: loopback, xdma (default "loopback")
//	-device int        XDMA device index
//	-event-log string  Binary access event log file
//	-log-level string  Log level: debug, info, warn, error (default "warn")
//
// Examples:
//
//	# Bring up a converted map against the loopback transport
//	regmap-console -map fem.json
//
//	# Run against real hardware with an event log
//	regmap-console -map fem.json -transport xdma -device 0 -event-log session.rlog
//
//	# Everything from a config file
//	regmap-console -config fem.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/fpga-tools/regaccess-go/cmd/regmap-console/interactive"
	"github.com/fpga-tools/regaccess-go/pkg/service"
)

func main() {
	configFile := flag.String("config", "", "YAML configuration file path")
	mapFile := flag.String("map", "", "Register map file (.xml or .json)")
	policyFile := flag.String("policy", "", "Access policy overwrite file")
	transportKind := flag.String("transport", "", "Transport kind: loopback, xdma")
	deviceIndex := flag.Int("device", 0, "XDMA device index")
	eventLog := flag.String("event-log", "", "Binary access event log file")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := buildConfig(*configFile, *mapFile, *policyFile, *transportKind, *deviceIndex, *eventLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.Logger = newLogger(*logLevel)

	svc, err := service.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer svc.Stop()

	console, err := interactive.New(svc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Session %s, map %s, transport %s\n",
		svc.SessionID(), cfg.MapFile, transportName(cfg))
	console.Run()
}

// buildConfig merges the config file (when given) with command line
// flags; flags win.
func buildConfig(configFile, mapFile, policyFile, transportKind string, deviceIndex int, eventLog string) (service.Config, error) {
	var cfg service.Config
	if configFile != "" {
		var err error
		cfg, err = service.LoadConfig(configFile)
		if err != nil {
			return service.Config{}, err
		}
	}

	if mapFile != "" {
		cfg.MapFile = mapFile
	}
	if policyFile != "" {
		cfg.PolicyFile = policyFile
	}
	if transportKind != "" {
		cfg.Transport.Kind = transportKind
	}
	if deviceIndex != 0 {
		cfg.Transport.DeviceIndex = deviceIndex
	}
	if eventLog != "" {
		cfg.LogFile = eventLog
	}

	if cfg.MapFile == "" {
		return service.Config{}, fmt.Errorf("a register map is required (-map or -config)")
	}
	return cfg, cfg.Validate()
}

func transportName(cfg service.Config) string {
	if cfg.Transport.Kind == "" {
		return service.TransportLoopback
	}
	return cfg.Transport.Kind
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
