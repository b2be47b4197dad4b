//go:build linux

// Command bcmctl is an interactive shell for driving a CAN
// broadcast-manager socket.
//
// It sends one-shot and cyclic transmissions, installs receive filters
// and prints the notifications the broadcast manager emits, all from a
// readline prompt.
//
// Usage:
//
//	bcmctl [flags]
//
// Flags:
//
//	-interface string  CAN interface to bind (default "can0")
//	-fd                Use the FD message layout
//	-log-level string  Log level: debug, info, warn, error (default "warn")
//	-capture string    Append protocol traffic to this CBOR file
//
// Examples:
//
//	# Drive vcan0 interactively
//	bcmctl -interface vcan0
//
//	# FD layout with traffic capture
//	bcmctl -interface can0 -fd -capture /tmp/bus.cbor
package main

import (
	"flag"
	stdlog "log"
	"log/slog"
	"os"

	"github.com/canbcm/bcm-go/cmd/bcmctl/shell"
	"github.com/canbcm/bcm-go/pkg/channel"
	"github.com/canbcm/bcm-go/pkg/log"
)

var (
	ifaceFlag   string
	fdFlag      bool
	logLevel    string
	captureFlag string
)

func init() {
	flag.StringVar(&ifaceFlag, "interface", "can0", "CAN interface to bind")
	flag.BoolVar(&fdFlag, "fd", false, "Use the FD message layout")
	flag.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flag.StringVar(&captureFlag, "capture", "", "Append protocol traffic to this CBOR file")
}

func main() {
	flag.Parse()

	logger, cleanup, err := buildLogger()
	if err != nil {
		stdlog.Fatalf("Failed to set up logging: %v", err)
	}
	defer cleanup()

	ch, err := channel.OpenBCM(ifaceFlag, logger)
	if err != nil {
		stdlog.Fatalf("Failed to open %s: %v", ifaceFlag, err)
	}
	defer ch.Close()

	sh, err := shell.New(ch, fdFlag, logger)
	if err != nil {
		stdlog.Fatalf("Failed to start shell: %v", err)
	}

	if err := sh.Run(); err != nil {
		stdlog.Fatalf("Shell stopped: %v", err)
	}
}

func buildLogger() (log.Logger, func(), error) {
	console := log.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(logLevel),
	})))

	if captureFlag == "" {
		return console, func() {}, nil
	}

	capture, err := log.NewFileLogger(captureFlag)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := capture.Close(); err != nil {
			stdlog.Printf("Warning: closing capture file: %v", err)
		}
	}
	return log.NewMultiLogger(console, capture), cleanup, nil
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
