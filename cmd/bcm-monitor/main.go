//go:build linux

// Command bcm-monitor watches CAN traffic through a broadcast-manager
// socket.
//
// It installs the receive filters listed in the configuration file,
// then prints every content change and timeout the broadcast manager
// reports. Protocol traffic can additionally be captured to a CBOR
// file for later analysis.
//
// Usage:
//
//	bcm-monitor [flags]
//
// Flags:
//
//	-config string     Configuration file path
//	-interface string  CAN interface to bind, overrides the config file
//	-id uint           Identifier to monitor when no config file is given
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-capture string    Capture file path, overrides the config file
//
// Examples:
//
//	# Monitor one identifier on vcan0
//	bcm-monitor -interface vcan0 -id 0x222
//
//	# Monitor the filters from a config file, capturing traffic
//	bcm-monitor -config /etc/bcm/monitor.yaml -capture /tmp/bus.cbor
package main

import (
	"flag"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/canbcm/bcm-go/pkg/channel"
	"github.com/canbcm/bcm-go/pkg/config"
	"github.com/canbcm/bcm-go/pkg/event"
	"github.com/canbcm/bcm-go/pkg/frame"
	"github.com/canbcm/bcm-go/pkg/log"
	"github.com/canbcm/bcm-go/pkg/task"
	"github.com/canbcm/bcm-go/pkg/wire"
)

// maxOpenAttempts bounds the startup retry loop. The interface may
// still be coming up when the monitor starts.
const maxOpenAttempts = 5

var (
	configFile  string
	ifaceFlag   string
	idFlag      string
	logLevel    string
	captureFlag string
)

func init() {
	flag.StringVar(&configFile, "config", "", "Configuration file path")
	flag.StringVar(&ifaceFlag, "interface", "", "CAN interface to bind, overrides the config file")
	flag.StringVar(&idFlag, "id", "", "Identifier to monitor when no config file is given")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&captureFlag, "capture", "", "Capture file path, overrides the config file")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		stdlog.Fatalf("Invalid configuration: %v", err)
	}

	logger, cleanup, err := buildLogger(cfg)
	if err != nil {
		stdlog.Fatalf("Failed to set up logging: %v", err)
	}
	defer cleanup()

	ch, err := openChannel(cfg.Interface, logger)
	if err != nil {
		stdlog.Fatalf("Failed to open %s: %v", cfg.Interface, err)
	}
	defer ch.Close()

	loop := task.NewLoop(ch, nil, event.SinkFunc(printEvent), logger)
	if cfg.IdleSleep > 0 {
		loop.SetIdleSleep(cfg.IdleSleep.Std())
	}

	if err := installFilters(loop.Manager(), cfg); err != nil {
		stdlog.Fatalf("Failed to install filters: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		stdlog.Println("Shutting down...")
		loop.Stop()
	}()

	stdlog.Printf("Monitoring %s (%d filters)", cfg.Interface, len(cfg.Filters))
	if err := loop.Run(); err != nil {
		stdlog.Fatalf("Monitor stopped: %v", err)
	}
}

// loadConfig merges the config file with command-line overrides.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if ifaceFlag != "" {
		cfg.Interface = ifaceFlag
	}
	if captureFlag != "" {
		cfg.Log.CaptureFile = captureFlag
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if idFlag != "" {
		id, err := strconv.ParseUint(idFlag, 0, 32)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Filters = append(cfg.Filters, config.Filter{ID: uint32(id), FD: cfg.FD})
	}

	return cfg, cfg.Validate()
}

// buildLogger assembles the console logger, plus the CBOR capture
// logger when a capture file is configured.
func buildLogger(cfg config.Config) (log.Logger, func(), error) {
	console := log.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(cfg.Log.Level),
	})))

	if cfg.Log.CaptureFile == "" {
		return console, func() {}, nil
	}

	capture, err := log.NewFileLogger(cfg.Log.CaptureFile)
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
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openChannel opens the BCM socket, retrying with backoff while the
// interface comes up.
func openChannel(ifname string, logger log.Logger) (channel.Channel, error) {
	backoff := channel.NewBackoff()

	var lastErr error
	for attempt := 0; attempt < maxOpenAttempts; attempt++ {
		ch, err := channel.OpenBCM(ifname, logger)
		if err == nil {
			return ch, nil
		}
		lastErr = err

		delay := backoff.Next()
		stdlog.Printf("Open attempt %d failed (%v), retrying in %s", attempt+1, err, delay)
		time.Sleep(delay)
	}
	return nil, lastErr
}

// installFilters installs every configured receive filter.
func installFilters(m *task.Manager, cfg config.Config) error {
	for _, f := range cfg.Filters {
		timeout := wire.TimevalFromDuration(f.Timeout.Std())

		if len(f.Mask) == 0 {
			if err := m.InstallFilterID(f.ID, timeout, f.FD); err != nil {
				return err
			}
			continue
		}

		flavor := frame.FlavorClassic
		if f.FD {
			flavor = frame.FlavorFD
		}
		mask, err := frame.New(f.ID, flavor, f.Mask)
		if err != nil {
			return err
		}
		if err := m.InstallFilterMask(f.ID, mask, timeout, f.FD); err != nil {
			return err
		}
	}
	return nil
}

// printEvent writes one decoded event to stdout.
func printEvent(ev event.Event) {
	switch ev.Kind {
	case event.KindTimeout:
		stdlog.Printf("TIMEOUT id=0x%03X", ev.ID)
	default:
		stdlog.Printf("CHANGED id=0x%03X len=%d data=% X", ev.ID, ev.Frame.Len(), ev.Frame.Data)
	}
}
