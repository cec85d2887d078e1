// devicewatch is a terminal client for the device hub.
//
// Usage:
//
//	devicewatch list
//	devicewatch create -name Printer -mac AA:BB:CC:DD:EE:FF
//	devicewatch toggle <id>
//	devicewatch watch
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"device-sync/internal/config"
	"device-sync/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage: devicewatch <list|create|toggle|watch> [flags]")

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	app := newApp(cfg, logger, out)

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		return app.list(ctx)
	case "create":
		fs := flag.NewFlagSet("create", flag.ContinueOnError)
		fs.SetOutput(out)
		name := fs.String("name", "", "device name")
		mac := fs.String("mac", "", "device MAC address")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return app.create(ctx, *name, *mac)
	case "toggle":
		if len(rest) != 1 {
			return errors.New("usage: devicewatch toggle <id>")
		}
		return app.toggle(ctx, rest[0])
	case "watch":
		return app.watch(ctx)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}
