// Command flatload previews, loads and converts delimited and fixed-width
// flat files.
//
// Usage:
//
//	flatload preview [parser flags] FILE
//	flatload load    [parser flags] TABLE FILE
//	flatload export  [parser flags] FILE OUT.parquet
//	flatload profile save [parser flags] OUT.yaml
//	flatload profile show PROFILE.yaml
//	flatload serve
//	flatload shell
//
// FILE may be "-" for standard input. Settings come from the environment
// (and a .env file), then an optional -profile, then explicit flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/flatload/internal/config"
	"github.com/JonMunkholm/flatload/internal/loader"
	"github.com/JonMunkholm/flatload/internal/logging"
)

// errUsage marks command-line mistakes; they exit with status 2.
var errUsage = errors.New("usage")

const usage = `usage: flatload <command> [flags] [args]

commands:
  preview  FILE                 print the first rows as the parser sees them
  load     TABLE FILE           copy rows into PostgreSQL
  export   FILE OUT.parquet     convert to Parquet
  profile  save OUT.yaml        write the resolved parser settings
  profile  show PROFILE.yaml    print a profile with defaults filled in
  serve                         run the HTTP API
  shell                         interactive SQL console

Run "flatload <command> -h" for flags.`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err == nil {
		slog.Debug("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}

	commands := map[string]func(context.Context, *config.Config, []string) error{
		"preview": runPreview,
		"load":    runLoad,
		"export":  runExport,
		"profile": runProfile,
		"serve":   runServe,
		"shell":   runShell,
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", args[0], usage)
		return 2
	}

	if err := cmd(ctx, cfg, args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		slog.Debug("command failed", "command", args[0], "error", err)
		fmt.Fprintf(os.Stderr, "flatload %s: %v\n", args[0], err)
		if loader.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, loader.FormatUserError(err))
		}
		return 1
	}
	return 0
}
