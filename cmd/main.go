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

	"github.com/gookit/color"

	"github.com/okian/rostr/internal/adapters/journal"
	"github.com/okian/rostr/internal/adapters/snapshot"
	service "github.com/okian/rostr/internal/app"
	"github.com/okian/rostr/internal/config"
	"github.com/okian/rostr/pkg/logger"
	"github.com/okian/rostr/pkg/metrics"
)

// Exit codes.
const (
	exitOK             = 0
	exitNotApplied     = 1
	exitStoreAttention = 2
	exitInternal       = 3
	exitUsage          = 64
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM. An interrupted command
	// leaves the journal as it was.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "--no-color" {
		color.Enable = false
		args = args[1:]
	}
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(stdout, usage)
		return exitOK
	}

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// The logger is not configured yet.
		fmt.Fprintln(stderr, "rostr: failed to load config:", err)
		return exitUsage
	}
	if err := logger.Init(logger.WithWriter(stderr), logger.WithFormat(cfg.LogFormat)); err != nil {
		fmt.Fprintln(stderr, "rostr: failed to initialize logging:", err)
		return exitUsage
	}
	defer func() {
		_ = logger.Sync()
	}()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := journal.Open(cfg.JournalPath())
	if err != nil {
		fmt.Fprintln(stderr, "rostr: failed to open journal:", err)
		return exitUsage
	}
	svc := service.New(store,
		service.WithConfig(cfg),
		service.WithCache(snapshot.New(cfg.DataDir)),
		service.WithLogger(log),
	)

	c := &cli{svc: svc, cfg: cfg, out: stdout, errOut: stderr}
	err = c.dispatch(ctx, args)

	if cfg.MetricsFile != "" {
		if werr := metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
			log.Warn(ctx, "could not write metrics textfile", logger.String("path", cfg.MetricsFile), logger.Error(werr))
		}
	}
	return c.exit(err)
}

// exit reports err to the user and maps it onto an exit code.
func (c *cli) exit(err error) int {
	var ue *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.As(err, &ue):
		fmt.Fprintf(c.errOut, "rostr: %v\nrun 'rostr help' for usage\n", ue)
		return exitUsage
	}

	switch service.Classify(err) {
	case service.ClassNotApplied:
		fmt.Fprintf(c.errOut, "rostr: not applied: %v\nno changes were made\n", err)
		return exitNotApplied
	case service.ClassStoreAttention:
		fmt.Fprintf(c.errOut, "rostr: the journal needs attention: %v\n"+
			"restore %s from a backup or repair the reported line, then run 'rostr rebuild'\n",
			err, c.cfg.JournalPath())
		return exitStoreAttention
	default:
		fmt.Fprintf(c.errOut, "rostr: internal error: %v\n", err)
		return exitInternal
	}
}

const usage = `usage: rostr [--no-color] <command> [arguments] [flags]

people
  person add --name NAME [--id ID] [--email EMAIL] [--designation D] [--hours H] [--skills go:4,sql] [--experience Y]
  person edit <person> [--name] [--email] [--designation] [--hours] [--skills] [--experience]
  person offboard <person> --last-day DATE
  person delete <person> [--reason R]
  person list [--skill S] [--search TEXT]
  timeoff <person> --start DATE [--end DATE] [--reason R]

projects
  project add --name NAME [--status proposed|active|completed|dropped] [--probability P] [--hours H] [--skills go:3] [--description D]
  project edit <project> [--name] [--status] [--probability] [--hours] [--skills] [--description]
  project delete <project>
  project list [--skill S] [--search TEXT]
  project candidates <project>

allocations
  allocate <person> <project> --start DATE [--end DATE] --hours H [--lead]
  unallocate <allocation> [--on DATE]
  allocations [--all]

reports
  report current [--as-of DATE] [--view all|active|probable]
  report timeline [--subject people|projects] [--start DATE] [--interval day|week|month] [--periods N] [--view V] [--ids a,b]
  report forecast [--as-of DATE] [--months N] [--view V]
  report timeoff [--from DATE] [--to DATE]
  report skills [--as-of DATE] [skill ...]
  report capacity <person> --from DATE --to DATE

maintenance
  rebuild

People and projects are referenced by id or short code.
`
