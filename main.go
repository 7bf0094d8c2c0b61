package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskwall/pkg/auth"
	"github.com/harrisonrobin/taskwall/pkg/backend"
	"github.com/harrisonrobin/taskwall/pkg/config"
	"github.com/harrisonrobin/taskwall/pkg/google"
	"github.com/harrisonrobin/taskwall/pkg/host"
	"github.com/harrisonrobin/taskwall/pkg/jsonfile"
	"github.com/harrisonrobin/taskwall/pkg/orgmode"
	"github.com/harrisonrobin/taskwall/pkg/sqlite"
	"github.com/harrisonrobin/taskwall/pkg/taskwarrior"
	"github.com/harrisonrobin/taskwall/pkg/watch"
	"github.com/harrisonrobin/taskwall/pkg/widget"
)

const appName = "taskwall"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run executes the command line in args.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

type options struct {
	configPath string
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Render task lists as a dashboard table",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/taskwall/config.json)")

	root.AddCommand(
		newRenderCmd(opts),
		newServeCmd(opts),
		newAuthCmd(opts),
		newSetListsCmd(opts),
	)
	return root
}

func newRenderCmd(opts *options) *cobra.Command {
	var snapshotPath string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the table once and print it",
		Long: `Render runs one start, acknowledge, snapshot and directory cycle through
the widget and prints the resulting markup.

With --snapshot the tasks and users come from a JSON document:
  {"lists": {"inbox": [{"title": "Buy milk", "starred": true}]}, "users": {"1": "Ada"}}

Without it the configured source is queried.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(opts.stderr, cfg.Logging)
			if err != nil {
				return err
			}

			var src backend.Source
			if snapshotPath != "" {
				src = jsonfile.NewSource(snapshotPath)
			} else {
				s, cleanup, err := newSource(cmd.Context(), cfg.Source)
				if err != nil {
					return err
				}
				defer cleanup()
				src = s
			}
			return renderOnce(cmd.Context(), cfg.Widget, src, logger, opts.stdout)
		},
	}
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "JSON snapshot file to render")
	return cmd
}

// syncHost runs the widget inline for one-shot renders.
type syncHost struct {
	requests []widget.Request
}

func (h *syncHost) Send(req widget.Request) { h.requests = append(h.requests, req) }
func (h *syncHost) ScheduleRender()         {}

func renderOnce(ctx context.Context, cfg config.Widget, src backend.Source, logger *charmLog.Logger, out io.Writer) error {
	h := &syncHost{}
	w := widget.New(cfg, h)
	w.Start()
	w.Dispatch(widget.Started{})

	snapshot, err := src.Fetch(ctx, cfg.Lists)
	if err != nil {
		return fmt.Errorf("fetch tasks: %w", err)
	}
	w.Dispatch(widget.TasksReceived{Snapshot: snapshot})

	if cfg.ShowAssignee {
		users, err := src.Users(ctx)
		if err != nil {
			logger.Warn("could not load users", "err", err)
		} else {
			w.Dispatch(widget.UsersReceived{Users: users})
		}
	}

	for _, req := range h.requests {
		logger.Debug("request", "notification", req.Notification())
	}
	if err := w.Render().WriteTo(out); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out)
	return err
}

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the table over HTTP, refreshing from the configured source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger, err := newLogger(opts.stderr, cfg.Logging)
			if err != nil {
				return err
			}
			charmLog.SetDefault(logger)
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *charmLog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	src, cleanup, err := newSource(ctx, cfg.Source)
	if err != nil {
		return err
	}
	defer cleanup()

	var h *host.Host
	b := backend.New(src, logger.WithPrefix("backend"), func(ctx context.Context, ev widget.Event) error {
		return h.Deliver(ctx, ev)
	})
	renderDelay := time.Duration(cfg.Server.RenderDelay) * time.Millisecond
	h = host.New(cfg.Widget, b, renderDelay, logger.WithPrefix("host"))

	errs := make(chan error, 4)
	go func() { errs <- b.Run(ctx) }()
	go func() { errs <- h.Run(ctx) }()

	if paths := watchPaths(src); len(paths) > 0 {
		w, err := watch.New(paths, 0, b.Refresh, logger.WithPrefix("watch"))
		if err != nil {
			return err
		}
		go func() { errs <- w.Run(ctx) }()
	}

	refresh := time.Duration(cfg.Widget.Interval) * time.Second
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h.Handler(refresh, cfg.Server.Stylesheet),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()
	logger.Info("serving", "addr", cfg.Server.Addr, "source", cfg.Source.Kind, "lists", cfg.Widget.Lists)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func newAuthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(opts.stderr, cfg.Logging)
			if err != nil {
				return err
			}
			charmLog.SetDefault(logger)

			tokenPath, err := auth.Authorize(cmd.Context(), auth.Scopes)
			if err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			fmt.Fprintf(opts.stdout, "Authentication successful! Token saved to %s\n", tokenPath)
			return nil
		},
	}
}

func newSetListsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set-lists <name>...",
		Short: "Set the task lists shown by the widget",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			cfg.Widget.Lists = args
			if err := cfg.Normalize(); err != nil {
				return err
			}
			if err := config.Save(opts.configPath, cfg); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}
			fmt.Fprintf(opts.stdout, "Lists set to: %v\n", cfg.Widget.Lists)
			return nil
		},
	}
}

// newLogger builds the console logger used by every runtime component.
func newLogger(w io.Writer, cfg config.Logging) (*charmLog.Logger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	return charmLog.NewWithOptions(w, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	}), nil
}

// newSource opens the configured task source. cleanup releases it.
func newSource(ctx context.Context, cfg config.Source) (backend.Source, func(), error) {
	noop := func() {}
	switch cfg.Kind {
	case config.SourceFile:
		if cfg.File == "" {
			return nil, noop, errors.New("source.file is required for the file source")
		}
		return jsonfile.NewSource(cfg.File), noop, nil
	case config.SourceTaskwarrior:
		return taskwarrior.NewClient(cfg.TaskFilter...), noop, nil
	case config.SourceOrgmode:
		if len(cfg.OrgFiles) == 0 {
			return nil, noop, errors.New("source.orgFiles is required for the orgmode source")
		}
		return orgmode.NewSource(cfg.OrgFiles...), noop, nil
	case config.SourceSQLite:
		store, err := sqlite.Open(cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.SourceGoogle:
		client, err := google.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("error creating Google Tasks client: %w", err)
		}
		return client, noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", config.ErrUnknownSource, cfg.Kind)
	}
}

// watchPaths returns the files behind a file-based source.
func watchPaths(src backend.Source) []string {
	if p, ok := src.(interface{ Paths() []string }); ok {
		return p.Paths()
	}
	return nil
}
