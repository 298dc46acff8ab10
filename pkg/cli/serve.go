package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/devmock/pkg/cli/internal/ports"
	"github.com/getmockd/devmock/pkg/config"
	"github.com/getmockd/devmock/pkg/engine"
	"github.com/getmockd/devmock/pkg/logging"
	"github.com/getmockd/devmock/pkg/middleware"
)

// shutdownTimeout is the maximum time to wait for graceful shutdown.
const shutdownTimeout = 10 * time.Second

// serveFlags holds the flags of the serve command.
type serveFlags struct {
	listen        string
	upstream      string
	notFound      bool
	startupLog    bool
	adminRoutes   bool
	noWatch       bool
	bodyLimit     int64
	printURL      bool
	readTimeout   time.Duration
	writeTimeout  time.Duration
	headerTimeout time.Duration
}

func newServeCommand(g *globalFlags) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mock server (foreground)",
		Long: `Start the mock server. Every module below the mock root is loaded before the
server starts listening, so the first request already sees all of them.

Requests under a URL prefix are answered by the first matching mock handler.
All other requests, and unmatched ones when --not-found=false, are forwarded to
--upstream, or answered with 404 when no upstream is set.`,
		Example: `  # Serve ./mock on :4280
  devmock serve

  # Sit in front of a Vite dev server
  devmock serve --upstream http://localhost:5173 --prefix /api/ --prefix /graphql

  # Pick a free port and print the URL
  devmock serve --listen 127.0.0.1:0 --print-url`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, g, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.listen, "listen", "l", config.DefaultListen, "Address to listen on")
	fl.StringVarP(&f.upstream, "upstream", "u", "", "Dev server that receives requests no mock answers")
	fl.BoolVar(&f.notFound, "not-found", true, "Answer unmatched requests under a prefix with 404 instead of forwarding them")
	fl.BoolVar(&f.startupLog, "startup-log", true, "Print the startup banner")
	fl.BoolVar(&f.adminRoutes, "admin-routes", false, "Serve "+engine.AdminPrefix+"health and "+engine.AdminPrefix+"routes")
	fl.BoolVar(&f.noWatch, "no-watch", false, "Load modules once and do not watch for changes")
	fl.Int64Var(&f.bodyLimit, "body-limit", middleware.DefaultBodyLimit, "Largest request body parsed for mock handlers, in bytes")
	fl.BoolVar(&f.printURL, "print-url", false, "Print the server URL to stdout once listening")
	fl.DurationVar(&f.readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	fl.DurationVar(&f.writeTimeout, "write-timeout", 0, "HTTP write timeout (0 = none, mock delays may be long)")
	fl.DurationVar(&f.headerTimeout, "read-header-timeout", 10*time.Second, "HTTP read header timeout")
	return cmd
}

func runServe(cmd *cobra.Command, g *globalFlags, f *serveFlags) error {
	opts, warnings, err := resolveOptions(cmd, g, "")
	if err != nil {
		return err
	}
	applyServeFlags(cmd, f, &opts)

	logger := logging.New(opts.Logging())
	for _, w := range warnings {
		logger.Warn(w.Error())
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMiddleware(middleware.BodyParser(f.bodyLimit)),
		engine.WithStartupOutput(cmd.ErrOrStderr()),
	}
	if f.noWatch {
		engineOpts = append(engineOpts, engine.WithoutWatcher())
	}
	eng, err := engine.New(opts, engineOpts...)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Modules must be in the registry before the first request arrives.
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	next, err := upstreamHandler(opts.Upstream, logger)
	if err != nil {
		return err
	}

	ln, err := ports.Listen(opts.Listen)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           eng.Handler(next),
		ReadTimeout:       f.readTimeout,
		WriteTimeout:      f.writeTimeout,
		ReadHeaderTimeout: f.headerTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	addr := ln.Addr().String()
	if f.printURL {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "http://%s\n", addr)
	}
	logger.Info("devmock listening", "addr", addr, "upstream", opts.Upstream)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func applyServeFlags(cmd *cobra.Command, f *serveFlags, opts *config.Options) {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		opts.Listen = f.listen
		opts.SetSource("listen", config.SourceFlag)
	}
	if flags.Changed("upstream") {
		opts.Upstream = f.upstream
		opts.SetSource("upstream", config.SourceFlag)
	}
	if flags.Changed("not-found") {
		opts.NoHandlerResponse404 = f.notFound
		opts.SetSource("noHandlerResponse404", config.SourceFlag)
	}
	if flags.Changed("startup-log") {
		opts.PrintStartupLog = f.startupLog
		opts.SetSource("printStartupLog", config.SourceFlag)
	}
	if flags.Changed("admin-routes") {
		opts.AdminRoutes = f.adminRoutes
		opts.SetSource("adminRoutes", config.SourceFlag)
	}
}

// upstreamHandler proxies to target, or answers 404 when target is empty.
func upstreamHandler(target string, logger *slog.Logger) (http.Handler, error) {
	if target == "" {
		return http.NotFoundHandler(), nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream %q: %w", target, err)
	}
	proxy := httputil.NewSingleHostReverseProxy(u)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("upstream request failed", "method", r.Method, "url", r.URL.String(), "error", err)
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy, nil
}
