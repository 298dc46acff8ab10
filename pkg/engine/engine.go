package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/getmockd/devmock/internal/matching"
	"github.com/getmockd/devmock/internal/storage"
	"github.com/getmockd/devmock/pkg/config"
	"github.com/getmockd/devmock/pkg/loader"
	"github.com/getmockd/devmock/pkg/logging"
	"github.com/getmockd/devmock/pkg/metrics"
	"github.com/getmockd/devmock/pkg/mock"
	"github.com/getmockd/devmock/pkg/watch"
)

// SourceFactory opens a watch.Source for the mock root directory.
type SourceFactory func(root string, logger *slog.Logger) (watch.Source, error)

// Engine wires the registry, loader, watcher and dispatcher together.
//
// Typical use:
//
//	eng, err := engine.New(config.Default())
//	if err != nil { ... }
//	if err := eng.Start(ctx); err != nil { ... }
//	defer eng.Close()
//	http.ListenAndServe(":4280", eng.Handler(devServer))
//
// Start must return before Handler is mounted so the first requests see
// every module that existed at startup.
type Engine struct {
	opts   config.Options
	logger *slog.Logger
	out    io.Writer

	store       *storage.Registry
	loader      *loader.Loader
	coordinator *watch.Coordinator
	dispatcher  *Dispatcher
	chain       *MiddlewareChain
	metrics     *metrics.Metrics

	compiler   loader.Compiler
	layers     []Middleware
	watching   bool
	newSource  SourceFactory
	matchCache int

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	source  watch.Source
	done    chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. By default one is built from the options'
// log settings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMiddleware adds pass-through layers that run before the dispatcher
// for in-scope requests only.
func WithMiddleware(layers ...Middleware) Option {
	return func(e *Engine) { e.layers = append(e.layers, layers...) }
}

// WithCompiler replaces the YAML compiler used for compiled suffixes.
func WithCompiler(c loader.Compiler) Option {
	return func(e *Engine) { e.compiler = c }
}

// WithoutWatcher disables file watching; only the initial scan runs.
func WithoutWatcher() Option {
	return func(e *Engine) { e.watching = false }
}

// WithSourceFactory replaces the fsnotify-based watch source.
func WithSourceFactory(f SourceFactory) Option {
	return func(e *Engine) { e.newSource = f }
}

// WithMatchCacheSize sets how many compiled patterns are memoised.
func WithMatchCacheSize(n int) Option {
	return func(e *Engine) { e.matchCache = n }
}

// WithStartupOutput sets where the startup banner is printed. Defaults to
// os.Stderr.
func WithStartupOutput(w io.Writer) Option {
	return func(e *Engine) { e.out = w }
}

// New validates opts and builds an Engine. The options are copied; later
// changes to the caller's value have no effect.
func New(opts config.Options, options ...Option) (*Engine, error) {
	e := &Engine{
		opts:      opts.Clone(),
		out:       os.Stderr,
		watching:  true,
		newSource: defaultSource,
	}
	for _, o := range options {
		o(e)
	}
	if e.logger == nil {
		e.logger = logging.New(e.opts.Logging())
	}

	if e.opts.MockModules != nil {
		e.logger.Warn("mock modules will be set automatically, and the configuration will be ignored",
			"mockModules", e.opts.MockModules)
		e.opts.MockModules = nil
	}
	if err := e.opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	e.store = storage.NewRegistry()
	e.metrics = metrics.New(
		func() float64 { return float64(e.store.Len()) },
		func() float64 { return float64(len(e.store.Routes())) },
	)
	e.loader = loader.New(loader.Options{
		NativeSuffixes:   e.opts.NativeSuffixes,
		CompiledSuffixes: e.opts.CompiledSuffixes,
		Compiler:         e.compiler,
		Logger:           e.logger,
	})

	coord, err := watch.NewCoordinator(watch.Options{
		Root:     e.opts.MockRootDir,
		Ignore:   e.opts.Ignore,
		Logger:   e.logger,
		Observer: e.metrics,
	}, e.loader, e.store)
	if err != nil {
		return nil, err
	}
	e.coordinator = coord

	e.dispatcher = NewDispatcher(e.store, DispatcherOptions{
		URLPrefixes:          e.opts.URLPrefixes,
		NoHandlerResponse404: e.opts.NoHandlerResponse404,
		Matcher:              matching.NewMatcher(e.matchCache),
		Logger:               e.logger,
		Observer:             e.metrics,
	})
	e.chain = NewMiddlewareChain(e.dispatcher, e.layers...)
	return e, nil
}

func defaultSource(root string, logger *slog.Logger) (watch.Source, error) {
	return watch.NewFSNotifySource(root, logger)
}

// Start loads every module under the mock root and, unless disabled, starts
// watching for changes. It returns once the initial scan is complete.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.New("engine is closed")
	}
	if e.started {
		return nil
	}

	// Subscribe before scanning so files written during the scan are
	// delivered as events afterwards.
	var src watch.Source
	if e.watching {
		var err error
		src, err = e.newSource(e.coordinator.Root(), e.logger)
		if err != nil {
			e.logger.Warn("file watching disabled", "root", e.coordinator.Root(), "error", err)
			src = nil
		}
	}

	if err := e.coordinator.Scan(ctx); err != nil {
		if src != nil {
			_ = src.Close()
		}
		return fmt.Errorf("scanning %s: %w", e.coordinator.Root(), err)
	}
	e.started = true

	if src != nil {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		e.source, e.cancel, e.done = src, cancel, make(chan struct{})
		go func() {
			defer close(e.done)
			_ = e.coordinator.Run(runCtx, src)
		}()
	}

	if e.opts.PrintStartupLog {
		e.printStartup()
	}
	return nil
}

func (e *Engine) printStartup() {
	routes := e.store.Routes()
	_, _ = fmt.Fprintf(e.out,
		"[devmock] mock server started. urlPrefixes=[%s] mockRootDir=%s modules=%d handlers=%d noHandlerResponse404=%t\n",
		strings.Join(e.opts.URLPrefixes, ", "), e.coordinator.Root(), e.store.Len(), len(routes), e.opts.NoHandlerResponse404)
}

// Handler returns the interception handler. Requests it does not answer
// are passed to next; a nil next responds 404.
func (e *Engine) Handler(next http.Handler) http.Handler {
	if next == nil {
		next = http.NotFoundHandler()
	}
	h := e.chain.Wrap(next)
	if e.opts.AdminRoutes {
		h = e.adminHandler(h)
	}
	return h
}

// Register adds or replaces a programmatic module. The export is resolved
// once, now.
func (e *Engine) Register(key string, exp mock.Exported) error {
	if key == "" {
		return errors.New("module key must not be empty")
	}
	if exp == nil {
		return errors.New("module export must not be nil")
	}
	handlers := exp.Resolve()
	for i, h := range handlers {
		if h.Handle == nil {
			return fmt.Errorf("handler %d (%s) has no Handle function", i, h.Pattern)
		}
		if err := matching.ValidatePattern(h.Pattern); err != nil {
			e.logger.Warn("handler pattern is malformed", "module", key, "index", i, "error", err)
		}
	}
	e.store.Upsert(key, handlers)
	e.logger.Info("mock module registered", "module", key, "handlers", len(handlers))
	return nil
}

// Unregister removes a module. It reports whether the key was registered.
func (e *Engine) Unregister(key string) bool {
	return e.store.Remove(key)
}

// Routes lists every registered handler in dispatch order.
func (e *Engine) Routes() []mock.Route {
	return e.store.Routes()
}

// Root returns the absolute mock root directory.
func (e *Engine) Root() string {
	return e.coordinator.Root()
}

// MockModules returns the registered module keys in dispatch order.
func (e *Engine) MockModules() []string {
	return e.store.Keys()
}

// Options returns a copy of the engine's options.
func (e *Engine) Options() config.Options {
	opts := e.opts.Clone()
	opts.MockModules = e.store.Keys()
	return opts
}

// Metrics returns the engine's request and module-load metrics.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// Close stops the watcher and waits for it to finish. It is safe to call
// more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	src, cancel, done := e.source, e.cancel, e.done
	e.mu.Unlock()

	if src == nil {
		return nil
	}
	cancel()
	err := src.Close()
	<-done
	return err
}
