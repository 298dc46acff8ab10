package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getmockd/devmock/internal/storage"
	"github.com/getmockd/devmock/pkg/loader"
	"github.com/getmockd/devmock/pkg/logging"
	"github.com/getmockd/devmock/pkg/mock"
)

// ModuleLoader loads one module file.
type ModuleLoader interface {
	Recognizes(path string) bool
	Load(ctx context.Context, path string) ([]mock.Handler, error)
}

// Options configures a Coordinator.
type Options struct {
	// Root is the directory holding mock modules.
	Root string

	// Ignore holds doublestar globs matched against slash-separated paths
	// relative to Root, e.g. "**/drafts/**".
	Ignore []string

	// Logger defaults to logging.Nop().
	Logger *slog.Logger

	// Observer, if set, is told the outcome of every load.
	Observer LoadObserver

	// UnlinkGrace is how long Run holds an unlink of a registered module
	// before applying it. An add or change of the same path within the
	// window is applied as a change, so a module saved by
	// rename-and-recreate keeps its slot. Zero means DefaultUnlinkGrace; a
	// negative value applies unlinks immediately.
	UnlinkGrace time.Duration
}

// DefaultUnlinkGrace is the unlink window used when Options.UnlinkGrace is zero.
const DefaultUnlinkGrace = 100 * time.Millisecond

// LoadObserver receives the result of each module load.
type LoadObserver interface {
	ObserveLoad(err error)
}

// Coordinator keeps a ModuleStore in sync with the files under a root
// directory. It applies events one at a time and is the only writer of
// file-backed modules.
type Coordinator struct {
	root   string
	ignore []string
	loader ModuleLoader
	store  storage.ModuleStore
	logger *slog.Logger
	obs    LoadObserver
	grace  time.Duration
}

// NewCoordinator creates a Coordinator. Root is made absolute so module keys
// are stable regardless of the working directory.
func NewCoordinator(opts Options, l ModuleLoader, store storage.ModuleStore) (*Coordinator, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving mock root %q: %w", opts.Root, err)
	}
	for _, p := range opts.Ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	grace := opts.UnlinkGrace
	if grace == 0 {
		grace = DefaultUnlinkGrace
	}
	return &Coordinator{
		root:   root,
		ignore: opts.Ignore,
		loader: l,
		store:  store,
		logger: logger,
		obs:    opts.Observer,
		grace:  grace,
	}, nil
}

// Root returns the absolute root directory.
func (c *Coordinator) Root() string {
	return c.root
}

// Scan loads every recognised module below the root, in lexical order,
// before returning. Individual load failures are logged, not returned. A
// missing root is not an error; it simply contributes no modules.
func (c *Coordinator) Scan(ctx context.Context) error {
	files, err := c.Files(ctx)
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.load(ctx, path)
	}
	return nil
}

// Files lists the module files below the root in lexical order, leaving out
// ignored paths, temporary artifacts and unrecognised suffixes.
func (c *Coordinator) Files(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == c.root {
				return err
			}
			c.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if c.skip(path) || !c.loader.Recognizes(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("mock root does not exist", "root", c.root)
		return nil, nil
	}
	return files, err
}

// Handle applies one event to the store.
func (c *Coordinator) Handle(ctx context.Context, ev Event) {
	path := filepath.Clean(ev.Path)
	if c.skip(path) {
		return
	}

	switch ev.Kind {
	case Add, Change:
		if !c.loader.Recognizes(path) {
			return
		}
		// Editors that save in place truncate first; the content follows
		// with another write.
		if info, err := os.Stat(path); err == nil && info.Size() == 0 {
			c.logger.Debug("skipping empty mock module", "path", path)
			return
		}
		c.load(ctx, path)
	case Unlink:
		if c.loader.Recognizes(path) && c.store.Remove(path) {
			c.logger.Info("mock module removed", "path", path)
		}
	case AddDir:
		// Files inside a new directory arrive as their own add events.
	case UnlinkDir:
		removed := c.store.RemoveAllUnder(path)
		c.logger.Info("mock directory removed", "path", path, "modules", len(removed))
		if err := c.Scan(ctx); err != nil {
			c.logger.Error("rescan after directory removal failed", "root", c.root, "error", err)
		}
	default:
		c.logger.Warn("ignoring unknown watch event", "kind", string(ev.Kind), "path", path)
	}
}

// Run applies events from src until ctx is done or the source closes.
// Unlinks of registered modules are held for the unlink grace window; see
// Options.UnlinkGrace. Held unlinks are applied when the source closes.
func (c *Coordinator) Run(ctx context.Context, src Source) error {
	events, errs := src.Events(), src.Errors()
	pending := make(map[string]time.Time)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				c.flushUnlinks(ctx, pending, time.Time{})
				return nil
			}
			c.route(ctx, ev, pending)
		case now := <-timer.C:
			c.flushUnlinks(ctx, pending, now)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.logger.Error("file watcher error", "error", err)
		}
		if next, ok := earliest(pending); ok {
			timer.Reset(time.Until(next))
		}
	}
}

// route applies ev, holding unlinks of registered modules in pending and
// folding an unlink followed by an add of the same path into a change.
func (c *Coordinator) route(ctx context.Context, ev Event, pending map[string]time.Time) {
	path := filepath.Clean(ev.Path)
	switch ev.Kind {
	case Unlink:
		if c.grace > 0 && c.store.Get(path) != nil {
			pending[path] = time.Now().Add(c.grace)
			return
		}
	case Add, Change:
		if _, ok := pending[path]; ok {
			delete(pending, path)
			ev = Event{Kind: Change, Path: path}
		}
	case UnlinkDir:
		prefix := path + string(filepath.Separator)
		for p := range pending {
			if p == path || strings.HasPrefix(p, prefix) {
				delete(pending, p)
			}
		}
	}
	c.Handle(ctx, ev)
}

// flushUnlinks applies every held unlink due at now, or all of them when now
// is zero. A path that exists again is reloaded in place instead.
func (c *Coordinator) flushUnlinks(ctx context.Context, pending map[string]time.Time, now time.Time) {
	for path, due := range pending {
		if !now.IsZero() && due.After(now) {
			continue
		}
		delete(pending, path)
		if _, err := os.Stat(path); err == nil {
			c.Handle(ctx, Event{Kind: Change, Path: path})
			continue
		}
		c.Handle(ctx, Event{Kind: Unlink, Path: path})
	}
}

func earliest(pending map[string]time.Time) (time.Time, bool) {
	var first time.Time
	for _, due := range pending {
		if first.IsZero() || due.Before(first) {
			first = due
		}
	}
	return first, !first.IsZero()
}

func (c *Coordinator) load(ctx context.Context, path string) {
	handlers, err := c.loader.Load(ctx, path)
	if c.obs != nil {
		c.obs.ObserveLoad(err)
	}
	if err != nil {
		c.logger.Error("failed to load mock module", "path", path, "error", err)
		// A registered module keeps its slot with no handlers, so the next
		// successful load restores it at the same priority.
		if c.store.Get(path) != nil {
			c.store.Upsert(path, nil)
		}
		return
	}
	c.store.Upsert(path, handlers)
	c.logger.Info("mock module loaded", "path", path, "handlers", len(handlers))
}

// skip reports whether path is a temporary artifact or matches an ignore glob.
func (c *Coordinator) skip(path string) bool {
	if loader.IsTempArtifact(path) {
		return true
	}
	if len(c.ignore) == 0 {
		return false
	}
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range c.ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
