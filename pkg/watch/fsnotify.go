package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/getmockd/devmock/pkg/logging"
)

// FSNotifySource watches a directory tree with fsnotify.
//
// fsnotify is not recursive, so every directory below the root gets its own
// watch. When a directory is created, the files already inside it are
// reported as Add so nothing written between mkdir and the new watch is lost.
type FSNotifySource struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	events chan Event
	errors chan error

	mu   sync.Mutex
	dirs map[string]struct{}

	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

// NewFSNotifySource starts watching root and every directory below it.
func NewFSNotifySource(root string, logger *slog.Logger) (*FSNotifySource, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	s := &FSNotifySource{
		watcher: w,
		logger:  logger,
		events:  make(chan Event, 64),
		errors:  make(chan error, 8),
		dirs:    make(map[string]struct{}),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	if err := s.addTree(filepath.Clean(root), false); err != nil {
		_ = w.Close()
		return nil, err
	}

	go s.loop()
	return s, nil
}

// Events implements Source.
func (s *FSNotifySource) Events() <-chan Event { return s.events }

// Errors implements Source.
func (s *FSNotifySource) Errors() <-chan error { return s.errors }

// Close stops watching and waits for the event loop to exit.
func (s *FSNotifySource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		err = s.watcher.Close()
		<-s.done
	})
	return err
}

func (s *FSNotifySource) loop() {
	defer close(s.done)
	defer close(s.events)

	for {
		select {
		case <-s.closing:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.translate(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			select {
			case s.errors <- err:
			case <-s.closing:
				return
			}
		}
	}
}

func (s *FSNotifySource) translate(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			// Gone again before we looked.
			return
		}
		if info.IsDir() {
			if err := s.addTree(path, true); err != nil {
				s.logger.Warn("cannot watch new directory", "path", path, "error", err)
			}
			return
		}
		s.emit(Event{Kind: Add, Path: path})

	case ev.Has(fsnotify.Write):
		s.emit(Event{Kind: Change, Path: path})

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if s.forgetDir(path) {
			s.emit(Event{Kind: UnlinkDir, Path: path})
			return
		}
		s.emit(Event{Kind: Unlink, Path: path})
	}
}

// addTree watches dir and its subdirectories. With report set it emits
// AddDir for each directory and Add for each file found.
func (s *FSNotifySource) addTree(dir string, report bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			if report {
				s.emit(Event{Kind: Add, Path: path})
			}
			return nil
		}
		if err := s.watcher.Add(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return fmt.Errorf("watching %s: %w", path, err)
		}
		s.mu.Lock()
		s.dirs[path] = struct{}{}
		s.mu.Unlock()
		if report {
			s.emit(Event{Kind: AddDir, Path: path})
		}
		return nil
	})
}

// forgetDir drops dir and everything below it from the watched set and
// reports whether dir was a watched directory.
func (s *FSNotifySource) forgetDir(dir string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dirs[dir]; !ok {
		return false
	}
	prefix := dir + string(filepath.Separator)
	for d := range s.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(s.dirs, d)
			// The kernel drops watches on deleted directories; a renamed
			// directory still holds one.
			_ = s.watcher.Remove(d)
		}
	}
	return true
}

func (s *FSNotifySource) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.closing:
	}
}

var _ Source = (*FSNotifySource)(nil)
