package watch

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/devmock/internal/storage"
	"github.com/getmockd/devmock/pkg/loader"
)

// --- Helpers ---

type fakeSource struct {
	events chan Event
	errors chan error
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan Event), errors: make(chan error)}
}

func (f *fakeSource) Events() <-chan Event { return f.events }
func (f *fakeSource) Errors() <-chan error { return f.errors }
func (f *fakeSource) Close() error {
	close(f.events)
	return nil
}

func writeModule(t *testing.T, path, pattern string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	content := `[{"pattern": "` + pattern + `", "body": "ok"}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestCoordinator(t *testing.T, root string, ignore ...string) (*Coordinator, *storage.Registry, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	reg := storage.NewRegistry()
	c, err := NewCoordinator(Options{Root: root, Ignore: ignore, Logger: logger}, loader.New(loader.Options{Logger: logger}), reg)
	require.NoError(t, err)
	return c, reg, &logs
}

func patterns(reg *storage.Registry) []string {
	var out []string
	for _, r := range reg.Routes() {
		out = append(out, r.Pattern)
	}
	return out
}

// --- Scan ---

func TestScanLoadsNestedModulesInLexicalOrder(t *testing.T) {
	root := t.TempDir()
	writeModule(t, filepath.Join(root, "b.mock.json"), "/api/b")
	writeModule(t, filepath.Join(root, "a.mock.json"), "/api/a")
	writeModule(t, filepath.Join(root, "nested", "deep", "c.mock.json"), "/api/c")
	require.NoError(t, os.WriteFile(filepath.Join(root, "c.mock.yaml"), []byte("- pattern: /api/y\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# mocks"), 0o644))

	c, reg, _ := newTestCoordinator(t, root)
	require.NoError(t, c.Scan(context.Background()))

	assert.Equal(t, []string{
		filepath.Join(root, "a.mock.json"),
		filepath.Join(root, "b.mock.json"),
		filepath.Join(root, "c.mock.yaml"),
		filepath.Join(root, "nested", "deep", "c.mock.json"),
	}, reg.Keys(), "nested directories are fully loaded before Scan returns")
	assert.Equal(t, []string{"/api/a", "/api/b", "/api/y", "/api/c"}, patterns(reg))
}

func TestFilesListsModulesWithoutLoading(t *testing.T) {
	root := t.TempDir()
	writeModule(t, filepath.Join(root, "b.mock.json"), "/api/b")
	writeModule(t, filepath.Join(root, "a", "a.mock.json"), "/api/a")
	writeModule(t, filepath.Join(root, "skip", "s.mock.json"), "/api/s")
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	c, reg, _ := newTestCoordinator(t, root, "skip/**")
	files, err := c.Files(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a", "a.mock.json"),
		filepath.Join(root, "b.mock.json"),
	}, files)
	assert.Zero(t, reg.Len())
}

func TestScanMissingRoot(t *testing.T) {
	c, reg, logs := newTestCoordinator(t, filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, c.Scan(context.Background()))
	assert.Zero(t, reg.Len())
	assert.Contains(t, logs.String(), "mock root does not exist")
}

func TestScanSkipsBrokenModules(t *testing.T) {
	root := t.TempDir()
	writeModule(t, filepath.Join(root, "a.mock.json"), "/api/a")
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.mock.json"), []byte(`{"oops"`), 0o644))

	c, reg, logs := newTestCoordinator(t, root)
	require.NoError(t, c.Scan(context.Background()))
	assert.Equal(t, []string{"/api/a"}, patterns(reg))
	assert.Contains(t, logs.String(), "failed to load mock module")
}

type loadResults struct{ ok, failed int }

func (l *loadResults) ObserveLoad(err error) {
	if err != nil {
		l.failed++
		return
	}
	l.ok++
}

func TestScanReportsLoadsToObserver(t *testing.T) {
	root := t.TempDir()
	writeModule(t, filepath.Join(root, "good.mock.json"), "/api/good")
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.mock.json"), []byte("{"), 0o644))

	var results loadResults
	c, err := NewCoordinator(Options{Root: root, Observer: &results}, loader.New(loader.Options{}), storage.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, c.Scan(context.Background()))
	assert.Equal(t, loadResults{ok: 1, failed: 1}, results)
}

func TestScanHonoursIgnoreGlobs(t *testing.T) {
	root := t.TempDir()
	writeModule(t, filepath.Join(root, "a.mock.json"), "/api/a")
	writeModule(t, filepath.Join(root, "drafts", "x.mock.json"), "/api/x")
	writeModule(t, filepath.Join(root, "sub", "drafts", "y.mock.json"), "/api/y")

	c, reg, _ := newTestCoordinator(t, root, "**/drafts/**")
	require.NoError(t, c.Scan(context.Background()))
	assert.Equal(t, []string{"/api/a"}, patterns(reg))
}

func TestNewCoordinatorRejectsBadGlob(t *testing.T) {
	_, err := NewCoordinator(Options{Root: t.TempDir(), Ignore: []string{"[unclosed"}}, loader.New(loader.Options{}), storage.NewRegistry())
	require.Error(t, err)
}

// --- Handle ---

func TestHandleAddChangeUnlink(t *testing.T) {
	root := t.TempDir()
	c, reg, _ := newTestCoordinator(t, root)
	ctx := context.Background()
	a := filepath.Join(root, "a.mock.json")
	b := filepath.Join(root, "b.mock.json")

	writeModule(t, a, "/api/a1")
	c.Handle(ctx, Event{Kind: Add, Path: a})
	writeModule(t, b, "/api/b")
	c.Handle(ctx, Event{Kind: Add, Path: b})
	assert.Equal(t, []string{"/api/a1", "/api/b"}, patterns(reg))

	writeModule(t, a, "/api/a2")
	c.Handle(ctx, Event{Kind: Change, Path: a})
	assert.Equal(t, []string{"/api/a2", "/api/b"}, patterns(reg), "a reload keeps the module's position")

	require.NoError(t, os.Remove(a))
	c.Handle(ctx, Event{Kind: Unlink, Path: a})
	assert.Equal(t, []string{"/api/b"}, patterns(reg))

	c.Handle(ctx, Event{Kind: Unlink, Path: a})
	assert.Equal(t, []string{"/api/b"}, patterns(reg), "unlink of an absent module is a no-op")
}

func TestHandleFailedReloadKeepsSlot(t *testing.T) {
	root := t.TempDir()
	c, reg, logs := newTestCoordinator(t, root)
	ctx := context.Background()
	a := filepath.Join(root, "a.mock.json")
	b := filepath.Join(root, "b.mock.json")

	writeModule(t, a, "/api/a")
	c.Handle(ctx, Event{Kind: Add, Path: a})
	writeModule(t, b, "/api/b")
	c.Handle(ctx, Event{Kind: Add, Path: b})

	require.NoError(t, os.WriteFile(a, []byte(`[{"pattern": `), 0o644))
	c.Handle(ctx, Event{Kind: Change, Path: a})
	assert.Equal(t, []string{"/api/b"}, patterns(reg), "the broken module serves nothing")
	assert.Equal(t, []string{a, b}, reg.Keys(), "the broken module keeps its slot")
	assert.Contains(t, logs.String(), "failed to load mock module")

	writeModule(t, a, "/api/fixed")
	c.Handle(ctx, Event{Kind: Change, Path: a})
	assert.Equal(t, []string{"/api/fixed", "/api/b"}, patterns(reg))
}

func TestHandleFailedFirstLoadRegistersNothing(t *testing.T) {
	root := t.TempDir()
	c, reg, _ := newTestCoordinator(t, root)
	a := filepath.Join(root, "a.mock.json")

	require.NoError(t, os.WriteFile(a, []byte(`{"oops"`), 0o644))
	c.Handle(context.Background(), Event{Kind: Add, Path: a})
	assert.Zero(t, reg.Len())
}

func TestHandleSkipsEmptyFile(t *testing.T) {
	root := t.TempDir()
	c, reg, logs := newTestCoordinator(t, root)
	ctx := context.Background()
	a := filepath.Join(root, "a.mock.json")

	writeModule(t, a, "/api/a")
	c.Handle(ctx, Event{Kind: Add, Path: a})

	require.NoError(t, os.WriteFile(a, nil, 0o644))
	c.Handle(ctx, Event{Kind: Change, Path: a})
	assert.Equal(t, []string{"/api/a"}, patterns(reg), "a truncated file keeps the previous handlers")
	assert.NotContains(t, logs.String(), "failed to load mock module")
}

func TestHandleIgnoresTempArtifactsAndUnknownFiles(t *testing.T) {
	root := t.TempDir()
	c, reg, _ := newTestCoordinator(t, root)
	ctx := context.Background()

	tmp := filepath.Join(root, "a.mock.yaml.0badc0de"+loader.TempSuffix)
	require.NoError(t, os.WriteFile(tmp, []byte(`[{"pattern": "/api/tmp"}]`), 0o644))
	c.Handle(ctx, Event{Kind: Add, Path: tmp})

	txt := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	c.Handle(ctx, Event{Kind: Add, Path: txt})

	assert.Zero(t, reg.Len())
}

func TestHandleUnlinkDirCascadesAndRescans(t *testing.T) {
	root := t.TempDir()
	c, reg, _ := newTestCoordinator(t, root)
	ctx := context.Background()

	writeModule(t, filepath.Join(root, "top.mock.json"), "/api/top")
	writeModule(t, filepath.Join(root, "apis", "one.mock.json"), "/api/one")
	writeModule(t, filepath.Join(root, "apis", "deep", "two.mock.json"), "/api/two")
	writeModule(t, filepath.Join(root, "apis-extra", "three.mock.json"), "/api/three")
	require.NoError(t, c.Scan(ctx))
	require.Equal(t, 4, reg.Len())

	apis := filepath.Join(root, "apis")
	require.NoError(t, os.RemoveAll(apis))
	c.Handle(ctx, Event{Kind: UnlinkDir, Path: apis})

	assert.Equal(t, []string{"/api/three", "/api/top"}, patterns(reg))
	assert.Nil(t, reg.Get(filepath.Join(apis, "one.mock.json")))
	assert.Nil(t, reg.Get(filepath.Join(apis, "deep", "two.mock.json")))
}

func TestHandleAddDirIsNoop(t *testing.T) {
	root := t.TempDir()
	c, reg, _ := newTestCoordinator(t, root)
	writeModule(t, filepath.Join(root, "d", "a.mock.json"), "/api/a")

	c.Handle(context.Background(), Event{Kind: AddDir, Path: filepath.Join(root, "d")})
	assert.Zero(t, reg.Len())
}

// --- Run ---

func TestRunProcessesEventsUntilSourceCloses(t *testing.T) {
	root := t.TempDir()
	c, reg, logs := newTestCoordinator(t, root)
	src := newFakeSource()

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), src) }()

	a := filepath.Join(root, "a.mock.json")
	writeModule(t, a, "/api/a")
	src.events <- Event{Kind: Add, Path: a}
	src.errors <- os.ErrPermission
	require.NoError(t, src.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the source closed")
	}
	assert.Equal(t, []string{"/api/a"}, patterns(reg))
	assert.Contains(t, logs.String(), "file watcher error")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	c, _, _ := newTestCoordinator(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Run(ctx, newFakeSource())
	assert.ErrorIs(t, err, context.Canceled)
}

func startRun(t *testing.T, c *Coordinator, src Source) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx, src)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestRunFoldsUnlinkThenAddIntoChange(t *testing.T) {
	root := t.TempDir()
	c, reg, _ := newTestCoordinator(t, root)
	a := filepath.Join(root, "a.mock.json")
	b := filepath.Join(root, "b.mock.json")
	writeModule(t, a, "/api/a1")
	writeModule(t, b, "/api/b")
	require.NoError(t, c.Scan(context.Background()))

	src := newFakeSource()
	startRun(t, c, src)

	require.NoError(t, os.Remove(a))
	src.events <- Event{Kind: Unlink, Path: a}
	writeModule(t, a, "/api/a2")
	src.events <- Event{Kind: Add, Path: a}

	require.Eventually(t, func() bool {
		p := patterns(reg)
		return len(p) == 2 && p[0] == "/api/a2"
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{a, b}, reg.Keys())
}

func TestRunAppliesUnlinkAfterGrace(t *testing.T) {
	root := t.TempDir()
	reg := storage.NewRegistry()
	c, err := NewCoordinator(Options{Root: root, UnlinkGrace: 20 * time.Millisecond}, loader.New(loader.Options{}), reg)
	require.NoError(t, err)
	a := filepath.Join(root, "a.mock.json")
	writeModule(t, a, "/api/a")
	require.NoError(t, c.Scan(context.Background()))

	src := newFakeSource()
	startRun(t, c, src)

	require.NoError(t, os.Remove(a))
	src.events <- Event{Kind: Unlink, Path: a}
	require.Eventually(t, func() bool { return reg.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestRunAppliesHeldUnlinksWhenSourceCloses(t *testing.T) {
	root := t.TempDir()
	reg := storage.NewRegistry()
	c, err := NewCoordinator(Options{Root: root, UnlinkGrace: time.Hour}, loader.New(loader.Options{}), reg)
	require.NoError(t, err)
	a := filepath.Join(root, "a.mock.json")
	writeModule(t, a, "/api/a")
	require.NoError(t, c.Scan(context.Background()))

	src := newFakeSource()
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), src) }()

	require.NoError(t, os.Remove(a))
	src.events <- Event{Kind: Unlink, Path: a}
	require.NoError(t, src.Close())
	require.NoError(t, <-done)
	assert.Zero(t, reg.Len())
}

// --- FSNotifySource ---

func waitForEvent(t *testing.T, src Source, kind EventKind, path string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-src.Events():
			require.True(t, ok, "event channel closed while waiting for %s %s", kind, path)
			if ev.Kind == kind && ev.Path == path {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s %s", kind, path)
		}
	}
}

func TestFSNotifySource(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "existing")
	require.NoError(t, os.Mkdir(existing, 0o755))

	src, err := NewFSNotifySource(root, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	a := filepath.Join(root, "a.mock.json")
	writeModule(t, a, "/api/a")
	waitForEvent(t, src, Add, a)

	nested := filepath.Join(existing, "n.mock.json")
	writeModule(t, nested, "/api/n")
	waitForEvent(t, src, Add, nested)

	fresh := filepath.Join(root, "fresh", "inner")
	f := filepath.Join(fresh, "f.mock.json")
	writeModule(t, f, "/api/f")
	waitForEvent(t, src, Add, f)

	require.NoError(t, os.RemoveAll(existing))
	waitForEvent(t, src, UnlinkDir, existing)

	require.NoError(t, os.Remove(a))
	waitForEvent(t, src, Unlink, a)
}

func TestFSNotifySourceMissingRoot(t *testing.T) {
	_, err := NewFSNotifySource(filepath.Join(t.TempDir(), "absent"), nil)
	require.Error(t, err)
}

func TestFSNotifySourceCloseIsIdempotent(t *testing.T) {
	src, err := NewFSNotifySource(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, src.Close())
	_ = src.Close()

	_, ok := <-src.Events()
	assert.False(t, ok)
}

// --- Editor saves under a live watcher ---

func liveCoordinator(t *testing.T, root string) *storage.Registry {
	t.Helper()
	c, reg, _ := newTestCoordinator(t, root)
	require.NoError(t, c.Scan(context.Background()))
	src, err := NewFSNotifySource(root, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	startRun(t, c, src)
	return reg
}

func waitForPatterns(t *testing.T, reg *storage.Registry, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, patterns(reg))
	}, 5*time.Second, 10*time.Millisecond)
}

func TestInPlaceSavesKeepModuleOrder(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.mock.json")
	b := filepath.Join(root, "b.mock.json")
	writeModule(t, a, "/api/a0")
	writeModule(t, b, "/api/b")
	reg := liveCoordinator(t, root)

	for i := 1; i <= 10; i++ {
		f, err := os.OpenFile(a, os.O_WRONLY|os.O_TRUNC, 0o644)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		want := "/api/a" + strconv.Itoa(i)
		_, err = f.WriteString(`[{"pattern": "` + want + `", "body": "ok"}]`)
		require.NoError(t, err)
		require.NoError(t, f.Close())

		waitForPatterns(t, reg, want, "/api/b")
		assert.Equal(t, []string{a, b}, reg.Keys())
	}
}

func TestRenameSaveKeepsModuleOrder(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.mock.json")
	b := filepath.Join(root, "b.mock.json")
	writeModule(t, a, "/api/a1")
	writeModule(t, b, "/api/b")
	reg := liveCoordinator(t, root)

	require.NoError(t, os.Rename(a, a+"~"))
	writeModule(t, a, "/api/a2")

	waitForPatterns(t, reg, "/api/a2", "/api/b")
	assert.Equal(t, []string{a, b}, reg.Keys())
}
