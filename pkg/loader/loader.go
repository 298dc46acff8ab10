package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/getmockd/devmock/internal/id"
	"github.com/getmockd/devmock/pkg/logging"
	"github.com/getmockd/devmock/pkg/mock"
)

// TempSuffix ends the name of every temporary artifact the loader writes.
// Watchers must ignore files carrying it.
const TempSuffix = ".tmp.json"

// Default suffixes recognised as mock modules.
var (
	DefaultNativeSuffixes   = []string{".mock.json"}
	DefaultCompiledSuffixes = []string{".mock.yaml", ".mock.yml"}
)

// Kind classifies a path by suffix.
type Kind int

// Module kinds.
const (
	KindUnknown Kind = iota
	KindNative
	KindCompiled
)

// Options configures a Loader.
type Options struct {
	// NativeSuffixes are decoded directly.
	NativeSuffixes []string

	// CompiledSuffixes go through Compiler first.
	CompiledSuffixes []string

	// Compiler defaults to YAMLCompiler.
	Compiler Compiler

	// Logger defaults to logging.Nop().
	Logger *slog.Logger
}

// Loader turns a module file into a fresh handler list.
//
// Nothing is cached between loads: every call reads the source again and
// builds new handler values.
type Loader struct {
	native   []string
	compiled []string
	compiler Compiler
	logger   *slog.Logger

	remove       func(string) error
	cleanupRetry func() backoff.BackOff
}

// New creates a Loader, filling unset options with defaults.
func New(opts Options) *Loader {
	l := &Loader{
		native:   opts.NativeSuffixes,
		compiled: opts.CompiledSuffixes,
		compiler: opts.Compiler,
		logger:   opts.Logger,
		remove:   os.Remove,
		cleanupRetry: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(20*time.Millisecond),
				backoff.WithMaxInterval(200*time.Millisecond),
				backoff.WithMaxElapsedTime(time.Second),
			), 4)
		},
	}
	if l.native == nil {
		l.native = DefaultNativeSuffixes
	}
	if l.compiled == nil {
		l.compiled = DefaultCompiledSuffixes
	}
	if l.compiler == nil {
		l.compiler = YAMLCompiler{}
	}
	if l.logger == nil {
		l.logger = logging.Nop()
	}
	return l
}

// KindOf classifies path by its suffix. Temporary artifacts are never
// recognised.
func (l *Loader) KindOf(path string) Kind {
	if IsTempArtifact(path) {
		return KindUnknown
	}
	for _, s := range l.native {
		if strings.HasSuffix(path, s) {
			return KindNative
		}
	}
	for _, s := range l.compiled {
		if strings.HasSuffix(path, s) {
			return KindCompiled
		}
	}
	return KindUnknown
}

// Recognizes reports whether path is a loadable module.
func (l *Loader) Recognizes(path string) bool {
	return l.KindOf(path) != KindUnknown
}

// IsTempArtifact reports whether path names a loader temporary artifact.
func IsTempArtifact(path string) bool {
	return strings.HasSuffix(path, TempSuffix)
}

// Load reads the module at path and returns its resolved handlers.
func (l *Loader) Load(ctx context.Context, path string) ([]mock.Handler, error) {
	exp, err := l.LoadExport(ctx, path)
	if err != nil {
		return nil, err
	}
	return exp.Resolve(), nil
}

// LoadExport reads the module at path and returns its export without
// resolving it. Returned errors are *LoadError.
func (l *Loader) LoadExport(ctx context.Context, path string) (mock.Exported, error) {
	switch l.KindOf(path) {
	case KindNative:
		data, lerr := readModule(path)
		if lerr != nil {
			return nil, lerr
		}
		return l.decode(path, data)
	case KindCompiled:
		return l.loadCompiled(ctx, path)
	default:
		return nil, newLoadError(path, ErrUnsupported, "no loader for this file suffix", nil)
	}
}

func (l *Loader) loadCompiled(ctx context.Context, path string) (mock.Exported, error) {
	out, err := l.compiler.Compile(ctx, path)
	if err != nil {
		return nil, newLoadError(path, ErrCompile, "compiler failed", err)
	}

	artifact := fmt.Sprintf("%s.%s%s", path, id.Short(), TempSuffix)
	defer l.removeArtifact(context.WithoutCancel(ctx), artifact)

	if err := os.WriteFile(artifact, out, 0o600); err != nil {
		return nil, newLoadError(path, ErrCompile, "cannot write temporary artifact", err)
	}

	data, lerr := readModule(artifact)
	if lerr != nil {
		lerr.Path = path
		return nil, lerr
	}
	return l.decode(path, data)
}

// removeArtifact deletes a temporary artifact, retrying briefly. A final
// failure is logged and otherwise ignored.
func (l *Loader) removeArtifact(ctx context.Context, artifact string) {
	op := func() error {
		err := l.remove(artifact)
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(l.cleanupRetry(), ctx)); err != nil {
		l.logger.Warn("failed to remove temporary artifact", "path", artifact, "error", err)
	}
}

func readModule(path string) ([]byte, *LoadError) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newLoadError(path, ErrRead, "cannot read file", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, newLoadError(path, ErrRead, "file is empty", nil)
	}
	return data, nil
}

// moduleObject is the object form of a module export.
type moduleObject struct {
	Vars     map[string]any     `json:"vars"`
	Handlers *[]mock.Definition `json:"handlers"`
}

func (l *Loader) decode(path string, data []byte) (mock.Exported, error) {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, newLoadError(path, ErrSyntax, "cannot parse module", err)
	}

	switch decoded.(type) {
	case []any, map[string]any:
		if err := checkSchema(decoded); err != nil {
			return nil, newLoadError(path, ErrExportShape, "module does not match the module schema", err)
		}
	}

	switch decoded.(type) {
	case []any:
		var defs []mock.Definition
		if err := strictUnmarshal(data, &defs); err != nil {
			return nil, newLoadError(path, ErrExportShape, "invalid handler list", err)
		}
		b, err := l.newBuilder(path, defs, nil)
		if err != nil {
			return nil, err
		}
		return mock.Direct(b.build()), nil

	case map[string]any:
		var obj moduleObject
		if err := strictUnmarshal(data, &obj); err != nil {
			return nil, newLoadError(path, ErrExportShape, "invalid module object", err)
		}
		if obj.Handlers == nil {
			return nil, newLoadError(path, ErrExportShape, `module object has no "handlers" array`, nil)
		}
		b, err := l.newBuilder(path, *obj.Handlers, obj.Vars)
		if err != nil {
			return nil, err
		}
		return mock.Factory(b.build), nil

	default:
		return nil, newLoadError(path, ErrExportShape,
			fmt.Sprintf("module must export an array or an object, got %s", jsonKind(decoded)), nil)
	}
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
