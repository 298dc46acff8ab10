package template

import (
	"math"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/devmock/pkg/mock"
)

func newRequestContext(t *testing.T, target string, vars map[string]any) *Context {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, target, nil)
	r.Header.Set("X-Trace-Id", "trace-1")
	req := &mock.Request{
		Request: r,
		Params:  mock.PathVars{"id": "42"},
		Query:   map[string]string{"q": "shoes", "empty": ""},
		Body: map[string]any{
			"user":  map[string]any{"name": "ada"},
			"items": []any{map[string]any{"id": float64(7)}},
		},
	}
	return NewContext(req, vars)
}

func TestProcessRequestFields(t *testing.T) {
	engine := New()
	ctx := newRequestContext(t, "/api/users/42?q=shoes&empty", map[string]any{
		"region": "eu",
		"limits": map[string]any{"max": float64(10)},
	})

	tests := []struct {
		template string
		expected string
	}{
		{"{{request.method}}", "POST"},
		{"{{request.path}}", "/api/users/42"},
		{"{{request.url}}", "/api/users/42?q=shoes&empty"},
		{"{{request.query.q}}", "shoes"},
		{"{{request.query.missing}}", ""},
		{"{{request.params.id}}", "42"},
		{"{{request.pathParam.id}}", "42"},
		{"{{request.header.x-trace-id}}", "trace-1"},
		{"{{request.body.user.name}}", "ada"},
		{"{{request.body.items.0.id}}", "7"},
		{"{{request.body.items.5.id}}", ""},
		{"{{vars.region}}", "eu"},
		{"{{vars.limits.max}}", "10"},
		{"{{ request.method }} {{request.path}}", "POST /api/users/42"},
		{"no expressions", "no expressions"},
		{"{{unknown.thing}}", ""},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			got, err := engine.Process(tt.template, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestProcessFunctions(t *testing.T) {
	engine := New()
	ctx := newRequestContext(t, "/api/x?q=Shoes", nil)
	ctx.Request.Query = map[string]string{"q": "Shoes"}

	tests := []struct {
		template string
		expected string
	}{
		{"{{upper(request.query.q)}}", "SHOES"},
		{"{{lower(request.query.q)}}", "shoes"},
		{`{{upper("lit")}}`, "LIT"},
		{`{{default(request.query.missing, "none")}}`, "none"},
		{`{{default(request.query.q, "none")}}`, "Shoes"},
		{`{{default(request.query.q)}}`, ""},
		{`{{jsonPath("$.user.name")}}`, "ada"},
		{`{{jsonPath("$.items[0].id")}}`, "7"},
		{`{{jsonPath("$.items[0]")}}`, `{"id":7}`},
		{`{{jsonPath("$.nothing")}}`, ""},
		{`{{jsonPath("$[")}}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			got, err := engine.Process(tt.template, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestProcessBuiltins(t *testing.T) {
	engine := New()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	engine.now = func() time.Time { return fixed }

	got, _ := engine.Process("{{now}}", nil)
	assert.Equal(t, "2026-01-02T03:04:05Z", got)

	got, _ = engine.Process("{{timestamp}}", nil)
	assert.Equal(t, strconv.FormatInt(fixed.Unix(), 10), got)

	got, _ = engine.Process("{{uuid}}", nil)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`), got)

	got, _ = engine.Process("{{uuid.short}}", nil)
	assert.Len(t, got, 8)

	got, _ = engine.Process("{{random.int(5, 5)}}", nil)
	assert.Equal(t, "5", got)

	got, _ = engine.Process("{{random.string(12)}}", nil)
	assert.Regexp(t, `^[A-Za-z0-9]{12}$`, got)
}

func TestRandomIntBounds(t *testing.T) {
	engine := New()

	tests := []struct {
		name     string
		template string
		min, max int64
		empty    bool
	}{
		{"single value", "{{random.int(7, 7)}}", 7, 7, false},
		{"small range", "{{random.int(1, 3)}}", 1, 3, false},
		{"up to max int", "{{random.int(0, 9223372036854775807)}}", 0, math.MaxInt64, false},
		{"max int only", "{{random.int(9223372036854775807, 9223372036854775807)}}", math.MaxInt64, math.MaxInt64, false},
		{"reversed bounds", "{{random.int(9, 1)}}", 0, 0, true},
		{"out of int range", "{{random.int(0, 99999999999999999999)}}", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 20 {
				got, err := engine.Process(tt.template, nil)
				require.NoError(t, err)
				if tt.empty {
					assert.Empty(t, got)
					continue
				}
				n, err := strconv.ParseInt(got, 10, 64)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, n, tt.min)
				assert.LessOrEqual(t, n, tt.max)
			}
		})
	}

	assert.NotEmpty(t, funcRandomInt(math.MinInt, math.MaxInt), "the full int range is accepted")
}

func TestProcessNilContext(t *testing.T) {
	engine := New()
	got, err := engine.Process("[{{request.url}}|{{vars.x}}]", nil)
	require.NoError(t, err)
	assert.Equal(t, "[|]", got)
}

func TestSequence(t *testing.T) {
	engine := New()

	for i := 1; i <= 3; i++ {
		got, _ := engine.Process(`{{sequence("orders")}}`, nil)
		assert.Equal(t, strconv.Itoa(i), got)
	}

	got, _ := engine.Process(`{{sequence("ids", 100)}}`, nil)
	assert.Equal(t, "100", got)
	got, _ = engine.Process(`{{sequence("ids", 100)}}`, nil)
	assert.Equal(t, "101", got)

	engine.Sequences().Reset("orders")
	got, _ = engine.Process(`{{sequence("orders")}}`, nil)
	assert.Equal(t, "1", got)
}

func TestSequencesAreIsolatedPerEngine(t *testing.T) {
	a, b := New(), New()
	_, _ = a.Process(`{{sequence("n")}}`, nil)
	_, _ = a.Process(`{{sequence("n")}}`, nil)

	got, _ := b.Process(`{{sequence("n")}}`, nil)
	assert.Equal(t, "1", got)
}

func TestHasExpressions(t *testing.T) {
	assert.True(t, HasExpressions("id={{request.params.id}}"))
	assert.False(t, HasExpressions("plain {text}"))
}

func TestSplitFuncArgs(t *testing.T) {
	assert.Equal(t, []string{`request.query.q`, `"a, b"`}, splitFuncArgs(`request.query.q, "a, b"`))
	assert.Equal(t, []string{`'x'`}, splitFuncArgs(`'x'`))
	assert.Nil(t, splitFuncArgs(""))
}
