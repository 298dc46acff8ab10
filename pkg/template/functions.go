package template

import (
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// funcRandomInt returns a random integer in [min, max] as a string. The span
// is computed in uint64 so the full int range does not overflow.
func funcRandomInt(min, max int) string {
	if min > max {
		return ""
	}
	span := uint64(max) - uint64(min)
	var n uint64
	if span == math.MaxUint64 {
		n = rand.Uint64()
	} else {
		n = rand.Uint64N(span + 1)
	}
	return strconv.Itoa(int(uint64(min) + n))
}

func funcRandomString(n int) string {
	var b strings.Builder
	b.Grow(n)
	for range n {
		b.WriteByte(alphanumeric[rand.IntN(len(alphanumeric))])
	}
	return b.String()
}

func funcDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// funcJSONPath evaluates a JSONPath expression such as "$.items[0].id"
// against data. One scalar result is formatted as text; objects, arrays and
// multiple results are written as JSON.
func funcJSONPath(path string, data any) string {
	x, err := jp.ParseString(path)
	if err != nil {
		return ""
	}
	results := x.Get(data)
	switch len(results) {
	case 0:
		return ""
	case 1:
		switch results[0].(type) {
		case map[string]any, []any:
			return oj.JSON(results[0])
		}
		return formatValue(results[0])
	}
	return oj.JSON(results)
}
