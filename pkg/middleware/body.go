// Package middleware provides pass-through layers that can run in front of
// the devmock dispatcher.
package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/getmockd/devmock/pkg/httputil"
	"github.com/getmockd/devmock/pkg/mock"
)

// DefaultBodyLimit is the largest body BodyParser reads when no limit is given.
const DefaultBodyLimit = 10 << 20

// BodyParser parses the request body by content type and attaches the
// result with mock.WithBody, where mock handlers find it as Request.Body:
//
//	application/json, */*+json          -> any (as encoding/json decodes it)
//	application/x-www-form-urlencoded   -> map[string]string, last value wins
//	text/*                              -> string
//
// Other content types are left unparsed. The raw body is restored so later
// handlers can read it again. A body that does not parse is passed on with
// no parsed value attached, so unmatched requests still reach the next
// handler. A body over limit is answered with 413.
func BodyParser(limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			kind := bodyKind(r.Header.Get("Content-Type"))
			if kind == kindOther {
				next.ServeHTTP(w, r)
				return
			}

			raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					httputil.WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds the configured limit")
					return
				}
				httputil.WriteBadRequest(w, "read_error", "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))

			if len(raw) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			parsed, err := parse(kind, raw)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(mock.WithBody(r.Context(), parsed)))
		})
	}
}

type kind int

const (
	kindOther kind = iota
	kindJSON
	kindForm
	kindText
)

func bodyKind(contentType string) kind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return kindOther
	}
	switch {
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return kindJSON
	case mediaType == "application/x-www-form-urlencoded":
		return kindForm
	case strings.HasPrefix(mediaType, "text/"):
		return kindText
	}
	return kindOther
}

func parse(k kind, raw []byte) (any, error) {
	switch k {
	case kindJSON:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.New("malformed JSON body")
		}
		return v, nil
	case kindForm:
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, errors.New("malformed form body")
		}
		form := make(map[string]string, len(values))
		for key, vs := range values {
			form[key] = vs[len(vs)-1]
		}
		return form, nil
	default:
		return string(raw), nil
	}
}
