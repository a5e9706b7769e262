package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/vango-dev/synthdesk/internal/errors"
)

// HTTPError is returned for responses with status >= 400. Body holds the
// parsed error payload.
type HTTPError struct {
	Status int
	Method string
	URL    string
	Body   any
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.Status)
	if detail := e.Message(); detail != "" {
		msg += ": " + detail
	}
	return msg
}

// Message returns the server's error message, if the body carries one.
func (e *HTTPError) Message() string {
	switch b := e.Body.(type) {
	case map[string]any:
		for _, k := range []string{"message", "error", "detail"} {
			if s, ok := b[k].(string); ok {
				return s
			}
		}
	case string:
		return strings.TrimSpace(b)
	}
	return ""
}

// parseBody dispatches on the declared content type. JSON is decoded to
// any, text/* becomes a string, other declared types stay []byte, and an
// undeclared type is tried as JSON and then as text.
func parseBody(resp *http.Response) (any, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New("E101").WithDetail("reading response body").Wrap(err)
	}

	mediaType := ""
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			mediaType = mt
		}
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.New("E103").Wrap(err)
		}
		return v, nil

	case strings.HasPrefix(mediaType, "text/"):
		return string(raw), nil

	case mediaType != "":
		return raw, nil

	default:
		if len(raw) == 0 {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		return string(raw), nil
	}
}

// Decode converts a parsed JSON payload into T.
func Decode[T any](payload any) (T, error) {
	var out T
	raw, err := json.Marshal(payload)
	if err != nil {
		return out, errors.New("E103").Wrap(err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errors.New("E103").Wrap(err)
	}
	return out, nil
}
