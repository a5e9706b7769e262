package router

import (
	stderrors "errors"
	"net/url"
	"strings"
)

// Path canonicalization errors.
var (
	ErrInvalidPath           = stderrors.New("invalid path")
	ErrBackslashInPath       = stderrors.New("path contains backslash")
	ErrNullByteInPath        = stderrors.New("path contains null byte")
	ErrInvalidPercentEscape  = stderrors.New("invalid percent escape sequence")
	ErrPathEscapesRoot       = stderrors.New("path escapes root via ..")
	ErrEncodedSlashInSegment = stderrors.New("encoded slash (%2F) in single-segment parameter")
)

// Canonicalize normalizes a navigation path and splits off its query.
//
//   - a missing leading slash is added
//   - repeated slashes collapse (/models//create → /models/create)
//   - "." segments are dropped and ".." segments resolved
//   - a trailing slash is removed, except for "/"
//
// Backslashes, NUL bytes, malformed percent escapes and ".." above the
// root are rejected. The query is returned without the leading "?" and
// is not modified.
func Canonicalize(input string) (path, query string, err error) {
	if input == "" {
		return "/", "", nil
	}

	path, query, _ = strings.Cut(input, "?")
	path, _, _ = strings.Cut(path, "#")

	if strings.Contains(path, `\`) {
		return "", "", ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return "", "", ErrNullByteInPath
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return "", "", err
		}
	}

	var segments []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segments) == 0 {
				return "", "", ErrPathEscapesRoot
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}

	return "/" + strings.Join(segments, "/"), query, nil
}

// ValidateNavPath canonicalizes a path handed to Navigate. Absolute URLs
// and protocol-relative paths are rejected so a navigation can never
// leave the application.
func ValidateNavPath(input string) (string, error) {
	if strings.HasPrefix(input, "http://") ||
		strings.HasPrefix(input, "https://") ||
		strings.HasPrefix(input, "//") ||
		!strings.HasPrefix(input, "/") {
		return "", ErrInvalidPath
	}

	path, query, err := Canonicalize(input)
	if err != nil {
		return "", err
	}
	if query != "" {
		return path + "?" + query, nil
	}
	return path, nil
}

func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// decodeSegment unescapes a captured parameter. Single-segment parameters
// may not smuggle a slash in as %2F.
func decodeSegment(raw string, catchAll bool) (string, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", ErrInvalidPercentEscape
	}
	if !catchAll && strings.Contains(decoded, "/") {
		return "", ErrEncodedSlashInSegment
	}
	return decoded, nil
}

// ParseQuery decodes a query string into a flat map. Only the first
// value of a repeated key is kept; malformed pairs are skipped.
func ParseQuery(query string) map[string]string {
	out := make(map[string]string)
	query = strings.TrimPrefix(query, "?")
	if query == "" {
		return out
	}
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil || key == "" {
			continue
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		if _, seen := out[key]; !seen {
			out[key] = value
		}
	}
	return out
}
