package router

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var paramName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type matcher struct {
	re       *regexp.Regexp
	names    []string
	catchAll string
}

// compilePattern turns "/models/:id" into an anchored regexp. Anchoring
// keeps "/models" from matching "/models/create".
func compilePattern(pattern string) (*matcher, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("pattern %q must start with /", pattern)
	}
	if pattern == "/" {
		return &matcher{re: regexp.MustCompile(`^/$`)}, nil
	}

	m := &matcher{}
	seen := make(map[string]bool)
	segments := strings.Split(strings.Trim(pattern, "/"), "/")

	var b strings.Builder
	b.WriteString("^")
	for i, seg := range segments {
		switch {
		case seg == "":
			return nil, fmt.Errorf("pattern %q has an empty segment", pattern)

		case strings.HasPrefix(seg, ":"):
			name := seg[1:]
			if !paramName.MatchString(name) || seen[name] {
				return nil, fmt.Errorf("pattern %q: invalid or duplicate parameter %q", pattern, name)
			}
			seen[name] = true
			m.names = append(m.names, name)
			b.WriteString("/([^/]+)")

		case strings.HasPrefix(seg, "*"):
			name := seg[1:]
			if i != len(segments)-1 {
				return nil, fmt.Errorf("pattern %q: catch-all must be the last segment", pattern)
			}
			if !paramName.MatchString(name) || seen[name] {
				return nil, fmt.Errorf("pattern %q: invalid or duplicate parameter %q", pattern, name)
			}
			m.names = append(m.names, name)
			m.catchAll = name
			b.WriteString("(?:/(.*))?")

		default:
			b.WriteString("/")
			b.WriteString(regexp.QuoteMeta(seg))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	m.re = re
	return m, nil
}

// match extracts parameters positionally. ok is false when the path does
// not match; err is set when it matches but a parameter is malformed.
func (m *matcher) match(path string) (params map[string]string, ok bool, err error) {
	groups := m.re.FindStringSubmatch(path)
	if groups == nil {
		return nil, false, nil
	}
	params = make(map[string]string, len(m.names))
	for i, name := range m.names {
		value, err := decodeSegment(groups[i+1], name == m.catchAll)
		if err != nil {
			return nil, true, err
		}
		params[name] = value
	}
	return params, true, nil
}

// BuildURL fills a pattern's parameters and appends an encoded query with
// keys in sorted order. Resolving the result yields params and query back.
func BuildURL(pattern string, params, query map[string]string) (string, error) {
	if _, err := compilePattern(pattern); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, seg := range strings.Split(strings.Trim(pattern, "/"), "/") {
		if seg == "" {
			continue
		}
		switch {
		case strings.HasPrefix(seg, ":"):
			value, ok := params[seg[1:]]
			if !ok || value == "" {
				return "", fmt.Errorf("missing parameter %q for %s", seg[1:], pattern)
			}
			if strings.Contains(value, "/") {
				return "", fmt.Errorf("%w: parameter %q", ErrEncodedSlashInSegment, seg[1:])
			}
			if err := checkSegment(seg[1:], value); err != nil {
				return "", err
			}
			b.WriteString("/")
			b.WriteString(url.PathEscape(value))

		case strings.HasPrefix(seg, "*"):
			value := strings.Trim(params[seg[1:]], "/")
			if value == "" {
				continue
			}
			for _, part := range strings.Split(value, "/") {
				if err := checkSegment(seg[1:], part); err != nil {
					return "", err
				}
				b.WriteString("/")
				b.WriteString(url.PathEscape(part))
			}

		default:
			b.WriteString("/")
			b.WriteString(seg)
		}
	}

	path := b.String()
	if path == "" {
		path = "/"
	}
	if len(query) == 0 {
		return path, nil
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(query[k]))
	}
	return path + "?" + strings.Join(pairs, "&"), nil
}

// checkSegment rejects parameter values that Canonicalize would rewrite.
func checkSegment(name, value string) error {
	switch value {
	case "":
		return fmt.Errorf("%w: empty segment in parameter %q", ErrInvalidPath, name)
	case ".", "..":
		return fmt.Errorf("%w: dot segment in parameter %q", ErrInvalidPath, name)
	}
	return nil
}
