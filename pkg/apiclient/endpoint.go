package apiclient

import (
	"net/url"
	"strings"

	"github.com/vango-dev/synthdesk/internal/errors"
)

// Endpoint substitutes ":name" placeholders in template with escaped
// params. Placeholders without a value are left in place.
func Endpoint(template string, params map[string]string) string {
	if len(params) == 0 || !strings.Contains(template, ":") {
		return template
	}
	segments := strings.Split(template, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		if v, ok := params[seg[1:]]; ok {
			segments[i] = url.PathEscape(v)
		}
	}
	return strings.Join(segments, "/")
}

// EndpointFor expands the configured template registered under name.
func (c *Client) EndpointFor(name string, params map[string]string) (string, error) {
	template, ok := c.endpoints[name]
	if !ok {
		return "", errors.New("E220").WithDetail("no endpoint named " + name)
	}
	out := Endpoint(template, params)
	for _, seg := range strings.Split(out, "/") {
		if strings.HasPrefix(seg, ":") {
			return "", errors.New("E220").WithDetail("endpoint " + name + " is missing parameter " + seg[1:])
		}
	}
	return out, nil
}
