package router

import (
	"reflect"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		input string
		path  string
		query string
		err   error
	}{
		{"", "/", "", nil},
		{"/", "/", "", nil},
		{"models", "/models", "", nil},
		{"/models/", "/models", "", nil},
		{"/models//create", "/models/create", "", nil},
		{"/models/./create", "/models/create", "", nil},
		{"/models/x/../create", "/models/create", "", nil},
		{"/models?page=2", "/models", "page=2", nil},
		{"/models#top", "/models", "", nil},
		{"/..", "", "", ErrPathEscapesRoot},
		{`/a\b`, "", "", ErrBackslashInPath},
		{"/a%00b", "", "", ErrNullByteInPath},
		{"/a%GG", "", "", ErrInvalidPercentEscape},
		{"/a%2", "", "", ErrInvalidPercentEscape},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			path, query, err := Canonicalize(tt.input)
			if err != tt.err {
				t.Fatalf("Canonicalize(%q) error = %v, want %v", tt.input, err, tt.err)
			}
			if path != tt.path || query != tt.query {
				t.Errorf("Canonicalize(%q) = %q, %q; want %q, %q", tt.input, path, query, tt.path, tt.query)
			}
		})
	}
}

func TestValidateNavPath(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"/models//create?tab=1", "/models/create?tab=1", false},
		{"/", "/", false},
		{"http://example.com/", "", true},
		{"https://example.com/", "", true},
		{"//example.com", "", true},
		{"models", "", true},
	}
	for _, tt := range tests {
		got, err := ValidateNavPath(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateNavPath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ValidateNavPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		query string
		want  map[string]string
	}{
		{"", map[string]string{}},
		{"?a=1", map[string]string{"a": "1"}},
		{"a=1&b=two+words&c=%26", map[string]string{"a": "1", "b": "two words", "c": "&"}},
		{"a=1&a=2", map[string]string{"a": "1"}},
		{"flag&=x&bad=%zz", map[string]string{"flag": ""}},
	}
	for _, tt := range tests {
		if got := ParseQuery(tt.query); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseQuery(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestMemoryHistory(t *testing.T) {
	h := NewMemoryHistory()
	if h.Current() != "" || h.Go(-1) {
		t.Fatal("empty history should have no current entry")
	}

	h.Push("/a")
	h.Push("/b")
	h.Push("/c")
	if !h.Go(-2) || h.Current() != "/a" {
		t.Fatalf("Current() = %q, want /a", h.Current())
	}
	if p, ok := h.Peek(1); !ok || p != "/b" {
		t.Errorf("Peek(1) = %q, %v", p, ok)
	}

	h.Push("/d")
	if h.Len() != 2 {
		t.Errorf("Push should drop forward entries, Len() = %d", h.Len())
	}
	if _, ok := h.Peek(1); ok {
		t.Error("no forward entry expected")
	}

	h.Replace("/e")
	if h.Current() != "/e" || h.Len() != 2 {
		t.Errorf("after Replace: current %q, len %d", h.Current(), h.Len())
	}
}
