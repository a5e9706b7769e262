package web

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"
)

// StaticPrefix is where embedded assets are served.
const StaticPrefix = "/static/"

//go:embed static
var staticFiles embed.FS

// Manifest maps asset names to fingerprinted names ("synthdesk.js" to
// "synthdesk.1a2b3c4d.js") and holds the bytes behind them. It is safe
// for concurrent use.
type Manifest struct {
	mu      sync.RWMutex
	entries map[string]string
	files   map[string][]byte
}

// NewManifest fingerprints every regular file in fsys by content hash.
func NewManifest(fsys fs.FS) (*Manifest, error) {
	m := &Manifest{
		entries: make(map[string]string),
		files:   make(map[string][]byte),
	}
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		m.add(name, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func embeddedManifest() (*Manifest, error) {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, err
	}
	return NewManifest(sub)
}

func (m *Manifest) add(name string, data []byte) {
	sum := sha256.Sum256(data)
	ext := path.Ext(name)
	hashed := strings.TrimSuffix(name, ext) + "." + hex.EncodeToString(sum[:4]) + ext

	m.mu.Lock()
	m.entries[name] = hashed
	m.files[hashed] = data
	m.mu.Unlock()
}

// Resolve returns the fingerprinted name for source, or source unchanged.
func (m *Manifest) Resolve(source string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if resolved, ok := m.entries[source]; ok {
		return resolved
	}
	return source
}

// Asset returns the URL path for source under StaticPrefix.
func (m *Manifest) Asset(source string) string {
	return StaticPrefix + m.Resolve(source)
}

// Len returns the number of assets.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// ServeHTTP serves fingerprinted names with a long cache lifetime. The
// request path must already have StaticPrefix stripped.
func (m *Manifest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")

	m.mu.RLock()
	data, ok := m.files[name]
	m.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	ct := "application/octet-stream"
	switch path.Ext(name) {
	case ".js":
		ct = "text/javascript; charset=utf-8"
	case ".css":
		ct = "text/css; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(data)
}
