package router

import "sync"

// History is the navigation stack the router writes to.
type History interface {
	// Push adds an entry after the current one, dropping forward entries.
	Push(path string)
	// Replace overwrites the current entry.
	Replace(path string)
	// Current returns the current entry, or "" when empty.
	Current() string
	// Peek returns the entry delta steps from the current one.
	Peek(delta int) (string, bool)
	// Go moves the cursor by delta and reports whether it moved.
	Go(delta int) bool
	// Len returns the number of entries.
	Len() int
}

// MemoryHistory is an in-process History.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []string
	index   int
}

// NewMemoryHistory creates an empty history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{index: -1}
}

func (h *MemoryHistory) Push(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.index+1], path)
	h.index = len(h.entries) - 1
}

func (h *MemoryHistory) Replace(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index < 0 {
		h.entries = []string{path}
		h.index = 0
		return
	}
	h.entries[h.index] = path
}

func (h *MemoryHistory) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index < 0 {
		return ""
	}
	return h.entries[h.index]
}

func (h *MemoryHistory) Peek(delta int) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.index + delta
	if h.index < 0 || i < 0 || i >= len(h.entries) {
		return "", false
	}
	return h.entries[i], true
}

func (h *MemoryHistory) Go(delta int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.index + delta
	if h.index < 0 || i < 0 || i >= len(h.entries) {
		return false
	}
	h.index = i
	return true
}

func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
