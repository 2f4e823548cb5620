package domain

import "strings"

// Header is a single name/value pair.
type Header struct {
	Key   string
	Value string
}

// Headers is an insertion-ordered multimap with case-insensitive keys.
// Values are never merged; repeated keys keep their distinct entries in
// arrival order, matching HTTP multi-header semantics.
type Headers struct {
	entries []Header
}

func NewHeaders() *Headers {
	return &Headers{}
}

func (h *Headers) Add(key, value string) {
	h.entries = append(h.entries, Header{Key: key, Value: value})
}

// Set removes any existing entries for key and appends a single one.
func (h *Headers) Set(key, value string) {
	h.Remove(key)
	h.Add(key, value)
}

// GetFirst returns the first value for key, or "" when absent.
func (h *Headers) GetFirst(key string) string {
	for _, e := range h.entries {
		if strings.EqualFold(e.Key, key) {
			return e.Value
		}
	}
	return ""
}

func (h *Headers) GetAll(key string) []string {
	var values []string
	for _, e := range h.entries {
		if strings.EqualFold(e.Key, key) {
			values = append(values, e.Value)
		}
	}
	return values
}

func (h *Headers) Contains(key string) bool {
	for _, e := range h.entries {
		if strings.EqualFold(e.Key, key) {
			return true
		}
	}
	return false
}

// ContainsValue reports whether any value for key equals value
// case-insensitively.
func (h *Headers) ContainsValue(key, value string) bool {
	for _, e := range h.entries {
		if strings.EqualFold(e.Key, key) && strings.EqualFold(e.Value, value) {
			return true
		}
	}
	return false
}

func (h *Headers) Remove(key string) int {
	removed := 0
	kept := h.entries[:0]
	for _, e := range h.entries {
		if strings.EqualFold(e.Key, key) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	h.entries = kept
	return removed
}

// Entries returns the backing slice; callers must not mutate it.
func (h *Headers) Entries() []Header {
	return h.entries
}

func (h *Headers) Len() int {
	return len(h.entries)
}

func (h *Headers) Copy() *Headers {
	c := &Headers{entries: make([]Header, len(h.entries))}
	copy(c.entries, h.entries)
	return c
}
