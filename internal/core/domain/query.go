package domain

import (
	"net/url"
	"strings"
)

// QueryParam is a single decoded query string pair.
type QueryParam struct {
	Key   string
	Value string
}

// QueryParams preserves repeated keys and their arrival order, unlike
// url.Values which collapses ordering across keys.
type QueryParams struct {
	entries []QueryParam
}

func NewQueryParams() *QueryParams {
	return &QueryParams{}
}

// ParseQueryParams decodes a raw query string. Pairs that fail percent
// decoding keep their raw text rather than being dropped.
func ParseQueryParams(raw string) *QueryParams {
	q := &QueryParams{}
	if raw == "" {
		return q
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		q.entries = append(q.entries, QueryParam{Key: key, Value: value})
	}
	return q
}

func (q *QueryParams) Add(key, value string) {
	q.entries = append(q.entries, QueryParam{Key: key, Value: value})
}

func (q *QueryParams) GetFirst(key string) string {
	for _, e := range q.entries {
		if e.Key == key {
			return e.Value
		}
	}
	return ""
}

func (q *QueryParams) GetAll(key string) []string {
	var values []string
	for _, e := range q.entries {
		if e.Key == key {
			values = append(values, e.Value)
		}
	}
	return values
}

func (q *QueryParams) Entries() []QueryParam {
	return q.entries
}

func (q *QueryParams) Len() int {
	return len(q.entries)
}

func (q *QueryParams) Encode() string {
	var b strings.Builder
	for i, e := range q.entries {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(e.Key))
		if e.Value != "" {
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(e.Value))
		}
	}
	return b.String()
}
