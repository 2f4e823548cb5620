package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryParams(t *testing.T) {
	q := ParseQueryParams("a=1&b=2&a=3")
	assert.Equal(t, "1", q.GetFirst("a"))
	assert.Equal(t, []string{"1", "3"}, q.GetAll("a"))
	assert.Equal(t, "2", q.GetFirst("b"))
	assert.Equal(t, 3, q.Len())
}

func TestParseQueryParamsEmpty(t *testing.T) {
	q := ParseQueryParams("")
	assert.Zero(t, q.Len())

	q = ParseQueryParams("&&")
	assert.Zero(t, q.Len())
}

func TestParseQueryParamsDecoding(t *testing.T) {
	q := ParseQueryParams("name=hello%20world&flag")
	assert.Equal(t, "hello world", q.GetFirst("name"))

	entries := q.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "flag", entries[1].Key)
	assert.Empty(t, entries[1].Value)
}

func TestParseQueryParamsBadEscapeKeptRaw(t *testing.T) {
	q := ParseQueryParams("k=%zz")
	assert.Equal(t, "%zz", q.GetFirst("k"))
}

func TestQueryParamsOrderPreserved(t *testing.T) {
	q := ParseQueryParams("z=1&a=2&z=3")
	entries := q.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "z", entries[0].Key)
	assert.Equal(t, "a", entries[1].Key)
	assert.Equal(t, "z", entries[2].Key)
}

func TestQueryParamsEncode(t *testing.T) {
	q := NewQueryParams()
	q.Add("name", "hello world")
	q.Add("flag", "")
	q.Add("x", "1")

	assert.Equal(t, "name=hello+world&flag&x=1", q.Encode())
}

func TestQueryParamsEncodeRoundTrip(t *testing.T) {
	q := ParseQueryParams("a=1&b=two%20words")
	assert.Equal(t, "a=1&b=two+words", q.Encode())
}
