package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyBufferLifecycle(t *testing.T) {
	b := NewBodyBuffer([]byte("hello"))
	assert.Equal(t, []byte("hello"), b.Bytes())
	assert.Equal(t, 5, b.Len())
	assert.False(t, b.IsLast())
	assert.EqualValues(t, 1, b.Refs())

	freed := b.Release()
	assert.True(t, freed)
	assert.Nil(t, b.Bytes())
}

func TestBodyBufferLast(t *testing.T) {
	b := NewLastBodyBuffer(nil)
	assert.True(t, b.IsLast())
	assert.Zero(t, b.Len())
}

func TestBodyBufferRetainRelease(t *testing.T) {
	b := NewBodyBuffer([]byte("data"))
	b.Retain()
	assert.EqualValues(t, 2, b.Refs())

	assert.False(t, b.Release(), "one reference still held")
	assert.NotNil(t, b.Bytes())
	assert.True(t, b.Release())
	assert.Nil(t, b.Bytes())
}

func TestBodyBufferDoubleReleasePanics(t *testing.T) {
	b := NewBodyBuffer([]byte("x"))
	require.True(t, b.Release())
	assert.Panics(t, func() { b.Release() })
}

func TestBodyBufferRetainAfterReleasePanics(t *testing.T) {
	b := NewBodyBuffer([]byte("x"))
	require.True(t, b.Release())
	assert.Panics(t, func() { b.Retain() })
}
