package domain

import (
	"fmt"
	"sync/atomic"
)

// BodyBuffer is a reference-counted chunk of message body. Every code path
// that neither forwards a buffer downstream nor enqueues it for write must
// call Release exactly once.
type BodyBuffer struct {
	data []byte
	refs atomic.Int32
	last bool
}

func NewBodyBuffer(data []byte) *BodyBuffer {
	b := &BodyBuffer{data: data}
	b.refs.Store(1)
	return b
}

// NewLastBodyBuffer marks the chunk as the final content of its message.
func NewLastBodyBuffer(data []byte) *BodyBuffer {
	b := NewBodyBuffer(data)
	b.last = true
	return b
}

func (b *BodyBuffer) Bytes() []byte {
	return b.data
}

func (b *BodyBuffer) Len() int {
	return len(b.data)
}

func (b *BodyBuffer) IsLast() bool {
	return b.last
}

func (b *BodyBuffer) Refs() int32 {
	return b.refs.Load()
}

func (b *BodyBuffer) Retain() *BodyBuffer {
	if b.refs.Add(1) <= 1 {
		panic(fmt.Sprintf("bodybuffer: retain after release (refs=%d)", b.refs.Load()))
	}
	return b
}

// Release drops one reference and reports whether the buffer was freed.
func (b *BodyBuffer) Release() bool {
	n := b.refs.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("bodybuffer: double release (refs=%d)", n))
	}
	if n == 0 {
		b.data = nil
		return true
	}
	return false
}
