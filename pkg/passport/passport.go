package passport

import (
	"strings"
	"sync"
	"time"
)

// State names a lifecycle transition recorded on a channel's passport.
type State string

const (
	StateOriginChConnecting     State = "ORIGIN_CH_CONNECTING"
	StateOriginChConnected      State = "ORIGIN_CH_CONNECTED"
	StateOriginChPoolReturned   State = "ORIGIN_CH_POOL_RETURNED"
	StateInReqCancelled         State = "IN_REQ_CANCELLED"
	StateOutRespLastContentSent State = "OUT_RESP_LAST_CONTENT_SENT"
)

// Entry is one recorded transition.
type Entry struct {
	Time  time.Time
	State State
}

// Passport is the append-only diagnostic trace of lifecycle states for one
// channel. Appends can arrive from both the client-side and origin-side event
// loops, so the slice is guarded.
type Passport struct {
	now     func() time.Time
	entries []Entry
	mu      sync.Mutex
}

func New() *Passport {
	return &Passport{now: time.Now}
}

// NewWithClock lets tests pin the timestamp source.
func NewWithClock(now func() time.Time) *Passport {
	return &Passport{now: now}
}

func (p *Passport) Add(state State) {
	p.mu.Lock()
	p.entries = append(p.entries, Entry{Time: p.now(), State: state})
	p.mu.Unlock()
}

// FindState returns the first occurrence of state.
func (p *Passport) FindState(state State) (Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if e.State == state {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns a snapshot of the trace in record order.
func (p *Passport) Entries() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

func (p *Passport) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Passport) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range p.entries {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(e.State))
	}
	b.WriteByte(']')
	return b.String()
}
