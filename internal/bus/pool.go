// Package bus implements the message & multicast bus of spec.md §4.2 (C2):
// fixed-capacity envelope pools and publish/subscribe multicast groups
// layered on top of package rtloop's Thread/Envelope primitives.
package bus

import (
	"sync"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/rtloop"
)

// Kind distinguishes the three pool categories named in spec §4.2.
type Kind int

const (
	// KindLocal is a per-thread pool, freed with its owning thread.
	KindLocal Kind = iota
	// KindGlobal is shared process-wide.
	KindGlobal
	// KindRealtimeStats is reserved for the high-frequency statistics path,
	// kept separate so stats traffic can never be starved by, or starve,
	// general traffic.
	KindRealtimeStats
)

// Pool is a fixed-count preallocated array of envelopes plus a free queue,
// matching spec §4.2: "A pool is a fixed-count preallocated array of
// fixed-capacity envelopes plus a free queue. Allocation is wait-or-fail;
// free always succeeds and enqueues back."
//
// Styled after a ring+map bookkeeping registry, adapted here to a bounded
// free-list instead of a weak-pointer scavenged ring (pool entries are not
// garbage collected; they are explicitly owned and returned by
// Envelope.Free).
type Pool struct {
	kind Kind

	mu    sync.Mutex
	free  []*rtloop.Envelope
	count int
}

// NewPool preallocates count envelopes of the given kind.
func NewPool(kind Kind, count int) *Pool {
	if count <= 0 {
		panic("bus: pool count must be positive")
	}
	p := &Pool{kind: kind, count: count, free: make([]*rtloop.Envelope, 0, count)}
	for i := 0; i < count; i++ {
		e := &rtloop.Envelope{}
		e.SetPool(p)
		p.free = append(p.free, e)
	}
	return p
}

// Kind returns the pool's category.
func (p *Pool) Kind() Kind { return p.kind }

// Allocate draws one envelope from the pool's free queue. It does not
// block: an exhausted pool returns rtloop.ErrPoolExhausted immediately
// (spec §4.2: "wait-or-fail"), and the caller site is the natural place to
// record/log the exhaustion (spec §7: "Pool exhaustion on allocation
// returns null and records caller site").
func (p *Pool) Allocate() (*rtloop.Envelope, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.free)
	if n == 0 {
		return nil, rtloop.ErrPoolExhausted
	}
	e := p.free[n-1]
	p.free = p.free[:n-1]
	return e, nil
}

// Put returns e to the free queue. Implements rtloop.EnvelopePool.
func (p *Pool) Put(e *rtloop.Envelope) {
	*e = rtloop.Envelope{}
	e.SetPool(p)
	p.mu.Lock()
	p.free = append(p.free, e)
	p.mu.Unlock()
}

// Available reports the current free-queue depth, for diagnostics/metrics.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Capacity returns the pool's fixed total envelope count.
func (p *Pool) Capacity() int { return p.count }
