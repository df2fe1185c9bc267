package linkstate

import (
	"errors"
	"sort"
	"sync"
)

// ringSize is the number of most-recently-published LinkTable versions kept
// alive at once (spec §3: "A ring buffer of four most recent versions is
// retained").
const ringSize = 4

// ErrTryAgain is returned by Ring.Publish when the slot it would need to
// reuse still has live references (spec §4.3: "publication fails with
// try-again").
var ErrTryAgain = errors.New("linkstate: ring head still referenced, try again")

// ErrRefcountUnderflow is a fatal invariant violation (spec §7/§8): Release
// was called more times than the table's consumer count.
var ErrRefcountUnderflow = errors.New("linkstate: link table refcount underflow")

// LinkTable is an ordered, versioned, immutable snapshot of Link rows
// (spec §3). Rows are sorted by Index. It must not be mutated after
// publication; callers hold it only for the duration of processing one
// version and must call Ring.Release exactly once when done.
type LinkTable struct {
	Version uint64
	Rows    []Link

	refcount int32
}

// ByIndex returns the row for index, or nil if absent. O(N) per spec §4.3.
func (t *LinkTable) ByIndex(index int32) *Link {
	for i := range t.Rows {
		if t.Rows[i].Index == index {
			return &t.Rows[i]
		}
	}
	return nil
}

// ByName returns the row for name, or nil if absent. O(N) per spec §4.3.
func (t *LinkTable) ByName(name string) *Link {
	for i := range t.Rows {
		if t.Rows[i].Name == name {
			return &t.Rows[i]
		}
	}
	return nil
}

// Ring is a four-slot, refcounted, monotonically-versioned publication
// ring, styled after a ring-cursor bookkeeping registry but adapted from
// weak-pointer GC scavenging to explicit acquire/release reference
// counting (link tables are not garbage collected; consumers own a
// reference until Release).
type Ring struct {
	mu        sync.Mutex
	slots     [ringSize]*LinkTable
	head      int // index of the most recently published slot
	nextIndex int // index the NEXT publish would occupy
	nextVer   uint64
}

// NewRing constructs an empty ring. No version is published until the
// first successful Publish.
func NewRing() *Ring {
	return &Ring{nextVer: 1}
}

// Latest returns the most recently published table (with an acquired
// reference the caller must Release), or nil if nothing has been published
// yet.
func (r *Ring) Latest() *LinkTable {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slots[r.head] == nil {
		return nil
	}
	t := r.slots[r.head]
	t.refcount++
	return t
}

// Publish installs rows as a new version, assigning the next monotonic
// version number and an initial reference count of consumerCount. Rows are
// sorted by Index first (spec §4.3 cache invariant). Returns ErrTryAgain if
// the slot it needs to reuse is still referenced; the caller should retry
// once a consumer releases (spec §4.3: "the engine marks itself as needing
// re-service once a slot is freed").
func (r *Ring) Publish(rows []Link, consumerCount int32) (*LinkTable, error) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Index < rows[j].Index })

	r.mu.Lock()
	defer r.mu.Unlock()

	slot := r.nextIndex
	if existing := r.slots[slot]; existing != nil && existing.refcount > 0 {
		return nil, ErrTryAgain
	}

	t := &LinkTable{Version: r.nextVer, Rows: rows, refcount: consumerCount}
	r.slots[slot] = t
	r.head = slot
	r.nextIndex = (slot + 1) % ringSize
	r.nextVer++
	return t, nil
}

// Release decrements t's reference count; once it reaches zero the slot it
// occupies becomes reusable by a future Publish (spec §4.3, §8). Calling
// Release more times than the table's consumer count is an invariant
// violation.
func (r *Ring) Release(t *LinkTable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.refcount <= 0 {
		return ErrRefcountUnderflow
	}
	t.refcount--
	return nil
}

// Refcount reports t's current reference count, for tests/diagnostics.
func (r *Ring) Refcount(t *LinkTable) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return t.refcount
}
