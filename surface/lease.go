// Package surface manages the surface ids a guest module leases from the
// host and the binary descriptors it supplies for them at setup.
package surface

import "sync/atomic"

// Handle identifies a host-side rendering surface. Handles are minted from
// a process-wide counter so they stay unique across all modules.
type Handle uint64

var handleCounter atomic.Uint64

// NewHandle mints a fresh unique handle.
func NewHandle() Handle {
	return Handle(handleCounter.Add(1))
}

// Kind is the surface kind a guest passes to the lease import.
type Kind uint32

const (
	KindNone  Kind = 0
	KindLayer Kind = 1
)

// Sentinel is returned by Lease to a guest when the id space is exhausted.
// Guests treat 0 as "no id", so it doubles as the failure value.
const Sentinel uint32 = 0

// maxID is the first id value that is never issued. Ids fit in a u8 on the
// guest side even though the ABI carries them as u32.
const maxID uint32 = 255

// LeaseTable issues surface ids to one guest module and maps them to host
// surface handles.
//
// Ids count up from 1 and are never reissued, even after a revoke. The
// table belongs to exactly one module and is touched only from the dispatch
// goroutine, so it is not synchronized.
type LeaseTable struct {
	next    uint32
	leases  map[uint32]Handle
	reverse map[Handle]uint32
	order   []uint32
	used    map[uint32]bool
}

// NewLeaseTable returns an empty table whose first lease will be id 1.
func NewLeaseTable() *LeaseTable {
	return &LeaseTable{
		next:    1,
		leases:  make(map[uint32]Handle),
		reverse: make(map[Handle]uint32),
		used:    make(map[uint32]bool),
	}
}

// Lease issues the next id paired with a fresh handle. It returns
// (Sentinel, 0) once the id space is exhausted.
func (t *LeaseTable) Lease() (uint32, Handle) {
	if t.next >= maxID {
		return Sentinel, 0
	}

	id := t.next
	t.next++

	h := NewHandle()
	t.leases[id] = h
	t.reverse[h] = id
	t.order = append(t.order, id)
	return id, h
}

// Has reports whether id is currently leased.
func (t *LeaseTable) Has(id uint32) bool {
	_, ok := t.leases[id]
	return ok
}

// Handle returns the host handle mapped to a leased id.
func (t *LeaseTable) Handle(id uint32) (Handle, bool) {
	h, ok := t.leases[id]
	return h, ok
}

// ID returns the leased id mapped to a host handle.
func (t *LeaseTable) ID(h Handle) (uint32, bool) {
	id, ok := t.reverse[h]
	return id, ok
}

// MarkUsed records that the surface for id was actually created
// downstream. Only marked ids show up in Used; callers mark after the
// creation request was confirmed, not when the id is first seen.
func (t *LeaseTable) MarkUsed(id uint32) bool {
	if !t.Has(id) {
		return false
	}
	t.used[id] = true
	return true
}

// Revoke removes a lease. The id is never reissued afterwards.
func (t *LeaseTable) Revoke(id uint32) bool {
	h, ok := t.leases[id]
	if !ok {
		return false
	}
	delete(t.leases, id)
	delete(t.reverse, h)
	delete(t.used, id)
	return true
}

// Used returns the ids confirmed in use, in lease order. Render iteration
// walks this list.
func (t *LeaseTable) Used() []uint32 {
	ids := make([]uint32, 0, len(t.used))
	for _, id := range t.order {
		if t.used[id] {
			ids = append(ids, id)
		}
	}
	return ids
}
