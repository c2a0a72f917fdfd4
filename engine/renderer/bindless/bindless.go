// Package bindless maintains the tables that map a stable, generation-aware
// resource handle to the bindless array slot a shader indexes at draw time.
// Two tables exist, one per texture-array binding: 2D textures and
// cubemaps. Handles are laid out exactly like ecs.Entity (index packed with
// a generation) so a stale handle from a destroyed resource never collides
// with a slot recycled for something new.
package bindless

import "sync"

// Handle is an opaque generation-aware reference to a bindless resource,
// laid out exactly like ecs.Entity: the low 32 bits are a caller-assigned
// index (typically the owning ecs.Entity's index), the high 32 bits are
// its generation.
type Handle uint64

// NullHandle never refers to a live resource.
const NullHandle Handle = 0

// NewHandle packs an index and generation into a Handle.
func NewHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

// Index returns the handle's packed index.
func (h Handle) Index() uint32 {
	return uint32(h)
}

// Generation returns the handle's packed generation.
func (h Handle) Generation() uint32 {
	return uint32(h >> 32)
}

// Valid reports whether the handle could refer to a live resource.
func (h Handle) Valid() bool {
	return h != NullHandle
}

// Table is a generation-aware map from Handle to a bindless array slot.
// Slot 0 is reserved as the "dummy" slot, matching
// material.DummyTextureIndex: NullHandle resolves to 0 so a shader indexing
// it sees a harmless fallback instead of an uninitialized binding. Any other
// handle, including one whose entry was removed, is given a fresh non-zero
// slot by Query.
type Table struct {
	mu      sync.Mutex
	slots   map[Handle]uint32
	freeIdx []uint32
	next    uint32
}

// NewTable creates a table with its reserved dummy slot already allocated.
func NewTable() *Table {
	return &Table{slots: make(map[Handle]uint32), next: 1}
}

// Query resolves a handle to its bindless array slot, allocating a new
// slot on first use. isNew reports whether this call allocated the slot,
// so the caller knows whether the GPU-side texture/cubemap view at that
// slot still needs to be written.
//
// Querying NullHandle always resolves to the dummy slot.
func (t *Table) Query(h Handle) (slot uint32, isNew bool) {
	if h == NullHandle {
		return 0, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.slots[h]; ok {
		return existing, false
	}

	var idx uint32
	if n := len(t.freeIdx); n > 0 {
		idx = t.freeIdx[n-1]
		t.freeIdx = t.freeIdx[:n-1]
	} else {
		idx = t.next
		t.next++
	}
	t.slots[h] = idx
	return idx, true
}

// Remove releases a handle's slot back to the free list for recycling and
// drops its mapping, so a later Query for the same handle allocates fresh.
func (t *Table) Remove(h Handle) {
	if h == NullHandle {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.slots[h]
	if !ok {
		return
	}
	delete(t.slots, h)
	t.freeIdx = append(t.freeIdx, idx)
}

// Len returns the number of live (non-dummy) slots.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// Tables bundles the two bindless arrays a material/light/probe record
// indexes into: 2D textures (base color, normal, etc.) and cubemaps
// (environment probes).
type Tables struct {
	Textures *Table
	Cubemaps *Table
}

// NewTables creates both bindless tables with their dummy slots reserved.
func NewTables() *Tables {
	return &Tables{Textures: NewTable(), Cubemaps: NewTable()}
}
