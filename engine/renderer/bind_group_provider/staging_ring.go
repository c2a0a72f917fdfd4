package bind_group_provider

import (
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/oxy-go/renderer-core/rendererr"
)

// StagingRing is a per-frame-in-flight bump allocator over a fixed set of
// pre-created GPU staging buffers, one per frame-in-flight slot. It does not
// create GPU resources itself — the Renderer allocates the backing buffers
// via Allocator.AllocateBuffer(AllocStagingUncached, ...) and hands them to
// NewStagingRing, matching the rest of this package's role as a pure data
// holder populated by the renderer backend.
//
// Allocate offsets are only valid for the slot active when they were
// returned; BeginFrame advances to the next slot and resets its cursor, so
// callers must re-stage data they need every frame (this matches the
// teacher's own "rebuild only what's needed, write once per frame" idiom in
// the scene's per-frame buffer-write coalescing).
type StagingRing struct {
	mu      sync.Mutex
	buffers []*wgpu.Buffer
	size    uint64
	cursor  []uint64
	slot    int
}

// NewStagingRing wraps framesInFlight pre-allocated buffers of the given
// size (bytes) each as a ring of per-frame staging arenas.
func NewStagingRing(buffers []*wgpu.Buffer, size uint64) *StagingRing {
	return &StagingRing{
		buffers: buffers,
		size:    size,
		cursor:  make([]uint64, len(buffers)),
		slot:    -1,
	}
}

// BeginFrame advances to the next ring slot and resets its write cursor to
// zero, discarding any offsets allocated in that slot the last time it was
// active (one full trip around the ring ago).
func (r *StagingRing) BeginFrame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slot = (r.slot + 1) % len(r.buffers)
	r.cursor[r.slot] = 0
}

// Allocate reserves size bytes in the active slot's staging buffer, 16-byte
// aligned (the smallest alignment WebGPU requires of all buffer binding
// types used by this renderer). Returns rendererr.ResourceExhausted if the
// slot's buffer cannot satisfy the request.
func (r *StagingRing) Allocate(size uint64) (buf *wgpu.Buffer, offset uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slot < 0 {
		return nil, 0, rendererr.InvalidInput
	}

	const alignment = 16
	aligned := (r.cursor[r.slot] + alignment - 1) &^ (alignment - 1)
	if aligned+size > r.size {
		return nil, 0, rendererr.ResourceExhausted
	}

	r.cursor[r.slot] = aligned + size
	return r.buffers[r.slot], aligned, nil
}

// Buffer returns the active slot's backing buffer, for binding into a
// BindGroupProvider at a dynamic offset.
func (r *StagingRing) Buffer() *wgpu.Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slot < 0 {
		return nil
	}
	return r.buffers[r.slot]
}

// Release releases every backing buffer across all frame-in-flight slots.
func (r *StagingRing) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, buf := range r.buffers {
		if buf != nil {
			buf.Release()
		}
	}
	r.buffers = nil
}
