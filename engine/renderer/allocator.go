package renderer

import "github.com/cogentcore/webgpu/wgpu"

// AllocationKind selects the GPU memory residency/access pattern a buffer or
// texture allocation is intended for. WebGPU's wgpu-native implementation
// already sub-allocates device memory internally, so these kinds map to
// distinct buffer-usage/mapping flag combinations on a single
// device.CreateBuffer call rather than to separate host-side allocators —
// there is no custom GPU memory arena here, only the usage-flag selection a
// caller would otherwise have to repeat at every call site.
type AllocationKind int

const (
	// AllocDedicated is a GPU-resident buffer/texture with no CPU access,
	// for per-scene data the CPU never maps (mesh buffers, material tables).
	AllocDedicated AllocationKind = iota
	// AllocLocalBuddy is a GPU-resident buffer intended for small, frequently
	// resized allocations (bindless table backing stores).
	AllocLocalBuddy
	// AllocStagingUncached is a CPU-write, GPU-read buffer for one-shot
	// uploads (vertex/index staging, texture staging).
	AllocStagingUncached
	// AllocStagingCached is a CPU-read buffer for GPU-to-CPU readback
	// (pick-pass entity-ID readback).
	AllocStagingCached
)

// Allocator wraps wgpu.Device buffer/texture creation behind the same
// "create GPU resource, return a Go handle, return error" shape as
// Renderer.InitMeshBuffers/InitBindGroup, so every new GPU resource in the
// render graph (G-buffer targets, pick targets, the staging ring backing
// buffers) is allocated through one seam instead of each package reaching
// for wgpu.Device directly.
type Allocator interface {
	// AllocateBuffer creates a GPU buffer of the given size with usage flags
	// derived from kind (OR'd with any caller-supplied usage bits).
	AllocateBuffer(kind AllocationKind, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error)

	// AllocateTexture creates a GPU texture from a caller-populated
	// descriptor. Unlike AllocateBuffer, texture usage is always
	// caller-specified since it varies per render-target role (color
	// attachment, depth attachment, sampled, storage).
	AllocateTexture(desc wgpu.TextureDescriptor) (*wgpu.Texture, error)
}

var _ Allocator = &renderer{}

func (r *renderer) AllocateBuffer(kind AllocationKind, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	return r.backend.AllocateBuffer(kind, size, usage)
}

func (r *renderer) AllocateTexture(desc wgpu.TextureDescriptor) (*wgpu.Texture, error) {
	return r.backend.AllocateTexture(desc)
}
