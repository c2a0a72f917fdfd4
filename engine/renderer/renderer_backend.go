package renderer

import "github.com/cogentcore/webgpu/wgpu"

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// Only specific power-of-two values are valid for GPU hardware. WebGPU guarantees support for
// 1 (off) and 4; higher values (8, 16) are adapter-dependent and may not be available.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4

	// MSAA8x enables 8× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA8x MSAASampleCount = 8

	// MSAA16x enables 16× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA16x MSAASampleCount = 16
)

// RendererBackend is the top-level backend interface for the Renderer.
// It embeds the concrete backend interface for the selected GPU API.
type RendererBackend interface {
	wgpuRendererBackend
}

// GBufferTargets bundles the color attachments and shared depth attachment
// for one deferred-pass G-buffer, plus the raw HDR output target the
// lighting subpass composites into. All four color roles are written in a
// single G-buffer render pass (multiple render targets); the lighting
// subpass then reads them back as sampled textures, since WebGPU has no
// Vulkan-style input-attachment subpasses to read them in-place.
type GBufferTargets struct {
	Width, Height uint32

	AlbedoView    *wgpu.TextureView // rgb: base color, a: unused
	NormalView    *wgpu.TextureView // rgb: view-space normal (encoded), a: unused
	ORMView       *wgpu.TextureView // r: occlusion, g: roughness, b: metallic
	EmissiveView  *wgpu.TextureView
	DepthView     *wgpu.TextureView
	RawOutputView *wgpu.TextureView // lighting subpass render target, sampled by the post pass

	albedoTex, normalTex, ormTex, emissiveTex, depthTex, rawOutputTex *wgpu.Texture
}

// Release releases every texture backing this target set.
func (t *GBufferTargets) Release() {
	for _, tex := range []*wgpu.Texture{t.albedoTex, t.normalTex, t.ormTex, t.emissiveTex, t.depthTex, t.rawOutputTex} {
		if tex != nil {
			tex.Release()
		}
	}
}

// PickTarget is the render target for the entity-ID pick pass: an
// unfiltered RGBA8 color attachment encoding the picked entity (§4.10) plus
// a matching depth attachment so occluded geometry cannot be picked, and a
// readback buffer sized for one row-padded copy of the color target.
type PickTarget struct {
	Width, Height uint32

	ColorView *wgpu.TextureView
	DepthView *wgpu.TextureView

	colorTex, depthTex  *wgpu.Texture
	readback            *wgpu.Buffer
	bytesPerRowUnpadded uint32
	bytesPerRowPadded   uint32
}

// Release releases every GPU resource backing this pick target.
func (t *PickTarget) Release() {
	if t.colorTex != nil {
		t.colorTex.Release()
	}
	if t.depthTex != nil {
		t.depthTex.Release()
	}
	if t.readback != nil {
		t.readback.Release()
	}
}
