package renderer

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/oxy-go/renderer-core/engine/renderer/bind_group_provider"
	"github.com/oxy-go/renderer-core/engine/renderer/pipeline"
)

// gBufferColorFormat is used for the albedo/ORM/emissive targets — plain
// 8-bit UNORM is sufficient since none of those channels need HDR range.
const gBufferColorFormat = wgpu.TextureFormatRGBA8Unorm

// gBufferNormalFormat stores view-space normals with enough precision to
// avoid banding after the lighting subpass's specular lobes.
const gBufferNormalFormat = wgpu.TextureFormatRGBA16Float

// rawOutputFormat is the lighting subpass's HDR accumulation target,
// tonemapped by the post pass before it reaches the swapchain.
const rawOutputFormat = wgpu.TextureFormatRGBA16Float

// pickColorFormat is unfiltered and precise enough to round-trip the
// entity-ID encoding in pick.Encode without any blending or sRGB curve.
const pickColorFormat = wgpu.TextureFormatRGBA8Uint

// allocateBufferLocked derives usage flags from kind and creates the buffer.
// Callers must already hold b.mu.
func (b *wgpuRendererBackendImpl) allocateBufferLocked(kind AllocationKind, desc wgpu.BufferDescriptor) (*wgpu.Buffer, error) {
	switch kind {
	case AllocStagingUncached:
		desc.Usage |= wgpu.BufferUsageCopySrc | wgpu.BufferUsageMapWrite
	case AllocStagingCached:
		desc.Usage |= wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead
	case AllocDedicated, AllocLocalBuddy:
		// No extra mapping flags — device-local only.
	}

	buf, err := b.device.CreateBuffer(&desc)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate buffer (kind %d, size %d): %w", kind, desc.Size, err)
	}
	return buf, nil
}

// allocateTextureLocked creates the texture. Callers must already hold b.mu.
func (b *wgpuRendererBackendImpl) allocateTextureLocked(desc wgpu.TextureDescriptor) (*wgpu.Texture, error) {
	tex, err := b.device.CreateTexture(&desc)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate texture %q: %w", desc.Label, err)
	}
	return tex, nil
}

func (b *wgpuRendererBackendImpl) AllocateBuffer(kind AllocationKind, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.allocateBufferLocked(kind, wgpu.BufferDescriptor{Size: size, Usage: usage})
}

func (b *wgpuRendererBackendImpl) AllocateTexture(desc wgpu.TextureDescriptor) (*wgpu.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.allocateTextureLocked(desc)
}

func (b *wgpuRendererBackendImpl) CreateGBufferTargets(width, height int) (*GBufferTargets, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1}

	makeColor := func(label string, format wgpu.TextureFormat) (*wgpu.Texture, *wgpu.TextureView, error) {
		tex, err := b.allocateTextureLocked(wgpu.TextureDescriptor{
			Label:         label,
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Format:        format,
			Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s: %w", label, err)
		}
		view, err := tex.CreateView(nil)
		if err != nil {
			tex.Release()
			return nil, nil, fmt.Errorf("failed to create %s view: %w", label, err)
		}
		return tex, view, nil
	}

	albedoTex, albedoView, err := makeColor("GBuffer Albedo", gBufferColorFormat)
	if err != nil {
		return nil, err
	}
	normalTex, normalView, err := makeColor("GBuffer Normal", gBufferNormalFormat)
	if err != nil {
		return nil, err
	}
	ormTex, ormView, err := makeColor("GBuffer ORM", gBufferColorFormat)
	if err != nil {
		return nil, err
	}
	emissiveTex, emissiveView, err := makeColor("GBuffer Emissive", gBufferColorFormat)
	if err != nil {
		return nil, err
	}
	rawOutputTex, rawOutputView, err := makeColor("Raw Output", rawOutputFormat)
	if err != nil {
		return nil, err
	}

	depthTex, err := b.allocateTextureLocked(wgpu.TextureDescriptor{
		Label:         "GBuffer Depth",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GBuffer depth texture: %w", err)
	}
	depthView, err := depthTex.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GBuffer depth view: %w", err)
	}

	return &GBufferTargets{
		Width:  uint32(width),
		Height: uint32(height),

		AlbedoView:    albedoView,
		NormalView:    normalView,
		ORMView:       ormView,
		EmissiveView:  emissiveView,
		DepthView:     depthView,
		RawOutputView: rawOutputView,

		albedoTex:    albedoTex,
		normalTex:    normalTex,
		ormTex:       ormTex,
		emissiveTex:  emissiveTex,
		depthTex:     depthTex,
		rawOutputTex: rawOutputTex,
	}, nil
}

func (b *wgpuRendererBackendImpl) BeginGBufferPass(t *GBufferTargets) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create G-buffer command encoder: %w", err)
	}

	colorAttachment := func(view *wgpu.TextureView) wgpu.RenderPassColorAttachment {
		return wgpu.RenderPassColorAttachment{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 0},
		}
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			colorAttachment(t.AlbedoView),
			colorAttachment(t.NormalView),
			colorAttachment(t.ORMView),
			colorAttachment(t.EmissiveView),
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            t.DepthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	})

	b.gbufferEncoder = encoder
	b.gbufferPass = pass
	return nil
}

func (b *wgpuRendererBackendImpl) GBufferDrawCall(p pipeline.Pipeline, meshProvider bind_group_provider.BindGroupProvider, indexCount, firstIndex, baseVertex, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.gbufferPass == nil {
		return
	}

	renderPipeline := p.Pipeline().(*wgpu.RenderPipeline)
	b.gbufferPass.SetPipeline(renderPipeline)
	for i, bg := range bindGroups {
		b.gbufferPass.SetBindGroup(uint32(i), bg.BindGroup(), nil)
	}
	b.gbufferPass.SetVertexBuffer(0, meshProvider.VertexBuffer(), 0, wgpu.WholeSize)
	b.gbufferPass.SetIndexBuffer(meshProvider.IndexBuffer(), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	b.gbufferPass.DrawIndexed(indexCount, instanceCount, firstIndex, int32(baseVertex), 0)
}

func (b *wgpuRendererBackendImpl) EndGBufferPass() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.gbufferPass == nil {
		return
	}
	b.gbufferPass.End()

	commandBuffer, err := b.gbufferEncoder.Finish(nil)
	if err == nil {
		b.queue.Submit(commandBuffer)
		commandBuffer.Release()
	}
	b.gbufferEncoder.Release()
	b.gbufferEncoder = nil
	b.gbufferPass = nil
}

func (b *wgpuRendererBackendImpl) BeginLightingPass(t *GBufferTargets) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create lighting pass command encoder: %w", err)
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       t.RawOutputView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	})

	b.lightingEncoder = encoder
	b.lightingPass = pass
	return nil
}

func (b *wgpuRendererBackendImpl) LightingDrawCall(p pipeline.Pipeline, meshProvider bind_group_provider.BindGroupProvider, bindGroups []bind_group_provider.BindGroupProvider) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lightingPass == nil {
		return
	}

	renderPipeline := p.Pipeline().(*wgpu.RenderPipeline)
	b.lightingPass.SetPipeline(renderPipeline)
	for i, bg := range bindGroups {
		b.lightingPass.SetBindGroup(uint32(i), bg.BindGroup(), nil)
	}
	// Full-screen triangle: 3 vertices generated in the vertex shader from
	// vertex_index, no vertex/index buffers required.
	b.lightingPass.Draw(3, 1, 0, 0)
}

func (b *wgpuRendererBackendImpl) EndLightingPass() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lightingPass == nil {
		return
	}
	b.lightingPass.End()

	commandBuffer, err := b.lightingEncoder.Finish(nil)
	if err == nil {
		b.queue.Submit(commandBuffer)
		commandBuffer.Release()
	}
	b.lightingEncoder.Release()
	b.lightingEncoder = nil
	b.lightingPass = nil
}

func (b *wgpuRendererBackendImpl) SetShadowViewport(x, y, width, height float32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shadowPass == nil {
		return
	}
	b.shadowPass.SetViewport(x, y, width, height, 0, 1)
	b.shadowPass.SetScissorRect(uint32(x), uint32(y), uint32(width), uint32(height))
}

func (b *wgpuRendererBackendImpl) CreatePickTarget(width, height int) (*PickTarget, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1}

	colorTex, err := b.allocateTextureLocked(wgpu.TextureDescriptor{
		Label:         "Pick Color",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        pickColorFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pick color texture: %w", err)
	}
	colorView, err := colorTex.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create pick color view: %w", err)
	}

	depthTex, err := b.allocateTextureLocked(wgpu.TextureDescriptor{
		Label:         "Pick Depth",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pick depth texture: %w", err)
	}
	depthView, err := depthTex.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create pick depth view: %w", err)
	}

	// WebGPU requires CopyTextureToBuffer row pitch to be a multiple of 256
	// bytes; 4 bytes/pixel since pickColorFormat is RGBA8Uint.
	const bytesPerPixel = 4
	const copyBytesPerRowAlignment = 256
	unpadded := uint32(width) * bytesPerPixel
	padded := (unpadded + copyBytesPerRowAlignment - 1) &^ (copyBytesPerRowAlignment - 1)

	readback, err := b.allocateBufferLocked(AllocStagingCached, wgpu.BufferDescriptor{
		Label: "Pick Readback",
		Size:  uint64(padded) * uint64(height),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pick readback buffer: %w", err)
	}

	return &PickTarget{
		Width:               uint32(width),
		Height:              uint32(height),
		ColorView:           colorView,
		DepthView:           depthView,
		colorTex:            colorTex,
		depthTex:            depthTex,
		readback:            readback,
		bytesPerRowUnpadded: unpadded,
		bytesPerRowPadded:   padded,
	}, nil
}

func (b *wgpuRendererBackendImpl) BeginPickPass(t *PickTarget) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create pick pass command encoder: %w", err)
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       t.ColorView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 0}, // entity index 0 == no pick
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            t.DepthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})

	b.pickEncoder = encoder
	b.pickPass = pass
	b.pickTargetPending = t
	return nil
}

func (b *wgpuRendererBackendImpl) PickDrawCall(p pipeline.Pipeline, meshProvider bind_group_provider.BindGroupProvider, indexCount, firstIndex, baseVertex, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pickPass == nil {
		return
	}

	renderPipeline := p.Pipeline().(*wgpu.RenderPipeline)
	b.pickPass.SetPipeline(renderPipeline)
	for i, bg := range bindGroups {
		b.pickPass.SetBindGroup(uint32(i), bg.BindGroup(), nil)
	}
	b.pickPass.SetVertexBuffer(0, meshProvider.VertexBuffer(), 0, wgpu.WholeSize)
	b.pickPass.SetIndexBuffer(meshProvider.IndexBuffer(), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	b.pickPass.DrawIndexed(indexCount, instanceCount, firstIndex, int32(baseVertex), 0)
}

func (b *wgpuRendererBackendImpl) EndPickPass(t *PickTarget) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pickPass == nil {
		return
	}
	b.pickPass.End()
	b.pickPass = nil

	b.pickEncoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: t.colorTex, MipLevel: 0, Origin: wgpu.Origin3D{}, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyBuffer{
			Buffer: t.readback,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  t.bytesPerRowPadded,
				RowsPerImage: t.Height,
			},
		},
		&wgpu.Extent3D{Width: t.Width, Height: t.Height, DepthOrArrayLayers: 1},
	)

	commandBuffer, err := b.pickEncoder.Finish(nil)
	if err == nil {
		b.queue.Submit(commandBuffer)
		commandBuffer.Release()
	}
	b.pickEncoder.Release()
	b.pickEncoder = nil
}

// ReadPickPixel maps t's readback buffer and extracts the raw RGBA8 bytes
// at (x, y). Blocking: polls the device until the async map completes,
// since pick queries happen on user input (mouse click), not every frame.
func (b *wgpuRendererBackendImpl) ReadPickPixel(t *PickTarget, x, y int) ([4]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out [4]byte
	if x < 0 || y < 0 || uint32(x) >= t.Width || uint32(y) >= t.Height {
		return out, fmt.Errorf("pick coordinates (%d, %d) out of bounds (%dx%d)", x, y, t.Width, t.Height)
	}

	mapErrCh := make(chan error, 1)
	t.readback.MapAsync(wgpu.MapModeRead, 0, t.readback.GetSize(), func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErrCh <- fmt.Errorf("pick readback map failed: status %v", status)
			return
		}
		mapErrCh <- nil
	})

	var mapErr error
	for {
		b.device.Poll(true, nil)
		select {
		case mapErr = <-mapErrCh:
		default:
			continue
		}
		break
	}
	if mapErr != nil {
		return out, mapErr
	}
	defer t.readback.Unmap()

	rowOffset := uint64(y) * uint64(t.bytesPerRowPadded)
	pixelOffset := rowOffset + uint64(x)*4
	data := t.readback.GetMappedRange(rowOffset, uint64(t.bytesPerRowPadded))
	if data == nil || int(pixelOffset-rowOffset)+4 > len(data) {
		return out, fmt.Errorf("pick readback mapped range too small")
	}
	copy(out[:], data[pixelOffset-rowOffset:pixelOffset-rowOffset+4])
	return out, nil
}
