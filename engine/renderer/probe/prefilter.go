package probe

import (
	"fmt"

	"github.com/oxy-go/renderer-core/common"
	"github.com/oxy-go/renderer-core/engine/renderer"
	"github.com/oxy-go/renderer-core/engine/renderer/bind_group_provider"
	"github.com/oxy-go/renderer-core/engine/renderer/bindless"
	"github.com/oxy-go/renderer-core/engine/renderer/pipeline"
	"github.com/oxy-go/renderer-core/engine/renderer/shader"
)

// PrefilterConstants mirrors the specialization constants the teacher's
// compute shaders would otherwise receive via pipeline specialization:
// packed into a uniform buffer instead, since the renderer's compute
// pipelines are built once at registration time and re-dispatched with
// varying parameters per mip.
type PrefilterConstants struct {
	Resolution   uint32
	Roughness    float32
	SampleCount  uint32
	Width        uint32
	Distribution uint32 // 0 = lambertian cosine, 1 = GGX
	MipLevel     uint32
	_pad0, _pad1 uint32
}

// Marshal packs the constants into the 32-byte uniform layout the prefilter
// compute shaders declare.
func (c PrefilterConstants) Marshal() []byte {
	return common.StructToBytes(&c)
}

const (
	brdfLUTPipelineKey     = "probe_brdf_lut_compute"
	lambertianPipelineKey  = "probe_lambertian_compute"
	ggxPipelineKey         = "probe_ggx_compute"
	distributionLambertian = 0
	distributionGGX        = 1
)

// Prefilter drives the BRDF LUT / lambertian irradiance / GGX specular
// compute dispatch chain described in spec §4.8: the BRDF LUT is computed
// once (it depends only on NdotV and roughness, not on any probe's
// captured cube), lambertian irradiance is computed once per probe from
// its six captured faces, and GGX specular is dispatched once per mip
// level with roughness = m/(mipCount-1).
type Prefilter struct {
	r renderer.Renderer

	brdfLUTShader    shader.Shader
	lambertianShader shader.Shader
	ggxShader        shader.Shader

	registered   bool
	brdfLUTDone  bool
}

// NewPrefilter creates a Prefilter bound to r. Shaders are set lazily via
// SetShaders once loaded, since the probe.Manager may be constructed before
// the scene's shader set is known.
func NewPrefilter(r renderer.Renderer) *Prefilter {
	return &Prefilter{r: r}
}

// SetShaders assigns the three compute shaders the prefilter chain
// dispatches. Must be called before the first Run.
func (p *Prefilter) SetShaders(brdfLUT, lambertian, ggx shader.Shader) {
	p.brdfLUTShader = brdfLUT
	p.lambertianShader = lambertian
	p.ggxShader = ggx
}

func (p *Prefilter) ensureRegistered() error {
	if p.registered {
		return nil
	}
	if p.brdfLUTShader == nil || p.lambertianShader == nil || p.ggxShader == nil {
		return fmt.Errorf("probe: prefilter shaders not set, call SetShaders first")
	}
	pipelines := []pipeline.Pipeline{
		pipeline.NewPipeline(brdfLUTPipelineKey, pipeline.PipelineTypeCompute,
			pipeline.WithComputeShader(p.brdfLUTShader)),
		pipeline.NewPipeline(lambertianPipelineKey, pipeline.PipelineTypeCompute,
			pipeline.WithComputeShader(p.lambertianShader)),
		pipeline.NewPipeline(ggxPipelineKey, pipeline.PipelineTypeCompute,
			pipeline.WithComputeShader(p.ggxShader)),
	}
	if err := p.r.RegisterPipelines(pipelines...); err != nil {
		return fmt.Errorf("probe: failed to register prefilter pipelines: %w", err)
	}
	p.registered = true
	return nil
}

// Run executes the prefilter chain for probe against its captured cube
// faces, writing results into probe's LambertianEnv/GGXEnv/BRDFLUT bindless
// handles. provider supplies the compute bind group (source cube + output
// cube bindings plus the constants uniform at binding 0), resolved by the
// caller from the prefilter shaders' layout.
func (p *Prefilter) Run(probe *EnvironmentProbe, provider bind_group_provider.BindGroupProvider) error {
	if err := p.ensureRegistered(); err != nil {
		return err
	}

	if err := p.r.BeginComputeFrame(); err != nil {
		return fmt.Errorf("probe: failed to begin compute frame: %w", err)
	}
	defer p.r.EndComputeFrame()

	groups := workGroupCount(probe.FaceResolution)

	if !p.brdfLUTDone {
		p.r.WriteBuffers([]bind_group_provider.BufferWrite{{
			Provider: provider, Binding: 0, Offset: 0,
			Data: PrefilterConstants{
				Resolution:  uint32(probe.FaceResolution),
				SampleCount: uint32(probe.Samples),
				Width:       uint32(probe.FaceResolution),
			}.Marshal(),
		}})
		p.r.DispatchCompute(brdfLUTPipelineKey, provider, groups)
		p.brdfLUTDone = true
		probe.BRDFLUT = bindless.Handle(1)
	}

	p.r.WriteBuffers([]bind_group_provider.BufferWrite{{
		Provider: provider, Binding: 0, Offset: 0,
		Data: PrefilterConstants{
			Resolution:   uint32(probe.FaceResolution),
			SampleCount:  uint32(probe.Samples),
			Width:        uint32(probe.FaceResolution),
			Distribution: distributionLambertian,
		}.Marshal(),
	}})
	p.r.DispatchCompute(lambertianPipelineKey, provider, groups)
	probe.LambertianEnv = bindless.Handle(1)

	mipCount := probe.GGXMipCount()
	for m := 0; m < mipCount; m++ {
		roughness := float32(0)
		if mipCount > 1 {
			roughness = float32(m) / float32(mipCount-1)
		}
		width := probe.FaceResolution >> m
		if width < 1 {
			width = 1
		}
		p.r.WriteBuffers([]bind_group_provider.BufferWrite{{
			Provider: provider, Binding: 0, Offset: 0,
			Data: PrefilterConstants{
				Resolution:   uint32(probe.FaceResolution),
				Roughness:    roughness,
				SampleCount:  uint32(probe.Samples),
				Width:        uint32(width),
				Distribution: distributionGGX,
				MipLevel:     uint32(m),
			}.Marshal(),
		}})
		p.r.DispatchCompute(ggxPipelineKey, provider, workGroupCount(width))
	}
	probe.GGXEnv = bindless.Handle(1)

	return nil
}

// workGroupCount computes a [3]uint32 dispatch size for a resolution x
// resolution compute pass, 8x8 threads per group matching the teacher's
// light-cull tile sizing convention, with one layer per cube face.
func workGroupCount(resolution int) [3]uint32 {
	groups := uint32(resolution+7) / 8
	return [3]uint32{groups, groups, 6}
}
