package material

import (
	"github.com/oxy-go/renderer-core/common"
	"github.com/oxy-go/renderer-core/engine/renderer/bind_group_provider"
)

// material is the implementation of the Material interface.
type material struct {
	name                     string
	baseColor                [4]float32
	emissiveFactor           [3]float32
	alphaCutoff              float32
	metallic                 float32
	roughness                float32
	normalScale              float32
	occlusionStrength        float32
	uvSetMask                uint32
	doubleSided              bool
	alphaBlend               bool
	diffuseTexture           *common.ImportedTexture
	normalTexture            *common.ImportedTexture
	metallicRoughnessTexture *common.ImportedTexture
	occlusionTexture         *common.ImportedTexture
	emissiveTexture          *common.ImportedTexture
	pipelineKey              string
	bindGroupProvider        bind_group_provider.BindGroupProvider
}

// Material defines the interface for a render material, encapsulating surface
// properties, texture references, and GPU resource bindings needed for draw calls.
//
// Surface properties are set at load time and read-only through this
// interface; GPU resource references (pipeline key, bind group provider)
// are mutable so they can be configured after construction during the
// loader's GPU-init phase. DoubleSided and AlphaBlend drive pipeline-state
// selection (§4.7's shader-variant key) — they are deliberately absent from
// GpuMaterial, the packed struct mirrored to the GPU.
type Material interface {
	// Name retrieves the material identifier.
	Name() string

	// BaseColor retrieves the albedo/diffuse RGBA factor of the material.
	BaseColor() [4]float32

	// EmissiveFactor retrieves the RGB emissive factor of the material.
	EmissiveFactor() [3]float32

	// AlphaCutoff retrieves the alpha-test threshold for masked materials.
	AlphaCutoff() float32

	// Metallic retrieves the metallic factor of the material.
	// A value of 0.0 represents a dielectric surface, 1.0 represents a fully metallic surface.
	Metallic() float32

	// Roughness retrieves the roughness factor of the material.
	// A value of 0.0 represents a perfectly smooth surface, 1.0 represents a fully rough surface.
	Roughness() float32

	// NormalScale retrieves the strength multiplier applied to the sampled normal map.
	NormalScale() float32

	// OcclusionStrength retrieves the strength multiplier applied to the sampled occlusion map.
	OcclusionStrength() float32

	// UVSetMask retrieves the packed per-texture UV-set selector (see PackUVSetMask).
	UVSetMask() uint32

	// DoubleSided reports whether back-face culling should be disabled for this material.
	DoubleSided() bool

	// AlphaBlend reports whether this material should render in the forward transparency pass.
	AlphaBlend() bool

	// DiffuseTexture retrieves the diffuse/albedo texture data reference, or nil if none is set.
	DiffuseTexture() *common.ImportedTexture

	// NormalTexture retrieves the normal map texture data reference, or nil if none is set.
	NormalTexture() *common.ImportedTexture

	// MetallicRoughnessTexture retrieves the metallic-roughness texture data reference, or nil if none is set.
	MetallicRoughnessTexture() *common.ImportedTexture

	// OcclusionTexture retrieves the ambient-occlusion texture data reference, or nil if none is set.
	OcclusionTexture() *common.ImportedTexture

	// EmissiveTexture retrieves the emissive texture data reference, or nil if none is set.
	EmissiveTexture() *common.ImportedTexture

	// PipelineKey retrieves the key identifying the render pipeline this material uses.
	PipelineKey() string

	// BindGroupProvider retrieves the bind group provider holding GPU-side resources for this material.
	BindGroupProvider() bind_group_provider.BindGroupProvider

	// SetPipelineKey sets the render pipeline key for this material.
	SetPipelineKey(key string)

	// SetBindGroupProvider sets the bind group provider for this material.
	SetBindGroupProvider(provider bind_group_provider.BindGroupProvider)
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		baseColor:         [4]float32{1, 1, 1, 1},
		emissiveFactor:    [3]float32{0, 0, 0},
		alphaCutoff:       0.5,
		metallic:          0.0,
		roughness:         1.0,
		normalScale:       1.0,
		occlusionStrength: 1.0,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string                    { return m.name }
func (m *material) BaseColor() [4]float32            { return m.baseColor }
func (m *material) EmissiveFactor() [3]float32       { return m.emissiveFactor }
func (m *material) AlphaCutoff() float32             { return m.alphaCutoff }
func (m *material) Metallic() float32                { return m.metallic }
func (m *material) Roughness() float32               { return m.roughness }
func (m *material) NormalScale() float32             { return m.normalScale }
func (m *material) OcclusionStrength() float32       { return m.occlusionStrength }
func (m *material) UVSetMask() uint32                { return m.uvSetMask }
func (m *material) DoubleSided() bool                { return m.doubleSided }
func (m *material) AlphaBlend() bool                 { return m.alphaBlend }
func (m *material) DiffuseTexture() *common.ImportedTexture           { return m.diffuseTexture }
func (m *material) NormalTexture() *common.ImportedTexture            { return m.normalTexture }
func (m *material) MetallicRoughnessTexture() *common.ImportedTexture { return m.metallicRoughnessTexture }
func (m *material) OcclusionTexture() *common.ImportedTexture         { return m.occlusionTexture }
func (m *material) EmissiveTexture() *common.ImportedTexture          { return m.emissiveTexture }
func (m *material) PipelineKey() string                               { return m.pipelineKey }
func (m *material) BindGroupProvider() bind_group_provider.BindGroupProvider {
	return m.bindGroupProvider
}

func (m *material) SetPipelineKey(key string) {
	m.pipelineKey = key
}

func (m *material) SetBindGroupProvider(provider bind_group_provider.BindGroupProvider) {
	m.bindGroupProvider = provider
}
