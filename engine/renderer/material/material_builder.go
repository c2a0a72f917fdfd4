package material

import (
	"github.com/oxy-go/renderer-core/common"
	"github.com/oxy-go/renderer-core/engine/renderer/bind_group_provider"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName sets the name of the material.
func WithName(name string) MaterialBuilderOption {
	return func(m *material) { m.name = name }
}

// WithBaseColor sets the albedo/diffuse RGBA factor of the material.
func WithBaseColor(color [4]float32) MaterialBuilderOption {
	return func(m *material) { m.baseColor = color }
}

// WithEmissiveFactor sets the RGB emissive factor of the material.
func WithEmissiveFactor(color [3]float32) MaterialBuilderOption {
	return func(m *material) { m.emissiveFactor = color }
}

// WithAlphaCutoff sets the alpha-test threshold for masked materials.
func WithAlphaCutoff(cutoff float32) MaterialBuilderOption {
	return func(m *material) { m.alphaCutoff = cutoff }
}

// WithMetallic sets the metallic factor of the material (0.0 = dielectric, 1.0 = metal).
func WithMetallic(metallic float32) MaterialBuilderOption {
	return func(m *material) { m.metallic = metallic }
}

// WithRoughness sets the roughness factor of the material (0.0 = smooth, 1.0 = rough).
func WithRoughness(roughness float32) MaterialBuilderOption {
	return func(m *material) { m.roughness = roughness }
}

// WithNormalScale sets the strength multiplier applied to the sampled normal map.
func WithNormalScale(scale float32) MaterialBuilderOption {
	return func(m *material) { m.normalScale = scale }
}

// WithOcclusionStrength sets the strength multiplier applied to the sampled occlusion map.
func WithOcclusionStrength(strength float32) MaterialBuilderOption {
	return func(m *material) { m.occlusionStrength = strength }
}

// WithUVSetMask sets the packed per-texture UV-set selector (see PackUVSetMask).
func WithUVSetMask(mask uint32) MaterialBuilderOption {
	return func(m *material) { m.uvSetMask = mask }
}

// WithDoubleSided sets whether back-face culling is disabled for this material.
func WithDoubleSided(doubleSided bool) MaterialBuilderOption {
	return func(m *material) { m.doubleSided = doubleSided }
}

// WithAlphaBlend sets whether this material renders in the forward transparency pass.
func WithAlphaBlend(alphaBlend bool) MaterialBuilderOption {
	return func(m *material) { m.alphaBlend = alphaBlend }
}

// WithDiffuseTexture sets the diffuse/albedo texture reference.
func WithDiffuseTexture(tex *common.ImportedTexture) MaterialBuilderOption {
	return func(m *material) { m.diffuseTexture = tex }
}

// WithNormalTexture sets the normal map texture reference.
func WithNormalTexture(tex *common.ImportedTexture) MaterialBuilderOption {
	return func(m *material) { m.normalTexture = tex }
}

// WithMetallicRoughnessTexture sets the metallic-roughness texture reference.
func WithMetallicRoughnessTexture(tex *common.ImportedTexture) MaterialBuilderOption {
	return func(m *material) { m.metallicRoughnessTexture = tex }
}

// WithOcclusionTexture sets the ambient-occlusion texture reference.
func WithOcclusionTexture(tex *common.ImportedTexture) MaterialBuilderOption {
	return func(m *material) { m.occlusionTexture = tex }
}

// WithEmissiveTexture sets the emissive texture reference.
func WithEmissiveTexture(tex *common.ImportedTexture) MaterialBuilderOption {
	return func(m *material) { m.emissiveTexture = tex }
}

// WithPipelineKey sets the render pipeline key for the material.
func WithPipelineKey(key string) MaterialBuilderOption {
	return func(m *material) { m.pipelineKey = key }
}

// WithBindGroupProvider sets the bind group provider for the material.
func WithBindGroupProvider(provider bind_group_provider.BindGroupProvider) MaterialBuilderOption {
	return func(m *material) { m.bindGroupProvider = provider }
}
