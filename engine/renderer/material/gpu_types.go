package material

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GpuMaterialSource is the canonical WGSL definition of the GpuMaterial
// struct. Matches GpuMaterial's layout exactly (80 bytes, std430 aligned).
//
//go:embed assets/gpu_material.wgsl
var GpuMaterialSource string

// UV set selector occupies 2 bits per texture slot within GpuMaterial's
// UVSetMask, in this fixed slot order.
const (
	uvSetShiftBaseColor         = 0
	uvSetShiftNormal            = 2
	uvSetShiftMetallicRoughness = 4
	uvSetShiftOcclusion         = 6
	uvSetShiftEmissive          = 8
)

// DummyTextureIndex is the bindless slot reserved for materials missing a
// given texture map; shaders sample it and get a neutral default.
const DummyTextureIndex uint32 = 0

// GpuMaterial is the GPU-aligned per-material record mirrored into the
// scene's per-frame material storage buffer. One GpuMaterial corresponds
// 1:1 to a Material component (see ToGpuMaterial). Blend mode and
// double-sidedness are NOT part of this layout — those drive render
// pipeline-state selection, not per-draw shader data.
//
// Size: 80 bytes (five vec4-aligned blocks).
type GpuMaterial struct {
	BaseColorFactor  [4]float32 // offset 0
	EmissiveFactor   [3]float32 // offset 16
	AlphaCutoff      float32    // offset 28
	MetallicFactor   float32    // offset 32
	RoughnessFactor  float32    // offset 36
	NormalScale      float32    // offset 40
	OcclusionFactor  float32    // offset 44
	BaseColorTexIdx  uint32     // offset 48, bindless 2D slot (0 = dummy)
	NormalTexIdx     uint32     // offset 52
	MetallicRoughIdx uint32     // offset 56
	OcclusionTexIdx  uint32     // offset 60
	EmissiveTexIdx   uint32     // offset 64
	UVSetMask        uint32     // offset 68, 2 bits per texture slot
	_pad0            uint32     // offset 72
	_pad1            uint32     // offset 76
}

// Size returns the size of the GpuMaterial struct in bytes.
func (m *GpuMaterial) Size() int {
	return int(unsafe.Sizeof(*m))
}

// Marshal serializes the GpuMaterial struct into a byte buffer suitable for
// GPU upload, in the field order documented on the struct.
func (m *GpuMaterial) Marshal() []byte {
	buf := make([]byte, 80)
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], math.Float32bits(m.BaseColorFactor[0]))
	le.PutUint32(buf[4:8], math.Float32bits(m.BaseColorFactor[1]))
	le.PutUint32(buf[8:12], math.Float32bits(m.BaseColorFactor[2]))
	le.PutUint32(buf[12:16], math.Float32bits(m.BaseColorFactor[3]))
	le.PutUint32(buf[16:20], math.Float32bits(m.EmissiveFactor[0]))
	le.PutUint32(buf[20:24], math.Float32bits(m.EmissiveFactor[1]))
	le.PutUint32(buf[24:28], math.Float32bits(m.EmissiveFactor[2]))
	le.PutUint32(buf[28:32], math.Float32bits(m.AlphaCutoff))
	le.PutUint32(buf[32:36], math.Float32bits(m.MetallicFactor))
	le.PutUint32(buf[36:40], math.Float32bits(m.RoughnessFactor))
	le.PutUint32(buf[40:44], math.Float32bits(m.NormalScale))
	le.PutUint32(buf[44:48], math.Float32bits(m.OcclusionFactor))
	le.PutUint32(buf[48:52], m.BaseColorTexIdx)
	le.PutUint32(buf[52:56], m.NormalTexIdx)
	le.PutUint32(buf[56:60], m.MetallicRoughIdx)
	le.PutUint32(buf[60:64], m.OcclusionTexIdx)
	le.PutUint32(buf[64:68], m.EmissiveTexIdx)
	le.PutUint32(buf[68:72], m.UVSetMask)
	le.PutUint32(buf[72:76], m._pad0)
	le.PutUint32(buf[76:80], m._pad1)
	return buf
}

// PackUVSetMask combines per-texture UV-set selectors (0 or 1) into the
// single uint32 GpuMaterial.UVSetMask expects.
func PackUVSetMask(baseColor, normal, metallicRoughness, occlusion, emissive uint32) uint32 {
	return (baseColor << uvSetShiftBaseColor) |
		(normal << uvSetShiftNormal) |
		(metallicRoughness << uvSetShiftMetallicRoughness) |
		(occlusion << uvSetShiftOcclusion) |
		(emissive << uvSetShiftEmissive)
}

// ToGpuMaterial converts a CPU-side Material component plus its resolved
// bindless texture slots into the packed GPU record. A slot of
// DummyTextureIndex means the material has no texture in that channel.
func ToGpuMaterial(mat Material, baseColorSlot, normalSlot, metallicRoughSlot, occlusionSlot, emissiveSlot uint32) GpuMaterial {
	return GpuMaterial{
		BaseColorFactor:  mat.BaseColor(),
		EmissiveFactor:   mat.EmissiveFactor(),
		AlphaCutoff:      mat.AlphaCutoff(),
		MetallicFactor:   mat.Metallic(),
		RoughnessFactor:  mat.Roughness(),
		NormalScale:      mat.NormalScale(),
		OcclusionFactor:  mat.OcclusionStrength(),
		BaseColorTexIdx:  baseColorSlot,
		NormalTexIdx:     normalSlot,
		MetallicRoughIdx: metallicRoughSlot,
		OcclusionTexIdx:  occlusionSlot,
		EmissiveTexIdx:   emissiveSlot,
		UVSetMask:        mat.UVSetMask(),
	}
}
