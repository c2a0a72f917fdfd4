package shadowatlas

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// MaxShadowFaces is the largest number of view-projections a single
// GpuLightShadowData record can hold: 6 cube faces for a point light (also
// covers a directional light's cascade count, capped at 6).
const MaxShadowFaces = 6

// GpuLightShadowDataSource is the canonical WGSL definition of the
// GpuLightShadowData struct.
//
//go:embed assets/gpu_light_shadow_data.wgsl
var GpuLightShadowDataSource string

// GpuLightShadowData is the GPU-aligned shadow record referenced by a
// GPULight's ShadowIndex. Directional lights populate CascadeSplits and up
// to uCascadeCount entries of LightVP/AtlasOffset; point lights populate
// all 6 face entries; spot lights populate only entry 0.
type GpuLightShadowData struct {
	CascadeSplits [MaxShadowFaces + 1]float32    // world-space distances bounding each cascade; unused entries 0
	_pad0         uint32                         // aligns LightVP to offset 32, as WGSL's 16-byte mat4x4 alignment does
	LightVP       [MaxShadowFaces][16]float32    // one view-projection per cascade/face
	AtlasOffset   [MaxShadowFaces][2]float32     // (x, y) texel offset into the shadow atlas per cascade/face
	Bias          float32
	NormalBias    float32
	ShadowMapTexIdx uint32 // bindless index of the shadow atlas texture
	CascadeCount    uint32
	_pad1           uint32 // pads the struct to WGSL's 480-byte size (a multiple of its 16-byte alignment)
}

// Size returns the size of the GpuLightShadowData struct in bytes.
func (s *GpuLightShadowData) Size() int {
	return int(unsafe.Sizeof(*s))
}

// Marshal serializes the GpuLightShadowData struct into a byte buffer
// suitable for GPU upload, matching the field order on the struct.
func (s *GpuLightShadowData) Marshal() []byte {
	le := binary.LittleEndian
	size := s.Size()
	buf := make([]byte, size)
	off := 0

	for _, v := range s.CascadeSplits {
		le.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	off += 4 // _pad0
	for _, vp := range s.LightVP {
		for _, v := range vp {
			le.PutUint32(buf[off:off+4], math.Float32bits(v))
			off += 4
		}
	}
	for _, o := range s.AtlasOffset {
		le.PutUint32(buf[off:off+4], math.Float32bits(o[0]))
		off += 4
		le.PutUint32(buf[off:off+4], math.Float32bits(o[1]))
		off += 4
	}
	le.PutUint32(buf[off:off+4], math.Float32bits(s.Bias))
	off += 4
	le.PutUint32(buf[off:off+4], math.Float32bits(s.NormalBias))
	off += 4
	le.PutUint32(buf[off:off+4], s.ShadowMapTexIdx)
	off += 4
	le.PutUint32(buf[off:off+4], s.CascadeCount)

	return buf
}
