package model

import (
	"encoding/binary"
	"math"

	"github.com/oxy-go/renderer-core/engine/renderer/drawable"
)

// meshSource decodes a Model's packed GPU vertex/index byte buffers back
// into the structured streams the drawable registry packs into the scene's
// shared buffers at staging time. Decoding (rather than retaining the
// structured arrays alongside the packed bytes) keeps Model's GPU-upload
// path the single owner of vertex layout, the same way the loader already
// produces GPUVertex/GPUSkinnedVertex and marshals them once.
type meshSource struct {
	m Model
}

var _ drawable.MeshSource = &meshSource{}

// NewMeshSource wraps m for staging into a scene's drawable registry,
// satisfying drawable.MeshSource.
func NewMeshSource(m Model) drawable.MeshSource {
	return &meshSource{m: m}
}

func (s *meshSource) stride() int {
	if s.m.Skinned() {
		return 96
	}
	return 64
}

func (s *meshSource) vertexCount() int {
	stride := s.stride()
	if stride == 0 {
		return 0
	}
	return len(s.m.VertexData()) / stride
}

func (s *meshSource) Positions() []float32 {
	data := s.m.VertexData()
	stride := s.stride()
	n := s.vertexCount()
	out := make([]float32, 0, n*3)
	for i := 0; i < n; i++ {
		base := i * stride
		out = append(out,
			readF32(data, base+0),
			readF32(data, base+4),
			readF32(data, base+8),
		)
	}
	return out
}

func (s *meshSource) Indices() []uint32 {
	data := s.m.IndexData()
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	return out
}

// SecondaryStreams returns normal, tangent, and UV0 interleaved per vertex
// (the streams GPUVertex/GPUSkinnedVertex actually carry); higher UV sets
// and secondary color sets are not produced by the current loader pipeline.
func (s *meshSource) SecondaryStreams() (data []float32, mask drawable.StreamMask) {
	raw := s.m.VertexData()
	stride := s.stride()
	n := s.vertexCount()

	out := make([]float32, 0, n*9)
	for i := 0; i < n; i++ {
		base := i * stride
		// normal: offset 12..24, texcoord: offset 24..32, tangent: offset 48..64
		out = append(out,
			readF32(raw, base+12), readF32(raw, base+16), readF32(raw, base+20),
			readF32(raw, base+48), readF32(raw, base+52), readF32(raw, base+56), readF32(raw, base+60),
			readF32(raw, base+24), readF32(raw, base+28),
		)
	}
	return out, drawable.StreamNormal | drawable.StreamTangent | drawable.StreamUV0
}

func (s *meshSource) SkinSource() (jointIndices []uint32, jointWeights []float32, ok bool) {
	if !s.m.Skinned() {
		return nil, nil, false
	}
	raw := s.m.VertexData()
	stride := s.stride()
	n := s.vertexCount()

	jointIndices = make([]uint32, 0, n*4)
	jointWeights = make([]float32, 0, n*4)
	for i := 0; i < n; i++ {
		base := i*stride + 64
		for j := 0; j < 4; j++ {
			jointIndices = append(jointIndices, binary.LittleEndian.Uint32(raw[base+j*4:base+j*4+4]))
		}
		wbase := base + 16
		for j := 0; j < 4; j++ {
			jointWeights = append(jointWeights, readF32(raw, wbase+j*4))
		}
	}
	return jointIndices, jointWeights, true
}

func readF32(buf []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[offset : offset+4]))
}
