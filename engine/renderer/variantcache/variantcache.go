// Package variantcache caches the pipeline.Pipeline produced for a given
// (shader template, graphics state, specialization constants) combination,
// so the same material/pass pairing never triggers a redundant GPU
// pipeline build within a scene's lifetime.
package variantcache

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/oxy-go/renderer-core/engine/renderer/pipeline"
)

// GraphicsState is the subset of pipeline.Pipeline's builder-configured
// fields that affect which concrete wgpu pipeline object a shader
// template compiles into. Two draws that agree on every field here can
// always share a cached pipeline.
type GraphicsState struct {
	DepthTestEnabled    bool
	DepthWriteEnabled   bool
	DepthBias           int32
	DepthBiasSlopeScale float32
	BlendEnabled        bool
	CullMode            wgpu.CullMode
	Topology            wgpu.PrimitiveTopology
	FrontFace           wgpu.FrontFace
	WriteMask           wgpu.ColorWriteMask
}

// asU64 packs the boolean/enum fields of GraphicsState into a single
// 64-bit value for cheap hashing and equality, per spec.md §4.7's
// "graphicsState.asU64" key component. DepthBias/DepthBiasSlopeScale are
// hashed separately since they don't fit the packed word.
func (g GraphicsState) asU64() uint64 {
	var v uint64
	if g.DepthTestEnabled {
		v |= 1 << 0
	}
	if g.DepthWriteEnabled {
		v |= 1 << 1
	}
	if g.BlendEnabled {
		v |= 1 << 2
	}
	v |= uint64(g.CullMode) << 8
	v |= uint64(g.Topology) << 16
	v |= uint64(g.FrontFace) << 24
	v |= uint64(g.WriteMask) << 32
	return v
}

// Key identifies one cached pipeline variant: a shader template handle, a
// packed graphics state, and the specialization constants (shader
// permutation switches, e.g. skinning enabled) baked into it.
type Key struct {
	TemplateHandle  string
	graphicsStateU64 uint64
	depthBias       int32
	depthBiasSlope  float32
	constantsHash   uint64
}

// NewKey builds a cache key from a template handle, graphics state, and
// the raw specialization-constant bytes (the caller marshals whatever
// constants the template takes into a stable byte order before calling).
func NewKey(templateHandle string, state GraphicsState, constantBytes []byte) Key {
	h := fnv.New64a()
	h.Write(constantBytes)
	return Key{
		TemplateHandle:   templateHandle,
		graphicsStateU64: state.asU64(),
		depthBias:        state.DepthBias,
		depthBiasSlope:   state.DepthBiasSlopeScale,
		constantsHash:    h.Sum64(),
	}
}

// Cache maps variant Keys to built pipelines. It never evicts entries:
// the variant set for one scene is bounded by its material/pass
// combinations, per spec.md §4.7 ("monotonic per scene").
type Cache struct {
	entries map[Key]pipeline.Pipeline
}

// New creates an empty variant cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]pipeline.Pipeline)}
}

// Get returns the cached pipeline for key, if one has been built.
func (c *Cache) Get(key Key) (pipeline.Pipeline, bool) {
	p, ok := c.entries[key]
	return p, ok
}

// GetOrBuild returns the cached pipeline for key, calling build to
// construct and cache it on first request.
func (c *Cache) GetOrBuild(key Key, build func() (pipeline.Pipeline, error)) (pipeline.Pipeline, error) {
	if p, ok := c.entries[key]; ok {
		return p, nil
	}
	p, err := build()
	if err != nil {
		return nil, err
	}
	c.entries[key] = p
	return p, nil
}

// Len returns the number of distinct pipeline variants currently cached.
func (c *Cache) Len() int {
	return len(c.entries)
}

// ConstantBytes packs a slice of uint32 specialization constants (e.g.
// skinning-enabled, UV-set count) into the stable byte order NewKey
// hashes, so callers don't need to hand-roll the marshaling.
func ConstantBytes(constants ...uint32) []byte {
	buf := make([]byte, len(constants)*4)
	for i, c := range constants {
		binary.LittleEndian.PutUint32(buf[i*4:], c)
	}
	return buf
}
