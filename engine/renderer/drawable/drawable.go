// Package drawable packs staged mesh primitives into the scene's shared
// vertex/index/secondary-stream buffers and classifies each one into the
// render passes it participates in. One Drawable exists per renderable
// mesh primitive; the Registry owns the staging queue and the packing
// step that runs on scene finalization.
package drawable

import (
	"github.com/oxy-go/renderer-core/engine/ecs"
	"github.com/oxy-go/renderer-core/engine/renderer/material"
)

// Flag is a bitmask of the render passes a Drawable participates in.
type Flag uint8

const (
	// FlagDeferred marks a drawable as opaque/PBR, rendered in the G-buffer pass.
	FlagDeferred Flag = 1 << iota
	// FlagForward marks a drawable as non-opaque (blended, unlit, or any
	// non-PBR shader), rendered in the forward subpass instead.
	FlagForward
	// FlagProbe marks a drawable as included in environment-probe capture passes.
	FlagProbe
	// FlagShadowDeferred marks a deferred drawable as shadow-casting.
	FlagShadowDeferred
	// FlagShadowForward marks a forward drawable as shadow-casting.
	FlagShadowForward
)

// Has reports whether all bits in other are set in f.
func (f Flag) Has(other Flag) bool {
	return f&other == other
}

// StreamMask records which optional secondary vertex streams a drawable
// actually provides, so the shader can skip reading absent ones instead
// of reading zeroed padding.
type StreamMask uint32

const (
	StreamNormal StreamMask = 1 << iota
	StreamTangent
	StreamUV0
	StreamUV1
	StreamUV2
	StreamUV3
	StreamUV4
	StreamUV5
	StreamUV6
	StreamUV7
	StreamColor0
	StreamColor1
)

// MeshSource is the subset of a loaded model a Drawable is packed from.
// Implemented by engine/model's Model for static meshes and by a skin's
// source accessor for skinned ones.
type MeshSource interface {
	// Positions returns the primitive's vertex positions as packed [3]float32 triples.
	Positions() []float32
	// Indices returns the primitive's triangle indices, relative to the primitive's own vertex range.
	Indices() []uint32
	// SecondaryStreams returns the optional per-vertex streams present on
	// this primitive (normal, tangent, up to 8 UV sets, 2 color sets,
	// already interleaved in the fixed stream order) and which of them
	// are present.
	SecondaryStreams() (data []float32, mask StreamMask)
	// SkinSource returns the skin-relevant streams (joint indices/weights)
	// for a skinned primitive, or ok=false for a static one.
	SkinSource() (jointIndices []uint32, jointWeights []float32, ok bool)
}

// Drawable is one renderable mesh primitive staged into a scene, packed
// against the scene's shared buffers.
type Drawable struct {
	Entity ecs.Entity
	Flags  Flag

	IndexOffset  uint32
	IndexCount   uint32
	VertexOffset uint32
	VertexCount  uint32

	DataOffset uint32 // element offset into the secondary-stream storage buffer
	StreamMask StreamMask

	MaterialIndex  uint32
	TransformIndex uint32

	// SkinIndex is the index into the scene's skin list, or -1 for a static drawable.
	SkinIndex int32

	MainShader  string
	ProbeShader string
	ShadowShader string
}

// stagedEntry is one request queued by Stage, awaiting the next Finalize.
type stagedEntry struct {
	entity      ecs.Entity
	mesh        MeshSource
	mat         material.Material
	probeTagged bool
	mainShader, probeShader, shadowShader string
}

// Registry holds a scene's staged-but-unpacked drawables plus the packed
// list accumulated by every Finalize so far.
type Registry struct {
	staged []stagedEntry
	packed []Drawable
	lookup map[ecs.Entity]int // entity -> index into packed

	nextTransformIndex uint32
}

// NewRegistry creates an empty drawable registry.
func NewRegistry() *Registry {
	return &Registry{lookup: make(map[ecs.Entity]int)}
}

// Stage queues a mesh primitive for packing on the next Finalize. Staging
// the same entity twice before a Finalize replaces the earlier request.
//
// Parameters:
//   - entity: the mesh-providing entity this drawable renders
//   - mesh: the primitive's vertex/index/stream source
//   - mat: the primitive's material (drives classification, §4.3)
//   - probeTagged: whether the mesh was explicitly tagged probe-included
//   - mainShader, probeShader, shadowShader: shader handles for each pass this drawable may use
func (r *Registry) Stage(entity ecs.Entity, mesh MeshSource, mat material.Material, probeTagged bool, mainShader, probeShader, shadowShader string) {
	for i, s := range r.staged {
		if s.entity == entity {
			r.staged[i] = stagedEntry{entity, mesh, mat, probeTagged, mainShader, probeShader, shadowShader}
			return
		}
	}
	r.staged = append(r.staged, stagedEntry{entity, mesh, mat, probeTagged, mainShader, probeShader, shadowShader})
}

// Packed returns every drawable packed by Finalize so far, in packing order.
func (r *Registry) Packed() []Drawable {
	return r.packed
}

// Lookup returns the packed index of an entity's drawable, if finalized.
func (r *Registry) Lookup(entity ecs.Entity) (int, bool) {
	idx, ok := r.lookup[entity]
	return idx, ok
}

// classify implements §4.3's classification rule: deferred if the
// material is opaque and uses the PBR pipeline, forward otherwise;
// additionally flagged probe if the mesh was tagged for probe capture.
// Shadow eligibility mirrors the main-pass flag (a drawable casts shadows
// in whichever pass it renders in).
func classify(mat material.Material, probeTagged bool) Flag {
	var f Flag
	if !mat.AlphaBlend() && mat.PipelineKey() == "pbr" {
		f |= FlagDeferred
		f |= FlagShadowDeferred
	} else {
		f |= FlagForward
		f |= FlagShadowForward
	}
	if probeTagged {
		f |= FlagProbe
	}
	return f
}
