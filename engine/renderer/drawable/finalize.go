package drawable

import (
	"github.com/oxy-go/renderer-core/engine/ecs"
	"github.com/oxy-go/renderer-core/engine/renderer/bindless"
	"github.com/oxy-go/renderer-core/engine/renderer/material"
)

// Buffers is the scene's set of shared GPU-bound staging arrays that
// Finalize appends packed drawable data into. Offsets recorded on each
// Drawable are measured against these arrays as they stood at the start
// of Finalize, so re-finalizing after further staging only appends.
type Buffers struct {
	Indices          []uint32
	Positions        []float32
	SecondaryStreams []float32
}

// MaterialTable tracks the scene's append-only GpuMaterial list and the
// material -> index map backing §4.2's O(1) lookup contract.
type MaterialTable struct {
	Entries []material.GpuMaterial
	lookup  map[material.Material]uint32
}

// NewMaterialTable creates an empty material table.
func NewMaterialTable() *MaterialTable {
	return &MaterialTable{lookup: make(map[material.Material]uint32)}
}

// Index returns mat's stable GpuMaterial index, appending a new entry on
// first sight. resolveTex resolves the material's texture references
// to bindless slots (material textures with no handle resolve to the
// dummy slot via bindless.NullHandle).
func (mt *MaterialTable) Index(mat material.Material, resolveTex func(material.Material) (baseColor, normal, metallicRough, occlusion, emissive bindless.Handle)) uint32 {
	if idx, ok := mt.lookup[mat]; ok {
		return idx
	}

	baseColor, normal, metallicRough, occlusion, emissive := resolveTex(mat)
	textures := mt.resolveSlots(baseColor, normal, metallicRough, occlusion, emissive)

	gpu := material.ToGpuMaterial(mat, textures[0], textures[1], textures[2], textures[3], textures[4])
	idx := uint32(len(mt.Entries))
	mt.Entries = append(mt.Entries, gpu)
	mt.lookup[mat] = idx
	return idx
}

// Refresh re-derives mat's GpuMaterial entry in place, for §4.2's
// update_scene_materials contract: the CPU-side Material fields may have
// changed since Index first appended it, but its table slot is stable.
// A no-op if mat was never indexed.
func (mt *MaterialTable) Refresh(mat material.Material, resolveTex func(material.Material) (baseColor, normal, metallicRough, occlusion, emissive bindless.Handle)) {
	idx, ok := mt.lookup[mat]
	if !ok {
		return
	}
	baseColor, normal, metallicRough, occlusion, emissive := resolveTex(mat)
	textures := mt.resolveSlots(baseColor, normal, metallicRough, occlusion, emissive)
	mt.Entries[idx] = material.ToGpuMaterial(mat, textures[0], textures[1], textures[2], textures[3], textures[4])
}

func (mt *MaterialTable) resolveSlots(handles ...bindless.Handle) [5]uint32 {
	var out [5]uint32
	for i, h := range handles {
		if !h.Valid() {
			out[i] = material.DummyTextureIndex
		} else {
			out[i] = h.Index()
		}
	}
	return out
}

// Finalize packs every staged drawable into buf and mt, clearing the
// staging queue and appending to the registry's packed list. It implements
// §4.3's five packing steps (skin-storage packing is left to the skin
// package, which consumes SkinSource itself once a Drawable's SkinIndex
// is assigned).
//
// Parameters:
//   - buf: the scene's shared vertex/index/secondary-stream arrays to append to
//   - mt: the scene's material table
//   - resolveTex: resolves a material's texture component references to bindless handles
//   - nextSkinIndex: called once per skinned primitive to reserve a skin-list slot; returns -1 input meshes should treat as "no skin"
func (r *Registry) Finalize(buf *Buffers, mt *MaterialTable, resolveTex func(material.Material) (baseColor, normal, metallicRough, occlusion, emissive bindless.Handle), nextSkinIndex func() int32) {
	packed := make([]Drawable, 0, len(r.staged))

	for _, s := range r.staged {
		d := Drawable{
			Entity:       s.entity,
			MainShader:   s.mainShader,
			ProbeShader:  s.probeShader,
			ShadowShader: s.shadowShader,
			SkinIndex:    -1,
		}

		// Step 1 + 2: append indices (rewritten to absolute vertex positions) and positions.
		vertexBase := uint32(len(buf.Positions) / 3)
		positions := s.mesh.Positions()
		indices := s.mesh.Indices()

		d.IndexOffset = uint32(len(buf.Indices))
		d.IndexCount = uint32(len(indices))
		for _, idx := range indices {
			buf.Indices = append(buf.Indices, vertexBase+idx)
		}

		d.VertexOffset = vertexBase
		d.VertexCount = uint32(len(positions) / 3)
		buf.Positions = append(buf.Positions, positions...)

		// Step 3: append secondary streams and record the stream mask.
		streamData, mask := s.mesh.SecondaryStreams()
		d.DataOffset = uint32(len(buf.SecondaryStreams))
		d.StreamMask = mask
		buf.SecondaryStreams = append(buf.SecondaryStreams, streamData...)

		// Step 4: reserve a skin slot if the primitive has skin data.
		if _, _, ok := s.mesh.SkinSource(); ok && nextSkinIndex != nil {
			d.SkinIndex = nextSkinIndex()
		}

		// Step 5: material lookup/append.
		d.MaterialIndex = mt.Index(s.mat, resolveTex)

		// Step 6: transform index from the monotonically increasing counter.
		d.TransformIndex = r.nextTransformIndex
		r.nextTransformIndex++

		d.Flags = classify(s.mat, s.probeTagged)

		packed = append(packed, d)
	}

	r.packed = append(r.packed, packed...)
	r.rebuildLookup()
	r.staged = r.staged[:0]
}

// rebuildLookup recomputes the entity -> packed-index map after Finalize.
func (r *Registry) rebuildLookup() {
	r.lookup = make(map[ecs.Entity]int, len(r.packed))
	for i, d := range r.packed {
		r.lookup[d.Entity] = i
	}
}
