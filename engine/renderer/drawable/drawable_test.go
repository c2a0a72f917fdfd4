package drawable

import (
	"testing"

	"github.com/oxy-go/renderer-core/engine/ecs"
	"github.com/oxy-go/renderer-core/engine/renderer/bindless"
	"github.com/oxy-go/renderer-core/engine/renderer/material"
)

type fakeMesh struct {
	positions []float32
	indices   []uint32
	skinned   bool
}

func (m *fakeMesh) Positions() []float32 { return m.positions }
func (m *fakeMesh) Indices() []uint32    { return m.indices }
func (m *fakeMesh) SecondaryStreams() ([]float32, StreamMask) {
	return []float32{0, 1, 0}, StreamNormal
}
func (m *fakeMesh) SkinSource() ([]uint32, []float32, bool) {
	if !m.skinned {
		return nil, nil, false
	}
	return []uint32{0, 1}, []float32{0.5, 0.5}, true
}

func noTextures(material.Material) (a, b, c, d, e bindless.Handle) {
	return bindless.NullHandle, bindless.NullHandle, bindless.NullHandle, bindless.NullHandle, bindless.NullHandle
}

func TestStageThenFinalizePacksBuffersAndMaterial(t *testing.T) {
	reg := NewRegistry()
	buf := &Buffers{}
	mt := NewMaterialTable()

	mesh := &fakeMesh{
		positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		indices:   []uint32{0, 1, 2},
	}
	mat := material.NewMaterial(material.WithPipelineKey("pbr"))
	entity := ecs.NewEntity(1, 1)

	reg.Stage(entity, mesh, mat, false, "main", "probe", "shadow")
	reg.Finalize(buf, mt, noTextures, nil)

	packed := reg.Packed()
	if len(packed) != 1 {
		t.Fatalf("expected 1 packed drawable, got %d", len(packed))
	}
	d := packed[0]
	if d.VertexCount != 3 || d.IndexCount != 3 {
		t.Fatalf("expected 3 vertices/indices, got %d/%d", d.VertexCount, d.IndexCount)
	}
	if !d.Flags.Has(FlagDeferred) {
		t.Fatal("expected an opaque PBR material to classify as deferred")
	}
	if len(mt.Entries) != 1 {
		t.Fatalf("expected 1 material entry, got %d", len(mt.Entries))
	}

	idx, ok := reg.Lookup(entity)
	if !ok || idx != 0 {
		t.Fatalf("expected entity to resolve to packed index 0, got (%d, %v)", idx, ok)
	}
}

func TestFinalizeAppendsAcrossMultipleCalls(t *testing.T) {
	reg := NewRegistry()
	buf := &Buffers{}
	mt := NewMaterialTable()
	mat := material.NewMaterial(material.WithPipelineKey("pbr"))

	mesh1 := &fakeMesh{positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, indices: []uint32{0, 1, 2}}
	reg.Stage(ecs.NewEntity(1, 1), mesh1, mat, false, "m", "p", "s")
	reg.Finalize(buf, mt, noTextures, nil)

	mesh2 := &fakeMesh{positions: []float32{2, 0, 0, 3, 0, 0, 2, 1, 0}, indices: []uint32{0, 1, 2}}
	reg.Stage(ecs.NewEntity(2, 1), mesh2, mat, false, "m", "p", "s")
	reg.Finalize(buf, mt, noTextures, nil)

	if len(reg.Packed()) != 2 {
		t.Fatalf("expected 2 packed drawables across two finalize calls, got %d", len(reg.Packed()))
	}
	second := reg.Packed()[1]
	if second.VertexOffset != 3 {
		t.Fatalf("expected the second drawable's vertices to start after the first's, got offset %d", second.VertexOffset)
	}
	if len(mt.Entries) != 1 {
		t.Fatalf("expected the shared material to be deduplicated to 1 entry, got %d", len(mt.Entries))
	}
}

func TestClassifyForwardForBlendedMaterial(t *testing.T) {
	mat := material.NewMaterial(material.WithPipelineKey("pbr"), material.WithAlphaBlend(true))
	flags := classify(mat, false)
	if flags.Has(FlagDeferred) {
		t.Fatal("expected a blended material not to classify as deferred")
	}
	if !flags.Has(FlagForward) || !flags.Has(FlagShadowForward) {
		t.Fatal("expected a blended material to classify as forward with forward shadows")
	}
}

func TestClassifyProbeTag(t *testing.T) {
	mat := material.NewMaterial(material.WithPipelineKey("pbr"))
	flags := classify(mat, true)
	if !flags.Has(FlagProbe) {
		t.Fatal("expected probe-tagged mesh to carry FlagProbe")
	}
}

func TestSkinnedDrawableGetsSkinIndex(t *testing.T) {
	reg := NewRegistry()
	buf := &Buffers{}
	mt := NewMaterialTable()
	mat := material.NewMaterial(material.WithPipelineKey("pbr"))
	mesh := &fakeMesh{positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, indices: []uint32{0, 1, 2}, skinned: true}

	reg.Stage(ecs.NewEntity(1, 1), mesh, mat, false, "m", "p", "s")
	next := int32(-1)
	reg.Finalize(buf, mt, noTextures, func() int32 {
		next++
		return next
	})

	if reg.Packed()[0].SkinIndex != 0 {
		t.Fatalf("expected skinned drawable to receive skin index 0, got %d", reg.Packed()[0].SkinIndex)
	}
}
