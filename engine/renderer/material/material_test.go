package material

import "testing"

func TestNewMaterialDefaults(t *testing.T) {
	m := NewMaterial(WithName("default"))
	if m.BaseColor() != [4]float32{1, 1, 1, 1} {
		t.Fatalf("expected white base color, got %v", m.BaseColor())
	}
	if m.Roughness() != 1.0 || m.Metallic() != 0.0 {
		t.Fatalf("expected fully rough dielectric defaults, got metallic=%f roughness=%f", m.Metallic(), m.Roughness())
	}
	if m.AlphaCutoff() != 0.5 {
		t.Fatalf("expected default alpha cutoff 0.5, got %f", m.AlphaCutoff())
	}
}

func TestMaterialBuilderOptions(t *testing.T) {
	m := NewMaterial(
		WithName("glass"),
		WithBaseColor([4]float32{0.2, 0.4, 0.6, 0.8}),
		WithEmissiveFactor([3]float32{1, 0, 0}),
		WithMetallic(0.9),
		WithRoughness(0.1),
		WithDoubleSided(true),
		WithAlphaBlend(true),
	)
	if m.Name() != "glass" {
		t.Fatalf("expected name glass, got %s", m.Name())
	}
	if !m.DoubleSided() || !m.AlphaBlend() {
		t.Fatal("expected double-sided and alpha-blend flags set")
	}
	if m.EmissiveFactor() != [3]float32{1, 0, 0} {
		t.Fatalf("unexpected emissive factor %v", m.EmissiveFactor())
	}
}

func TestPackUVSetMask(t *testing.T) {
	mask := PackUVSetMask(1, 0, 1, 0, 1)
	if mask&(0b11<<uvSetShiftBaseColor) == 0 {
		t.Fatal("expected base color UV set bit set")
	}
	if mask&(0b11<<uvSetShiftNormal) != 0 {
		t.Fatal("expected normal UV set bits clear")
	}
}

func TestToGpuMaterialAndMarshalSize(t *testing.T) {
	m := NewMaterial(
		WithBaseColor([4]float32{1, 0, 0, 1}),
		WithMetallic(0.5),
		WithRoughness(0.5),
	)
	gpu := ToGpuMaterial(m, 3, DummyTextureIndex, 5, DummyTextureIndex, DummyTextureIndex)
	if gpu.BaseColorTexIdx != 3 || gpu.MetallicRoughIdx != 5 {
		t.Fatalf("expected resolved slots to carry through, got %+v", gpu)
	}
	if gpu.NormalTexIdx != DummyTextureIndex || gpu.EmissiveTexIdx != DummyTextureIndex {
		t.Fatalf("expected absent textures to fall back to the dummy slot, got %+v", gpu)
	}

	buf := gpu.Marshal()
	if len(buf) != gpu.Size() {
		t.Fatalf("marshal length %d does not match Size() %d", len(buf), gpu.Size())
	}
	if gpu.Size() != 80 {
		t.Fatalf("expected GpuMaterial to be 80 bytes, got %d", gpu.Size())
	}
}
