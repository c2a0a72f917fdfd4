package shadowatlas

import (
	"testing"

	"github.com/oxy-go/renderer-core/common"
)

func TestPackerNonOverlapping(t *testing.T) {
	p := NewPacker(2048)
	var rects []Rect
	for i := 0; i < 8; i++ {
		r, err := p.Pack(512)
		if err != nil {
			t.Fatalf("unexpected error packing rect %d: %v", i, err)
		}
		if !r.Within(p.Resolution()) {
			t.Fatalf("rect %v not within atlas resolution %d", r, p.Resolution())
		}
		for _, other := range rects {
			if r.Overlaps(other) {
				t.Fatalf("rect %v overlaps %v", r, other)
			}
		}
		rects = append(rects, r)
	}
}

func TestPackerExhaustion(t *testing.T) {
	p := NewPacker(512)
	if _, err := p.Pack(512); err != nil {
		t.Fatalf("first 512 tile should fit a 512 atlas: %v", err)
	}
	if _, err := p.Pack(512); err == nil {
		t.Fatal("expected the atlas to be exhausted after one full-size tile")
	}
}

func TestPackerGrowResetsAndDoubles(t *testing.T) {
	p := NewPacker(512)
	p.Pack(512)
	if !p.Grow(2048) {
		t.Fatal("expected growth to succeed under the cap")
	}
	if p.Resolution() != 1024 {
		t.Fatalf("expected resolution 1024 after growth, got %d", p.Resolution())
	}
	if _, err := p.Pack(1024); err != nil {
		t.Fatalf("expected room after growth: %v", err)
	}
}

func TestPackerGrowCappedAtMax(t *testing.T) {
	p := NewPacker(2048)
	if p.Grow(2048) {
		t.Fatal("expected growth to fail once resolution equals the cap")
	}
}

func TestComputeCascadeSplitsMonotonic(t *testing.T) {
	splits := ComputeCascadeSplits(0.1, 100, 4)
	if len(splits) != 5 {
		t.Fatalf("expected 5 split boundaries for 4 cascades, got %d", len(splits))
	}
	if splits[0] != 0.1 || splits[4] != 100 {
		t.Fatalf("expected splits to bound [near, far], got %v", splits)
	}
	for i := 1; i < len(splits); i++ {
		if splits[i] <= splits[i-1] {
			t.Fatalf("expected strictly increasing splits, got %v", splits)
		}
	}
}

func TestPackDirectionalLightFillsAllCascades(t *testing.T) {
	proj := make([]float32, 16)
	common.Perspective(proj, 1.2, 16.0/9.0, 0.1, 100.0)
	view := make([]float32, 16)
	common.Identity(view)
	vp := make([]float32, 16)
	common.Mul4(vp, proj, view)
	invVP := make([]float32, 16)
	if !common.Invert4(invVP, vp) {
		t.Fatal("expected view-projection to be invertible")
	}

	packer := NewPacker(4096)
	data, err := PackDirectionalLight(packer, invVP, 0.1, 100, [3]float32{0, -1, 0}, 4, 1024, 3.0)
	if err != nil {
		t.Fatalf("unexpected pack error: %v", err)
	}
	if data.CascadeCount != 4 {
		t.Fatalf("expected cascade count 4, got %d", data.CascadeCount)
	}
	for i := 0; i < 4; i++ {
		off := data.AtlasOffset[i]
		if off[0] == 0 && off[1] == 0 && i != 0 {
			t.Fatalf("cascade %d unexpectedly reused the origin offset", i)
		}
	}

	buf := data.Marshal()
	if len(buf) != data.Size() {
		t.Fatalf("marshal length %d != Size() %d", len(buf), data.Size())
	}
}

func TestPackPointLightFillsAllFaces(t *testing.T) {
	packer := NewPacker(4096)
	data, err := PackPointLight(packer, [3]float32{1, 2, 3}, 0.1, 50, 512, 2.0)
	if err != nil {
		t.Fatalf("unexpected pack error: %v", err)
	}
	if data.CascadeCount != MaxShadowFaces {
		t.Fatalf("expected 6 faces, got %d", data.CascadeCount)
	}

	seen := map[[2]float32]bool{}
	for i := 0; i < MaxShadowFaces; i++ {
		off := data.AtlasOffset[i]
		if seen[off] {
			t.Fatalf("face %d reused atlas offset %v", i, off)
		}
		seen[off] = true
	}
}

func TestPackSpotLightFillsOneFace(t *testing.T) {
	packer := NewPacker(2048)
	data, err := PackSpotLight(packer, [3]float32{0, 0, 0}, [3]float32{0, 0, -1}, 0.6, 0.1, 30, 512, 2.0)
	if err != nil {
		t.Fatalf("unexpected pack error: %v", err)
	}
	if data.CascadeCount != 1 {
		t.Fatalf("expected cascade count 1 for a spot light, got %d", data.CascadeCount)
	}
	if data.LightVP[0] == ([16]float32{}) {
		t.Fatal("expected face 0's view-projection to be populated")
	}
}
