package common

import "testing"

func almostEqual(a, b, eps float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func identityFrustum() Frustum {
	proj := make([]float32, 16)
	Perspective(proj, 1.2, 16.0/9.0, 0.1, 100.0)
	view := make([]float32, 16)
	Identity(view)
	vp := make([]float32, 16)
	Mul4(vp, proj, view)
	return ExtractFrustumFromMatrix(vp)
}

func TestOBBFromAABBIdentity(t *testing.T) {
	box := AABB{Min: [3]float32{-1, -1, -1}, Max: [3]float32{1, 1, 1}}
	model := make([]float32, 16)
	Identity(model)
	obb := OBBFromAABB(box, model)

	if !almostEqual(obb.Center[0], 0, 1e-5) || !almostEqual(obb.Center[2], 0, 1e-5) {
		t.Fatalf("expected center at origin, got %v", obb.Center)
	}
	for i, e := range obb.Extents {
		if !almostEqual(e, 1, 1e-5) {
			t.Fatalf("extent %d = %f, want 1", i, e)
		}
	}
}

func TestOBBFromAABBTranslated(t *testing.T) {
	box := AABB{Min: [3]float32{-1, -1, -1}, Max: [3]float32{1, 1, 1}}
	model := make([]float32, 16)
	BuildModelMatrix(model, 5, 0, -10, 0, 0, 0, 1, 1, 1)
	obb := OBBFromAABB(box, model)

	want := [3]float32{5, 0, -10}
	for i := range want {
		if !almostEqual(obb.Center[i], want[i], 1e-4) {
			t.Fatalf("center[%d] = %f, want %f", i, obb.Center[i], want[i])
		}
	}
}

func TestSATVisibleBoxInsideFrustum(t *testing.T) {
	f := identityFrustum()
	box := OBB{
		Center:  [3]float32{0, 0, -10},
		Axes:    [3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		Extents: [3]float32{1, 1, 1},
	}
	if !SATVisible(f, box) {
		t.Fatal("expected box directly in front of the camera to be visible")
	}
}

func TestSATVisibleBoxBehindCamera(t *testing.T) {
	f := identityFrustum()
	box := OBB{
		Center:  [3]float32{0, 0, 10},
		Axes:    [3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		Extents: [3]float32{1, 1, 1},
	}
	if SATVisible(f, box) {
		t.Fatal("expected box behind the camera to be culled")
	}
}

func TestSATVisibleBoxFarOffToSide(t *testing.T) {
	f := identityFrustum()
	box := OBB{
		Center:  [3]float32{500, 0, -10},
		Axes:    [3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		Extents: [3]float32{1, 1, 1},
	}
	if SATVisible(f, box) {
		t.Fatal("expected box far outside the frustum's side planes to be culled")
	}
}

func TestSATVisibleBoxPastFarPlane(t *testing.T) {
	f := identityFrustum()
	box := OBB{
		Center:  [3]float32{0, 0, -1000},
		Axes:    [3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		Extents: [3]float32{1, 1, 1},
	}
	if SATVisible(f, box) {
		t.Fatal("expected box beyond the far plane to be culled")
	}
}
