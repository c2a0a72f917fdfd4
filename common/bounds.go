package common

import "math"

// AABB is an axis-aligned bounding box expressed by its min and max corners
// in world space.
type AABB struct {
	Min [3]float32
	Max [3]float32
}

// Center returns the midpoint of the box.
func (b AABB) Center() [3]float32 {
	return [3]float32{
		(b.Min[0] + b.Max[0]) * 0.5,
		(b.Min[1] + b.Max[1]) * 0.5,
		(b.Min[2] + b.Max[2]) * 0.5,
	}
}

// HalfExtents returns the box's half-size along each axis.
func (b AABB) HalfExtents() [3]float32 {
	return [3]float32{
		(b.Max[0] - b.Min[0]) * 0.5,
		(b.Max[1] - b.Min[1]) * 0.5,
		(b.Max[2] - b.Min[2]) * 0.5,
	}
}

// OBB is an oriented bounding box: a center, three orthonormal axes, and the
// half-extent along each axis. Axes[0..2] correspond to Extents[0..2].
type OBB struct {
	Center  [3]float32
	Axes    [3][3]float32
	Extents [3]float32
}

// OBBFromAABB fits an OBB to an AABB transformed by a model matrix (16
// element column-major). The resulting OBB axes are the transform's basis
// vectors normalized to unit length; the scale moves into Extents, so
// Extents always holds true world-space half-lengths.
//
// Parameters:
//   - aabb: local-space bounding box (e.g. a mesh's bind-pose AABB)
//   - model: 16 element column-major model matrix
//
// Returns:
//   - OBB: world-space oriented bounding box
func OBBFromAABB(aabb AABB, model []float32) OBB {
	center := aabb.Center()
	half := aabb.HalfExtents()

	cx := model[0]*center[0] + model[4]*center[1] + model[8]*center[2] + model[12]
	cy := model[1]*center[0] + model[5]*center[1] + model[9]*center[2] + model[13]
	cz := model[2]*center[0] + model[6]*center[1] + model[10]*center[2] + model[14]

	var obb OBB
	obb.Center = [3]float32{cx, cy, cz}

	cols := [3][3]float32{
		{model[0], model[1], model[2]},
		{model[4], model[5], model[6]},
		{model[8], model[9], model[10]},
	}
	for i := 0; i < 3; i++ {
		length := vecLength(cols[i])
		if length > 0 {
			obb.Axes[i] = [3]float32{cols[i][0] / length, cols[i][1] / length, cols[i][2] / length}
		} else {
			obb.Axes[i] = unitAxis(i)
		}
		obb.Extents[i] = half[i] * length
	}
	return obb
}

// Corners returns the 8 world-space corners of the OBB.
func (o OBB) Corners() [8][3]float32 {
	var out [8][3]float32
	signs := [8][3]float32{
		{-1, -1, -1}, {1, -1, -1}, {-1, 1, -1}, {1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {-1, 1, 1}, {1, 1, 1},
	}
	for i, s := range signs {
		out[i] = addVec(o.Center, scaleVec(o.Axes[0], s[0]*o.Extents[0]))
		out[i] = addVec(out[i], scaleVec(o.Axes[1], s[1]*o.Extents[1]))
		out[i] = addVec(out[i], scaleVec(o.Axes[2], s[2]*o.Extents[2]))
	}
	return out
}

func vecLength(v [3]float32) float32 {
	return float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
}

func addVec(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func subVec(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func scaleVec(a [3]float32, s float32) [3]float32 {
	return [3]float32{a[0] * s, a[1] * s, a[2] * s}
}

func dotVec(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func crossVec(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func unitAxis(i int) [3]float32 {
	var a [3]float32
	a[i] = 1
	return a
}

// frustumCorners reconstructs the 8 corner points of a frustum from its six
// planes by intersecting each triple of adjacent planes. Order: near
// (bottom-left, bottom-right, top-left, top-right) then far, same layout.
func frustumCorners(f Frustum) [8][3]float32 {
	planeTriples := [8][3]int{
		{FrustumNear, FrustumLeft, FrustumBottom},
		{FrustumNear, FrustumRight, FrustumBottom},
		{FrustumNear, FrustumLeft, FrustumTop},
		{FrustumNear, FrustumRight, FrustumTop},
		{FrustumFar, FrustumLeft, FrustumBottom},
		{FrustumFar, FrustumRight, FrustumBottom},
		{FrustumFar, FrustumLeft, FrustumTop},
		{FrustumFar, FrustumRight, FrustumTop},
	}
	var out [8][3]float32
	for i, tri := range planeTriples {
		out[i] = intersectPlanes(f.Planes[tri[0]], f.Planes[tri[1]], f.Planes[tri[2]])
	}
	return out
}

// intersectPlanes solves for the point where three planes meet via Cramer's rule.
func intersectPlanes(p1, p2, p3 Plane) [3]float32 {
	n1, n2, n3 := p1.Normal, p2.Normal, p3.Normal
	denom := dotVec(n1, crossVec(n2, n3))
	if denom == 0 {
		return [3]float32{}
	}
	t1 := scaleVec(crossVec(n2, n3), -p1.Distance)
	t2 := scaleVec(crossVec(n3, n1), -p2.Distance)
	t3 := scaleVec(crossVec(n1, n2), -p3.Distance)
	sum := addVec(addVec(t1, t2), t3)
	inv := 1.0 / denom
	return scaleVec(sum, inv)
}

// projectOntoAxis returns the [min, max] interval of a point set projected
// onto the given axis.
func projectOntoAxis(points [][3]float32, axis [3]float32) (min, max float32) {
	min = dotVec(points[0], axis)
	max = min
	for _, p := range points[1:] {
		d := dotVec(p, axis)
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return
}

// SATVisible runs the classical 26-axis separating-axis test between a view
// frustum and an oriented bounding box. It returns false the moment a
// separating axis is found (the box is fully outside the frustum along that
// axis), and true if no separating axis exists among the candidate axes —
// meaning the box may be visible.
//
// Candidate axes, in order: the frustum's forward axis, its four side-plane
// normals, the OBB's three axes, and the eighteen cross products of six
// frustum edge directions with the OBB axes (degenerate products skipped).
//
// Parameters:
//   - f: the view frustum (six planes)
//   - box: the world-space oriented bounding box to test
//
// Returns:
//   - bool: true if the box is not provably outside the frustum
func SATVisible(f Frustum, box OBB) bool {
	frustumPts := frustumCorners(f)
	boxPts := box.Corners()

	fwd := crossVec(f.Planes[FrustumLeft].Normal, f.Planes[FrustumTop].Normal)
	if vecLength(fwd) == 0 {
		fwd = f.Planes[FrustumNear].Normal
	}

	axes := make([][3]float32, 0, 26)
	axes = append(axes, fwd)
	axes = append(axes,
		f.Planes[FrustumLeft].Normal,
		f.Planes[FrustumRight].Normal,
		f.Planes[FrustumBottom].Normal,
		f.Planes[FrustumTop].Normal,
	)
	axes = append(axes, box.Axes[0], box.Axes[1], box.Axes[2])

	frustumEdges := frustumEdgeDirections(frustumPts)
	for _, fe := range frustumEdges {
		for _, be := range box.Axes {
			c := crossVec(fe, be)
			if vecLength(c) > 1e-8 {
				axes = append(axes, c)
			}
		}
	}

	frustumPtsSlice := frustumPts[:]
	boxPtsSlice := boxPts[:]

	for _, axis := range axes {
		if vecLength(axis) < 1e-12 {
			continue
		}
		fMin, fMax := projectOntoAxis(frustumPtsSlice, axis)
		bMin, bMax := projectOntoAxis(boxPtsSlice, axis)
		if fMax < bMin || bMax < fMin {
			return false
		}
	}
	return true
}

// frustumEdgeDirections returns representative edge direction vectors of the
// frustum (near-to-far edges plus two near-plane edges), used as the third
// family of SAT candidate axes.
func frustumEdgeDirections(pts [8][3]float32) [6][3]float32 {
	return [6][3]float32{
		subVec(pts[4], pts[0]), // near-bl -> far-bl
		subVec(pts[5], pts[1]), // near-br -> far-br
		subVec(pts[6], pts[2]), // near-tl -> far-tl
		subVec(pts[7], pts[3]), // near-tr -> far-tr
		subVec(pts[1], pts[0]), // near-bl -> near-br
		subVec(pts[2], pts[0]), // near-bl -> near-tl
	}
}
