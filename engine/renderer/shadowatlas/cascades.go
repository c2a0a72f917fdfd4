package shadowatlas

import (
	"math"

	"github.com/oxy-go/renderer-core/common"
)

// SplitMix is the blend factor between logarithmic and uniform frustum
// partitioning used by ComputeCascadeSplits (PSSM), per spec.md's "mix of
// logarithmic and uniform partitioning". 0 = pure uniform, 1 = pure log.
const SplitMix = 0.5

// ComputeCascadeSplits partitions [near, far] into cascadeCount slices using
// the practical split scheme (PSSM): each split distance is a blend of the
// logarithmic and uniform partition at that index, weighted by SplitMix.
//
// Parameters:
//   - near, far: the view frustum's near/far plane distances
//   - cascadeCount: number of cascades to produce (>= 1)
//
// Returns:
//   - []float32: cascadeCount+1 split distances, splits[0] == near, splits[cascadeCount] == far
func ComputeCascadeSplits(near, far float32, cascadeCount int) []float32 {
	splits := make([]float32, cascadeCount+1)
	splits[0] = near
	for i := 1; i <= cascadeCount; i++ {
		t := float32(i) / float32(cascadeCount)
		logSplit := near * float32(math.Pow(float64(far/near), float64(t)))
		uniformSplit := near + (far-near)*t
		splits[i] = SplitMix*logSplit + (1-SplitMix)*uniformSplit
	}
	return splits
}

// CascadeFrustumCorners reconstructs the 8 world-space corners of a
// sub-frustum spanning [splitNear, splitFar] given the camera's inverse
// view-projection matrix and the full near/far the matrix was built with.
// Each corner is computed by unprojecting an NDC corner, then interpolated
// along the camera's near-to-far ray to the split's near/far distance
// fraction.
//
// Parameters:
//   - invViewProj: 16-element inverse view-projection matrix (column-major)
//   - near, far: the camera's full near/far planes
//   - splitNear, splitFar: this cascade's near/far distances within [near, far]
//
// Returns:
//   - [8][3]float32: the 8 corners of the cascade's sub-frustum
func CascadeFrustumCorners(invViewProj []float32, near, far, splitNear, splitFar float32) [8][3]float32 {
	ndcNear := [4][2]float32{{-1, -1}, {1, -1}, {-1, 1}, {1, 1}}

	nearT := (splitNear - near) / (far - near)
	farT := (splitFar - near) / (far - near)

	var out [8][3]float32
	for i, xy := range ndcNear {
		nearPoint := unproject(invViewProj, xy[0], xy[1], 0)
		farPoint := unproject(invViewProj, xy[0], xy[1], 1)
		out[i] = lerp3(nearPoint, farPoint, nearT)
		out[i+4] = lerp3(nearPoint, farPoint, farT)
	}
	return out
}

func unproject(invViewProj []float32, ndcX, ndcY, ndcZ float32) [3]float32 {
	clip := [4]float32{ndcX, ndcY, ndcZ, 1}
	var world [4]float32
	for row := 0; row < 4; row++ {
		var sum float32
		for col := 0; col < 4; col++ {
			sum += invViewProj[col*4+row] * clip[col]
		}
		world[row] = sum
	}
	if world[3] == 0 {
		world[3] = 1
	}
	inv := 1.0 / world[3]
	return [3]float32{world[0] * inv, world[1] * inv, world[2] * inv}
}

func lerp3(a, b [3]float32, t float32) [3]float32 {
	return [3]float32{
		a[0] + (b[0]-a[0])*t,
		a[1] + (b[1]-a[1])*t,
		a[2] + (b[2]-a[2])*t,
	}
}

// FitSphere computes the bounding sphere of a set of world-space points,
// used to stabilize a cascade's orthographic frustum against camera
// rotation (a sphere-fit frustum has a fixed radius regardless of view
// direction, preventing shadow shimmer as the camera turns).
//
// Parameters:
//   - points: world-space points to enclose (typically 8 frustum corners)
//
// Returns:
//   - center [3]float32: the sphere's center
//   - radius float32: the sphere's radius
func FitSphere(points [8][3]float32) (center [3]float32, radius float32) {
	for _, p := range points {
		center[0] += p[0]
		center[1] += p[1]
		center[2] += p[2]
	}
	n := float32(len(points))
	center[0] /= n
	center[1] /= n
	center[2] /= n

	for _, p := range points {
		dx, dy, dz := p[0]-center[0], p[1]-center[1], p[2]-center[2]
		d := float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
		if d > radius {
			radius = d
		}
	}
	return
}

// SnapToTexel snaps a cascade's world-space center to the nearest shadow
// texel, eliminating sub-texel jitter as the camera moves. texelWorldSize
// is 2*radius/resolution (the world-space size of one shadow-map texel for
// a sphere-fit orthographic frustum of the given radius).
//
// Parameters:
//   - center: the unsnapped world-space frustum center
//   - texelWorldSize: world-space size of one shadow-map texel
//
// Returns:
//   - [3]float32: center snapped to the texel grid
func SnapToTexel(center [3]float32, texelWorldSize float32) [3]float32 {
	if texelWorldSize == 0 {
		return center
	}
	return [3]float32{
		float32(math.Floor(float64(center[0]/texelWorldSize))) * texelWorldSize,
		float32(math.Floor(float64(center[1]/texelWorldSize))) * texelWorldSize,
		float32(math.Floor(float64(center[2]/texelWorldSize))) * texelWorldSize,
	}
}

// BuildCascadeVP builds an orthographic view-projection matrix for one
// stabilized, texel-snapped cascade, reusing the teacher's common.LookAt
// and the light package's orthographic convention (WebGPU Z in [0, 1]).
//
// Parameters:
//   - lightDir: normalized direction the light points
//   - center: the cascade's sphere-fit, texel-snapped center
//   - radius: the cascade's sphere-fit radius (used as the ortho half-extent)
//
// Returns:
//   - [16]float32: column-major view-projection matrix
func BuildCascadeVP(lightDir, center [3]float32, radius float32) [16]float32 {
	eyeDist := radius * 2
	eye := [3]float32{
		center[0] - lightDir[0]*eyeDist,
		center[1] - lightDir[1]*eyeDist,
		center[2] - lightDir[2]*eyeDist,
	}

	up := [3]float32{0, 1, 0}
	if absF32(lightDir[1]) > 0.99 {
		up = [3]float32{1, 0, 0}
	}

	var view [16]float32
	common.LookAt(view[:], eye[0], eye[1], eye[2], center[0], center[1], center[2], up[0], up[1], up[2])

	var proj [16]float32
	orthoWebGPU(proj[:], -radius, radius, -radius, radius, 0.01, eyeDist+radius)

	var vp [16]float32
	common.Mul4(vp[:], proj[:], view[:])
	return vp
}

func orthoWebGPU(out []float32, left, right, bottom, top, near, far float32) {
	common.Identity(out)
	rl := right - left
	tb := top - bottom
	fn := far - near

	out[0] = 2.0 / rl
	out[5] = 2.0 / tb
	out[10] = -1.0 / fn
	out[12] = -(right + left) / rl
	out[13] = -(top + bottom) / tb
	out[14] = -near / fn
}

func absF32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
