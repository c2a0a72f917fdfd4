package shadowatlas

import (
	"math"

	"github.com/oxy-go/renderer-core/common"
)

// cubeFaceDirections lists the 6 cube-face (forward, up) pairs in the
// standard +X,-X,+Y,-Y,+Z,-Z order, used to build one view-projection per
// face of a point light's shadow cube.
var cubeFaceDirections = [MaxShadowFaces][2][3]float32{
	{{1, 0, 0}, {0, -1, 0}},
	{{-1, 0, 0}, {0, -1, 0}},
	{{0, 1, 0}, {0, 0, 1}},
	{{0, -1, 0}, {0, 0, -1}},
	{{0, 0, 1}, {0, -1, 0}},
	{{0, 0, -1}, {0, -1, 0}},
}

// PackPointLight reserves 6 resolution×resolution faces in the atlas (one
// per cube face) and fills a GpuLightShadowData record with each face's
// view-projection and atlas offset. Point lights use a perspective
// projection with a 90-degree field of view per face and do not populate
// CascadeSplits.
//
// Parameters:
//   - packer: the atlas's rectangle packer (already Reset for this frame)
//   - position: the light's world-space position
//   - near, far: the point light's shadow near/far planes
//   - resolution: shadow-map resolution per face, in texels
//   - biasScale: multiplier on the per-texel world size for normal-offset bias
//
// Returns:
//   - GpuLightShadowData: populated shadow record with all 6 faces filled
//   - error: the packer's error if a rectangle could not be reserved
func PackPointLight(packer *Packer, position [3]float32, near, far float32, resolution uint32, biasScale float32) (GpuLightShadowData, error) {
	var data GpuLightShadowData
	data.CascadeCount = MaxShadowFaces

	const faceFov = float32(math.Pi / 2)
	var proj [16]float32
	common.Perspective(proj[:], faceFov, 1.0, near, far)

	// tan(faceFov/2) == tan(pi/4) == 1, so the far-plane face half-width equals far.
	texelWorldSize := (2 * far) / float32(resolution)
	data.NormalBias = texelWorldSize * biasScale

	for face := 0; face < MaxShadowFaces; face++ {
		fwd := cubeFaceDirections[face][0]
		up := cubeFaceDirections[face][1]
		target := [3]float32{position[0] + fwd[0], position[1] + fwd[1], position[2] + fwd[2]}

		var view [16]float32
		common.LookAt(view[:], position[0], position[1], position[2], target[0], target[1], target[2], up[0], up[1], up[2])

		var vp [16]float32
		common.Mul4(vp[:], proj[:], view[:])
		data.LightVP[face] = vp

		rect, err := packer.Pack(resolution)
		if err != nil {
			return data, err
		}
		data.AtlasOffset[face] = [2]float32{float32(rect.X), float32(rect.Y)}
	}

	return data, nil
}
