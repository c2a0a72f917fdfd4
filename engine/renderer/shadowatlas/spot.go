package shadowatlas

import (
	"math"

	"github.com/oxy-go/renderer-core/common"
)

// PackSpotLight reserves a single resolution×resolution face in the atlas
// and fills a GpuLightShadowData record with the spot light's
// view-projection. Only entry 0 of LightVP/AtlasOffset is populated;
// CascadeSplits is left zeroed.
//
// Parameters:
//   - packer: the atlas's rectangle packer (already Reset for this frame)
//   - position: the light's world-space position
//   - direction: the spot light's normalized aim direction
//   - outerConeAngle: the spot light's outer cone half-angle in radians, doubled to form the projection's field of view
//   - near, far: the spot light's shadow near/far planes
//   - resolution: shadow-map resolution, in texels
//   - biasScale: multiplier on the per-texel world size for normal-offset bias
//
// Returns:
//   - GpuLightShadowData: populated shadow record with face 0 filled
//   - error: the packer's error if a rectangle could not be reserved
func PackSpotLight(packer *Packer, position, direction [3]float32, outerConeAngle, near, far float32, resolution uint32, biasScale float32) (GpuLightShadowData, error) {
	var data GpuLightShadowData
	data.CascadeCount = 1

	fov := outerConeAngle * 2
	if fov <= 0 {
		fov = 1.0
	}

	var proj [16]float32
	common.Perspective(proj[:], fov, 1.0, near, far)

	up := [3]float32{0, 1, 0}
	if absF32(direction[1]) > 0.99 {
		up = [3]float32{1, 0, 0}
	}
	target := [3]float32{position[0] + direction[0], position[1] + direction[1], position[2] + direction[2]}

	var view [16]float32
	common.LookAt(view[:], position[0], position[1], position[2], target[0], target[1], target[2], up[0], up[1], up[2])

	var vp [16]float32
	common.Mul4(vp[:], proj[:], view[:])
	data.LightVP[0] = vp

	halfFov := fov / 2
	texelWorldSize := (2 * far * float32(math.Tan(float64(halfFov)))) / float32(resolution)
	data.NormalBias = texelWorldSize * biasScale

	rect, err := packer.Pack(resolution)
	if err != nil {
		return data, err
	}
	data.AtlasOffset[0] = [2]float32{float32(rect.X), float32(rect.Y)}

	return data, nil
}
