package shadowatlas

// PackDirectionalLight reserves cascadeCount resolution×resolution
// rectangles in the atlas and fills a GpuLightShadowData record with the
// stabilized, texel-snapped cascade view-projections and their atlas
// offsets. Resolution must match the atlas's configured shadow-map
// resolution (spec.md's uShadowResolution).
//
// Parameters:
//   - packer: the atlas's rectangle packer (already Reset for this frame)
//   - invViewProj: the view camera's inverse view-projection (for corner unprojection)
//   - near, far: the view camera's near/far planes
//   - lightDir: normalized light direction
//   - cascadeCount: number of cascades to pack (1..MaxShadowFaces)
//   - resolution: shadow-map resolution per cascade, in texels
//   - biasScale: multiplier on the per-texel world size for normal-offset bias (see ComputeNormalBias in engine/light)
//
// Returns:
//   - GpuLightShadowData: populated shadow record
//   - error: the packer's error if a rectangle could not be reserved
func PackDirectionalLight(packer *Packer, invViewProj []float32, near, far float32, lightDir [3]float32, cascadeCount int, resolution uint32, biasScale float32) (GpuLightShadowData, error) {
	if cascadeCount > MaxShadowFaces {
		cascadeCount = MaxShadowFaces
	}
	splits := ComputeCascadeSplits(near, far, cascadeCount)

	var data GpuLightShadowData
	data.CascadeCount = uint32(cascadeCount)
	for i := 0; i <= cascadeCount; i++ {
		data.CascadeSplits[i] = splits[i]
	}

	for i := 0; i < cascadeCount; i++ {
		corners := CascadeFrustumCorners(invViewProj, near, far, splits[i], splits[i+1])
		center, radius := FitSphere(corners)
		texelWorldSize := 2 * radius / float32(resolution)
		center = SnapToTexel(center, texelWorldSize)

		vp := BuildCascadeVP(lightDir, center, radius)
		data.LightVP[i] = vp
		data.NormalBias = texelWorldSize * biasScale

		rect, err := packer.Pack(resolution)
		if err != nil {
			return data, err
		}
		data.AtlasOffset[i] = [2]float32{float32(rect.X), float32(rect.Y)}
	}

	return data, nil
}
