// Package probe implements environment-probe capture and IBL prefiltering:
// six-face cube rendering of PROBE-tagged drawables from a point in the
// scene, followed by a compute-shader prefilter chain (BRDF LUT once,
// lambertian irradiance once, GGX specular per mip) producing the cubemaps
// the deferred lighting pass samples for reflections and ambient light.
package probe

import (
	"fmt"

	"github.com/oxy-go/renderer-core/common"
	"github.com/oxy-go/renderer-core/engine/ecs"
	"github.com/oxy-go/renderer-core/engine/renderer"
	"github.com/oxy-go/renderer-core/engine/renderer/bind_group_provider"
	"github.com/oxy-go/renderer-core/engine/renderer/bindless"
	"github.com/oxy-go/renderer-core/engine/renderer/drawable"
	"github.com/oxy-go/renderer-core/engine/renderer/shader"
)

// Flag is a bitmask of an EnvironmentProbe's behavior toggles.
type Flag uint8

const (
	// FlagRealtime marks a probe for continuous per-interval re-capture,
	// as opposed to a one-shot bake.
	FlagRealtime Flag = 1 << iota
	// FlagIncludeSky includes the skybox in the probe's capture passes.
	FlagIncludeSky
	// FlagParallaxCorrectionBox enables parallax-corrected reflection
	// sampling against ParallaxBoxMin/Max instead of a naive infinite-sphere lookup.
	FlagParallaxCorrectionBox
	// FlagDirty marks a probe as needing re-capture before its cubemaps are
	// sampled again, set whenever scene topology or the probe's placement changes.
	FlagDirty
)

// faceDirections lists the six cube-face view directions in +X,-X,+Y,-Y,+Z,-Z
// order, paired with an up vector chosen so LookAt never degenerates.
var faceDirections = [6][3]float32{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

var faceUps = [6][3]float32{
	{0, -1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
	{0, -1, 0}, {0, -1, 0},
}

// EnvironmentProbe is the CPU-side state for one scene-placed environment
// probe: its six-face cube render targets, per-face visibility lists, and
// the prefiltered output cubemaps sampled during deferred lighting.
type EnvironmentProbe struct {
	Entity         ecs.Entity
	Position       [3]float32
	Radius         float32
	FaceResolution int
	Samples        int
	UpdateInterval int // 1 = every frame; N = one face per N frames, rotated
	Flags          Flag

	ParallaxBoxMin [3]float32
	ParallaxBoxMax [3]float32

	faceTargets [6]*renderer.GBufferTargets
	visible     [6][]drawable.Drawable

	// currentFace is the next face due for a time-sliced update when
	// UpdateInterval > 1.
	currentFace int
	framesSince int

	LambertianEnv bindless.Handle
	GGXEnv        bindless.Handle
	BRDFLUT       bindless.Handle

	ggxMipCount int
}

// NewProbe creates an EnvironmentProbe centered at position with the given
// cube face resolution. The probe starts dirty so its first Update call
// performs a full six-face capture.
func NewProbe(entity ecs.Entity, position [3]float32, radius float32, faceResolution, samples int) *EnvironmentProbe {
	// GGX mip count per spec: floor(log2(size)) - 3, clamped to at least 1.
	log2 := 0
	for size := faceResolution; size > 1; size >>= 1 {
		log2++
	}
	mipCount := log2 - 3
	if mipCount < 1 {
		mipCount = 1
	}

	return &EnvironmentProbe{
		Entity:         entity,
		Position:       position,
		Radius:         radius,
		FaceResolution: faceResolution,
		Samples:        samples,
		UpdateInterval: 1,
		Flags:          FlagDirty,
		ggxMipCount:    mipCount,
	}
}

// MarkDirty flags the probe for re-capture on its next Due check, used when
// scene topology changes (a new drawable staged, an existing one moved).
func (p *EnvironmentProbe) MarkDirty() {
	p.Flags |= FlagDirty
}

// Dirty reports whether the probe needs re-capture.
func (p *EnvironmentProbe) Dirty() bool {
	return p.Flags&FlagDirty != 0
}

// Due reports whether the probe should capture a face this frame, given its
// UpdateInterval. A realtime probe with UpdateInterval 1 is always due; a
// probe with UpdateInterval N captures one face every N frames, round-robin.
func (p *EnvironmentProbe) Due() bool {
	if p.Dirty() {
		return true
	}
	if p.Flags&FlagRealtime == 0 {
		return false
	}
	if p.UpdateInterval <= 1 {
		return true
	}
	p.framesSince++
	if p.framesSince >= p.UpdateInterval {
		p.framesSince = 0
		return true
	}
	return false
}

// NextFace returns the face index due for update this call and advances the
// round-robin counter, used when UpdateInterval > 1 spreads the six faces
// across multiple frames instead of recapturing all six at once.
func (p *EnvironmentProbe) NextFace() int {
	face := p.currentFace
	p.currentFace = (p.currentFace + 1) % 6
	return face
}

// SetVisible records the drawables visible from face, computed by the scene
// against the face's frustum (90-degree FOV looking along FaceDirection).
func (p *EnvironmentProbe) SetVisible(face int, drawables []drawable.Drawable) {
	p.visible[face] = drawables
}

// Visible returns the drawables visible from face, as recorded by SetVisible.
func (p *EnvironmentProbe) Visible(face int) []drawable.Drawable {
	return p.visible[face]
}

// FaceDirection returns the world-space look direction for the given cube
// face, in +X,-X,+Y,-Y,+Z,-Z order.
func FaceDirection(face int) [3]float32 {
	return faceDirections[face%6]
}

// FaceViewMatrix builds the view matrix for rendering face from position,
// looking along that face's direction with a degeneracy-free up vector.
func FaceViewMatrix(position [3]float32, face int) [16]float32 {
	dir := faceDirections[face%6]
	up := faceUps[face%6]
	var view [16]float32
	common.LookAt(view[:],
		position[0], position[1], position[2],
		position[0]+dir[0], position[1]+dir[1], position[2]+dir[2],
		up[0], up[1], up[2],
	)
	return view
}

// FaceProjectionMatrix builds the 90-degree-FOV square projection matrix
// shared by every cube face.
func FaceProjectionMatrix(near, far float32) [16]float32 {
	var proj [16]float32
	common.Perspective(proj[:], float32(1.5707963267948966), 1.0, near, far) // pi/2
	return proj
}

// EnsureFaceTargets allocates the probe's six G-buffer+depth render targets
// on first use via r, sized to FaceResolution. A no-op once allocated.
func (p *EnvironmentProbe) EnsureFaceTargets(r renderer.Renderer) error {
	for face := range p.faceTargets {
		if p.faceTargets[face] != nil {
			continue
		}
		targets, err := r.CreateGBufferTargets(p.FaceResolution, p.FaceResolution)
		if err != nil {
			return fmt.Errorf("probe: failed to create face %d targets: %w", face, err)
		}
		p.faceTargets[face] = targets
	}
	return nil
}

// FaceTargets returns the probe's render targets for the given face,
// allocated by EnsureFaceTargets.
func (p *EnvironmentProbe) FaceTargets(face int) *renderer.GBufferTargets {
	return p.faceTargets[face%6]
}

// GGXMipCount returns floor(log2(FaceResolution)) - 3, clamped to at least 1,
// the number of roughness mip levels the GGX prefilter dispatch produces.
func (p *EnvironmentProbe) GGXMipCount() int {
	return p.ggxMipCount
}

// Manager owns the set of environment probes placed in a scene and drives
// their time-sliced capture/prefilter updates each frame.
type Manager struct {
	probes   map[ecs.Entity]*EnvironmentProbe
	prefilter *Prefilter
}

// NewManager creates an empty probe Manager bound to r for prefilter dispatch.
func NewManager(r renderer.Renderer) *Manager {
	return &Manager{
		probes:   make(map[ecs.Entity]*EnvironmentProbe),
		prefilter: NewPrefilter(r),
	}
}

// SetPrefilterShaders assigns the compute shaders m's prefilter chain
// dispatches. Must be called before the first Prefilter call.
func (m *Manager) SetPrefilterShaders(brdfLUT, lambertian, ggx shader.Shader) {
	m.prefilter.SetShaders(brdfLUT, lambertian, ggx)
}

// Add registers p under its owning entity.
func (m *Manager) Add(p *EnvironmentProbe) {
	m.probes[p.Entity] = p
}

// Remove unregisters the probe owned by entity, if any.
func (m *Manager) Remove(entity ecs.Entity) {
	delete(m.probes, entity)
}

// Get returns the probe owned by entity, if any.
func (m *Manager) Get(entity ecs.Entity) (*EnvironmentProbe, bool) {
	p, ok := m.probes[entity]
	return p, ok
}

// All returns every registered probe, in no particular order.
func (m *Manager) All() []*EnvironmentProbe {
	out := make([]*EnvironmentProbe, 0, len(m.probes))
	for _, p := range m.probes {
		out = append(out, p)
	}
	return out
}

// MarkAllDirty flags every probe for full re-capture, called by the scene
// after any topology-changing FinalizeScene since a newly staged drawable
// may be visible from an existing probe's position.
func (m *Manager) MarkAllDirty() {
	for _, p := range m.probes {
		p.MarkDirty()
	}
}

// Prefilter computes p's lambertian irradiance and GGX specular mip chain
// from its captured cube faces via m's bound renderer (dispatching the BRDF
// LUT as well on its first run only), clearing FlagDirty on success.
func (m *Manager) Prefilter(p *EnvironmentProbe, provider bind_group_provider.BindGroupProvider) error {
	if err := m.prefilter.Run(p, provider); err != nil {
		return err
	}
	p.Flags &^= FlagDirty
	return nil
}
