// Package pick encodes and decodes the entity-id written by the pick pass's
// fragment shader, and wraps the renderer's pick-target readback in the
// frames-in-flight deferral the scene's hover-query ring needs.
package pick

import "github.com/oxy-go/renderer-core/engine/ecs"

// Encode packs an ecs.Entity into the RGBA bytes the pick pass's fragment
// shader writes per covered pixel: the low 24 bits of the entity index in
// R, G, B and the 8-bit generation in A. 24 bits of index comfortably
// covers any scene this renderer targets; entities beyond that range alias
// within the pick buffer only, never in the ecs.Registry itself.
func Encode(e ecs.Entity) [4]byte {
	idx := e.Index() & 0x00FFFFFF
	gen := uint8(e.Generation())
	return [4]byte{
		byte(idx & 0xFF),
		byte((idx >> 8) & 0xFF),
		byte((idx >> 16) & 0xFF),
		gen,
	}
}

// Decode reverses Encode. A zero index and zero generation decodes to
// ecs.Entity(0), the null entity the pass clears its target to, so an
// empty pixel never aliases a live entity (ecs.Registry never hands out
// generation 0 for index 0 — see ecs.NewEntity).
func Decode(rgba [4]byte) ecs.Entity {
	idx := uint32(rgba[0]) | uint32(rgba[1])<<8 | uint32(rgba[2])<<16
	gen := uint32(rgba[3])
	return ecs.NewEntity(idx, gen)
}

// Ring defers a pick readback across the renderer's frames-in-flight, since
// a pick target written this frame is not safely mappable until the GPU has
// finished consuming it. Request marks a pending query; Advance moves
// outstanding queries one frame closer to readiness and reports (and
// consumes) a query whose readback buffer is now safe to map.
type Ring struct {
	framesInFlight int
	pendingX       int
	pendingY       int
	pendingAge     int
	pending        bool
}

// NewRing creates a pick ring that defers readbacks by framesInFlight-1
// frames, per spec.md's "safely readable after uFramesInFlight-1 frames"
// contract.
func NewRing(framesInFlight int) *Ring {
	if framesInFlight < 1 {
		framesInFlight = 1
	}
	return &Ring{framesInFlight: framesInFlight}
}

// Request records a new hover-check at (x, y), replacing any query still
// in flight (only the most recent cursor position matters).
func (r *Ring) Request(x, y int) {
	r.pendingX, r.pendingY = x, y
	r.pendingAge = 0
	r.pending = true
}

// Advance should be called once per rendered frame. It reports whether the
// pending query (if any) is ready to be read back this frame, and its
// coordinates.
func (r *Ring) Advance() (x, y int, ready bool) {
	if !r.pending {
		return 0, 0, false
	}
	r.pendingAge++
	if r.pendingAge < r.framesInFlight-1 {
		return 0, 0, false
	}
	r.pending = false
	return r.pendingX, r.pendingY, true
}

// Pending reports whether a hover-check is awaiting readback.
func (r *Ring) Pending() bool {
	return r.pending
}
