// Package shadowatlas packs the shadow maps of every shadow-casting light in
// a view's visible set into a single depth atlas texture, and computes the
// cascade splits for directional (PSSM) shadows. Mirrors the teacher's
// engine/light shadow helpers (ComputeDirectionalLightVP, ortho,
// ComputeNormalBias) but generalizes them to multi-rect, multi-cascade
// packing instead of one fixed-size shadow map per scene.
package shadowatlas

import "github.com/oxy-go/renderer-core/rendererr"

// Rect is an axis-aligned sub-rectangle within the atlas texture, in texels.
type Rect struct {
	X, Y, W, H uint32
}

// shelf is one horizontal row of the shelf packer.
type shelf struct {
	y, height, cursorX uint32
}

// Packer is a shelf (row-based) rectangle packer sized to a square atlas.
// Shelves are never resized once started; a request taller than every
// existing shelf starts a new one at the bottom of the used area. This
// mirrors the simplicity the teacher's single-shadow-map design already
// assumed — adequate because every request here is a square
// resolution×resolution tile, so shelf fragmentation stays bounded.
type Packer struct {
	resolution uint32
	shelves    []shelf
	usedHeight uint32
}

// NewPacker creates an empty packer for a resolution×resolution atlas.
func NewPacker(resolution uint32) *Packer {
	return &Packer{resolution: resolution}
}

// Resolution returns the atlas's current square resolution.
func (p *Packer) Resolution() uint32 {
	return p.resolution
}

// Reset clears all packed rectangles without changing the resolution,
// called once per frame before re-packing the frame's shadow casters.
func (p *Packer) Reset() {
	p.shelves = p.shelves[:0]
	p.usedHeight = 0
}

// Grow doubles the atlas resolution, capped at maxResolution (the
// backend-reported max 2D texture dimension), and resets all packed state
// since existing rects no longer reflect a useful layout at the new size.
//
// Returns:
//   - bool: true if the resolution was doubled, false if already at the cap
func (p *Packer) Grow(maxResolution uint32) bool {
	next := p.resolution * 2
	if next > maxResolution {
		return false
	}
	p.resolution = next
	p.Reset()
	return true
}

// Pack requests a size×size square rectangle from the atlas. It tries each
// existing shelf (in order) whose height equals size and whose cursor has
// room; failing that, it starts a new shelf if room remains below the used
// area.
//
// Parameters:
//   - size: the width and height of the requested tile in texels
//
// Returns:
//   - Rect: the allocated rectangle
//   - error: rendererr.ResourceExhausted if the atlas has no room left
func (p *Packer) Pack(size uint32) (Rect, error) {
	for i := range p.shelves {
		s := &p.shelves[i]
		if s.height != size {
			continue
		}
		if s.cursorX+size > p.resolution {
			continue
		}
		r := Rect{X: s.cursorX, Y: s.y, W: size, H: size}
		s.cursorX += size
		return r, nil
	}

	if p.usedHeight+size > p.resolution {
		return Rect{}, rendererr.ResourceExhausted
	}
	p.shelves = append(p.shelves, shelf{y: p.usedHeight, height: size, cursorX: size})
	r := Rect{X: 0, Y: p.usedHeight, W: size, H: size}
	p.usedHeight += size
	return r, nil
}

// Overlaps reports whether two rectangles intersect, used by tests to
// assert the atlas's non-overlap invariant.
func (a Rect) Overlaps(b Rect) bool {
	if a.X+a.W <= b.X || b.X+b.W <= a.X {
		return false
	}
	if a.Y+a.H <= b.Y || b.Y+b.H <= a.Y {
		return false
	}
	return true
}

// Within reports whether the rectangle is fully contained in
// [0, resolution) on both axes.
func (a Rect) Within(resolution uint32) bool {
	return a.X+a.W <= resolution && a.Y+a.H <= resolution
}
