package common

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

func init() {
	image.RegisterFormat("bmp", "BM", bmp.Decode, bmp.DecodeConfig)
}

// cubeFaceDirection returns the world-space direction each (u, v) texel of
// the given cube face maps to, u and v spanning [-1, 1] across the face.
func cubeFaceDirection(face int, u, v float32) [3]float32 {
	switch face {
	case 0: // +X
		return [3]float32{1, -v, -u}
	case 1: // -X
		return [3]float32{-1, -v, u}
	case 2: // +Y
		return [3]float32{u, 1, v}
	case 3: // -Y
		return [3]float32{u, -1, -v}
	case 4: // +Z
		return [3]float32{u, -v, 1}
	default: // -Z
		return [3]float32{-u, -v, -1}
	}
}

// DecodePanoramaToCubeFaces decodes an equirectangular panorama (PNG, JPEG,
// or BMP) from path and reprojects it into 6 RGBA cube faces of the given
// resolution, in +X,-X,+Y,-Y,+Z,-Z order. Each face is resampled from the
// source panorama via its own direction-vector-to-equirect-UV lookup — true
// angular reprojection rather than a planar resize, since the panorama is a
// spherical (not planar) projection of the environment.
//
// Parameters:
//   - path: file path to the source equirectangular panorama image
//   - faceResolution: width and height in pixels of each output cube face
//
// Returns:
//   - [6][]byte: RGBA pixel data for each face, row-major, 4 bytes per pixel
//   - error: error if the file cannot be read or decoded
func DecodePanoramaToCubeFaces(path string, faceResolution int) ([6][]byte, error) {
	var faces [6][]byte

	data, err := os.ReadFile(path)
	if err != nil {
		return faces, fmt.Errorf("failed to read panorama %q: %w", path, err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return faces, fmt.Errorf("failed to decode panorama %q: %w", path, err)
	}

	// Pre-convert to RGBA via x/image/draw's quality scaler at source
	// resolution (a no-op resize) so per-texel sampling below is a uniform
	// image.RGBA read regardless of the source's native color model.
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.CatmullRom.Scale(rgba, bounds, img, bounds, draw.Over, nil)

	srcW, srcH := bounds.Dx(), bounds.Dy()

	for face := 0; face < 6; face++ {
		pixels := make([]byte, faceResolution*faceResolution*4)
		for y := 0; y < faceResolution; y++ {
			v := (2*(float32(y)+0.5)/float32(faceResolution) - 1)
			for x := 0; x < faceResolution; x++ {
				u := (2*(float32(x)+0.5)/float32(faceResolution) - 1)
				dir := cubeFaceDirection(face, u, v)
				sx, sy := equirectUV(dir, srcW, srcH)
				srcOff := rgba.PixOffset(sx, sy)
				dstOff := (y*faceResolution + x) * 4
				copy(pixels[dstOff:dstOff+4], rgba.Pix[srcOff:srcOff+4])
			}
		}
		faces[face] = pixels
	}

	return faces, nil
}

// equirectUV maps a world-space direction vector to an equirectangular
// panorama's pixel coordinates.
func equirectUV(dir [3]float32, width, height int) (int, int) {
	length := float32(math.Sqrt(float64(dir[0]*dir[0] + dir[1]*dir[1] + dir[2]*dir[2])))
	if length == 0 {
		return 0, 0
	}
	x, y, z := dir[0]/length, dir[1]/length, dir[2]/length

	azimuth := math.Atan2(float64(x), float64(-z))
	elevation := math.Asin(float64(clampFloat(y, -1, 1)))

	u := (azimuth/(2*math.Pi) + 0.5)
	v := (0.5 - elevation/math.Pi)

	sx := int(u * float64(width))
	sy := int(v * float64(height))
	if sx < 0 {
		sx = 0
	} else if sx >= width {
		sx = width - 1
	}
	if sy < 0 {
		sy = 0
	} else if sy >= height {
		sy = height - 1
	}
	return sx, sy
}

func clampFloat(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
