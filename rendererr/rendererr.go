// Package rendererr defines the sentinel error kinds returned by the
// renderer core. Callers should test for these with errors.Is rather than
// comparing strings. Only some of the renderer core's errors carry one of
// these values (e.g. StagingRing.Allocate and shadowatlas.Packer.Pack);
// the rest are plain fmt.Errorf errors that wrap none of them.
package rendererr

import "errors"

var (
	// ResourceExhausted is returned when a fixed-capacity GPU resource (a
	// bindless slot table, a staging ring, a shadow atlas shelf) has no room
	// left for the request.
	ResourceExhausted = errors.New("renderer: resource exhausted")

	// InvalidInput is returned when a caller-supplied value violates a
	// documented precondition (an out-of-range index, a malformed handle, a
	// zero-sized buffer).
	InvalidInput = errors.New("renderer: invalid input")

	// ShaderCompileError is returned when a shader template fails to
	// preprocess or the backend rejects the resulting WGSL module.
	ShaderCompileError = errors.New("renderer: shader compile error")

	// DeviceLost is returned when the underlying graphics device has been
	// lost or destroyed and the renderer can no longer submit work to it.
	DeviceLost = errors.New("renderer: device lost")

	// NotReady is returned when an operation is attempted before its
	// prerequisite setup has completed (drawing before a scene has been
	// finalized, reading a probe before its faces are captured).
	NotReady = errors.New("renderer: not ready")
)
