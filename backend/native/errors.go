//go:build !nogpu

package native

import "errors"

// Package errors for the native backend.
var (
	// ErrNoGPU is returned when no GPU adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrNilDevice is returned when a device or queue is missing.
	ErrNilDevice = errors.New("native: HAL device and queue are required")

	// ErrNoHAL is returned when a device provider does not expose HAL types.
	ErrNoHAL = errors.New("native: provider does not expose HAL types")

	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("native: device closed")

	// ErrInvalidSize is returned for zero-sized or out-of-range buffer
	// operations.
	ErrInvalidSize = errors.New("native: invalid size")

	// ErrEmptyShader is returned when a compute program has no source.
	ErrEmptyShader = errors.New("native: empty shader source")

	// ErrGPUTimeout is returned when a submission does not complete.
	ErrGPUTimeout = errors.New("native: GPU wait timed out")
)
