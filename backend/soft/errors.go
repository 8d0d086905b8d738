package soft

import "errors"

// Device errors.
var (
	// ErrHazard is returned when a command would observe an unsynchronized
	// write or a buffer in the wrong state.
	ErrHazard = errors.New("soft: resource hazard")

	// ErrInsufficientMemory is returned when a result or scratch range is
	// smaller than the prebuild requirement.
	ErrInsufficientMemory = errors.New("soft: insufficient memory for build")

	// ErrInvalidUpdate is returned for in-place updates against a source
	// that cannot be updated.
	ErrInvalidUpdate = errors.New("soft: invalid in-place update")

	// ErrInvalidAddress is returned when a device address does not resolve
	// to a live buffer range.
	ErrInvalidAddress = errors.New("soft: invalid device address")

	// ErrInvalidInstance is returned when an instance record references
	// anything but a built bottom-level structure.
	ErrInvalidInstance = errors.New("soft: invalid instance record")

	// ErrInvalidSize is returned for zero or oversized buffers.
	ErrInvalidSize = errors.New("soft: invalid buffer size")

	// ErrUnknownKernel is returned for programs without a built-in kernel.
	ErrUnknownKernel = errors.New("soft: no built-in kernel for entry point")

	// ErrNotBuilt is returned when binding a structure that was never built.
	ErrNotBuilt = errors.New("soft: acceleration structure not built")
)
