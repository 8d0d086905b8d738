package accel

import "errors"

// Precondition errors. They are returned before any command is recorded
// and leave the Structure unchanged.
var (
	// ErrLengthMismatch is returned when count and address slices differ
	// in length, or when fewer counts than groups are supplied.
	ErrLengthMismatch = errors.New("accel: count and group lengths do not match")

	// ErrNoGroups is returned when constructing a Structure without groups.
	ErrNoGroups = errors.New("accel: at least one geometry group is required")

	// ErrInvalidStride is returned for AABB strides other than rtcore.AABBSize.
	ErrInvalidStride = errors.New("accel: unsupported AABB stride")

	// ErrInvalidMode is returned for build or update modes outside the
	// declared constants.
	ErrInvalidMode = errors.New("accel: invalid build or update mode")

	// ErrInvalidPrebuildSize is returned when the device reports a zero
	// result size for a non-empty group.
	ErrInvalidPrebuildSize = errors.New("accel: device reported zero result size")

	// ErrCountExceedsCapacity is returned when a per-frame count is larger
	// than the count the group's buffers were sized for.
	ErrCountExceedsCapacity = errors.New("accel: count exceeds group capacity")

	// ErrInstanceIndex is returned for instance indices outside the table.
	ErrInstanceIndex = errors.New("accel: instance index out of range")

	// ErrInvalidClearTarget is returned for clear targets that cannot hold
	// AABB records.
	ErrInvalidClearTarget = errors.New("accel: invalid AABB clear target")
)

// Lifecycle errors.
var (
	// ErrNotBuilt is returned when updating, binding or clearing through a
	// Structure that has no built generation (closed, or construction
	// failed).
	ErrNotBuilt = errors.New("accel: acceleration structure not built")

	// ErrTopLevelBeforeBottomLevel is returned when the top level is built
	// before every bottom-level entry exists.
	ErrTopLevelBeforeBottomLevel = errors.New("accel: top level built before bottom level")

	// ErrBuildFailed wraps device errors reported by a build or update
	// dispatch.
	ErrBuildFailed = errors.New("accel: build dispatch failed")

	// ErrGenerationFailed is returned by every update after a failed build
	// until the Structure is recreated.
	ErrGenerationFailed = errors.New("accel: generation failed, Recreate required")
)
