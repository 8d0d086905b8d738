// Package accel manages a two-level acceleration structure over procedural
// (AABB) geometry groups.
//
// # Overview
//
// A Structure owns one bottom-level acceleration structure (BLAS) per
// geometry group and a single top-level acceleration structure (TLAS) that
// instances every BLAS with an identity transform. Groups are arrays of
// axis-aligned boxes written by the caller on the GPU; the number of live
// boxes per group changes from frame to frame.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/accel"
//	    "github.com/gogpu/accel/backend/soft"
//	)
//
//	dev := soft.New()
//
//	// Construction allocates every buffer and performs the first build.
//	s, err := accel.New(dev, dev, []uint64{1024, 1024}, []rtcore.DeviceAddress{a0, a1},
//	    accel.WithBuildMode(accel.BuildModeFastBuild),
//	    accel.WithUpdateMode(accel.UpdateModeTLASOnly),
//	)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	// Each frame: supply the live box count of every group.
//	if err := s.UpdateCounts(dev, []uint64{812, 97}); err != nil {
//	    return err // the generation is unusable, call Recreate
//	}
//	s.Bind(scope)
//
// # Build Scheduling
//
// Every dispatch is either a full rebuild into the existing buffers or an
// in-place update. An update is only requested when the structure was
// built before and the [UpdateMode] allows updates for that level; the
// very first build of a generation is always a full build. Groups whose
// count does not exceed the minimum update activity
// ([Structure.SetMinUpdateActivity]) are skipped for that frame.
//
// Buffers are sized once per generation from the construction counts.
// [Structure.Recreate] tears everything down and starts a new generation;
// it is the only way to change the number of groups or their capacity.
//
// # Errors
//
// Device build failures are fatal to the current generation: every later
// update returns [ErrGenerationFailed] until Recreate succeeds.
// Precondition violations (mismatched lengths, oversized counts) are
// returned as errors before any command is recorded.
//
// # Thread Safety
//
// A Structure is not safe for concurrent use, except for
// SetMinUpdateActivity. Callers serialize Update, Recreate and Close.
package accel
