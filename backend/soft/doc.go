// Package soft provides a reference software implementation of the rtcore
// device contract.
//
// Buffers live in host memory inside a simulated device address space.
// Commands execute immediately in recording order and are validated the
// way a strict driver layer would:
//
//   - a build or dispatch touching a buffer still carrying an unordered
//     write from an earlier command, without a UAV barrier in between,
//     fails with [ErrHazard]
//   - a top-level build reading an instance buffer that was not
//     transitioned to rtcore.ResourceStateNonPixelShader after its last
//     host upload fails with [ErrHazard]
//   - result and scratch ranges smaller than the prebuild requirement fail
//     with [ErrInsufficientMemory]
//   - in-place updates of structures never built, or built without
//     rtcore.BuildFlagAllowUpdate, fail with [ErrInvalidUpdate]
//
// Every recorded command is appended to a log that tests inspect through
// [Device.Commands] and [Device.Builds].
//
// Compute programs cannot be compiled on the host; the device runs a
// built-in Go kernel selected by the program's entry point. Only
// rtcore.ClearAABBEntryPoint is available. With [WithWorkers] each
// workgroup of a dispatch runs as one task on a worker pool.
package soft
