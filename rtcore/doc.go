// Package rtcore provides backend-neutral ray tracing device abstractions
// used by the accel acceleration structure manager.
//
// This package defines the [Device], [CommandContext] and [ShaderScope]
// interfaces, which abstract over the GPU backends the manager can drive:
//   - backend/soft (reference software device, used by tests and tools)
//   - backend/native (gogpu/wgpu HAL device; compute only)
//
// # Architecture
//
//	               +-----------------+
//	               |      accel      |
//	               |   (Structure)   |
//	               +--------+--------+
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|  soft device    |          |  native device  |
//	| (host memory)   |          |  (hal.Device)   |
//	+-----------------+          +--------+--------+
//	                                      |
//	                             +--------v--------+
//	                             |   gogpu/wgpu    |
//	                             +-----------------+
//
// # Resource Management
//
// GPU resources are managed via opaque IDs ([BufferID],
// [AccelerationStructureID], [ProgramID]). Buffers additionally expose a
// [DeviceAddress] which build inputs and instance records embed. Devices
// are responsible for tracking the mapping between IDs and backend objects.
//
// # Command Recording
//
// Build and dispatch commands are recorded onto a [CommandContext] in
// program order. Synchronization is explicit: callers issue UAV barriers
// and state transitions, devices never insert them implicitly.
package rtcore
