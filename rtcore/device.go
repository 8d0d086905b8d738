package rtcore

import "errors"

// Device errors.
var (
	// ErrRayTracingUnsupported is returned by devices without acceleration
	// structure support.
	ErrRayTracingUnsupported = errors.New("rtcore: ray tracing is not supported by the device")

	// ErrUnknownBuffer is returned when an operation references a buffer
	// the device does not own.
	ErrUnknownBuffer = errors.New("rtcore: unknown buffer")

	// ErrUnknownAccelerationStructure is returned for unknown API objects.
	ErrUnknownAccelerationStructure = errors.New("rtcore: unknown acceleration structure")

	// ErrUnknownProgram is returned for unknown compute programs.
	ErrUnknownProgram = errors.New("rtcore: unknown compute program")
)

// Device abstracts over ray tracing capable GPU backends.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Destroying a resource while in use is undefined behavior
//   - IDs become invalid after destruction and must not be reused
type Device interface {
	// === Capabilities ===

	// Capabilities reports the device limits.
	Capabilities() Capabilities

	// === Sizing ===

	// PrebuildInfo returns the memory requirements for building the
	// given inputs. It has no side effects.
	PrebuildInfo(inputs *BuildInputs) (PrebuildInfo, error)

	// === Buffer Management ===

	// CreateBuffer creates a GPU buffer.
	CreateBuffer(desc *BufferDesc) (BufferID, error)

	// DestroyBuffer releases a GPU buffer.
	DestroyBuffer(id BufferID)

	// BufferDesc returns the descriptor a buffer was created with.
	BufferDesc(id BufferID) (BufferDesc, bool)

	// BufferAddress returns the device address of the first byte of a
	// buffer, or NullAddress if the device has no address space.
	BufferAddress(id BufferID) DeviceAddress

	// WriteBuffer uploads data through the host-visible path.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// ReadBuffer reads data back from a buffer.
	// This may cause a GPU-CPU synchronization stall.
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	// === Acceleration Structures ===

	// CreateAccelerationStructure creates an API object over a result
	// buffer range.
	CreateAccelerationStructure(desc *AccelerationStructureDesc) (AccelerationStructureID, error)

	// DestroyAccelerationStructure releases an API object. The result
	// buffer is not affected.
	DestroyAccelerationStructure(id AccelerationStructureID)

	// === Compute ===

	// CreateComputeProgram compiles a compute program.
	CreateComputeProgram(desc *ComputeProgramDesc) (ProgramID, error)

	// DestroyComputeProgram releases a compute program.
	DestroyComputeProgram(id ProgramID)
}

// CommandContext records commands into a single command stream.
//
// Commands execute in recording order. A CommandContext is NOT safe for
// concurrent use.
type CommandContext interface {
	// UAVBarrier orders all prior unordered-access writes to the buffer
	// before any later access.
	UAVBarrier(buffer BufferID)

	// ResourceBarrier transitions a buffer into the given state.
	ResourceBarrier(buffer BufferID, state ResourceState)

	// BuildAccelerationStructure records a build or in-place update.
	BuildAccelerationStructure(desc *BuildDesc) error

	// Dispatch records a compute dispatch of groups workgroups.
	Dispatch(program ProgramID, bindings []Binding, groups [3]uint32) error
}

// ShaderScope is the root variable scope of a consuming program.
type ShaderScope interface {
	// SetAccelerationStructure binds an acceleration structure to the
	// named variable.
	SetAccelerationStructure(name string, as AccelerationStructureID) error
}
