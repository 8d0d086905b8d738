package rtcore

import "fmt"

// Resource IDs
//
// These opaque IDs represent GPU resources. Each device implementation
// maintains a mapping between IDs and actual backend resources.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// AccelerationStructureID is an opaque handle to an acceleration structure
// API object bound to a result buffer range.
type AccelerationStructureID uint64

// ProgramID is an opaque handle to a compute program.
type ProgramID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// DeviceAddress is a GPU virtual address of a buffer byte.
type DeviceAddress uint64

// NullAddress is the address of no buffer.
const NullAddress DeviceAddress = 0

// AABBSize is the byte size of one procedural AABB record
// (min.xyz, max.xyz as float32).
const AABBSize = 24

// InstanceDescSize is the byte size of one serialized instance record.
const InstanceDescSize = 64

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageMapRead indicates the buffer can be mapped for reading.
	BufferUsageMapRead BufferUsage = 1 << 0

	// BufferUsageMapWrite indicates the buffer is host visible for writing.
	BufferUsageMapWrite BufferUsage = 1 << 1

	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 2

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 3

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 4

	// BufferUsageStorage indicates the buffer can be bound for unordered access.
	BufferUsageStorage BufferUsage = 1 << 5

	// BufferUsageAccelerationStructure indicates the buffer holds
	// acceleration structure result data.
	BufferUsageAccelerationStructure BufferUsage = 1 << 6

	// BufferUsageBuildInput indicates the buffer is read by acceleration
	// structure builds (AABBs, instance records).
	BufferUsageBuildInput BufferUsage = 1 << 7
)

// BufferDesc describes a buffer.
type BufferDesc struct {
	// Label is an optional debug label.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage is the set of allowed usages.
	Usage BufferUsage

	// ElementSize is the structure stride for element-typed buffers.
	// Zero means a raw byte buffer.
	ElementSize uint32
}

// ElementCount returns the native element count of an element-typed
// buffer, or zero for raw buffers.
func (d BufferDesc) ElementCount() uint64 {
	if d.ElementSize == 0 {
		return 0
	}
	return d.Size / uint64(d.ElementSize)
}

// ResourceState is the usage state a buffer is transitioned into.
type ResourceState uint32

// Resource states.
const (
	ResourceStateCommon ResourceState = iota
	ResourceStateCopyDest
	ResourceStateUnorderedAccess
	ResourceStateNonPixelShader
	ResourceStateAccelerationStructure
	ResourceStateGenericRead
)

// String returns the state name.
func (s ResourceState) String() string {
	switch s {
	case ResourceStateCommon:
		return "Common"
	case ResourceStateCopyDest:
		return "CopyDest"
	case ResourceStateUnorderedAccess:
		return "UnorderedAccess"
	case ResourceStateNonPixelShader:
		return "NonPixelShader"
	case ResourceStateAccelerationStructure:
		return "AccelerationStructure"
	case ResourceStateGenericRead:
		return "GenericRead"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(s))
	}
}

// Kind selects the level of an acceleration structure.
type Kind uint32

// Acceleration structure kinds.
const (
	KindBottomLevel Kind = iota
	KindTopLevel
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBottomLevel:
		return "BottomLevel"
	case KindTopLevel:
		return "TopLevel"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(k))
	}
}

// BuildFlags is a bitmask of acceleration structure build flags.
type BuildFlags uint32

// Build flags.
const (
	BuildFlagNone            BuildFlags = 0
	BuildFlagAllowUpdate     BuildFlags = 1 << 0
	BuildFlagAllowCompaction BuildFlags = 1 << 1
	BuildFlagPreferFastTrace BuildFlags = 1 << 2
	BuildFlagPreferFastBuild BuildFlags = 1 << 3
	BuildFlagMinimizeMemory  BuildFlags = 1 << 4
	BuildFlagPerformUpdate   BuildFlags = 1 << 5
)

// Has reports whether all bits of f are set.
func (b BuildFlags) Has(f BuildFlags) bool { return b&f == f }

// GeometryType selects the primitive type of a geometry descriptor.
type GeometryType uint32

// Geometry types.
const (
	GeometryTypeTriangles GeometryType = iota
	GeometryTypeProceduralAABBs
)

// GeometryFlags is a bitmask of per-geometry flags.
type GeometryFlags uint32

// Geometry flags.
const (
	GeometryFlagNone   GeometryFlags = 0
	GeometryFlagOpaque GeometryFlags = 1 << 0

	// GeometryFlagNoDuplicateAnyHitInvocation guarantees the any-hit
	// shader runs at most once per primitive per ray.
	GeometryFlagNoDuplicateAnyHitInvocation GeometryFlags = 1 << 1
)

// ProceduralAABBs points at an array of AABB records.
type ProceduralAABBs struct {
	Count  uint64
	Data   DeviceAddress
	Stride uint64
}

// GeometryDesc describes one geometry of a bottom-level build.
type GeometryDesc struct {
	Type  GeometryType
	Flags GeometryFlags
	AABBs ProceduralAABBs
}

// BuildInputs describes the inputs of a build or a prebuild query.
type BuildInputs struct {
	Kind  Kind
	Flags BuildFlags

	// DescCount is the geometry count (bottom level) or the instance
	// count (top level).
	DescCount uint32

	// Geometries holds DescCount descriptors for bottom-level builds.
	Geometries []GeometryDesc

	// InstanceDescs is the address of DescCount serialized instance
	// records for top-level builds.
	InstanceDescs DeviceAddress
}

// PrebuildInfo reports the memory requirements of a build.
type PrebuildInfo struct {
	ResultDataMaxSize     uint64
	ScratchDataSize       uint64
	UpdateScratchDataSize uint64
}

// AccelerationStructureDesc binds an acceleration structure API object
// to a range of a result buffer.
type AccelerationStructureDesc struct {
	Kind   Kind
	Buffer BufferID
	Offset uint64
	Size   uint64
}

// BuildDesc describes one build dispatch.
type BuildDesc struct {
	Inputs BuildInputs

	// Source is the structure updated in place when Inputs.Flags has
	// BuildFlagPerformUpdate. Ignored otherwise.
	Source AccelerationStructureID

	Dest        AccelerationStructureID
	ScratchData DeviceAddress
}

// BindingType is the type of a compute program binding.
type BindingType uint32

// Binding types.
const (
	BindingTypeUniformBuffer BindingType = iota + 1
	BindingTypeStorageBuffer
	BindingTypeReadOnlyStorageBuffer
)

// BindingLayout describes one binding slot of a compute program.
type BindingLayout struct {
	Slot uint32
	Type BindingType
}

// ComputeProgramDesc describes a compute program.
type ComputeProgramDesc struct {
	// Label is an optional debug label.
	Label string

	// Source is the WGSL source of the program.
	Source string

	// EntryPoint names the kernel function. Devices without a shader
	// compiler select their built-in kernel by this name.
	EntryPoint string

	// WorkgroupSize is the X workgroup size declared by the kernel.
	WorkgroupSize uint32

	// Bindings is the bind group 0 layout.
	Bindings []BindingLayout
}

// Binding binds a buffer range to a program slot for one dispatch.
type Binding struct {
	Slot   uint32
	Buffer BufferID
	Offset uint64

	// Size of the bound range; 0 binds the rest of the buffer.
	Size uint64
}

// Capabilities describes device limits relevant to acceleration structures.
type Capabilities struct {
	// RayTracing indicates acceleration structure build support.
	RayTracing bool

	// MaxBufferSize is the maximum buffer size in bytes.
	MaxBufferSize uint64

	// MaxComputeWorkgroupsPerDimension limits one dispatch dimension.
	MaxComputeWorkgroupsPerDimension uint32
}
