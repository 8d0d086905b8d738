package soft

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gogpu/accel/internal/parallel"
	"github.com/gogpu/accel/rtcore"
)

// baseAddress is the first address handed out; zero stays rtcore.NullAddress.
const baseAddress = 0x1000_0000

// addressAlignment is the placement alignment of every buffer.
const addressAlignment = 256

// Device implements rtcore.Device and rtcore.CommandContext on host memory.
//
// Thread Safety: Device is safe for concurrent use; commands recorded from
// several goroutines are serialized in lock order.
type Device struct {
	mu sync.Mutex

	caps     rtcore.Capabilities
	prebuild PrebuildFunc
	hook     func(desc *rtcore.BuildDesc) error

	// ID generation
	nextID   atomic.Uint64
	nextAddr uint64

	buffers    map[rtcore.BufferID]*buffer
	structures map[rtcore.AccelerationStructureID]*structure
	programs   map[rtcore.ProgramID]*program

	commands []Command

	// pool runs kernels when set; nil runs them on the caller.
	pool *parallel.WorkerPool
}

var (
	_ rtcore.Device         = (*Device)(nil)
	_ rtcore.CommandContext = (*Device)(nil)
)

type buffer struct {
	desc rtcore.BufferDesc
	addr rtcore.DeviceAddress
	data []byte

	state rtcore.ResourceState

	// pendingWrite marks an unordered write not yet ordered by a UAV barrier.
	pendingWrite bool
}

type structure struct {
	desc rtcore.AccelerationStructureDesc

	built       bool
	allowUpdate bool
	builds      int
	updates     int

	primitiveCount uint64
	instanceCount  uint32
	bounds         AABB
}

type program struct {
	desc   rtcore.ComputeProgramDesc
	kernel kernelFunc
}

// Option configures a Device.
type Option func(*Device)

// WithoutRayTracing makes the device report no acceleration structure
// support, as a compute-only adapter would.
func WithoutRayTracing() Option {
	return func(d *Device) {
		d.caps.RayTracing = false
	}
}

// WithPrebuild replaces the sizing model.
func WithPrebuild(f PrebuildFunc) Option {
	return func(d *Device) {
		d.prebuild = f
	}
}

// WithBuildHook installs a function called before every build. A non-nil
// return value fails the build as a device-reported error.
func WithBuildHook(f func(desc *rtcore.BuildDesc) error) Option {
	return func(d *Device) {
		d.hook = f
	}
}

// WithWorkers runs compute workgroups on n goroutines. If n is 0 or
// negative, GOMAXPROCS is used. Close stops the workers.
func WithWorkers(n int) Option {
	return func(d *Device) {
		d.pool = parallel.NewWorkerPool(n)
	}
}

// WithMaxBufferSize sets the largest buffer the device accepts.
func WithMaxBufferSize(n uint64) Option {
	return func(d *Device) {
		d.caps.MaxBufferSize = n
	}
}

// New creates a software device.
func New(opts ...Option) *Device {
	d := &Device{
		caps: rtcore.Capabilities{
			RayTracing:                       true,
			MaxBufferSize:                    1 << 30,
			MaxComputeWorkgroupsPerDimension: 65535,
		},
		prebuild:   DefaultPrebuild,
		nextAddr:   baseAddress,
		buffers:    make(map[rtcore.BufferID]*buffer),
		structures: make(map[rtcore.AccelerationStructureID]*structure),
		programs:   make(map[rtcore.ProgramID]*program),
	}
	for _, opt := range opts {
		opt(d)
	}

	// Start ID generation at 1 (0 is invalid)
	d.nextID.Store(1)
	return d
}

// Close releases every resource and clears the command log. Devices hold
// host memory only, so Close is optional.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.buffers)
	clear(d.structures)
	clear(d.programs)
	d.commands = nil
	if d.pool != nil {
		d.pool.Close()
	}
}

// newID generates a unique resource ID.
func (d *Device) newID() uint64 {
	return d.nextID.Add(1) - 1
}

// === Capabilities ===

// Capabilities reports the device limits.
func (d *Device) Capabilities() rtcore.Capabilities {
	return d.caps
}

// PrebuildInfo returns the sizing model's requirements for inputs.
func (d *Device) PrebuildInfo(inputs *rtcore.BuildInputs) (rtcore.PrebuildInfo, error) {
	if !d.caps.RayTracing {
		return rtcore.PrebuildInfo{}, rtcore.ErrRayTracingUnsupported
	}
	if inputs == nil {
		return rtcore.PrebuildInfo{}, fmt.Errorf("soft: nil build inputs")
	}
	return d.prebuild(inputs), nil
}

// === Buffer Management ===

// CreateBuffer allocates a zeroed buffer at the next aligned address.
func (d *Device) CreateBuffer(desc *rtcore.BufferDesc) (rtcore.BufferID, error) {
	if desc == nil {
		return rtcore.InvalidID, fmt.Errorf("soft: nil buffer descriptor")
	}
	if desc.Size == 0 || desc.Size > d.caps.MaxBufferSize {
		return rtcore.InvalidID, fmt.Errorf("%w: %q size %d", ErrInvalidSize, desc.Label, desc.Size)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id := rtcore.BufferID(d.newID())
	addr := d.nextAddr
	d.nextAddr += alignUp(desc.Size, addressAlignment)
	d.buffers[id] = &buffer{
		desc: *desc,
		addr: rtcore.DeviceAddress(addr),
		data: make([]byte, desc.Size),
	}
	return id, nil
}

// DestroyBuffer releases a buffer. Its address range is never reused.
func (d *Device) DestroyBuffer(id rtcore.BufferID) {
	d.mu.Lock()
	delete(d.buffers, id)
	d.mu.Unlock()
}

// BufferDesc returns the descriptor of a live buffer.
func (d *Device) BufferDesc(id rtcore.BufferID) (rtcore.BufferDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return rtcore.BufferDesc{}, false
	}
	return b.desc, true
}

// BufferAddress returns the device address of a live buffer.
func (d *Device) BufferAddress(id rtcore.BufferID) rtcore.DeviceAddress {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return rtcore.NullAddress
	}
	return b.addr
}

// WriteBuffer copies data through the host-visible upload path. The buffer
// is left in rtcore.ResourceStateCopyDest.
func (d *Device) WriteBuffer(id rtcore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: %d", rtcore.ErrUnknownBuffer, id)
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("soft: write [%d, %d) exceeds %q size %d", offset, offset+uint64(len(data)), b.desc.Label, b.desc.Size)
	}
	copy(b.data[offset:], data)
	b.state = rtcore.ResourceStateCopyDest
	return nil
}

// ReadBuffer returns a copy of a buffer range.
func (d *Device) ReadBuffer(id rtcore.BufferID, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", rtcore.ErrUnknownBuffer, id)
	}
	if offset+size > b.desc.Size {
		return nil, fmt.Errorf("soft: read [%d, %d) exceeds %q size %d", offset, offset+size, b.desc.Label, b.desc.Size)
	}
	out := make([]byte, size)
	copy(out, b.data[offset:offset+size])
	return out, nil
}

// AllocatedBytes returns the total size of all live buffers.
func (d *Device) AllocatedBytes() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n uint64
	for _, b := range d.buffers {
		n += b.desc.Size
	}
	return n
}

// LiveBuffers returns the labels of all live buffers, sorted.
func (d *Device) LiveBuffers() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	labels := make([]string, 0, len(d.buffers))
	for _, b := range d.buffers {
		labels = append(labels, b.desc.Label)
	}
	sort.Strings(labels)
	return labels
}

// resolve maps an address to the buffer containing it. Must hold d.mu.
func (d *Device) resolve(addr rtcore.DeviceAddress) (*buffer, uint64, bool) {
	for _, b := range d.buffers {
		if addr >= b.addr && uint64(addr-b.addr) < b.desc.Size {
			return b, uint64(addr - b.addr), true
		}
	}
	return nil, 0, false
}

// === Acceleration Structures ===

// CreateAccelerationStructure binds an API object to a result range.
func (d *Device) CreateAccelerationStructure(desc *rtcore.AccelerationStructureDesc) (rtcore.AccelerationStructureID, error) {
	if !d.caps.RayTracing {
		return rtcore.InvalidID, rtcore.ErrRayTracingUnsupported
	}
	if desc == nil {
		return rtcore.InvalidID, fmt.Errorf("soft: nil acceleration structure descriptor")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[desc.Buffer]
	if !ok {
		return rtcore.InvalidID, fmt.Errorf("%w: %d", rtcore.ErrUnknownBuffer, desc.Buffer)
	}
	if desc.Offset+desc.Size > b.desc.Size {
		return rtcore.InvalidID, fmt.Errorf("%w: range [%d, %d) of %q", ErrInvalidAddress, desc.Offset, desc.Offset+desc.Size, b.desc.Label)
	}
	if b.desc.Usage&rtcore.BufferUsageAccelerationStructure == 0 {
		return rtcore.InvalidID, fmt.Errorf("soft: buffer %q lacks acceleration structure usage", b.desc.Label)
	}

	id := rtcore.AccelerationStructureID(d.newID())
	d.structures[id] = &structure{desc: *desc}
	return id, nil
}

// DestroyAccelerationStructure releases an API object.
func (d *Device) DestroyAccelerationStructure(id rtcore.AccelerationStructureID) {
	d.mu.Lock()
	delete(d.structures, id)
	d.mu.Unlock()
}

// StructureInfo describes the state of an acceleration structure.
type StructureInfo struct {
	Kind           rtcore.Kind
	Built          bool
	AllowUpdate    bool
	Builds         int
	Updates        int
	PrimitiveCount uint64
	InstanceCount  uint32
	Bounds         AABB
	Address        rtcore.DeviceAddress
}

// StructureInfo returns the state of a live acceleration structure.
func (d *Device) StructureInfo(id rtcore.AccelerationStructureID) (StructureInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.structures[id]
	if !ok {
		return StructureInfo{}, false
	}
	info := StructureInfo{
		Kind:           s.desc.Kind,
		Built:          s.built,
		AllowUpdate:    s.allowUpdate,
		Builds:         s.builds,
		Updates:        s.updates,
		PrimitiveCount: s.primitiveCount,
		InstanceCount:  s.instanceCount,
		Bounds:         s.bounds,
	}
	if b, ok := d.buffers[s.desc.Buffer]; ok {
		info.Address = b.addr + rtcore.DeviceAddress(s.desc.Offset)
	}
	return info, true
}

// LiveStructures returns the number of live acceleration structures.
func (d *Device) LiveStructures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.structures)
}

// structureAt finds the structure whose result range starts at addr.
// Must hold d.mu.
func (d *Device) structureAt(addr rtcore.DeviceAddress) (*structure, bool) {
	for _, s := range d.structures {
		b, ok := d.buffers[s.desc.Buffer]
		if !ok {
			continue
		}
		if b.addr+rtcore.DeviceAddress(s.desc.Offset) == addr {
			return s, true
		}
	}
	return nil, false
}

// === Compute ===

// CreateComputeProgram selects the built-in kernel for desc.EntryPoint.
func (d *Device) CreateComputeProgram(desc *rtcore.ComputeProgramDesc) (rtcore.ProgramID, error) {
	if desc == nil {
		return rtcore.InvalidID, fmt.Errorf("soft: nil program descriptor")
	}
	kernel, ok := kernels[desc.EntryPoint]
	if !ok {
		return rtcore.InvalidID, fmt.Errorf("%w: %q", ErrUnknownKernel, desc.EntryPoint)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	id := rtcore.ProgramID(d.newID())
	d.programs[id] = &program{desc: *desc, kernel: kernel}
	return id, nil
}

// DestroyComputeProgram releases a program.
func (d *Device) DestroyComputeProgram(id rtcore.ProgramID) {
	d.mu.Lock()
	delete(d.programs, id)
	d.mu.Unlock()
}

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) / a * a
}
