//go:build !nogpu

package native

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/accel/rtcore"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// waitTimeout bounds every fence wait.
const waitTimeout = 5 * time.Second

type buffer struct {
	desc rtcore.BufferDesc
	raw  hal.Buffer
}

// Device implements rtcore.Device and rtcore.CommandContext over a HAL
// device and queue.
//
// Thread Safety: Device is safe for concurrent use. Resource tables are
// protected by a RWMutex; submissions are serialized by submitMu.
type Device struct {
	mu       sync.RWMutex
	submitMu sync.Mutex

	instance hal.Instance // nil when the device is shared
	device   hal.Device
	queue    hal.Queue
	external bool
	name     string

	limits gputypes.Limits

	nextID   atomic.Uint64
	buffers  map[rtcore.BufferID]*buffer
	programs map[rtcore.ProgramID]*program

	closed bool
}

var (
	_ rtcore.Device         = (*Device)(nil)
	_ rtcore.CommandContext = (*Device)(nil)
)

// New wraps an existing HAL device and queue. The device is not destroyed
// by Close. If limits is nil, default limits are used.
func New(device hal.Device, queue hal.Queue, limits *gputypes.Limits) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	d := newDevice(device, queue, limits)
	d.external = true
	return d, nil
}

func newDevice(device hal.Device, queue hal.Queue, limits *gputypes.Limits) *Device {
	lim := gputypes.DefaultLimits()
	if limits != nil {
		lim = *limits
	}
	d := &Device{
		device:   device,
		queue:    queue,
		limits:   lim,
		buffers:  make(map[rtcore.BufferID]*buffer),
		programs: make(map[rtcore.ProgramID]*program),
	}
	// Start ID generation at 1 (0 is invalid)
	d.nextID.Store(1)
	return d
}

func (d *Device) newID() uint64 {
	return d.nextID.Add(1) - 1
}

// Name returns the adapter name, or "" for shared devices.
func (d *Device) Name() string { return d.name }

// Capabilities reports the device limits. RayTracing is always false.
func (d *Device) Capabilities() rtcore.Capabilities {
	return rtcore.Capabilities{
		RayTracing:                       false,
		MaxBufferSize:                    d.limits.MaxBufferSize,
		MaxComputeWorkgroupsPerDimension: d.limits.MaxComputeWorkgroupsPerDimension,
	}
}

// PrebuildInfo always fails with rtcore.ErrRayTracingUnsupported.
func (d *Device) PrebuildInfo(*rtcore.BuildInputs) (rtcore.PrebuildInfo, error) {
	return rtcore.PrebuildInfo{}, rtcore.ErrRayTracingUnsupported
}

// CreateAccelerationStructure always fails with
// rtcore.ErrRayTracingUnsupported.
func (d *Device) CreateAccelerationStructure(*rtcore.AccelerationStructureDesc) (rtcore.AccelerationStructureID, error) {
	return rtcore.InvalidID, rtcore.ErrRayTracingUnsupported
}

// DestroyAccelerationStructure is a no-op.
func (d *Device) DestroyAccelerationStructure(rtcore.AccelerationStructureID) {}

// BuildAccelerationStructure always fails with
// rtcore.ErrRayTracingUnsupported.
func (d *Device) BuildAccelerationStructure(*rtcore.BuildDesc) error {
	return rtcore.ErrRayTracingUnsupported
}

// UAVBarrier is a no-op: every dispatch completes before the next one is
// recorded.
func (d *Device) UAVBarrier(rtcore.BufferID) {}

// ResourceBarrier is a no-op.
func (d *Device) ResourceBarrier(rtcore.BufferID, rtcore.ResourceState) {}

// === Buffer Management ===

// CreateBuffer creates a GPU buffer. Sizes are rounded up to a multiple of
// four bytes as WebGPU requires.
func (d *Device) CreateBuffer(desc *rtcore.BufferDesc) (rtcore.BufferID, error) {
	if desc.Size == 0 || desc.Size > d.limits.MaxBufferSize {
		return rtcore.InvalidID, fmt.Errorf("%w: buffer %q of %d bytes", ErrInvalidSize, desc.Label, desc.Size)
	}

	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return rtcore.InvalidID, ErrClosed
	}

	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  (desc.Size + 3) &^ 3,
		Usage: convertBufferUsage(desc.Usage),
	})
	if err != nil {
		return rtcore.InvalidID, fmt.Errorf("native: create buffer %q: %w", desc.Label, err)
	}

	id := rtcore.BufferID(d.newID())
	d.mu.Lock()
	d.buffers[id] = &buffer{desc: *desc, raw: raw}
	d.mu.Unlock()
	return id, nil
}

// DestroyBuffer releases a GPU buffer.
func (d *Device) DestroyBuffer(id rtcore.BufferID) {
	d.mu.Lock()
	b, ok := d.buffers[id]
	if ok {
		delete(d.buffers, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyBuffer(b.raw)
	}
}

// BufferDesc returns the descriptor a buffer was created with.
func (d *Device) BufferDesc(id rtcore.BufferID) (rtcore.BufferDesc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.buffers[id]
	if !ok {
		return rtcore.BufferDesc{}, false
	}
	return b.desc, true
}

// BufferAddress returns NullAddress. WebGPU has no device addresses.
func (d *Device) BufferAddress(rtcore.BufferID) rtcore.DeviceAddress {
	return rtcore.NullAddress
}

func (d *Device) lookup(id rtcore.BufferID) (*buffer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", rtcore.ErrUnknownBuffer, id)
	}
	return b, nil
}

// WriteBuffer uploads data through the queue.
func (d *Device) WriteBuffer(id rtcore.BufferID, offset uint64, data []byte) error {
	b, err := d.lookup(id)
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("%w: write of %d bytes at %d into %q (%d bytes)", ErrInvalidSize, len(data), offset, b.desc.Label, b.desc.Size)
	}
	if len(data) == 0 {
		return nil
	}
	d.queue.WriteBuffer(b.raw, offset, data)
	return nil
}

// ReadBuffer copies a range into a staging buffer, waits for the GPU and
// returns the bytes.
func (d *Device) ReadBuffer(id rtcore.BufferID, offset, size uint64) ([]byte, error) {
	b, err := d.lookup(id)
	if err != nil {
		return nil, err
	}
	if size == 0 || offset+size > b.desc.Size {
		return nil, fmt.Errorf("%w: read of %d bytes at %d from %q (%d bytes)", ErrInvalidSize, size, offset, b.desc.Label, b.desc.Size)
	}

	// Copies must be 4-byte aligned.
	start := offset &^ 3
	end := (offset + size + 3) &^ 3
	span := end - start

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "accel_staging",
		Size:  span,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	err = d.submit("accel_readback", func(encoder hal.CommandEncoder) {
		encoder.CopyBufferToBuffer(b.raw, staging, []hal.BufferCopy{
			{SrcOffset: start, DstOffset: 0, Size: span},
		})
	})
	if err != nil {
		return nil, err
	}

	readback := make([]byte, span)
	if err := d.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("native: readback: %w", err)
	}
	return readback[offset-start : offset-start+size], nil
}

// submit encodes one command buffer, submits it and waits for completion.
func (d *Device) submit(label string, record func(hal.CommandEncoder)) error {
	d.submitMu.Lock()
	defer d.submitMu.Unlock()

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + "_encoder"})
	if err != nil {
		return fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("native: begin encoding: %w", err)
	}
	record(encoder)
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("native: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("native: submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, waitTimeout)
	if err != nil {
		return fmt.Errorf("native: wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w after %v (%s)", ErrGPUTimeout, waitTimeout, label)
	}
	return nil
}

// Close releases every resource. Owned devices and instances are
// destroyed; shared ones are left to their provider.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	programs := d.programs
	buffers := d.buffers
	d.programs = make(map[rtcore.ProgramID]*program)
	d.buffers = make(map[rtcore.BufferID]*buffer)
	d.mu.Unlock()

	for _, p := range programs {
		p.destroy(d.device)
	}
	for _, b := range buffers {
		d.device.DestroyBuffer(b.raw)
	}
	if len(buffers) > 0 {
		slogger().Warn("native: buffers still live at close", "count", len(buffers))
	}

	if !d.external {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
}
