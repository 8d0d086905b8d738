package accel

import (
	"fmt"

	"github.com/gogpu/accel/rtcore"
)

// scratchBuffer is transient build memory shared by consecutive dispatches.
// Dispatches sharing it are serialized by UAV barriers.
type scratchBuffer struct {
	id      rtcore.BufferID
	size    uint64
	address rtcore.DeviceAddress
}

// newScratchBuffer allocates size bytes of scratch memory.
func newScratchBuffer(dev rtcore.Device, label string, size uint64) (scratchBuffer, error) {
	id, err := dev.CreateBuffer(&rtcore.BufferDesc{
		Label: label,
		Size:  size,
		Usage: rtcore.BufferUsageStorage,
	})
	if err != nil {
		return scratchBuffer{}, fmt.Errorf("accel: create %s (%d bytes): %w", label, size, err)
	}
	return scratchBuffer{id: id, size: size, address: dev.BufferAddress(id)}, nil
}

// fits reports whether a dispatch needing need bytes may use the buffer.
func (s scratchBuffer) fits(need uint64) bool {
	return s.id != rtcore.InvalidID && need <= s.size
}

// release frees the buffer. Safe to call on a released buffer.
func (s *scratchBuffer) release(dev rtcore.Device) {
	if s.id != rtcore.InvalidID {
		dev.DestroyBuffer(s.id)
	}
	*s = scratchBuffer{}
}
