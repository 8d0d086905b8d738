package accel

import (
	"fmt"

	"github.com/gogpu/accel/rtcore"
)

// blasHandle identifies a bottom-level entry by its arena slot.
type blasHandle uint32

// bottomLevelEntry is the per-group state of the bottom level.
type bottomLevelEntry struct {
	sizing   EntrySizing
	capacity uint64

	result  rtcore.BufferID
	address rtcore.DeviceAddress

	// inputs is the build template. Only the primitive count changes.
	inputs rtcore.BuildInputs

	built bool
}

// count returns the live primitive count.
func (e *bottomLevelEntry) count() uint64 {
	return e.inputs.Geometries[0].AABBs.Count
}

// bottomLevelSet owns one bottom-level acceleration structure per group.
//
// Entries live in a slot arena indexed by blasHandle. The device-side API
// objects are kept in a separate handle table with the same indexing, so
// no pointer into the arena outlives a teardown.
type bottomLevelSet struct {
	dev   rtcore.Device
	label string
	flags rtcore.BuildFlags

	entries []bottomLevelEntry
	objects []rtcore.AccelerationStructureID
}

func newBottomLevelSet(dev rtcore.Device, label string, flags rtcore.BuildFlags) *bottomLevelSet {
	return &bottomLevelSet{dev: dev, label: label, flags: flags}
}

// len returns the number of entries.
func (s *bottomLevelSet) len() int { return len(s.entries) }

// entry returns the entry of h.
func (s *bottomLevelSet) entry(h blasHandle) *bottomLevelEntry { return &s.entries[h] }

// object returns the API object of h.
func (s *bottomLevelSet) object(h blasHandle) rtcore.AccelerationStructureID { return s.objects[h] }

// complete reports whether every entry exists and is bound.
func (s *bottomLevelSet) complete() bool {
	if len(s.entries) == 0 || len(s.objects) != len(s.entries) {
		return false
	}
	for i := range s.entries {
		if s.objects[i] == rtcore.InvalidID || s.entries[i].address == rtcore.NullAddress {
			return false
		}
	}
	return true
}

// rebuildAll replaces every entry with freshly allocated buffers sized by
// sizing. On error nothing stays allocated.
func (s *bottomLevelSet) rebuildAll(groups []GroupDescriptor, sizing *Sizing) error {
	if len(groups) != len(sizing.BottomLevel) {
		return fmt.Errorf("%w: %d groups, %d sizings", ErrLengthMismatch, len(groups), len(sizing.BottomLevel))
	}
	s.release()

	s.entries = make([]bottomLevelEntry, len(groups))
	s.objects = make([]rtcore.AccelerationStructureID, len(groups))
	for i, g := range groups {
		e := &s.entries[i]
		e.sizing = sizing.BottomLevel[i]
		e.capacity = g.Count
		e.inputs = bottomLevelInputs(g, s.flags)

		id, err := s.dev.CreateBuffer(&rtcore.BufferDesc{
			Label: fmt.Sprintf("%s.blas%d", s.label, i),
			Size:  e.sizing.ResultSize,
			Usage: rtcore.BufferUsageAccelerationStructure | rtcore.BufferUsageStorage,
		})
		if err != nil {
			s.release()
			return fmt.Errorf("accel: create bottom level %d result (%d bytes): %w", i, e.sizing.ResultSize, err)
		}
		e.result = id
		e.address = s.dev.BufferAddress(id)

		obj, err := s.dev.CreateAccelerationStructure(&rtcore.AccelerationStructureDesc{
			Kind:   rtcore.KindBottomLevel,
			Buffer: id,
			Size:   e.sizing.ResultSize,
		})
		if err != nil {
			s.release()
			return fmt.Errorf("accel: create bottom level %d: %w", i, err)
		}
		s.objects[i] = obj
	}
	return nil
}

// updateCounts overwrites the count of every group whose new count is
// larger than minActivity and reports which groups changed. Counts are
// validated before any entry is modified; counts beyond the group count
// are ignored.
func (s *bottomLevelSet) updateCounts(counts []uint64, minActivity uint64) ([]bool, error) {
	if len(s.entries) == 0 {
		return nil, ErrNotBuilt
	}
	if len(counts) < len(s.entries) {
		return nil, fmt.Errorf("%w: %d counts for %d groups", ErrLengthMismatch, len(counts), len(s.entries))
	}
	for i := range s.entries {
		if counts[i] > s.entries[i].capacity {
			return nil, fmt.Errorf("%w: group %d count %d, capacity %d", ErrCountExceedsCapacity, i, counts[i], s.entries[i].capacity)
		}
	}

	changed := make([]bool, len(s.entries))
	for i := range s.entries {
		if counts[i] <= minActivity {
			continue
		}
		s.entries[i].inputs.Geometries[0].AABBs.Count = counts[i]
		changed[i] = true
	}
	return changed, nil
}

// dispatch records one build of entry h using the shared scratch buffer.
func (s *bottomLevelSet) dispatch(rc rtcore.CommandContext, h blasHandle, scratch scratchBuffer, p dispatchPolicy) error {
	e := &s.entries[h]
	if !scratch.fits(e.sizing.ScratchSize) {
		return fmt.Errorf("accel: bottom level %d needs %d scratch bytes, have %d", h, e.sizing.ScratchSize, scratch.size)
	}

	desc := &rtcore.BuildDesc{
		Inputs:      e.inputs,
		Dest:        s.objects[h],
		ScratchData: scratch.address,
	}
	desc.Inputs.Flags = p.flags(e.inputs.Flags)
	if p.PerformUpdate {
		desc.Source = s.objects[h]
	}

	plan := bottomLevelPlan(scratch.id, e.result)
	if err := plan.run(rc, func() error { return rc.BuildAccelerationStructure(desc) }); err != nil {
		return err
	}
	e.built = true
	return nil
}

// builtFlags returns the per-entry built flags.
func (s *bottomLevelSet) builtFlags() []bool {
	out := make([]bool, len(s.entries))
	for i := range s.entries {
		out[i] = s.entries[i].built
	}
	return out
}

// resultBytes returns the total result allocation.
func (s *bottomLevelSet) resultBytes() uint64 {
	var n uint64
	for i := range s.entries {
		n += s.entries[i].sizing.ResultSize
	}
	return n
}

// release destroys every API object and result buffer.
func (s *bottomLevelSet) release() {
	for i, obj := range s.objects {
		if obj != rtcore.InvalidID {
			s.dev.DestroyAccelerationStructure(obj)
		}
		s.objects[i] = rtcore.InvalidID
	}
	for i := range s.entries {
		if s.entries[i].result != rtcore.InvalidID {
			s.dev.DestroyBuffer(s.entries[i].result)
		}
	}
	s.entries = nil
	s.objects = nil
}
