package accel

import (
	"fmt"

	"github.com/gogpu/accel/rtcore"
)

// maxSeparateMasks is the group count below which every instance gets its
// own mask bit.
const maxSeparateMasks = 8

// instanceMask returns the mask of instance i out of n. Below eight groups
// each instance owns bit i so traversal can select groups individually;
// otherwise all instances share 0xFF.
func instanceMask(i, n int) uint8 {
	if n < maxSeparateMasks {
		return 1 << uint(i)
	}
	return 0xFF
}

// instanceRecord references a bottom-level entry by handle. The entry's
// device address is only resolved when the record is serialized.
type instanceRecord struct {
	entry     blasHandle
	transform rtcore.Transform
	mask      uint8
}

// topLevel owns the instance table and the top-level structure.
type topLevel struct {
	dev   rtcore.Device
	label string
	flags rtcore.BuildFlags

	sizing  EntrySizing
	records []instanceRecord

	instances rtcore.BufferID
	result    rtcore.BufferID
	object    rtcore.AccelerationStructureID
	scratch   scratchBuffer

	// dirty marks records not yet uploaded.
	dirty bool
	built bool
}

func newTopLevel(dev rtcore.Device, label string, flags rtcore.BuildFlags) *topLevel {
	return &topLevel{dev: dev, label: label, flags: flags}
}

// allocate creates the instance, result and scratch buffers for a top
// level over every entry of set, and uploads the instance table. It fails
// fast when the bottom level is incomplete.
func (t *topLevel) allocate(set *bottomLevelSet, sizing EntrySizing) error {
	if !set.complete() {
		return ErrTopLevelBeforeBottomLevel
	}
	t.release()
	t.sizing = sizing
	t.populate(set.len())

	var err error
	t.instances, err = t.dev.CreateBuffer(&rtcore.BufferDesc{
		Label: t.label + ".tlas_instances",
		Size:  uint64(len(t.records)) * rtcore.InstanceDescSize,
		Usage: rtcore.BufferUsageBuildInput | rtcore.BufferUsageMapWrite | rtcore.BufferUsageCopyDst,
	})
	if err != nil {
		t.release()
		return fmt.Errorf("accel: create instance buffer: %w", err)
	}
	t.result, err = t.dev.CreateBuffer(&rtcore.BufferDesc{
		Label: t.label + ".tlas",
		Size:  sizing.ResultSize,
		Usage: rtcore.BufferUsageAccelerationStructure | rtcore.BufferUsageStorage,
	})
	if err != nil {
		t.release()
		return fmt.Errorf("accel: create top level result (%d bytes): %w", sizing.ResultSize, err)
	}
	t.scratch, err = newScratchBuffer(t.dev, t.label+".tlas_scratch", sizing.ScratchSize)
	if err != nil {
		t.release()
		return err
	}
	t.object, err = t.dev.CreateAccelerationStructure(&rtcore.AccelerationStructureDesc{
		Kind:   rtcore.KindTopLevel,
		Buffer: t.result,
		Size:   sizing.ResultSize,
	})
	if err != nil {
		t.release()
		return fmt.Errorf("accel: create top level: %w", err)
	}

	if err := t.upload(set); err != nil {
		t.release()
		return err
	}
	return nil
}

// populate clears the instance table and fills it with one identity
// instance per group.
func (t *topLevel) populate(n int) {
	t.records = t.records[:0]
	for i := 0; i < n; i++ {
		t.records = append(t.records, instanceRecord{
			entry:     blasHandle(i),
			transform: rtcore.IdentityTransform(),
			mask:      instanceMask(i, n),
		})
	}
	t.dirty = true
}

// refreshTransforms resets every instance transform to identity.
func (t *topLevel) refreshTransforms() {
	for i := range t.records {
		t.records[i].transform = rtcore.IdentityTransform()
	}
	t.dirty = true
}

// setTransform replaces the transform of instance i.
func (t *topLevel) setTransform(i int, m rtcore.Transform) error {
	if i < 0 || i >= len(t.records) {
		return fmt.Errorf("%w: %d of %d", ErrInstanceIndex, i, len(t.records))
	}
	t.records[i].transform = m
	t.dirty = true
	return nil
}

// descs serializes the records against the entries of set.
func (t *topLevel) descs(set *bottomLevelSet) []rtcore.InstanceDesc {
	out := make([]rtcore.InstanceDesc, len(t.records))
	for i, r := range t.records {
		out[i] = rtcore.InstanceDesc{
			Transform:             r.transform,
			InstanceID:            uint32(i),
			InstanceMask:          r.mask,
			Flags:                 rtcore.InstanceFlagNone,
			AccelerationStructure: set.entry(r.entry).address,
		}
	}
	return out
}

// upload writes the instance table through the host-visible path.
func (t *topLevel) upload(set *bottomLevelSet) error {
	data, err := rtcore.EncodeInstanceDescs(t.descs(set))
	if err != nil {
		return fmt.Errorf("accel: encode instances: %w", err)
	}
	if err := t.dev.WriteBuffer(t.instances, 0, data); err != nil {
		return fmt.Errorf("accel: upload instances: %w", err)
	}
	t.dirty = false
	return nil
}

// rebuild records the top-level dispatch over the current instance
// table, uploading it first if it changed.
func (t *topLevel) rebuild(rc rtcore.CommandContext, set *bottomLevelSet, p dispatchPolicy) error {
	if !set.complete() || t.object == rtcore.InvalidID || len(t.records) != set.len() {
		return ErrTopLevelBeforeBottomLevel
	}
	if t.dirty {
		if err := t.upload(set); err != nil {
			return err
		}
	}
	if !t.scratch.fits(t.sizing.ScratchSize) {
		return fmt.Errorf("accel: top level needs %d scratch bytes, have %d", t.sizing.ScratchSize, t.scratch.size)
	}

	desc := &rtcore.BuildDesc{
		Inputs:      topLevelInputs(len(t.records), p.flags(t.flags), t.dev.BufferAddress(t.instances)),
		Dest:        t.object,
		ScratchData: t.scratch.address,
	}
	if p.PerformUpdate {
		desc.Source = t.object
	}

	plan := topLevelPlan(t.instances, t.scratch.id, t.result)
	if err := plan.run(rc, func() error { return rc.BuildAccelerationStructure(desc) }); err != nil {
		return err
	}
	t.built = true
	return nil
}

// bytes returns the result, scratch and instance allocations.
func (t *topLevel) bytes() (result, scratch, instances uint64) {
	return t.sizing.ResultSize, t.scratch.size, uint64(len(t.records)) * rtcore.InstanceDescSize
}

// release destroys every owned resource and clears the instance table.
func (t *topLevel) release() {
	if t.object != rtcore.InvalidID {
		t.dev.DestroyAccelerationStructure(t.object)
	}
	if t.result != rtcore.InvalidID {
		t.dev.DestroyBuffer(t.result)
	}
	if t.instances != rtcore.InvalidID {
		t.dev.DestroyBuffer(t.instances)
	}
	t.scratch.release(t.dev)
	t.object, t.result, t.instances = rtcore.InvalidID, rtcore.InvalidID, rtcore.InvalidID
	t.records = t.records[:0]
	t.sizing = EntrySizing{}
	t.dirty = false
	t.built = false
}
