package accel

import (
	"fmt"

	"github.com/gogpu/accel/rtcore"
)

// AccelerationStructureAlignment is the placement alignment of every result
// and scratch allocation.
const AccelerationStructureAlignment = 256

// GroupDescriptor describes one procedural geometry group.
type GroupDescriptor struct {
	// Count is the number of AABB records. It is also the capacity the
	// group's buffers are sized for.
	Count uint64

	// Data is the device address of the first AABB record.
	Data rtcore.DeviceAddress

	// Stride is the distance between records. 0 means rtcore.AABBSize.
	Stride uint32
}

// stride returns the effective stride.
func (g GroupDescriptor) stride() uint64 {
	if g.Stride == 0 {
		return rtcore.AABBSize
	}
	return uint64(g.Stride)
}

// EntrySizing is the sizing of one acceleration structure.
type EntrySizing struct {
	// Prebuild is the device-reported requirement.
	Prebuild rtcore.PrebuildInfo

	// ResultSize is the aligned result allocation.
	ResultSize uint64

	// ScratchSize is the aligned maximum of the build and update scratch
	// requirements.
	ScratchSize uint64
}

// Sizing is the result of QuerySizing.
type Sizing struct {
	// BottomLevel holds one entry per group, in group order.
	BottomLevel []EntrySizing

	// TopLevel sizes the structure instancing every group.
	TopLevel EntrySizing

	// ScratchSize is the shared bottom-level scratch allocation: the
	// maximum of every BottomLevel ScratchSize.
	ScratchSize uint64
}

// TotalResultSize returns the sum of all result allocations.
func (s *Sizing) TotalResultSize() uint64 {
	total := s.TopLevel.ResultSize
	for _, e := range s.BottomLevel {
		total += e.ResultSize
	}
	return total
}

// alignTo rounds v up to a multiple of a.
func alignTo(a, v uint64) uint64 {
	return (v + a - 1) / a * a
}

// bottomLevelInputs returns the build inputs template of a group.
// Only the primitive count is mutated afterwards.
func bottomLevelInputs(g GroupDescriptor, flags rtcore.BuildFlags) rtcore.BuildInputs {
	return rtcore.BuildInputs{
		Kind:      rtcore.KindBottomLevel,
		Flags:     flags,
		DescCount: 1,
		Geometries: []rtcore.GeometryDesc{{
			Type: rtcore.GeometryTypeProceduralAABBs,
			// Consumers must see each primitive hit exactly once per ray.
			Flags: rtcore.GeometryFlagNoDuplicateAnyHitInvocation,
			AABBs: rtcore.ProceduralAABBs{
				Count:  g.Count,
				Data:   g.Data,
				Stride: g.stride(),
			},
		}},
	}
}

// topLevelInputs returns the build inputs of a top level over n instances.
func topLevelInputs(n int, flags rtcore.BuildFlags, instances rtcore.DeviceAddress) rtcore.BuildInputs {
	return rtcore.BuildInputs{
		Kind:          rtcore.KindTopLevel,
		Flags:         flags,
		DescCount:     uint32(n),
		InstanceDescs: instances,
	}
}

// sizeEntry queries and pads the sizing of one build.
func sizeEntry(dev rtcore.Device, inputs *rtcore.BuildInputs, degenerate bool) (EntrySizing, error) {
	info, err := dev.PrebuildInfo(inputs)
	if err != nil {
		return EntrySizing{}, err
	}
	if info.ResultDataMaxSize == 0 && !degenerate {
		return EntrySizing{}, ErrInvalidPrebuildSize
	}
	e := EntrySizing{
		Prebuild:    info,
		ResultSize:  alignTo(AccelerationStructureAlignment, info.ResultDataMaxSize),
		ScratchSize: alignTo(AccelerationStructureAlignment, max(info.ScratchDataSize, info.UpdateScratchDataSize)),
	}
	// Empty groups still get a valid, bindable allocation.
	e.ResultSize = max(e.ResultSize, AccelerationStructureAlignment)
	e.ScratchSize = max(e.ScratchSize, AccelerationStructureAlignment)
	return e, nil
}

// QuerySizing returns the padded sizing of a structure over groups.
// blasFlags and tlasFlags are the flags declared in the build inputs.
// QuerySizing has no side effects.
func QuerySizing(dev rtcore.Device, groups []GroupDescriptor, blasFlags, tlasFlags rtcore.BuildFlags) (*Sizing, error) {
	if len(groups) == 0 {
		return nil, ErrNoGroups
	}
	if !dev.Capabilities().RayTracing {
		return nil, fmt.Errorf("accel: %w", rtcore.ErrRayTracingUnsupported)
	}

	s := &Sizing{BottomLevel: make([]EntrySizing, len(groups))}
	for i, g := range groups {
		if g.stride() != rtcore.AABBSize {
			return nil, fmt.Errorf("%w: group %d stride %d", ErrInvalidStride, i, g.Stride)
		}
		inputs := bottomLevelInputs(g, blasFlags)
		e, err := sizeEntry(dev, &inputs, g.Count == 0)
		if err != nil {
			return nil, fmt.Errorf("accel: sizing group %d (%d AABBs): %w", i, g.Count, err)
		}
		s.BottomLevel[i] = e
		s.ScratchSize = max(s.ScratchSize, e.ScratchSize)
	}

	inputs := topLevelInputs(len(groups), tlasFlags, rtcore.NullAddress)
	top, err := sizeEntry(dev, &inputs, false)
	if err != nil {
		return nil, fmt.Errorf("accel: sizing top level (%d instances): %w", len(groups), err)
	}
	s.TopLevel = top
	return s, nil
}
