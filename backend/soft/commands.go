package soft

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/accel/rtcore"
)

// CommandKind identifies a recorded command.
type CommandKind uint8

// Command kinds.
const (
	CommandUAVBarrier CommandKind = iota
	CommandResourceBarrier
	CommandBuild
	CommandDispatch
)

// String returns the command name.
func (k CommandKind) String() string {
	switch k {
	case CommandUAVBarrier:
		return "UAVBarrier"
	case CommandResourceBarrier:
		return "ResourceBarrier"
	case CommandBuild:
		return "Build"
	case CommandDispatch:
		return "Dispatch"
	default:
		return fmt.Sprintf("CommandKind(%d)", uint8(k))
	}
}

// Command is one entry of the command log.
type Command struct {
	Kind CommandKind

	// Buffer is the barrier target.
	Buffer rtcore.BufferID
	State  rtcore.ResourceState

	// Build is set for CommandBuild.
	Build *BuildRecord

	// Program and Groups are set for CommandDispatch.
	Program rtcore.ProgramID
	Groups  [3]uint32
}

// BuildRecord describes an executed build.
type BuildRecord struct {
	Kind   rtcore.Kind
	Dest   rtcore.AccelerationStructureID
	Flags  rtcore.BuildFlags
	Update bool

	// DestBuffer is the result buffer of Dest.
	DestBuffer rtcore.BufferID

	// PrimitiveCount is the AABB total of a bottom-level build.
	PrimitiveCount uint64

	// InstanceCount is the instance total of a top-level build.
	InstanceCount uint32

	// Masks are the instance masks read by a top-level build.
	Masks []uint8
}

// AABB is an axis-aligned box.
type AABB struct {
	Min [3]float32
	Max [3]float32
}

// Empty reports whether the box contains nothing.
func (b AABB) Empty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

func emptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{
		Min: [3]float32{inf, inf, inf},
		Max: [3]float32{-inf, -inf, -inf},
	}
}

func (b *AABB) union(o AABB) {
	for i := 0; i < 3; i++ {
		b.Min[i] = min(b.Min[i], o.Min[i])
		b.Max[i] = max(b.Max[i], o.Max[i])
	}
}

// Commands returns a copy of the command log.
func (d *Device) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Command, len(d.commands))
	copy(out, d.commands)
	return out
}

// Builds returns the build records of the command log in order.
func (d *Device) Builds() []BuildRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []BuildRecord
	for _, c := range d.commands {
		if c.Kind == CommandBuild {
			out = append(out, *c.Build)
		}
	}
	return out
}

// ResetCommands clears the command log.
func (d *Device) ResetCommands() {
	d.mu.Lock()
	d.commands = d.commands[:0]
	d.mu.Unlock()
}

// UAVBarrier orders earlier unordered writes to buffer.
func (d *Device) UAVBarrier(id rtcore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buffers[id]; ok {
		b.pendingWrite = false
	}
	d.commands = append(d.commands, Command{Kind: CommandUAVBarrier, Buffer: id})
}

// ResourceBarrier transitions buffer into state. A transition also orders
// earlier writes.
func (d *Device) ResourceBarrier(id rtcore.BufferID, state rtcore.ResourceState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buffers[id]; ok {
		b.state = state
		b.pendingWrite = false
	}
	d.commands = append(d.commands, Command{Kind: CommandResourceBarrier, Buffer: id, State: state})
}

// BuildAccelerationStructure validates and executes a build.
func (d *Device) BuildAccelerationStructure(desc *rtcore.BuildDesc) error {
	if !d.caps.RayTracing {
		return rtcore.ErrRayTracingUnsupported
	}
	if desc == nil {
		return fmt.Errorf("soft: nil build descriptor")
	}
	if d.hook != nil {
		if err := d.hook(desc); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	dst, ok := d.structures[desc.Dest]
	if !ok {
		return fmt.Errorf("%w: dest %d", rtcore.ErrUnknownAccelerationStructure, desc.Dest)
	}
	if dst.desc.Kind != desc.Inputs.Kind {
		return fmt.Errorf("soft: building %v inputs into %v structure", desc.Inputs.Kind, dst.desc.Kind)
	}
	dstBuf, ok := d.buffers[dst.desc.Buffer]
	if !ok {
		return fmt.Errorf("%w: result buffer of structure %d", rtcore.ErrUnknownBuffer, desc.Dest)
	}

	update := desc.Inputs.Flags.Has(rtcore.BuildFlagPerformUpdate)
	if update {
		src, ok := d.structures[desc.Source]
		if !ok {
			return fmt.Errorf("%w: source %d", ErrInvalidUpdate, desc.Source)
		}
		if !src.built {
			return fmt.Errorf("%w: source %d was never built", ErrInvalidUpdate, desc.Source)
		}
		if !src.allowUpdate || !desc.Inputs.Flags.Has(rtcore.BuildFlagAllowUpdate) {
			return fmt.Errorf("%w: source %d built without AllowUpdate", ErrInvalidUpdate, desc.Source)
		}
	}

	info := d.prebuild(&desc.Inputs)
	if dst.desc.Size < info.ResultDataMaxSize {
		return fmt.Errorf("%w: result %d < %d", ErrInsufficientMemory, dst.desc.Size, info.ResultDataMaxSize)
	}
	scratchNeed := info.ScratchDataSize
	if update {
		scratchNeed = info.UpdateScratchDataSize
	}
	scratch, scratchOff, ok := d.resolve(desc.ScratchData)
	if !ok {
		return fmt.Errorf("%w: scratch %#x", ErrInvalidAddress, uint64(desc.ScratchData))
	}
	if scratch.desc.Size-scratchOff < scratchNeed {
		return fmt.Errorf("%w: scratch %d < %d", ErrInsufficientMemory, scratch.desc.Size-scratchOff, scratchNeed)
	}
	if scratch.pendingWrite {
		return fmt.Errorf("%w: scratch %q written by an earlier build without a UAV barrier", ErrHazard, scratch.desc.Label)
	}
	if dstBuf.pendingWrite {
		return fmt.Errorf("%w: result %q written by an earlier build without a UAV barrier", ErrHazard, dstBuf.desc.Label)
	}

	rec := &BuildRecord{
		Kind:       desc.Inputs.Kind,
		Dest:       desc.Dest,
		Flags:      desc.Inputs.Flags,
		Update:     update,
		DestBuffer: dst.desc.Buffer,
	}

	var bounds AABB
	var err error
	switch desc.Inputs.Kind {
	case rtcore.KindBottomLevel:
		bounds, err = d.buildBottomLevel(desc, rec)
	case rtcore.KindTopLevel:
		bounds, err = d.buildTopLevel(desc, rec)
	default:
		err = fmt.Errorf("soft: unknown kind %v", desc.Inputs.Kind)
	}
	if err != nil {
		return err
	}

	dst.built = true
	dst.allowUpdate = desc.Inputs.Flags.Has(rtcore.BuildFlagAllowUpdate)
	dst.bounds = bounds
	dst.primitiveCount = rec.PrimitiveCount
	dst.instanceCount = rec.InstanceCount
	if update {
		dst.updates++
	} else {
		dst.builds++
	}
	dstBuf.pendingWrite = true
	scratch.pendingWrite = true

	d.commands = append(d.commands, Command{Kind: CommandBuild, Build: rec})
	return nil
}

// buildBottomLevel reads the AABB inputs. Must hold d.mu.
func (d *Device) buildBottomLevel(desc *rtcore.BuildDesc, rec *BuildRecord) (AABB, error) {
	in := &desc.Inputs
	if int(in.DescCount) != len(in.Geometries) {
		return AABB{}, fmt.Errorf("soft: DescCount %d with %d geometries", in.DescCount, len(in.Geometries))
	}
	bounds := emptyAABB()
	for i, g := range in.Geometries {
		if g.Type != rtcore.GeometryTypeProceduralAABBs {
			return AABB{}, fmt.Errorf("soft: geometry %d: only procedural AABBs are supported", i)
		}
		rec.PrimitiveCount += g.AABBs.Count
		if g.AABBs.Count == 0 {
			continue
		}
		stride := g.AABBs.Stride
		if stride < rtcore.AABBSize {
			return AABB{}, fmt.Errorf("soft: geometry %d: stride %d", i, stride)
		}
		buf, off, ok := d.resolve(g.AABBs.Data)
		if !ok {
			return AABB{}, fmt.Errorf("%w: geometry %d data %#x", ErrInvalidAddress, i, uint64(g.AABBs.Data))
		}
		end := off + (g.AABBs.Count-1)*stride + rtcore.AABBSize
		if end > buf.desc.Size {
			return AABB{}, fmt.Errorf("%w: geometry %d reads past %q", ErrInvalidAddress, i, buf.desc.Label)
		}
		if buf.pendingWrite {
			return AABB{}, fmt.Errorf("%w: AABB buffer %q has an unordered write", ErrHazard, buf.desc.Label)
		}
		for p := uint64(0); p < g.AABBs.Count; p++ {
			box := readAABB(buf.data[off+p*stride:])
			// A NaN minimum marks an inactive primitive.
			if isNaN(box.Min[0]) || isNaN(box.Min[1]) || isNaN(box.Min[2]) {
				continue
			}
			bounds.union(box)
		}
	}
	return bounds, nil
}

// buildTopLevel reads the instance records. Must hold d.mu.
func (d *Device) buildTopLevel(desc *rtcore.BuildDesc, rec *BuildRecord) (AABB, error) {
	in := &desc.Inputs
	rec.InstanceCount = in.DescCount
	bounds := emptyAABB()
	if in.DescCount == 0 {
		return bounds, nil
	}
	buf, off, ok := d.resolve(in.InstanceDescs)
	if !ok {
		return AABB{}, fmt.Errorf("%w: instance descs %#x", ErrInvalidAddress, uint64(in.InstanceDescs))
	}
	if off+uint64(in.DescCount)*rtcore.InstanceDescSize > buf.desc.Size {
		return AABB{}, fmt.Errorf("%w: instance records read past %q", ErrInvalidAddress, buf.desc.Label)
	}
	if buf.state != rtcore.ResourceStateNonPixelShader {
		return AABB{}, fmt.Errorf("%w: instance buffer %q in state %v", ErrHazard, buf.desc.Label, buf.state)
	}

	rec.Masks = make([]uint8, in.DescCount)
	for i := uint32(0); i < in.DescCount; i++ {
		start := off + uint64(i)*rtcore.InstanceDescSize
		inst, err := rtcore.DecodeInstanceDesc(buf.data[start : start+rtcore.InstanceDescSize])
		if err != nil {
			return AABB{}, err
		}
		rec.Masks[i] = inst.InstanceMask
		blas, ok := d.structureAt(inst.AccelerationStructure)
		if !ok || blas.desc.Kind != rtcore.KindBottomLevel {
			return AABB{}, fmt.Errorf("%w: instance %d references %#x", ErrInvalidInstance, i, uint64(inst.AccelerationStructure))
		}
		if !blas.built {
			return AABB{}, fmt.Errorf("%w: instance %d references an unbuilt structure", ErrInvalidInstance, i)
		}
		if b := d.buffers[blas.desc.Buffer]; b != nil && b.pendingWrite {
			return AABB{}, fmt.Errorf("%w: instance %d structure %q has an unordered write", ErrHazard, i, b.desc.Label)
		}
		if !blas.bounds.Empty() {
			bounds.union(transformAABB(inst.Transform, blas.bounds))
		}
	}
	return bounds, nil
}

func readAABB(b []byte) AABB {
	var box AABB
	for i := 0; i < 3; i++ {
		box.Min[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
		box.Max[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[12+i*4:]))
	}
	return box
}

// transformAABB returns the box enclosing the transformed corners of b.
func transformAABB(m rtcore.Transform, b AABB) AABB {
	out := emptyAABB()
	for c := 0; c < 8; c++ {
		p := [3]float32{b.Min[0], b.Min[1], b.Min[2]}
		for k := 0; k < 3; k++ {
			if c&(1<<k) != 0 {
				p[k] = b.Max[k]
			}
		}
		for r := 0; r < 3; r++ {
			v := m[r*4]*p[0] + m[r*4+1]*p[1] + m[r*4+2]*p[2] + m[r*4+3]
			out.Min[r] = min(out.Min[r], v)
			out.Max[r] = max(out.Max[r], v)
		}
	}
	return out
}

func isNaN(f float32) bool {
	return f != f
}
