package soft

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/accel/rtcore"
)

// kernelFunc runs one dispatch against resolved bindings.
type kernelFunc func(slots map[uint32][]byte, groups [3]uint32, workgroupSize uint32, run rangeRunner) error

// rangeRunner calls fn over [0, n) in chunks of at most chunk indices.
// Chunks may run concurrently.
type rangeRunner func(n, chunk uint64, fn func(lo, hi uint64))

func serialRange(n, _ uint64, fn func(lo, hi uint64)) {
	if n > 0 {
		fn(0, n)
	}
}

var kernels = map[string]kernelFunc{
	rtcore.ClearAABBEntryPoint: clearAABBKernel,
}

// clearAABBKernel mirrors clear_aabb.wgsl invocation by invocation.
// Each workgroup is one chunk.
func clearAABBKernel(slots map[uint32][]byte, groups [3]uint32, workgroupSize uint32, run rangeRunner) error {
	params, err := rtcore.DecodeClearAABBParams(slots[rtcore.ClearAABBSlotParams])
	if err != nil {
		return err
	}
	aabbs := slots[rtcore.ClearAABBSlotAABBs]
	counter := slots[rtcore.ClearAABBSlotCounter]

	invocations := uint64(groups[0]) * uint64(workgroupSize)
	limit := min(uint64(params.ElementCount), invocations)

	var active uint64
	if params.UseCounter != 0 {
		off := int(params.CounterIndex) * 4
		if off+4 > len(counter) {
			return fmt.Errorf("soft: counter index %d out of range", params.CounterIndex)
		}
		active = uint64(binary.LittleEndian.Uint32(counter[off:]))
	}

	stride := uint64(params.StrideWords) * 4
	run(limit, uint64(workgroupSize), func(lo, hi uint64) {
		for i := lo; i < hi; i++ {
			if params.UseCounter != 0 && i < active {
				continue
			}
			base := i * stride
			// Out-of-range storage writes are discarded, as on the GPU.
			if base+12 > uint64(len(aabbs)) {
				return
			}
			for w := uint64(0); w < 3; w++ {
				binary.LittleEndian.PutUint32(aabbs[base+w*4:], params.Sentinel)
			}
		}
	})
	return nil
}

// Dispatch runs the built-in kernel of program.
func (d *Device) Dispatch(id rtcore.ProgramID, bindings []rtcore.Binding, groups [3]uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.programs[id]
	if !ok {
		return fmt.Errorf("%w: %d", rtcore.ErrUnknownProgram, id)
	}
	for i, g := range groups {
		if g > d.caps.MaxComputeWorkgroupsPerDimension {
			return fmt.Errorf("soft: dispatch dimension %d is %d, limit %d", i, g, d.caps.MaxComputeWorkgroupsPerDimension)
		}
	}

	slots := make(map[uint32][]byte, len(bindings))
	var written []*buffer
	for _, bind := range bindings {
		b, ok := d.buffers[bind.Buffer]
		if !ok {
			return fmt.Errorf("%w: slot %d", rtcore.ErrUnknownBuffer, bind.Slot)
		}
		size := bind.Size
		if size == 0 {
			size = b.desc.Size - bind.Offset
		}
		if bind.Offset+size > b.desc.Size {
			return fmt.Errorf("soft: slot %d binds [%d, %d) of %q", bind.Slot, bind.Offset, bind.Offset+size, b.desc.Label)
		}
		if b.pendingWrite {
			return fmt.Errorf("%w: slot %d buffer %q has an unordered write", ErrHazard, bind.Slot, b.desc.Label)
		}
		slots[bind.Slot] = b.data[bind.Offset : bind.Offset+size]
		if bindingType(p.desc.Bindings, bind.Slot) == rtcore.BindingTypeStorageBuffer {
			written = append(written, b)
		}
	}

	if groups[1] != 0 && groups[2] != 0 && groups[0] != 0 {
		run := rangeRunner(serialRange)
		if d.pool != nil {
			run = d.pool.ForRange
		}
		if err := p.kernel(slots, groups, p.desc.WorkgroupSize, run); err != nil {
			return err
		}
	}
	for _, b := range written {
		b.pendingWrite = true
		b.state = rtcore.ResourceStateUnorderedAccess
	}
	d.commands = append(d.commands, Command{Kind: CommandDispatch, Program: id, Groups: groups})
	return nil
}

func bindingType(layout []rtcore.BindingLayout, slot uint32) rtcore.BindingType {
	for _, l := range layout {
		if l.Slot == slot {
			return l.Type
		}
	}
	return 0
}
