package accel

import (
	"fmt"
	"math"

	"github.com/gogpu/accel/rtcore"
)

// Clearer resets the minimum corner of every AABB record in a set of
// buffers to zero or to NaN. A NaN minimum fails every overlap test, which
// hides a slot from traversal until it is written again.
//
// The compute program and one uniform buffer per target are created
// lazily and reused across calls.
type Clearer struct {
	dev   rtcore.Device
	label string

	program rtcore.ProgramID
	params  []rtcore.BufferID
	dummy   rtcore.BufferID
}

// NewClearer creates a Clearer on dev. It works on compute-only devices.
func NewClearer(dev rtcore.Device, label string) *Clearer {
	if label == "" {
		label = "accel"
	}
	return &Clearer{dev: dev, label: label}
}

// clearTarget is the resolved shape of one target buffer.
type clearTarget struct {
	count       uint64
	strideWords uint32
}

// resolveTarget derives the element count: element-typed buffers use their
// native count, raw buffers are divided into rtcore.AABBSize records.
func resolveTarget(desc rtcore.BufferDesc) (clearTarget, error) {
	if desc.ElementSize == 0 {
		return clearTarget{count: desc.Size / rtcore.AABBSize, strideWords: rtcore.AABBSize / 4}, nil
	}
	if desc.ElementSize < rtcore.AABBSize || desc.ElementSize%4 != 0 {
		return clearTarget{}, fmt.Errorf("%w: %q element size %d", ErrInvalidClearTarget, desc.Label, desc.ElementSize)
	}
	return clearTarget{count: desc.ElementCount(), strideWords: desc.ElementSize / 4}, nil
}

// Clear records one dispatch per target followed by a UAV barrier on the
// target. With counter set, element i of target k is only cleared when
// i >= counter[k]: the counter holds one uint32 per target and the first
// counter[k] elements are live.
func (c *Clearer) Clear(rc rtcore.CommandContext, targets []rtcore.BufferID, clearToNaN bool, counter rtcore.BufferID) error {
	if err := c.init(); err != nil {
		return err
	}

	sentinel := rtcore.SentinelZero
	if clearToNaN {
		sentinel = rtcore.SentinelNaN
	}
	useCounter := uint32(0)
	counterBuf := c.dummy
	if counter != rtcore.InvalidID {
		useCounter = 1
		counterBuf = counter
	}
	limit := c.dev.Capabilities().MaxComputeWorkgroupsPerDimension

	for k, target := range targets {
		desc, ok := c.dev.BufferDesc(target)
		if !ok {
			return fmt.Errorf("accel: clear target %d: %w", k, rtcore.ErrUnknownBuffer)
		}
		t, err := resolveTarget(desc)
		if err != nil {
			return err
		}
		if t.count == 0 {
			continue
		}
		if t.count > math.MaxUint32 {
			return fmt.Errorf("%w: %q holds %d elements", ErrInvalidClearTarget, desc.Label, t.count)
		}
		groups := rtcore.WorkgroupCount(t.count, rtcore.ClearAABBWorkgroupSize)
		if limit != 0 && groups > limit {
			return fmt.Errorf("%w: %q needs %d workgroups, limit %d", ErrInvalidClearTarget, desc.Label, groups, limit)
		}

		params, err := c.paramsBuffer(k)
		if err != nil {
			return err
		}
		p := rtcore.ClearAABBParams{
			ElementCount: uint32(t.count),
			StrideWords:  t.strideWords,
			Sentinel:     sentinel,
			UseCounter:   useCounter,
			CounterIndex: uint32(k),
		}
		if err := c.dev.WriteBuffer(params, 0, p.Encode()); err != nil {
			return fmt.Errorf("accel: write clear params: %w", err)
		}

		bindings := []rtcore.Binding{
			{Slot: rtcore.ClearAABBSlotParams, Buffer: params},
			{Slot: rtcore.ClearAABBSlotAABBs, Buffer: target},
			{Slot: rtcore.ClearAABBSlotCounter, Buffer: counterBuf},
		}
		if err := rc.Dispatch(c.program, bindings, [3]uint32{groups, 1, 1}); err != nil {
			return fmt.Errorf("accel: clear %q: %w", desc.Label, err)
		}
		rc.UAVBarrier(target)
	}
	return nil
}

// init creates the program and the placeholder counter binding.
func (c *Clearer) init() error {
	if c.program != rtcore.InvalidID {
		return nil
	}
	desc := rtcore.ClearAABBProgramDesc(c.label + ".clear_aabb")
	program, err := c.dev.CreateComputeProgram(&desc)
	if err != nil {
		return fmt.Errorf("accel: create clear program: %w", err)
	}
	dummy, err := c.dev.CreateBuffer(&rtcore.BufferDesc{
		Label: c.label + ".clear_counter",
		Size:  4,
		Usage: rtcore.BufferUsageStorage | rtcore.BufferUsageCopyDst,
	})
	if err != nil {
		c.dev.DestroyComputeProgram(program)
		return fmt.Errorf("accel: create clear counter placeholder: %w", err)
	}
	c.program, c.dummy = program, dummy
	return nil
}

// paramsBuffer returns the uniform buffer of target k.
func (c *Clearer) paramsBuffer(k int) (rtcore.BufferID, error) {
	for len(c.params) <= k {
		id, err := c.dev.CreateBuffer(&rtcore.BufferDesc{
			Label: fmt.Sprintf("%s.clear_params%d", c.label, len(c.params)),
			Size:  rtcore.ClearAABBParamsSize,
			Usage: rtcore.BufferUsageUniform | rtcore.BufferUsageCopyDst,
		})
		if err != nil {
			return rtcore.InvalidID, fmt.Errorf("accel: create clear params: %w", err)
		}
		c.params = append(c.params, id)
	}
	return c.params[k], nil
}

// Close releases the program and buffers.
func (c *Clearer) Close() {
	for _, id := range c.params {
		c.dev.DestroyBuffer(id)
	}
	c.params = nil
	if c.dummy != rtcore.InvalidID {
		c.dev.DestroyBuffer(c.dummy)
		c.dummy = rtcore.InvalidID
	}
	if c.program != rtcore.InvalidID {
		c.dev.DestroyComputeProgram(c.program)
		c.program = rtcore.InvalidID
	}
}
