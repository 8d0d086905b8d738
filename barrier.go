package accel

import (
	"fmt"

	"github.com/gogpu/accel/rtcore"
)

// barrierKind selects the barrier command.
type barrierKind uint8

const (
	barrierUAV barrierKind = iota
	barrierTransition
)

// barrier is one barrier command of a dispatch plan.
type barrier struct {
	kind   barrierKind
	buffer rtcore.BufferID
	state  rtcore.ResourceState // barrierTransition only
}

func (b barrier) String() string {
	if b.kind == barrierTransition {
		return fmt.Sprintf("transition(%d->%v)", b.buffer, b.state)
	}
	return fmt.Sprintf("uav(%d)", b.buffer)
}

// dispatchPlan brackets one build dispatch with barriers.
//
// Before a dispatch the scratch and result buffers are ordered against
// earlier writes; after it the result is ordered against later readers.
type dispatchPlan struct {
	before []barrier
	after  []barrier
}

// bottomLevelPlan returns the plan of a bottom-level dispatch.
func bottomLevelPlan(scratch, result rtcore.BufferID) dispatchPlan {
	return dispatchPlan{
		before: []barrier{
			{kind: barrierUAV, buffer: scratch},
			{kind: barrierUAV, buffer: result},
		},
		after: []barrier{
			{kind: barrierUAV, buffer: result},
		},
	}
}

// topLevelPlan returns the plan of a top-level dispatch. The instance
// buffer was last written by a host upload and is transitioned to a
// shader-readable state first.
func topLevelPlan(instances, scratch, result rtcore.BufferID) dispatchPlan {
	return dispatchPlan{
		before: []barrier{
			{kind: barrierTransition, buffer: instances, state: rtcore.ResourceStateNonPixelShader},
			{kind: barrierUAV, buffer: scratch},
			{kind: barrierUAV, buffer: result},
		},
		after: []barrier{
			{kind: barrierUAV, buffer: result},
		},
	}
}

func issueBarriers(rc rtcore.CommandContext, barriers []barrier) {
	for _, b := range barriers {
		switch b.kind {
		case barrierUAV:
			rc.UAVBarrier(b.buffer)
		case barrierTransition:
			rc.ResourceBarrier(b.buffer, b.state)
		}
	}
}

// run records the plan around build. The trailing barriers are only issued
// when build succeeds.
func (p dispatchPlan) run(rc rtcore.CommandContext, build func() error) error {
	issueBarriers(rc, p.before)
	if err := build(); err != nil {
		return err
	}
	issueBarriers(rc, p.after)
	return nil
}
