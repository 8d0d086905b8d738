package accel

import (
	"fmt"

	"github.com/gogpu/accel/rtcore"
)

// schedulerState is the build state of the current generation.
type schedulerState uint8

const (
	// stateUnbuilt: no generation, or a generation whose first build has
	// not completed.
	stateUnbuilt schedulerState = iota

	// stateBuilt: every structure of the generation was built at least once.
	stateBuilt

	// stateFailed: a dispatch of the generation failed.
	stateFailed
)

func (s schedulerState) String() string {
	switch s {
	case stateUnbuilt:
		return "Unbuilt"
	case stateBuilt:
		return "Built"
	case stateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("schedulerState(%d)", uint8(s))
	}
}

// action is the scheduled work for one structure in one frame.
type action uint8

const (
	actionSkip action = iota
	actionRebuild
	actionUpdate
)

func (a action) String() string {
	switch a {
	case actionSkip:
		return "skip"
	case actionRebuild:
		return "rebuild"
	case actionUpdate:
		return "update"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// framePlan is the scheduled work of one build or update call.
type framePlan struct {
	groups []action
	top    action
}

// scheduler owns the build state machine:
//
//	Unbuilt --initial build--> Built(N)
//	Built(N) --update--> Built(N)
//	Built(N) --dispatch error--> Failed(N)
//	any --recreate--> Unbuilt --initial build--> Built(N+1)
type scheduler struct {
	state      schedulerState
	generation uint64
	started    bool

	buildMode  BuildMode
	updateMode UpdateMode
}

// begin starts a new generation and returns its number.
func (s *scheduler) begin() uint64 {
	if s.started {
		s.generation++
	}
	s.started = true
	s.state = stateUnbuilt
	return s.generation
}

// complete marks the generation as built.
func (s *scheduler) complete() { s.state = stateBuilt }

// fail marks the generation as unusable.
func (s *scheduler) fail() { s.state = stateFailed }

// reset drops the generation without starting a new one.
func (s *scheduler) reset() { s.state = stateUnbuilt }

// wasBuilt reports whether prior content exists to update.
func (s *scheduler) wasBuilt() bool { return s.state == stateBuilt }

// ready returns nil if updates may be scheduled.
func (s *scheduler) ready() error {
	switch s.state {
	case stateBuilt:
		return nil
	case stateFailed:
		return fmt.Errorf("%w (generation %d)", ErrGenerationFailed, s.generation)
	default:
		return ErrNotBuilt
	}
}

// initialPlan schedules the first build of a generation: every structure
// is fully built, whatever the update mode.
func (s *scheduler) initialPlan(groups int) framePlan {
	p := framePlan{groups: make([]action, groups), top: actionRebuild}
	for i := range p.groups {
		p.groups[i] = actionRebuild
	}
	return p
}

// rebuildPlan schedules a full rebuild of every structure with the
// counts unchanged.
func (s *scheduler) rebuildPlan(groups int) framePlan {
	return s.initialPlan(groups)
}

// updatePlan schedules one frame of count updates. Groups whose count is
// not larger than minActivity are skipped. built and topBuilt report
// which structures have content to update. The top level is always
// dispatched, even when every group is skipped.
func (s *scheduler) updatePlan(counts []uint64, built []bool, topBuilt bool, minActivity uint64) framePlan {
	p := framePlan{groups: make([]action, len(built))}
	for i := range p.groups {
		if counts[i] <= minActivity {
			p.groups[i] = actionSkip
			continue
		}
		p.groups[i] = s.actionFor(rtcore.KindBottomLevel, built[i])
	}
	p.top = s.actionFor(rtcore.KindTopLevel, topBuilt)
	return p
}

// actionFor applies the dispatch policy to one structure.
func (s *scheduler) actionFor(level rtcore.Kind, entryBuilt bool) action {
	if decide(level, s.wasBuilt() && entryBuilt, s.buildMode, s.updateMode).PerformUpdate {
		return actionUpdate
	}
	return actionRebuild
}

// policy returns the dispatch policy realizing a scheduled action.
func (s *scheduler) policy(a action) dispatchPolicy {
	return dispatchPolicy{
		PerformUpdate: a == actionUpdate,
		Preference:    s.buildMode.preference(),
	}
}
