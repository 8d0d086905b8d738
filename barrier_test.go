package accel

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gogpu/accel/rtcore"
)

// recordingContext logs commands as strings.
type recordingContext struct {
	log      []string
	buildErr error
}

func (r *recordingContext) UAVBarrier(b rtcore.BufferID) {
	r.log = append(r.log, fmt.Sprintf("uav(%d)", b))
}

func (r *recordingContext) ResourceBarrier(b rtcore.BufferID, s rtcore.ResourceState) {
	r.log = append(r.log, fmt.Sprintf("transition(%d->%v)", b, s))
}

func (r *recordingContext) BuildAccelerationStructure(*rtcore.BuildDesc) error {
	r.log = append(r.log, "build")
	return r.buildErr
}

func (r *recordingContext) Dispatch(rtcore.ProgramID, []rtcore.Binding, [3]uint32) error {
	r.log = append(r.log, "dispatch")
	return nil
}

func runPlan(t *testing.T, p dispatchPlan, buildErr error) []string {
	t.Helper()
	rc := &recordingContext{buildErr: buildErr}
	err := p.run(rc, func() error { return rc.BuildAccelerationStructure(nil) })
	if !errors.Is(err, buildErr) {
		t.Fatalf("run() error = %v, want %v", err, buildErr)
	}
	return rc.log
}

func equalLog(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("log = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBottomLevelPlan(t *testing.T) {
	got := runPlan(t, bottomLevelPlan(1, 2), nil)
	equalLog(t, got, []string{"uav(1)", "uav(2)", "build", "uav(2)"})
}

func TestTopLevelPlan(t *testing.T) {
	got := runPlan(t, topLevelPlan(3, 4, 5), nil)
	equalLog(t, got, []string{"transition(3->NonPixelShader)", "uav(4)", "uav(5)", "build", "uav(5)"})
}

func TestPlanSkipsTrailingBarriersOnError(t *testing.T) {
	boom := errors.New("boom")
	got := runPlan(t, bottomLevelPlan(1, 2), boom)
	equalLog(t, got, []string{"uav(1)", "uav(2)", "build"})
}

func TestBarrierString(t *testing.T) {
	if got := (barrier{kind: barrierUAV, buffer: 7}).String(); got != "uav(7)" {
		t.Errorf("String() = %q", got)
	}
	b := barrier{kind: barrierTransition, buffer: 2, state: rtcore.ResourceStateNonPixelShader}
	if got := b.String(); got != "transition(2->NonPixelShader)" {
		t.Errorf("String() = %q", got)
	}
}

func TestStructureRecordsThroughAnyContext(t *testing.T) {
	env := newTestEnv(t, []uint64{2})
	s := env.newStructure(t)
	env.dev.ResetCommands()

	// Commands recorded elsewhere never reach the device.
	rc := &recordingContext{}
	if err := s.UpdateCounts(rc, []uint64{1}); err != nil {
		t.Fatal(err)
	}
	want := []string{"uav", "uav", "build", "uav", "transition", "uav", "uav", "build", "uav"}
	if len(rc.log) != len(want) {
		t.Fatalf("log = %v", rc.log)
	}
	for i := range want {
		if !strings.HasPrefix(rc.log[i], want[i]) {
			t.Errorf("log[%d] = %q, want %s", i, rc.log[i], want[i])
		}
	}
	if n := len(env.dev.Commands()); n != 0 {
		t.Errorf("device recorded %d commands", n)
	}
}
