package accel

import "testing"

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.buildMode != BuildModeFastTrace {
		t.Errorf("buildMode = %v, want FastTrace", o.buildMode)
	}
	if o.updateMode != UpdateModeNone {
		t.Errorf("updateMode = %v, want None", o.updateMode)
	}
	if o.minActivity != 0 {
		t.Errorf("minActivity = %d, want 0", o.minActivity)
	}
	if o.label != "accel" {
		t.Errorf("label = %q, want accel", o.label)
	}
}

func TestOptions(t *testing.T) {
	o := defaultOptions()
	for _, opt := range []Option{
		WithBuildMode(BuildModeFastBuild),
		WithUpdateMode(UpdateModeTLASOnly),
		WithMinUpdateActivity(16),
		WithLabel("photons"),
		WithLabel(""),
	} {
		opt(&o)
	}
	if o.buildMode != BuildModeFastBuild || o.updateMode != UpdateModeTLASOnly {
		t.Errorf("modes = %v/%v", o.buildMode, o.updateMode)
	}
	if o.minActivity != 16 {
		t.Errorf("minActivity = %d, want 16", o.minActivity)
	}
	if o.label != "photons" {
		t.Errorf("label = %q, want photons (empty label ignored)", o.label)
	}
}

func TestWithLabelNamesBuffers(t *testing.T) {
	env := newTestEnv(t, []uint64{1, 1})
	env.newStructure(t, WithLabel("photons"))

	want := map[string]bool{
		"photons.blas0":          false,
		"photons.blas1":          false,
		"photons.blas_scratch":   false,
		"photons.tlas":           false,
		"photons.tlas_scratch":   false,
		"photons.tlas_instances": false,
	}
	for _, l := range env.dev.LiveBuffers() {
		if _, ok := want[l]; ok {
			want[l] = true
		}
	}
	for l, found := range want {
		if !found {
			t.Errorf("no buffer labeled %q", l)
		}
	}
}
