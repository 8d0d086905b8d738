package backend_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/accel/backend"
	"github.com/gogpu/accel/backend/soft"
)

// trackedDevice records Close calls.
type trackedDevice struct {
	*soft.Device
	closed *bool
}

func (d trackedDevice) Close() {
	*d.closed = true
	d.Device.Close()
}

func TestSoftRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.Soft) {
		t.Fatal("soft backend not registered on import")
	}
	if !slices.Contains(backend.Available(), backend.Soft) {
		t.Errorf("Available() = %v, want it to contain %q", backend.Available(), backend.Soft)
	}
	d, err := backend.Open(backend.Soft)
	if err != nil {
		t.Fatalf("Open(soft) error = %v", err)
	}
	defer d.Close()
	if !d.Capabilities().RayTracing {
		t.Error("soft device reports no ray tracing")
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := backend.Open("missing"); !errors.Is(err, backend.ErrBackendNotAvailable) {
		t.Errorf("Open(missing) error = %v, want ErrBackendNotAvailable", err)
	}

	boom := errors.New("boom")
	backend.Register("broken", func() (backend.Device, error) { return nil, boom })
	defer backend.Unregister("broken")

	_, err := backend.Open("broken")
	if !errors.Is(err, backend.ErrBackendNotAvailable) || !errors.Is(err, boom) {
		t.Errorf("Open(broken) error = %v, want ErrBackendNotAvailable and boom", err)
	}
}

func TestOpenDefaultSkipsUnsuitable(t *testing.T) {
	var closed bool
	backend.Register(backend.Native, func() (backend.Device, error) {
		return trackedDevice{Device: soft.New(soft.WithoutRayTracing()), closed: &closed}, nil
	})
	defer backend.Unregister(backend.Native)

	d, name, err := backend.OpenDefault(backend.Requirements{RayTracing: true})
	if err != nil {
		t.Fatalf("OpenDefault() error = %v", err)
	}
	defer d.Close()
	if name != backend.Soft {
		t.Errorf("OpenDefault() = %q, want %q", name, backend.Soft)
	}
	if !closed {
		t.Error("unsuitable device was not closed")
	}

	// Without requirements the higher priority backend wins.
	d2, name, err := backend.OpenDefault(backend.Requirements{})
	if err != nil {
		t.Fatal(err)
	}
	defer d2.Close()
	if name != backend.Native {
		t.Errorf("OpenDefault() = %q, want %q", name, backend.Native)
	}
}

func TestOpenDefaultNothingSuitable(t *testing.T) {
	backend.Unregister(backend.Soft)
	defer backend.Register(backend.Soft, func() (backend.Device, error) { return soft.New(), nil })

	backend.Register("compute", func() (backend.Device, error) {
		return soft.New(soft.WithoutRayTracing()), nil
	})
	defer backend.Unregister("compute")

	_, _, err := backend.OpenDefault(backend.Requirements{RayTracing: true})
	if !errors.Is(err, backend.ErrRequirementsNotMet) {
		t.Errorf("OpenDefault() error = %v, want ErrRequirementsNotMet", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("MustOpenDefault() did not panic")
		}
	}()
	backend.MustOpenDefault(backend.Requirements{RayTracing: true})
}
