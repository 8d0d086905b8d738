package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Factory opens a device.
type Factory func() (Device, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for OpenDefault (first suitable wins).
	// Native > Soft (Soft is the fallback).
	priority = []string{Native, Soft}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the sorted names of the registered backends.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Open opens the named backend.
func Open(name string) (Device, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrBackendNotAvailable, name)
	}
	d, err := factory()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackendNotAvailable, name, err)
	}
	return d, nil
}

// OpenDefault opens the first backend in priority order that opens
// successfully and meets req, followed by any other registered backend in
// name order. Devices that do not meet req are closed.
func OpenDefault(req Requirements) (Device, string, error) {
	var errs []error
	tried := make(map[string]bool)
	for _, name := range append(slices.Clone(priority), Available()...) {
		if tried[name] || !IsRegistered(name) {
			continue
		}
		tried[name] = true

		d, err := Open(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !req.satisfiedBy(d.Capabilities()) {
			d.Close()
			continue
		}
		return d, name, nil
	}
	return nil, "", errors.Join(append([]error{ErrRequirementsNotMet}, errs...)...)
}

// MustOpenDefault is like OpenDefault but panics on error.
func MustOpenDefault(req Requirements) Device {
	d, _, err := OpenDefault(req)
	if err != nil {
		panic(err)
	}
	return d
}
