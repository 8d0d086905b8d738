package backend

import (
	"errors"

	"github.com/gogpu/accel/rtcore"
)

// Backend names.
const (
	// Native is the HAL-backed GPU device of backend/native.
	Native = "native"

	// Soft is the software device of backend/soft.
	Soft = "soft"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or fails to open.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrRequirementsNotMet is returned when no registered backend meets
	// the requirements.
	ErrRequirementsNotMet = errors.New("backend: no backend meets the requirements")
)

// Device is a device that records its own commands.
//
// Backends must be registered via Register() and are opened via Open() or
// OpenDefault().
type Device interface {
	rtcore.Device
	rtcore.CommandContext

	// Close releases all device resources.
	// The device should not be used after Close is called.
	Close()
}

// Requirements filters the backends OpenDefault may return.
type Requirements struct {
	// RayTracing requires acceleration structure support.
	RayTracing bool
}

// satisfiedBy reports whether caps meet r.
func (r Requirements) satisfiedBy(caps rtcore.Capabilities) bool {
	return !r.RayTracing || caps.RayTracing
}
