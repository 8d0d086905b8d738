package soft

import (
	"fmt"

	"github.com/gogpu/accel/rtcore"
)

// Scope is a shader variable scope that only accepts built structures.
type Scope struct {
	dev   *Device
	bound map[string]rtcore.AccelerationStructureID
}

var _ rtcore.ShaderScope = (*Scope)(nil)

// NewScope creates an empty variable scope on d.
func (d *Device) NewScope() *Scope {
	return &Scope{dev: d, bound: make(map[string]rtcore.AccelerationStructureID)}
}

// SetAccelerationStructure binds as to name.
func (s *Scope) SetAccelerationStructure(name string, as rtcore.AccelerationStructureID) error {
	if name == "" {
		return fmt.Errorf("soft: empty variable name")
	}
	info, ok := s.dev.StructureInfo(as)
	if !ok {
		return fmt.Errorf("%w: %d", rtcore.ErrUnknownAccelerationStructure, as)
	}
	if !info.Built {
		return fmt.Errorf("%w: %q", ErrNotBuilt, name)
	}
	if info.Kind != rtcore.KindTopLevel {
		return fmt.Errorf("soft: %q: only top-level structures can be traversed", name)
	}
	s.bound[name] = as
	return nil
}

// Lookup returns the structure bound to name.
func (s *Scope) Lookup(name string) (rtcore.AccelerationStructureID, bool) {
	as, ok := s.bound[name]
	return as, ok
}
