package accel

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/accel/rtcore"
)

// DefaultBindingName is the shader variable Bind writes the top level to.
const DefaultBindingName = "gCustomAccel"

// Structure is a two-level acceleration structure over procedural geometry
// groups. See the package documentation for the build lifecycle.
type Structure struct {
	dev  rtcore.Device
	opts options

	minActivity atomic.Uint64

	groups  []GroupDescriptor
	sizing  *Sizing
	blas    *bottomLevelSet
	scratch scratchBuffer
	tlas    *topLevel

	sched   scheduler
	stats   Stats
	clearer *Clearer
}

// New creates a Structure with one group per (count, address) pair and
// records its first build into rc. counts are also the capacities of the
// groups for the whole generation.
//
// New returns an error wrapping rtcore.ErrRayTracingUnsupported if dev
// cannot build acceleration structures, and ErrLengthMismatch if counts
// and addrs differ in length.
func New(dev rtcore.Device, rc rtcore.CommandContext, counts []uint64, addrs []rtcore.DeviceAddress, opts ...Option) (*Structure, error) {
	groups, err := groupsOf(counts, addrs)
	if err != nil {
		return nil, err
	}
	return NewGroups(dev, rc, groups, opts...)
}

// NewSingle creates a Structure over a single group.
func NewSingle(dev rtcore.Device, rc rtcore.CommandContext, count uint64, addr rtcore.DeviceAddress, opts ...Option) (*Structure, error) {
	return NewGroups(dev, rc, []GroupDescriptor{{Count: count, Data: addr}}, opts...)
}

// NewGroups creates a Structure from group descriptors.
func NewGroups(dev rtcore.Device, rc rtcore.CommandContext, groups []GroupDescriptor, opts ...Option) (*Structure, error) {
	if dev == nil || rc == nil {
		return nil, errors.New("accel: nil device or command context")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if !o.buildMode.valid() {
		return nil, fmt.Errorf("%w: build mode %d", ErrInvalidMode, int(o.buildMode))
	}
	if !o.updateMode.valid() {
		return nil, fmt.Errorf("%w: update mode %d", ErrInvalidMode, int(o.updateMode))
	}
	if !dev.Capabilities().RayTracing {
		return nil, fmt.Errorf("accel: %w", rtcore.ErrRayTracingUnsupported)
	}

	s := &Structure{
		dev:  dev,
		opts: o,
		blas: newBottomLevelSet(dev, o.label, inputFlags(rtcore.KindBottomLevel, o.buildMode, o.updateMode)),
		tlas: newTopLevel(dev, o.label, inputFlags(rtcore.KindTopLevel, o.buildMode, o.updateMode)),
		sched: scheduler{
			buildMode:  o.buildMode,
			updateMode: o.updateMode,
		},
	}
	s.minActivity.Store(o.minActivity)

	if err := s.create(rc, groups); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// MustNew is like New but panics on error.
// Use only when errors are programming mistakes.
func MustNew(dev rtcore.Device, rc rtcore.CommandContext, counts []uint64, addrs []rtcore.DeviceAddress, opts ...Option) *Structure {
	s, err := New(dev, rc, counts, addrs, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func groupsOf(counts []uint64, addrs []rtcore.DeviceAddress) ([]GroupDescriptor, error) {
	if len(counts) != len(addrs) {
		return nil, fmt.Errorf("%w: %d counts, %d addresses", ErrLengthMismatch, len(counts), len(addrs))
	}
	if len(counts) == 0 {
		return nil, ErrNoGroups
	}
	groups := make([]GroupDescriptor, len(counts))
	for i := range counts {
		groups[i] = GroupDescriptor{Count: counts[i], Data: addrs[i]}
	}
	return groups, nil
}

// Recreate tears down every buffer and builds a new generation over the
// given groups. Invalid input is rejected before the current generation
// is touched.
func (s *Structure) Recreate(rc rtcore.CommandContext, counts []uint64, addrs []rtcore.DeviceAddress) error {
	groups, err := groupsOf(counts, addrs)
	if err != nil {
		return err
	}
	return s.create(rc, groups)
}

// create sizes, allocates and builds a generation. Sizing errors leave the
// current generation untouched; any later error leaves no generation, or
// a failed one if the first build failed.
func (s *Structure) create(rc rtcore.CommandContext, groups []GroupDescriptor) error {
	sizing, err := QuerySizing(s.dev, groups, s.blas.flags, s.tlas.flags)
	if err != nil {
		return err
	}

	s.clearData()
	gen := s.sched.begin()

	if err := s.blas.rebuildAll(groups, sizing); err != nil {
		s.clearData()
		return err
	}
	s.scratch, err = newScratchBuffer(s.dev, s.opts.label+".blas_scratch", sizing.ScratchSize)
	if err != nil {
		s.clearData()
		return err
	}
	if err := s.tlas.allocate(s.blas, sizing.TopLevel); err != nil {
		s.clearData()
		return err
	}
	s.groups = append([]GroupDescriptor(nil), groups...)
	s.sizing = sizing
	s.stats = Stats{Generation: gen, Groups: len(groups)}

	Logger().Info("accel: generation created",
		"label", s.opts.label,
		"generation", gen,
		"groups", len(groups),
		"resultBytes", sizing.TotalResultSize(),
		"scratchBytes", sizing.ScratchSize+sizing.TopLevel.ScratchSize,
		"buildMode", s.opts.buildMode,
		"updateMode", s.opts.updateMode)

	if err := s.execute(rc, s.sched.initialPlan(len(groups))); err != nil {
		return err
	}
	s.sched.complete()
	return nil
}

// clearData releases every resource of the current generation.
func (s *Structure) clearData() {
	if s.sizing != nil {
		Logger().Info("accel: generation released", "label", s.opts.label, "generation", s.sched.generation)
	}
	s.blas.release()
	s.scratch.release(s.dev)
	s.tlas.release()
	s.groups = nil
	s.sizing = nil
	s.sched.reset()
}

// execute records the dispatches of plan. The first error fails the
// generation.
func (s *Structure) execute(rc rtcore.CommandContext, p framePlan) error {
	log := Logger()
	for i, a := range p.groups {
		if a == actionSkip {
			log.Debug("accel: bottom level skipped", "group", i)
			continue
		}
		h := blasHandle(i)
		log.Debug("accel: bottom level dispatch", "group", i, "action", a, "count", s.blas.entry(h).count())
		if err := s.blas.dispatch(rc, h, s.scratch, s.sched.policy(a)); err != nil {
			return s.failed(fmt.Errorf("%w: bottom level %d (%s): %w", ErrBuildFailed, i, a, err))
		}
	}

	log.Debug("accel: top level dispatch", "action", p.top, "instances", s.blas.len())
	if err := s.tlas.rebuild(rc, s.blas, s.sched.policy(p.top)); err != nil {
		return s.failed(fmt.Errorf("%w: top level (%s): %w", ErrBuildFailed, p.top, err))
	}
	s.stats.record(p)
	return nil
}

func (s *Structure) failed(err error) error {
	s.sched.fail()
	Logger().Warn("accel: generation failed", "label", s.opts.label, "generation", s.sched.generation, "err", err)
	return err
}

// Update re-issues a full rebuild of every group and the top level with the
// primitive counts unchanged. The minimum update activity does not apply.
func (s *Structure) Update(rc rtcore.CommandContext) error {
	if err := s.sched.ready(); err != nil {
		return err
	}
	s.stats.Frames++
	return s.execute(rc, s.sched.rebuildPlan(s.blas.len()))
}

// UpdateCount is UpdateCounts with a single count.
func (s *Structure) UpdateCount(rc rtcore.CommandContext, count uint64) error {
	return s.UpdateCounts(rc, []uint64{count})
}

// UpdateCounts sets the live primitive count of every group and records
// the frame's dispatches. counts needs at least one entry per group;
// extra entries are ignored. Groups whose count is not larger than the
// minimum update activity keep their previous content.
func (s *Structure) UpdateCounts(rc rtcore.CommandContext, counts []uint64) error {
	if err := s.sched.ready(); err != nil {
		return err
	}
	minActivity := s.minActivity.Load()
	if _, err := s.blas.updateCounts(counts, minActivity); err != nil {
		return err
	}
	s.stats.Frames++
	plan := s.sched.updatePlan(counts, s.blas.builtFlags(), s.tlas.built, minActivity)
	return s.execute(rc, plan)
}

// SetMinUpdateActivity sets the count a group has to exceed to be built
// in an update. It takes effect on the next UpdateCounts.
// Safe for concurrent use.
func (s *Structure) SetMinUpdateActivity(n uint64) {
	s.minActivity.Store(n)
}

// MinUpdateActivity returns the current minimum update activity.
func (s *Structure) MinUpdateActivity() uint64 {
	return s.minActivity.Load()
}

// Bind writes the top level to DefaultBindingName in scope.
func (s *Structure) Bind(scope rtcore.ShaderScope) error {
	return s.BindAs(scope, DefaultBindingName)
}

// BindAs writes the top level to the named variable in scope. The
// structure must have a successfully built generation.
func (s *Structure) BindAs(scope rtcore.ShaderScope, name string) error {
	if err := s.sched.ready(); err != nil {
		return err
	}
	return scope.SetAccelerationStructure(name, s.tlas.object)
}

// SetInstanceTransform replaces the transform of instance i. The instance
// table is uploaded again before the next top-level dispatch.
func (s *Structure) SetInstanceTransform(i int, m rtcore.Transform) error {
	if s.blas.len() == 0 {
		return ErrNotBuilt
	}
	return s.tlas.setTransform(i, m)
}

// RefreshTransforms resets every instance transform to identity.
func (s *Structure) RefreshTransforms() {
	s.tlas.refreshTransforms()
}

// ClearAABBBuffers resets the minimum corner of every AABB in targets, to
// NaN if clearToNaN is set and to zero otherwise. If counter is not
// rtcore.InvalidID, its k-th uint32 is the number of live leading
// elements of targets[k], which are left untouched.
func (s *Structure) ClearAABBBuffers(rc rtcore.CommandContext, targets []rtcore.BufferID, clearToNaN bool, counter rtcore.BufferID) error {
	if s.clearer == nil {
		s.clearer = NewClearer(s.dev, s.opts.label)
	}
	return s.clearer.Clear(rc, targets, clearToNaN, counter)
}

// Close releases every resource. The Structure cannot be updated or bound
// afterwards; Recreate starts a new generation.
func (s *Structure) Close() {
	s.clearData()
	if s.clearer != nil {
		s.clearer.Close()
		s.clearer = nil
	}
}

// Generation returns the number of the current generation, starting at 0.
func (s *Structure) Generation() uint64 {
	return s.sched.generation
}

// GroupCount returns the number of groups of the current generation.
func (s *Structure) GroupCount() int {
	return s.blas.len()
}

// Counts returns the live primitive count of every group.
func (s *Structure) Counts() []uint64 {
	out := make([]uint64, s.blas.len())
	for i := range out {
		out[i] = s.blas.entry(blasHandle(i)).count()
	}
	return out
}

// Capacities returns the construction count of every group.
func (s *Structure) Capacities() []uint64 {
	out := make([]uint64, s.blas.len())
	for i := range out {
		out[i] = s.blas.entry(blasHandle(i)).capacity
	}
	return out
}

// Sizing returns a copy of the sizing of the current generation.
func (s *Structure) Sizing() (Sizing, bool) {
	if s.sizing == nil {
		return Sizing{}, false
	}
	c := *s.sizing
	c.BottomLevel = append([]EntrySizing(nil), s.sizing.BottomLevel...)
	return c, true
}

// TopLevel returns the top-level API object.
func (s *Structure) TopLevel() rtcore.AccelerationStructureID {
	return s.tlas.object
}

// BottomLevel returns the API object of group i.
func (s *Structure) BottomLevel(i int) (rtcore.AccelerationStructureID, bool) {
	if i < 0 || i >= s.blas.len() {
		return rtcore.InvalidID, false
	}
	return s.blas.object(blasHandle(i)), true
}

// Instances returns the instance table as serialized for the next
// top-level dispatch.
func (s *Structure) Instances() []rtcore.InstanceDesc {
	if s.blas.len() == 0 {
		return nil
	}
	return s.tlas.descs(s.blas)
}

// BuildMode returns the build mode.
func (s *Structure) BuildMode() BuildMode { return s.opts.buildMode }

// UpdateMode returns the update mode.
func (s *Structure) UpdateMode() UpdateMode { return s.opts.updateMode }

// Stats returns dispatch counters and the memory footprint.
func (s *Structure) Stats() Stats {
	st := s.stats
	result, tlasScratch, instances := s.tlas.bytes()
	st.ResultBytes = s.blas.resultBytes() + result
	st.ScratchBytes = s.scratch.size + tlasScratch
	st.InstanceBytes = instances
	return st
}
