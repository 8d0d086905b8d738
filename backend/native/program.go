//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/accel/internal/shadercache"
	"github.com/gogpu/accel/rtcore"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// program holds the pipeline objects of one compute program.
type program struct {
	desc       rtcore.ComputeProgramDesc
	module     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

// destroy releases the pipeline objects in reverse creation order.
func (p *program) destroy(device hal.Device) {
	if device == nil {
		return
	}
	if p.pipeline != nil {
		device.DestroyComputePipeline(p.pipeline)
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
	}
	if p.module != nil {
		device.DestroyShaderModule(p.module)
	}
}

// spirvCache holds the SPIR-V of every compiled source.
var spirvCache = shadercache.New[[]uint32](32)

// CompileWGSL compiles WGSL source to SPIR-V words. Results are cached per
// process.
func CompileWGSL(source string) ([]uint32, error) {
	if source == "" {
		return nil, ErrEmptyShader
	}
	return spirvCache.GetOrCompile(shadercache.KeyOf(source, ""), func() ([]uint32, error) {
		spirv, err := naga.Compile(source)
		if err != nil {
			return nil, fmt.Errorf("native: compile shader: %w", err)
		}
		return spirvWords(spirv), nil
	})
}

// bindLayoutEntries converts a program binding layout.
func bindLayoutEntries(bindings []rtcore.BindingLayout) ([]gputypes.BindGroupLayoutEntry, error) {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(bindings))
	for _, b := range bindings {
		t, ok := convertBindingType(b.Type)
		if !ok {
			return nil, fmt.Errorf("native: binding %d has unknown type %d", b.Slot, b.Type)
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    b.Slot,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: t},
		})
	}
	return entries, nil
}

// CreateComputeProgram compiles the WGSL source with naga and creates the
// compute pipeline.
func (d *Device) CreateComputeProgram(desc *rtcore.ComputeProgramDesc) (rtcore.ProgramID, error) {
	entries, err := bindLayoutEntries(desc.Bindings)
	if err != nil {
		return rtcore.InvalidID, err
	}
	spirv, err := CompileWGSL(desc.Source)
	if err != nil {
		return rtcore.InvalidID, err
	}

	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return rtcore.InvalidID, ErrClosed
	}

	p := &program{desc: *desc}
	p.module, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return rtcore.InvalidID, fmt.Errorf("native: create shader module %q: %w", desc.Label, err)
	}
	p.bindLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		p.destroy(d.device)
		return rtcore.InvalidID, fmt.Errorf("native: create bind group layout: %w", err)
	}
	p.pipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroy(d.device)
		return rtcore.InvalidID, fmt.Errorf("native: create pipeline layout: %w", err)
	}
	p.pipeline, err = d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   desc.Label + "_pipeline",
		Layout:  p.pipeLayout,
		Compute: hal.ComputeState{Module: p.module, EntryPoint: desc.EntryPoint},
	})
	if err != nil {
		p.destroy(d.device)
		return rtcore.InvalidID, fmt.Errorf("native: create compute pipeline %q: %w", desc.EntryPoint, err)
	}

	id := rtcore.ProgramID(d.newID())
	d.mu.Lock()
	d.programs[id] = p
	d.mu.Unlock()

	slogger().Debug("native: compute program created", "label", desc.Label, "entry", desc.EntryPoint, "spirv_words", len(spirv))
	return id, nil
}

// DestroyComputeProgram releases a compute program.
func (d *Device) DestroyComputeProgram(id rtcore.ProgramID) {
	d.mu.Lock()
	p, ok := d.programs[id]
	if ok {
		delete(d.programs, id)
	}
	d.mu.Unlock()

	if ok {
		p.destroy(d.device)
	}
}

// Dispatch binds the buffers, records one compute pass and waits for it
// to complete.
func (d *Device) Dispatch(id rtcore.ProgramID, bindings []rtcore.Binding, groups [3]uint32) error {
	d.mu.RLock()
	p, ok := d.programs[id]
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if !ok {
		return fmt.Errorf("%w: %d", rtcore.ErrUnknownProgram, id)
	}
	limit := d.limits.MaxComputeWorkgroupsPerDimension
	for _, g := range groups {
		if g > limit {
			return fmt.Errorf("native: dispatch of %v workgroups exceeds %d per dimension", groups, limit)
		}
	}
	if groups[0] == 0 || groups[1] == 0 || groups[2] == 0 {
		return nil
	}

	entries := make([]gputypes.BindGroupEntry, 0, len(bindings))
	for _, b := range bindings {
		buf, err := d.lookup(b.Buffer)
		if err != nil {
			return fmt.Errorf("native: binding %d: %w", b.Slot, err)
		}
		size := b.Size
		if size == 0 {
			size = buf.desc.Size - b.Offset
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  b.Slot,
			Resource: gputypes.BufferBinding{Buffer: buf.raw.NativeHandle(), Offset: b.Offset, Size: size},
		})
	}

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.desc.Label + "_bind",
		Layout:  p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("native: create bind group: %w", err)
	}
	defer d.device.DestroyBindGroup(bg)

	return d.submit(p.desc.Label, func(encoder hal.CommandEncoder) {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: p.desc.Label + "_pass"})
		pass.SetPipeline(p.pipeline)
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch(groups[0], groups[1], groups[2])
		pass.End()
	})
}
