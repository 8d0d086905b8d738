//go:build !nogpu

package native

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/gogpu/accel"
	"github.com/gogpu/accel/rtcore"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

func TestConvertBufferUsage(t *testing.T) {
	base := gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	tests := []struct {
		name string
		in   rtcore.BufferUsage
		want gputypes.BufferUsage
	}{
		{"none", 0, base},
		{"uniform", rtcore.BufferUsageUniform, base | gputypes.BufferUsageUniform},
		{"storage", rtcore.BufferUsageStorage, base | gputypes.BufferUsageStorage},
		{"acceleration structure", rtcore.BufferUsageAccelerationStructure, base | gputypes.BufferUsageStorage},
		{"build input", rtcore.BufferUsageBuildInput | rtcore.BufferUsageMapWrite, base | gputypes.BufferUsageStorage},
		{"map read dropped", rtcore.BufferUsageMapRead, base},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := convertBufferUsage(tt.in); got != tt.want {
				t.Errorf("convertBufferUsage(%#x) = %#x, want %#x", tt.in, got, tt.want)
			}
		})
	}
}

func TestConvertBindingType(t *testing.T) {
	tests := []struct {
		in   rtcore.BindingType
		want gputypes.BufferBindingType
		ok   bool
	}{
		{rtcore.BindingTypeUniformBuffer, gputypes.BufferBindingTypeUniform, true},
		{rtcore.BindingTypeStorageBuffer, gputypes.BufferBindingTypeStorage, true},
		{rtcore.BindingTypeReadOnlyStorageBuffer, gputypes.BufferBindingTypeReadOnlyStorage, true},
		{rtcore.BindingType(0), 0, false},
	}
	for _, tt := range tests {
		got, ok := convertBindingType(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("convertBindingType(%d) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	if _, err := bindLayoutEntries([]rtcore.BindingLayout{{Slot: 3}}); err == nil {
		t.Error("bindLayoutEntries() accepted an untyped binding")
	}
}

func TestSpirvWords(t *testing.T) {
	b := []byte{0x03, 0x02, 0x23, 0x07, 0x01, 0x00, 0x00, 0x00, 0xff}
	words := spirvWords(b)
	if len(words) != 2 {
		t.Fatalf("len(words) = %d, want 2", len(words))
	}
	if words[0] != 0x07230203 || words[1] != 1 {
		t.Errorf("words = %#x", words)
	}
}

func TestCompileClearShader(t *testing.T) {
	words, err := CompileWGSL(rtcore.ClearAABBShaderSource())
	if err != nil {
		t.Fatalf("CompileWGSL() error = %v", err)
	}
	if len(words) == 0 || words[0] != 0x07230203 {
		t.Errorf("SPIR-V does not start with the magic number")
	}
	before, _ := spirvCache.Stats()
	if _, err := CompileWGSL(rtcore.ClearAABBShaderSource()); err != nil {
		t.Fatal(err)
	}
	if after, _ := spirvCache.Stats(); after != before+1 {
		t.Errorf("second compile was not served from the cache")
	}
	if _, err := CompileWGSL(""); !errors.Is(err, ErrEmptyShader) {
		t.Errorf("CompileWGSL(\"\") error = %v, want ErrEmptyShader", err)
	}
}

func TestNewRequiresDevice(t *testing.T) {
	if _, err := New(nil, nil, nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("New(nil, nil) error = %v, want ErrNilDevice", err)
	}
}

type plainProvider struct{}

func (plainProvider) Device() gpucontext.Device   { return nil }
func (plainProvider) Queue() gpucontext.Queue     { return nil }
func (plainProvider) Adapter() gpucontext.Adapter { return nil }
func (plainProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

type wrongHALProvider struct{ plainProvider }

func (wrongHALProvider) HalDevice() any { return "device" }
func (wrongHALProvider) HalQueue() any  { return nil }

func TestNewFromProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider gpucontext.DeviceProvider
		want     error
	}{
		{"nil", nil, ErrNilDevice},
		{"no HAL", plainProvider{}, ErrNoHAL},
		{"wrong types", wrongHALProvider{}, ErrNoHAL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFromProvider(tt.provider); !errors.Is(err, tt.want) {
				t.Errorf("NewFromProvider() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRayTracingUnsupported(t *testing.T) {
	d := newDevice(nil, nil, nil)

	if d.Capabilities().RayTracing {
		t.Error("Capabilities().RayTracing = true")
	}
	if _, err := d.PrebuildInfo(&rtcore.BuildInputs{}); !errors.Is(err, rtcore.ErrRayTracingUnsupported) {
		t.Errorf("PrebuildInfo() error = %v", err)
	}
	if _, err := d.CreateAccelerationStructure(&rtcore.AccelerationStructureDesc{}); !errors.Is(err, rtcore.ErrRayTracingUnsupported) {
		t.Errorf("CreateAccelerationStructure() error = %v", err)
	}
	if err := d.BuildAccelerationStructure(&rtcore.BuildDesc{}); !errors.Is(err, rtcore.ErrRayTracingUnsupported) {
		t.Errorf("BuildAccelerationStructure() error = %v", err)
	}
	if got := d.BufferAddress(1); got != rtcore.NullAddress {
		t.Errorf("BufferAddress() = %#x, want NullAddress", got)
	}

	_, err := accel.New(d, d, []uint64{4}, []rtcore.DeviceAddress{0})
	if !errors.Is(err, rtcore.ErrRayTracingUnsupported) {
		t.Errorf("accel.New() error = %v, want ErrRayTracingUnsupported", err)
	}
}

func TestDeviceValidation(t *testing.T) {
	d := newDevice(nil, nil, nil)

	if _, err := d.CreateBuffer(&rtcore.BufferDesc{Label: "empty"}); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("CreateBuffer(0) error = %v, want ErrInvalidSize", err)
	}
	if err := d.WriteBuffer(42, 0, []byte{1}); !errors.Is(err, rtcore.ErrUnknownBuffer) {
		t.Errorf("WriteBuffer(unknown) error = %v, want ErrUnknownBuffer", err)
	}
	if _, err := d.ReadBuffer(42, 0, 4); !errors.Is(err, rtcore.ErrUnknownBuffer) {
		t.Errorf("ReadBuffer(unknown) error = %v, want ErrUnknownBuffer", err)
	}
	if err := d.Dispatch(42, nil, [3]uint32{1, 1, 1}); !errors.Is(err, rtcore.ErrUnknownProgram) {
		t.Errorf("Dispatch(unknown) error = %v, want ErrUnknownProgram", err)
	}
	if _, ok := d.BufferDesc(42); ok {
		t.Error("BufferDesc(unknown) ok = true")
	}

	d.Close()
	d.Close()
	if _, err := d.CreateBuffer(&rtcore.BufferDesc{Size: 4}); !errors.Is(err, ErrClosed) {
		t.Errorf("CreateBuffer after Close error = %v, want ErrClosed", err)
	}
}

func TestClearOnGPU(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping GPU test in short mode")
	}
	d, err := Open()
	if err != nil {
		t.Skipf("no GPU: %v", err)
	}
	defer d.Close()

	const n = 300
	id, err := d.CreateBuffer(&rtcore.BufferDesc{
		Label:       "aabbs",
		Size:        n * rtcore.AABBSize,
		Usage:       rtcore.BufferUsageStorage,
		ElementSize: rtcore.AABBSize,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer d.DestroyBuffer(id)

	data := make([]byte, n*rtcore.AABBSize)
	for i := 0; i < n*6; i++ {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(1))
	}
	if err := d.WriteBuffer(id, 0, data); err != nil {
		t.Fatal(err)
	}

	cl := accel.NewClearer(d, "gpu")
	defer cl.Close()
	if err := cl.Clear(d, []rtcore.BufferID{id}, true, rtcore.InvalidID); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	out, err := d.ReadBuffer(id, 0, n*rtcore.AABBSize)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		base := i * rtcore.AABBSize
		if w := binary.LittleEndian.Uint32(out[base:]); w != rtcore.SentinelNaN {
			t.Fatalf("element %d min.x = %#x, want NaN", i, w)
		}
		if v := math.Float32frombits(binary.LittleEndian.Uint32(out[base+12:])); v != 1 {
			t.Fatalf("element %d max.x = %v, want 1", i, v)
		}
	}
}
