package rtcore

import (
	_ "embed"
	"encoding/binary"
	"fmt"
)

// clearAABBShaderSource resets AABB minimum corners to a sentinel.
//
//go:embed shaders/clear_aabb.wgsl
var clearAABBShaderSource string

// ClearAABBEntryPoint names the AABB clear kernel.
const ClearAABBEntryPoint = "clear_aabb"

// ClearAABBWorkgroupSize is the workgroup size declared by the kernel.
const ClearAABBWorkgroupSize = 256

// Clear kernel binding slots.
const (
	ClearAABBSlotParams  = 0
	ClearAABBSlotAABBs   = 1
	ClearAABBSlotCounter = 2
)

// ClearAABBParamsSize is the byte size of the kernel's uniform block.
const ClearAABBParamsSize = 32

// Sentinel bit patterns written into the minimum corner.
const (
	// SentinelZero writes 0.0.
	SentinelZero uint32 = 0

	// SentinelNaN writes a quiet NaN, which fails every comparison.
	SentinelNaN uint32 = 0x7fc00000
)

// ClearAABBShaderSource returns the WGSL source of the AABB clear kernel.
func ClearAABBShaderSource() string {
	return clearAABBShaderSource
}

// ClearAABBProgramDesc returns the program descriptor of the clear kernel.
func ClearAABBProgramDesc(label string) ComputeProgramDesc {
	return ComputeProgramDesc{
		Label:         label,
		Source:        clearAABBShaderSource,
		EntryPoint:    ClearAABBEntryPoint,
		WorkgroupSize: ClearAABBWorkgroupSize,
		Bindings: []BindingLayout{
			{Slot: ClearAABBSlotParams, Type: BindingTypeUniformBuffer},
			{Slot: ClearAABBSlotAABBs, Type: BindingTypeStorageBuffer},
			{Slot: ClearAABBSlotCounter, Type: BindingTypeReadOnlyStorageBuffer},
		},
	}
}

// ClearAABBParams is the uniform block of the AABB clear kernel.
// Must match ClearParams in clear_aabb.wgsl.
type ClearAABBParams struct {
	ElementCount uint32
	StrideWords  uint32 // AABB stride in 32-bit words
	Sentinel     uint32 // bit pattern written to min.xyz
	UseCounter   uint32 // 0 or 1
	CounterIndex uint32 // component of the counter buffer to compare against
}

// Encode returns the ClearAABBParamsSize-byte uniform payload.
func (p ClearAABBParams) Encode() []byte {
	b := make([]byte, ClearAABBParamsSize)
	binary.LittleEndian.PutUint32(b[0:], p.ElementCount)
	binary.LittleEndian.PutUint32(b[4:], p.StrideWords)
	binary.LittleEndian.PutUint32(b[8:], p.Sentinel)
	binary.LittleEndian.PutUint32(b[12:], p.UseCounter)
	binary.LittleEndian.PutUint32(b[16:], p.CounterIndex)
	return b
}

// DecodeClearAABBParams parses a uniform payload.
func DecodeClearAABBParams(b []byte) (ClearAABBParams, error) {
	if len(b) < ClearAABBParamsSize {
		return ClearAABBParams{}, fmt.Errorf("rtcore: clear params need %d bytes, got %d", ClearAABBParamsSize, len(b))
	}
	return ClearAABBParams{
		ElementCount: binary.LittleEndian.Uint32(b[0:]),
		StrideWords:  binary.LittleEndian.Uint32(b[4:]),
		Sentinel:     binary.LittleEndian.Uint32(b[8:]),
		UseCounter:   binary.LittleEndian.Uint32(b[12:]),
		CounterIndex: binary.LittleEndian.Uint32(b[16:]),
	}, nil
}

// WorkgroupCount returns the number of workgroups covering threads
// invocations of size-wide groups.
func WorkgroupCount(threads uint64, size uint32) uint32 {
	if size == 0 || threads == 0 {
		return 0
	}
	return uint32((threads + uint64(size) - 1) / uint64(size))
}
