//go:build !nogpu

package native

import (
	"github.com/gogpu/accel/rtcore"
	"github.com/gogpu/gputypes"
)

// convertBufferUsage maps rtcore usages to WebGPU usages.
//
// Host-visibility hints are dropped: uploads go through Queue.WriteBuffer
// and readbacks through a staging copy, so every buffer gets CopyDst and
// CopySrc. Acceleration structure and build input buffers are plain
// storage buffers on a device without ray tracing.
func convertBufferUsage(u rtcore.BufferUsage) gputypes.BufferUsage {
	out := gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	if u&rtcore.BufferUsageUniform != 0 {
		out |= gputypes.BufferUsageUniform
	}
	if u&(rtcore.BufferUsageStorage|rtcore.BufferUsageAccelerationStructure|rtcore.BufferUsageBuildInput) != 0 {
		out |= gputypes.BufferUsageStorage
	}
	return out
}

// convertBindingType maps an rtcore binding type to a WebGPU buffer
// binding type.
func convertBindingType(t rtcore.BindingType) (gputypes.BufferBindingType, bool) {
	switch t {
	case rtcore.BindingTypeUniformBuffer:
		return gputypes.BufferBindingTypeUniform, true
	case rtcore.BindingTypeStorageBuffer:
		return gputypes.BufferBindingTypeStorage, true
	case rtcore.BindingTypeReadOnlyStorageBuffer:
		return gputypes.BufferBindingTypeReadOnlyStorage, true
	default:
		return 0, false
	}
}

// spirvWords converts little-endian SPIR-V bytes to 32-bit words.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}
