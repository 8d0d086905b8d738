//go:build !nogpu

// Package native implements rtcore.Device on top of gogpu/wgpu/hal.
//
// The HAL exposes the WebGPU feature set, which has no acceleration
// structures. A native Device therefore reports RayTracing = false and
// returns rtcore.ErrRayTracingUnsupported from every build and sizing
// query, while buffers and compute programs run on the GPU. This makes it
// usable for the AABB clear kernel and for uploading procedural geometry
// that is later consumed by a ray tracing capable device.
//
// Each Dispatch is encoded into its own command buffer, submitted, and
// waited on. Barriers are therefore no-ops.
//
// Obtaining a device:
//
//	dev, err := native.Open()
//	if err != nil {
//	    // no Vulkan adapter
//	}
//	defer dev.Close()
//
// or, sharing the device of a host application:
//
//	dev, err := native.NewFromProvider(app.GPUContextProvider())
package native
