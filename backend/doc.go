// Package backend selects the device an acceleration structure is built on.
//
// Backends register a Factory from init() and are opened by name or by
// requirements:
//
//	import (
//		_ "github.com/gogpu/accel/backend/native"
//		_ "github.com/gogpu/accel/backend/soft"
//	)
//
//	dev, name, err := backend.OpenDefault(backend.Requirements{RayTracing: true})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Close()
//
// # Available Backends
//
// - "native": GPU device over gogpu/wgpu/hal. Compute only, no ray tracing.
// - "soft": CPU device with full acceleration structure validation
// (always available).
package backend
