package soft

import "github.com/gogpu/accel/rtcore"

// PrebuildFunc computes the memory requirements of a build.
type PrebuildFunc func(inputs *rtcore.BuildInputs) rtcore.PrebuildInfo

// Node and header sizes of the simulated BVH layout. The values are
// deliberately not multiples of the acceleration structure alignment.
const (
	blasHeaderSize   = 152
	blasNodeSize     = 72
	blasScratchBase  = 96
	blasScratchPer   = 40
	blasUpdateBase   = 64
	blasUpdatePer    = 24
	tlasHeaderSize   = 160
	tlasInstanceSize = 128
	tlasScratchBase  = 96
	tlasScratchPer   = 64
	tlasUpdateBase   = 48
	tlasUpdatePer    = 32
)

// DefaultPrebuild is the sizing model of the software device.
//
// Sizes grow linearly with the primitive (bottom level) or instance (top
// level) count. Fast-trace builds trade 25% more result memory for a
// better tree; fast builds use 50% more scratch. Update scratch is only
// reported when rtcore.BuildFlagAllowUpdate is requested.
func DefaultPrebuild(inputs *rtcore.BuildInputs) rtcore.PrebuildInfo {
	var info rtcore.PrebuildInfo
	switch inputs.Kind {
	case rtcore.KindBottomLevel:
		var n uint64
		for _, g := range inputs.Geometries {
			n += g.AABBs.Count
		}
		info.ResultDataMaxSize = blasHeaderSize + blasNodeSize*n
		info.ScratchDataSize = blasScratchBase + blasScratchPer*n
		if inputs.Flags.Has(rtcore.BuildFlagAllowUpdate) {
			info.UpdateScratchDataSize = blasUpdateBase + blasUpdatePer*n
		}
	case rtcore.KindTopLevel:
		n := uint64(inputs.DescCount)
		info.ResultDataMaxSize = tlasHeaderSize + tlasInstanceSize*n
		info.ScratchDataSize = tlasScratchBase + tlasScratchPer*n
		if inputs.Flags.Has(rtcore.BuildFlagAllowUpdate) {
			info.UpdateScratchDataSize = tlasUpdateBase + tlasUpdatePer*n
		}
	}

	if inputs.Flags.Has(rtcore.BuildFlagPreferFastTrace) {
		info.ResultDataMaxSize += info.ResultDataMaxSize / 4
	}
	if inputs.Flags.Has(rtcore.BuildFlagPreferFastBuild) {
		info.ScratchDataSize += info.ScratchDataSize / 2
	}
	return info
}
