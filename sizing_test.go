package accel

import (
	"errors"
	"testing"

	"github.com/gogpu/accel/backend/soft"
	"github.com/gogpu/accel/rtcore"
)

func TestAlignTo(t *testing.T) {
	tests := []struct {
		v, want uint64
	}{
		{0, 0},
		{1, 256},
		{255, 256},
		{256, 256},
		{257, 512},
	}
	for _, tt := range tests {
		if got := alignTo(AccelerationStructureAlignment, tt.v); got != tt.want {
			t.Errorf("alignTo(256, %d) = %d, want %d", tt.v, got, tt.want)
		}
	}
}

func TestQuerySizingAlignment(t *testing.T) {
	dev := soft.New()
	for _, flags := range []rtcore.BuildFlags{
		rtcore.BuildFlagPreferFastTrace,
		rtcore.BuildFlagPreferFastBuild | rtcore.BuildFlagAllowUpdate,
	} {
		var groups []GroupDescriptor
		for n := uint64(0); n < 300; n += 37 {
			groups = append(groups, GroupDescriptor{Count: n})
		}
		s, err := QuerySizing(dev, groups, flags, flags)
		if err != nil {
			t.Fatalf("QuerySizing() error = %v", err)
		}
		entries := append([]EntrySizing{s.TopLevel}, s.BottomLevel...)
		for i, e := range entries {
			if e.ResultSize < e.Prebuild.ResultDataMaxSize || e.ResultSize%AccelerationStructureAlignment != 0 {
				t.Errorf("entry %d ResultSize = %d for %d", i, e.ResultSize, e.Prebuild.ResultDataMaxSize)
			}
			need := max(e.Prebuild.ScratchDataSize, e.Prebuild.UpdateScratchDataSize)
			if e.ScratchSize < need || e.ScratchSize%AccelerationStructureAlignment != 0 {
				t.Errorf("entry %d ScratchSize = %d for %d", i, e.ScratchSize, need)
			}
		}
	}
}

func TestQuerySizingSharedScratch(t *testing.T) {
	dev := soft.New()
	groups := []GroupDescriptor{{Count: 3}, {Count: 500}, {Count: 0}, {Count: 40}}
	s, err := QuerySizing(dev, groups, rtcore.BuildFlagAllowUpdate, 0)
	if err != nil {
		t.Fatal(err)
	}
	var want uint64
	for i, e := range s.BottomLevel {
		if s.ScratchSize < e.ScratchSize {
			t.Errorf("shared scratch %d < group %d scratch %d", s.ScratchSize, i, e.ScratchSize)
		}
		want = max(want, e.ScratchSize)
	}
	if s.ScratchSize != want {
		t.Errorf("ScratchSize = %d, want max %d", s.ScratchSize, want)
	}
	if got := s.TotalResultSize(); got == 0 {
		t.Error("TotalResultSize() = 0")
	}
}

func TestQuerySizingDegenerate(t *testing.T) {
	zero := func(in *rtcore.BuildInputs) rtcore.PrebuildInfo {
		if in.Kind == rtcore.KindBottomLevel && in.Geometries[0].AABBs.Count == 0 {
			return rtcore.PrebuildInfo{}
		}
		return soft.DefaultPrebuild(in)
	}
	dev := soft.New(soft.WithPrebuild(zero))

	s, err := QuerySizing(dev, []GroupDescriptor{{Count: 0}, {Count: 2}}, 0, 0)
	if err != nil {
		t.Fatalf("QuerySizing() error = %v", err)
	}
	e := s.BottomLevel[0]
	if e.ResultSize != AccelerationStructureAlignment || e.ScratchSize != AccelerationStructureAlignment {
		t.Errorf("empty group sizing = %+v, want one alignment unit", e)
	}
}

func TestQuerySizingErrors(t *testing.T) {
	broken := soft.New(soft.WithPrebuild(func(*rtcore.BuildInputs) rtcore.PrebuildInfo {
		return rtcore.PrebuildInfo{}
	}))
	tests := []struct {
		name   string
		dev    rtcore.Device
		groups []GroupDescriptor
		want   error
	}{
		{"no groups", soft.New(), nil, ErrNoGroups},
		{"zero result", broken, []GroupDescriptor{{Count: 4}}, ErrInvalidPrebuildSize},
		{"stride", soft.New(), []GroupDescriptor{{Count: 4, Stride: 16}}, ErrInvalidStride},
		{"no ray tracing", soft.New(soft.WithoutRayTracing()), []GroupDescriptor{{Count: 4}}, rtcore.ErrRayTracingUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := QuerySizing(tt.dev, tt.groups, 0, 0); !errors.Is(err, tt.want) {
				t.Errorf("QuerySizing() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBottomLevelInputs(t *testing.T) {
	in := bottomLevelInputs(GroupDescriptor{Count: 7, Data: 0x1000}, rtcore.BuildFlagAllowUpdate)
	if in.Kind != rtcore.KindBottomLevel || in.DescCount != 1 || len(in.Geometries) != 1 {
		t.Fatalf("inputs = %+v", in)
	}
	g := in.Geometries[0]
	if g.Type != rtcore.GeometryTypeProceduralAABBs {
		t.Errorf("Type = %v", g.Type)
	}
	if g.Flags != rtcore.GeometryFlagNoDuplicateAnyHitInvocation {
		t.Errorf("Flags = %#x, want NoDuplicateAnyHitInvocation", g.Flags)
	}
	if g.AABBs.Count != 7 || g.AABBs.Data != 0x1000 || g.AABBs.Stride != rtcore.AABBSize {
		t.Errorf("AABBs = %+v", g.AABBs)
	}
	explicit := bottomLevelInputs(GroupDescriptor{Count: 7, Data: 0x1000, Stride: uint32(rtcore.AABBSize)}, 0)
	if got := explicit.Geometries[0].AABBs.Stride; got != rtcore.AABBSize {
		t.Errorf("explicit Stride = %d, want %d", got, rtcore.AABBSize)
	}
}
