package accel

import (
	"errors"
	"testing"

	"github.com/gogpu/accel/backend/soft"
	"github.com/gogpu/accel/rtcore"
)

func TestInstanceMask(t *testing.T) {
	for n := 1; n <= 12; n++ {
		var seen uint8
		for i := 0; i < n; i++ {
			m := instanceMask(i, n)
			if n >= 8 {
				if m != 0xFF {
					t.Errorf("instanceMask(%d, %d) = %#x, want 0xFF", i, n, m)
				}
				continue
			}
			if m == 0 || m&(m-1) != 0 {
				t.Errorf("instanceMask(%d, %d) = %#x, want a single bit", i, n, m)
			}
			if seen&m != 0 {
				t.Errorf("instanceMask(%d, %d) = %#x reused", i, n, m)
			}
			if m >= 1<<uint(n) {
				t.Errorf("instanceMask(%d, %d) = %#x outside the first %d bits", i, n, m, n)
			}
			seen |= m
		}
	}
}

func TestTopLevelBeforeBottomLevel(t *testing.T) {
	dev := soft.New()
	set := newBottomLevelSet(dev, "test", 0)
	top := newTopLevel(dev, "test", 0)

	if err := top.allocate(set, EntrySizing{ResultSize: 256, ScratchSize: 256}); !errors.Is(err, ErrTopLevelBeforeBottomLevel) {
		t.Errorf("allocate() error = %v, want ErrTopLevelBeforeBottomLevel", err)
	}
	if err := top.rebuild(dev, set, dispatchPolicy{}); !errors.Is(err, ErrTopLevelBeforeBottomLevel) {
		t.Errorf("rebuild() error = %v, want ErrTopLevelBeforeBottomLevel", err)
	}
	if n := len(dev.LiveBuffers()); n != 0 {
		t.Errorf("%d buffers allocated", n)
	}
}

func TestTopLevelPopulateClears(t *testing.T) {
	top := newTopLevel(soft.New(), "test", 0)
	top.populate(3)
	top.populate(3)
	if len(top.records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(top.records))
	}
	if !top.dirty {
		t.Error("populate() did not mark the table dirty")
	}
	if err := top.setTransform(-1, rtcore.IdentityTransform()); !errors.Is(err, ErrInstanceIndex) {
		t.Errorf("setTransform(-1) error = %v, want ErrInstanceIndex", err)
	}
}

func TestBottomLevelSetUpdateCountsBeforeBuild(t *testing.T) {
	set := newBottomLevelSet(soft.New(), "test", 0)
	if _, err := set.updateCounts([]uint64{1}, 0); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("updateCounts() error = %v, want ErrNotBuilt", err)
	}
}

func TestBottomLevelSetRebuildAllReplaces(t *testing.T) {
	dev := soft.New()
	groups := []GroupDescriptor{{Count: 2}, {Count: 3}}
	sizing, err := QuerySizing(dev, groups, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	set := newBottomLevelSet(dev, "test", 0)
	if err := set.rebuildAll(groups, sizing); err != nil {
		t.Fatalf("rebuildAll() error = %v", err)
	}
	if err := set.rebuildAll(groups, sizing); err != nil {
		t.Fatalf("second rebuildAll() error = %v", err)
	}
	if !set.complete() {
		t.Error("complete() = false after rebuildAll")
	}
	if n := dev.LiveStructures(); n != 2 {
		t.Errorf("LiveStructures() = %d, want 2", n)
	}
	if got := set.resultBytes(); got != sizing.BottomLevel[0].ResultSize+sizing.BottomLevel[1].ResultSize {
		t.Errorf("resultBytes() = %d", got)
	}

	if err := set.rebuildAll(groups[:1], sizing); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("rebuildAll(mismatch) error = %v, want ErrLengthMismatch", err)
	}
	set.release()
	if n := dev.LiveStructures(); n != 0 {
		t.Errorf("LiveStructures() = %d after release", n)
	}
}
