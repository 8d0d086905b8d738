package accel

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/accel/backend/soft"
	"github.com/gogpu/accel/rtcore"
)

// testEnv is a software device with one filled AABB buffer per group.
type testEnv struct {
	dev     *soft.Device
	counts  []uint64
	addrs   []rtcore.DeviceAddress
	buffers []rtcore.BufferID
}

func newTestEnv(t *testing.T, counts []uint64, opts ...soft.Option) *testEnv {
	t.Helper()
	env := &testEnv{dev: soft.New(opts...), counts: counts}
	for g, n := range counts {
		size := max(n, 1) * rtcore.AABBSize
		id, err := env.dev.CreateBuffer(&rtcore.BufferDesc{
			Label:       "aabbs",
			Size:        size,
			Usage:       rtcore.BufferUsageStorage | rtcore.BufferUsageBuildInput | rtcore.BufferUsageCopyDst,
			ElementSize: rtcore.AABBSize,
		})
		if err != nil {
			t.Fatalf("CreateBuffer() error = %v", err)
		}
		data := make([]byte, size)
		for i := uint64(0); i < size/rtcore.AABBSize; i++ {
			putBox(data, i, float32(g), float32(i))
		}
		if err := env.dev.WriteBuffer(id, 0, data); err != nil {
			t.Fatalf("WriteBuffer() error = %v", err)
		}
		env.buffers = append(env.buffers, id)
		env.addrs = append(env.addrs, env.dev.BufferAddress(id))
	}
	return env
}

// putBox writes a unit box at (x, y, 0).
func putBox(b []byte, i uint64, x, y float32) {
	lo := [3]float32{x, y, 0}
	off := i * rtcore.AABBSize
	for k := 0; k < 3; k++ {
		binary.LittleEndian.PutUint32(b[off+uint64(k)*4:], math.Float32bits(lo[k]))
		binary.LittleEndian.PutUint32(b[off+12+uint64(k)*4:], math.Float32bits(lo[k]+1))
	}
}

func (env *testEnv) newStructure(t *testing.T, opts ...Option) *Structure {
	t.Helper()
	s, err := New(env.dev, env.dev, env.counts, env.addrs, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// frame returns the build records logged since the last call.
func (env *testEnv) frame() []soft.BuildRecord {
	b := env.dev.Builds()
	env.dev.ResetCommands()
	return b
}

// split separates bottom-level and top-level records.
func split(records []soft.BuildRecord) (bottom, top []soft.BuildRecord) {
	for _, r := range records {
		if r.Kind == rtcore.KindTopLevel {
			top = append(top, r)
		} else {
			bottom = append(bottom, r)
		}
	}
	return bottom, top
}
