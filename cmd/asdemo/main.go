// Command asdemo builds a procedural acceleration structure on the first
// ray tracing capable backend and prints per-frame dispatch statistics.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"

	"github.com/gogpu/accel"
	"github.com/gogpu/accel/backend"
	_ "github.com/gogpu/accel/backend/native"
	"github.com/gogpu/accel/backend/soft"
	"github.com/gogpu/accel/rtcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func main() {
	var (
		config  = flag.String("config", "", "scene file (TOML); empty uses the built-in scene")
		frames  = flag.Int("frames", -1, "override the frame count of the scene")
		verbose = flag.Bool("v", false, "log structure lifecycle events")
		name    = flag.String("backend", "", "device backend; empty picks the first with ray tracing")
	)
	flag.Parse()

	cfg, err := loadConfig(*config)
	if err != nil {
		log.Fatalf("Failed to load scene: %v", err)
	}
	if *frames >= 0 {
		cfg.Frames = *frames
	}
	if *verbose {
		accel.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	dev, err := openDevice(*name)
	if err != nil {
		log.Fatalf("Failed to open device: %v", err)
	}
	defer dev.Close()

	if err := run(cfg, dev, os.Stdout); err != nil {
		log.Printf("asdemo: %v", err)
		dev.Close()
		os.Exit(1)
	}
}

func openDevice(name string) (backend.Device, error) {
	if name != "" {
		return backend.Open(name)
	}
	dev, name, err := backend.OpenDefault(backend.Requirements{RayTracing: true})
	if err != nil {
		return nil, err
	}
	log.Printf("Using %s backend", name)
	return dev, nil
}

// inspector exposes built structure contents. Only the software device
// implements it.
type inspector interface {
	StructureInfo(id rtcore.AccelerationStructureID) (soft.StructureInfo, bool)
}

// scene owns the AABB buffers of every group.
type scene struct {
	dev     rtcore.Device
	buffers []rtcore.BufferID
	addrs   []rtcore.DeviceAddress
}

// newScene allocates one element-typed AABB buffer per group and fills it
// with unit boxes scattered in [0, 100)^3.
func newScene(dev rtcore.Device, cfg *Config, rng *rand.Rand) (*scene, error) {
	s := &scene{dev: dev}
	for i, capacity := range cfg.capacities() {
		n := max(capacity, 1)
		id, err := dev.CreateBuffer(&rtcore.BufferDesc{
			Label:       fmt.Sprintf("aabbs%d", i),
			Size:        n * rtcore.AABBSize,
			Usage:       rtcore.BufferUsageStorage | rtcore.BufferUsageBuildInput | rtcore.BufferUsageCopyDst,
			ElementSize: rtcore.AABBSize,
		})
		if err != nil {
			s.release()
			return nil, err
		}
		s.buffers = append(s.buffers, id)
		s.addrs = append(s.addrs, dev.BufferAddress(id))

		data := make([]byte, n*rtcore.AABBSize)
		for e := uint64(0); e < n; e++ {
			var c [3]float32
			for k := range c {
				c[k] = rng.Float32() * 100
			}
			putBox(data[e*rtcore.AABBSize:], c)
		}
		if err := dev.WriteBuffer(id, 0, data); err != nil {
			s.release()
			return nil, err
		}
	}
	return s, nil
}

func putBox(b []byte, lo [3]float32) {
	for k := 0; k < 3; k++ {
		binary.LittleEndian.PutUint32(b[k*4:], math.Float32bits(lo[k]))
		binary.LittleEndian.PutUint32(b[12+k*4:], math.Float32bits(lo[k]+1))
	}
}

func (s *scene) release() {
	for _, id := range s.buffers {
		s.dev.DestroyBuffer(id)
	}
	s.buffers = nil
	s.addrs = nil
}

func run(cfg *Config, dev backend.Device, w io.Writer) error {
	sc, err := newScene(dev, cfg, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		return err
	}
	defer sc.release()

	s, err := accel.New(dev, dev, cfg.capacities(), sc.addrs, cfg.options()...)
	if err != nil {
		return err
	}
	defer s.Close()

	insp, _ := dev.(inspector)
	if sd, ok := dev.(*soft.Device); ok {
		if err := s.Bind(sd.NewScope()); err != nil {
			return err
		}
	}

	p := message.NewPrinter(language.English)
	st := s.Stats()
	p.Fprintf(w, "%s: %d groups, %d bytes (build %v, update %v)\n",
		cfg.Label, st.Groups, st.TotalBytes(), s.BuildMode(), s.UpdateMode())

	for f := 0; f < cfg.Frames; f++ {
		if err := s.UpdateCounts(dev, cfg.countsAt(f)); err != nil {
			return fmt.Errorf("frame %d: %w", f, err)
		}
		st := s.Stats()
		p.Fprintf(w, "frame %d: counts %v, blas %d built / %d updated / %d skipped, tlas %d built / %d updated",
			f, s.Counts(), st.BottomLevelBuilds, st.BottomLevelUpdates, st.BottomLevelSkips,
			st.TopLevelBuilds, st.TopLevelUpdates)
		if insp != nil {
			info, _ := insp.StructureInfo(s.TopLevel())
			p.Fprintf(w, ", %d primitives in bounds %v", primitives(insp, s), formatBounds(info.Bounds))
		}
		fmt.Fprintln(w)
	}

	if cfg.Clear {
		if err := s.ClearAABBBuffers(dev, sc.buffers, true, rtcore.InvalidID); err != nil {
			return err
		}
		if err := s.Update(dev); err != nil {
			return err
		}
		if insp != nil {
			info, _ := insp.StructureInfo(s.TopLevel())
			p.Fprintf(w, "cleared: bounds %v\n", formatBounds(info.Bounds))
		}
	}
	return nil
}

// primitives sums the primitive counts of the built bottom levels.
func primitives(dev inspector, s *accel.Structure) uint64 {
	var n uint64
	for i := 0; i < s.GroupCount(); i++ {
		id, ok := s.BottomLevel(i)
		if !ok {
			continue
		}
		if info, ok := dev.StructureInfo(id); ok {
			n += info.PrimitiveCount
		}
	}
	return n
}

func formatBounds(b soft.AABB) string {
	if b.Empty() {
		return "empty"
	}
	return fmt.Sprintf("[%.1f %.1f %.1f]-[%.1f %.1f %.1f]", b.Min[0], b.Min[1], b.Min[2], b.Max[0], b.Max[1], b.Max[2])
}
