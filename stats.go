package accel

// Stats holds dispatch counters of the current generation and the memory
// footprint of its buffers.
type Stats struct {
	Generation uint64
	Groups     int

	// Frames counts update calls since the generation was created.
	Frames uint64

	BottomLevelBuilds  uint64
	BottomLevelUpdates uint64
	BottomLevelSkips   uint64
	TopLevelBuilds     uint64
	TopLevelUpdates    uint64

	ResultBytes   uint64 // bottom-level and top-level results
	ScratchBytes  uint64 // shared bottom-level and top-level scratch
	InstanceBytes uint64
}

// TotalBytes returns the memory owned by the generation.
func (s Stats) TotalBytes() uint64 {
	return s.ResultBytes + s.ScratchBytes + s.InstanceBytes
}

// record counts the dispatches of a completed plan.
func (s *Stats) record(p framePlan) {
	for _, a := range p.groups {
		switch a {
		case actionSkip:
			s.BottomLevelSkips++
		case actionRebuild:
			s.BottomLevelBuilds++
		case actionUpdate:
			s.BottomLevelUpdates++
		}
	}
	switch p.top {
	case actionRebuild:
		s.TopLevelBuilds++
	case actionUpdate:
		s.TopLevelUpdates++
	}
}
