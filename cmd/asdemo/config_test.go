package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/accel"
	"github.com/gogpu/accel/backend/soft"
	"github.com/gogpu/accel/rtcore"
)

func TestDefaultSceneParses(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig(\"\") error = %v", err)
	}
	if len(cfg.Groups) != 2 {
		t.Errorf("len(Groups) = %d, want 2", len(cfg.Groups))
	}
	if cfg.Label != "demo" || cfg.Frames != 6 || !cfg.Clear {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no groups", `frames = 2`},
		{"unknown key", "colour = 1\n[[group]]\ncapacity = 4\n"},
		{"count over capacity", "[[group]]\ncapacity = 4\ncounts = [5]\n"},
		{"negative frames", "frames = -1\n[[group]]\ncapacity = 4\n"},
		{"build mode", "build_mode = \"slow\"\n[[group]]\ncapacity = 4\n"},
		{"update mode", "update_mode = \"some\"\n[[group]]\ncapacity = 4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseConfig(strings.NewReader(tt.src)); err == nil {
				t.Error("parseConfig() error = nil")
			}
		})
	}
	_, err := parseConfig(strings.NewReader("[[group]]\ncapacity = 4\ncounts = [5]\n"))
	if !errors.Is(err, errInvalidConfig) {
		t.Errorf("validation error = %v, want errInvalidConfig", err)
	}
}

func TestParseModes(t *testing.T) {
	builds := map[string]accel.BuildMode{
		"":           accel.BuildModeFastTrace,
		"fast_trace": accel.BuildModeFastTrace,
		"Fast-Build": accel.BuildModeFastBuild,
		"none":       accel.BuildModeNone,
	}
	for in, want := range builds {
		got, err := parseBuildMode(in)
		if err != nil || got != want {
			t.Errorf("parseBuildMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	updates := map[string]accel.UpdateMode{
		"":          accel.UpdateModeNone,
		"tlas_only": accel.UpdateModeTLASOnly,
		"BLAS":      accel.UpdateModeBLASOnly,
		" all ":     accel.UpdateModeAll,
	}
	for in, want := range updates {
		got, err := parseUpdateMode(in)
		if err != nil || got != want {
			t.Errorf("parseUpdateMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func TestCountsAt(t *testing.T) {
	cfg := &Config{Groups: []GroupConfig{
		{Capacity: 10, Counts: []uint64{10, 5}},
		{Capacity: 7},
	}}
	tests := []struct {
		frame int
		want  []uint64
	}{
		{0, []uint64{10, 7}},
		{1, []uint64{5, 7}},
		{2, []uint64{10, 7}},
	}
	for _, tt := range tests {
		got := cfg.countsAt(tt.frame)
		if got[0] != tt.want[0] || got[1] != tt.want[1] {
			t.Errorf("countsAt(%d) = %v, want %v", tt.frame, got, tt.want)
		}
	}
}

func TestRunDefaultScene(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := run(cfg, soft.New(), &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	text := out.String()
	if n := strings.Count(text, "frame "); n != cfg.Frames {
		t.Errorf("printed %d frames, want %d:\n%s", n, cfg.Frames, text)
	}
	if !strings.Contains(text, "cleared: bounds empty") {
		t.Errorf("output lacks the cleared bounds line:\n%s", text)
	}
	// Thousands separators come from the English printer.
	if !strings.Contains(text, "4,608 primitives") {
		t.Errorf("output lacks localized counts:\n%s", text)
	}
}

func TestRunWithoutRayTracing(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	dev := soft.New(soft.WithoutRayTracing())
	var out bytes.Buffer
	if err := run(cfg, dev, &out); !errors.Is(err, rtcore.ErrRayTracingUnsupported) {
		t.Errorf("run() error = %v, want ErrRayTracingUnsupported", err)
	}
	if n := len(dev.LiveBuffers()); n != 0 {
		t.Errorf("%d buffers leaked", n)
	}
}
