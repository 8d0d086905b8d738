package main

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gogpu/accel"
	"github.com/pelletier/go-toml/v2"
)

//go:embed default.toml
var defaultScene []byte

// Config is a scene description.
type Config struct {
	Label             string        `toml:"label"`
	BuildMode         string        `toml:"build_mode"`
	UpdateMode        string        `toml:"update_mode"`
	MinUpdateActivity uint64        `toml:"min_update_activity"`
	Frames            int           `toml:"frames"`
	Clear             bool          `toml:"clear"`
	Groups            []GroupConfig `toml:"group"`
}

// GroupConfig describes one AABB group.
type GroupConfig struct {
	Capacity uint64   `toml:"capacity"`
	Counts   []uint64 `toml:"counts"`
}

var errInvalidConfig = errors.New("asdemo: invalid config")

// loadConfig reads path, or the embedded default scene when path is empty.
func loadConfig(path string) (*Config, error) {
	if path == "" {
		return parseConfig(bytes.NewReader(defaultScene))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseConfig(f)
}

// parseConfig decodes and validates a scene. Unknown keys are rejected.
func parseConfig(r io.Reader) (*Config, error) {
	var c Config
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&c); err != nil {
		return nil, fmt.Errorf("asdemo: decode config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if len(c.Groups) == 0 {
		return fmt.Errorf("%w: no groups", errInvalidConfig)
	}
	if c.Frames < 0 {
		return fmt.Errorf("%w: frames = %d", errInvalidConfig, c.Frames)
	}
	for i, g := range c.Groups {
		for f, n := range g.Counts {
			if n > g.Capacity {
				return fmt.Errorf("%w: group %d frame %d count %d exceeds capacity %d", errInvalidConfig, i, f, n, g.Capacity)
			}
		}
	}
	if _, err := parseBuildMode(c.BuildMode); err != nil {
		return err
	}
	if _, err := parseUpdateMode(c.UpdateMode); err != nil {
		return err
	}
	return nil
}

// capacities returns the per-group capacities.
func (c *Config) capacities() []uint64 {
	out := make([]uint64, len(c.Groups))
	for i, g := range c.Groups {
		out[i] = g.Capacity
	}
	return out
}

// countsAt returns the live counts of frame f. Groups without counts stay
// at capacity.
func (c *Config) countsAt(f int) []uint64 {
	out := make([]uint64, len(c.Groups))
	for i, g := range c.Groups {
		if len(g.Counts) == 0 {
			out[i] = g.Capacity
			continue
		}
		out[i] = g.Counts[f%len(g.Counts)]
	}
	return out
}

// options converts the scene settings to structure options.
func (c *Config) options() []accel.Option {
	bm, _ := parseBuildMode(c.BuildMode)
	um, _ := parseUpdateMode(c.UpdateMode)
	return []accel.Option{
		accel.WithLabel(c.Label),
		accel.WithBuildMode(bm),
		accel.WithUpdateMode(um),
		accel.WithMinUpdateActivity(c.MinUpdateActivity),
	}
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}

func parseBuildMode(s string) (accel.BuildMode, error) {
	switch normalize(s) {
	case "", "fast_trace":
		return accel.BuildModeFastTrace, nil
	case "fast_build":
		return accel.BuildModeFastBuild, nil
	case "none":
		return accel.BuildModeNone, nil
	default:
		return 0, fmt.Errorf("%w: build mode %q", errInvalidConfig, s)
	}
}

func parseUpdateMode(s string) (accel.UpdateMode, error) {
	switch normalize(s) {
	case "", "none":
		return accel.UpdateModeNone, nil
	case "tlas_only", "tlas":
		return accel.UpdateModeTLASOnly, nil
	case "blas_only", "blas":
		return accel.UpdateModeBLASOnly, nil
	case "all":
		return accel.UpdateModeAll, nil
	default:
		return 0, fmt.Errorf("%w: update mode %q", errInvalidConfig, s)
	}
}
