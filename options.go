package accel

// Option configures a Structure during creation.
//
// Example:
//
//	// Rebuilt every frame, top level updated in place.
//	s, err := accel.New(dev, rc, counts, addrs,
//	    accel.WithBuildMode(accel.BuildModeFastBuild),
//	    accel.WithUpdateMode(accel.UpdateModeTLASOnly),
//	)
type Option func(*options)

// options holds optional configuration for Structure creation.
type options struct {
	buildMode   BuildMode
	updateMode  UpdateMode
	minActivity uint64
	label       string
}

// defaultOptions returns the default structure options.
func defaultOptions() options {
	return options{
		buildMode:  BuildModeFastTrace,
		updateMode: UpdateModeNone,
		label:      "accel",
	}
}

// WithBuildMode sets the build speed preference. Default: BuildModeFastTrace.
func WithBuildMode(m BuildMode) Option {
	return func(o *options) {
		o.buildMode = m
	}
}

// WithUpdateMode sets the levels updated in place. Default: UpdateModeNone.
func WithUpdateMode(m UpdateMode) Option {
	return func(o *options) {
		o.updateMode = m
	}
}

// WithMinUpdateActivity sets the initial minimum update activity.
// Groups whose per-frame count is not larger than n are skipped.
// See [Structure.SetMinUpdateActivity].
func WithMinUpdateActivity(n uint64) Option {
	return func(o *options) {
		o.minActivity = n
	}
}

// WithLabel sets the prefix of every buffer label. Default: "accel".
func WithLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.label = label
		}
	}
}
