package accel

import "github.com/gogpu/accel/rtcore"

// BuildMode selects the speed preference of every build.
type BuildMode int

const (
	// BuildModeNone requests no speed preference.
	BuildModeNone BuildMode = iota

	// BuildModeFastBuild prefers build speed over traversal speed.
	// Suited for structures rebuilt every frame.
	BuildModeFastBuild

	// BuildModeFastTrace prefers traversal speed over build speed.
	BuildModeFastTrace
)

// String returns the build mode name.
func (m BuildMode) String() string {
	switch m {
	case BuildModeNone:
		return "None"
	case BuildModeFastTrace:
		return "FastTrace"
	case BuildModeFastBuild:
		return "FastBuild"
	default:
		return "Unknown"
	}
}

// preference returns the build flag requested by the mode.
func (m BuildMode) preference() rtcore.BuildFlags {
	switch m {
	case BuildModeFastBuild:
		return rtcore.BuildFlagPreferFastBuild
	case BuildModeFastTrace:
		return rtcore.BuildFlagPreferFastTrace
	default:
		return 0
	}
}

func (m BuildMode) valid() bool {
	return m >= BuildModeNone && m <= BuildModeFastTrace
}

// UpdateMode selects the levels that may be updated in place.
//
// The mode is fixed per Structure: the allow-update capability has to be
// declared before the first build and cannot be added afterwards.
type UpdateMode int

const (
	// UpdateModeNone rebuilds both levels on every update.
	UpdateModeNone UpdateMode = iota

	// UpdateModeTLASOnly updates the top level in place.
	UpdateModeTLASOnly

	// UpdateModeBLASOnly updates bottom-level entries in place.
	UpdateModeBLASOnly

	// UpdateModeAll updates both levels in place.
	UpdateModeAll
)

// String returns the update mode name.
func (m UpdateMode) String() string {
	switch m {
	case UpdateModeNone:
		return "None"
	case UpdateModeTLASOnly:
		return "TLASOnly"
	case UpdateModeBLASOnly:
		return "BLASOnly"
	case UpdateModeAll:
		return "All"
	default:
		return "Unknown"
	}
}

func (m UpdateMode) valid() bool {
	return m >= UpdateModeNone && m <= UpdateModeAll
}

// allows reports whether the mode permits in-place updates of level.
func (m UpdateMode) allows(level rtcore.Kind) bool {
	switch level {
	case rtcore.KindBottomLevel:
		return m == UpdateModeBLASOnly || m == UpdateModeAll
	case rtcore.KindTopLevel:
		return m == UpdateModeTLASOnly || m == UpdateModeAll
	default:
		return false
	}
}

// inputFlags returns the flags declared in the build inputs of level.
// They are identical for the prebuild query and every dispatch.
func inputFlags(level rtcore.Kind, b BuildMode, u UpdateMode) rtcore.BuildFlags {
	flags := b.preference()
	if u.allows(level) {
		flags |= rtcore.BuildFlagAllowUpdate
	}
	return flags
}

// dispatchPolicy is the outcome of decide for one dispatch.
type dispatchPolicy struct {
	// PerformUpdate requests an in-place update of the existing content.
	PerformUpdate bool

	// Preference is the speed preference flag of the build mode.
	Preference rtcore.BuildFlags
}

// decide is the single policy deciding between update and rebuild.
// An update is only possible on content built before with the
// allow-update capability.
func decide(level rtcore.Kind, wasBuilt bool, b BuildMode, u UpdateMode) dispatchPolicy {
	return dispatchPolicy{
		PerformUpdate: wasBuilt && u.allows(level),
		Preference:    b.preference(),
	}
}

// flags returns the dispatch flags for inputs declared with declared.
func (p dispatchPolicy) flags(declared rtcore.BuildFlags) rtcore.BuildFlags {
	f := declared | p.Preference
	if p.PerformUpdate {
		f |= rtcore.BuildFlagPerformUpdate
	}
	return f
}
