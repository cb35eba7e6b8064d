package matrix

// BuildMode is the run-wide build profile. A run has exactly one mode,
// applied uniformly to every target.
type BuildMode int

const (
	Debug BuildMode = iota
	Release
)

func ModeFrom(release bool) BuildMode {
	if release {
		return Release
	}
	return Debug
}

// Profile is the toolchain profile directory name
func (m BuildMode) Profile() string {
	if m == Release {
		return "release"
	}
	return "debug"
}

// Flags are the profile flags derived from the mode,
// never part of a target's own buildFlags
func (m BuildMode) Flags() []string {
	if m == Release {
		return []string{"--release"}
	}
	return nil
}

func (m BuildMode) String() string {
	return m.Profile()
}
