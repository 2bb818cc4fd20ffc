// Package platform defines PlatformTarget, the (OS family, minimum OS
// version, architecture, variant) tuple a build must support, and the
// textual form used in manifests and container metadata:
//
//	os-arch[-variant][@minversion]
//
// for example `ios-arm64`, `ios-arm64-simulator@13.0` or `macos-x86_64@12`.
package platform

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// OS is an operating-system family.
type OS string

const (
	IOS         OS = "ios"
	MacOS       OS = "macos"
	MacCatalyst OS = "maccatalyst"
	TvOS        OS = "tvos"
	WatchOS     OS = "watchos"
	VisionOS    OS = "xros"
	Linux       OS = "linux"
	Android     OS = "android"
	Windows     OS = "windows"
)

var knownOS = map[OS]struct{}{
	IOS: {}, MacOS: {}, MacCatalyst: {}, TvOS: {}, WatchOS: {}, VisionOS: {},
	Linux: {}, Android: {}, Windows: {},
}

// Valid reports whether o is a known OS family.
func (o OS) Valid() bool {
	_, ok := knownOS[o]
	return ok
}

// Arch is a CPU architecture.
type Arch string

const (
	ARM64    Arch = "arm64"
	ARM64e   Arch = "arm64e"
	ARMv7    Arch = "armv7"
	X86_64   Arch = "x86_64"
	I386     Arch = "i386"
	ARM64_32 Arch = "arm64_32"
)

var knownArch = map[Arch]struct{}{
	ARM64: {}, ARM64e: {}, ARMv7: {}, X86_64: {}, I386: {}, ARM64_32: {},
}

// Valid reports whether a is a known architecture.
func (a Arch) Valid() bool {
	_, ok := knownArch[a]
	return ok
}

// Variant separates ABIs that share an OS family and architecture, such as
// a device build and a simulator build of iOS for arm64.
type Variant string

const (
	Device    Variant = ""
	Simulator Variant = "simulator"
	Catalyst  Variant = "maccatalyst"
)

// Target is an immutable platform target.
type Target struct {
	OS         OS
	Arch       Arch
	Variant    Variant
	MinVersion Version
}

// Parse parses the textual form of a target.
func Parse(s string) (Target, error) {
	var t Target
	spec := strings.TrimSpace(s)
	if spec == "" {
		return t, fmt.Errorf("empty platform target")
	}

	if at := strings.LastIndex(spec, "@"); at >= 0 {
		v, err := ParseVersion(spec[at+1:])
		if err != nil {
			return t, fmt.Errorf("platform target %q: %w", s, err)
		}
		t.MinVersion = v
		spec = spec[:at]
	}

	parts := strings.Split(strings.ToLower(spec), "-")
	if len(parts) < 2 || len(parts) > 3 {
		return t, fmt.Errorf("platform target %q: expected os-arch[-variant]", s)
	}
	t.OS = OS(parts[0])
	if _, ok := knownOS[t.OS]; !ok {
		return t, fmt.Errorf("platform target %q: unknown OS family %q", s, parts[0])
	}
	t.Arch = Arch(parts[1])
	if _, ok := knownArch[t.Arch]; !ok {
		return t, fmt.Errorf("platform target %q: unknown architecture %q", s, parts[1])
	}
	if len(parts) == 3 {
		switch v := Variant(parts[2]); v {
		case Simulator, Catalyst:
			t.Variant = v
		default:
			return t, fmt.Errorf("platform target %q: unknown variant %q", s, parts[2])
		}
	}
	return t, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Target {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Key identifies the target without its version: `os-arch[-variant]`.
func (t Target) Key() string {
	k := string(t.OS) + "-" + string(t.Arch)
	if t.Variant != Device {
		k += "-" + string(t.Variant)
	}
	return k
}

func (t Target) String() string {
	if t.MinVersion.IsZero() {
		return t.Key()
	}
	return t.Key() + "@" + t.MinVersion.String()
}

// MarshalText implements encoding.TextMarshaler.
func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Target) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Version is an OS version such as 13 or 12.3, kept in canonical semver
// form internally so it can be compared with golang.org/x/mod/semver.
type Version struct {
	canonical string
}

// ParseVersion accepts `13`, `13.0`, `12.3.1` and a leading `v`.
func ParseVersion(s string) (Version, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "v")
	if raw == "" {
		return Version{}, fmt.Errorf("empty version")
	}
	c := semver.Canonical("v" + raw)
	if c == "" || semver.Prerelease(c) != "" {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	return Version{canonical: c}, nil
}

// IsZero reports whether the version is unset.
func (v Version) IsZero() bool { return v.canonical == "" }

// Compare returns -1, 0 or +1. An unset version sorts before every set one.
func (v Version) Compare(other Version) int {
	switch {
	case v.IsZero() && other.IsZero():
		return 0
	case v.IsZero():
		return -1
	case other.IsZero():
		return 1
	}
	return semver.Compare(v.canonical, other.canonical)
}

// String drops trailing zero components: v13.0.0 prints as 13.0.
func (v Version) String() string {
	if v.IsZero() {
		return ""
	}
	s := strings.TrimPrefix(v.canonical, "v")
	s = strings.TrimSuffix(s, ".0")
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		*v = Version{}
		return nil
	}
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
