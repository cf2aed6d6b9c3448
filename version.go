package rpcdispatch

import (
	"fmt"
	"strings"

	"github.com/blang/semver"
)

// DefaultVersion is the version assumed for calls and targets that do not
// declare one.
const DefaultVersion = "1.0"

// Version is a parsed "<major>.<minor>" version.
type Version struct {
	Major uint64
	Minor uint64
}

// ParseVersion parses a "<major>.<minor>" string of two decimal integers.
// Leading zeros are ignored, so "1.05" is 1.5. Anything else, including a
// patch component or pre-release suffix, is rejected with ErrInvalidVersion.
func ParseVersion(s string) (Version, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok || major == "" || minor == "" || strings.Contains(minor, ".") || strings.ContainsAny(s, "+- \tv") {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	v, err := semver.ParseTolerant(trimZeros(major) + "." + trimZeros(minor))
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, s, err)
	}
	return Version{Major: v.Major, Minor: v.Minor}, nil
}

// trimZeros drops leading zeros from a numeric component, keeping one "0".
func trimZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}

// String returns the "<major>.<minor>" form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Serves reports whether an endpoint advertising v can serve a caller that
// requested version req. The major versions must be equal and v's minor
// version must be at least req's.
func (v Version) Serves(req Version) bool {
	return v.Major == req.Major && v.Minor >= req.Minor
}

// IsCompatible reports whether an endpoint at endpointVersion can serve a
// call at requestedVersion. A version that does not parse is never
// compatible.
func IsCompatible(endpointVersion, requestedVersion string) bool {
	ev, err := ParseVersion(endpointVersion)
	if err != nil {
		return false
	}
	rv, err := ParseVersion(requestedVersion)
	if err != nil {
		return false
	}
	return ev.Serves(rv)
}

// CanSendVersion reports whether a client capped at versionCap may send a
// call at version. An empty cap allows every version.
func CanSendVersion(versionCap, version string) bool {
	if versionCap == "" {
		return true
	}
	return IsCompatible(versionCap, version)
}
