package upgrade

import (
	"fmt"

	goversion "github.com/hashicorp/go-version"
)

// Version is an immutable, comparable release number.
// The zero value means "nothing installed" and is lower than any parsed version.
type Version struct {
	// parsed is the underlying semantic version, nil for the zero value.
	parsed *goversion.Version
}

// ParseVersion parses a semantic version string, an optional "v" prefix is accepted.
func ParseVersion(raw string) (Version, error) {
	parsed, err := goversion.NewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("parse version %q: %w", raw, err)
	}

	return Version{parsed: parsed}, nil
}

// MustParseVersion is like ParseVersion but panics on malformed input.
func MustParseVersion(raw string) Version {
	v, err := ParseVersion(raw)
	if err != nil {
		panic(err)
	}

	return v
}

// IsZero reports whether the version was never set.
func (v Version) IsZero() bool {
	return v.parsed == nil
}

// GreaterThan reports whether v is strictly newer than other.
func (v Version) GreaterThan(other Version) bool {
	switch {
	case v.parsed == nil:
		return false
	case other.parsed == nil:
		return true
	default:
		return v.parsed.GreaterThan(other.parsed)
	}
}

// Equal reports whether both versions denote the same release.
func (v Version) Equal(other Version) bool {
	if v.parsed == nil || other.parsed == nil {
		return v.parsed == nil && other.parsed == nil
	}

	return v.parsed.Equal(other.parsed)
}

// String returns the original textual form of the version.
func (v Version) String() string {
	if v.parsed == nil {
		return ""
	}

	return v.parsed.Original()
}
