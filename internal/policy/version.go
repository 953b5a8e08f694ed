package policy

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/Masterminds/semver/v3"
)

var versionPattern = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)

// ParseVersion parses a dotted major.minor[.patch] policy version.
func ParseVersion(v string) (*semver.Version, error) {
	if !versionPattern.MatchString(v) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, v)
	}
	sv, err := semver.NewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidVersion, v, err)
	}
	return sv, nil
}

// ValidVersion reports whether v is a well-formed policy version.
func ValidVersion(v string) bool {
	_, err := ParseVersion(v)
	return err == nil
}

// CompareVersions compares two versions numerically per component,
// returning -1, 0, or 1. "1.10" orders after "1.9" and "1.0" equals
// "1.0.0".
func CompareVersions(a, b string) (int, error) {
	va, err := ParseVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := ParseVersion(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// SortVersionsDesc sorts versions highest first. Malformed entries sort
// after every valid version, in lexical order among themselves.
func SortVersionsDesc(versions []string) {
	slices.SortStableFunc(versions, func(a, b string) int {
		va, aerr := ParseVersion(a)
		vb, berr := ParseVersion(b)
		switch {
		case aerr != nil && berr != nil:
			if a < b {
				return -1
			}
			if a > b {
				return 1
			}
			return 0
		case aerr != nil:
			return 1
		case berr != nil:
			return -1
		}
		return vb.Compare(va)
	})
}

// LatestVersion returns the highest valid version in versions.
func LatestVersion(versions []string) (string, bool) {
	sorted := slices.Clone(versions)
	SortVersionsDesc(sorted)
	if len(sorted) == 0 || !ValidVersion(sorted[0]) {
		return "", false
	}
	return sorted[0], true
}

// NextMinor returns the minor increment of v as major.minor, dropping
// any patch component: "1.4" and "1.4.2" both become "1.5".
func NextMinor(v string) (string, error) {
	sv, err := ParseVersion(v)
	if err != nil {
		return "", err
	}
	next := sv.IncMinor()
	return fmt.Sprintf("%d.%d", next.Major(), next.Minor()), nil
}
