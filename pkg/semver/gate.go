// Package semver decides which protocol generation a host speaks from its
// reported version string.
package semver

import (
	"fmt"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "semver:gate"

// MinCallbackVersion is the first host version that posts correlated
// responses back (callbackId protocol).
const MinCallbackVersion = "2.0.0"

var minCallbackVersion = masterminds.MustParse(MinCallbackVersion)

// CompareMode selects how host versions are compared against MinCallbackVersion.
type CompareMode string

const (
	// CompareSemver compares numerically ("2.10.0" > "2.9.0").
	CompareSemver CompareMode = "semver"
	// CompareLexical compares the raw strings, as older bridge builds did
	// ("2.10.0" < "2.9.0"). Only for fleets that depend on that ordering.
	CompareLexical CompareMode = "lexical"
)

// ParseCompareMode parses a mode name; empty means CompareSemver.
func ParseCompareMode(s string) (CompareMode, error) {
	switch CompareMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", CompareSemver:
		return CompareSemver, nil
	case CompareLexical:
		return CompareLexical, nil
	default:
		return "", fmt.Errorf("%s - unknown compare mode %q (use semver or lexical)", logPrefix, s)
	}
}

// SupportsCallbacks reports whether a host at hostVersion understands the
// callbackId protocol. An empty version means a legacy host.
func SupportsCallbacks(hostVersion string, mode CompareMode) (bool, error) {
	hostVersion = strings.TrimSpace(hostVersion)
	if hostVersion == "" {
		return false, nil
	}

	switch mode {
	case CompareLexical:
		return MinCallbackVersion <= hostVersion, nil
	case CompareSemver, "":
		v, err := masterminds.NewVersion(hostVersion)
		if err != nil {
			return false, fmt.Errorf("%s - invalid host version %q: %w", logPrefix, hostVersion, err)
		}
		// precedence, not a constraint: constraints reject prereleases like 3.0.0-rc1
		return !v.LessThan(minCallbackVersion), nil
	default:
		return false, fmt.Errorf("%s - unknown compare mode %q", logPrefix, mode)
	}
}
