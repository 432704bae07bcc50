// Package version holds the build version, set at link time with
// -ldflags "-X apphost/pkg/version.version=1.2.3".
package version

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	version = "0.0.0"
	// Regular expression to match version pattern like "1.2.3" in "v1.2.3-beta"
	versionRegex = regexp.MustCompile(`(\d+)(?:\.(\d+))?(?:\.(\d+))?`)
)

func GetVersion() string {
	return version
}

// ParseNumericVersion turns the first "major[.minor[.patch]]" found in s
// into a comparable integer. Missing parts count as zero; unparsable input
// yields 0.
func ParseNumericVersion(s string) int {
	matches := versionRegex.FindStringSubmatch(s)
	if matches == nil {
		return 0
	}
	result := 0
	for _, part := range matches[1:] {
		num, _ := strconv.Atoi(part)
		result = result*1000 + num
	}
	return result
}

// Extract returns the first version number found in s, or "".
func Extract(s string) string {
	return strings.TrimSpace(versionRegex.FindString(s))
}

// AtLeast reports whether have is the same as or newer than want.
func AtLeast(have, want string) bool {
	return ParseNumericVersion(have) >= ParseNumericVersion(want)
}
