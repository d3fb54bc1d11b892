package wcs

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a packed OGC version number, major<<16 | minor<<8 | patch.
type Version int

const (
	Version100 Version = 0x010000
	Version110 Version = 0x010100
	Version111 Version = 0x010101
	Version112 Version = 0x010102
	Version200 Version = 0x020000
	Version201 Version = 0x020001
)

// SupportedVersions lists every protocol version served, highest first.
var SupportedVersions = []Version{Version201, Version200, Version112, Version111, Version110, Version100}

var versions1x = []Version{Version112, Version111, Version110, Version100}

// ParseVersion reads a two or three component dotted version string.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid version format: %q", s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return 0, fmt.Errorf("invalid version format: %q", s)
		}
		nums[i] = n
	}
	return Version(nums[0]<<16 | nums[1]<<8 | nums[2]), nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", int(v)>>16, (int(v)>>8)&0xff, int(v)&0xff)
}

// Is20 reports whether v belongs to the 2.0 family.
func (v Version) Is20() bool { return v>>8 == Version200>>8 }

// Is11 reports whether v belongs to the 1.1 family.
func (v Version) Is11() bool { return v>>8 == Version110>>8 }

// Is10 reports whether v belongs to the 1.0 family.
func (v Version) Is10() bool { return v>>8 == Version100>>8 }

// NegotiateVersion picks the version answered for requested out of
// supported, which must be ordered highest first: the exact version when
// supported, else the closest lower one, else the highest.
func NegotiateVersion(requested Version, supported []Version) Version {
	if len(supported) == 0 {
		return requested
	}
	for _, v := range supported {
		if v == requested {
			return v
		}
	}
	for _, v := range supported {
		if v < requested {
			return v
		}
	}
	return supported[0]
}

func isSupportedVersion(v Version) bool {
	for _, s := range SupportedVersions {
		if s == v {
			return true
		}
	}
	return false
}
