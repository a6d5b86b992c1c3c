// Package envcfg parses the handful of environment-variable knobs the HMCS
// lock honors, mirroring the original izem library's getenv/atoi pattern.
// Topology discovery itself stays external; this package only turns strings
// into the scalar values HMCS construction needs.
package envcfg

import (
	"os"
	"strconv"
	"strings"
)

const (
	// DefaultMaxLevels is used when HMCS_MAX_LEVELS is unset.
	DefaultMaxLevels = 3
	// DefaultThreshold is used when HMCS_THRESHOLD is unset.
	DefaultThreshold = 256
)

// HMCSMaxLevels returns the HMCS_MAX_LEVELS value, or DefaultMaxLevels.
func HMCSMaxLevels() int {
	return intOrDefault("HMCS_MAX_LEVELS", DefaultMaxLevels)
}

// HMCSThreshold returns the HMCS_THRESHOLD value, or DefaultThreshold.
func HMCSThreshold() int {
	return intOrDefault("HMCS_THRESHOLD", DefaultThreshold)
}

// HMCSExplicitLevels returns the HMCS_EXPLICIT_LEVELS depths, ascending,
// or (nil, false) if the variable is unset or malformed. The first entry
// is always 0 per the izem convention (machine/package level); a list that
// does not start at 0 or is not strictly ascending counts as malformed.
func HMCSExplicitLevels() ([]int, bool) {
	s, ok := os.LookupEnv("HMCS_EXPLICIT_LEVELS")
	if !ok || s == "" {
		return nil, false
	}
	parts := strings.Split(s, ",")
	depths := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, false
		}
		depths = append(depths, v)
	}
	if depths[0] != 0 {
		return nil, false
	}
	for i := 1; i < len(depths); i++ {
		if depths[i] <= depths[i-1] {
			return nil, false
		}
	}
	return depths, true
}

func intOrDefault(key string, def int) int {
	s, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
