package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTTLFormat is returned for TTL strings that are not an integer
// followed by s, m, h, or d. TTLs come from configuration, so this surfaces
// at startup rather than during request handling.
var ErrInvalidTTLFormat = errors.New("invalid TTL format")

// ParseTTL parses a TTL configuration string such as "15m" or "7d" into a
// duration. The accepted form is a positive integer with a single trailing
// unit: s (seconds), m (minutes), h (hours), or d (days).
func ParseTTL(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTTLFormat, s)
	}

	unit := s[len(s)-1]
	n, err := strconv.ParseInt(strings.TrimSpace(s[:len(s)-1]), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTTLFormat, s)
	}

	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTTLFormat, s)
	}
}
