package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseDurationField reads a duration option. Go duration strings ("15s")
// and bare numbers of seconds ("15") are accepted; empty means zero.
// key names the option in errors, e.g. "webhook.read_timeout".
func ParseDurationField(key, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	var d time.Duration
	if secs, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(secs) && !math.IsInf(secs, 0) {
		d = time.Duration(secs * float64(time.Second))
	} else if d, err = time.ParseDuration(s); err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration (try \"30s\" or \"2m\")", key, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: %q is negative", key, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def used for zero.
func ParseDurationOrDefault(key, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(key, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
