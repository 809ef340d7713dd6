package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a config interval. In TOML it is written as a Go duration
// string ("100ms", "1.5s") or as a bare number of milliseconds.
type Duration time.Duration

var errNegativeDuration = errors.New("must not be negative")

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := parseInterval(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

func parseInterval(s string) (time.Duration, error) {
	var v time.Duration
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		v = time.Duration(ms) * time.Millisecond
	} else if v, err = time.ParseDuration(s); err != nil {
		return 0, errors.New(`want a duration such as "250ms" or "2s", or milliseconds`)
	}
	if v < 0 {
		return 0, errNegativeDuration
	}
	return v, nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
