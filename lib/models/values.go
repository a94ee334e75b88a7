package models

import (
	"crypto/sha1"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DigestContent fingerprints arbitrary content, e.g. a serialized filter.
func DigestContent(content string) string {
	return fmt.Sprintf("%x", sha1.Sum([]byte(content)))
}

// ParseTimeOfDay parses an HH:MM string.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// ParseOffset parses a fixed UTC offset such as "+03:00", "-0530", "+3" or "Z".
func ParseOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "Z", "z", "UTC":
		return 0, nil
	}

	sign := 1
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	default:
		return 0, fmt.Errorf("invalid offset %q: missing sign", s)
	}

	var hh, mm string
	switch {
	case strings.Contains(s, ":"):
		hh, mm, _ = strings.Cut(s, ":")
	case len(s) == 4:
		hh, mm = s[:2], s[2:]
	default:
		hh, mm = s, "0"
	}

	hours, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid offset hours %q: %w", hh, err)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid offset minutes %q: %w", mm, err)
	}
	if hours > 18 || minutes > 59 || hours < 0 || minutes < 0 {
		return 0, fmt.Errorf("offset out of range: %q", s)
	}
	return sign * (hours*3600 + minutes*60), nil
}

// FormatOffset renders seconds east of UTC as "+HH:MM".
func FormatOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("%c%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}
