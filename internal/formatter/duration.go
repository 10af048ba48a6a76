// Package formatter parses and renders durations and timestamps: the
// free-text duration strings a user can type into the tracker UI, the
// HH:MM:SS / HH:MM displays derived from them, and the per-day grouping
// key used to cluster time entries in a list view.
//
// Every exported function here is pure and never errors; ParseDuration
// returns 0 for input it cannot make sense of rather than failing, since
// it is called on every keystroke of a duration edit field.
package formatter

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RoundingMode selects how FormatHHMM reduces a seconds count to whole
// minutes.
type RoundingMode int

const (
	// RoundTruncate floors to the minute, discarding any remainder.
	RoundTruncate RoundingMode = iota
	// RoundNearest rounds to the closest minute, ties rounding up.
	RoundNearest
	// RoundClassic rounds up whenever any seconds remain past the last
	// whole minute, matching the legacy display used for entries still
	// running.
	RoundClassic
)

var (
	reHMS = regexp.MustCompile(`(?i)^(\d+):([0-5]?\d):([0-5]?\d)$`)
	reMS  = regexp.MustCompile(`(?i)^(\d+):([0-5]?\d)$`)
	reHM  = regexp.MustCompile(`(?i)^([\d.,]+)\s*h(?:ours?)?\s*(\d+)?\s*m(?:in(?:utes?)?)?$`)
	reH   = regexp.MustCompile(`(?i)^([\d.,]+)\s*h(?:ours?)?$`)
	reMin = regexp.MustCompile(`(?i)^([\d.,]+)\s*m(?:in(?:utes?)?)?$`)
	reNum = regexp.MustCompile(`^[\d.,]+$`)
)

// ParseDuration converts a free-text duration into a whole number of
// seconds. It recognizes "H:MM:SS", "MM:SS", "N h M min", "Nh", "N min"
// and a bare number, which is taken as minutes. Leading/trailing and
// internal whitespace is tolerated; a decimal point or comma introduces
// a fractional hour or minute count. Anything else, including negative
// input, returns 0.
func ParseDuration(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return 0
	}

	if m := reHMS.FindStringSubmatch(s); m != nil {
		h, _ := strconv.ParseInt(m[1], 10, 64)
		mi, _ := strconv.ParseInt(m[2], 10, 64)
		se, _ := strconv.ParseInt(m[3], 10, 64)
		return h*3600 + mi*60 + se
	}
	if m := reMS.FindStringSubmatch(s); m != nil {
		mi, _ := strconv.ParseInt(m[1], 10, 64)
		se, _ := strconv.ParseInt(m[2], 10, 64)
		return mi*60 + se
	}
	if m := reHM.FindStringSubmatch(s); m != nil {
		h := parseDecimal(m[1])
		var mi float64
		if m[2] != "" {
			mi, _ = strconv.ParseFloat(m[2], 64)
		}
		return int64(math.Round(h*3600 + mi*60))
	}
	if m := reH.FindStringSubmatch(s); m != nil {
		return int64(math.Round(parseDecimal(m[1]) * 3600))
	}
	if m := reMin.FindStringSubmatch(s); m != nil {
		return int64(math.Round(parseDecimal(m[1]) * 60))
	}
	if reNum.MatchString(s) {
		return int64(math.Round(parseDecimal(s) * 60))
	}
	return 0
}

func parseDecimal(s string) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return f
}

// FormatHHMMSS renders a seconds count as "H:MM:SS". Negative input
// (the convention for a still-running entry's raw duration) is taken as
// an absolute value; callers of this package pass now-start themselves.
func FormatHHMMSS(seconds int64) string {
	if seconds < 0 {
		seconds = -seconds
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// FormatHHMM renders a seconds count as "H:MM" using the given rounding
// mode to collapse the trailing seconds.
func FormatHHMM(seconds int64, mode RoundingMode) string {
	if seconds < 0 {
		seconds = -seconds
	}

	var totalMinutes int64
	switch mode {
	case RoundNearest:
		totalMinutes = int64(math.Round(float64(seconds) / 60))
	case RoundClassic:
		totalMinutes = seconds / 60
		if seconds%60 != 0 {
			totalMinutes++
		}
	default: // RoundTruncate
		totalMinutes = seconds / 60
	}

	h := totalMinutes / 60
	m := totalMinutes % 60
	return fmt.Sprintf("%d:%02d", h, m)
}

// DateHeader returns the "YYYY-MM-DD" key of the local calendar day that
// startUnix (a UTC unix timestamp) falls on in loc. The UI groups time
// entries by exact equality of this string. loc defaults to time.Local
// when nil.
func DateHeader(startUnix int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(startUnix, 0).In(loc).Format("2006-01-02")
}
