package slicing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Precision selects how a seek offset is rendered for the transcoder.
type Precision string

const (
	// PrecisionMillisecond keeps the user's fractional boundary.
	PrecisionMillisecond Precision = "millisecond"
	// PrecisionSecond truncates to whole seconds like the legacy tool. The
	// extracted start may drift up to one second before the requested one.
	PrecisionSecond Precision = "second"
)

// ParsePrecision accepts "millisecond"/"ms" and "second"/"s".
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "millisecond", "ms":
		return PrecisionMillisecond, nil
	case "second", "s":
		return PrecisionSecond, nil
	default:
		return "", fmt.Errorf("unknown seek precision %q", s)
	}
}

type clock struct {
	hours, minutes, seconds, millis int64
}

func split(seconds float64) clock {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return clock{}
	}
	// The epsilon absorbs binary noise such as 2.3*1000 = 2299.9999...
	total := int64(math.Floor(seconds*1000 + 1e-6))
	return clock{
		hours:   total / 3_600_000,
		minutes: total / 60_000 % 60,
		seconds: total / 1000 % 60,
		millis:  total % 1000,
	}
}

// FormatTime renders seconds as HH:MM:SS:mmm for display.
func FormatTime(seconds float64) string {
	c := split(seconds)
	return fmt.Sprintf("%02d:%02d:%02d:%03d", c.hours, c.minutes, c.seconds, c.millis)
}

// FileStamp is FormatTime with hyphens, safe for archive entry names.
func FileStamp(seconds float64) string {
	return strings.ReplaceAll(FormatTime(seconds), ":", "-")
}

// SeekTimestamp renders an offset the transcoder understands.
func SeekTimestamp(seconds float64, p Precision) string {
	c := split(seconds)
	if p == PrecisionSecond {
		return fmt.Sprintf("%02d:%02d:%02d", c.hours, c.minutes, c.seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%03d", c.hours, c.minutes, c.seconds, c.millis)
}

// ParseSpan reads "START:END". Both bounds are plain seconds, or both are
// HH:MM:SS[.mmm] clock times.
func ParseSpan(arg string) (Slice, error) {
	parts := strings.Split(strings.TrimSpace(arg), ":")
	if len(parts) != 2 && len(parts) != 6 {
		return Slice{}, fmt.Errorf("invalid slice %q: want START:END", arg)
	}
	half := len(parts) / 2

	start, err := parseClock(parts[:half])
	if err != nil {
		return Slice{}, fmt.Errorf("invalid slice %q: %w", arg, err)
	}
	end, err := parseClock(parts[half:])
	if err != nil {
		return Slice{}, fmt.Errorf("invalid slice %q: %w", arg, err)
	}
	if end <= start {
		return Slice{}, fmt.Errorf("invalid slice %q: end must be after start", arg)
	}
	return Slice{Start: start, End: end}, nil
}

func parseClock(fields []string) (float64, error) {
	var total float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("bad time %q", strings.Join(fields, ":"))
		}
		if i < len(fields)-1 && v != float64(int(v)) {
			return 0, fmt.Errorf("bad time %q", strings.Join(fields, ":"))
		}
		total = total*60 + v
	}
	return total, nil
}
