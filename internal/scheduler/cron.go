package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Spec is a parsed 5-field cron expression (minute, hour, day-of-month,
// month, day-of-week). Each field is a bitset: bit n set means value n
// matches. Day-of-month values fit in 31 bits, so uint64 covers every field.
type Spec struct {
	minute uint64
	hour   uint64
	dom    uint64
	month  uint64
	dow    uint64
}

// Parse parses a standard 5-field cron expression. Supported syntax per
// field: `*`, `*/n`, `n`, `n-m`, `n-m/s`, and comma-separated lists.
func Parse(expr string) (*Spec, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	var s Spec
	var err error
	if s.minute, err = parseField(fields[0], 0, 59); err != nil {
		return nil, fmt.Errorf("minute field: %w", err)
	}
	if s.hour, err = parseField(fields[1], 0, 23); err != nil {
		return nil, fmt.Errorf("hour field: %w", err)
	}
	if s.dom, err = parseField(fields[2], 1, 31); err != nil {
		return nil, fmt.Errorf("day-of-month field: %w", err)
	}
	if s.month, err = parseField(fields[3], 1, 12); err != nil {
		return nil, fmt.Errorf("month field: %w", err)
	}
	if s.dow, err = parseField(fields[4], 0, 6); err != nil {
		return nil, fmt.Errorf("day-of-week field: %w", err)
	}
	return &s, nil
}

// Matches reports whether t satisfies the expression, at minute granularity.
func (s *Spec) Matches(t time.Time) bool {
	return s.minute&bit(t.Minute()) != 0 &&
		s.hour&bit(t.Hour()) != 0 &&
		s.dom&bit(t.Day()) != 0 &&
		s.month&bit(int(t.Month())) != 0 &&
		s.dow&bit(int(t.Weekday())) != 0
}

func bit(n int) uint64 { return 1 << uint(n) }

func parseField(field string, min, max int) (uint64, error) {
	var set uint64
	for _, part := range strings.Split(field, ",") {
		s, err := parsePart(part, min, max)
		if err != nil {
			return 0, err
		}
		set |= s
	}
	return set, nil
}

func parsePart(part string, min, max int) (uint64, error) {
	step := 1
	if idx := strings.Index(part, "/"); idx != -1 {
		v, err := strconv.Atoi(part[idx+1:])
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("invalid step: %s", part)
		}
		step = v
		part = part[:idx]
	}

	lo, hi := min, max
	switch {
	case part == "*":
		// full range
	case strings.Contains(part, "-"):
		bounds := strings.SplitN(part, "-", 2)
		v, err := strconv.Atoi(bounds[0])
		if err != nil {
			return 0, fmt.Errorf("invalid range start: %s", bounds[0])
		}
		lo = v
		v, err = strconv.Atoi(bounds[1])
		if err != nil {
			return 0, fmt.Errorf("invalid range end: %s", bounds[1])
		}
		hi = v
	default:
		v, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("invalid value: %s", part)
		}
		lo, hi = v, v
	}

	if lo < min || hi > max || lo > hi {
		return 0, fmt.Errorf("range %d-%d out of bounds %d-%d", lo, hi, min, max)
	}

	var set uint64
	for i := lo; i <= hi; i += step {
		set |= bit(i)
	}
	return set, nil
}
