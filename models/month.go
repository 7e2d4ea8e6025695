package models

import (
	"fmt"
	"time"
)

// TargetMonth is the calendar month revenue is extracted for. Its canonical
// form is "YYYY-MM".
type TargetMonth struct {
	Year  int
	Month time.Month
}

// PreviousMonth returns the month immediately preceding now, evaluated in loc.
// A nil loc means UTC.
func PreviousMonth(now time.Time, loc *time.Location) TargetMonth {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	prev := first.AddDate(0, -1, 0)
	return TargetMonth{Year: prev.Year(), Month: prev.Month()}
}

// ParseMonthKey parses a "YYYY-MM" key.
func ParseMonthKey(key string) (TargetMonth, error) {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return TargetMonth{}, fmt.Errorf("invalid month key %q: %w", key, err)
	}
	return TargetMonth{Year: t.Year(), Month: t.Month()}, nil
}

// String renders the month as "YYYY-MM".
func (m TargetMonth) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Prev returns the month before m.
func (m TargetMonth) Prev() TargetMonth {
	if m.Month == time.January {
		return TargetMonth{Year: m.Year - 1, Month: time.December}
	}
	return TargetMonth{Year: m.Year, Month: m.Month - 1}
}

// Next returns the month after m.
func (m TargetMonth) Next() TargetMonth {
	if m.Month == time.December {
		return TargetMonth{Year: m.Year + 1, Month: time.January}
	}
	return TargetMonth{Year: m.Year, Month: m.Month + 1}
}

// MarshalText encodes the month as its "YYYY-MM" key.
func (m TargetMonth) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *TargetMonth) UnmarshalText(b []byte) error {
	parsed, err := ParseMonthKey(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
