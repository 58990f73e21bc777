package transcript

import (
	"fmt"
	"strings"
	"time"
)

// DateOrder says how the numeric date in a header is laid out. Exports follow
// the phone's locale, so it cannot be inferred from a single date.
type DateOrder string

const (
	DayMonthYear DateOrder = "dmy"
	MonthDayYear DateOrder = "mdy"
)

// ParseDateOrder accepts "dmy" or "mdy" (any case).
func ParseDateOrder(s string) (DateOrder, error) {
	switch DateOrder(strings.ToLower(strings.TrimSpace(s))) {
	case DayMonthYear:
		return DayMonthYear, nil
	case MonthDayYear:
		return MonthDayYear, nil
	}
	return "", fmt.Errorf("unknown date order %q (expected dmy or mdy)", s)
}

func (o DateOrder) layouts() []string {
	if o == MonthDayYear {
		return []string{"1/2/06", "1/2/2006"}
	}
	return []string{"2/1/06", "2/1/2006"}
}

// ParseDate turns a header date such as "3/11/24" into a UTC calendar day.
func ParseDate(date string, order DateOrder) (time.Time, error) {
	for _, layout := range order.layouts() {
		if t, err := time.Parse(layout, date); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q as %s", date, order)
}

var clockLayouts = []string{"15:04", "3:04 PM", "3:04PM"}

// ClockMinutes returns the minute of the day for a header time such as
// "21:07", "9:07 PM" or "9:07 p.m.". ok is false when the time is not recognized.
func ClockMinutes(clock string) (minutes int, ok bool) {
	norm := strings.Map(func(r rune) rune {
		switch r {
		case '\u00a0', '\u202f', '\t':
			return ' '
		case '.':
			return -1
		}
		return r
	}, clock)
	norm = strings.ToUpper(strings.TrimSpace(norm))

	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, norm); err == nil {
			return t.Hour()*60 + t.Minute(), true
		}
	}
	return 0, false
}
