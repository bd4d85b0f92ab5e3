// Package week holds the pure calendar rules for weekly pickup schedules:
// week identity, day offsets, submission deadlines, and the advance-notice
// window for change requests. It has no dependencies on persistence or
// transport so the rules can be tested against a fixed clock.
package week

import (
	"fmt"
	"time"
)

// DayKey identifies a weekday inside a week schedule, Monday first.
type DayKey string

const (
	Monday    DayKey = "Mon"
	Tuesday   DayKey = "Tue"
	Wednesday DayKey = "Wed"
	Thursday  DayKey = "Thu"
	Friday    DayKey = "Fri"
	Saturday  DayKey = "Sat"
	Sunday    DayKey = "Sun"
)

// DayKeys lists all weekdays in schedule order.
var DayKeys = []DayKey{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var dayOffsets = map[DayKey]int{
	Monday:    0,
	Tuesday:   1,
	Wednesday: 2,
	Thursday:  3,
	Friday:    4,
	Saturday:  5,
	Sunday:    6,
}

// ParseDay converts a wire value into a DayKey.
func ParseDay(value string) (DayKey, error) {
	day := DayKey(value)
	if _, ok := dayOffsets[day]; !ok {
		return "", fmt.Errorf("week: unknown day %q", value)
	}
	return day, nil
}

// Valid reports whether the key names a known weekday.
func (d DayKey) Valid() bool {
	_, ok := dayOffsets[d]
	return ok
}

// Offset returns the number of days between the week's Monday and this day.
func (d DayKey) Offset() int {
	return dayOffsets[d]
}

// Pickup describes a morning pickup slot for one day.
type Pickup struct {
	Time        string
	AddressID   string
	AddressName string
}

// Drop describes the evening drop slot for one day.
type Drop struct {
	AddressID   string
	AddressName string
}

// DaySchedule carries the optional pickup and drop entries for a single day.
type DaySchedule struct {
	Pickup *Pickup
	Drop   *Drop
}

// Schedule maps weekdays to their entries. Absent days carry no transport.
type Schedule map[DayKey]DaySchedule

// ValidPickup reports whether the day has a complete pickup entry. A pickup
// needs both a time and an address reference to be actionable.
func (d DaySchedule) ValidPickup() bool {
	if d.Pickup == nil {
		return false
	}
	return d.Pickup.Time != "" && (d.Pickup.AddressID != "" || d.Pickup.AddressName != "")
}

// ValidDays returns the weekdays carrying a complete pickup, in schedule order.
func (s Schedule) ValidDays() []DayKey {
	days := make([]DayKey, 0, len(s))
	for _, key := range DayKeys {
		if day, ok := s[key]; ok && day.ValidPickup() {
			days = append(days, key)
		}
	}
	return days
}

// WeekStartLayout is the wire format for week identifiers (the Monday date).
const WeekStartLayout = "2006-01-02"

// ParseWeekStart interprets a week identifier as a local-midnight Monday.
func ParseWeekStart(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation(WeekStartLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("week: invalid week start %q: %w", value, err)
	}
	if start.Weekday() != time.Monday {
		return time.Time{}, fmt.Errorf("week: week start %q is not a Monday", value)
	}
	return start, nil
}

// NextMonday returns the Monday of the week after the one containing now,
// truncated to local midnight. Submissions always target the following week.
func NextMonday(now time.Time) time.Time {
	day := int(now.Weekday())
	if day == 0 {
		day = 7 // treat Sunday as the seventh day of a Monday-start week
	}
	daysAhead := 8 - day
	next := now.AddDate(0, 0, daysAhead)
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, now.Location())
}

// DateFor resolves a weekday within the identified week to a concrete
// local-midnight date.
func DateFor(weekStart time.Time, day DayKey) time.Time {
	d := weekStart.AddDate(0, 0, day.Offset())
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, weekStart.Location())
}

// SubmissionDeadline returns the instant after which schedule submissions for
// the given week close: 17:00 on the Friday preceding the week's Monday.
func SubmissionDeadline(weekStart time.Time) time.Time {
	friday := weekStart.AddDate(0, 0, -3)
	return time.Date(friday.Year(), friday.Month(), friday.Day(), 17, 0, 0, 0, weekStart.Location())
}

// DeadlinePassed reports whether the submission window for the week has closed.
func DeadlinePassed(now, weekStart time.Time) bool {
	return !now.Before(SubmissionDeadline(weekStart))
}

// AtLeastDaysAway reports whether target is no less than n whole days ahead of
// now. The comparison is an exact duration check: a target n*24h-1s away is
// too close, a target exactly n*24h away qualifies.
func AtLeastDaysAway(target, now time.Time, n int) bool {
	return target.Sub(now) >= time.Duration(n)*24*time.Hour
}
