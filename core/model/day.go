package model

import (
	"fmt"
	"time"
)

// dayLayout is the wire format of the {day} wildcard.
const dayLayout = "2006-01-02"

// Day identifies one settlement day of the island grid calendar.
// The zero value is not a valid day; use ParseDay or NewDay.
type Day struct {
	t time.Time
}

// NewDay builds a Day from a civil date.
func NewDay(year int, month time.Month, dom int) Day {
	return Day{t: time.Date(year, month, dom, 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a YYYY-MM-DD string into a Day.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return Day{t: t}, nil
}

// String renders the day in YYYY-MM-DD form.
func (d Day) String() string { return d.t.Format(dayLayout) }

// Time returns midnight UTC of the civil date.
func (d Day) Time() time.Time { return d.t }

// Year returns the calendar year.
func (d Day) Year() int { return d.t.Year() }

// IsZero reports whether the day is unset.
func (d Day) IsZero() bool { return d.t.IsZero() }

// ISOWeek returns the ISO-8601 year and week number for the day. Week 1 is
// the week containing the year's first Thursday, so early-January days may
// belong to the previous ISO year and late-December days to the next.
func (d Day) ISOWeek() (year, week int) { return d.t.ISOWeek() }

// AddDays returns the day shifted by n calendar days.
func (d Day) AddDays(n int) Day { return Day{t: d.t.AddDate(0, 0, n)} }

// Clock-change dates for the island grid's local time zone. Settlement data
// is half-hourly in local time, so the day length varies across transitions.
var (
	clocksForward = dateSet(
		"2019-03-31", "2020-03-29", "2021-03-28", "2022-03-27",
		"2023-03-26", "2024-03-31", "2025-03-30", "2026-03-29",
	)
	clocksBack = dateSet(
		"2019-10-27", "2020-10-25", "2021-10-31", "2022-10-30",
		"2023-10-29", "2024-10-27", "2025-10-26", "2026-10-25",
	)
)

func dateSet(days ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(days))
	for _, s := range days {
		m[s] = struct{}{}
	}
	return m
}

// SettlementPeriods returns the number of half-hour settlement periods in
// the day: 46 on the clocks-forward day, 50 on the clocks-back day and 48
// otherwise.
func (d Day) SettlementPeriods() int {
	key := d.String()
	if _, ok := clocksForward[key]; ok {
		return 46
	}
	if _, ok := clocksBack[key]; ok {
		return 50
	}
	return 48
}
