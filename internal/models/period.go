package models

import (
	"fmt"
	"time"
)

// Granularity is the length of an evaluation period.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

func (g Granularity) Valid() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityYear:
		return true
	}
	return false
}

// Period identifies one concrete occurrence of a granularity, e.g. the week
// starting 2026-08-24. Start is always normalized to the period boundary in
// UTC; weeks start on Monday.
type Period struct {
	Granularity Granularity `json:"granularity"`
	Start       time.Time   `json:"start"`
}

// NewPeriod normalizes t to the boundary of the period containing it.
func NewPeriod(g Granularity, t time.Time) Period {
	t = t.UTC()
	var start time.Time
	switch g {
	case GranularityWeek:
		day := t
		// back up to Monday
		offset := (int(day.Weekday()) + 6) % 7
		day = day.AddDate(0, 0, -offset)
		start = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityMonth:
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case GranularityYear:
		start = time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	default:
		start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return Period{Granularity: g, Start: start}
}

// Previous returns the immediately preceding period of the same granularity.
func (p Period) Previous() Period {
	switch p.Granularity {
	case GranularityWeek:
		return Period{p.Granularity, p.Start.AddDate(0, 0, -7)}
	case GranularityMonth:
		return Period{p.Granularity, p.Start.AddDate(0, -1, 0)}
	case GranularityYear:
		return Period{p.Granularity, p.Start.AddDate(-1, 0, 0)}
	default:
		return Period{p.Granularity, p.Start.AddDate(0, 0, -1)}
	}
}

// PreviousYear returns the same period one year earlier. It is undefined for
// yearly granularity, in which case ok is false.
func (p Period) PreviousYear() (Period, bool) {
	if p.Granularity == GranularityYear {
		return Period{}, false
	}
	return NewPeriod(p.Granularity, p.Start.AddDate(-1, 0, 0)), true
}

// End returns the first instant after the period.
func (p Period) End() time.Time {
	switch p.Granularity {
	case GranularityWeek:
		return p.Start.AddDate(0, 0, 7)
	case GranularityMonth:
		return p.Start.AddDate(0, 1, 0)
	case GranularityYear:
		return p.Start.AddDate(1, 0, 0)
	default:
		return p.Start.AddDate(0, 0, 1)
	}
}

func (p Period) String() string {
	return fmt.Sprintf("%s %s", p.Granularity, p.Start.Format("2006-01-02"))
}
