// Package calendar implements working-day arithmetic over a single set of
// holidays and off-weekdays. All dates are UTC calendar days.
package calendar

import (
	"sort"
	"time"

	"github.com/golang-sql/civil"
)

// MaxSnapSteps bounds how far Snap walks looking for a working day.
const MaxSnapSteps = 10

// DefaultOffWeekdays is used when a calendar is built without explicit off-weekdays.
var DefaultOffWeekdays = []time.Weekday{time.Sunday, time.Saturday}

var defaultCalendar = New(nil, nil)

// Calendar is immutable once built. A nil *Calendar behaves like Default().
type Calendar struct {
	holidays map[civil.Date]struct{}
	off      [7]bool
}

// New builds a calendar. A nil offWeekdays slice selects DefaultOffWeekdays;
// an empty non-nil slice means every weekday is a working day.
func New(holidays []civil.Date, offWeekdays []time.Weekday) *Calendar {
	c := &Calendar{holidays: make(map[civil.Date]struct{}, len(holidays))}
	for _, h := range holidays {
		c.holidays[h] = struct{}{}
	}
	if offWeekdays == nil {
		offWeekdays = DefaultOffWeekdays
	}
	for _, wd := range offWeekdays {
		if wd >= time.Sunday && wd <= time.Saturday {
			c.off[wd] = true
		}
	}
	return c
}

func Default() *Calendar {
	return defaultCalendar
}

func (c *Calendar) resolve() *Calendar {
	if c == nil {
		return defaultCalendar
	}
	return c
}

func (c *Calendar) IsWorkingDay(d civil.Date) bool {
	c = c.resolve()
	if c.off[Weekday(d)] {
		return false
	}
	_, holiday := c.holidays[d]
	return !holiday
}

// CountWorkingDays counts working days in [start, end]. It returns 0 when start is after end.
func (c *Calendar) CountWorkingDays(start, end civil.Date) int {
	if start.After(end) {
		return 0
	}
	n := 0
	for d := start; !d.After(end); d = d.AddDays(1) {
		if c.IsWorkingDay(d) {
			n++
		}
	}
	return n
}

// WorkingDays enumerates the working days in [start, end] in order.
func (c *Calendar) WorkingDays(start, end civil.Date) []civil.Date {
	var days []civil.Date
	for d := start; !d.After(end); d = d.AddDays(1) {
		if c.IsWorkingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// Snap moves d to the nearest working day in the given direction (dir < 0 walks
// backwards, anything else forwards). After MaxSnapSteps without a working day
// d is returned unchanged.
func (c *Calendar) Snap(d civil.Date, dir int) civil.Date {
	step := 1
	if dir < 0 {
		step = -1
	}
	cur := d
	for i := 0; i <= MaxSnapSteps; i++ {
		if c.IsWorkingDay(cur) {
			return cur
		}
		cur = cur.AddDays(step)
	}
	return d
}

func (c *Calendar) Holidays() []civil.Date {
	c = c.resolve()
	out := make([]civil.Date, 0, len(c.holidays))
	for d := range c.holidays {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (c *Calendar) OffWeekdays() []time.Weekday {
	c = c.resolve()
	out := []time.Weekday{}
	for wd, off := range c.off {
		if off {
			out = append(out, time.Weekday(wd))
		}
	}
	return out
}

// Weekday reports the weekday of d.
func Weekday(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}
