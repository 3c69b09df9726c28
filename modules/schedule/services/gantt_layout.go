package services

import (
	"fmt"
	"math"

	"github.com/golang-sql/civil"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
	"github.com/3chihiro/evm-tool/pkg/calendar"
)

var weekdayLabels = [7]string{"日", "月", "火", "水", "木", "金", "土"}

// TimeScale maps calendar days to horizontal pixels starting at Origin.
type TimeScale struct {
	Origin   civil.Date `json:"origin"`
	PxPerDay float64    `json:"pxPerDay"`
}

func (s TimeScale) DateToX(d civil.Date) float64 {
	return float64(calendar.DaysBetween(s.Origin, d)) * s.PxPerDay
}

// XToDate snaps x to the nearest day; positions left of the origin clamp to it.
func (s TimeScale) XToDate(x float64) civil.Date {
	idx := int(math.Max(0, math.Round(x/s.PxPerDay)))
	return s.Origin.AddDays(idx)
}

// SnapPx rounds x to a whole number of days.
func SnapPx(x, pxPerDay float64) float64 {
	return math.Round(x/pxPerDay) * pxPerDay
}

type BarRect struct {
	X     float64 `json:"x"`
	Width float64 `json:"width"`
}

// PlanBar spans start through finish inclusive.
func (s TimeScale) PlanBar(start, finish civil.Date) BarRect {
	days := math.Max(0, float64(calendar.DaysBetween(start, finish)+1))
	return BarRect{X: s.DateToX(start), Width: days * s.PxPerDay}
}

// ActualBar is nil for tasks that have not started. A started but unfinished
// task runs to asOf when given.
func (s TimeScale) ActualBar(start, finish, asOf *civil.Date) *BarRect {
	if start == nil {
		return nil
	}
	end := finish
	if end == nil {
		end = asOf
	}
	if end == nil {
		return nil
	}
	bar := s.PlanBar(*start, *end)
	return &bar
}

type HeaderSegment struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Width float64 `json:"width"`
}

// TripleHeader is the month / day / weekday header of a Gantt chart.
type TripleHeader struct {
	Months   []HeaderSegment `json:"months"`
	Days     []HeaderSegment `json:"days"`
	Weekdays []HeaderSegment `json:"weekdays"`
}

func BuildTripleHeader(start, end civil.Date, pxPerDay float64) TripleHeader {
	h := TripleHeader{Months: []HeaderSegment{}, Days: []HeaderSegment{}, Weekdays: []HeaderSegment{}}
	if start.After(end) {
		return h
	}
	i := 0
	monthStart := 0
	for d := start; !d.After(end); d = d.AddDays(1) {
		x := float64(i) * pxPerDay
		h.Days = append(h.Days, HeaderSegment{Label: fmt.Sprintf("%02d", d.Day), X: x, Width: pxPerDay})
		h.Weekdays = append(h.Weekdays, HeaderSegment{Label: weekdayLabels[calendar.Weekday(d)], X: x, Width: pxPerDay})

		next := d.AddDays(1)
		if next.After(end) || next.Month != d.Month || next.Year != d.Year {
			h.Months = append(h.Months, HeaderSegment{
				Label: fmt.Sprintf("%04d-%02d", d.Year, int(d.Month)),
				X:     float64(monthStart) * pxPerDay,
				Width: float64(i-monthStart+1) * pxPerDay,
			})
			monthStart = i + 1
		}
		i++
	}
	return h
}

type HitKind string

const (
	HitMove         HitKind = "move"
	HitResizeStart  HitKind = "resize-start"
	HitResizeFinish HitKind = "resize-finish"
)

const (
	hitEdgePx = 6
	hitPadPx  = 4
)

// DragMode maps a hit to the drag it starts.
func (k HitKind) DragMode() DragMode {
	return DragMode(k)
}

// HitBox is the clickable area of one bar. BarY/BarHeight, when BarHeight > 0,
// narrow the vertical band from the whole row to the bar.
type HitBox struct {
	TaskID    int     `json:"taskId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	BarY      float64 `json:"barY,omitempty"`
	BarHeight float64 `json:"barHeight,omitempty"`
}

// HitTest finds the first box under (mx, my). Within 6px of either end the
// hit resizes that end.
func HitTest(mx, my float64, boxes []HitBox, rowHeight float64) (HitBox, HitKind, bool) {
	for _, b := range boxes {
		top, bottom := b.Y, b.Y+rowHeight
		if b.BarHeight > 0 {
			top, bottom = b.BarY-hitPadPx, b.BarY+b.BarHeight+hitPadPx
		}
		if my < top || my > bottom || mx < b.X-hitPadPx || mx > b.X+b.Width+hitPadPx {
			continue
		}
		switch {
		case mx <= b.X+hitEdgePx:
			return b, HitResizeStart, true
		case mx >= b.X+b.Width-hitEdgePx:
			return b, HitResizeFinish, true
		default:
			return b, HitMove, true
		}
	}
	return HitBox{}, "", false
}

// GanttRow is the drawable geometry of one task.
type GanttRow struct {
	TaskID    int      `json:"taskId"`
	TaskName  string   `json:"taskName"`
	Plan      BarRect  `json:"plan"`
	Actual    *BarRect `json:"actual,omitempty"`
	Progress  float64  `json:"progress"`
	Violation bool     `json:"violation"`
}

type GanttLayout struct {
	Scale  TimeScale    `json:"scale"`
	Header TripleHeader `json:"header"`
	Rows   []GanttRow   `json:"rows"`
}

// BuildGanttLayout lays out tasks over the span from the earliest to the latest
// plan or actual date. Rows flagged as violations start before a predecessor finishes.
func BuildGanttLayout(tasks []task.Task, pxPerDay float64, asOf *civil.Date) GanttLayout {
	layout := GanttLayout{
		Scale:  TimeScale{PxPerDay: pxPerDay},
		Header: TripleHeader{Months: []HeaderSegment{}, Days: []HeaderSegment{}, Weekdays: []HeaderSegment{}},
		Rows:   []GanttRow{},
	}
	if len(tasks) == 0 {
		return layout
	}
	first, last := tasks[0].Start, tasks[0].Finish
	widen := func(d *civil.Date) {
		if d == nil {
			return
		}
		first = calendar.MinDate(first, *d)
		last = calendar.MaxDate(last, *d)
	}
	for i := range tasks {
		widen(&tasks[i].Start)
		widen(&tasks[i].Finish)
		widen(tasks[i].ActualStart)
		widen(tasks[i].ActualFinish)
	}

	layout.Scale = TimeScale{Origin: first, PxPerDay: pxPerDay}
	layout.Header = BuildTripleHeader(first, last, pxPerDay)
	violations := map[int]struct{}{}
	for _, id := range FindViolations(tasks) {
		violations[id] = struct{}{}
	}
	for _, t := range tasks {
		_, bad := violations[t.TaskID]
		layout.Rows = append(layout.Rows, GanttRow{
			TaskID:    t.TaskID,
			TaskName:  t.TaskName,
			Plan:      layout.Scale.PlanBar(t.Start, t.Finish),
			Actual:    layout.Scale.ActualBar(t.ActualStart, t.ActualFinish, asOf),
			Progress:  clamp01(finite(t.ProgressPercent) / 100),
			Violation: bad,
		})
	}
	return layout
}
