package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
	"github.com/3chihiro/evm-tool/pkg/calendar"
)

type DragMode string

const (
	DragMove         DragMode = "move"
	DragResizeStart  DragMode = "resize-start"
	DragResizeFinish DragMode = "resize-finish"
)

func ParseDragMode(v string) (DragMode, error) {
	switch mode := DragMode(strings.ToLower(strings.TrimSpace(v))); mode {
	case "":
		return DragMove, nil
	case DragMove, DragResizeStart, DragResizeFinish:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid drag mode %q (expected move|resize-start|resize-finish)", v)
	}
}

var ErrDragFinished = errors.New("drag session already committed or cancelled")

// DragOptions are the editing preferences in effect for one drag.
type DragOptions struct {
	PxPerDay          float64 `json:"pxPerDay" validate:"gt=0"`
	LinkedShifts      bool    `json:"linkedShifts"`
	ActualFollowsPlan bool    `json:"actualFollowsPlan"`
}

// ActualDates is a preview of shifted actual dates.
type ActualDates struct {
	Start  *civil.Date `json:"start,omitempty"`
	Finish *civil.Date `json:"finish,omitempty"`
}

// DragPreview is the proposed result of the current drag position. Plan and
// Actual only contain tasks whose dates differ from the committed state.
type DragPreview struct {
	DeltaDays  int                 `json:"deltaDays"`
	Plan       Schedule            `json:"plan"`
	Actual     map[int]ActualDates `json:"actual,omitempty"`
	Violations []int               `json:"violations"`
}

// DragSession captures the committed state at Begin and produces previews
// until Commit or Cancel. Nothing is mutated before Commit, and Commit only
// returns a command for the caller to execute.
type DragSession struct {
	ID uuid.UUID

	mode      DragMode
	opts      DragOptions
	cal       *calendar.Calendar
	graph     *DependencyGraph
	base      map[int]task.Task
	baseSpans map[int]Span
	selected  []int
	followers []int
	preview   *DragPreview
	finished  bool
}

// BeginDrag starts a drag of the selected tasks. With linked shifts enabled the
// transitive successors of the selection join the edit.
func BeginDrag(tasks []task.Task, selected []int, mode DragMode, opts DragOptions, cal *calendar.Calendar) (*DragSession, error) {
	if len(selected) == 0 {
		return nil, fmt.Errorf("no tasks selected")
	}
	if _, err := ParseDragMode(string(mode)); err != nil {
		return nil, err
	}
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid drag options: %w", err)
	}

	s := &DragSession{
		ID:        uuid.New(),
		mode:      mode,
		opts:      opts,
		cal:       cal,
		graph:     NewDependencyGraph(tasks),
		base:      make(map[int]task.Task, len(tasks)),
		baseSpans: spansOf(tasks),
	}
	for _, t := range tasks {
		if _, dup := s.base[t.TaskID]; !dup {
			s.base[t.TaskID] = t.Clone()
		}
	}
	seen := map[int]struct{}{}
	for _, id := range selected {
		if _, ok := s.base[id]; !ok {
			return nil, fmt.Errorf("unknown task %d", id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		s.selected = append(s.selected, id)
	}
	if opts.LinkedShifts {
		s.followers = s.graph.TransitiveSuccessors(s.selected)
	}
	return s, nil
}

// Mode reports how the session edits the selected tasks.
func (s *DragSession) Mode() DragMode { return s.mode }

// Update converts a pointer delta to whole days and recomputes the preview.
func (s *DragSession) Update(deltaPx float64) *DragPreview {
	return s.UpdateDays(int(math.Round(deltaPx / s.opts.PxPerDay)))
}

// UpdateDays recomputes the preview for a delta of whole calendar days.
func (s *DragSession) UpdateDays(days int) *DragPreview {
	s.preview = s.compute(days)
	return s.preview
}

func (s *DragSession) Preview() *DragPreview {
	return s.preview
}

func (s *DragSession) compute(days int) *DragPreview {
	p := &DragPreview{DeltaDays: days, Plan: Schedule{}, Violations: []int{}}
	if days == 0 {
		return p
	}
	dir := 1
	if days < 0 {
		dir = -1
	}

	proposed := Schedule{}
	for _, id := range s.selected {
		b := s.baseSpans[id]
		switch s.mode {
		case DragResizeStart:
			start := s.cal.Snap(b.Start.AddDays(days), dir)
			if start.After(b.Finish) {
				start = b.Finish
			}
			proposed[id] = Span{Start: start, Finish: b.Finish}
		case DragResizeFinish:
			finish := s.cal.Snap(b.Finish.AddDays(days), dir)
			if finish.Before(b.Start) {
				finish = b.Start
			}
			proposed[id] = Span{Start: b.Start, Finish: finish}
		default:
			proposed[id] = s.shifted(b, days, dir)
		}
	}
	if s.opts.LinkedShifts {
		if s.mode == DragMove {
			for _, id := range s.followers {
				proposed[id] = s.shifted(s.baseSpans[id], days, dir)
			}
		}
		proposed = EnforceFSConstraints(s.graph, s.baseSpans, proposed, s.selected, s.cal)
	}

	for id, sp := range proposed {
		if sp != s.baseSpans[id] {
			p.Plan[id] = sp
		}
	}
	if s.opts.ActualFollowsPlan {
		p.Actual = s.followActuals(p.Plan)
	}
	p.Violations = ValidateDeps(s.graph, s.baseSpans, p.Plan)
	if p.Violations == nil {
		p.Violations = []int{}
	}
	return p
}

func (s *DragSession) shifted(b Span, days, dir int) Span {
	return Span{
		Start:  s.cal.Snap(b.Start.AddDays(days), dir),
		Finish: s.cal.Snap(b.Finish.AddDays(days), dir),
	}
}

// followActuals shifts actual dates by each task's start delta. Tasks resized
// directly by the pointer do not move, so their actual dates stay.
func (s *DragSession) followActuals(plan Schedule) map[int]ActualDates {
	resized := map[int]struct{}{}
	if s.mode != DragMove {
		for _, id := range s.selected {
			resized[id] = struct{}{}
		}
	}
	out := map[int]ActualDates{}
	for id, sp := range plan {
		if _, ok := resized[id]; ok {
			continue
		}
		t := s.base[id]
		if t.ActualStart == nil && t.ActualFinish == nil {
			continue
		}
		delta := calendar.DaysBetween(s.baseSpans[id].Start, sp.Start)
		if delta == 0 {
			continue
		}
		var a ActualDates
		if t.ActualStart != nil {
			v := t.ActualStart.AddDays(delta)
			a.Start = &v
		}
		if t.ActualFinish != nil {
			v := t.ActualFinish.AddDays(delta)
			a.Finish = &v
		}
		out[id] = a
	}
	return out
}

// Commit turns the latest preview into a command. Any violation rejects the
// whole edit with a *ViolationError. A preview without changes yields a nil
// command. The session cannot be used afterwards.
func (s *DragSession) Commit() (*ScheduleCommand, error) {
	if s.finished {
		return nil, ErrDragFinished
	}
	s.finished = true
	p := s.preview
	if p == nil {
		p = s.compute(0)
	}
	if len(p.Violations) > 0 {
		return nil, &ViolationError{TaskIDs: append([]int(nil), p.Violations...)}
	}

	ids := make([]int, 0, len(p.Plan)+len(p.Actual))
	touched := map[int]struct{}{}
	for id := range p.Plan {
		touched[id] = struct{}{}
	}
	for id := range p.Actual {
		touched[id] = struct{}{}
	}
	for id := range touched {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Ints(ids)

	cmd := &ScheduleCommand{Label: fmt.Sprintf("%s %+dd", s.mode, p.DeltaDays)}
	for _, id := range ids {
		before := datesOf(s.base[id])
		after := before
		if sp, ok := p.Plan[id]; ok {
			after.Start, after.Finish = sp.Start, sp.Finish
		}
		if a, ok := p.Actual[id]; ok {
			if a.Start != nil {
				after.ActualStart = a.Start
			}
			if a.Finish != nil {
				after.ActualFinish = a.Finish
			}
		}
		cmd.Changes = append(cmd.Changes, TaskChange{TaskID: id, Before: before, After: after})
	}
	return cmd, nil
}

// Cancel discards the preview.
func (s *DragSession) Cancel() {
	s.finished = true
	s.preview = nil
}

// ShiftTasks runs a whole drag in one step, as a keyboard nudge does.
func ShiftTasks(tasks []task.Task, ids []int, days int, mode DragMode, opts DragOptions, cal *calendar.Calendar) (*ScheduleCommand, *DragPreview, error) {
	if opts.PxPerDay <= 0 {
		opts.PxPerDay = 1
	}
	s, err := BeginDrag(tasks, ids, mode, opts, cal)
	if err != nil {
		return nil, nil, err
	}
	preview := s.UpdateDays(days)
	cmd, err := s.Commit()
	return cmd, preview, err
}
