package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/golang-sql/civil"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
	"github.com/3chihiro/evm-tool/pkg/calendar"
)

var ErrConstraintViolation = errors.New("finish-to-start constraint violated")

// ViolationError lists the tasks that would start before a predecessor finishes.
type ViolationError struct {
	TaskIDs []int
}

func (e *ViolationError) Error() string {
	ids := make([]string, 0, len(e.TaskIDs))
	for _, id := range e.TaskIDs {
		ids = append(ids, strconv.Itoa(id))
	}
	return fmt.Sprintf("%s: task(s) %s", ErrConstraintViolation, strings.Join(ids, ", "))
}

func (e *ViolationError) Is(target error) bool {
	return target == ErrConstraintViolation
}

// Span is a planned date range.
type Span struct {
	Start  civil.Date `json:"start"`
	Finish civil.Date `json:"finish"`
}

// Duration is the calendar-day length of the span.
func (s Span) Duration() int {
	return calendar.DaysBetween(s.Start, s.Finish)
}

// Schedule maps task IDs to proposed spans.
type Schedule map[int]Span

func (s Schedule) clone() Schedule {
	out := make(Schedule, len(s))
	for id, sp := range s {
		out[id] = sp
	}
	return out
}

func spansOf(tasks []task.Task) map[int]Span {
	out := make(map[int]Span, len(tasks))
	for _, t := range tasks {
		if _, dup := out[t.TaskID]; !dup {
			out[t.TaskID] = Span{Start: t.Start, Finish: t.Finish}
		}
	}
	return out
}

func spanAt(base map[int]Span, proposed Schedule, id int) (Span, bool) {
	if sp, ok := proposed[id]; ok {
		return sp, true
	}
	sp, ok := base[id]
	return sp, ok
}

// EnforceFSConstraints pushes successors of the moved tasks forward so none
// starts before a predecessor finishes. A clamped task keeps its original
// calendar-day duration; both dates are snapped forward to working days.
// Moved tasks themselves are never adjusted. Each task is visited once, so a
// dependency cycle cannot keep the walk going.
func EnforceFSConstraints(g *DependencyGraph, base map[int]Span, proposed Schedule, moved []int, cal *calendar.Calendar) Schedule {
	out := proposed.clone()
	movedSet := make(map[int]struct{}, len(moved))
	for _, id := range moved {
		movedSet[id] = struct{}{}
	}

	for _, id := range propagationOrder(g, g.TransitiveSuccessors(moved)) {
		if _, ok := movedSet[id]; ok {
			continue
		}
		cur, ok := spanAt(base, out, id)
		if !ok {
			continue
		}
		var (
			maxFinish civil.Date
			has       bool
		)
		for _, p := range g.Predecessors(id) {
			ps, ok := spanAt(base, out, p)
			if !ok {
				continue
			}
			if !has || ps.Finish.After(maxFinish) {
				maxFinish, has = ps.Finish, true
			}
		}
		if !has || !cur.Start.Before(maxFinish) {
			continue
		}
		duration := cur.Duration()
		if orig, ok := base[id]; ok {
			duration = orig.Duration()
		}
		start := cal.Snap(maxFinish, 1)
		out[id] = Span{Start: start, Finish: cal.Snap(start.AddDays(duration), 1)}
	}
	return out
}

// propagationOrder sorts the affected tasks topologically (Kahn) considering
// only edges inside the set. Tasks stuck on a cycle follow in discovery order.
func propagationOrder(g *DependencyGraph, affected []int) []int {
	inSet := make(map[int]struct{}, len(affected))
	for _, id := range affected {
		inSet[id] = struct{}{}
	}
	indeg := make(map[int]int, len(affected))
	for _, id := range affected {
		for _, p := range g.Predecessors(id) {
			if _, ok := inSet[p]; ok {
				indeg[id]++
			}
		}
	}

	order := make([]int, 0, len(affected))
	done := make(map[int]struct{}, len(affected))
	var queue []int
	for _, id := range affected {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		done[cur] = struct{}{}
		for _, s := range g.Successors(cur) {
			if _, ok := inSet[s]; !ok {
				continue
			}
			indeg[s]--
			if indeg[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	for _, id := range affected {
		if _, ok := done[id]; !ok {
			order = append(order, id)
		}
	}
	return order
}

// ValidateDeps returns, sorted, the tasks whose start precedes a predecessor's
// finish, considering only dependency pairs that touch a proposed task.
func ValidateDeps(g *DependencyGraph, base map[int]Span, proposed Schedule) []int {
	candidates := make(map[int]struct{}, len(proposed))
	for id := range proposed {
		candidates[id] = struct{}{}
		for _, s := range g.Successors(id) {
			candidates[s] = struct{}{}
		}
	}

	var out []int
	for id := range candidates {
		cur, ok := spanAt(base, proposed, id)
		if !ok {
			continue
		}
		_, edited := proposed[id]
		for _, p := range g.Predecessors(id) {
			if _, predEdited := proposed[p]; !edited && !predEdited {
				continue
			}
			ps, ok := spanAt(base, proposed, p)
			if ok && cur.Start.Before(ps.Finish) {
				out = append(out, id)
				break
			}
		}
	}
	sort.Ints(out)
	return out
}

// FindViolations checks every dependency of tasks as they stand.
func FindViolations(tasks []task.Task) []int {
	g := NewDependencyGraph(tasks)
	base := spansOf(tasks)
	var out []int
	for _, id := range g.ids {
		for _, p := range g.Predecessors(id) {
			if base[id].Start.Before(base[p].Finish) {
				out = append(out, id)
				break
			}
		}
	}
	sort.Ints(out)
	return out
}
