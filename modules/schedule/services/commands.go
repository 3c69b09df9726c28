package services

import (
	"github.com/golang-sql/civil"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
	"github.com/3chihiro/evm-tool/pkg/history"
)

// TaskDates is the part of a task a schedule edit may change.
type TaskDates struct {
	Start        civil.Date  `json:"start"`
	Finish       civil.Date  `json:"finish"`
	ActualStart  *civil.Date `json:"actualStart,omitempty"`
	ActualFinish *civil.Date `json:"actualFinish,omitempty"`
}

func datesOf(t task.Task) TaskDates {
	d := TaskDates{Start: t.Start, Finish: t.Finish}
	if t.ActualStart != nil {
		v := *t.ActualStart
		d.ActualStart = &v
	}
	if t.ActualFinish != nil {
		v := *t.ActualFinish
		d.ActualFinish = &v
	}
	return d
}

func (d TaskDates) applyTo(t task.Task) task.Task {
	out := t.Clone()
	out.Start = d.Start
	out.Finish = d.Finish
	out.ActualStart = nil
	out.ActualFinish = nil
	if d.ActualStart != nil {
		v := *d.ActualStart
		out.ActualStart = &v
	}
	if d.ActualFinish != nil {
		v := *d.ActualFinish
		out.ActualFinish = &v
	}
	return out
}

type TaskChange struct {
	TaskID int       `json:"taskId"`
	Before TaskDates `json:"before"`
	After  TaskDates `json:"after"`
}

// ScheduleCommand atomically moves the dates of several tasks.
type ScheduleCommand struct {
	Label   string       `json:"label"`
	Changes []TaskChange `json:"changes"`
}

var _ history.Command[[]task.Task] = (*ScheduleCommand)(nil)

func (c *ScheduleCommand) Apply(tasks []task.Task) []task.Task {
	return c.rewrite(tasks, func(ch TaskChange) TaskDates { return ch.After })
}

func (c *ScheduleCommand) Revert(tasks []task.Task) []task.Task {
	return c.rewrite(tasks, func(ch TaskChange) TaskDates { return ch.Before })
}

func (c *ScheduleCommand) rewrite(tasks []task.Task, pick func(TaskChange) TaskDates) []task.Task {
	byID := make(map[int]TaskDates, len(c.Changes))
	for _, ch := range c.Changes {
		byID[ch.TaskID] = pick(ch)
	}
	out := make([]task.Task, len(tasks))
	for i, t := range tasks {
		if d, ok := byID[t.TaskID]; ok {
			out[i] = d.applyTo(t)
			continue
		}
		out[i] = t
	}
	return out
}

// TaskIDs lists the changed tasks in command order.
func (c *ScheduleCommand) TaskIDs() []int {
	ids := make([]int, 0, len(c.Changes))
	for _, ch := range c.Changes {
		ids = append(ids, ch.TaskID)
	}
	return ids
}

// EditTaskCommand replaces one task's fields, as a detail panel edit does.
type EditTaskCommand struct {
	Before task.Task
	After  task.Task
}

var _ history.Command[[]task.Task] = (*EditTaskCommand)(nil)

func (c *EditTaskCommand) Apply(tasks []task.Task) []task.Task {
	return replaceTask(tasks, c.Before.TaskID, c.After)
}

func (c *EditTaskCommand) Revert(tasks []task.Task) []task.Task {
	return replaceTask(tasks, c.After.TaskID, c.Before)
}

func replaceTask(tasks []task.Task, id int, with task.Task) []task.Task {
	out := make([]task.Task, len(tasks))
	for i, t := range tasks {
		if t.TaskID == id {
			out[i] = with.Clone()
			continue
		}
		out[i] = t
	}
	return out
}
