package task

import (
	"strings"

	"github.com/golang-sql/civil"
)

type ResourceType string

const (
	ResourceUnspecified ResourceType = ""
	InHouse             ResourceType = "社内"
	Contractor          ResourceType = "協力"
)

// ParseResourceType accepts the canonical CSV values and their English aliases.
func ParseResourceType(v string) (ResourceType, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return ResourceUnspecified, true
	case string(InHouse), "in-house", "inhouse":
		return InHouse, true
	case string(Contractor), "contractor":
		return Contractor, true
	default:
		return ResourceUnspecified, false
	}
}

// Task is one schedulable unit of work. Optional numerics are nil when absent;
// PredIDs is nil when the task declares no dependencies.
type Task struct {
	ProjectName     string       `json:"projectName"`
	TaskID          int          `json:"taskId"`
	TaskName        string       `json:"taskName"`
	Start           civil.Date   `json:"start"`
	Finish          civil.Date   `json:"finish"`
	DurationDays    *float64     `json:"durationDays,omitempty"`
	ProgressPercent *float64     `json:"progressPercent,omitempty"`
	ResourceType    ResourceType `json:"resourceType,omitempty"`
	ContractorName  string       `json:"contractorName,omitempty"`
	UnitCost        *float64     `json:"unitCost,omitempty"`
	ContractAmount  *float64     `json:"contractAmount,omitempty"`
	PlannedCost     *float64     `json:"plannedCost,omitempty"`
	ActualCost      *float64     `json:"actualCost,omitempty"`
	ActualStart     *civil.Date  `json:"actualStart,omitempty"`
	ActualFinish    *civil.Date  `json:"actualFinish,omitempty"`
	PredIDs         []int        `json:"predIds,omitempty"`
	Notes           string       `json:"notes,omitempty"`
}

// Clone returns a deep copy so callers can edit it without touching t.
func (t Task) Clone() Task {
	out := t
	out.DurationDays = cloneFloat(t.DurationDays)
	out.ProgressPercent = cloneFloat(t.ProgressPercent)
	out.UnitCost = cloneFloat(t.UnitCost)
	out.ContractAmount = cloneFloat(t.ContractAmount)
	out.PlannedCost = cloneFloat(t.PlannedCost)
	out.ActualCost = cloneFloat(t.ActualCost)
	out.ActualStart = cloneDate(t.ActualStart)
	out.ActualFinish = cloneDate(t.ActualFinish)
	if t.PredIDs != nil {
		out.PredIDs = append([]int(nil), t.PredIDs...)
	}
	return out
}

func (t Task) Started() bool  { return t.ActualStart != nil }
func (t Task) Finished() bool { return t.ActualFinish != nil }

// CloneAll deep-copies a task slice.
func CloneAll(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}

// Float returns the value behind p, or 0 when p is nil.
func Float(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func Ptr[T any](v T) *T { return &v }

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneDate(p *civil.Date) *civil.Date {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
