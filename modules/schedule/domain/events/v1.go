package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChangeDrag  = "drag"
	ChangeShift = "shift"
	ChangeEdit  = "edit"
	ChangeUndo  = "undo"
	ChangeRedo  = "redo"
)

type ImportCompletedV1 struct {
	EventID    uuid.UUID `json:"event_id"`
	ImportID   uuid.UUID `json:"import_id"`
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	Imported   int       `json:"imported"`
	Failed     int       `json:"failed"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ScheduleCommittedV1 struct {
	EventID    uuid.UUID `json:"event_id"`
	ChangeType string    `json:"change_type"`
	Label      string    `json:"label"`
	TaskIDs    []int     `json:"task_ids"`
	OccurredAt time.Time `json:"occurred_at"`
}

type CommitRejectedV1 struct {
	EventID    uuid.UUID `json:"event_id"`
	ChangeType string    `json:"change_type"`
	TaskIDs    []int     `json:"task_ids"`
	OccurredAt time.Time `json:"occurred_at"`
}

type CalendarChangedV1 struct {
	EventID     uuid.UUID `json:"event_id"`
	Holidays    []string  `json:"holidays"`
	OffWeekdays []int     `json:"off_weekdays"`
	OccurredAt  time.Time `json:"occurred_at"`
}
