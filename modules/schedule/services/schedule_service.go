package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/events"
	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
	"github.com/3chihiro/evm-tool/pkg/calendar"
	"github.com/3chihiro/evm-tool/pkg/eventbus"
	"github.com/3chihiro/evm-tool/pkg/history"
)

// Settings are the workspace preferences a ScheduleService starts with.
type Settings struct {
	Import       ImportOptions
	Drag         DragOptions
	HistoryLimit int
}

// ScheduleService owns one in-memory workspace: the current task list with
// its undo history, the calendar and any drag sessions in progress. It is
// safe for concurrent use. Event handlers run while the workspace is locked
// and must not call back into the service.
type ScheduleService struct {
	bus *eventbus.Bus

	mu       sync.Mutex
	settings Settings
	cal      *calendar.Calendar
	history  *history.History[[]task.Task]
	last     *task.ImportResult
	drags    map[uuid.UUID]*DragSession
}

func NewScheduleService(bus *eventbus.Bus, cal *calendar.Calendar, settings Settings) *ScheduleService {
	if settings.Drag.PxPerDay <= 0 {
		settings.Drag.PxPerDay = 24
	}
	return &ScheduleService{
		bus:      bus,
		settings: settings,
		cal:      cal,
		history:  history.New([]task.Task{}, history.WithLimit(settings.HistoryLimit)),
		drags:    map[uuid.UUID]*DragSession{},
	}
}

func (s *ScheduleService) publish(event any) {
	if s.bus != nil {
		s.bus.Publish(event)
	}
}

// Import replaces the workspace with the tasks accepted from text. Undo
// history and open drags are discarded.
func (s *ScheduleService) Import(ctx context.Context, source, text string) (*task.ImportResult, error) {
	s.mu.Lock()
	opts := s.settings.Import
	s.mu.Unlock()
	if err := opts.Validate(); err != nil {
		return nil, newServiceError(http.StatusBadRequest, CodeInvalidRequest, "invalid import options", err)
	}

	started := time.Now()
	res := ParseCSVText(text, opts)
	elapsed := time.Since(started)
	recordImport(res, elapsed)

	s.mu.Lock()
	s.history.Reset(task.CloneAll(res.Tasks))
	s.last = res
	s.drags = map[uuid.UUID]*DragSession{}
	s.mu.Unlock()

	importID := uuid.New()
	fields := logrus.Fields{
		"import_id": importID.String(),
		"source":    source,
		"rows":      res.Stats.Rows,
		"imported":  res.Stats.Imported,
		"failed":    res.Stats.Failed,
		"duration":  elapsed,
	}
	if res.Stats.Dep != nil {
		fields["cycles"] = res.Stats.Dep.Cycles
		fields["unknown_refs"] = res.Stats.Dep.UnknownRefs
	}
	logWithFields(ctx, logrus.InfoLevel, "schedule.import.completed", fields)
	s.publish(&events.ImportCompletedV1{
		EventID:    uuid.New(),
		ImportID:   importID,
		Source:     source,
		Rows:       res.Stats.Rows,
		Imported:   res.Stats.Imported,
		Failed:     res.Stats.Failed,
		OccurredAt: time.Now().UTC(),
	})
	return res, nil
}

// Tasks returns a copy of the current task list.
func (s *ScheduleService) Tasks() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return task.CloneAll(s.history.Present())
}

// LastImport is the result of the most recent Import, or nil.
func (s *ScheduleService) LastImport() *task.ImportResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *ScheduleService) Calendar() *calendar.Calendar {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cal
}

// SetCalendar swaps the working calendar. Drags already in progress keep the
// calendar they started with.
func (s *ScheduleService) SetCalendar(ctx context.Context, cfg calendar.Config) (*calendar.Calendar, error) {
	cal, err := cfg.Build()
	if err != nil {
		return nil, newServiceError(http.StatusBadRequest, CodeInvalidRequest, "invalid calendar", err)
	}
	s.mu.Lock()
	s.cal = cal
	s.mu.Unlock()

	applied := cal.Config()
	logWithFields(ctx, logrus.InfoLevel, "schedule.calendar.changed", logrus.Fields{
		"holidays":     len(applied.Holidays),
		"off_weekdays": applied.OffWeekdays,
	})
	s.publish(&events.CalendarChangedV1{
		EventID:     uuid.New(),
		Holidays:    applied.Holidays,
		OffWeekdays: applied.OffWeekdays,
		OccurredAt:  time.Now().UTC(),
	})
	return cal, nil
}

func (s *ScheduleService) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetDragOptions changes the preferences used by later drags and shifts.
func (s *ScheduleService) SetDragOptions(opts DragOptions) error {
	if err := validate.Struct(opts); err != nil {
		return newServiceError(http.StatusBadRequest, CodeInvalidRequest, "invalid drag options", err)
	}
	s.mu.Lock()
	s.settings.Drag = opts
	s.mu.Unlock()
	return nil
}

func (s *ScheduleService) EVM(asOf civil.Date) EVMSummary {
	s.mu.Lock()
	tasks, cal := s.history.Present(), s.cal
	s.mu.Unlock()
	return BuildEVMSummary(tasks, asOf, cal)
}

func (s *ScheduleService) TaskEVM(asOf civil.Date) []TaskEVM {
	s.mu.Lock()
	tasks, cal := s.history.Present(), s.cal
	s.mu.Unlock()
	return ComputeTaskEVM(tasks, asOf, cal)
}

func (s *ScheduleService) Gantt(asOf *civil.Date) GanttLayout {
	s.mu.Lock()
	tasks, px := task.CloneAll(s.history.Present()), s.settings.Drag.PxPerDay
	s.mu.Unlock()
	return BuildGanttLayout(tasks, px, asOf)
}

func (s *ScheduleService) ExportCSV() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ToCSV(s.history.Present())
}

// ErrorsCSV renders the errors of the last import; without an import it is just the header.
func (s *ScheduleService) ErrorsCSV() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return ErrorsToCSV(nil)
	}
	return ErrorsToCSV(s.last.Errors)
}

// BeginDrag opens a drag session over the current tasks.
func (s *ScheduleService) BeginDrag(ctx context.Context, ids []int, mode DragMode) (*DragSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := BeginDrag(s.history.Present(), ids, mode, s.settings.Drag, s.cal)
	if err != nil {
		return nil, newServiceError(http.StatusBadRequest, CodeInvalidRequest, "cannot start drag", err)
	}
	s.drags[session.ID] = session
	logWithFields(ctx, logrus.DebugLevel, "schedule.drag.started", logrus.Fields{
		"drag_id":  session.ID.String(),
		"task_ids": ids,
		"mode":     string(mode),
	})
	return session, nil
}

func (s *ScheduleService) drag(id uuid.UUID) (*DragSession, error) {
	session, ok := s.drags[id]
	if !ok {
		return nil, newServiceError(http.StatusNotFound, CodeDragNotFound, fmt.Sprintf("drag %s not found", id), nil)
	}
	return session, nil
}

// UpdateDrag previews the drag at a pointer offset in pixels.
func (s *ScheduleService) UpdateDrag(id uuid.UUID, deltaPx float64) (*DragPreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.drag(id)
	if err != nil {
		return nil, err
	}
	return session.Update(deltaPx), nil
}

func (s *ScheduleService) CancelDrag(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.drag(id)
	if err != nil {
		return err
	}
	session.Cancel()
	delete(s.drags, id)
	logWithFields(ctx, logrus.DebugLevel, "schedule.drag.cancelled", logrus.Fields{"drag_id": id.String()})
	return nil
}

// CommitDrag applies the drag's latest preview. A nil command means nothing changed.
func (s *ScheduleService) CommitDrag(ctx context.Context, id uuid.UUID) (*ScheduleCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.drag(id)
	if err != nil {
		return nil, err
	}
	delete(s.drags, id)
	cmd, err := session.Commit()
	return s.finishLocked(ctx, events.ChangeDrag, cmd, err)
}

// Shift moves tasks by whole days in one step.
func (s *ScheduleService) Shift(ctx context.Context, ids []int, days int, mode DragMode) (*ScheduleCommand, *DragPreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd, preview, err := ShiftTasks(s.history.Present(), ids, days, mode, s.settings.Drag, s.cal)
	if err != nil && !errors.Is(err, ErrConstraintViolation) {
		return nil, nil, newServiceError(http.StatusBadRequest, CodeInvalidRequest, "cannot shift", err)
	}
	cmd, err = s.finishLocked(ctx, events.ChangeShift, cmd, err)
	return cmd, preview, err
}

func (s *ScheduleService) finishLocked(ctx context.Context, changeType string, cmd *ScheduleCommand, err error) (*ScheduleCommand, error) {
	var violation *ViolationError
	switch {
	case errors.As(err, &violation):
		recordCommit(changeType, false)
		logWithFields(ctx, logrus.WarnLevel, "schedule.commit.rejected", logrus.Fields{
			"change_type": changeType,
			"task_ids":    violation.TaskIDs,
		})
		s.publish(&events.CommitRejectedV1{
			EventID:    uuid.New(),
			ChangeType: changeType,
			TaskIDs:    violation.TaskIDs,
			OccurredAt: time.Now().UTC(),
		})
		return nil, violationError(violation)
	case errors.Is(err, ErrDragFinished):
		return nil, newServiceError(http.StatusConflict, CodeDragFinished, "drag already finished", err)
	case err != nil:
		return nil, err
	case cmd == nil:
		return nil, nil
	}

	s.history.Execute(cmd)
	recordCommit(changeType, true)
	logWithFields(ctx, logrus.InfoLevel, "schedule.commit.applied", logrus.Fields{
		"change_type": changeType,
		"label":       cmd.Label,
		"task_ids":    cmd.TaskIDs(),
	})
	s.publish(&events.ScheduleCommittedV1{
		EventID:    uuid.New(),
		ChangeType: changeType,
		Label:      cmd.Label,
		TaskIDs:    cmd.TaskIDs(),
		OccurredAt: time.Now().UTC(),
	})
	return cmd, nil
}

// EditTask replaces one task's fields. The edit is rejected when the task's
// dates or dependencies would break a finish-to-start constraint.
func (s *ScheduleService) EditTask(ctx context.Context, edited task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.history.Present()
	idx := -1
	known := make(map[int]struct{}, len(current))
	for i, t := range current {
		known[t.TaskID] = struct{}{}
		if t.TaskID == edited.TaskID && idx < 0 {
			idx = i
		}
	}
	if idx < 0 {
		return task.Task{}, newServiceError(http.StatusNotFound, CodeTaskNotFound, fmt.Sprintf("task %d not found", edited.TaskID), nil)
	}
	edited, err := normalizeEdit(edited, known)
	if err != nil {
		return task.Task{}, newServiceError(http.StatusUnprocessableEntity, CodeInvalidTask, "invalid task", err)
	}

	cmd := &EditTaskCommand{Before: current[idx].Clone(), After: edited.Clone()}
	next := cmd.Apply(current)
	proposed := Schedule{edited.TaskID: {Start: edited.Start, Finish: edited.Finish}}
	if ids := ValidateDeps(NewDependencyGraph(next), spansOf(current), proposed); len(ids) > 0 {
		_, err := s.finishLocked(ctx, events.ChangeEdit, nil, &ViolationError{TaskIDs: ids})
		return task.Task{}, err
	}

	s.history.Execute(cmd)
	recordCommit(events.ChangeEdit, true)
	logWithFields(ctx, logrus.InfoLevel, "schedule.commit.applied", logrus.Fields{
		"change_type": events.ChangeEdit,
		"task_ids":    []int{edited.TaskID},
	})
	s.publish(&events.ScheduleCommittedV1{
		EventID:    uuid.New(),
		ChangeType: events.ChangeEdit,
		Label:      fmt.Sprintf("edit %d", edited.TaskID),
		TaskIDs:    []int{edited.TaskID},
		OccurredAt: time.Now().UTC(),
	})
	return edited.Clone(), nil
}

// normalizeEdit validates an edited task and returns it with ResourceType
// rewritten to its canonical value.
func normalizeEdit(t task.Task, known map[int]struct{}) (task.Task, error) {
	if t.Start.After(t.Finish) {
		return t, fmt.Errorf("Start %s is after Finish %s", t.Start, t.Finish)
	}
	if p := t.ProgressPercent; p != nil && (*p < 0 || *p > 100) {
		return t, fmt.Errorf("ProgressPercent must be between 0 and 100")
	}
	rt, ok := task.ParseResourceType(string(t.ResourceType))
	if !ok {
		return t, fmt.Errorf("ResourceType must be %s or %s", task.InHouse, task.Contractor)
	}
	t.ResourceType = rt
	for _, p := range t.PredIDs {
		if p == t.TaskID {
			return t, fmt.Errorf("task %d cannot depend on itself", p)
		}
		if _, ok := known[p]; !ok {
			return t, fmt.Errorf("Unknown TaskID reference(s): %d", p)
		}
	}
	return t, nil
}

func (s *ScheduleService) Undo(ctx context.Context) ([]task.Task, error) {
	return s.step(ctx, events.ChangeUndo)
}

func (s *ScheduleService) Redo(ctx context.Context) ([]task.Task, error) {
	return s.step(ctx, events.ChangeRedo)
}

func (s *ScheduleService) step(ctx context.Context, changeType string) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		tasks []task.Task
		ok    bool
	)
	if changeType == events.ChangeUndo {
		tasks, ok = s.history.Undo()
	} else {
		tasks, ok = s.history.Redo()
	}
	if !ok {
		code := CodeNothingToUndo
		if changeType == events.ChangeRedo {
			code = CodeNothingToRedo
		}
		return nil, newServiceError(http.StatusConflict, code, "nothing to "+changeType, nil)
	}
	logWithFields(ctx, logrus.InfoLevel, "schedule.history."+changeType, logrus.Fields{
		"can_undo": s.history.CanUndo(),
		"can_redo": s.history.CanRedo(),
	})
	s.publish(&events.ScheduleCommittedV1{
		EventID:    uuid.New(),
		ChangeType: changeType,
		Label:      changeType,
		OccurredAt: time.Now().UTC(),
	})
	return task.CloneAll(tasks), nil
}

func (s *ScheduleService) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

func (s *ScheduleService) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}
