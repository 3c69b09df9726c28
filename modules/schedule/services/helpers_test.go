package services

import (
	"strings"
	"testing"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/require"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
	"github.com/3chihiro/evm-tool/pkg/calendar"
)

func day(t *testing.T, v string) civil.Date {
	t.Helper()
	out, err := calendar.ParseISO(v)
	require.NoError(t, err)
	return out
}

func dayPtr(t *testing.T, v string) *civil.Date {
	t.Helper()
	d := day(t, v)
	return &d
}

func csvOf(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// mkTask builds a minimal task spanning start..finish.
func mkTask(t *testing.T, id int, start, finish string, preds ...int) task.Task {
	t.Helper()
	return task.Task{
		ProjectName: "P",
		TaskID:      id,
		TaskName:    "T",
		Start:       day(t, start),
		Finish:      day(t, finish),
		PredIDs:     preds,
	}
}

func findTask(t *testing.T, tasks []task.Task, id int) task.Task {
	t.Helper()
	for _, tk := range tasks {
		if tk.TaskID == id {
			return tk
		}
	}
	require.Failf(t, "task not found", "task %d", id)
	return task.Task{}
}
