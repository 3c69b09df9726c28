package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
	"github.com/3chihiro/evm-tool/modules/schedule/services"
	"github.com/3chihiro/evm-tool/pkg/calendar"
	"github.com/3chihiro/evm-tool/pkg/eventbus"
	"github.com/3chihiro/evm-tool/pkg/httpapi"
	"github.com/3chihiro/evm-tool/pkg/logging"
	"github.com/3chihiro/evm-tool/pkg/middleware"
	"github.com/3chihiro/evm-tool/pkg/server"
)

const pairCSV = "ProjectName,TaskID,TaskName,Start,Finish,ProgressPercent,ResourceType,UnitCost,Dependencies\n" +
	"P,1,A,2025-01-06,2025-01-08,50,社内,1000,\n" +
	"P,2,B,2025-01-09,2025-01-10,,,,1\n"

func newTestHandler(t *testing.T, settings services.Settings) (http.Handler, *services.ScheduleService) {
	t.Helper()
	svc := services.NewScheduleService(eventbus.New(logging.Nop()), nil, settings)
	srv := server.NewHTTPServer([]server.Controller{
		NewScheduleAPIController(svc),
		NewDragController(svc, nil),
	}, server.Options{Middlewares: []mux.MiddlewareFunc{middleware.WithLogger(logging.Nop())}})
	return srv.Router(), svc
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func importPair(t *testing.T, h http.Handler) {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/import?source=pair.csv", pairCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestImportAndListTasks(t *testing.T) {
	h, svc := newTestHandler(t, services.Settings{})

	rec := do(t, h, http.MethodPost, "/api/import", pairCSV)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[task.ImportResult](t, rec)
	assert.Equal(t, 2, res.Stats.Imported)
	assert.Len(t, res.Tasks, 2)
	assert.Len(t, svc.Tasks(), 2)

	rec = do(t, h, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[tasksResponse](t, rec)
	require.Len(t, list.Tasks, 2)
	assert.Equal(t, "A", list.Tasks[0].TaskName)
	assert.Equal(t, []int{}, list.Violations)
	assert.False(t, list.CanUndo)
}

func TestImport_RejectsBinary(t *testing.T) {
	h, _ := newTestHandler(t, services.Settings{})
	rec := do(t, h, http.MethodPost, "/api/import", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	env := decode[httpapi.ErrorEnvelope](t, rec)
	assert.Equal(t, codeUnsupportedMedia, env.Code)
	assert.NotEmpty(t, env.Meta["request_id"])
}

func TestUpdateTask(t *testing.T) {
	h, svc := newTestHandler(t, services.Settings{})
	importPair(t, h)

	rec := do(t, h, http.MethodPatch, "/api/tasks/2", `{"taskName":"B2","progressPercent":30}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[task.Task](t, rec)
	assert.Equal(t, "B2", saved.TaskName)
	assert.Equal(t, []int{1}, saved.PredIDs, "fields missing from the body are kept")
	assert.True(t, svc.CanUndo())

	rec = do(t, h, http.MethodPatch, "/api/tasks/2", `{"start":"2025-01-07"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	env := decode[httpapi.ErrorEnvelope](t, rec)
	assert.Equal(t, services.CodeConstraintViolation, env.Code)
	assert.Equal(t, "2", env.Meta["task_ids"])

	rec = do(t, h, http.MethodPatch, "/api/tasks/2", `{"progressPercent":101}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/tasks/9", `{"taskName":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/tasks/x", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/tasks/2", `{"color":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/tasks/2", `{"taskId":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetEVM(t *testing.T) {
	h, _ := newTestHandler(t, services.Settings{})
	importPair(t, h)

	rec := do(t, h, http.MethodGet, "/api/evm?asOf=2025-01-08&byTask=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[evmResponse](t, rec)
	assert.Equal(t, int64(3000), resp.Result.PV)
	assert.Equal(t, int64(1500), resp.Result.EV)
	assert.Len(t, resp.Tasks, 2)
	assert.Contains(t, resp.Summary, "PV ¥3,000")

	rec = do(t, h, http.MethodGet, "/api/evm?asOf=2025-02-30", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCSVDownloads(t *testing.T) {
	h, svc := newTestHandler(t, services.Settings{})
	importPair(t, h)

	rec := do(t, h, http.MethodGet, "/api/export.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "tasks.csv")
	assert.Equal(t, services.ToCSV(svc.Tasks()), rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/errors.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Row,Column,Message,Value\n", rec.Body.String())
}

func TestCalendarEndpoints(t *testing.T) {
	h, svc := newTestHandler(t, services.Settings{})

	rec := do(t, h, http.MethodGet, "/api/calendar", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, calendar.Config{Holidays: []string{}, OffWeekdays: []int{0, 6}}, decode[calendar.Config](t, rec))

	rec = do(t, h, http.MethodPut, "/api/calendar", `{"holidays":["2025-01-08"],"offWeekdays":[0]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, calendar.Config{Holidays: []string{"2025-01-08"}, OffWeekdays: []int{0}}, decode[calendar.Config](t, rec))
	assert.Equal(t, []string{"2025-01-08"}, svc.Calendar().Config().Holidays)

	rec = do(t, h, http.MethodPut, "/api/calendar", `{"holidays":["nope"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDragOptionsEndpoints(t *testing.T) {
	h, svc := newTestHandler(t, services.Settings{})

	rec := do(t, h, http.MethodPut, "/api/settings/drag", `{"linkedShifts":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, svc.Settings().Drag.LinkedShifts)
	assert.InDelta(t, 24, svc.Settings().Drag.PxPerDay, 1e-9)

	rec = do(t, h, http.MethodPut, "/api/settings/drag", `{"pxPerDay":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/settings/drag", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[services.DragOptions](t, rec).LinkedShifts)
}

func TestShiftUndoRedo(t *testing.T) {
	h, _ := newTestHandler(t, services.Settings{Drag: services.DragOptions{LinkedShifts: true}})
	importPair(t, h)

	rec := do(t, h, http.MethodPost, "/api/undo", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, services.CodeNothingToUndo, decode[httpapi.ErrorEnvelope](t, rec).Code)

	rec = do(t, h, http.MethodPost, "/api/shift", `{"taskIds":[1],"days":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	shifted := decode[shiftResponse](t, rec)
	require.NotNil(t, shifted.Command)
	assert.Equal(t, []int{1, 2}, shifted.Command.TaskIDs())

	rec = do(t, h, http.MethodPost, "/api/undo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	undone := decode[tasksResponse](t, rec)
	assert.Equal(t, "2025-01-06", undone.Tasks[0].Start.String())
	assert.True(t, undone.CanRedo)

	rec = do(t, h, http.MethodPost, "/api/redo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-01-08", decode[tasksResponse](t, rec).Tasks[0].Start.String())

	rec = do(t, h, http.MethodPost, "/api/shift", `{"taskIds":[1],"days":1,"mode":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShift_Violation(t *testing.T) {
	h, _ := newTestHandler(t, services.Settings{})
	importPair(t, h)

	rec := do(t, h, http.MethodPost, "/api/shift", `{"taskIds":[1],"days":2,"mode":"move"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	env := decode[httpapi.ErrorEnvelope](t, rec)
	assert.Equal(t, services.CodeConstraintViolation, env.Code)
	assert.Equal(t, "2", env.Meta["task_ids"])
}

func TestGetGantt(t *testing.T) {
	h, _ := newTestHandler(t, services.Settings{})
	importPair(t, h)

	rec := do(t, h, http.MethodGet, "/api/gantt?pxPerDay=10&asOf=2025-01-07", "")
	require.Equal(t, http.StatusOK, rec.Code)
	layout := decode[services.GanttLayout](t, rec)
	assert.InDelta(t, 10, layout.Scale.PxPerDay, 1e-9)
	require.Len(t, layout.Rows, 2)
	assert.InDelta(t, 30, layout.Rows[0].Plan.Width, 1e-9)

	rec = do(t, h, http.MethodGet, "/api/gantt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 24, decode[services.GanttLayout](t, rec).Scale.PxPerDay, 1e-9)

	rec = do(t, h, http.MethodGet, "/api/gantt?pxPerDay=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	h, _ := newTestHandler(t, services.Settings{})
	req := httptest.NewRequest(http.MethodPost, "/api/redo", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "req-42", decode[httpapi.ErrorEnvelope](t, rec).Meta["request_id"])
}
