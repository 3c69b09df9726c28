package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
	"github.com/3chihiro/evm-tool/modules/schedule/infrastructure/files"
	"github.com/3chihiro/evm-tool/modules/schedule/services"
	"github.com/3chihiro/evm-tool/pkg/calendar"
	"github.com/3chihiro/evm-tool/pkg/httpapi"
)

type ScheduleAPIController struct {
	svc       *services.ScheduleService
	apiPrefix string
}

func NewScheduleAPIController(svc *services.ScheduleService) *ScheduleAPIController {
	return &ScheduleAPIController{svc: svc, apiPrefix: "/api"}
}

func (c *ScheduleAPIController) Key() string {
	return c.apiPrefix
}

func (c *ScheduleAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()

	api.HandleFunc("/import", c.Import).Methods(http.MethodPost)
	api.HandleFunc("/tasks", c.ListTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", c.UpdateTask).Methods(http.MethodPatch)
	api.HandleFunc("/evm", c.GetEVM).Methods(http.MethodGet)
	api.HandleFunc("/export.csv", c.ExportCSV).Methods(http.MethodGet)
	api.HandleFunc("/errors.csv", c.ErrorsCSV).Methods(http.MethodGet)
	api.HandleFunc("/calendar", c.GetCalendar).Methods(http.MethodGet)
	api.HandleFunc("/calendar", c.PutCalendar).Methods(http.MethodPut)
	api.HandleFunc("/settings/drag", c.GetDragOptions).Methods(http.MethodGet)
	api.HandleFunc("/settings/drag", c.PutDragOptions).Methods(http.MethodPut)
	api.HandleFunc("/undo", c.Undo).Methods(http.MethodPost)
	api.HandleFunc("/redo", c.Redo).Methods(http.MethodPost)
	api.HandleFunc("/shift", c.Shift).Methods(http.MethodPost)
	api.HandleFunc("/gantt", c.GetGantt).Methods(http.MethodGet)
}

type tasksResponse struct {
	Tasks      []task.Task `json:"tasks"`
	Violations []int       `json:"violations"`
	CanUndo    bool        `json:"canUndo"`
	CanRedo    bool        `json:"canRedo"`
}

func (c *ScheduleAPIController) tasksResponse(tasks []task.Task) tasksResponse {
	violations := services.FindViolations(tasks)
	if violations == nil {
		violations = []int{}
	}
	return tasksResponse{
		Tasks:      tasks,
		Violations: violations,
		CanUndo:    c.svc.CanUndo(),
		CanRedo:    c.svc.CanRedo(),
	}
}

// Import replaces the workspace with the CSV in the request body. The
// optional source query names the upload in logs and events.
func (c *ScheduleAPIController) Import(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDOf(w)
	text, err := files.ReadText(r.Body)
	if err != nil {
		if errors.Is(err, files.ErrNotText) {
			writeAPIError(w, http.StatusUnsupportedMediaType, requestID, codeUnsupportedMedia, err.Error())
			return
		}
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidBody, err.Error())
		return
	}
	source := strings.TrimSpace(r.URL.Query().Get("source"))
	if source == "" {
		source = "upload"
	}

	res, err := c.svc.Import(r.Context(), source, text)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, res)
}

func (c *ScheduleAPIController) ListTasks(w http.ResponseWriter, r *http.Request) {
	_ = httpapi.WriteJSON(w, http.StatusOK, c.tasksResponse(c.svc.Tasks()))
}

// UpdateTask applies the fields present in the body on top of the stored task.
func (c *ScheduleAPIController) UpdateTask(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDOf(w)
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidQuery, "id must be an integer")
		return
	}

	edited := task.Task{TaskID: id}
	for _, t := range c.svc.Tasks() {
		if t.TaskID == id {
			edited = t.Clone()
			break
		}
	}
	if err := httpapi.DecodeJSON(r, &edited); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidBody, "invalid json body")
		return
	}
	if edited.TaskID != id {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidBody, "taskId cannot be changed")
		return
	}

	saved, err := c.svc.EditTask(r.Context(), edited)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, saved)
}

type evmResponse struct {
	services.EVMSummary
	Tasks []services.TaskEVM `json:"tasks,omitempty"`
}

// GetEVM reports the portfolio as of the asOf query, today when omitted.
// byTask=true adds the per-task breakdown.
func (c *ScheduleAPIController) GetEVM(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDOf(w)
	asOf, err := parseAsOf(r.URL.Query().Get("asOf"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidQuery, "asOf is invalid")
		return
	}
	day := calendar.Today()
	if asOf != nil {
		day = *asOf
	}
	resp := evmResponse{EVMSummary: c.svc.EVM(day)}
	if r.URL.Query().Get("byTask") == "true" {
		resp.Tasks = c.svc.TaskEVM(day)
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (c *ScheduleAPIController) ExportCSV(w http.ResponseWriter, r *http.Request) {
	_ = httpapi.WriteText(w, http.StatusOK, "text/csv; charset=utf-8", "tasks.csv", c.svc.ExportCSV())
}

func (c *ScheduleAPIController) ErrorsCSV(w http.ResponseWriter, r *http.Request) {
	_ = httpapi.WriteText(w, http.StatusOK, "text/csv; charset=utf-8", "errors.csv", c.svc.ErrorsCSV())
}

func (c *ScheduleAPIController) GetCalendar(w http.ResponseWriter, r *http.Request) {
	_ = httpapi.WriteJSON(w, http.StatusOK, c.svc.Calendar().Config())
}

func (c *ScheduleAPIController) PutCalendar(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDOf(w)
	var cfg calendar.Config
	if err := httpapi.DecodeJSON(r, &cfg); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidBody, "invalid json body")
		return
	}
	cal, err := c.svc.SetCalendar(r.Context(), cfg)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, cal.Config())
}

func (c *ScheduleAPIController) GetDragOptions(w http.ResponseWriter, r *http.Request) {
	_ = httpapi.WriteJSON(w, http.StatusOK, c.svc.Settings().Drag)
}

func (c *ScheduleAPIController) PutDragOptions(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDOf(w)
	opts := c.svc.Settings().Drag
	if err := httpapi.DecodeJSON(r, &opts); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidBody, "invalid json body")
		return
	}
	if err := c.svc.SetDragOptions(opts); err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, opts)
}

func (c *ScheduleAPIController) Undo(w http.ResponseWriter, r *http.Request) {
	tasks, err := c.svc.Undo(r.Context())
	if err != nil {
		writeServiceError(w, requestIDOf(w), err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, c.tasksResponse(tasks))
}

func (c *ScheduleAPIController) Redo(w http.ResponseWriter, r *http.Request) {
	tasks, err := c.svc.Redo(r.Context())
	if err != nil {
		writeServiceError(w, requestIDOf(w), err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, c.tasksResponse(tasks))
}

type shiftRequest struct {
	TaskIDs []int  `json:"taskIds"`
	Days    int    `json:"days"`
	Mode    string `json:"mode"`
}

type shiftResponse struct {
	Command *services.ScheduleCommand `json:"command"`
	Preview *services.DragPreview     `json:"preview"`
}

func (c *ScheduleAPIController) Shift(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDOf(w)
	var req shiftRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidBody, "invalid json body")
		return
	}
	mode, err := services.ParseDragMode(req.Mode)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidBody, err.Error())
		return
	}
	cmd, preview, err := c.svc.Shift(r.Context(), req.TaskIDs, req.Days, mode)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, shiftResponse{Command: cmd, Preview: preview})
}

// GetGantt lays out the current tasks. pxPerDay overrides the workspace zoom.
func (c *ScheduleAPIController) GetGantt(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDOf(w)
	q := r.URL.Query()
	asOf, err := parseAsOf(q.Get("asOf"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidQuery, "asOf is invalid")
		return
	}
	px, ok, err := parsePositiveFloat(q.Get("pxPerDay"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidQuery, fmt.Sprintf("pxPerDay %s", err))
		return
	}
	if !ok {
		_ = httpapi.WriteJSON(w, http.StatusOK, c.svc.Gantt(asOf))
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, services.BuildGanttLayout(c.svc.Tasks(), px, asOf))
}
