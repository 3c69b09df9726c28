package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-sql/civil"

	"github.com/3chihiro/evm-tool/modules/schedule/services"
	"github.com/3chihiro/evm-tool/pkg/calendar"
	"github.com/3chihiro/evm-tool/pkg/httpapi"
	"github.com/3chihiro/evm-tool/pkg/middleware"
)

const (
	codeInvalidQuery     = "SCHEDULE_INVALID_QUERY"
	codeInvalidBody      = "SCHEDULE_INVALID_BODY"
	codeUnsupportedMedia = "SCHEDULE_UNSUPPORTED_MEDIA"
	codeInternal         = "SCHEDULE_INTERNAL"
)

func requestIDOf(w http.ResponseWriter) string {
	return w.Header().Get(middleware.RequestIDHeader)
}

func writeAPIError(w http.ResponseWriter, status int, requestID, code, message string) {
	writeAPIErrorMeta(w, status, requestID, code, message, nil)
}

func writeAPIErrorMeta(w http.ResponseWriter, status int, requestID, code, message string, meta map[string]string) {
	if requestID != "" {
		if meta == nil {
			meta = map[string]string{}
		}
		meta["request_id"] = requestID
	}
	_ = httpapi.WriteError(w, status, code, message, meta)
}

// errorEnvelope maps err to the API error shape. Rejected edits carry the
// violating task IDs in meta.task_ids.
func errorEnvelope(err error) (int, httpapi.ErrorEnvelope) {
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		return http.StatusInternalServerError, httpapi.ErrorEnvelope{Code: codeInternal, Message: err.Error()}
	}
	env := httpapi.ErrorEnvelope{Code: svcErr.Code, Message: svcErr.Message}
	if svcErr.Cause != nil {
		env.Message = svcErr.Error()
	}
	var violation *services.ViolationError
	if errors.As(err, &violation) {
		env.Meta = map[string]string{"task_ids": services.FormatDependencies(violation.TaskIDs)}
	}
	return svcErr.Status, env
}

func writeServiceError(w http.ResponseWriter, requestID string, err error) {
	status, env := errorEnvelope(err)
	writeAPIErrorMeta(w, status, requestID, env.Code, env.Message, env.Meta)
}

// parseAsOf reads an optional YYYY-MM-DD query value.
func parseAsOf(raw string) (*civil.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := calendar.ParseISO(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parsePositiveFloat(raw string) (float64, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, false, errors.New("must be a positive number")
	}
	return v, true, nil
}
