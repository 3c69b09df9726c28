package services

import (
	"fmt"
	"net/http"
)

const (
	CodeInvalidRequest      = "SCHEDULE_INVALID_REQUEST"
	CodeTaskNotFound        = "SCHEDULE_TASK_NOT_FOUND"
	CodeDragNotFound        = "SCHEDULE_DRAG_NOT_FOUND"
	CodeDragFinished        = "SCHEDULE_DRAG_FINISHED"
	CodeConstraintViolation = "SCHEDULE_CONSTRAINT_VIOLATION"
	CodeInvalidTask         = "SCHEDULE_INVALID_TASK"
	CodeNothingToUndo       = "SCHEDULE_NOTHING_TO_UNDO"
	CodeNothingToRedo       = "SCHEDULE_NOTHING_TO_REDO"
)

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

func violationError(v *ViolationError) *ServiceError {
	return newServiceError(http.StatusConflict, CodeConstraintViolation, "edit rejected", v)
}
