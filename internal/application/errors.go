package application

import (
	"errors"
	"fmt"

	"github.com/example/class-scheduler/internal/calendar"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when a write would double book a room.
	ErrConflict = errors.New("application: schedule conflict")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func fieldError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// ConflictError identifies the active schedule that already occupies the
// requested room and time.
type ConflictError struct {
	ScheduleID string
	ClassID    string
	ClassLabel string
	// Date is the first date on which both sessions would take place.
	Date calendar.Date
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	owner := e.ClassLabel
	if owner == "" {
		owner = e.ClassID
	}
	return fmt.Sprintf("room is already booked by schedule %s (%s) on %s", e.ScheduleID, owner, e.Date)
}

// Is lets errors.Is match ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Warning codes returned alongside successful writes.
const (
	WarningResyncFailed    = "resync_failed"
	WarningReconcileFailed = "parent_reconcile_failed"
)

// Warning reports a follow-up step that failed after the primary write committed.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
