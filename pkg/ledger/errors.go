package ledger

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks across the typed errors below.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

// Entity names the kind of record a NotFoundError refers to
type Entity string

const (
	EntityShift      Entity = "shift"
	EntityStaff      Entity = "staff"
	EntityAssignment Entity = "assignment"
)

// ConflictReason names the placement rule a request violated
type ConflictReason string

const (
	ReasonAlreadyAssigned ConflictReason = "already_assigned"
	ReasonShiftFull       ConflictReason = "shift_full"
	ReasonOneShiftPerDay  ConflictReason = "one_shift_per_day"
	ReasonDailyHourCap    ConflictReason = "daily_hour_cap_exceeded"
)

var conflictMessages = map[ConflictReason]string{
	ReasonAlreadyAssigned: "staff already assigned to this shift",
	ReasonShiftFull:       "shift is at full capacity",
	ReasonOneShiftPerDay:  "staff can only work 1 shift per day and is already assigned to another shift on this date",
	ReasonDailyHourCap:    "assignment would exceed the daily hour cap for this staff member",
}

// NotFoundError reports a missing shift, staff member or assignment
type NotFoundError struct {
	Entity Entity
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError reports a placement that would break a ledger invariant
type ConflictError struct {
	Reason ConflictReason
}

func (e *ConflictError) Error() string {
	if msg, ok := conflictMessages[e.Reason]; ok {
		return msg
	}
	return string(e.Reason)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ValidationError reports malformed or missing input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFound builds a NotFoundError
func NotFound(entity Entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// Conflict builds a ConflictError
func Conflict(reason ConflictReason) error {
	return &ConflictError{Reason: reason}
}

// Invalid builds a ValidationError
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsConflict reports whether err is a ConflictError with the given reason
func IsConflict(err error, reason ConflictReason) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict) && conflict.Reason == reason
}

// IsNotFound reports whether err is a NotFoundError for the given entity
func IsNotFound(err error, entity Entity) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) && nf.Entity == entity
}
