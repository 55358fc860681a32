// Package attendance records presence for staff who hold an assignment on a
// shift. It sits downstream of the ledger and never changes assignments.
package attendance

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/arnavshah/staff-scheduler-api/pkg/ledger"
	"github.com/arnavshah/staff-scheduler-api/pkg/models"
	"github.com/google/uuid"
)

const maxCommentLength = 500

// Store persists attendance records keyed by (shift, staff)
type Store interface {
	UpsertAttendance(ctx context.Context, rec models.AttendanceRecord) (models.AttendanceRecord, error)
	ListAttendance(ctx context.Context, shiftID string) ([]models.AttendanceRecord, error)
}

// Assignments answers who is on a shift
type Assignments interface {
	IsAssigned(ctx context.Context, shiftID, staffID string) (bool, error)
	ListAssignments(ctx context.Context, shiftID string) ([]models.Assignment, error)
}

// Mark is one attendance entry to record
type Mark struct {
	ShiftID    string
	StaffID    string
	Status     string
	Comment    string
	RecordedBy string
}

// Log records and reads attendance
type Log struct {
	store       Store
	assignments Assignments
	now         func() time.Time
	logger      *slog.Logger
}

// NewLog creates an attendance log
func NewLog(store Store, assignments Assignments, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		store:       store,
		assignments: assignments,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
	}
}

// ParseStatus accepts the canonical names and the lowercase, dashed forms
// the admin frontend sends ("present", "on-leave").
func ParseStatus(raw string) (models.AttendanceStatus, error) {
	s := models.AttendanceStatus(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), "-", "_"))
	if !s.Valid() {
		return "", ledger.Invalid("status", "must be one of PRESENT, ABSENT, LATE, ON_LEAVE")
	}
	return s, nil
}

// Record stores the attendance of one assigned staff member, replacing any
// earlier entry for the same shift and staff.
func (l *Log) Record(ctx context.Context, m Mark) (models.AttendanceRecord, error) {
	m.ShiftID = strings.TrimSpace(m.ShiftID)
	m.StaffID = strings.TrimSpace(m.StaffID)
	m.Comment = strings.TrimSpace(m.Comment)
	if m.ShiftID == "" {
		return models.AttendanceRecord{}, ledger.Invalid("shiftId", "is required")
	}
	if m.StaffID == "" {
		return models.AttendanceRecord{}, ledger.Invalid("staffId", "is required")
	}
	status, err := ParseStatus(m.Status)
	if err != nil {
		return models.AttendanceRecord{}, err
	}
	if len(m.Comment) > maxCommentLength {
		return models.AttendanceRecord{}, ledger.Invalid("comment", "must be at most 500 characters")
	}

	assigned, err := l.assignments.IsAssigned(ctx, m.ShiftID, m.StaffID)
	if err != nil {
		return models.AttendanceRecord{}, err
	}
	if !assigned {
		return models.AttendanceRecord{}, &ledger.NotFoundError{Entity: ledger.EntityAssignment}
	}

	rec, err := l.store.UpsertAttendance(ctx, models.AttendanceRecord{
		ID:         uuid.NewString(),
		ShiftID:    m.ShiftID,
		StaffID:    m.StaffID,
		Status:     status,
		Comment:    m.Comment,
		RecordedAt: l.now(),
		RecordedBy: m.RecordedBy,
	})
	if err != nil {
		return models.AttendanceRecord{}, err
	}
	l.logger.Info("attendance recorded",
		"shift_id", rec.ShiftID,
		"staff_id", rec.StaffID,
		"status", rec.Status,
	)
	return rec, nil
}

// ListForShift returns one entry per assigned staff member in assignment
// order. Staff with nothing recorded are reported ABSENT.
func (l *Log) ListForShift(ctx context.Context, shiftID string) ([]models.AttendanceRecord, error) {
	assignments, err := l.assignments.ListAssignments(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	recorded, err := l.store.ListAttendance(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	byStaff := make(map[string]models.AttendanceRecord, len(recorded))
	for _, rec := range recorded {
		byStaff[rec.StaffID] = rec
	}

	out := make([]models.AttendanceRecord, 0, len(assignments))
	for _, a := range assignments {
		if rec, ok := byStaff[a.StaffID]; ok {
			out = append(out, rec)
			continue
		}
		out = append(out, models.AttendanceRecord{
			ShiftID: shiftID,
			StaffID: a.StaffID,
			Status:  models.StatusAbsent,
		})
	}
	return out, nil
}
