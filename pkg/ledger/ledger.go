// Package ledger owns staff-to-shift placements and the invariants around
// them: no double booking, no capacity overflow, one shift per staff per day
// and a daily hour cap. It keeps every shift's assigned count equal to the
// number of assignments that reference it.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/arnavshah/staff-scheduler-api/pkg/models"
	"github.com/google/uuid"
)

// Rules are the tunable placement limits
type Rules struct {
	// DailyHourCap is the most slot hours one staff member may hold on a date.
	// Zero turns the cap off.
	DailyHourCap int
	// OneShiftPerDay forbids a second assignment on the same date.
	OneShiftPerDay bool
}

// DefaultRules returns the standard limits: 8 hours, one shift per day
func DefaultRules() Rules {
	return Rules{DailyHourCap: 8, OneShiftPerDay: true}
}

// Ledger gates and records staff-to-shift placements
type Ledger struct {
	store   Store
	locks   Locker
	rules   Rules
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a Ledger
type Option func(*Ledger)

func WithRules(r Rules) Option {
	return func(l *Ledger) { l.rules = r }
}

func WithLocker(locker Locker) Option {
	return func(l *Ledger) { l.locks = locker }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) { l.newID = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// New creates a ledger over store. Without options it uses DefaultRules, an
// in-process locker, UTC wall time and random UUIDs.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		rules: DefaultRules(),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.locks == nil {
		l.locks = NewLocalLocker()
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Rules returns the limits the ledger enforces
func (l *Ledger) Rules() Rules {
	return l.rules
}

// Assign places staffID on shiftID.
//
// Checks run in a fixed order and the first failure is returned: shift
// exists, staff exists and is active, not already assigned, capacity left,
// no other shift that day, daily hours within the cap. On success the new
// assignment is stored and the shift's assigned count goes up by one in the
// same transaction.
func (l *Ledger) Assign(ctx context.Context, staffID, shiftID string) (models.Assignment, error) {
	a, err := l.assign(ctx, strings.TrimSpace(staffID), strings.TrimSpace(shiftID))
	l.metrics.observeAssign(err)
	if err != nil {
		l.logResult("assign", err, "staff_id", staffID, "shift_id", shiftID)
		return models.Assignment{}, err
	}
	l.logger.Info("assignment created",
		"assignment_id", a.ID,
		"staff_id", a.StaffID,
		"shift_id", a.ShiftID,
	)
	return a, nil
}

func (l *Ledger) assign(ctx context.Context, staffID, shiftID string) (models.Assignment, error) {
	if shiftID == "" {
		return models.Assignment{}, Invalid("shiftId", "is required")
	}
	if staffID == "" {
		return models.Assignment{}, Invalid("staffId", "is required")
	}

	// The date never changes, so it is safe to read it before locking and
	// use it to build the staff-day key.
	snapshot, err := l.store.GetShift(ctx, shiftID)
	if err != nil {
		return models.Assignment{}, err
	}

	unlock, err := l.lock(ctx, shiftKey(shiftID), staffDayKey(staffID, snapshot.Date))
	if err != nil {
		return models.Assignment{}, err
	}
	defer unlock()

	var created models.Assignment
	err = l.store.InTx(ctx, func(tx Tx) error {
		shift, err := tx.LockShift(shiftID)
		if err != nil {
			return err
		}

		staff, err := tx.LockStaff(staffID)
		if err != nil {
			return err
		}
		if !staff.Active {
			return NotFound(EntityStaff, staffID)
		}

		exists, err := tx.HasAssignment(shiftID, staffID)
		if err != nil {
			return err
		}
		if exists {
			return Conflict(ReasonAlreadyAssigned)
		}

		if shift.AssignedCount >= shift.Capacity {
			return Conflict(ReasonShiftFull)
		}

		bookings, err := tx.BookingsOn(staffID, shift.Date)
		if err != nil {
			return err
		}
		if l.rules.OneShiftPerDay {
			for _, b := range bookings {
				if b.ShiftID != shiftID {
					return Conflict(ReasonOneShiftPerDay)
				}
			}
		}
		hours := shift.Hours()
		for _, b := range bookings {
			hours += b.TimeSlot.Hours()
		}
		if l.rules.DailyHourCap > 0 && hours > l.rules.DailyHourCap {
			return Conflict(ReasonDailyHourCap)
		}

		created = models.Assignment{
			ID:        l.newID(),
			ShiftID:   shiftID,
			StaffID:   staffID,
			CreatedAt: l.now(),
		}
		if err := tx.InsertAssignment(created); err != nil {
			return err
		}
		return tx.AdjustAssignedCount(shiftID, 1)
	})
	if err != nil {
		return models.Assignment{}, err
	}
	return created, nil
}

// ListAssignments returns the shift's assignments in the order they were
// made. An unknown shift id is reported as NotFound rather than an empty list.
func (l *Ledger) ListAssignments(ctx context.Context, shiftID string) ([]models.Assignment, error) {
	shiftID = strings.TrimSpace(shiftID)
	if shiftID == "" {
		return nil, Invalid("shiftId", "is required")
	}
	if _, err := l.store.GetShift(ctx, shiftID); err != nil {
		return nil, err
	}
	items, err := l.store.ListAssignments(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Assignment{}
	}
	return items, nil
}

// IsAssigned reports whether staffID currently holds an assignment on shiftID
func (l *Ledger) IsAssigned(ctx context.Context, shiftID, staffID string) (bool, error) {
	return l.store.HasAssignment(ctx, strings.TrimSpace(shiftID), strings.TrimSpace(staffID))
}

// Unassign removes an assignment and gives its slot back to the shift
func (l *Ledger) Unassign(ctx context.Context, assignmentID string) (models.Assignment, error) {
	removed, err := l.unassign(ctx, strings.TrimSpace(assignmentID))
	l.metrics.observeUnassign(err)
	if err != nil {
		l.logResult("unassign", err, "assignment_id", assignmentID)
		return models.Assignment{}, err
	}
	l.logger.Info("assignment removed",
		"assignment_id", removed.ID,
		"staff_id", removed.StaffID,
		"shift_id", removed.ShiftID,
	)
	return removed, nil
}

func (l *Ledger) unassign(ctx context.Context, assignmentID string) (models.Assignment, error) {
	if assignmentID == "" {
		return models.Assignment{}, Invalid("assignmentId", "is required")
	}

	existing, err := l.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return models.Assignment{}, err
	}
	shift, err := l.store.GetShift(ctx, existing.ShiftID)
	if err != nil {
		return models.Assignment{}, err
	}

	unlock, err := l.lock(ctx, shiftKey(shift.ID), staffDayKey(existing.StaffID, shift.Date))
	if err != nil {
		return models.Assignment{}, err
	}
	defer unlock()

	var removed models.Assignment
	err = l.store.InTx(ctx, func(tx Tx) error {
		// Someone may have removed it between the snapshot and the lock.
		current, err := tx.GetAssignment(assignmentID)
		if err != nil {
			return err
		}
		if _, err := tx.LockShift(current.ShiftID); err != nil {
			return err
		}
		if err := tx.DeleteAssignment(current.ID); err != nil {
			return err
		}
		if err := tx.DeleteAttendance(current.ShiftID, current.StaffID); err != nil {
			return err
		}
		if err := tx.AdjustAssignedCount(current.ShiftID, -1); err != nil {
			return err
		}
		removed = current
		return nil
	})
	if err != nil {
		return models.Assignment{}, err
	}
	return removed, nil
}

func (l *Ledger) lock(ctx context.Context, keys ...string) (func(), error) {
	start := time.Now()
	unlock, err := l.locks.Lock(ctx, keys...)
	l.metrics.observeLockWait(time.Since(start))
	return unlock, err
}

func (l *Ledger) logResult(op string, err error, attrs ...any) {
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		l.logger.Debug("ledger request rejected", append([]any{"op", op, "reason", err.Error()}, attrs...)...)
		return
	}
	l.logger.Error("ledger operation failed", append([]any{"op", op, "error", err.Error()}, attrs...)...)
}
