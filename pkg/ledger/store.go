package ledger

import (
	"context"

	"github.com/arnavshah/staff-scheduler-api/pkg/models"
)

// Store is the storage the ledger reads and mutates.
//
// Snapshot reads may run without any lock. Everything that mutates the
// assignment set or a shift's assigned count goes through InTx, and a Store
// must apply either all of a transaction's writes or none of them.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetShift(ctx context.Context, id string) (models.Shift, error)
	GetAssignment(ctx context.Context, id string) (models.Assignment, error)
	ListAssignments(ctx context.Context, shiftID string) ([]models.Assignment, error)
	HasAssignment(ctx context.Context, shiftID, staffID string) (bool, error)
}

// Tx is the view of the store inside a transaction. Not-found lookups
// return a *NotFoundError.
type Tx interface {
	// LockShift reads the shift and holds it against concurrent writers
	// until the transaction ends.
	LockShift(id string) (models.Shift, error)
	// LockStaff reads the staff member and holds the row in the same way.
	LockStaff(id string) (models.Staff, error)
	GetAssignment(id string) (models.Assignment, error)
	HasAssignment(shiftID, staffID string) (bool, error)
	// BookingsOn returns the staff member's assignments on shifts dated date.
	BookingsOn(staffID, date string) ([]models.Booking, error)
	InsertAssignment(a models.Assignment) error
	DeleteAssignment(id string) error
	// DeleteAttendance drops any attendance recorded for the pair. A missing
	// record is not an error.
	DeleteAttendance(shiftID, staffID string) error
	AdjustAssignedCount(shiftID string, delta int) error
}
