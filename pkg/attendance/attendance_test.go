package attendance_test

import (
	"context"
	"strings"
	"testing"

	"github.com/arnavshah/staff-scheduler-api/pkg/attendance"
	"github.com/arnavshah/staff-scheduler-api/pkg/ledger"
	"github.com/arnavshah/staff-scheduler-api/pkg/models"
	"github.com/arnavshah/staff-scheduler-api/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*attendance.Log, *ledger.Ledger) {
	t.Helper()
	store := memory.NewStore()
	store.PutShift(models.Shift{ID: "S1", Date: "2024-01-10", TimeSlot: models.SlotMorning, Capacity: 3})
	for _, id := range []string{"1", "2", "3"} {
		store.PutStaff(models.Staff{ID: id, Code: id, Name: id, Role: models.RoleNurse, Active: true})
	}
	l := ledger.New(store)
	for _, id := range []string{"1", "2"} {
		_, err := l.Assign(context.Background(), id, "S1")
		require.NoError(t, err)
	}
	return attendance.NewLog(store, l, nil), l
}

func TestParseStatus(t *testing.T) {
	for raw, want := range map[string]models.AttendanceStatus{
		"present":  models.StatusPresent,
		"LATE":     models.StatusLate,
		"on-leave": models.StatusOnLeave,
		" absent ": models.StatusAbsent,
	} {
		got, err := attendance.ParseStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	_, err := attendance.ParseStatus("sick")
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestRecordAndList(t *testing.T) {
	log, _ := setup(t)
	ctx := context.Background()

	rec, err := log.Record(ctx, attendance.Mark{ShiftID: "S1", StaffID: "1", Status: "late", Comment: " bus ", RecordedBy: "admin"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusLate, rec.Status)
	assert.Equal(t, "bus", rec.Comment)
	assert.Equal(t, "admin", rec.RecordedBy)

	list, err := log.ListForShift(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.StatusLate, list[0].Status)
	assert.Equal(t, "2", list[1].StaffID)
	assert.Equal(t, models.StatusAbsent, list[1].Status, "unrecorded staff default to absent")
}

func TestRecordRejects(t *testing.T) {
	log, l := setup(t)
	ctx := context.Background()

	_, err := log.Record(ctx, attendance.Mark{ShiftID: "S1", StaffID: "3", Status: "present"})
	assert.True(t, ledger.IsNotFound(err, ledger.EntityAssignment), "got %v", err)

	_, err = log.Record(ctx, attendance.Mark{StaffID: "1", Status: "present"})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = log.Record(ctx, attendance.Mark{ShiftID: "S1", StaffID: "1", Status: "present", Comment: strings.Repeat("x", 501)})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	// Unassigned staff lose their slot in the listing.
	items, err := l.ListAssignments(ctx, "S1")
	require.NoError(t, err)
	_, err = l.Unassign(ctx, items[0].ID)
	require.NoError(t, err)
	list, err := log.ListForShift(ctx, "S1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = log.ListForShift(ctx, "missing")
	assert.True(t, ledger.IsNotFound(err, ledger.EntityShift))
}

func TestReassignStartsWithoutAttendance(t *testing.T) {
	store := memory.NewStore()
	store.PutShift(models.Shift{ID: "S1", Date: "2024-01-10", TimeSlot: models.SlotMorning, Capacity: 2})
	store.PutStaff(models.Staff{ID: "1", Code: "1", Name: "1", Role: models.RoleNurse, Active: true})
	l := ledger.New(store)
	log := attendance.NewLog(store, l, nil)
	ctx := context.Background()

	a, err := l.Assign(ctx, "1", "S1")
	require.NoError(t, err)
	_, err = log.Record(ctx, attendance.Mark{ShiftID: "S1", StaffID: "1", Status: "present"})
	require.NoError(t, err)
	sum, err := store.Summary(ctx, "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, 100.0, sum.AttendanceRate)

	_, err = l.Unassign(ctx, a.ID)
	require.NoError(t, err)
	sum, err = store.Summary(ctx, "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, 0.0, sum.AttendanceRate, "removed assignments drop out of the rate")

	_, err = l.Assign(ctx, "1", "S1")
	require.NoError(t, err)
	list, err := log.ListForShift(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusAbsent, list[0].Status)
	assert.Empty(t, list[0].RecordedBy)
}
