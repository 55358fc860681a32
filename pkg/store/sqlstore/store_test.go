package sqlstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/arnavshah/staff-scheduler-api/pkg/database"
	"github.com/arnavshah/staff-scheduler-api/pkg/ledger"
	"github.com/arnavshah/staff-scheduler-api/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = "2024-01-10"

func openStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.InitDB("", filepath.Join(t.TempDir(), "scheduler.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return New(db, nil)
}

func mustShift(t *testing.T, s *Store, date string, slot models.TimeSlot, capacity int) models.Shift {
	t.Helper()
	shift, err := s.CreateShift(context.Background(), models.NewShift{Date: date, TimeSlot: slot, Capacity: capacity})
	require.NoError(t, err)
	return shift
}

func mustStaff(t *testing.T, s *Store, name string) models.Staff {
	t.Helper()
	member, err := s.CreateStaff(context.Background(), models.NewStaff{Name: name, Role: models.RoleNurse})
	require.NoError(t, err)
	return member
}

func TestCreateAndGetShift(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	created := mustShift(t, s, day, models.SlotAfternoon, 3)
	assert.Equal(t, "12:00", created.StartTime)
	assert.Equal(t, "16:00", created.EndTime)

	got, err := s.GetShift(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, models.SlotAfternoon, got.TimeSlot)
	assert.Equal(t, 3, got.Capacity)
	assert.Zero(t, got.AssignedCount)

	_, err = s.GetShift(ctx, "missing")
	assert.True(t, ledger.IsNotFound(err, ledger.EntityShift))

	_, err = s.CreateShift(ctx, models.NewShift{Date: "10/01/2024", TimeSlot: models.SlotMorning, Capacity: 1})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestLedgerOverSQL(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	l := ledger.New(s)

	s1 := mustShift(t, s, day, models.SlotMorning, 2)
	s2 := mustShift(t, s, day, models.SlotNight, 2)
	a := mustStaff(t, s, "Ada")
	b := mustStaff(t, s, "Ben")
	c := mustStaff(t, s, "Cy")

	first, err := l.Assign(ctx, a.ID, s1.ID)
	require.NoError(t, err)

	_, err = l.Assign(ctx, a.ID, s1.ID)
	assert.True(t, ledger.IsConflict(err, ledger.ReasonAlreadyAssigned), "got %v", err)

	_, err = l.Assign(ctx, b.ID, s1.ID)
	require.NoError(t, err)

	_, err = l.Assign(ctx, c.ID, s1.ID)
	assert.True(t, ledger.IsConflict(err, ledger.ReasonShiftFull), "got %v", err)

	_, err = l.Assign(ctx, a.ID, s2.ID)
	assert.True(t, ledger.IsConflict(err, ledger.ReasonOneShiftPerDay), "got %v", err)

	got, err := s.GetShift(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AssignedCount)

	_, err = l.Unassign(ctx, first.ID)
	require.NoError(t, err)
	got, err = s.GetShift(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AssignedCount)

	items, err := l.ListAssignments(ctx, s1.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, b.ID, items[0].StaffID)
}

func TestDailyHourCapOverSQL(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	l := ledger.New(s, ledger.WithRules(ledger.Rules{DailyHourCap: 8}))

	a := mustStaff(t, s, "Ada")
	for _, slot := range models.TimeSlots()[:2] {
		shift := mustShift(t, s, day, slot, 1)
		_, err := l.Assign(ctx, a.ID, shift.ID)
		require.NoError(t, err)
	}
	night := mustShift(t, s, day, models.SlotNight, 1)
	_, err := l.Assign(ctx, a.ID, night.ID)
	assert.True(t, ledger.IsConflict(err, ledger.ReasonDailyHourCap), "got %v", err)
}

func TestConcurrentAssignOverSQL(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	l := ledger.New(s)

	shift := mustShift(t, s, day, models.SlotMorning, 1)
	const racers = 12
	staff := make([]models.Staff, racers)
	for i := range staff {
		staff[i] = mustStaff(t, s, fmt.Sprint("racer ", i))
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		fulls int
	)
	for _, member := range staff {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := l.Assign(ctx, id, shift.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			if assert.True(t, ledger.IsConflict(err, ledger.ReasonShiftFull), "got %v", err) {
				fulls++
			}
		}(member.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, fulls)
	got, err := s.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AssignedCount)
}

func TestInsertAssignmentUniqueViolation(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	shift := mustShift(t, s, day, models.SlotMorning, 5)
	member := mustStaff(t, s, "Ada")

	insert := func(id string) error {
		return s.InTx(ctx, func(tx ledger.Tx) error {
			return tx.InsertAssignment(models.Assignment{ID: id, ShiftID: shift.ID, StaffID: member.ID, CreatedAt: time.Now()})
		})
	}
	require.NoError(t, insert("a1"))
	err := insert("a2")
	assert.True(t, ledger.IsConflict(err, ledger.ReasonAlreadyAssigned), "got %v", err)
}

func TestTransactionRollsBack(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	shift := mustShift(t, s, day, models.SlotMorning, 5)
	member := mustStaff(t, s, "Ada")

	err := s.InTx(ctx, func(tx ledger.Tx) error {
		if err := tx.InsertAssignment(models.Assignment{ID: "a1", ShiftID: shift.ID, StaffID: member.ID, CreatedAt: time.Now()}); err != nil {
			return err
		}
		if err := tx.AdjustAssignedCount(shift.ID, 1); err != nil {
			return err
		}
		return ledger.Conflict(ledger.ReasonShiftFull)
	})
	require.Error(t, err)

	got, err := s.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Zero(t, got.AssignedCount)
	ok, err := s.HasAssignment(ctx, shift.ID, member.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListShiftsFilters(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	l := ledger.New(s)

	night := mustShift(t, s, day, models.SlotNight, 1)
	morning := mustShift(t, s, day, models.SlotMorning, 1)
	mustShift(t, s, "2024-01-11", models.SlotMorning, 1)
	member := mustStaff(t, s, "Ada")
	_, err := l.Assign(ctx, member.ID, night.ID)
	require.NoError(t, err)

	all, err := s.ListShifts(ctx, models.ShiftFilter{Date: day})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, morning.ID, all[0].ID, "slot order within a date")
	assert.Equal(t, night.ID, all[1].ID)

	mine, err := s.ListShifts(ctx, models.ShiftFilter{StaffID: member.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, night.ID, mine[0].ID)

	mornings, err := s.ListShifts(ctx, models.ShiftFilter{TimeSlot: models.SlotMorning})
	require.NoError(t, err)
	assert.Len(t, mornings, 2)
}

func TestStaffListingAndDeactivation(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.CreateStaff(ctx, models.NewStaff{Name: "Zoe", Role: "doctor", Department: "ER"})
	require.NoError(t, err)
	ben, err := s.CreateStaff(ctx, models.NewStaff{Name: "Ben", Role: models.RoleNurse, Department: "ICU", Code: "N-1"})
	require.NoError(t, err)
	assert.Equal(t, "N-1", ben.Code)
	assert.True(t, ben.Active)

	sorted, err := s.ListStaff(ctx, models.StaffFilter{SortBy: "name", SortOrder: "desc"})
	require.NoError(t, err)
	require.Len(t, sorted, 2)
	assert.Equal(t, "Zoe", sorted[0].Name)
	assert.Equal(t, models.RoleDoctor, sorted[0].Role)

	doctors, err := s.ListStaff(ctx, models.StaffFilter{Role: models.RoleDoctor})
	require.NoError(t, err)
	assert.Len(t, doctors, 1)

	off, err := s.SetStaffActive(ctx, ben.ID, false)
	require.NoError(t, err)
	assert.False(t, off.Active)
	got, err := s.GetStaff(ctx, ben.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	_, err = s.SetStaffActive(ctx, "missing", true)
	assert.True(t, ledger.IsNotFound(err, ledger.EntityStaff))
}

func TestAttendanceUpsertAndSummary(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	l := ledger.New(s)

	shift := mustShift(t, s, day, models.SlotMorning, 3)
	a := mustStaff(t, s, "Ada")
	b := mustStaff(t, s, "Ben")
	for _, member := range []models.Staff{a, b} {
		_, err := l.Assign(ctx, member.ID, shift.ID)
		require.NoError(t, err)
	}

	first, err := s.UpsertAttendance(ctx, models.AttendanceRecord{
		ID: "r1", ShiftID: shift.ID, StaffID: a.ID, Status: models.StatusAbsent, RecordedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	second, err := s.UpsertAttendance(ctx, models.AttendanceRecord{
		ID: "r2", ShiftID: shift.ID, StaffID: a.ID, Status: models.StatusPresent, Comment: "on time", RecordedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.StatusPresent, second.Status)
	assert.Equal(t, "on time", second.Comment)

	_, err = s.UpsertAttendance(ctx, models.AttendanceRecord{
		ID: "r3", ShiftID: shift.ID, StaffID: b.ID, Status: models.StatusOnLeave, RecordedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	records, err := s.ListAttendance(ctx, shift.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	sum, err := s.Summary(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalStaff)
	assert.Equal(t, 2, sum.ActiveStaff)
	assert.Equal(t, 1, sum.TotalShifts)
	assert.Equal(t, 2, sum.AssignedToday)
	assert.Equal(t, 1, sum.OpenToday)
	assert.Equal(t, 50.0, sum.AttendanceRate)
}

func TestUnassignClearsAttendance(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	l := ledger.New(s)

	shift := mustShift(t, s, day, models.SlotMorning, 2)
	a := mustStaff(t, s, "Ada")
	first, err := l.Assign(ctx, a.ID, shift.ID)
	require.NoError(t, err)
	_, err = s.UpsertAttendance(ctx, models.AttendanceRecord{
		ID: "r1", ShiftID: shift.ID, StaffID: a.ID, Status: models.StatusPresent, RecordedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = l.Unassign(ctx, first.ID)
	require.NoError(t, err)
	records, err := s.ListAttendance(ctx, shift.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
	sum, err := s.Summary(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sum.AttendanceRate)

	_, err = l.Assign(ctx, a.ID, shift.ID)
	require.NoError(t, err)
	records, err = s.ListAttendance(ctx, shift.ID)
	require.NoError(t, err)
	assert.Empty(t, records, "a fresh assignment starts without attendance")
}

func TestListStaffNameFilterIsLiteral(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	mustStaff(t, s, "Ada")
	mustStaff(t, s, "Ben_Two")
	mustStaff(t, s, "Cara 100%")

	for filter, want := range map[string][]string{
		"%":   {"Cara 100%"},
		"_":   {"Ben_Two"},
		`\`:   nil,
		"a":   {"Ada", "Cara 100%"},
		"n_t": {"Ben_Two"},
		"a_a": nil,
	} {
		got, err := s.ListStaff(ctx, models.StaffFilter{Name: filter})
		require.NoError(t, err, filter)
		var names []string
		for _, member := range got {
			names = append(names, member.Name)
		}
		assert.ElementsMatch(t, want, names, "filter %q", filter)
	}
}
