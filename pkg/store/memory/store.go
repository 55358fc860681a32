package memory

import (
	"context"
	"sync"
	"time"

	"github.com/arnavshah/staff-scheduler-api/pkg/ledger"
	"github.com/arnavshah/staff-scheduler-api/pkg/models"
	"github.com/arnavshah/staff-scheduler-api/pkg/roster"
	"github.com/google/uuid"
)

// Store keeps shifts, staff, assignments and attendance in process memory.
// One RWMutex guards everything; transactions hold it exclusively and undo
// their writes if the callback fails.
type Store struct {
	mu sync.RWMutex

	shifts     map[string]models.Shift
	shiftOrder []string

	staff      map[string]models.Staff
	staffOrder []string

	assignments map[string]models.Assignment
	byShift     map[string][]string

	attendance      map[string]models.AttendanceRecord
	attendanceOrder []string

	now   func() time.Time
	newID func() string
}

// Option configures a Store
type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		shifts:      make(map[string]models.Shift),
		staff:       make(map[string]models.Staff),
		assignments: make(map[string]models.Assignment),
		byShift:     make(map[string][]string),
		attendance:  make(map[string]models.AttendanceRecord),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutShift inserts or replaces a shift as-is, including its assigned count
func (s *Store) PutShift(shift models.Shift) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shifts[shift.ID]; !ok {
		s.shiftOrder = append(s.shiftOrder, shift.ID)
	}
	s.shifts[shift.ID] = shift
}

// PutStaff inserts or replaces a staff member as-is
func (s *Store) PutStaff(member models.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.staff[member.ID]; !ok {
		s.staffOrder = append(s.staffOrder, member.ID)
	}
	s.staff[member.ID] = member
}

func (s *Store) InTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) GetShift(_ context.Context, id string) (models.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shift, ok := s.shifts[id]
	if !ok {
		return models.Shift{}, ledger.NotFound(ledger.EntityShift, id)
	}
	return shift, nil
}

func (s *Store) GetAssignment(_ context.Context, id string) (models.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[id]
	if !ok {
		return models.Assignment{}, ledger.NotFound(ledger.EntityAssignment, id)
	}
	return a, nil
}

func (s *Store) ListAssignments(_ context.Context, shiftID string) ([]models.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byShift[shiftID]
	out := make([]models.Assignment, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.assignments[id])
	}
	return out, nil
}

func (s *Store) HasAssignment(_ context.Context, shiftID, staffID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasAssignment(shiftID, staffID), nil
}

func (s *Store) hasAssignment(shiftID, staffID string) bool {
	for _, id := range s.byShift[shiftID] {
		if s.assignments[id].StaffID == staffID {
			return true
		}
	}
	return false
}

func (s *Store) CreateShift(ctx context.Context, in models.NewShift) (models.Shift, error) {
	if err := ctx.Err(); err != nil {
		return models.Shift{}, err
	}
	in, err := roster.NormalizeShift(in)
	if err != nil {
		return models.Shift{}, err
	}
	shift := roster.BuildShift(in, s.newID(), s.now())
	s.PutShift(shift)
	return shift, nil
}

func (s *Store) ListShifts(_ context.Context, filter models.ShiftFilter) ([]models.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Shift, 0, len(s.shiftOrder))
	for _, id := range s.shiftOrder {
		shift := s.shifts[id]
		if filter.Date != "" && shift.Date != filter.Date {
			continue
		}
		if filter.Ward != "" && shift.Ward != filter.Ward {
			continue
		}
		if filter.TimeSlot != "" && shift.TimeSlot != filter.TimeSlot {
			continue
		}
		if filter.StaffID != "" && !s.hasAssignment(shift.ID, filter.StaffID) {
			continue
		}
		out = append(out, shift)
	}
	roster.SortShifts(out)
	return out, nil
}

func (s *Store) CreateStaff(ctx context.Context, in models.NewStaff) (models.Staff, error) {
	if err := ctx.Err(); err != nil {
		return models.Staff{}, err
	}
	in, err := roster.NormalizeStaff(in)
	if err != nil {
		return models.Staff{}, err
	}
	member := roster.BuildStaff(in, s.newID(), s.now())
	s.PutStaff(member)
	return member, nil
}

func (s *Store) GetStaff(_ context.Context, id string) (models.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	member, ok := s.staff[id]
	if !ok {
		return models.Staff{}, ledger.NotFound(ledger.EntityStaff, id)
	}
	return member, nil
}

func (s *Store) ListStaff(_ context.Context, filter models.StaffFilter) ([]models.Staff, error) {
	s.mu.RLock()
	out := make([]models.Staff, 0, len(s.staffOrder))
	for _, id := range s.staffOrder {
		member := s.staff[id]
		if roster.MatchStaff(member, filter) {
			out = append(out, member)
		}
	}
	s.mu.RUnlock()
	roster.SortStaff(out, filter)
	return out, nil
}

func (s *Store) SetStaffActive(_ context.Context, id string, active bool) (models.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	member, ok := s.staff[id]
	if !ok {
		return models.Staff{}, ledger.NotFound(ledger.EntityStaff, id)
	}
	member.Active = active
	s.staff[id] = member
	return member, nil
}

func attendanceKey(shiftID, staffID string) string {
	return shiftID + "|" + staffID
}

func (s *Store) UpsertAttendance(_ context.Context, rec models.AttendanceRecord) (models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attendanceKey(rec.ShiftID, rec.StaffID)
	if existing, ok := s.attendance[key]; ok {
		rec.ID = existing.ID
	} else {
		s.attendanceOrder = append(s.attendanceOrder, key)
	}
	s.attendance[key] = rec
	return rec, nil
}

func (s *Store) ListAttendance(_ context.Context, shiftID string) ([]models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AttendanceRecord
	for _, key := range s.attendanceOrder {
		rec := s.attendance[key]
		if rec.ShiftID == shiftID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) Summary(_ context.Context, date string) (models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := models.Summary{
		TotalStaff:  len(s.staff),
		TotalShifts: len(s.shifts),
	}
	for _, member := range s.staff {
		if member.Active {
			sum.ActiveStaff++
		}
	}
	for _, shift := range s.shifts {
		if shift.Date == date {
			sum.AssignedToday += shift.AssignedCount
			sum.OpenToday += shift.Open()
		}
	}
	attended := 0
	for _, rec := range s.attendance {
		if rec.Status == models.StatusPresent || rec.Status == models.StatusLate {
			attended++
		}
	}
	sum.AttendanceRate = roster.AttendanceRate(attended, len(s.attendance))
	return sum, nil
}

// memTx runs with s.mu held for writing and records an undo step for every
// write it makes.
type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) LockShift(id string) (models.Shift, error) {
	shift, ok := t.s.shifts[id]
	if !ok {
		return models.Shift{}, ledger.NotFound(ledger.EntityShift, id)
	}
	return shift, nil
}

func (t *memTx) LockStaff(id string) (models.Staff, error) {
	member, ok := t.s.staff[id]
	if !ok {
		return models.Staff{}, ledger.NotFound(ledger.EntityStaff, id)
	}
	return member, nil
}

func (t *memTx) GetAssignment(id string) (models.Assignment, error) {
	a, ok := t.s.assignments[id]
	if !ok {
		return models.Assignment{}, ledger.NotFound(ledger.EntityAssignment, id)
	}
	return a, nil
}

func (t *memTx) HasAssignment(shiftID, staffID string) (bool, error) {
	return t.s.hasAssignment(shiftID, staffID), nil
}

func (t *memTx) BookingsOn(staffID, date string) ([]models.Booking, error) {
	var out []models.Booking
	for _, a := range t.s.assignments {
		if a.StaffID != staffID {
			continue
		}
		shift, ok := t.s.shifts[a.ShiftID]
		if !ok || shift.Date != date {
			continue
		}
		out = append(out, models.Booking{
			AssignmentID: a.ID,
			ShiftID:      shift.ID,
			TimeSlot:     shift.TimeSlot,
		})
	}
	return out, nil
}

func (t *memTx) InsertAssignment(a models.Assignment) error {
	if t.s.hasAssignment(a.ShiftID, a.StaffID) {
		return ledger.Conflict(ledger.ReasonAlreadyAssigned)
	}
	t.s.assignments[a.ID] = a
	t.s.byShift[a.ShiftID] = append(t.s.byShift[a.ShiftID], a.ID)
	t.undo = append(t.undo, func() {
		delete(t.s.assignments, a.ID)
		ids := t.s.byShift[a.ShiftID]
		t.s.byShift[a.ShiftID] = ids[:len(ids)-1]
	})
	return nil
}

func (t *memTx) DeleteAssignment(id string) error {
	a, ok := t.s.assignments[id]
	if !ok {
		return ledger.NotFound(ledger.EntityAssignment, id)
	}
	ids := t.s.byShift[a.ShiftID]
	idx := -1
	for i, v := range ids {
		if v == id {
			idx = i
			break
		}
	}
	delete(t.s.assignments, id)
	if idx >= 0 {
		rest := make([]string, 0, len(ids)-1)
		rest = append(rest, ids[:idx]...)
		rest = append(rest, ids[idx+1:]...)
		t.s.byShift[a.ShiftID] = rest
	}
	t.undo = append(t.undo, func() {
		t.s.assignments[id] = a
		t.s.byShift[a.ShiftID] = ids
	})
	return nil
}

func (t *memTx) DeleteAttendance(shiftID, staffID string) error {
	key := attendanceKey(shiftID, staffID)
	rec, ok := t.s.attendance[key]
	if !ok {
		return nil
	}
	order := t.s.attendanceOrder
	rest := make([]string, 0, len(order))
	for _, k := range order {
		if k != key {
			rest = append(rest, k)
		}
	}
	delete(t.s.attendance, key)
	t.s.attendanceOrder = rest
	t.undo = append(t.undo, func() {
		t.s.attendance[key] = rec
		t.s.attendanceOrder = order
	})
	return nil
}

func (t *memTx) AdjustAssignedCount(shiftID string, delta int) error {
	shift, ok := t.s.shifts[shiftID]
	if !ok {
		return ledger.NotFound(ledger.EntityShift, shiftID)
	}
	prev := shift
	shift.AssignedCount += delta
	shift.UpdatedAt = t.s.now()
	t.s.shifts[shiftID] = shift
	t.undo = append(t.undo, func() {
		t.s.shifts[shiftID] = prev
	})
	return nil
}

var _ ledger.Store = (*Store)(nil)
