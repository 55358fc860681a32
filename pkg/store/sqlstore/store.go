package sqlstore

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/arnavshah/staff-scheduler-api/pkg/database"
	"github.com/arnavshah/staff-scheduler-api/pkg/ledger"
	"github.com/arnavshah/staff-scheduler-api/pkg/models"
	"github.com/arnavshah/staff-scheduler-api/pkg/roster"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists the roster through gorm. Transactions take row locks on the
// shift and staff rows (ignored by SQLite, which serializes writers anyway).
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// New wraps an opened and migrated database
func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) InTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&sqlTx{db: tx, store: s})
	})
}

func (s *Store) GetShift(ctx context.Context, id string) (models.Shift, error) {
	var row database.Shift
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Shift{}, ledger.NotFound(ledger.EntityShift, id)
		}
		return models.Shift{}, s.logError("shift_get_failed", err, "shift_id", id)
	}
	return shiftFromRow(row), nil
}

func (s *Store) GetAssignment(ctx context.Context, id string) (models.Assignment, error) {
	var row database.Assignment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ledger.NotFound(ledger.EntityAssignment, id)
		}
		return models.Assignment{}, s.logError("assignment_get_failed", err, "assignment_id", id)
	}
	return assignmentFromRow(row), nil
}

func (s *Store) ListAssignments(ctx context.Context, shiftID string) ([]models.Assignment, error) {
	var rows []database.Assignment
	if err := s.db.WithContext(ctx).
		Where("shift_id = ?", shiftID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, s.logError("assignment_list_failed", err, "shift_id", shiftID)
	}
	out := make([]models.Assignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, assignmentFromRow(row))
	}
	return out, nil
}

func (s *Store) HasAssignment(ctx context.Context, shiftID, staffID string) (bool, error) {
	return hasAssignment(s.db.WithContext(ctx), shiftID, staffID)
}

func hasAssignment(db *gorm.DB, shiftID, staffID string) (bool, error) {
	var count int64
	err := db.Model(&database.Assignment{}).
		Where("shift_id = ? AND staff_id = ?", shiftID, staffID).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) CreateShift(ctx context.Context, in models.NewShift) (models.Shift, error) {
	in, err := roster.NormalizeShift(in)
	if err != nil {
		return models.Shift{}, err
	}
	shift := roster.BuildShift(in, uuid.NewString(), s.now())
	row := shiftToRow(shift)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Shift{}, s.logError("shift_create_failed", err, "date", in.Date)
	}
	return shift, nil
}

func (s *Store) ListShifts(ctx context.Context, filter models.ShiftFilter) ([]models.Shift, error) {
	tx := s.db.WithContext(ctx).Model(&database.Shift{})
	if filter.Date != "" {
		tx = tx.Where("date = ?", filter.Date)
	}
	if filter.Ward != "" {
		tx = tx.Where("ward = ?", filter.Ward)
	}
	if filter.TimeSlot != "" {
		tx = tx.Where("time_slot = ?", string(filter.TimeSlot))
	}
	if filter.StaffID != "" {
		tx = tx.Where("id IN (?)", s.db.Model(&database.Assignment{}).
			Select("shift_id").
			Where("staff_id = ?", filter.StaffID))
	}
	var rows []database.Shift
	if err := tx.Order("date ASC, created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, s.logError("shift_list_failed", err, "date", filter.Date)
	}
	out := make([]models.Shift, 0, len(rows))
	for _, row := range rows {
		out = append(out, shiftFromRow(row))
	}
	// Slot order is not alphabetical, so finish the ordering in Go.
	roster.SortShifts(out)
	return out, nil
}

func (s *Store) CreateStaff(ctx context.Context, in models.NewStaff) (models.Staff, error) {
	in, err := roster.NormalizeStaff(in)
	if err != nil {
		return models.Staff{}, err
	}
	member := roster.BuildStaff(in, uuid.NewString(), s.now())
	row := staffToRow(member)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Staff{}, s.logError("staff_create_failed", err, "name", in.Name)
	}
	return member, nil
}

func (s *Store) GetStaff(ctx context.Context, id string) (models.Staff, error) {
	var row database.Staff
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Staff{}, ledger.NotFound(ledger.EntityStaff, id)
		}
		return models.Staff{}, s.logError("staff_get_failed", err, "staff_id", id)
	}
	return staffFromRow(row), nil
}

// likeEscaper makes a name filter match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) ListStaff(ctx context.Context, filter models.StaffFilter) ([]models.Staff, error) {
	tx := s.db.WithContext(ctx).Model(&database.Staff{})
	if filter.Name != "" {
		tx = tx.Where(`LOWER(name) LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(strings.ToLower(filter.Name))+"%")
	}
	if filter.Role != "" {
		tx = tx.Where("role = ?", string(filter.Role))
	}
	if filter.Department != "" {
		tx = tx.Where("LOWER(department) = ?", strings.ToLower(filter.Department))
	}
	var rows []database.Staff
	if err := tx.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, s.logError("staff_list_failed", err)
	}
	out := make([]models.Staff, 0, len(rows))
	for _, row := range rows {
		out = append(out, staffFromRow(row))
	}
	roster.SortStaff(out, filter)
	return out, nil
}

func (s *Store) SetStaffActive(ctx context.Context, id string, active bool) (models.Staff, error) {
	res := s.db.WithContext(ctx).Model(&database.Staff{}).
		Where("id = ?", id).
		Update("active", active)
	if res.Error != nil {
		return models.Staff{}, s.logError("staff_set_active_failed", res.Error, "staff_id", id)
	}
	if res.RowsAffected == 0 {
		return models.Staff{}, ledger.NotFound(ledger.EntityStaff, id)
	}
	return s.GetStaff(ctx, id)
}

func (s *Store) UpsertAttendance(ctx context.Context, rec models.AttendanceRecord) (models.AttendanceRecord, error) {
	row := attendanceToRow(rec)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "shift_id"}, {Name: "staff_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":      row.Status,
			"comment":     row.Comment,
			"recorded_at": row.RecordedAt,
			"recorded_by": row.RecordedBy,
		}),
	}).Create(&row).Error
	if err != nil {
		return models.AttendanceRecord{}, s.logError("attendance_upsert_failed", err,
			"shift_id", rec.ShiftID,
			"staff_id", rec.StaffID,
		)
	}

	// On conflict the stored row keeps its original id.
	var stored database.Attendance
	if err := s.db.WithContext(ctx).
		Where("shift_id = ? AND staff_id = ?", rec.ShiftID, rec.StaffID).
		First(&stored).Error; err != nil {
		return models.AttendanceRecord{}, s.logError("attendance_reload_failed", err,
			"shift_id", rec.ShiftID,
			"staff_id", rec.StaffID,
		)
	}
	return attendanceFromRow(stored), nil
}

func (s *Store) ListAttendance(ctx context.Context, shiftID string) ([]models.AttendanceRecord, error) {
	var rows []database.Attendance
	if err := s.db.WithContext(ctx).
		Where("shift_id = ?", shiftID).
		Order("recorded_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, s.logError("attendance_list_failed", err, "shift_id", shiftID)
	}
	out := make([]models.AttendanceRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, attendanceFromRow(row))
	}
	return out, nil
}

func (s *Store) Summary(ctx context.Context, date string) (models.Summary, error) {
	db := s.db.WithContext(ctx)
	var (
		sum                     models.Summary
		totalStaff, activeStaff int64
		totalShifts             int64
		recorded, attended      int64
	)
	if err := db.Model(&database.Staff{}).Count(&totalStaff).Error; err != nil {
		return sum, s.logError("summary_failed", err)
	}
	if err := db.Model(&database.Staff{}).Where("active = ?", true).Count(&activeStaff).Error; err != nil {
		return sum, s.logError("summary_failed", err)
	}
	if err := db.Model(&database.Shift{}).Count(&totalShifts).Error; err != nil {
		return sum, s.logError("summary_failed", err)
	}

	var today struct {
		Assigned int
		Capacity int
	}
	if err := db.Model(&database.Shift{}).
		Select("COALESCE(SUM(assigned_count), 0) AS assigned, COALESCE(SUM(capacity), 0) AS capacity").
		Where("date = ?", date).
		Scan(&today).Error; err != nil {
		return sum, s.logError("summary_failed", err)
	}

	if err := db.Model(&database.Attendance{}).Count(&recorded).Error; err != nil {
		return sum, s.logError("summary_failed", err)
	}
	if err := db.Model(&database.Attendance{}).
		Where("status IN ?", []string{string(models.StatusPresent), string(models.StatusLate)}).
		Count(&attended).Error; err != nil {
		return sum, s.logError("summary_failed", err)
	}

	sum.TotalStaff = int(totalStaff)
	sum.ActiveStaff = int(activeStaff)
	sum.TotalShifts = int(totalShifts)
	sum.AssignedToday = today.Assigned
	sum.OpenToday = today.Capacity - today.Assigned
	sum.AttendanceRate = roster.AttendanceRate(int(attended), int(recorded))
	return sum, nil
}

func (s *Store) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+6)
	fields = append(fields,
		"event", event,
		"layer", "sqlstore",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	s.logger.Error("roster repository operation failed", fields...)
	return err
}

// sqlTx implements ledger.Tx on an open gorm transaction
type sqlTx struct {
	db    *gorm.DB
	store *Store
}

func (t *sqlTx) LockShift(id string) (models.Shift, error) {
	var row database.Shift
	if err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Shift{}, ledger.NotFound(ledger.EntityShift, id)
		}
		return models.Shift{}, t.store.logError("shift_lock_failed", err, "shift_id", id)
	}
	return shiftFromRow(row), nil
}

func (t *sqlTx) LockStaff(id string) (models.Staff, error) {
	var row database.Staff
	if err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Staff{}, ledger.NotFound(ledger.EntityStaff, id)
		}
		return models.Staff{}, t.store.logError("staff_lock_failed", err, "staff_id", id)
	}
	return staffFromRow(row), nil
}

func (t *sqlTx) GetAssignment(id string) (models.Assignment, error) {
	var row database.Assignment
	if err := t.db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ledger.NotFound(ledger.EntityAssignment, id)
		}
		return models.Assignment{}, t.store.logError("assignment_get_failed", err, "assignment_id", id)
	}
	return assignmentFromRow(row), nil
}

func (t *sqlTx) HasAssignment(shiftID, staffID string) (bool, error) {
	ok, err := hasAssignment(t.db, shiftID, staffID)
	if err != nil {
		return false, t.store.logError("assignment_exists_failed", err, "shift_id", shiftID, "staff_id", staffID)
	}
	return ok, nil
}

func (t *sqlTx) BookingsOn(staffID, date string) ([]models.Booking, error) {
	var rows []struct {
		AssignmentID string
		ShiftID      string
		TimeSlot     string
	}
	err := t.db.Table("assignments AS a").
		Select("a.id AS assignment_id, s.id AS shift_id, s.time_slot AS time_slot").
		Joins("JOIN shifts AS s ON s.id = a.shift_id").
		Where("a.staff_id = ? AND s.date = ?", staffID, date).
		Scan(&rows).Error
	if err != nil {
		return nil, t.store.logError("bookings_lookup_failed", err, "staff_id", staffID, "date", date)
	}
	out := make([]models.Booking, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Booking{
			AssignmentID: row.AssignmentID,
			ShiftID:      row.ShiftID,
			TimeSlot:     models.TimeSlot(row.TimeSlot),
		})
	}
	return out, nil
}

func (t *sqlTx) InsertAssignment(a models.Assignment) error {
	row := assignmentToRow(a)
	if err := t.db.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ledger.Conflict(ledger.ReasonAlreadyAssigned)
		}
		return t.store.logError("assignment_insert_failed", err,
			"shift_id", a.ShiftID,
			"staff_id", a.StaffID,
		)
	}
	return nil
}

func (t *sqlTx) DeleteAssignment(id string) error {
	res := t.db.Where("id = ?", id).Delete(&database.Assignment{})
	if res.Error != nil {
		return t.store.logError("assignment_delete_failed", res.Error, "assignment_id", id)
	}
	if res.RowsAffected == 0 {
		return ledger.NotFound(ledger.EntityAssignment, id)
	}
	return nil
}

func (t *sqlTx) DeleteAttendance(shiftID, staffID string) error {
	err := t.db.Where("shift_id = ? AND staff_id = ?", shiftID, staffID).Delete(&database.Attendance{}).Error
	if err != nil {
		return t.store.logError("attendance_delete_failed", err, "shift_id", shiftID, "staff_id", staffID)
	}
	return nil
}

func (t *sqlTx) AdjustAssignedCount(shiftID string, delta int) error {
	res := t.db.Model(&database.Shift{}).
		Where("id = ?", shiftID).
		Updates(map[string]any{
			"assigned_count": gorm.Expr("assigned_count + ?", delta),
			"updated_at":     t.store.now(),
		})
	if res.Error != nil {
		return t.store.logError("shift_count_update_failed", res.Error, "shift_id", shiftID)
	}
	if res.RowsAffected == 0 {
		return ledger.NotFound(ledger.EntityShift, shiftID)
	}
	return nil
}

// isUniqueViolation recognises duplicate-key errors from Postgres and SQLite
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ ledger.Store = (*Store)(nil)
