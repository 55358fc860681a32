// Package roster validates shift and staff input and holds the ordering
// rules shared by every store implementation.
package roster

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/arnavshah/staff-scheduler-api/pkg/ledger"
	"github.com/arnavshah/staff-scheduler-api/pkg/models"
)

// Staff sort keys accepted by list-staff
const (
	SortByName       = "name"
	SortByRole       = "role"
	SortByDepartment = "department"
	SortByCode       = "code"
)

// MaxCapacity is the largest headcount a single shift may request
const MaxCapacity = 100

// ValidDate reports whether s is a YYYY-MM-DD calendar date
func ValidDate(s string) bool {
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}

// NormalizeShift trims and checks a shift creation request
func NormalizeShift(in models.NewShift) (models.NewShift, error) {
	in.Date = strings.TrimSpace(in.Date)
	in.Ward = strings.TrimSpace(in.Ward)
	if !ValidDate(in.Date) {
		return in, ledger.Invalid("date", "must be a YYYY-MM-DD date")
	}
	if !in.TimeSlot.Valid() {
		return in, ledger.Invalid("timeSlot", "must be one of Morning, Afternoon, Night")
	}
	if in.Capacity <= 0 {
		return in, ledger.Invalid("capacity", "must be a positive integer")
	}
	if in.Capacity > MaxCapacity {
		return in, ledger.Invalid("capacity", "must not exceed 100")
	}
	return in, nil
}

// BuildShift turns a validated request into a stored shift
func BuildShift(in models.NewShift, id string, now time.Time) models.Shift {
	start, end := in.TimeSlot.Window()
	return models.Shift{
		ID:        id,
		Date:      in.Date,
		TimeSlot:  in.TimeSlot,
		StartTime: start,
		EndTime:   end,
		Ward:      in.Ward,
		Capacity:  in.Capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NormalizeStaff trims and checks a staff creation request
func NormalizeStaff(in models.NewStaff) (models.NewStaff, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	in.Contact = strings.TrimSpace(in.Contact)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Department = strings.TrimSpace(in.Department)
	in.Role = models.StaffRole(strings.ToUpper(strings.TrimSpace(string(in.Role))))
	if in.Name == "" {
		return in, ledger.Invalid("name", "is required")
	}
	if !in.Role.Valid() {
		return in, ledger.Invalid("role", "must be one of NURSE, DOCTOR, TECHNICIAN, ADMIN, OTHER")
	}
	if in.PreferredSlot != "" && !in.PreferredSlot.Valid() {
		return in, ledger.Invalid("preferredSlot", "must be one of Morning, Afternoon, Night")
	}
	return in, nil
}

// BuildStaff turns a validated request into a stored, active staff member.
// A missing code is derived from the id.
func BuildStaff(in models.NewStaff, id string, now time.Time) models.Staff {
	code := in.Code
	if code == "" {
		compact := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
		if len(compact) > 8 {
			compact = compact[:8]
		}
		code = "S-" + compact
	}
	return models.Staff{
		ID:            id,
		Code:          code,
		Name:          in.Name,
		Role:          in.Role,
		Contact:       in.Contact,
		Email:         in.Email,
		Department:    in.Department,
		PreferredSlot: in.PreferredSlot,
		Active:        true,
		CreatedAt:     now,
	}
}

// NormalizeShiftFilter checks the optional list-shifts filters
func NormalizeShiftFilter(f models.ShiftFilter) (models.ShiftFilter, error) {
	f.Date = strings.TrimSpace(f.Date)
	f.StaffID = strings.TrimSpace(f.StaffID)
	f.Ward = strings.TrimSpace(f.Ward)
	if f.Date != "" && !ValidDate(f.Date) {
		return f, ledger.Invalid("date", "must be a YYYY-MM-DD date")
	}
	if f.TimeSlot != "" && !f.TimeSlot.Valid() {
		return f, ledger.Invalid("timeSlot", "must be one of Morning, Afternoon, Night")
	}
	return f, nil
}

// NormalizeStaffFilter checks the optional list-staff filters and sort
func NormalizeStaffFilter(f models.StaffFilter) (models.StaffFilter, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.Department = strings.TrimSpace(f.Department)
	f.Role = models.StaffRole(strings.ToUpper(strings.TrimSpace(string(f.Role))))
	f.SortBy = strings.ToLower(strings.TrimSpace(f.SortBy))
	f.SortOrder = strings.ToLower(strings.TrimSpace(f.SortOrder))

	if f.Role != "" && !f.Role.Valid() {
		return f, ledger.Invalid("role", "must be one of NURSE, DOCTOR, TECHNICIAN, ADMIN, OTHER")
	}
	switch f.SortBy {
	case "", SortByName, SortByRole, SortByDepartment, SortByCode:
	default:
		return f, ledger.Invalid("sortBy", "must be one of name, role, department, code")
	}
	switch f.SortOrder {
	case "":
		f.SortOrder = "asc"
	case "asc", "desc":
	default:
		return f, ledger.Invalid("sortOrder", "must be asc or desc")
	}
	return f, nil
}

// MatchStaff applies the filter's predicates to one staff member
func MatchStaff(s models.Staff, f models.StaffFilter) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Role != "" && s.Role != f.Role {
		return false
	}
	if f.Department != "" && !strings.EqualFold(s.Department, f.Department) {
		return false
	}
	return true
}

// SortStaff orders items in place by the filter's sort key. Without a key
// the existing order is kept.
func SortStaff(items []models.Staff, f models.StaffFilter) {
	if f.SortBy == "" {
		return
	}
	key := func(s models.Staff) string {
		switch f.SortBy {
		case SortByRole:
			return string(s.Role)
		case SortByDepartment:
			return strings.ToLower(s.Department)
		case SortByCode:
			return s.Code
		default:
			return strings.ToLower(s.Name)
		}
	}
	desc := f.SortOrder == "desc"
	sort.SliceStable(items, func(i, j int) bool {
		a, b := key(items[i]), key(items[j])
		if desc {
			return a > b
		}
		return a < b
	})
}

// SortShifts orders shifts by date, then slot, keeping creation order for ties
func SortShifts(items []models.Shift) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date < items[j].Date
		}
		return items[i].TimeSlot.Order() < items[j].TimeSlot.Order()
	})
}

// AttendanceRate is the share of recorded attendance that was present or
// late, as a percentage with two decimals. No records gives 0.
func AttendanceRate(attended, recorded int) float64 {
	if recorded == 0 {
		return 0
	}
	return math.Round(float64(attended)/float64(recorded)*10000) / 100
}
