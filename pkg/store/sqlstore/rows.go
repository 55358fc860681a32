package sqlstore

import (
	"github.com/arnavshah/staff-scheduler-api/pkg/database"
	"github.com/arnavshah/staff-scheduler-api/pkg/models"
)

func shiftFromRow(row database.Shift) models.Shift {
	slot := models.TimeSlot(row.TimeSlot)
	start, end := slot.Window()
	return models.Shift{
		ID:            row.ID,
		Date:          row.Date,
		TimeSlot:      slot,
		StartTime:     start,
		EndTime:       end,
		Ward:          row.Ward,
		Capacity:      row.Capacity,
		AssignedCount: row.AssignedCount,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

func shiftToRow(s models.Shift) database.Shift {
	return database.Shift{
		ID:            s.ID,
		Date:          s.Date,
		TimeSlot:      string(s.TimeSlot),
		Ward:          s.Ward,
		Capacity:      s.Capacity,
		AssignedCount: s.AssignedCount,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func staffFromRow(row database.Staff) models.Staff {
	return models.Staff{
		ID:            row.ID,
		Code:          row.Code,
		Name:          row.Name,
		Role:          models.StaffRole(row.Role),
		Contact:       row.Contact,
		Email:         row.Email,
		Department:    row.Department,
		PreferredSlot: models.TimeSlot(row.PreferredSlot),
		Active:        row.Active,
		CreatedAt:     row.CreatedAt.UTC(),
	}
}

func staffToRow(s models.Staff) database.Staff {
	return database.Staff{
		ID:            s.ID,
		Code:          s.Code,
		Name:          s.Name,
		Role:          string(s.Role),
		Contact:       s.Contact,
		Email:         s.Email,
		Department:    s.Department,
		PreferredSlot: string(s.PreferredSlot),
		Active:        s.Active,
		CreatedAt:     s.CreatedAt,
	}
}

func assignmentFromRow(row database.Assignment) models.Assignment {
	return models.Assignment{
		ID:        row.ID,
		ShiftID:   row.ShiftID,
		StaffID:   row.StaffID,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func assignmentToRow(a models.Assignment) database.Assignment {
	return database.Assignment{
		ID:        a.ID,
		ShiftID:   a.ShiftID,
		StaffID:   a.StaffID,
		CreatedAt: a.CreatedAt,
	}
}

func attendanceFromRow(row database.Attendance) models.AttendanceRecord {
	return models.AttendanceRecord{
		ID:         row.ID,
		ShiftID:    row.ShiftID,
		StaffID:    row.StaffID,
		Status:     models.AttendanceStatus(row.Status),
		Comment:    row.Comment,
		RecordedAt: row.RecordedAt.UTC(),
		RecordedBy: row.RecordedBy,
	}
}

func attendanceToRow(rec models.AttendanceRecord) database.Attendance {
	return database.Attendance{
		ID:         rec.ID,
		ShiftID:    rec.ShiftID,
		StaffID:    rec.StaffID,
		Status:     string(rec.Status),
		Comment:    rec.Comment,
		RecordedAt: rec.RecordedAt,
		RecordedBy: rec.RecordedBy,
	}
}
