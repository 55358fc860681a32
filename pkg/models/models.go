package models

import "time"

// DateLayout is the calendar date format used for shift dates
const DateLayout = "2006-01-02"

// TimeSlot is one of the fixed blocks a shift can occupy
type TimeSlot string

const (
	SlotMorning   TimeSlot = "Morning"
	SlotAfternoon TimeSlot = "Afternoon"
	SlotNight     TimeSlot = "Night"
)

type slotSpec struct {
	start string
	end   string
	hours int
	order int
}

var slotSpecs = map[TimeSlot]slotSpec{
	SlotMorning:   {start: "08:00", end: "12:00", hours: 4, order: 0},
	SlotAfternoon: {start: "12:00", end: "16:00", hours: 4, order: 1},
	SlotNight:     {start: "16:00", end: "20:00", hours: 4, order: 2},
}

// TimeSlots lists every slot in the order they occur during a day
func TimeSlots() []TimeSlot {
	return []TimeSlot{SlotMorning, SlotAfternoon, SlotNight}
}

// Valid reports whether the slot is part of the enumeration
func (s TimeSlot) Valid() bool {
	_, ok := slotSpecs[s]
	return ok
}

// Hours returns the fixed duration of the slot
func (s TimeSlot) Hours() int {
	return slotSpecs[s].hours
}

// Window returns the HH:mm start and end of the slot
func (s TimeSlot) Window() (string, string) {
	spec := slotSpecs[s]
	return spec.start, spec.end
}

// Order is the position of the slot within a day, used for sorting
func (s TimeSlot) Order() int {
	spec, ok := slotSpecs[s]
	if !ok {
		return len(slotSpecs)
	}
	return spec.order
}

// StaffRole is the job role of a staff member
type StaffRole string

const (
	RoleNurse      StaffRole = "NURSE"
	RoleDoctor     StaffRole = "DOCTOR"
	RoleTechnician StaffRole = "TECHNICIAN"
	RoleAdmin      StaffRole = "ADMIN"
	RoleOther      StaffRole = "OTHER"
)

// Valid reports whether the role is known
func (r StaffRole) Valid() bool {
	switch r {
	case RoleNurse, RoleDoctor, RoleTechnician, RoleAdmin, RoleOther:
		return true
	}
	return false
}

// AttendanceStatus is the recorded presence of a staff member on a shift
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "PRESENT"
	StatusAbsent  AttendanceStatus = "ABSENT"
	StatusLate    AttendanceStatus = "LATE"
	StatusOnLeave AttendanceStatus = "ON_LEAVE"
)

// Valid reports whether the status is known
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusOnLeave:
		return true
	}
	return false
}

// Shift represents a block of work on a date that needs staffing
type Shift struct {
	ID            string    `json:"id"`
	Date          string    `json:"date"`
	TimeSlot      TimeSlot  `json:"timeSlot"`
	StartTime     string    `json:"startTime"`
	EndTime       string    `json:"endTime"`
	Ward          string    `json:"ward,omitempty"`
	Capacity      int       `json:"capacity"`
	AssignedCount int       `json:"assignedCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Hours is the duration of the shift's slot
func (s Shift) Hours() int {
	return s.TimeSlot.Hours()
}

// Open is the remaining capacity of the shift
func (s Shift) Open() int {
	if s.AssignedCount >= s.Capacity {
		return 0
	}
	return s.Capacity - s.AssignedCount
}

// Staff represents a person who can be placed on shifts
type Staff struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Role          StaffRole `json:"role"`
	Contact       string    `json:"contact,omitempty"`
	Email         string    `json:"email,omitempty"`
	Department    string    `json:"department,omitempty"`
	PreferredSlot TimeSlot  `json:"preferredSlot,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Assignment represents a staff-shift pairing
type Assignment struct {
	ID        string    `json:"id"`
	ShiftID   string    `json:"shiftId"`
	StaffID   string    `json:"staffId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Booking is an assignment seen from the staff member's side for one day
type Booking struct {
	AssignmentID string
	ShiftID      string
	TimeSlot     TimeSlot
}

// AttendanceRecord is the presence recorded for one staff member on one shift
type AttendanceRecord struct {
	ID         string           `json:"id"`
	ShiftID    string           `json:"shiftId"`
	StaffID    string           `json:"staffId"`
	Status     AttendanceStatus `json:"status"`
	Comment    string           `json:"comment,omitempty"`
	RecordedAt time.Time        `json:"recordedAt"`
	RecordedBy string           `json:"recordedBy"`
}

// ShiftFilter narrows a shift listing; empty fields match everything
type ShiftFilter struct {
	Date     string
	StaffID  string
	Ward     string
	TimeSlot TimeSlot
}

// StaffFilter narrows and orders a staff listing
type StaffFilter struct {
	Name       string
	Role       StaffRole
	Department string
	SortBy     string
	SortOrder  string
}

// NewShift is the input for creating a shift
type NewShift struct {
	Date     string   `json:"date" yaml:"date" binding:"required"`
	TimeSlot TimeSlot `json:"timeSlot" yaml:"timeSlot" binding:"required"`
	Ward     string   `json:"ward" yaml:"ward"`
	Capacity int      `json:"capacity" yaml:"capacity" binding:"required"`
}

// NewStaff is the input for creating a staff member
type NewStaff struct {
	Code          string    `json:"code" yaml:"code"`
	Name          string    `json:"name" yaml:"name" binding:"required"`
	Role          StaffRole `json:"role" yaml:"role" binding:"required"`
	Contact       string    `json:"contact" yaml:"contact"`
	Email         string    `json:"email" yaml:"email"`
	Department    string    `json:"department" yaml:"department"`
	PreferredSlot TimeSlot  `json:"preferredSlot" yaml:"preferredSlot"`
}

// Summary is the dashboard view over the whole roster
type Summary struct {
	TotalStaff     int     `json:"totalStaff"`
	ActiveStaff    int     `json:"activeStaff"`
	TotalShifts    int     `json:"totalShifts"`
	AssignedToday  int     `json:"assignedToday"`
	OpenToday      int     `json:"openToday"`
	AttendanceRate float64 `json:"attendanceRate"`
}
