package handlers

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"

	"github.com/arnavshah/staff-scheduler-api/pkg/models"
	"github.com/arnavshah/staff-scheduler-api/pkg/pagination"
	"github.com/arnavshah/staff-scheduler-api/pkg/roster"
	"github.com/gin-gonic/gin"
)

func pageQuery(c *gin.Context) pagination.Query {
	return pagination.ParseQuery(c.Query("page"), c.Query("pageSize"), pagination.DefaultPageSize)
}

func shiftFilter(c *gin.Context) (models.ShiftFilter, error) {
	return roster.NormalizeShiftFilter(models.ShiftFilter{
		Date:     c.Query("date"),
		StaffID:  c.Query("staffId"),
		Ward:     c.Query("ward"),
		TimeSlot: models.TimeSlot(strings.TrimSpace(c.Query("timeSlot"))),
	})
}

// CreateShift adds a shift
func (h *Handler) CreateShift(c *gin.Context) {
	var in models.NewShift
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	shift, err := h.Roster.CreateShift(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"shift": shift})
}

// GetShift returns one shift
func (h *Handler) GetShift(c *gin.Context) {
	shift, err := h.Roster.GetShift(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shift": shift})
}

// ListShifts returns a page of shifts ordered by date and slot
func (h *Handler) ListShifts(c *gin.Context) {
	filter, err := shiftFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	shifts, err := h.Roster.ListShifts(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Paginate(shifts, pageQuery(c)))
}

// ExportShiftsCSV writes one row per placement on the matching shifts
func (h *Handler) ExportShiftsCSV(c *gin.Context) {
	filter, err := shiftFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	shifts, err := h.Roster.ListShifts(ctx, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	staff, err := h.Roster.ListStaff(ctx, models.StaffFilter{})
	if err != nil {
		h.respondError(c, err)
		return
	}
	byID := make(map[string]models.Staff, len(staff))
	for _, s := range staff {
		byID[s.ID] = s
	}

	var out strings.Builder
	writer := csv.NewWriter(&out)
	writer.Write([]string{"shift_id", "date", "time_slot", "start", "end", "ward", "staff_id", "staff_code", "staff_name", "duration_hours"})
	for _, sh := range shifts {
		assignments, err := h.Ledger.ListAssignments(ctx, sh.ID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		for _, a := range assignments {
			member := byID[a.StaffID]
			writer.Write([]string{
				sh.ID,
				sh.Date,
				string(sh.TimeSlot),
				sh.StartTime,
				sh.EndTime,
				sh.Ward,
				a.StaffID,
				member.Code,
				member.Name,
				strconv.Itoa(sh.Hours()),
			})
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="roster.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(out.String()))
}

// CreateStaff adds a staff member
func (h *Handler) CreateStaff(c *gin.Context) {
	var in models.NewStaff
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	member, err := h.Roster.CreateStaff(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"staff": member})
}

// GetStaff returns one staff member
func (h *Handler) GetStaff(c *gin.Context) {
	member, err := h.Roster.GetStaff(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"staff": member})
}

// ListStaff returns a filtered, sorted page of staff
func (h *Handler) ListStaff(c *gin.Context) {
	filter, err := roster.NormalizeStaffFilter(models.StaffFilter{
		Name:       c.Query("name"),
		Role:       models.StaffRole(c.Query("role")),
		Department: c.Query("department"),
		SortBy:     c.Query("sortBy"),
		SortOrder:  c.Query("sortOrder"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	staff, err := h.Roster.ListStaff(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Paginate(staff, pageQuery(c)))
}

// UpdateStaff toggles whether a staff member can take new shifts. Existing
// assignments are left in place.
func (h *Handler) UpdateStaff(c *gin.Context) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Active == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "active is required", "field": "active"})
		return
	}
	member, err := h.Roster.SetStaffActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"staff": member})
}
