package handlers

import (
	"net/http"
	"time"

	"github.com/arnavshah/staff-scheduler-api/pkg/attendance"
	"github.com/arnavshah/staff-scheduler-api/pkg/ledger"
	"github.com/arnavshah/staff-scheduler-api/pkg/models"
	"github.com/gin-gonic/gin"
)

// MarkAttendance records presence for an assigned staff member
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req struct {
		ShiftID string `json:"shiftId"`
		StaffID string `json:"staffId"`
		Status  string `json:"status"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rec, err := h.Attendance.Record(c.Request.Context(), attendance.Mark{
		ShiftID:    req.ShiftID,
		StaffID:    req.StaffID,
		Status:     req.Status,
		Comment:    req.Comment,
		RecordedBy: c.GetString(ctxUsername),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": rec})
}

// ListAttendance returns the attendance roster of ?shiftId=
func (h *Handler) ListAttendance(c *gin.Context) {
	shiftID := c.Query("shiftId")
	if shiftID == "" {
		h.respondError(c, ledger.Invalid("shiftId", "is required"))
		return
	}
	records, err := h.Attendance.ListForShift(c.Request.Context(), shiftID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shiftId": shiftID, "attendance": records})
}

// Dashboard returns roster totals for ?date=, defaulting to today (UTC)
func (h *Handler) Dashboard(c *gin.Context) {
	date := c.DefaultQuery("date", time.Now().UTC().Format(models.DateLayout))
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		h.respondError(c, ledger.Invalid("date", "must be a YYYY-MM-DD date"))
		return
	}
	summary, err := h.Roster.Summary(c.Request.Context(), date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "summary": summary})
}

// Autofill fills the open capacity of a date's shifts
func (h *Handler) Autofill(c *gin.Context) {
	var req struct {
		Date string `json:"date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Planner.Autofill(c.Request.Context(), req.Date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Set(ctxPlacements, len(res.Assignments))
	c.JSON(http.StatusOK, res)
}
