package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type assignRequest struct {
	ShiftID string `json:"shiftId"`
	StaffID string `json:"staffId"`
}

// Assign places a staff member on a shift
func (h *Handler) Assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	assignment, err := h.Ledger.Assign(c.Request.Context(), req.StaffID, req.ShiftID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Set(ctxPlacements, 1)
	c.JSON(http.StatusCreated, gin.H{"assignment": assignment})
}

// ListAssignments returns the assignments of the shift named by ?shiftId=
func (h *Handler) ListAssignments(c *gin.Context) {
	assignments, err := h.Ledger.ListAssignments(c.Request.Context(), c.Query("shiftId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}

// Unassign removes an assignment named in the path or, for clients that
// send DELETE with a body, by assignmentId in the JSON payload.
func (h *Handler) Unassign(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		var req struct {
			AssignmentID string `json:"assignmentId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		id = req.AssignmentID
	}

	if _, err := h.Ledger.Unassign(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
