package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/arnavshah/staff-scheduler-api/pkg/seed"
	"github.com/gin-gonic/gin"
)

const maxRosterBytes = 1 << 20

func readRoster(c *gin.Context) (seed.Roster, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRosterBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"valid": false, "error": "roster exceeds 1 MiB"})
			return seed.Roster{}, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": err.Error()})
		return seed.Roster{}, false
	}
	// YAML is a superset of JSON, so both content types parse here.
	r, err := seed.Parse(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": err.Error()})
		return seed.Roster{}, false
	}
	return r, true
}

// ValidateRoster checks a roster file without writing anything
func (h *Handler) ValidateRoster(c *gin.Context) {
	r, ok := readRoster(c)
	if !ok {
		return
	}

	if len(r.Staff) == 0 && len(r.Shifts) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": "At least one staff member or shift is required",
		})
		return
	}

	if problems := r.Validate(); len(problems) > 0 {
		c.JSON(http.StatusOK, gin.H{"valid": false, "errors": problems})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"stats": gin.H{
			"staffCount": len(r.Staff),
			"shiftCount": len(r.Shifts),
		},
	})
}

// ImportRoster validates and applies a roster file
func (h *Handler) ImportRoster(c *gin.Context) {
	r, ok := readRoster(c)
	if !ok {
		return
	}
	if problems := r.Validate(); len(problems) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "errors": problems})
		return
	}
	stats, err := seed.Apply(c.Request.Context(), h.Roster, r)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "stats": stats})
}
