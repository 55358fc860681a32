package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/arnavshah/staff-scheduler-api/pkg/attendance"
	"github.com/arnavshah/staff-scheduler-api/pkg/auth"
	"github.com/arnavshah/staff-scheduler-api/pkg/ledger"
	"github.com/arnavshah/staff-scheduler-api/pkg/models"
	"github.com/arnavshah/staff-scheduler-api/pkg/scheduler"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Assignments is the placement API the handlers drive
type Assignments interface {
	Assign(ctx context.Context, staffID, shiftID string) (models.Assignment, error)
	ListAssignments(ctx context.Context, shiftID string) ([]models.Assignment, error)
	Unassign(ctx context.Context, assignmentID string) (models.Assignment, error)
}

// Roster stores shifts and staff
type Roster interface {
	CreateShift(ctx context.Context, in models.NewShift) (models.Shift, error)
	GetShift(ctx context.Context, id string) (models.Shift, error)
	ListShifts(ctx context.Context, filter models.ShiftFilter) ([]models.Shift, error)
	CreateStaff(ctx context.Context, in models.NewStaff) (models.Staff, error)
	GetStaff(ctx context.Context, id string) (models.Staff, error)
	ListStaff(ctx context.Context, filter models.StaffFilter) ([]models.Staff, error)
	SetStaffActive(ctx context.Context, id string, active bool) (models.Staff, error)
	Summary(ctx context.Context, date string) (models.Summary, error)
}

// Pinger reports whether a backing service is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler contains dependencies for the route handlers
type Handler struct {
	Ledger     Assignments
	Roster     Roster
	Attendance *attendance.Log
	Planner    *scheduler.Planner

	// DB holds users, API keys and usage. It may be the same database the
	// roster lives in.
	DB        *gorm.DB
	Tokens    *auth.Tokens
	APISecret string
	Limiter   *Limiter
	Pingers   map[string]Pinger
	Logger    *slog.Logger
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// respondError maps domain errors onto status codes. Anything unrecognised
// is logged and reported as a 500 without leaking the cause.
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		notFound   *ledger.NotFoundError
		conflict   *ledger.ConflictError
		validation *ledger.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error(), "entity": notFound.Entity})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error(), "reason": conflict.Reason})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "field": validation.Field})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled"})
	default:
		h.logger().Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err.Error(),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
