package handlers

import (
	"net/http"
	"time"

	"github.com/arnavshah/staff-scheduler-api/pkg/database"
	"github.com/arnavshah/staff-scheduler-api/pkg/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordUsage counts one request and its placements against the key for
// today using a single upsert. Failures are logged, never surfaced.
func (h *Handler) RecordUsage(c *gin.Context, apiKey *database.APIKey, placements int) {
	if h.DB == nil || apiKey == nil {
		return
	}
	today := time.Now().UTC().Format(models.DateLayout)

	// Use OnConflict for a single-query upsert (supported by both Postgres and SQLite)
	err := h.DB.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count": gorm.Expr("request_count + ?", 1),
			"assignments":   gorm.Expr("assignments + ?", placements),
		}),
	}).Create(&database.APIUsage{
		KeyID:        apiKey.ID,
		Date:         today,
		RequestCount: 1,
		Assignments:  placements,
	}).Error
	if err != nil {
		h.logger().Warn("record usage failed", "key_id", apiKey.ID, "error", err.Error())
	}
}

func (h *Handler) usageHistory(c *gin.Context, keyID uint) ([]database.APIUsage, error) {
	var usage []database.APIUsage
	err := h.DB.WithContext(c.Request.Context()).
		Where("key_id = ?", keyID).
		Order("date desc").
		Limit(30).
		Find(&usage).Error
	return usage, err
}

// GetMyUsage returns usage stats for the authenticated API key
func (h *Handler) GetMyUsage(c *gin.Context) {
	apiKeyRaw, exists := c.Get(ctxAPIKey)
	if !exists {
		c.JSON(http.StatusForbidden, gin.H{"error": "usage is only tracked for API keys"})
		return
	}
	apiKey := apiKeyRaw.(*database.APIKey)

	usage, err := h.usageHistory(c, apiKey.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Calculate totals
	var totalRequests, totalAssignments int64
	for _, u := range usage {
		totalRequests += int64(u.RequestCount)
		totalAssignments += int64(u.Assignments)
	}

	c.JSON(http.StatusOK, gin.H{
		"keyName":      apiKey.Name,
		"rateLimit":    apiKey.RateLimit,
		"usageHistory": usage,
		"totals": gin.H{
			"requests":    totalRequests,
			"assignments": totalAssignments,
		},
	})
}
