package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/arnavshah/staff-scheduler-api/pkg/auth"
	"github.com/arnavshah/staff-scheduler-api/pkg/database"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func staffIDOf(u database.User) string {
	if u.StaffID == nil {
		return ""
	}
	return *u.StaffID
}

// Register creates a user account. Only an admin may hand out the ADMIN or
// MANAGER roles; anonymous callers always get STAFF.
func (h *Handler) Register(c *gin.Context) {
	var req auth.Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if role := strings.ToUpper(strings.TrimSpace(req.Role)); role != "" && role != auth.RoleStaff {
		claims, err := h.Tokens.Verify(bearer(c))
		if err != nil || claims.Role != auth.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "only an admin can assign that role"})
			return
		}
	}

	user, err := auth.Register(c.Request.Context(), h.DB, req)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, auth.ErrInvalidRole), errors.Is(err, auth.ErrWeakCredentials):
		badRequest(c, err)
		return
	case err != nil:
		h.respondError(c, err)
		return
	}

	token, err := h.Tokens.Create(user.Username, user.Role, staffIDOf(user))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "access_token": token, "token_type": "bearer"})
}

// Login handles user login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := auth.Authenticate(c.Request.Context(), h.DB, req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	token, err := h.Tokens.Create(user.Username, user.Role, staffIDOf(user))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer", "user": user})
}

// Me returns the authenticated principal
func (h *Handler) Me(c *gin.Context) {
	if _, ok := c.Get(ctxAPIKey); ok {
		c.JSON(http.StatusOK, gin.H{
			"username": c.GetString(ctxUsername),
			"role":     c.GetString(ctxRole),
			"apiKey":   true,
		})
		return
	}
	user, err := auth.FindUser(c.Request.Context(), h.DB, c.GetString(ctxUsername))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user no longer exists"})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
