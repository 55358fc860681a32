// Package server builds the gin engine shared by the long-running server and
// the serverless entry point.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/arnavshah/staff-scheduler-api/pkg/auth"
	"github.com/arnavshah/staff-scheduler-api/pkg/handlers"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const (
	serviceName = "Staff Scheduler API"
	version     = "3.0.0"
)

// Options tune the router
type Options struct {
	CORSOrigins []string
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
}

// NewRouter wires every route onto a fresh gin engine
func NewRouter(h *handlers.Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": serviceName,
			"version": version,
		})
	})
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	authGroup := r.Group("/auth")
	authGroup.Use(h.RateLimitMiddleware())
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}
	r.GET("/auth/me", h.AuthMiddleware(), h.Me)

	// Admin Endpoints
	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware(), handlers.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.PUT("/keys/:id", h.UpdateKeyLimit)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/keys/:id/usage", h.GetUsage)
	}

	api := r.Group("/api")
	api.Use(h.AuthMiddleware(), h.RateLimitMiddleware())
	writers := handlers.RequireRole(auth.RoleAdmin, auth.RoleManager)
	{
		api.GET("/assignments", h.ListAssignments)
		api.POST("/assignments", writers, h.Assign)
		api.DELETE("/assignments", writers, h.Unassign)
		api.DELETE("/assignments/:id", writers, h.Unassign)

		api.GET("/shifts", h.ListShifts)
		api.GET("/shifts/export", h.ExportShiftsCSV)
		api.GET("/shifts/:id", h.GetShift)
		api.POST("/shifts", writers, h.CreateShift)
		api.POST("/shifts/autofill", writers, h.Autofill)

		api.GET("/staff", h.ListStaff)
		api.GET("/staff/:id", h.GetStaff)
		api.POST("/staff", writers, h.CreateStaff)
		api.PATCH("/staff/:id", writers, h.UpdateStaff)

		api.GET("/attendance", h.ListAttendance)
		api.POST("/attendance", writers, h.MarkAttendance)

		api.GET("/dashboard", h.Dashboard)

		api.POST("/roster/validate", writers, h.ValidateRoster)
		api.POST("/roster/import", writers, h.ImportRoster)

		api.GET("/usage", h.GetMyUsage)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// RedisPinger adapts a redis client to the health check
type RedisPinger struct {
	Client redis.UniversalClient
}

func (p RedisPinger) PingContext(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
