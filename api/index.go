package handler

import (
	"context"
	"net/http"
	"os"
	"sync"

	"github.com/arnavshah/staff-scheduler-api/pkg/config"
	"github.com/arnavshah/staff-scheduler-api/pkg/logging"
	"github.com/arnavshah/staff-scheduler-api/pkg/server"
	"github.com/gin-gonic/gin"
)

var (
	once    sync.Once
	engine  http.Handler
	initErr error
)

func setup() {
	// Load .env if it exists (for local testing with vercel dev)
	config.LoadDotEnv()
	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Load()
	logger := logging.New(os.Stdout, "json", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err.Error())
		initErr = err
		return
	}

	app, err := server.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err.Error())
		initErr = err
		return
	}
	engine = app.Engine
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	once.Do(setup)
	if initErr != nil {
		http.Error(w, `{"error":"service unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	engine.ServeHTTP(w, req)
}
