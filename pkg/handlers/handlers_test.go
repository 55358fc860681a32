package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/arnavshah/staff-scheduler-api/pkg/ledger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(h gin.HandlerFunc) *httptest.ResponseRecorder {
	r := gin.New()
	r.GET("/", h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestRespondErrorMapping(t *testing.T) {
	h := &Handler{}
	tests := []struct {
		err   error
		code  int
		key   string
		value string
	}{
		{ledger.NotFound(ledger.EntityShift, "S1"), http.StatusNotFound, "entity", "shift"},
		{fmt.Errorf("assign: %w", ledger.Conflict(ledger.ReasonShiftFull)), http.StatusConflict, "reason", "shift_full"},
		{ledger.Invalid("staffId", "is required"), http.StatusBadRequest, "field", "staffId"},
		{context.Canceled, http.StatusServiceUnavailable, "error", "request cancelled"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "error", "internal server error"},
	}
	for _, tt := range tests {
		w := serve(func(c *gin.Context) { h.respondError(c, tt.err) })
		assert.Equal(t, tt.code, w.Code, tt.err.Error())
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tt.value, body[tt.key])
	}
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(1, 2)
	assert.True(t, l.Allow("ip:1", 0))
	assert.True(t, l.Allow("ip:1", 0))
	assert.False(t, l.Allow("ip:1", 0))
	assert.True(t, l.Allow("ip:2", 0), "buckets are per key")

	assert.True(t, l.Allow(keyBucket(7), 1))
	assert.False(t, l.Allow(keyBucket(7), 1))
	l.Forget(keyBucket(7))
	assert.True(t, l.Allow(keyBucket(7), 1))

	var disabled *Limiter
	assert.True(t, disabled.Allow("x", 0))
	assert.True(t, NewLimiter(0, 0).Allow("x", 1))
}

func TestLimiterDropsIdleBuckets(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	l := NewLimiter(1, 1)
	l.now = func() time.Time { return clock }
	l.lastSweep.Store(clock.UnixNano())

	for i := 0; i < 50; i++ {
		assert.True(t, l.Allow(fmt.Sprintf("ip:%d", i), 0))
	}
	assert.Equal(t, 50, l.buckets.Size())

	clock = clock.Add(bucketIdle / 2)
	assert.True(t, l.Allow("ip:0", 0), "refilled while quiet")

	clock = clock.Add(bucketIdle/2 + time.Second)
	assert.True(t, l.Allow("ip:new", 0))
	assert.Equal(t, 2, l.buckets.Size(), "only recently seen clients keep a bucket")
	_, kept := l.buckets.Load("ip:0")
	assert.True(t, kept)

	l.Sweep(clock.Add(2 * bucketIdle))
	assert.Zero(t, l.buckets.Size())
}

func TestHealthReportsFailingDependency(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	h := &Handler{Pingers: map[string]Pinger{"database": db}}
	w := serve(h.Health)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "connection refused", body.Checks["database"])
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectPing()
	w = serve(h.Health)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		c.Set(ctxRole, c.Query("role"))
		c.Next()
	}, RequireRole("ADMIN", "MANAGER"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for role, code := range map[string]int{"ADMIN": http.StatusNoContent, "MANAGER": http.StatusNoContent, "STAFF": http.StatusForbidden, "": http.StatusForbidden} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?role="+role, nil))
		assert.Equal(t, code, w.Code, role)
	}
}
