package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/arnavshah/staff-scheduler-api/pkg/auth"
	"github.com/arnavshah/staff-scheduler-api/pkg/database"
	"github.com/gin-gonic/gin"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"
)

// Context keys set by the auth middleware
const (
	ctxUsername   = "username"
	ctxRole       = "role"
	ctxStaffID    = "staffID"
	ctxAPIKey     = "apiKey"
	ctxPlacements = "placements"
)

func bearer(c *gin.Context) string {
	token := c.GetHeader("Authorization")
	// Strip "Bearer " if present
	if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
		token = token[7:]
	}
	return strings.TrimSpace(token)
}

// AuthMiddleware accepts either a session token or an API key. API keys act
// with the MANAGER role and have their usage recorded after the request.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			token = strings.TrimSpace(c.GetHeader("X-API-Key"))
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		if claims, err := h.Tokens.Verify(token); err == nil {
			c.Set(ctxUsername, claims.Username)
			c.Set(ctxRole, claims.Role)
			c.Set(ctxStaffID, claims.StaffID)
			c.Next()
			return
		}

		if h.APISecret == "" || h.DB == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		apiKey, err := auth.LookupAPIKey(c.Request.Context(), h.DB, h.logger(), h.APISecret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or API key"})
			return
		}

		c.Set(ctxAPIKey, &apiKey)
		c.Set(ctxUsername, apiKey.Name)
		c.Set(ctxRole, auth.RoleManager)
		c.Next()

		placements := c.GetInt(ctxPlacements)
		h.RecordUsage(c, &apiKey, placements)
	}
}

// RequireRole rejects principals whose role is not listed
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ctxRole)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// bucketIdle is how long a client may go quiet before its bucket is dropped.
// It is never shorter than a full refill.
const bucketIdle = 10 * time.Minute

type bucket struct {
	*rate.Limiter
	seen atomic.Int64
}

// Limiter holds one token bucket per client
type Limiter struct {
	buckets   *xsync.Map[string, *bucket]
	rps       rate.Limit
	burst     int
	idle      time.Duration
	lastSweep atomic.Int64
	now       func() time.Time
}

// NewLimiter creates a limiter allowing rps requests per second per client
// with the given burst. A non-positive rps disables limiting.
func NewLimiter(rps float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	idle := bucketIdle
	if rps > 0 {
		if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	l := &Limiter{
		buckets: xsync.NewMap[string, *bucket](),
		rps:     rate.Limit(rps),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
	l.lastSweep.Store(l.now().UnixNano())
	return l
}

// Allow takes one token from key's bucket. perMinute overrides the default
// rate when positive.
func (l *Limiter) Allow(key string, perMinute int) bool {
	if l == nil || l.rps <= 0 {
		return true
	}
	now := l.now()
	b, _ := l.buckets.Compute(key, func(old *bucket, loaded bool) (*bucket, xsync.ComputeOp) {
		if loaded {
			return old, xsync.CancelOp
		}
		limit, burst := l.rps, l.burst
		if perMinute > 0 {
			limit = rate.Limit(float64(perMinute) / 60)
			if perMinute < burst {
				burst = perMinute
			}
		}
		return &bucket{Limiter: rate.NewLimiter(limit, burst)}, xsync.UpdateOp
	})
	b.seen.Store(now.UnixNano())
	ok := b.AllowN(now, 1)

	last := l.lastSweep.Load()
	if now.UnixNano()-last > int64(l.idle) && l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		l.Sweep(now)
	}
	return ok
}

// Sweep drops every bucket not used within the idle window before now.
func (l *Limiter) Sweep(now time.Time) {
	if l == nil {
		return
	}
	cutoff := now.Add(-l.idle).UnixNano()
	l.buckets.Range(func(key string, b *bucket) bool {
		if b.seen.Load() >= cutoff {
			return true
		}
		l.buckets.Compute(key, func(old *bucket, loaded bool) (*bucket, xsync.ComputeOp) {
			if loaded && old.seen.Load() < cutoff {
				return old, xsync.DeleteOp
			}
			return old, xsync.CancelOp
		})
		return true
	})
}

// Forget drops key's bucket so the next request picks up a new rate
func (l *Limiter) Forget(key string) {
	if l == nil {
		return
	}
	l.buckets.Delete(key)
}

func keyBucket(id uint) string {
	return "key:" + strconv.FormatUint(uint64(id), 10)
}

// RateLimitMiddleware throttles by API key when one authenticated the
// request and by client IP otherwise.
func (h *Handler) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, perMinute := "ip:"+c.ClientIP(), 0
		if raw, ok := c.Get(ctxAPIKey); ok {
			apiKey := raw.(*database.APIKey)
			key, perMinute = keyBucket(apiKey.ID), apiKey.RateLimit
		} else if user := c.GetString(ctxUsername); user != "" {
			key = "user:" + user
		}
		if !h.Limiter.Allow(key, perMinute) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
