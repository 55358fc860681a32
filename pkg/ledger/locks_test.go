package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, normalizeKeys([]string{"c", "a", "b", "a"}))
	assert.Empty(t, normalizeKeys(nil))
}

func TestLocalLockerMutualExclusion(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "shift:1", "staff:1:2024-01-10")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
	assert.Zero(t, l.size(), "entries should be dropped once released")
}

func TestLocalLockerDisjointKeysDoNotBlock(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "shift:a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := l.Lock(ctx, "shift:b")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "shift:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "shift:0", "shift:1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // second call is a no-op
	assert.Zero(t, l.size())

	// shift:0 was released on the failed attempt.
	unlock, err = l.Lock(context.Background(), "shift:0")
	require.NoError(t, err)
	unlock()
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	l := NewRedisLocker(client, time.Second)
	unlock, err := l.Lock(ctx, "shift:S1", "staff:1:2024-01-10")
	require.NoError(t, err)
	assert.True(t, mr.Exists("scheduler:lock:shift:S1"))
	assert.Equal(t, time.Second, mr.TTL("scheduler:lock:shift:S1"))

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "shift:S1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.False(t, mr.Exists("scheduler:lock:shift:S1"))
	assert.False(t, mr.Exists("scheduler:lock:staff:1:2024-01-10"))

	unlock, err = l.Lock(ctx, "shift:S1")
	require.NoError(t, err)
	unlock()
}

func TestRedisLockerExpiredHolderCannotRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()
	l := NewRedisLocker(client, time.Second)

	stale, err := l.Lock(ctx, "shift:S1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := l.Lock(ctx, "shift:S1")
	require.NoError(t, err)
	owner, err := mr.Get("scheduler:lock:shift:S1")
	require.NoError(t, err)

	stale()
	got, err := mr.Get("scheduler:lock:shift:S1")
	require.NoError(t, err, "the expired holder must not drop the new lock")
	assert.Equal(t, owner, got)

	fresh()
	assert.False(t, mr.Exists("scheduler:lock:shift:S1"))
}

func TestRedisLockerReportsConnectionErrors(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err := NewRedisLocker(client, time.Second).Lock(context.Background(), "shift:S1")
	assert.ErrorContains(t, err, "acquire lock scheduler:lock:shift:S1")
}

func TestMetricsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.observeAssign(nil)
	m.observeAssign(Conflict(ReasonShiftFull))
	m.observeAssign(Conflict(ReasonShiftFull))
	m.observeUnassign(NotFound(EntityAssignment, "x"))
	m.observeLockWait(time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.assignTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.assignTotal.WithLabelValues("shift_full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unassignTotal.WithLabelValues("not_found")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.observeAssign(nil) })
}
