package redis

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/digkill/TGFaceSwapBot/internal/ratelimit"
)

var testRedisURL string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}

	testRedisURL, err = container.ConnectionString(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	if err := container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate redis container: %v\n", err)
	}
	os.Exit(code)
}

func setupTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, testRedisURL)
	require.NoError(t, err)
	require.NoError(t, client.FlushAll(ctx).Err())

	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestUsageStore_Integration_CapAndReset(t *testing.T) {
	client := setupTestClient(t)
	store := NewUsageStore(client)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := store.ConsumeIfBelow(ctx, 1, "2026-03-14", 5)
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d should be allowed", i+1)
	}
	ok, err := store.ConsumeIfBelow(ctx, 1, "2026-03-14", 5)
	require.NoError(t, err)
	assert.False(t, ok)

	rec, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 5, rec.Count)

	ok, err = store.ConsumeIfBelow(ctx, 1, "2026-03-15", 5)
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err = store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count)
	assert.Equal(t, "2026-03-15", rec.Date)
}

func TestUsageStore_Integration_MissingRecord(t *testing.T) {
	client := setupTestClient(t)
	store := NewUsageStore(client)

	rec, err := store.Get(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUsageStore_Integration_ActiveUsers(t *testing.T) {
	client := setupTestClient(t)
	store := NewUsageStore(client)
	ctx := context.Background()

	_, err := store.ConsumeIfBelow(ctx, 1, "2026-03-14", 5)
	require.NoError(t, err)
	_, err = store.ConsumeIfBelow(ctx, 1, "2026-03-14", 5)
	require.NoError(t, err)
	_, err = store.ConsumeIfBelow(ctx, 2, "2026-03-14", 5)
	require.NoError(t, err)

	n, err := store.CountActive(ctx, "2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUsageStore_Integration_WithLimiter(t *testing.T) {
	client := setupTestClient(t)
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.March, 14, 23, 0, 0, 0, time.UTC))
	limiter := ratelimit.NewLimiter(NewUsageStore(client), clock, 2)
	ctx := context.Background()

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := limiter.Allow(ctx, 77)
			if err == nil && ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 2, granted.Load())

	clock.Advance(2 * time.Hour)
	ok, err := limiter.Allow(ctx, 77)
	require.NoError(t, err)
	assert.True(t, ok, "quota resets on the next UTC day")
}
