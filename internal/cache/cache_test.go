package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"eventify/internal/logger"
	"eventify/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis starts an in-memory Redis and a client for it.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestConnect(t *testing.T) {
	_, mr := setupTestRedis(t)

	client, err := Connect(context.Background(), mr.Addr(), "", logger.Nop())
	require.NoError(t, err)
	client.Close()

	_, err = Connect(context.Background(), "127.0.0.1:1", "", logger.Nop())
	assert.Error(t, err)
}

func TestCategoryCacheRoundTrip(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewCategoryCache(client, 10*time.Minute)
	ctx := context.Background()

	_, ok, err := c.GetCategories(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	categories := []models.Category{{ID: "c1", Name: "Music"}, {ID: "c2", Name: "Tech"}}
	require.NoError(t, c.SetCategories(ctx, categories))
	assert.Equal(t, 10*time.Minute, mr.TTL(CategoriesKey))

	got, ok, err := c.GetCategories(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "Music", got[0].Name)

	require.NoError(t, c.InvalidateCategories(ctx))
	_, ok, err = c.GetCategories(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCategoryCacheExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewCategoryCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetCategories(ctx, []models.Category{{ID: "c1", Name: "Music"}}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.GetCategories(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeduperClaimOnce(t *testing.T) {
	client, mr := setupTestRedis(t)
	d := NewDeduper(client, 24*time.Hour)
	ctx := context.Background()

	ok, err := d.Claim(ctx, "clerk", "msg_1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 24*time.Hour, mr.TTL("webhook:clerk:msg_1"))

	ok, err = d.Claim(ctx, "clerk", "msg_1")
	require.NoError(t, err)
	assert.False(t, ok, "second claim of the same delivery must fail")

	ok, err = d.Claim(ctx, "stripe", "msg_1")
	require.NoError(t, err)
	assert.True(t, ok, "sources are namespaced")

	require.NoError(t, d.Release(ctx, "clerk", "msg_1"))
	ok, err = d.Claim(ctx, "clerk", "msg_1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeduperConcurrentClaims(t *testing.T) {
	client, _ := setupTestRedis(t)
	d := NewDeduper(client, time.Hour)

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := d.Claim(context.Background(), "clerk", "msg_race")
			if err == nil && ok {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, won)
}

func TestNopImplementations(t *testing.T) {
	ctx := context.Background()
	_, ok, err := NopCategoryCache{}.GetCategories(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)

	claimed, err := NopDeduper{}.Claim(ctx, "clerk", "x")
	assert.NoError(t, err)
	assert.True(t, claimed)
}

func TestLockerOwnership(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewLocker(client, 30*time.Second)
	ctx := context.Background()

	ok, err := l.Lock(ctx, "checkout:e1:u1", "req_a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, mr.TTL("lock:checkout:e1:u1"))

	ok, err = l.Lock(ctx, "checkout:e1:u1", "req_b")
	require.NoError(t, err)
	assert.False(t, ok)

	// Only the owner releases the lock.
	require.NoError(t, l.Unlock(ctx, "checkout:e1:u1", "req_b"))
	assert.True(t, mr.Exists("lock:checkout:e1:u1"))

	require.NoError(t, l.Unlock(ctx, "checkout:e1:u1", "req_a"))
	assert.False(t, mr.Exists("lock:checkout:e1:u1"))

	ok, err = l.Lock(ctx, "checkout:e1:u1", "req_b")
	require.NoError(t, err)
	assert.True(t, ok)
}
