package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	r "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SirClappington/jobstream/internal/domain"
)

// testStoreContract exercises the behaviour every Store must share.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get unknown id", func(t *testing.T) {
		_, err := s.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})

	t.Run("delete unknown id", func(t *testing.T) {
		assert.ErrorIs(t, s.Delete(ctx, uuid.NewString()), domain.ErrJobNotFound)
	})

	t.Run("create get delete", func(t *testing.T) {
		created := time.Now().Truncate(time.Microsecond)
		job := domain.Job{ID: uuid.NewString(), CreatedAt: created}
		require.NoError(t, s.Create(ctx, job))

		got, err := s.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)
		assert.True(t, got.CreatedAt.Equal(created), "got %v, want %v", got.CreatedAt, created)

		require.NoError(t, s.Delete(ctx, job.ID))

		_, err = s.Get(ctx, job.ID)
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
		assert.ErrorIs(t, s.Delete(ctx, job.ID), domain.ErrJobNotFound)
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		job := domain.Job{ID: uuid.NewString(), CreatedAt: time.Now()}
		require.NoError(t, s.Create(ctx, job))
		assert.Error(t, s.Create(ctx, job))
	})

	t.Run("concurrent delete has one winner", func(t *testing.T) {
		job := domain.Job{ID: uuid.NewString(), CreatedAt: time.Now()}
		require.NoError(t, s.Create(ctx, job))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if s.Delete(ctx, job.ID) == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, wins.Load())
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemory())
}

func TestMemoryStoreLen(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, domain.Job{ID: "a", CreatedAt: time.Now()}))
	require.NoError(t, s.Create(ctx, domain.Job{ID: "b", CreatedAt: time.Now()}))
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Delete(ctx, "a"))
	assert.Equal(t, 1, s.Len())
}

// getTestRedis connects to REDIS_TEST_ADDR (default localhost:6379) and skips
// the test when no server answers.
func getTestRedis(t *testing.T) *r.Client {
	t.Helper()

	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := r.NewClient(&r.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skip("Redis not available, skipping test:", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisStore(t *testing.T) {
	rdb := getTestRedis(t)
	s := NewRedis(rdb, time.Minute)

	require.NoError(t, s.Ping(context.Background()))
	testStoreContract(t, s)
}

func TestRedisStoreTTL(t *testing.T) {
	rdb := getTestRedis(t)
	s := NewRedis(rdb, time.Minute)
	ctx := context.Background()

	job := domain.Job{ID: uuid.NewString(), CreatedAt: time.Now()}
	require.NoError(t, s.Create(ctx, job))
	t.Cleanup(func() { _ = s.Delete(ctx, job.ID) })

	ttl, err := rdb.TTL(ctx, keyPrefix+job.ID).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}
