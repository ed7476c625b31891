package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	r "github.com/redis/go-redis/v9"

	"github.com/SirClappington/jobstream/internal/domain"
)

const keyPrefix = "job:"

// RedisStore keeps creation times as unix-nanosecond strings under job:<id>.
// ttl bounds how long an entry that is never queried again survives; zero
// keeps entries until they are deleted.
type RedisStore struct {
	rdb *r.Client
	ttl time.Duration
}

func NewRedis(rdb *r.Client, ttl time.Duration) *RedisStore { return &RedisStore{rdb, ttl} }

func (s *RedisStore) Create(ctx context.Context, job domain.Job) error {
	ok, err := s.rdb.SetNX(ctx, keyPrefix+job.ID, strconv.FormatInt(job.CreatedAt.UnixNano(), 10), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	if !ok {
		return fmt.Errorf("create job %s: id already in use", job.ID)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (domain.Job, error) {
	v, err := s.rdb.Get(ctx, keyPrefix+id).Result()
	if errors.Is(err, r.Nil) {
		return domain.Job{}, domain.ErrJobNotFound
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("get job %s: %w", id, err)
	}

	ns, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return domain.Job{}, fmt.Errorf("get job %s: bad creation time %q: %w", id, v, err)
	}
	return domain.Job{ID: id, CreatedAt: time.Unix(0, ns)}, nil
}

// Delete relies on DEL's reply count, so only one of several concurrent
// deleters sees success.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, keyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
