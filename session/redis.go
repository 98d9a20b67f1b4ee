package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/3run4/stampcard/member"
)

const redisPrefix = "stampcard:session:"

// RedisStore keeps each snapshot as a JSON value with a TTL.
type RedisStore struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedisStore(rc *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{rc: rc, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, id string) (member.Snapshot, bool, error) {
	key, err := storeKey(id)
	if err != nil {
		return member.Snapshot{}, false, err
	}
	b, err := s.rc.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return member.Snapshot{}, false, nil
	}
	if err != nil {
		return member.Snapshot{}, false, err
	}
	var snap member.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		// unreadable entries are dropped rather than served
		_ = s.rc.Del(ctx, redisPrefix+key).Err()
		return member.Snapshot{}, false, nil
	}
	return snap, true, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, snap member.Snapshot) error {
	key, err := storeKey(id)
	if err != nil {
		return err
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rc.Set(ctx, redisPrefix+key, b, s.ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context, id string) error {
	return s.rc.Del(ctx, redisPrefix+id).Err()
}
