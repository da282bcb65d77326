package cache

import (
	"context"
	"strconv"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Persisted playback state keys. Each key is independently readable and
// writable; absent keys fall back to the defaults documented on the getters'
// call sites. There is no transactional grouping across keys.
const (
	KeyShuffle           = "player:shuffle"
	KeyRepeat            = "player:repeat"
	KeyIndex             = "player:index"
	KeyBookmark          = "player:bookmark"
	KeyShuffleOrder      = "player:shuffle_order"
	KeyRecentLimit       = "player:recent_limit"
	KeyEqualizerEnabled  = "player:eq_enabled"
	KeyEqualizerSettings = "player:eq_settings"
	KeyStopOnTaskRemoved = "player:stop_on_task_removed"
)

// StateStore is a typed durable key/value store for playback state.
// Writes are synchronous-commit: a value is durable before any subsequent
// read can observe it. Getters swallow lookup errors and return the given
// default so callers restore cleanly from missing or malformed state.
type StateStore interface {
	GetBool(ctx context.Context, key string, def bool) bool
	SetBool(ctx context.Context, key string, val bool) error
	GetInt(ctx context.Context, key string, def int) int
	SetInt(ctx context.Context, key string, val int) error
	GetInt64(ctx context.Context, key string, def int64) int64
	SetInt64(ctx context.Context, key string, val int64) error
	GetString(ctx context.Context, key string, def string) string
	SetString(ctx context.Context, key string, val string) error
}

// redisStateStore implements StateStore over Redis.
type redisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore creates a StateStore backed by the given Redis client.
func NewRedisStateStore(client *redis.Client) StateStore {
	return &redisStateStore{client: client}
}

func (s *redisStateStore) GetBool(ctx context.Context, key string, def bool) bool {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}

func (s *redisStateStore) SetBool(ctx context.Context, key string, val bool) error {
	return s.client.Set(ctx, key, strconv.FormatBool(val), 0).Err()
}

func (s *redisStateStore) GetInt(ctx context.Context, key string, def int) int {
	return int(s.GetInt64(ctx, key, int64(def)))
}

func (s *redisStateStore) SetInt(ctx context.Context, key string, val int) error {
	return s.SetInt64(ctx, key, int64(val))
}

func (s *redisStateStore) GetInt64(ctx context.Context, key string, def int64) int64 {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return def
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func (s *redisStateStore) SetInt64(ctx context.Context, key string, val int64) error {
	return s.client.Set(ctx, key, strconv.FormatInt(val, 10), 0).Err()
}

func (s *redisStateStore) GetString(ctx context.Context, key string, def string) string {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return def
	}
	return val
}

func (s *redisStateStore) SetString(ctx context.Context, key string, val string) error {
	return s.client.Set(ctx, key, val, 0).Err()
}

// memoryStateStore is an in-process StateStore used by tests and by runs
// without a Redis instance. Not durable across restarts.
type memoryStateStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStateStore creates an in-memory StateStore.
func NewMemoryStateStore() StateStore {
	return &memoryStateStore{values: make(map[string]string)}
}

func (s *memoryStateStore) get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

func (s *memoryStateStore) set(key, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = val
	return nil
}

func (s *memoryStateStore) GetBool(ctx context.Context, key string, def bool) bool {
	val, ok := s.get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}

func (s *memoryStateStore) SetBool(ctx context.Context, key string, val bool) error {
	return s.set(key, strconv.FormatBool(val))
}

func (s *memoryStateStore) GetInt(ctx context.Context, key string, def int) int {
	return int(s.GetInt64(ctx, key, int64(def)))
}

func (s *memoryStateStore) SetInt(ctx context.Context, key string, val int) error {
	return s.SetInt64(ctx, key, int64(val))
}

func (s *memoryStateStore) GetInt64(ctx context.Context, key string, def int64) int64 {
	val, ok := s.get(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func (s *memoryStateStore) SetInt64(ctx context.Context, key string, val int64) error {
	return s.set(key, strconv.FormatInt(val, 10))
}

func (s *memoryStateStore) GetString(ctx context.Context, key string, def string) string {
	val, ok := s.get(key)
	if !ok {
		return def
	}
	return val
}

func (s *memoryStateStore) SetString(ctx context.Context, key string, val string) error {
	return s.set(key, val)
}
