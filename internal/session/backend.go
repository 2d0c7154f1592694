package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend persists the role payloads of one session. Replace stores exactly
// one field for sid and drops every other field of that session.
type Backend interface {
	Fields(ctx context.Context, sid string) (map[string]string, error)
	Replace(ctx context.Context, sid, field, value string, ttl time.Duration) error
	Delete(ctx context.Context, sid string) error
}

type RedisBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client, prefix: "sk3:session:"}
}

func (b *RedisBackend) key(sid string) string {
	return b.prefix + sid
}

// Fields returns an empty map for a missing or expired session.
func (b *RedisBackend) Fields(ctx context.Context, sid string) (map[string]string, error) {
	fields, err := b.client.HGetAll(ctx, b.key(sid)).Result()
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func (b *RedisBackend) Replace(ctx context.Context, sid, field, value string, ttl time.Duration) error {
	key := b.key(sid)
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, field, value)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	return err
}

func (b *RedisBackend) Delete(ctx context.Context, sid string) error {
	return b.client.Del(ctx, b.key(sid)).Err()
}

type memoryEntry struct {
	fields    map[string]string
	expiresAt time.Time
}

// MemoryBackend keeps sessions in process. Used when no Redis address is
// configured and in tests.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry), now: time.Now}
}

func (b *MemoryBackend) Fields(_ context.Context, sid string) (map[string]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[sid]
	if !ok {
		return map[string]string{}, nil
	}
	if !entry.expiresAt.IsZero() && !b.now().Before(entry.expiresAt) {
		delete(b.entries, sid)
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(entry.fields))
	for k, v := range entry.fields {
		out[k] = v
	}
	return out, nil
}

func (b *MemoryBackend) Replace(_ context.Context, sid, field, value string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry := memoryEntry{fields: map[string]string{field: value}}
	if ttl > 0 {
		entry.expiresAt = b.now().Add(ttl)
	}
	b.entries[sid] = entry
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, sid string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, sid)
	return nil
}
