package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// =============================================================================
// KeyLock - 같은 키 동시 처리 방지
// =============================================================================

var releaseIfOwner = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// KeyLock grants short-lived exclusive claims on a key. With Redis the claim
// holds across processes; without it only within this process.
type KeyLock struct {
	redis  *redis.Client
	prefix string

	mu    sync.Mutex
	local map[string]time.Time
}

// NewKeyLock creates a lock namespace. client may be nil.
func NewKeyLock(client *redis.Client, prefix string) *KeyLock {
	return &KeyLock{redis: client, prefix: prefix, local: make(map[string]time.Time)}
}

// TryLock claims key for ttl. ok is false when someone else holds it.
// release is always safe to call.
func (l *KeyLock) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error) {
	if l.redis != nil {
		return l.tryRedis(ctx, key, ttl)
	}
	return l.tryLocal(key, ttl)
}

func (l *KeyLock) tryRedis(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	redisKey := l.prefix + key

	ok, err := l.redis.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return func() {}, false, err
	}
	if !ok {
		return func() {}, false, nil
	}
	return func() {
		// 원래 ctx 가 취소되었어도 해제는 시도
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = releaseIfOwner.Run(rctx, l.redis, []string{redisKey}, token).Err()
	}, true, nil
}

func (l *KeyLock) tryLocal(key string, ttl time.Duration) (func(), bool, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if exp, held := l.local[key]; held && now.Before(exp) {
		return func() {}, false, nil
	}
	expires := now.Add(ttl)
	l.local[key] = expires

	return func() {
		l.mu.Lock()
		if l.local[key].Equal(expires) {
			delete(l.local, key)
		}
		l.mu.Unlock()
	}, true, nil
}
