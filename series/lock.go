// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package series

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	LockLocal = "local"
	LockRedis = "redis"
	LockNone  = "none"

	DefaultRedisLockTTL   = 5 * time.Minute
	DefaultRedisLockRetry = 100 * time.Millisecond
	redisLockKeyPrefix    = "snap:series-lock:"
)

// ErrLockLost is returned when a redis lock expired before it was released
var ErrLockLost = errors.New("series lock expired before release")

// Locker serializes code generation per series. Lock blocks until the lock
// is held or ctx is done and returns the function that releases it.
type Locker interface {
	Lock(ctx context.Context, seriesID uint64) (func() error, error)
}

// NoopLocker performs no locking. Concurrent generators for one series may
// compute the same serial numbers.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, uint64) (func() error, error) {
	return func() error { return nil }, nil
}

// LocalLocker serializes generation within this process
type LocalLocker struct {
	locks map[uint64]*seriesLock
	mu    sync.Mutex
}

type seriesLock struct {
	// ch holds a token while the lock is held
	ch      chan struct{}
	waiters int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		locks: make(map[uint64]*seriesLock),
	}
}

func (l *LocalLocker) Lock(ctx context.Context, seriesID uint64) (func() error, error) {
	l.mu.Lock()
	sl, ok := l.locks[seriesID]
	if !ok {
		sl = &seriesLock{ch: make(chan struct{}, 1)}
		l.locks[seriesID] = sl
	}
	sl.waiters++
	l.mu.Unlock()
	select {
	case sl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(seriesID, sl, false)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() error {
		once.Do(func() { l.release(seriesID, sl, true) })
		return nil
	}, nil
}

func (l *LocalLocker) release(seriesID uint64, sl *seriesLock, held bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if held {
		<-sl.ch
	}
	sl.waiters--
	if sl.waiters == 0 {
		delete(l.locks, seriesID)
	}
}

// redisClient is the subset of *redis.Client used by RedisLocker
type redisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// releaseScript deletes the key only when it still holds our token
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisLocker serializes generation across instances sharing a redis server
type RedisLocker struct {
	client redisClient
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker connects to redisURL, which may be a redis:// URL or a
// host:port address
func NewRedisLocker(redisURL string, ttl time.Duration) (*RedisLocker, error) {
	var opts *redis.Options
	if strings.HasPrefix(redisURL, "redis://") ||
		strings.HasPrefix(redisURL, "rediss://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: redisURL}
	}
	return newRedisLocker(redis.NewClient(opts), ttl), nil
}

func newRedisLocker(client redisClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultRedisLockTTL
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  DefaultRedisLockRetry,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, seriesID uint64) (func() error, error) {
	key := redisLockKeyPrefix + strconv.FormatUint(seriesID, 10)
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire series lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
	return func() error {
		// Release must succeed even when the caller's context is done
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n, err := l.client.Eval(ctx, releaseScript, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("release series lock: %w", err)
		}
		if n == 0 {
			return ErrLockLost
		}
		return nil
	}, nil
}

// NewLocker returns the locker for a configured lock mode
func NewLocker(mode string, redisURL string) (Locker, error) {
	switch mode {
	case "", LockLocal:
		return NewLocalLocker(), nil
	case LockNone:
		return NoopLocker{}, nil
	case LockRedis:
		if redisURL == "" {
			return nil, errors.New("redis lock mode requires a redis url")
		}
		return NewRedisLocker(redisURL, 0)
	default:
		return nil, fmt.Errorf("unknown series lock mode %q", mode)
	}
}
