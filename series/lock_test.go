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
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/snap/internal/test/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesPerSeries(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)

	// A different series is independent
	unlockOther, err := l.Lock(context.Background(), 2)
	require.NoError(t, err)
	require.NoError(t, unlockOther())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan struct{})
	go func() {
		unlock2, err := l.Lock(context.Background(), 1)
		if err == nil {
			_ = unlock2()
		}
		close(acquired)
	}()
	require.NoError(t, unlock())
	// Releasing twice is harmless
	require.NoError(t, unlock())
	testutil.RequireClosed(t, acquired, time.Second, "waiter did not acquire the released lock")
	l.mu.Lock()
	assert.Empty(t, l.locks)
	l.mu.Unlock()
}

type fakeRedis struct {
	mu      sync.Mutex
	values  map[string]string
	evalErr error
}

func (f *fakeRedis) SetNX(
	_ context.Context,
	key string,
	value any,
	_ time.Duration,
) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(
	_ context.Context,
	_ string,
	keys []string,
	args ...any,
) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.evalErr != nil {
		return redis.NewCmdResult(nil, f.evalErr)
	}
	if f.values[keys[0]] != args[0].(string) {
		return redis.NewCmdResult(int64(0), nil)
	}
	delete(f.values, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}

func TestRedisLocker(t *testing.T) {
	client := &fakeRedis{values: make(map[string]string)}
	l := newRedisLocker(client, time.Minute)
	l.retry = time.Millisecond

	unlock, err := l.Lock(context.Background(), 7)
	require.NoError(t, err)
	assert.Contains(t, client.values, "snap:series-lock:7")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, 7)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock())
	assert.NotContains(t, client.values, "snap:series-lock:7")

	// A lock whose key expired and was taken by another holder is reported
	unlock, err = l.Lock(context.Background(), 7)
	require.NoError(t, err)
	client.mu.Lock()
	client.values["snap:series-lock:7"] = "someone-else"
	client.mu.Unlock()
	require.ErrorIs(t, unlock(), ErrLockLost)

	client.evalErr = errors.New("connection reset")
	delete(client.values, "snap:series-lock:7")
	unlock, err = l.Lock(context.Background(), 7)
	require.NoError(t, err)
	require.Error(t, unlock())
}

func TestNewLocker(t *testing.T) {
	l, err := NewLocker("", "")
	require.NoError(t, err)
	assert.IsType(t, &LocalLocker{}, l)
	l, err = NewLocker(LockNone, "")
	require.NoError(t, err)
	assert.IsType(t, NoopLocker{}, l)
	_, err = NewLocker(LockRedis, "")
	require.Error(t, err)
	l, err = NewLocker(LockRedis, "redis://localhost:6379/0")
	require.NoError(t, err)
	assert.IsType(t, &RedisLocker{}, l)
	_, err = NewLocker("etcd", "")
	require.Error(t, err)
}
