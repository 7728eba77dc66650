package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, clock *fakeClock, fetcher Fetcher, cache Cache) *CredentialManager {
	t.Helper()
	m, err := NewCredentialManager(CredentialManagerConfig{
		Store:    NewCredentialStore(WithClock(clock.Now)),
		Kind:     CredentialAccessToken,
		Fetcher:  fetcher,
		Cache:    cache,
		CacheKey: "wx:access_token",
	})
	require.NoError(t, err)
	return m
}

func TestNewCredentialManager_Validation(t *testing.T) {
	fetcher := func(context.Context) (FetchResult, error) { return FetchResult{}, nil }

	_, err := NewCredentialManager(CredentialManagerConfig{Fetcher: fetcher})
	assert.Error(t, err)

	_, err = NewCredentialManager(CredentialManagerConfig{Store: NewCredentialStore()})
	assert.Error(t, err)

	_, err = NewCredentialManager(CredentialManagerConfig{Store: NewCredentialStore(), Fetcher: fetcher, Cache: NewMemoryCache()})
	assert.Error(t, err, "配置缓存时必须提供 key")
}

func TestCredentialManager_Singleflight(t *testing.T) {
	clock := newFakeClock(testIssuedAt)
	var calls int32

	m := newTestManager(t, clock, func(ctx context.Context) (FetchResult, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(30 * time.Millisecond)
		return FetchResult{Value: "fresh", ExpiresIn: 7200}, nil
	}, nil)

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			token, err := m.GetToken(context.Background())
			if err != nil {
				t.Errorf("get token: %v", err)
				return
			}
			if token != "fresh" {
				t.Errorf("unexpected token: %s", token)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCredentialManager_GetTokenUsesStore(t *testing.T) {
	clock := newFakeClock(testIssuedAt)
	var calls int32
	m := newTestManager(t, clock, func(ctx context.Context) (FetchResult, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return FetchResult{Value: "T1", ExpiresIn: 7200}, nil
		}
		return FetchResult{Value: "T2", ExpiresIn: 7200}, nil
	}, nil)
	ctx := context.Background()

	token, err := m.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T1", token)

	clock.Advance(50 * time.Minute)
	token, err = m.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T1", token, "未过期时不拉取")

	clock.Advance(50 * time.Minute)
	token, err = m.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T2", token, "过期后重新拉取")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCredentialManager_RefreshFailureKeepsStale(t *testing.T) {
	clock := newFakeClock(testIssuedAt)
	fail := errors.New("network down")
	var failing atomic.Bool

	m := newTestManager(t, clock, func(ctx context.Context) (FetchResult, error) {
		if failing.Load() {
			return FetchResult{}, NewSystemError(ErrorKindGetAccessToken, fail)
		}
		return FetchResult{Value: "T1", ExpiresIn: 7200}, nil
	}, nil)
	ctx := context.Background()

	_, err := m.RefreshToken(ctx)
	require.NoError(t, err)

	failing.Store(true)
	_, err = m.RefreshToken(ctx)
	require.ErrorIs(t, err, fail)

	token, err := m.Store().AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "T1", token, "刷新失败时保留旧值")

	clock.Advance(3 * time.Hour)
	token, err = m.GetToken(ctx)
	require.NoError(t, err, "按需路径退回旧值")
	assert.Equal(t, "T1", token)
}

func TestCredentialManager_UninitializedFailure(t *testing.T) {
	clock := newFakeClock(testIssuedAt)
	m := newTestManager(t, clock, func(ctx context.Context) (FetchResult, error) {
		return FetchResult{}, NewWechatError(ErrorKindGetAccessToken, "40013", "invalid appid")
	}, nil)

	_, err := m.GetToken(context.Background())
	var we *WechatError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "40013", we.ErrCode)

	_, err = m.Store().AccessToken()
	assert.ErrorIs(t, err, ErrUninitializedCredential)
}

func TestCredentialManager_EmptyValueRejected(t *testing.T) {
	clock := newFakeClock(testIssuedAt)
	m := newTestManager(t, clock, func(ctx context.Context) (FetchResult, error) {
		return FetchResult{Value: "", ExpiresIn: 7200}, nil
	}, nil)

	_, err := m.RefreshToken(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCredential)
}

func TestCredentialManager_ContextCanceled(t *testing.T) {
	clock := newFakeClock(testIssuedAt)
	release := make(chan struct{})
	m := newTestManager(t, clock, func(ctx context.Context) (FetchResult, error) {
		<-release
		return FetchResult{Value: "late", ExpiresIn: 7200}, nil
	}, nil)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.RefreshToken(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// 先到的调用方取消后，合并进同一次拉取的其他调用方仍能拿到结果
func TestCredentialManager_CanceledCallerDoesNotAbortSharedFetch(t *testing.T) {
	clock := newFakeClock(testIssuedAt)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32

	m := newTestManager(t, clock, func(ctx context.Context) (FetchResult, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return FetchResult{}, err
		}
		return FetchResult{Value: "fresh", ExpiresIn: 7200}, nil
	}, nil)

	reqCtx, cancelReq := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.GetToken(reqCtx)
		firstErr <- err
	}()
	<-started

	type result struct {
		token string
		err   error
	}
	second := make(chan result, 1)
	go func() {
		token, err := m.RefreshToken(context.Background())
		second <- result{token, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelReq()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, "fresh", res.token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	token, err := m.Store().AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
}

func TestCredentialManager_FetchTimeout(t *testing.T) {
	clock := newFakeClock(testIssuedAt)
	m, err := NewCredentialManager(CredentialManagerConfig{
		Store: NewCredentialStore(WithClock(clock.Now)),
		Kind:  CredentialAccessToken,
		Fetcher: func(ctx context.Context) (FetchResult, error) {
			<-ctx.Done()
			return FetchResult{}, ctx.Err()
		},
		FetchTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = m.RefreshToken(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCredentialManager_MirrorAndRestore(t *testing.T) {
	clock := newFakeClock(testIssuedAt)
	cache := NewMemoryCache()
	cache.now = clock.Now
	ctx := context.Background()

	writer := newTestManager(t, clock, func(ctx context.Context) (FetchResult, error) {
		return FetchResult{Value: "shared", ExpiresIn: 7200}, nil
	}, cache)
	_, err := writer.RefreshToken(ctx)
	require.NoError(t, err)

	raw, ok := cache.Get(ctx, "wx:access_token")
	require.True(t, ok)
	var cached Credential
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, "shared", cached.Value)
	assert.Equal(t, testIssuedAt.Add(100*time.Minute), cached.ExpiresAt)

	reader := newTestManager(t, clock, func(ctx context.Context) (FetchResult, error) {
		t.Fatal("restore should not fetch")
		return FetchResult{}, nil
	}, cache)
	restored, err := reader.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, restored)

	token, err := reader.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shared", token)
	assert.Equal(t, cached.ExpiresAt, reader.ExpiresAt())
}

func TestCredentialManager_RestoreSkipsExpired(t *testing.T) {
	clock := newFakeClock(testIssuedAt)
	cache := NewMemoryCache()
	ctx := context.Background()

	raw, _ := json.Marshal(Credential{Value: "old", ExpiresIn: 7200, IssuedAt: testIssuedAt.Add(-3 * time.Hour), ExpiresAt: testIssuedAt.Add(-time.Hour)})
	require.NoError(t, cache.Set(ctx, "wx:access_token", string(raw), 0))

	m := newTestManager(t, clock, func(ctx context.Context) (FetchResult, error) {
		return FetchResult{}, errors.New("unused")
	}, cache)
	restored, err := m.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, restored)

	// 过期时间被改到未来，但按签发时间计算早已过期
	raw, _ = json.Marshal(Credential{Value: "edited", ExpiresIn: 7200, IssuedAt: testIssuedAt.Add(-3 * time.Hour), ExpiresAt: testIssuedAt.Add(24 * time.Hour)})
	require.NoError(t, cache.Set(ctx, "wx:access_token", string(raw), 0))
	restored, err = m.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, restored)

	require.NoError(t, cache.Set(ctx, "wx:access_token", "not json", 0))
	_, err = m.Restore(ctx)
	assert.Error(t, err)
}
