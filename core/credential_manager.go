package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchResult 一次拉取得到的凭证
type FetchResult struct {
	Value     string
	ExpiresIn int
}

// DefaultFetchTimeout 单次拉取的超时时间，与调用方的上下文无关
const DefaultFetchTimeout = 30 * time.Second

// Fetcher 向微信拉取新凭证，只尝试一次
type Fetcher func(ctx context.Context) (FetchResult, error)

type CredentialManagerConfig struct {
	Store   *CredentialStore
	Kind    CredentialKind
	Fetcher Fetcher
	// Cache 可选，用于在多个进程间共享凭证
	Cache    Cache
	CacheKey string
	// FetchTimeout 不大于 0 时使用 DefaultFetchTimeout
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

// CredentialManager 管理凭证仓库中的一个槽位
//
// GetToken 走按需拉取路径：凭证未过期直接返回，过期后拉取，拉取失败时退回旧值；
// RefreshToken 走定时刷新路径：强制拉取，失败时返回错误并保留旧值。
// 并发拉取通过 singleflight 合并为一次请求。
type CredentialManager struct {
	store    *CredentialStore
	kind     CredentialKind
	fetcher  Fetcher
	cache    Cache
	cacheKey string
	timeout  time.Duration
	logger   *slog.Logger

	group singleflight.Group
}

func NewCredentialManager(cfg CredentialManagerConfig) (*CredentialManager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Cache != nil && cfg.CacheKey == "" {
		return nil, fmt.Errorf("cache key is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	return &CredentialManager{
		store:    cfg.Store,
		kind:     cfg.Kind,
		fetcher:  cfg.Fetcher,
		cache:    cfg.Cache,
		cacheKey: cfg.CacheKey,
		timeout:  timeout,
		logger:   logger.With(slog.String("credential", cfg.Kind.String())),
	}, nil
}

// Kind 返回管理的凭证类型
func (m *CredentialManager) Kind() CredentialKind {
	return m.kind
}

// Store 返回底层凭证仓库
func (m *CredentialManager) Store() *CredentialStore {
	return m.store
}

// GetToken 返回可用凭证
func (m *CredentialManager) GetToken(ctx context.Context) (string, error) {
	if !m.store.IsKindExpired(m.kind) {
		return m.store.Value(m.kind)
	}

	value, err := m.do(ctx)
	if err == nil {
		return value, nil
	}

	stale, staleErr := m.store.Value(m.kind)
	if staleErr != nil {
		return "", err
	}
	m.logger.WarnContext(ctx, "refresh failed, using stale credential", slog.Any("error", err))
	return stale, nil
}

// RefreshToken 强制拉取新凭证并写入仓库
func (m *CredentialManager) RefreshToken(ctx context.Context) (string, error) {
	return m.do(ctx)
}

// do 合并并发拉取，拉取本身不随调用方取消，调用方取消只结束自己的等待
func (m *CredentialManager) do(ctx context.Context) (string, error) {
	ch := m.group.DoChan(m.kind.String(), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		return m.fetchAndStore(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (m *CredentialManager) fetchAndStore(ctx context.Context) (string, error) {
	result, err := m.fetcher(ctx)
	if err != nil {
		return "", err
	}

	issuedAt := m.store.Now()
	if err := m.store.Set(m.kind, result.Value, result.ExpiresIn, issuedAt); err != nil {
		return "", fmt.Errorf("store %s: %w", m.kind, err)
	}

	m.logger.InfoContext(ctx, "credential refreshed",
		slog.Int("expires_in", result.ExpiresIn),
		slog.Time("issued_at", issuedAt),
	)
	m.mirror(ctx)

	return result.Value, nil
}

// mirror 将当前快照写入共享缓存，失败只记录日志
func (m *CredentialManager) mirror(ctx context.Context) {
	if m.cache == nil {
		return
	}

	cred, err := m.store.Snapshot(m.kind)
	if err != nil {
		return
	}
	raw, err := json.Marshal(cred)
	if err != nil {
		m.logger.WarnContext(ctx, "marshal credential failed", slog.Any("error", err))
		return
	}

	ttl := cred.ExpiresAt.Sub(m.store.Now())
	if ttl <= 0 {
		return
	}
	if err := m.cache.Set(ctx, m.cacheKey, string(raw), ttl); err != nil {
		m.logger.WarnContext(ctx, "cache credential failed", slog.String("key", m.cacheKey), slog.Any("error", err))
	}
}

// Restore 从共享缓存恢复未过期的凭证，返回是否恢复成功
func (m *CredentialManager) Restore(ctx context.Context) (bool, error) {
	if m.cache == nil {
		return false, nil
	}

	raw, ok := m.cache.Get(ctx, m.cacheKey)
	if !ok {
		return false, nil
	}

	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", m.kind, err)
	}
	cred = m.store.clampExpiry(cred)
	if cred.IsExpired(m.store.Now()) {
		return false, nil
	}
	if err := m.store.Restore(m.kind, cred); err != nil {
		return false, err
	}

	m.logger.InfoContext(ctx, "credential restored from cache", slog.Time("expires_at", cred.ExpiresAt))
	return true, nil
}

// ExpiresAt 当前凭证的本地过期时间，未初始化时返回零值
func (m *CredentialManager) ExpiresAt() time.Time {
	cred, err := m.store.Snapshot(m.kind)
	if err != nil {
		return time.Time{}
	}
	return cred.ExpiresAt
}

var _ AccessTokenProvider = (*CredentialManager)(nil)
