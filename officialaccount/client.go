package officialaccount

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ShinyNito/wxcred/core"
)

const (
	accessTokenCacheKeyPrefix = "officialaccount:access_token:"
	jsapiTicketCacheKeyPrefix = "officialaccount:jsapi_ticket:"
)

// Config 公众号配置，所有值由调用方解析好后传入
type Config struct {
	// AppID 公众号 AppID（必填）
	AppID string
	// AppSecret 公众号 AppSecret（必填）
	AppSecret string
	// BaseURL 接口地址（可选，默认 https://api.weixin.qq.com）
	BaseURL string
	// OAuthBaseURL 网页授权地址（可选，默认 https://open.weixin.qq.com）
	OAuthBaseURL string
	// Store 凭证仓库（可选，默认新建）
	Store *core.CredentialStore
	// Cache 凭证共享缓存（可选，为空时不做镜像）
	Cache      core.Cache
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client 公众号客户端
type Client struct {
	cfg         Config
	tokenClient *core.Client
	apiClient   *core.Client
	tokens      *core.CredentialManager
	tickets     *core.CredentialManager
}

func New(cfg Config) (*Client, error) {
	cfg = normalizeConfig(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	// 拉取 access_token 本身不带 token
	tokenClient, err := core.NewClient(core.ClientConfig{
		BaseURL:    cfg.BaseURL,
		HTTPClient: cfg.HTTPClient,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, tokenClient: tokenClient}

	c.tokens, err = core.NewCredentialManager(core.CredentialManagerConfig{
		Store:    cfg.Store,
		Kind:     core.CredentialAccessToken,
		Fetcher:  c.accessTokenFetcher,
		Cache:    cfg.Cache,
		CacheKey: accessTokenCacheKeyPrefix + cfg.AppID,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	c.apiClient, err = core.NewClient(core.ClientConfig{
		BaseURL:       cfg.BaseURL,
		HTTPClient:    cfg.HTTPClient,
		TokenProvider: c.tokens,
		Logger:        cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	c.tickets, err = core.NewCredentialManager(core.CredentialManagerConfig{
		Store:    cfg.Store,
		Kind:     core.CredentialJSAPITicket,
		Fetcher:  c.jsapiTicketFetcher,
		Cache:    cfg.Cache,
		CacheKey: jsapiTicketCacheKeyPrefix + cfg.AppID,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

// Store 返回共享的凭证仓库
func (c *Client) Store() *core.CredentialStore {
	return c.cfg.Store
}

// AccessTokenManager access_token 管理器，同时是 core.AccessTokenProvider
func (c *Client) AccessTokenManager() *core.CredentialManager {
	return c.tokens
}

// TicketManager jsapi_ticket 管理器
func (c *Client) TicketManager() *core.CredentialManager {
	return c.tickets
}

// RefreshAccessToken 拉取新的 access_token 并原子写入仓库，失败时旧值不变
func (c *Client) RefreshAccessToken(ctx context.Context) error {
	_, err := c.tokens.RefreshToken(ctx)
	return err
}

// RefreshJSAPITicket 拉取新的 jsapi_ticket 并原子写入仓库，失败时旧值不变
func (c *Client) RefreshJSAPITicket(ctx context.Context) error {
	_, err := c.tickets.RefreshToken(ctx)
	return err
}

// Restore 从共享缓存恢复两种凭证
func (c *Client) Restore(ctx context.Context) error {
	for _, m := range []*core.CredentialManager{c.tokens, c.tickets} {
		if _, err := m.Restore(ctx); err != nil {
			c.cfg.Logger.WarnContext(ctx, "restore credential failed",
				slog.String("credential", m.Kind().String()),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func normalizeConfig(cfg Config) Config {
	cfg.AppID = strings.TrimSpace(cfg.AppID)
	cfg.AppSecret = strings.TrimSpace(cfg.AppSecret)
	if cfg.Store == nil {
		cfg.Store = core.NewCredentialStore()
	}
	if cfg.OAuthBaseURL == "" {
		cfg.OAuthBaseURL = defaultOAuthBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

func validateConfig(cfg Config) error {
	if cfg.AppID == "" {
		return fmt.Errorf("appid is required")
	}
	if cfg.AppSecret == "" {
		return fmt.Errorf("appsecret is required")
	}
	return nil
}
