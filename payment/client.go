package payment

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ShinyNito/wxcred/core"
	"github.com/ShinyNito/wxcred/core/utils"
	"github.com/google/uuid"
)

const (
	DefaultBaseURL   = "https://api.mch.weixin.qq.com"
	TradeTypeJSAPI   = "JSAPI"
	unifiedOrderPath = "/pay/unifiedorder"
)

// Config 微信支付（v2 XML 接口）配置
type Config struct {
	// AppID 关联的公众号 AppID（必填）
	AppID string
	// MchID 商户号（必填）
	MchID string
	// APIKey 商户 API 密钥，用于签名（必填）
	APIKey string
	// NotifyURL 默认的支付结果通知地址
	NotifyURL string
	// SignType MD5 或 HMAC-SHA256，默认 MD5
	SignType   string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client 微信支付客户端
type Client struct {
	cfg   Config
	api   *core.Client
	now   func() time.Time
	nonce func() string
}

func New(cfg Config) (*Client, error) {
	cfg = normalizeConfig(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	api, err := core.NewClient(core.ClientConfig{
		BaseURL:    cfg.BaseURL,
		HTTPClient: cfg.HTTPClient,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:   cfg,
		api:   api,
		now:   time.Now,
		nonce: newNonce,
	}, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

// Sign 使用商户密钥对参数签名
func (c *Client) Sign(params map[string]string) (string, error) {
	return utils.PaySign(params, c.cfg.APIKey, c.cfg.SignType)
}

// newNonce 32 位随机串，不超过接口限制的 32 个字符
func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func normalizeConfig(cfg Config) Config {
	cfg.AppID = strings.TrimSpace(cfg.AppID)
	cfg.MchID = strings.TrimSpace(cfg.MchID)
	if cfg.SignType == "" {
		cfg.SignType = utils.SignTypeMD5
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
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
	if cfg.MchID == "" {
		return fmt.Errorf("mch_id is required")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("api key is required")
	}
	if cfg.SignType != utils.SignTypeMD5 && cfg.SignType != utils.SignTypeHMACSHA256 {
		return fmt.Errorf("unsupported sign type %q", cfg.SignType)
	}
	return nil
}
