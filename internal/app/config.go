package app

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ShinyNito/wxcred/core/utils"
	"github.com/ShinyNito/wxcred/scheduler"
)

// LogFormat 日志输出格式
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// 默认配置
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigServerHost      = "127.0.0.1"
	DefaultConfigServerPort      = 8080
	DefaultConfigShutdownTimeout = 10 * time.Second
	DefaultConfigWechatBaseURL   = "https://api.weixin.qq.com"
	DefaultConfigPaymentBaseURL  = "https://api.mch.weixin.qq.com"
	DefaultConfigHTTPTimeout     = 30 * time.Second
	DefaultConfigRedisKeyPrefix  = "wxcred:"
	DefaultConfigSMTPPort        = 465
	DefaultConfigLogFileMaxSize  = 100 // MB
	DefaultConfigLogFileMaxAge   = 28  // days
)

// ServerConfig 回调服务配置
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"`
	// RequireWechatBrowser 为 true 时 /wechat/jssdk 只接受微信内置浏览器的请求
	RequireWechatBrowser bool `json:"require_wechat_browser"`
}

// ShutdownConfig 优雅退出配置
type ShutdownConfig struct {
	Timeout time.Duration `json:"timeout"`
}

// LogFileConfig 日志文件滚动配置，Path 为空时只输出到 stderr
type LogFileConfig struct {
	Path       string `json:"path"`
	MaxSize    int    `json:"max_size" validate:"gte=0"`
	MaxAge     int    `json:"max_age" validate:"gte=0"`
	MaxBackups int    `json:"max_backups" validate:"gte=0"`
	Compress   bool   `json:"compress"`
}

// WechatConfig 公众号配置
type WechatConfig struct {
	AppID     string `json:"app_id" validate:"required"`
	AppSecret string `json:"app_secret" validate:"required"`
	// Token 服务器配置中的令牌，用于校验回调签名
	Token       string        `json:"token"`
	BaseURL     string        `json:"base_url" validate:"required,url"`
	HTTPTimeout time.Duration `json:"http_timeout" validate:"gte=0"`
}

// PaymentConfig 微信支付配置，Enabled 为 false 时其余字段可为空
type PaymentConfig struct {
	Enabled   bool   `json:"enabled"`
	MchID     string `json:"mch_id" validate:"required_if=Enabled true"`
	APIKey    string `json:"api_key" validate:"required_if=Enabled true"`
	NotifyURL string `json:"notify_url" validate:"omitempty,url"`
	SignType  string `json:"sign_type" validate:"omitempty,oneof=MD5 HMAC-SHA256"`
	BaseURL   string `json:"base_url" validate:"required,url"`
}

// RedisConfig 凭证共享缓存，Addr 为空时不启用
type RedisConfig struct {
	Addr      string `json:"addr" validate:"omitempty,hostname_port"`
	Password  string `json:"password"`
	DB        int    `json:"db" validate:"gte=0"`
	KeyPrefix string `json:"key_prefix"`
}

// Enabled 是否配置了 Redis
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// ScheduleConfig 定时刷新配置，偏移量为每小时内的触发时刻
type ScheduleConfig struct {
	TokenOffset  time.Duration `json:"token_offset"`
	TicketOffset time.Duration `json:"ticket_offset"`
	// RunOnStart 启动时先刷新一次 token 与 ticket
	RunOnStart bool          `json:"run_on_start"`
	JobTimeout time.Duration `json:"job_timeout" validate:"gte=0"`
}

// AlertConfig 刷新失败邮件告警
type AlertConfig struct {
	Enabled  bool     `json:"enabled"`
	SMTPHost string   `json:"smtp_host" validate:"required_if=Enabled true"`
	SMTPPort int      `json:"smtp_port" validate:"gte=0,lte=65535"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	From     string   `json:"from" validate:"required_if=Enabled true"`
	To       []string `json:"to" validate:"required_if=Enabled true,dive,email"`
}

// Config 应用配置
type Config struct {
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json"`
	LogFile   LogFileConfig  `json:"log_file"`
	Server    ServerConfig   `json:"server"`
	Shutdown  ShutdownConfig `json:"shutdown"`
	Wechat    WechatConfig   `json:"wechat"`
	Payment   PaymentConfig  `json:"payment"`
	Redis     RedisConfig    `json:"redis"`
	Schedule  ScheduleConfig `json:"schedule"`
	Alert     AlertConfig    `json:"alert"`
}

// ApplyDefaults 为未设置的字段填充默认值
//
// ticket_offset 为 0 视为未设置，取默认的 30 分钟。
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.LogFile.Path != "" {
		if c.LogFile.MaxSize == 0 {
			c.LogFile.MaxSize = DefaultConfigLogFileMaxSize
		}
		if c.LogFile.MaxAge == 0 {
			c.LogFile.MaxAge = DefaultConfigLogFileMaxAge
		}
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Wechat.BaseURL == "" {
		c.Wechat.BaseURL = DefaultConfigWechatBaseURL
	}
	if c.Wechat.HTTPTimeout == 0 {
		c.Wechat.HTTPTimeout = DefaultConfigHTTPTimeout
	}
	if c.Payment.BaseURL == "" {
		c.Payment.BaseURL = DefaultConfigPaymentBaseURL
	}
	if c.Payment.SignType == "" {
		c.Payment.SignType = utils.SignTypeMD5
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultConfigRedisKeyPrefix
	}
	if c.Schedule.TicketOffset == 0 {
		c.Schedule.TicketOffset = scheduler.DefaultTicketOffset
	}
	if c.Schedule.JobTimeout == 0 {
		c.Schedule.JobTimeout = scheduler.DefaultJobTimeout
	}
	if c.Alert.SMTPPort == 0 {
		c.Alert.SMTPPort = DefaultConfigSMTPPort
	}
	return nil
}

// Validate 按 struct tag 校验配置，再检查字段之间的约束
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if _, err := scheduler.HourlyAt(c.Schedule.TokenOffset); err != nil {
		return fmt.Errorf("schedule.token_offset: %w", err)
	}
	if _, err := scheduler.HourlyAt(c.Schedule.TicketOffset); err != nil {
		return fmt.Errorf("schedule.ticket_offset: %w", err)
	}
	if c.Schedule.TokenOffset == c.Schedule.TicketOffset {
		return errors.New("schedule.token_offset and schedule.ticket_offset must differ")
	}

	return nil
}
