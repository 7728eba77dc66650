package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"github.com/ShinyNito/wxcred/core"
	"github.com/ShinyNito/wxcred/officialaccount"
	"github.com/ShinyNito/wxcred/payment"
	"github.com/ShinyNito/wxcred/scheduler"
)

// 定时任务名称
const (
	JobAccessToken = "access_token"
	JobJSAPITicket = "jsapi_ticket"
)

// Option 应用选项
type Option func(*App)

// WithMailer 替换告警邮件的发送方，测试时使用
func WithMailer(m Mailer) Option {
	return func(a *App) {
		a.mailer = m
	}
}

// WithMessageHandler 设置用户消息与事件的处理
func WithMessageHandler(h MessageHandler) Option {
	return func(a *App) {
		a.onMessage = h
	}
}

// WithNotifyHandler 设置支付通知的业务处理
func WithNotifyHandler(h NotifyHandler) Option {
	return func(a *App) {
		a.onPaid = h
	}
}

// App 组装凭证仓库、公众号客户端、调度器与回调服务，并管理它们的生命周期
type App struct {
	cfg       *Config
	logger    *slog.Logger
	redis     redis.UniversalClient
	oa        *officialaccount.Client
	pay       *payment.Client
	scheduler *scheduler.Scheduler
	server    *Server
	mailer    Mailer
	onPaid    NotifyHandler
	onMessage MessageHandler
}

// New 根据配置创建应用，不做任何网络 I/O
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}

	var cache core.Cache
	if cfg.Redis.Enabled() {
		a.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache = core.NewRedisCache(a.redis, cfg.Redis.KeyPrefix)
	}

	httpClient := core.NewHTTPClient(core.DefaultConnectTimeout, cfg.Wechat.HTTPTimeout)

	oa, err := officialaccount.New(officialaccount.Config{
		AppID:      cfg.Wechat.AppID,
		AppSecret:  cfg.Wechat.AppSecret,
		BaseURL:    cfg.Wechat.BaseURL,
		Cache:      cache,
		HTTPClient: httpClient,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create official account client: %w", err)
	}
	a.oa = oa

	if cfg.Payment.Enabled {
		pay, err := payment.New(payment.Config{
			AppID:      cfg.Wechat.AppID,
			MchID:      cfg.Payment.MchID,
			APIKey:     cfg.Payment.APIKey,
			NotifyURL:  cfg.Payment.NotifyURL,
			SignType:   cfg.Payment.SignType,
			BaseURL:    cfg.Payment.BaseURL,
			HTTPClient: httpClient,
			Logger:     a.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create payment client: %w", err)
		}
		a.pay = pay
	}

	schedOpts := []scheduler.Option{
		scheduler.WithLogger(a.logger),
		scheduler.WithJobTimeout(cfg.Schedule.JobTimeout),
	}
	if cfg.Alert.Enabled {
		notifier := NewAlertNotifier(cfg.Alert, cfg.Wechat.AppID, a.mailer, a.logger)
		schedOpts = append(schedOpts, scheduler.WithFailureHook(notifier.Notify))
	}
	a.scheduler = scheduler.New(schedOpts...)

	if err := a.scheduler.Add(JobAccessToken, scheduler.MustHourlyAt(cfg.Schedule.TokenOffset), scheduler.RefreshJob(oa.AccessTokenManager())); err != nil {
		return nil, err
	}
	if err := a.scheduler.Add(JobJSAPITicket, scheduler.MustHourlyAt(cfg.Schedule.TicketOffset), scheduler.RefreshJob(oa.TicketManager())); err != nil {
		return nil, err
	}

	server, err := NewServer(ServerDeps{
		OfficialAccount: oa,
		Payment:         a.pay,
		OnPaid:          a.onPaid,
		OnMessage:       a.onMessage,
		Token:           cfg.Wechat.Token,
		RequireWechat:   cfg.Server.RequireWechatBrowser,
		Logger:          a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	a.server = server

	return a, nil
}

// OfficialAccount 返回公众号客户端
func (a *App) OfficialAccount() *officialaccount.Client {
	return a.oa
}

// Payment 返回支付客户端，未启用支付时为 nil
func (a *App) Payment() *payment.Client {
	return a.pay
}

// Scheduler 返回调度器
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Restore 从共享缓存恢复凭证；Redis 不可用时只记录日志
func (a *App) Restore(ctx context.Context) {
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.logger.WarnContext(ctx, "redis unavailable, skip restore", slog.Any("error", err))
			return
		}
	}
	_ = a.oa.Restore(ctx)
}

// RefreshNow 按 token、ticket 的顺序立即刷新一次，jobs 为空时刷新全部
func (a *App) RefreshNow(ctx context.Context, jobs ...string) error {
	if len(jobs) == 0 {
		jobs = a.scheduler.Jobs()
	}

	var errs []error
	for _, name := range jobs {
		if err := a.scheduler.Trigger(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Start 启动调度器与回调服务，阻塞直到 ctx 结束或服务异常退出，然后按逆序关闭
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error
	if a.redis != nil {
		shutdownFuncs = append(shutdownFuncs, func(context.Context) error { return a.redis.Close() })
	}

	a.Restore(gCtx)

	if err := a.scheduler.Start(gCtx, a.cfg.Schedule.RunOnStart); err != nil {
		a.shutdown(shutdownFuncs, nil)
		return fmt.Errorf("scheduler startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.scheduler.Stop)

	a.logger.InfoContext(gCtx, "starting server", slog.String("address", address))
	serverErrCh, err := a.server.Start(gCtx, address)
	if err != nil {
		a.shutdown(shutdownFuncs, nil)
		return fmt.Errorf("server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)

	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				a.logger.ErrorContext(gCtx, "server runtime error", slog.Any("error", err))
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	a.logger.InfoContext(gCtx, "application ready", slog.String("address", address))

	runtimeErr := g.Wait()
	a.logger.InfoContext(ctx, "shutting down services")
	return a.shutdown(shutdownFuncs, runtimeErr)
}

func (a *App) shutdown(shutdownFuncs []func(context.Context) error, runtimeErr error) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}
	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			a.logger.ErrorContext(shutdownCtx, "service shutdown failed", slog.Any("error", err))
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.logger.Info("application stopped")
	return nil
}

// Close 释放不经过 Start 的资源，用于一次性命令
func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
