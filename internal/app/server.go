package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ShinyNito/wxcred/core"
	"github.com/ShinyNito/wxcred/core/utils"
	"github.com/ShinyNito/wxcred/officialaccount"
	"github.com/ShinyNito/wxcred/payment"
)

const (
	wechatBrowserUA = "micromessenger"
	maxNotifyBody   = 64 << 10
	maxMessageBody  = 64 << 10
)

// MessageHandler 处理用户消息与事件推送，返回 nil 时不做被动回复
type MessageHandler func(ctx context.Context, msg *officialaccount.Message) (*officialaccount.Reply, error)

// NotifyHandler 处理已通过签名校验的支付结果通知，返回错误时应答 FAIL，微信会重发
type NotifyHandler func(ctx context.Context, n *payment.Notify) error

// ServerDeps 回调服务依赖
type ServerDeps struct {
	OfficialAccount *officialaccount.Client
	// Payment 为 nil 时不注册支付通知路由
	Payment       *payment.Client
	OnPaid        NotifyHandler
	OnMessage     MessageHandler
	Token         string
	RequireWechat bool
	Logger        *slog.Logger
}

// Server 接收微信回调并对网页提供 JS-SDK 签名
type Server struct {
	deps   ServerDeps
	engine *gin.Engine
	server *http.Server
	logger *slog.Logger
}

// NewServer 创建回调服务并注册路由
func NewServer(deps ServerDeps) (*Server, error) {
	if deps.OfficialAccount == nil {
		return nil, errors.New("official account client is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		deps:   deps,
		engine: gin.New(),
		logger: deps.Logger,
	}
	s.engine.Use(gin.Recovery(), s.accessLog())
	s.routes()
	return s, nil
}

// Handler 返回 http.Handler，测试时使用
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)

	wechat := s.engine.Group("/wechat")
	wechat.GET("", s.verifySignature, s.handleEcho)
	wechat.POST("", s.verifySignature, s.handleMessage)

	jssdk := wechat.Group("/jssdk")
	if s.deps.RequireWechat {
		jssdk.Use(requireWechatBrowser())
	}
	jssdk.GET("", s.handleJSSDK)

	if s.deps.Payment != nil {
		wechat.POST("/pay/notify", s.handlePayNotify)
	}
}

// accessLog 记录请求日志，查询参数中的敏感字段会被脱敏
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.DebugContext(c.Request.Context(), "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Any("query", core.RedactValues(c.Request.URL.Query())),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}

// requireWechatBrowser 只放行 User-Agent 中包含 MicroMessenger 的请求
func requireWechatBrowser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(strings.ToLower(c.GetHeader("User-Agent")), wechatBrowserUA) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "please open in WeChat"})
			return
		}
		c.Next()
	}
}

// verifySignature 校验微信服务器的签名，未配置 token 时拒绝所有请求
func (s *Server) verifySignature(c *gin.Context) {
	if s.deps.Token == "" ||
		!utils.VerifySignature(c.Query("signature"), c.Query("timestamp"), c.Query("nonce"), s.deps.Token) {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.Next()
}

func (s *Server) handleEcho(c *gin.Context) {
	c.String(http.StatusOK, c.Query("echostr"))
}

// handleMessage 交给 OnMessage 处理并输出被动回复
// 解析或处理失败时同样回复 success，避免微信重试
func (s *Server) handleMessage(c *gin.Context) {
	if s.deps.OnMessage == nil {
		c.String(http.StatusOK, "success")
		return
	}

	ctx := c.Request.Context()
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMessageBody))
	if err != nil {
		c.String(http.StatusOK, "success")
		return
	}

	msg, err := officialaccount.ParseMessage(body)
	if err != nil {
		s.logger.WarnContext(ctx, "invalid wechat message", slog.Any("error", err))
		c.String(http.StatusOK, "success")
		return
	}

	reply, err := s.deps.OnMessage(ctx, msg)
	if err != nil {
		s.logger.ErrorContext(ctx, "handle wechat message failed",
			slog.String("msg_type", msg.MsgType),
			slog.String("event", msg.Event),
			slog.Any("error", err),
		)
		c.String(http.StatusOK, "success")
		return
	}
	if reply == nil {
		c.String(http.StatusOK, "success")
		return
	}

	raw, err := reply.Render(msg, time.Now())
	if err != nil {
		s.logger.ErrorContext(ctx, "render reply failed", slog.String("reply_type", reply.MsgType()), slog.Any("error", err))
		c.String(http.StatusOK, "success")
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", raw)
}

func (s *Server) handleJSSDK(c *gin.Context) {
	pageURL := c.Query("url")
	if pageURL == "" {
		pageURL = c.GetHeader("Referer")
	}
	if pageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	sign, err := s.deps.OfficialAccount.GetJssdkSign(c.Request.Context(), officialaccount.JssdkSignRequest{URL: pageURL})
	if err != nil {
		s.logger.ErrorContext(c.Request.Context(), "jssdk sign failed", slog.Any("error", err))
		status := http.StatusBadGateway
		if errors.Is(err, core.ErrUninitializedCredential) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "jssdk sign unavailable"})
		return
	}
	c.JSON(http.StatusOK, sign)
}

func (s *Server) handlePayNotify(c *gin.Context) {
	ctx := c.Request.Context()
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotifyBody))
	if err != nil {
		s.writeAck(c, false, "读取请求失败")
		return
	}

	n, err := s.deps.Payment.ParseNotify(body)
	if err != nil {
		s.logger.WarnContext(ctx, "invalid pay notify", slog.Any("error", err))
		msg := "报文错误"
		if we, ok := errors.AsType[*core.WechatError](err); ok && we.ErrCode == payment.ErrCodeSignError {
			msg = "签名错误"
		}
		s.writeAck(c, false, msg)
		return
	}

	s.logger.InfoContext(ctx, "pay notify",
		slog.String("out_trade_no", n.OutTradeNo),
		slog.String("transaction_id", n.TransactionID),
		slog.String("result_code", n.ResultCode),
		slog.Int("total_fee", n.TotalFee),
	)

	if s.deps.OnPaid != nil {
		if err := s.deps.OnPaid(ctx, n); err != nil {
			s.logger.ErrorContext(ctx, "handle pay notify failed",
				slog.String("out_trade_no", n.OutTradeNo),
				slog.Any("error", err),
			)
			s.writeAck(c, false, "处理失败")
			return
		}
	}
	s.writeAck(c, true, "")
}

func (s *Server) writeAck(c *gin.Context, ok bool, msg string) {
	c.Data(http.StatusOK, "text/xml; charset=utf-8", payment.NotifyAck(ok, msg))
}

func (s *Server) handleHealth(c *gin.Context) {
	store := s.deps.OfficialAccount.Store()
	status := http.StatusOK
	body := gin.H{"status": "ok"}

	for _, kind := range []core.CredentialKind{core.CredentialAccessToken, core.CredentialJSAPITicket} {
		cred, err := store.Snapshot(kind)
		if err != nil {
			body[kind.String()] = gin.H{"initialized": false}
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			continue
		}
		expired := cred.IsExpired(store.Now())
		body[kind.String()] = gin.H{
			"initialized": true,
			"expired":     expired,
			"issued_at":   cred.IssuedAt,
			"expires_at":  cred.ExpiresAt,
		}
	}
	c.JSON(status, body)
}

// Start 同步监听地址后在后台提供服务，返回的 channel 在服务异常退出时收到错误
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown 优雅关闭，超时后强制关闭
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
