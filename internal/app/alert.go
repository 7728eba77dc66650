package app

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"
)

// Mailer 发送邮件，*gomail.Dialer 实现了该接口
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// AlertNotifier 凭证刷新失败时发送告警邮件
type AlertNotifier struct {
	cfg    AlertConfig
	appID  string
	mailer Mailer
	logger *slog.Logger
	now    func() time.Time
}

// NewAlertNotifier 创建邮件告警，mailer 为 nil 时按 SMTP 配置创建 gomail.Dialer
func NewAlertNotifier(cfg AlertConfig, appID string, mailer Mailer, logger *slog.Logger) *AlertNotifier {
	if mailer == nil {
		mailer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertNotifier{
		cfg:    cfg,
		appID:  appID,
		mailer: mailer,
		logger: logger,
		now:    time.Now,
	}
}

func (n *AlertNotifier) message(job string, err error) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", n.cfg.From, "wxcred")
	m.SetHeader("To", n.cfg.To...)
	m.SetHeader("Subject", fmt.Sprintf("[wxcred] %s 刷新失败 (%s)", job, n.appID))
	m.SetBody("text/html", n.body(job, err))
	return m
}

func (n *AlertNotifier) body(job string, err error) string {
	return fmt.Sprintf(
		"<h2>%s 刷新失败</h2><p>AppID: %s</p><p>时间: %s</p><pre>%s</pre><p>当前凭证保持旧值，下一次定时刷新会重试。</p>",
		html.EscapeString(job),
		html.EscapeString(n.appID),
		n.now().Format(time.DateTime),
		html.EscapeString(err.Error()),
	)
}

// Notify 发送告警，签名与 scheduler.FailureHook 一致；发送失败只记录日志
func (n *AlertNotifier) Notify(ctx context.Context, job string, err error) {
	if sendErr := n.mailer.DialAndSend(n.message(job, err)); sendErr != nil {
		n.logger.ErrorContext(ctx, "send alert mail failed",
			slog.String("job", job),
			slog.Any("error", sendErr),
		)
		return
	}
	n.logger.InfoContext(ctx, "alert mail sent", slog.String("job", job), slog.Any("to", n.cfg.To))
}
