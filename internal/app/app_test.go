package app

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShinyNito/wxcred/core"
	"github.com/ShinyNito/wxcred/officialaccount"
)

func testAppConfig(t *testing.T, wechat *fakeWechat) *Config {
	t.Helper()
	cfg := &Config{
		Wechat: WechatConfig{
			AppID:     "wxd930ea5d5a258f4f",
			AppSecret: "secret",
			Token:     testToken,
			BaseURL:   wechat.server.URL,
		},
	}
	require.NoError(t, cfg.ApplyDefaults())
	return cfg
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
}

func TestApp_RefreshNow(t *testing.T) {
	wechat := newFakeWechat(t)
	a, err := New(testAppConfig(t, wechat))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{JobAccessToken, JobJSAPITicket}, a.Scheduler().Jobs())
	assert.Nil(t, a.Payment())

	require.NoError(t, a.RefreshNow(context.Background()))

	store := a.OfficialAccount().Store()
	token, err := store.AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "ACCESS", token)
	ticket, err := store.Ticket()
	require.NoError(t, err)
	assert.Equal(t, "TICKET", ticket)
}

func TestApp_RefreshFailureSendsAlert(t *testing.T) {
	wechat := newFakeWechat(t)
	cfg := testAppConfig(t, wechat)
	cfg.Alert = AlertConfig{
		Enabled:  true,
		SMTPHost: "smtp.example.com",
		SMTPPort: 465,
		From:     "ops@example.com",
		To:       []string{"a@example.com"},
	}
	mailer := &fakeMailer{}

	a, err := New(cfg, WithMailer(mailer))
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	require.NoError(t, a.RefreshNow(ctx))

	wechat.setFailTicket(true)
	err = a.RefreshNow(ctx, JobJSAPITicket)
	require.Error(t, err)
	assert.Equal(t, core.ErrorKindGetJSAPITicket, core.KindOf(err))

	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0].GetHeader("Subject")[0], JobJSAPITicket)

	ticket, err := a.OfficialAccount().Store().Ticket()
	require.NoError(t, err)
	assert.Equal(t, "TICKET", ticket, "刷新失败时保留旧值")
}

func TestApp_PaymentEnabled(t *testing.T) {
	cfg := testAppConfig(t, newFakeWechat(t))
	cfg.Payment.Enabled = true
	cfg.Payment.MchID = "10000100"
	cfg.Payment.APIKey = testAPIKey

	a, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, a.Payment())
	assert.Equal(t, "10000100", a.Payment().Config().MchID)
}

func TestApp_MessageHandlerWired(t *testing.T) {
	a, err := New(testAppConfig(t, newFakeWechat(t)), WithMessageHandler(
		func(ctx context.Context, msg *officialaccount.Message) (*officialaccount.Reply, error) {
			return officialaccount.TextReply("hi"), nil
		},
	))
	require.NoError(t, err)
	defer a.Close()

	req := httptest.NewRequest(http.MethodPost, "/wechat?"+signedQuery(testToken).Encode(), strings.NewReader(inboundText))
	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), "<Content><![CDATA[hi]]></Content>")
}

// 第二个进程从 Redis 恢复凭证，不再请求微信
func TestApp_RestoreFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	wechat := newFakeWechat(t)
	ctx := context.Background()

	cfg := testAppConfig(t, wechat)
	cfg.Redis.Addr = mr.Addr()

	first, err := New(cfg)
	require.NoError(t, err)
	defer first.Close()
	require.NoError(t, first.RefreshNow(ctx))
	require.Equal(t, 1, wechat.callCount("/cgi-bin/token"))

	second, err := New(cfg)
	require.NoError(t, err)
	defer second.Close()
	second.Restore(ctx)

	token, err := second.OfficialAccount().AccessTokenManager().GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ACCESS", token)
	ticket, err := second.OfficialAccount().Store().Ticket()
	require.NoError(t, err)
	assert.Equal(t, "TICKET", ticket)
	assert.Equal(t, 1, wechat.callCount("/cgi-bin/token"))
}

func TestApp_RestoreRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testAppConfig(t, newFakeWechat(t))
	cfg.Redis.Addr = mr.Addr()
	mr.Close()

	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.NotPanics(t, func() { a.Restore(context.Background()) })
	_, err = a.OfficialAccount().Store().AccessToken()
	assert.ErrorIs(t, err, core.ErrUninitializedCredential)
}

func freePort(t *testing.T) uint16 {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return uint16(port)
}

func TestApp_StartAndShutdown(t *testing.T) {
	wechat := newFakeWechat(t)
	cfg := testAppConfig(t, wechat)
	cfg.Server.Port = freePort(t)
	cfg.Schedule.RunOnStart = true
	cfg.Shutdown.Timeout = 2 * time.Second

	a, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()

	healthURL := "http://127.0.0.1:" + strconv.FormatUint(uint64(cfg.Server.Port), 10) + "/healthz"
	assert.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond, "启动时已刷新凭证")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

// 调度器启动失败时也要关闭已创建的 Redis 连接
func TestApp_StartSchedulerFailureClosesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testAppConfig(t, newFakeWechat(t))
	cfg.Redis.Addr = mr.Addr()
	cfg.Server.Port = freePort(t)

	a, err := New(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.Scheduler().Start(ctx, false))
	defer a.Scheduler().Stop(ctx)

	assert.ErrorContains(t, a.Start(ctx), "scheduler startup failed")
	assert.ErrorContains(t, a.redis.Ping(ctx).Err(), "closed")
}

func TestApp_StartPortInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := testAppConfig(t, newFakeWechat(t))
	cfg.Server.Port = uint16(l.Addr().(*net.TCPAddr).Port)

	a, err := New(cfg)
	require.NoError(t, err)
	assert.ErrorContains(t, a.Start(context.Background()), "server startup failed")
}
