package app

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeMailer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeMailer) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func testAlertConfig() AlertConfig {
	return AlertConfig{
		Enabled:  true,
		SMTPHost: "smtp.example.com",
		SMTPPort: 465,
		From:     "ops@example.com",
		To:       []string{"a@example.com", "b@example.com"},
	}
}

func TestAlertNotifier_Notify(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewAlertNotifier(testAlertConfig(), "wx123", mailer, nil)
	n.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	n.Notify(context.Background(), "access_token", errors.New("wechat GET_ACCESS_TOKEN_ERROR: [40013] <invalid appid>"))

	require.Len(t, mailer.sent, 1)
	m := mailer.sent[0]
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, m.GetHeader("To"))
	assert.Contains(t, m.GetHeader("Subject")[0], "access_token")
	assert.Contains(t, m.GetHeader("Subject")[0], "wx123")

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/html")

	body := n.body("access_token", errors.New("wechat GET_ACCESS_TOKEN_ERROR: [40013] <invalid appid>"))
	assert.Contains(t, body, "2026-03-01 10:00:00")
	assert.Contains(t, body, "&lt;invalid appid&gt;")
	assert.Contains(t, body, "AppID: wx123")
}

func TestAlertNotifier_SendFailureIsLogged(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	n := NewAlertNotifier(testAlertConfig(), "wx123", mailer, nil)

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), "jsapi_ticket", errors.New("boom"))
	})
	assert.Empty(t, mailer.sent)
}
