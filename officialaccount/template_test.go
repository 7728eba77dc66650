package officialaccount

import (
	"context"
	"net/http"
	"testing"

	"github.com/ShinyNito/wxcred/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateMessage_PutData(t *testing.T) {
	msg := &TemplateMessage{ToUser: "o1", TemplateID: "T1"}
	msg.PutData("first", "恭喜你购买成功！").PutColoredData("remark", "欢迎再次购买！", "#173177")

	assert.Equal(t, TemplateData{Value: "恭喜你购买成功！", Color: "#000000"}, msg.Data["first"])
	assert.Equal(t, TemplateData{Value: "欢迎再次购买！", Color: "#173177"}, msg.Data["remark"])
}

func TestSendTemplateMessage(t *testing.T) {
	f := newFakeWechat(t)
	f.handle(sendTemplateMessagePath, func(w http.ResponseWriter, r *http.Request) {
		body := readJSON(t, r)
		assert.Equal(t, "OPENID", body["touser"])
		assert.Equal(t, "ngqIpbwh8bUfcSsECmogfXcV14J0tQlEpBO27izEYtY", body["template_id"])
		assert.Equal(t, "http://weixin.qq.com/download?a=1&b=2", body["url"])
		data := body["data"].(map[string]any)
		assert.Equal(t, map[string]any{"value": "巧克力", "color": "#000000"}, data["keyword1"])
		writeJSON(w, map[string]any{"errcode": 0, "errmsg": "ok", "msgid": 200228332})
	})
	c := f.newClient()

	msg := &TemplateMessage{
		ToUser:     "OPENID",
		TemplateID: "ngqIpbwh8bUfcSsECmogfXcV14J0tQlEpBO27izEYtY",
		URL:        "http://weixin.qq.com/download?a=1&b=2",
	}
	msgID, err := c.SendTemplateMessage(context.Background(), msg.PutData("keyword1", "巧克力"))
	require.NoError(t, err)
	assert.Equal(t, int64(200228332), msgID)
}

func TestSendTemplateMessage_Errors(t *testing.T) {
	f := newFakeWechat(t)
	f.handleJSON(sendTemplateMessagePath, map[string]any{"errcode": 40037, "errmsg": "invalid template_id"})
	c := f.newClient()
	ctx := context.Background()

	_, err := c.SendTemplateMessage(ctx, nil)
	require.Error(t, err)
	_, err = c.SendTemplateMessage(ctx, &TemplateMessage{TemplateID: "T"})
	require.Error(t, err)
	_, err = c.SendTemplateMessage(ctx, &TemplateMessage{ToUser: "o1"})
	require.Error(t, err)
	assert.Equal(t, 0, f.callCount(sendTemplateMessagePath))

	_, err = c.SendTemplateMessage(ctx, &TemplateMessage{ToUser: "o1", TemplateID: "bad"})
	var we *core.WechatError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, core.ErrorKindSendTemplateMessage, we.Kind)
	assert.Equal(t, "40037", we.ErrCode)
}
