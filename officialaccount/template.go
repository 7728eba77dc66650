package officialaccount

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShinyNito/wxcred/core"
)

const (
	sendTemplateMessagePath = "/cgi-bin/message/template/send"

	// DefaultTemplateColor 模板数据未指定颜色时使用
	DefaultTemplateColor = "#000000"
)

// TemplateData 模板消息中单个字段
type TemplateData struct {
	Value string `json:"value"`
	Color string `json:"color,omitempty"`
}

// MiniProgram 模板消息跳转的小程序
type MiniProgram struct {
	AppID    string `json:"appid"`
	PagePath string `json:"pagepath,omitempty"`
}

// TemplateMessage 模板消息
type TemplateMessage struct {
	ToUser      string                  `json:"touser"`
	TemplateID  string                  `json:"template_id"`
	URL         string                  `json:"url,omitempty"`
	MiniProgram *MiniProgram            `json:"miniprogram,omitempty"`
	ClientMsgID string                  `json:"client_msg_id,omitempty"`
	Data        map[string]TemplateData `json:"data"`
}

// PutData 设置字段值，颜色为默认的黑色
func (m *TemplateMessage) PutData(key, value string) *TemplateMessage {
	return m.PutColoredData(key, value, DefaultTemplateColor)
}

// PutColoredData 设置字段值与颜色
func (m *TemplateMessage) PutColoredData(key, value, color string) *TemplateMessage {
	if m.Data == nil {
		m.Data = make(map[string]TemplateData)
	}
	m.Data[key] = TemplateData{Value: value, Color: color}
	return m
}

type sendTemplateMessageResponse struct {
	MsgID int64 `json:"msgid"`
}

// SendTemplateMessage 发送模板消息，返回消息 id
//
// 接口文档: https://developers.weixin.qq.com/doc/offiaccount/Message_Management/Template_Message_Interface.html
func (c *Client) SendTemplateMessage(ctx context.Context, msg *TemplateMessage) (int64, error) {
	if msg == nil {
		return 0, fmt.Errorf("message is nil")
	}
	if strings.TrimSpace(msg.ToUser) == "" {
		return 0, fmt.Errorf("touser is required")
	}
	if strings.TrimSpace(msg.TemplateID) == "" {
		return 0, fmt.Errorf("template_id is required")
	}

	resp, err := Request[sendTemplateMessageResponse](c).
		Path(sendTemplateMessagePath).
		Body(msg).
		Kind(core.ErrorKindSendTemplateMessage).
		Post(ctx)
	if err != nil {
		return 0, err
	}
	return resp.MsgID, nil
}
