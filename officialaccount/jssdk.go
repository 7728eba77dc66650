package officialaccount

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ShinyNito/wxcred/core/utils"
)

const jssdkNonceLength = 16

// JssdkSignRequest JS-SDK 签名请求参数
type JssdkSignRequest struct {
	// URL 当前网页的完整 URL，# 及其后面的部分会被去掉
	URL string
}

// JssdkSignResponse wx.config 所需参数
type JssdkSignResponse struct {
	AppID     string `json:"appId"`
	Timestamp int64  `json:"timestamp"`
	NonceStr  string `json:"nonceStr"`
	Signature string `json:"signature"`
}

// GetJssdkSign 使用当前 jsapi_ticket 生成 JS-SDK 签名
//
// 接口文档: https://developers.weixin.qq.com/doc/offiaccount/OA_Web_Apps/JS-SDK.html#62
//
// 示例:
//
//	resp, err := oa.GetJssdkSign(ctx, officialaccount.JssdkSignRequest{
//	    URL: "https://example.com/path",
//	})
func (c *Client) GetJssdkSign(ctx context.Context, req JssdkSignRequest) (*JssdkSignResponse, error) {
	pageURL, _, _ := strings.Cut(req.URL, "#")
	if strings.TrimSpace(pageURL) == "" {
		return nil, fmt.Errorf("url is required")
	}

	ticket, err := c.tickets.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get jsapi_ticket: %w", err)
	}

	nonceStr, err := utils.RandomString(jssdkNonceLength)
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	timestamp := time.Now().Unix()

	c.cfg.Logger.DebugContext(ctx, "jssdk sign", slog.String("url", pageURL), slog.String("noncestr", nonceStr))

	return &JssdkSignResponse{
		AppID:     c.cfg.AppID,
		Timestamp: timestamp,
		NonceStr:  nonceStr,
		Signature: utils.JSAPISign(ticket, nonceStr, timestamp, pageURL),
	}, nil
}
