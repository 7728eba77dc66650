package payment

import (
	"fmt"
	"strconv"
	"strings"
)

// JSAPIPayParams 网页端调起支付 WeixinJSBridge.invoke("getBrandWCPayRequest") 的参数
type JSAPIPayParams struct {
	AppID     string `json:"appId"`
	TimeStamp string `json:"timeStamp"`
	NonceStr  string `json:"nonceStr"`
	Package   string `json:"package"`
	SignType  string `json:"signType"`
	PaySign   string `json:"paySign"`
}

// JSAPIPayParams 根据 prepay_id 生成前端调起支付所需的签名参数
func (c *Client) JSAPIPayParams(prepayID string) (*JSAPIPayParams, error) {
	if strings.TrimSpace(prepayID) == "" {
		return nil, fmt.Errorf("prepay_id is required")
	}

	p := &JSAPIPayParams{
		AppID:     c.cfg.AppID,
		TimeStamp: strconv.FormatInt(c.now().Unix(), 10),
		NonceStr:  c.nonce(),
		Package:   "prepay_id=" + prepayID,
		SignType:  c.cfg.SignType,
	}

	sign, err := c.Sign(Params{
		"appId":     p.AppID,
		"timeStamp": p.TimeStamp,
		"nonceStr":  p.NonceStr,
		"package":   p.Package,
		"signType":  p.SignType,
	})
	if err != nil {
		return nil, err
	}
	p.PaySign = sign
	return p, nil
}
