package payment

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/ShinyNito/wxcred/core"
	"github.com/ShinyNito/wxcred/core/utils"
)

// UnifiedOrderRequest 统一下单业务参数
// appid、mch_id、nonce_str、sign_type、sign 由客户端填充
type UnifiedOrderRequest struct {
	Body           string
	Detail         string
	Attach         string
	OutTradeNo     string
	FeeType        string
	TotalFee       int // 单位为分
	SpbillCreateIP string
	TimeStart      string
	TimeExpire     string
	GoodsTag       string
	NotifyURL      string // 为空时使用配置中的地址
	TradeType      string // 默认 JSAPI
	ProductID      string
	OpenID         string // JSAPI 支付必填
	DeviceInfo     string
}

// UnifiedOrderResponse 统一下单返回
type UnifiedOrderResponse struct {
	XMLName    xml.Name `xml:"xml"`
	ReturnCode string   `xml:"return_code"`
	ReturnMsg  string   `xml:"return_msg"`
	AppID      string   `xml:"appid"`
	MchID      string   `xml:"mch_id"`
	DeviceInfo string   `xml:"device_info"`
	NonceStr   string   `xml:"nonce_str"`
	Sign       string   `xml:"sign"`
	ResultCode string   `xml:"result_code"`
	ErrCode    string   `xml:"err_code"`
	ErrCodeDes string   `xml:"err_code_des"`
	TradeType  string   `xml:"trade_type"`
	PrepayID   string   `xml:"prepay_id"`
	CodeURL    string   `xml:"code_url"`
}

func (r *UnifiedOrderRequest) validate() error {
	if strings.TrimSpace(r.Body) == "" {
		return fmt.Errorf("body is required")
	}
	if strings.TrimSpace(r.OutTradeNo) == "" {
		return fmt.Errorf("out_trade_no is required")
	}
	if r.TotalFee <= 0 {
		return fmt.Errorf("total_fee must be positive")
	}
	if strings.TrimSpace(r.SpbillCreateIP) == "" {
		return fmt.Errorf("spbill_create_ip is required")
	}
	if (r.TradeType == "" || r.TradeType == TradeTypeJSAPI) && strings.TrimSpace(r.OpenID) == "" {
		return fmt.Errorf("openid is required for JSAPI trade")
	}
	return nil
}

// SignedParams 返回填充公共字段并签名后的请求参数
func (c *Client) SignedParams(req *UnifiedOrderRequest) (Params, error) {
	tradeType := req.TradeType
	if tradeType == "" {
		tradeType = TradeTypeJSAPI
	}
	notifyURL := req.NotifyURL
	if notifyURL == "" {
		notifyURL = c.cfg.NotifyURL
	}

	params := Params{
		"appid":            c.cfg.AppID,
		"mch_id":           c.cfg.MchID,
		"device_info":      req.DeviceInfo,
		"nonce_str":        c.nonce(),
		"sign_type":        c.cfg.SignType,
		"body":             req.Body,
		"detail":           req.Detail,
		"attach":           req.Attach,
		"out_trade_no":     req.OutTradeNo,
		"fee_type":         req.FeeType,
		"total_fee":        strconv.Itoa(req.TotalFee),
		"spbill_create_ip": req.SpbillCreateIP,
		"time_start":       req.TimeStart,
		"time_expire":      req.TimeExpire,
		"goods_tag":        req.GoodsTag,
		"notify_url":       notifyURL,
		"trade_type":       tradeType,
		"product_id":       req.ProductID,
		"openid":           req.OpenID,
	}

	sign, err := c.Sign(params)
	if err != nil {
		return nil, err
	}
	params["sign"] = sign
	return params, nil
}

// UnifiedOrder 统一下单
//
// 接口文档: https://pay.weixin.qq.com/wiki/doc/api/jsapi.php?chapter=9_1
func (c *Client) UnifiedOrder(ctx context.Context, req *UnifiedOrderRequest) (*UnifiedOrderResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	params, err := c.SignedParams(req)
	if err != nil {
		return nil, core.NewSystemError(core.ErrorKindUnifiedOrder, err)
	}

	resp, err := c.api.Request().
		Path(unifiedOrderPath).
		WithoutToken().
		Format(core.FormatXML).
		Kind(core.ErrorKindUnifiedOrder).
		Body(params).
		Post(ctx)
	if err != nil {
		return nil, err
	}

	out, err := core.Decode[UnifiedOrderResponse](core.ErrorKindUnifiedOrder, core.FormatXML, resp.StatusCode, resp.Body)
	if err != nil {
		return nil, err
	}

	respParams, err := ParseParams(resp.Body)
	if err != nil {
		return nil, core.NewSystemError(core.ErrorKindUnifiedOrder, err)
	}
	if !utils.VerifyPaySign(respParams, c.cfg.APIKey, c.cfg.SignType) {
		return nil, core.NewWechatError(core.ErrorKindUnifiedOrder, ErrCodeSignError, "响应签名校验失败")
	}
	return &out, nil
}
