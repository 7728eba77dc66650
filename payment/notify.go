package payment

import (
	"encoding/xml"
	"strconv"

	"github.com/ShinyNito/wxcred/core"
	"github.com/ShinyNito/wxcred/core/utils"
)

// ErrCodeSignError 本地签名校验失败时使用的错误码
const ErrCodeSignError = "SIGNERROR"

// Notify 支付结果通知
type Notify struct {
	XMLName            xml.Name `xml:"xml"`
	ReturnCode         string   `xml:"return_code"`
	ReturnMsg          string   `xml:"return_msg"`
	AppID              string   `xml:"appid"`
	MchID              string   `xml:"mch_id"`
	DeviceInfo         string   `xml:"device_info"`
	NonceStr           string   `xml:"nonce_str"`
	Sign               string   `xml:"sign"`
	SignType           string   `xml:"sign_type"`
	ResultCode         string   `xml:"result_code"`
	ErrCode            string   `xml:"err_code"`
	ErrCodeDes         string   `xml:"err_code_des"`
	OpenID             string   `xml:"openid"`
	IsSubscribe        string   `xml:"is_subscribe"`
	TradeType          string   `xml:"trade_type"`
	BankType           string   `xml:"bank_type"`
	TotalFee           int      `xml:"total_fee"`
	SettlementTotalFee int      `xml:"settlement_total_fee"`
	FeeType            string   `xml:"fee_type"`
	CashFee            int      `xml:"cash_fee"`
	CashFeeType        string   `xml:"cash_fee_type"`
	CouponFee          int      `xml:"coupon_fee"`
	CouponCount        int      `xml:"coupon_count"`
	TransactionID      string   `xml:"transaction_id"`
	OutTradeNo         string   `xml:"out_trade_no"`
	Attach             string   `xml:"attach"`
	TimeEnd            string   `xml:"time_end"`

	// Params 报文中的全部字段，包括 coupon_id_$n 等动态字段
	Params Params `xml:"-"`
}

// IsPaid 支付是否成功
func (n *Notify) IsPaid() bool {
	return n.ReturnCode == core.ReturnCodeSuccess && n.ResultCode == core.ReturnCodeSuccess
}

// ParseNotify 解析并校验支付结果通知
//
// return_code 非 SUCCESS 或签名校验失败时返回 PAY_NOTIFY_ERROR 错误；
// result_code 为 FAIL 的通知仍然是合法通知，由调用方通过 IsPaid 判断。
func (c *Client) ParseNotify(body []byte) (*Notify, error) {
	params, err := ParseParams(body)
	if err != nil {
		return nil, core.NewSystemError(core.ErrorKindPayNotify, err)
	}

	if params["return_code"] != core.ReturnCodeSuccess {
		return nil, core.NewWechatError(core.ErrorKindPayNotify, params["return_code"], params["return_msg"])
	}
	if params["appid"] != c.cfg.AppID || params["mch_id"] != c.cfg.MchID {
		return nil, core.NewWechatError(core.ErrorKindPayNotify, core.ReturnCodeFail, "appid 或 mch_id 不匹配")
	}
	if !utils.VerifyPaySign(params, c.cfg.APIKey, "") {
		return nil, core.NewWechatError(core.ErrorKindPayNotify, ErrCodeSignError, "签名错误")
	}

	var n Notify
	if err := xml.Unmarshal(body, &n); err != nil {
		return nil, core.NewSystemError(core.ErrorKindPayNotify, core.NewResponseParseError(body, err))
	}
	n.Params = params
	return &n, nil
}

// Coupon 第 n 张代金券的信息
func (n *Notify) Coupon(i int) (id, couponType string, fee int) {
	suffix := "_" + strconv.Itoa(i)
	fee, _ = strconv.Atoi(n.Params["coupon_fee"+suffix])
	return n.Params["coupon_id"+suffix], n.Params["coupon_type"+suffix], fee
}

type notifyAck struct {
	XMLName    xml.Name   `xml:"xml"`
	ReturnCode core.CDATA `xml:"return_code"`
	ReturnMsg  core.CDATA `xml:"return_msg"`
}

// NotifyAck 生成给微信的通知应答
// ok 为 true 时返回 SUCCESS/OK，否则返回 FAIL 与 msg
func NotifyAck(ok bool, msg string) []byte {
	code, reply := core.ReturnCodeSuccess, "OK"
	if !ok {
		code, reply = core.ReturnCodeFail, msg
	}
	ack := notifyAck{ReturnCode: core.CDATA{Value: code}, ReturnMsg: core.CDATA{Value: reply}}

	raw, _ := xml.Marshal(ack)
	return raw
}
