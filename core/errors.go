package core

import (
	"errors"
	"fmt"
)

// ErrorKind 微信接口调用的操作类型
// 每个由客户端产生的错误都会带上发起调用的操作类型
type ErrorKind int

const (
	ErrorKindSystem ErrorKind = iota
	ErrorKindGetAccessToken
	ErrorKindFetchUserInfo
	ErrorKindGetJSAPITicket
	ErrorKindGetOAuthCode
	ErrorKindGetOAuthAccessToken
	ErrorKindGetTemporaryMedia
	ErrorKindSendTemplateMessage
	ErrorKindDeleteMenu
	ErrorKindCreateMenu
	ErrorKindBatchFetchUserInfo
	ErrorKindUnifiedOrder
	ErrorKindPayNotify
)

var errorKindNames = map[ErrorKind]string{
	ErrorKindSystem:              "SYSTEM_ERROR",
	ErrorKindGetAccessToken:      "GET_ACCESS_TOKEN_ERROR",
	ErrorKindFetchUserInfo:       "FETCH_USER_INFO_ERROR",
	ErrorKindGetJSAPITicket:      "GET_JS_API_TICKET_ERROR",
	ErrorKindGetOAuthCode:        "GET_OAUTH_CODE_ERROR",
	ErrorKindGetOAuthAccessToken: "GET_OAUTH_ACCESS_TOKEN_ERROR",
	ErrorKindGetTemporaryMedia:   "GET_TEMPORARY_MEDIA_ERROR",
	ErrorKindSendTemplateMessage: "SEND_TEMPLATE_MESSAGE_ERROR",
	ErrorKindDeleteMenu:          "DELETE_MENU_ERROR",
	ErrorKindCreateMenu:          "CREATE_MENU_ERROR",
	ErrorKindBatchFetchUserInfo:  "BATCH_FETCH_USER_INFO_ERROR",
	ErrorKindUnifiedOrder:        "UNIFIED_ORDER_ERROR",
	ErrorKindPayNotify:           "PAY_NOTIFY_ERROR",
}

// 面向用户/日志的错误描述，仅用于展示，不参与控制流
var errorKindMessages = map[ErrorKind]string{
	ErrorKindSystem:              "系统异常",
	ErrorKindGetAccessToken:      "获取access_token错误",
	ErrorKindFetchUserInfo:       "获取用户基本信息错误",
	ErrorKindGetJSAPITicket:      "获取jsapi_ticket错误",
	ErrorKindGetOAuthCode:        "网页授权获取code错误",
	ErrorKindGetOAuthAccessToken: "通过code换取网页授权access_token错误",
	ErrorKindGetTemporaryMedia:   "获取临时素材错误",
	ErrorKindSendTemplateMessage: "发送模板消息错误",
	ErrorKindDeleteMenu:          "删除自定义菜单错误",
	ErrorKindCreateMenu:          "创建自定义菜单错误",
	ErrorKindBatchFetchUserInfo:  "批量抓取用户信息错误",
	ErrorKindUnifiedOrder:        "微信支付统一下单错误",
	ErrorKindPayNotify:           "微信支付结果通知错误",
}

// String 返回操作类型的枚举名，例如 GET_ACCESS_TOKEN_ERROR
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Message 返回操作类型对应的中文描述
func (k ErrorKind) Message() string {
	if msg, ok := errorKindMessages[k]; ok {
		return msg
	}
	return errorKindMessages[ErrorKindSystem]
}

// MarshalText 序列化为枚举名
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// SystemErrorCode 系统错误使用的错误码
const SystemErrorCode = "error"

// WechatError 微信 API 错误
//
// Kind 为 ErrorKindSystem 时表示传输层/解析失败，此时 Op 记录发起调用的操作；
// 其余 Kind 表示微信返回了非 0 的 errcode，ErrCode/ErrMsg 原样保留。
type WechatError struct {
	Kind    ErrorKind `json:"error_type"`
	Op      ErrorKind `json:"-"`
	ErrCode string    `json:"errcode"`
	ErrMsg  string    `json:"errmsg"`
	Err     error     `json:"-"`
}

// Error 实现 error 接口
func (e *WechatError) Error() string {
	if e.Kind == ErrorKindSystem {
		if e.Err != nil {
			return fmt.Sprintf("wechat %s during %s: %s: %v", e.Kind, e.Op, e.ErrMsg, e.Err)
		}
		return fmt.Sprintf("wechat %s during %s: %s", e.Kind, e.Op, e.ErrMsg)
	}
	return fmt.Sprintf("wechat %s: [%s] %s", e.Kind, e.ErrCode, e.ErrMsg)
}

// Unwrap 支持 errors.Is/As
func (e *WechatError) Unwrap() error {
	return e.Err
}

// IsSystem 是否为系统错误（网络失败、非 2xx、响应无法解析）
func (e *WechatError) IsSystem() bool {
	return e.Kind == ErrorKindSystem
}

// NewWechatError 创建微信返回的业务错误
func NewWechatError(kind ErrorKind, code, msg string) *WechatError {
	return &WechatError{
		Kind:    kind,
		Op:      kind,
		ErrCode: code,
		ErrMsg:  msg,
	}
}

// NewSystemError 创建系统错误，op 为发起调用的操作
func NewSystemError(op ErrorKind, err error) *WechatError {
	return &WechatError{
		Kind:    ErrorKindSystem,
		Op:      op,
		ErrCode: SystemErrorCode,
		ErrMsg:  op.Message() + "时发生错误",
		Err:     err,
	}
}

// 常见错误码定义
const (
	ErrCodeSuccess          = "0"     // 成功
	ErrCodeBusy             = "-1"    // 系统繁忙
	ErrCodeInvalidToken     = "40001" // access_token 无效
	ErrCodeExpiredToken     = "42001" // access_token 过期
	ErrCodeInvalidAppID     = "40013" // 无效的 AppID
	ErrCodeInvalidAppSecret = "40125" // 无效的 AppSecret
	ErrCodeInvalidCode      = "40029" // 无效的 code
	ErrCodeCodeUsed         = "40163" // code 已被使用
	ErrCodeFreqLimit        = "45011" // 频率限制
	ErrCodeAPIUnauthorized  = "48001" // API 未授权
)

var (
	// ErrUninitializedCredential 凭证尚未被成功刷新过
	ErrUninitializedCredential = errors.New("credential is not initialized")
	// ErrEmptyCredential 试图写入空凭证
	ErrEmptyCredential = errors.New("credential value is empty")
)

// IsTokenError 判断是否为 token 相关错误（需要刷新 token）
func IsTokenError(err error) bool {
	if we, ok := errors.AsType[*WechatError](err); ok {
		return we.ErrCode == ErrCodeInvalidToken || we.ErrCode == ErrCodeExpiredToken
	}
	return false
}

// KindOf 返回错误携带的操作类型；非 WechatError 视为系统错误
func KindOf(err error) ErrorKind {
	if we, ok := errors.AsType[*WechatError](err); ok {
		return we.Kind
	}
	return ErrorKindSystem
}
