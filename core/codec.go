package core

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"

	"github.com/tidwall/gjson"
)

// Format 接口响应体格式，由接口声明决定，不做内容嗅探
type Format int

const (
	FormatJSON Format = iota
	FormatXML
)

func (f Format) String() string {
	if f == FormatXML {
		return "xml"
	}
	return "json"
}

// 微信支付 XML 协议中的成功/失败标识
const (
	ReturnCodeSuccess = "SUCCESS"
	ReturnCodeFail    = "FAIL"
)

type xmlErrorEnvelope struct {
	ReturnCode string `xml:"return_code"`
	ReturnMsg  string `xml:"return_msg"`
	ResultCode string `xml:"result_code"`
	ErrCode    string `xml:"err_code"`
	ErrCodeDes string `xml:"err_code_des"`
}

// Decode 将微信响应解析为 T
//
// 非 2xx、空响应体、无法解析的响应体均返回系统错误（Op 为 op）；
// 响应体中包含失败的错误信封时返回标记为 op 的业务错误。
func Decode[T any](op ErrorKind, format Format, statusCode int, body []byte) (T, error) {
	var zero T

	if statusCode < 200 || statusCode >= 300 {
		return zero, NewSystemError(op, fmt.Errorf("http status %d: %s", statusCode, truncateBody(body, 256)))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return zero, NewSystemError(op, fmt.Errorf("empty response body"))
	}

	switch format {
	case FormatXML:
		return decodeXML[T](op, body)
	default:
		return decodeJSON[T](op, body)
	}
}

func decodeJSON[T any](op ErrorKind, body []byte) (T, error) {
	var zero T

	if !gjson.ValidBytes(body) {
		return zero, NewSystemError(op, NewResponseParseError(body, fmt.Errorf("invalid json")))
	}
	if wechatErr := parseWechatError(op, body); wechatErr != nil {
		return zero, wechatErr
	}

	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return zero, NewSystemError(op, NewResponseParseError(body, err))
	}
	return out, nil
}

func decodeXML[T any](op ErrorKind, body []byte) (T, error) {
	var zero T

	var envelope xmlErrorEnvelope
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return zero, NewSystemError(op, NewResponseParseError(body, err))
	}
	if envelope.ReturnCode != ReturnCodeSuccess {
		return zero, NewWechatError(op, envelope.ReturnCode, envelope.ReturnMsg)
	}
	if envelope.ResultCode == ReturnCodeFail {
		return zero, NewWechatError(op, envelope.ErrCode, envelope.ErrCodeDes)
	}

	var out T
	if err := xml.Unmarshal(body, &out); err != nil {
		return zero, NewSystemError(op, NewResponseParseError(body, err))
	}
	return out, nil
}

// parseWechatError errcode 既可能是数字也可能是字符串，统一按字符串比较
func parseWechatError(op ErrorKind, body []byte) *WechatError {
	code := gjson.GetBytes(body, "errcode")
	if !code.Exists() || code.String() == ErrCodeSuccess {
		return nil
	}
	return NewWechatError(op, code.String(), gjson.GetBytes(body, "errmsg").String())
}

// ResponseParseError 响应解析错误
// 当响应体不是有效的 JSON/XML 时返回此错误
type ResponseParseError struct {
	Body []byte // 原始响应体
	Err  error  // 底层解析错误
}

// Error 实现 error 接口
func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("failed to parse response: %v", e.Err)
}

// Unwrap 支持 errors.Is/As
func (e *ResponseParseError) Unwrap() error {
	return e.Err
}

// NewResponseParseError 创建响应解析错误
func NewResponseParseError(body []byte, err error) *ResponseParseError {
	return &ResponseParseError{
		Body: body,
		Err:  err,
	}
}

// CDATA 编码为 <![CDATA[...]]> 的元素内容，只用于输出
type CDATA struct {
	Value string `xml:",cdata"`
}

func truncateBody(body []byte, max int) string {
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
