package utils

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// 微信支付签名类型
const (
	SignTypeMD5        = "MD5"
	SignTypeHMACSHA256 = "HMAC-SHA256"
)

// SHA1Sign 将参数按字典序排序后拼接，再计算 SHA1
func SHA1Sign(params ...string) string {
	sort.Strings(params)
	h := sha1.New()
	h.Write([]byte(strings.Join(params, "")))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature 验证微信服务器接入签名
// signature: 微信传来的签名
// timestamp: 时间戳
// nonce: 随机字符串
// token: 开发者配置的 Token
func VerifySignature(signature, timestamp, nonce, token string) bool {
	computed := SHA1Sign(token, timestamp, nonce)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(signature)) == 1
}

// JSAPISign 计算 JS-SDK 权限验证签名
// url 为当前网页地址，不含 # 及其后面部分
func JSAPISign(ticket, nonceStr string, timestamp int64, url string) string {
	str := fmt.Sprintf("jsapi_ticket=%s&noncestr=%s&timestamp=%d&url=%s", ticket, nonceStr, timestamp, url)
	h := sha1.New()
	h.Write([]byte(str))
	return hex.EncodeToString(h.Sum(nil))
}

// SortedQuery 按 key 的 ASCII 顺序拼接为 k1=v1&k2=v2
// 值为空的参数与 sign 参数不参与拼接
func SortedQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" || k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}
	return sb.String()
}

// PaySign 计算微信支付签名，结果为大写十六进制
// signType 为空时按 MD5 处理
func PaySign(params map[string]string, key, signType string) (string, error) {
	str := SortedQuery(params) + "&key=" + key

	switch signType {
	case "", SignTypeMD5:
		sum := md5.Sum([]byte(str))
		return strings.ToUpper(hex.EncodeToString(sum[:])), nil
	case SignTypeHMACSHA256:
		return strings.ToUpper(HMACSHA256(str, key)), nil
	default:
		return "", fmt.Errorf("unsupported sign type %q", signType)
	}
}

// VerifyPaySign 校验微信支付签名
// signType 为空时取参数中的 sign_type，仍为空则按 MD5 处理
func VerifyPaySign(params map[string]string, key, signType string) bool {
	sign := params["sign"]
	if sign == "" {
		return false
	}
	if signType == "" {
		signType = params["sign_type"]
	}
	computed, err := PaySign(params, key, signType)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(sign)) == 1
}

// HMACSHA256 使用 HMAC-SHA256 计算签名
func HMACSHA256(data, key string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
