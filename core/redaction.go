package core

import (
	"net/url"
	"strings"
)

const redactedValue = "***"

var sensitiveQueryKeys = map[string]struct{}{
	"access_token":  {},
	"api_key":       {},
	"appsecret":     {},
	"app_secret":    {},
	"authorization": {},
	"client_secret": {},
	"code":          {},
	"jsapi_ticket":  {},
	"key":           {},
	"paysign":       {},
	"refresh_token": {},
	"secret":        {},
	"sign":          {},
	"ticket":        {},
	"token":         {},
}

// RedactQueryMap 脱敏查询参数，返回拷贝，原 map 不会被修改。
// 也用于支付参数、回调参数等键值对的日志输出。
func RedactQueryMap(query map[string]string) map[string]string {
	if query == nil {
		return nil
	}

	out := make(map[string]string, len(query))
	for key, value := range query {
		if isSensitiveQueryKey(key) {
			out[key] = redactedValue
			continue
		}
		out[key] = value
	}

	return out
}

// RedactValues 将 url.Values 展开为单值 map 并脱敏，多值参数只保留第一个值
func RedactValues(values url.Values) map[string]string {
	if len(values) == 0 {
		return nil
	}

	flat := make(map[string]string, len(values))
	for key, vs := range values {
		if len(vs) > 0 {
			flat[key] = vs[0]
		}
	}
	return RedactQueryMap(flat)
}

// RedactURLQuery 脱敏 URL 查询参数中的敏感字段。
func RedactURLQuery(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.RawQuery == "" {
		return rawURL
	}

	query := parsed.Query()
	for key, values := range query {
		if !isSensitiveQueryKey(key) {
			continue
		}
		for i := range values {
			values[i] = redactedValue
		}
		query[key] = values
	}

	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func isSensitiveQueryKey(key string) bool {
	_, exists := sensitiveQueryKeys[strings.ToLower(key)]
	return exists
}
