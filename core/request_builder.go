package core

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeXML  = "text/xml; charset=utf-8"
)

// RequestBuilder 请求构建器
type RequestBuilder struct {
	client               *Client
	path                 string
	query                map[string]string
	body                 any
	shouldAddAccessToken bool
	method               string
	kind                 ErrorKind
	format               Format
}

// newRequestBuilder 创建请求构建器（包内使用）
func newRequestBuilder(client *Client) *RequestBuilder {
	return &RequestBuilder{
		client:               client,
		query:                make(map[string]string),
		shouldAddAccessToken: true, // 默认添加 access_token
		kind:                 ErrorKindSystem,
		format:               FormatJSON,
	}
}

// Path 设置请求路径
func (b *RequestBuilder) Path(path string) *RequestBuilder {
	b.path = path
	return b
}

// Query 添加单个查询参数
func (b *RequestBuilder) Query(key, value string) *RequestBuilder {
	if b.query == nil {
		b.query = make(map[string]string)
	}
	b.query[key] = value
	return b
}

// QueryMap 批量设置查询参数
func (b *RequestBuilder) QueryMap(query map[string]string) *RequestBuilder {
	if b.query == nil {
		b.query = make(map[string]string)
	}
	for k, v := range query {
		b.query[k] = v
	}
	return b
}

// Body 设置请求体
// []byte 与 string 原样发送，其余类型按 Format 编码
func (b *RequestBuilder) Body(body any) *RequestBuilder {
	b.body = body
	return b
}

// Kind 设置操作类型，失败时错误会带上该类型
func (b *RequestBuilder) Kind(kind ErrorKind) *RequestBuilder {
	b.kind = kind
	return b
}

// Format 设置请求体与响应体格式
func (b *RequestBuilder) Format(format Format) *RequestBuilder {
	b.format = format
	return b
}

// WithoutToken 不添加 access_token
func (b *RequestBuilder) WithoutToken() *RequestBuilder {
	b.shouldAddAccessToken = false
	return b
}

// WithToken 添加 access_token（默认行为）
func (b *RequestBuilder) WithToken() *RequestBuilder {
	b.shouldAddAccessToken = true
	return b
}

// Get 执行 GET 请求
func (b *RequestBuilder) Get(ctx context.Context) (*Response, error) {
	b.method = http.MethodGet
	return b.do(ctx)
}

// Post 执行 POST 请求
func (b *RequestBuilder) Post(ctx context.Context) (*Response, error) {
	b.method = http.MethodPost
	return b.do(ctx)
}

// do 执行请求，传输层失败统一转换为系统错误
func (b *RequestBuilder) do(ctx context.Context) (*Response, error) {
	if strings.TrimSpace(b.path) == "" {
		return nil, fmt.Errorf("request path is required")
	}

	params, err := b.client.buildParams(ctx, b.query, b.shouldAddAccessToken)
	if err != nil {
		return nil, err
	}

	payload, contentType, err := b.encodeBody()
	if err != nil {
		return nil, NewSystemError(b.kind, err)
	}

	resp, err := b.client.doRequest(ctx, b.method, b.path, params, payload, contentType)
	if err != nil {
		return nil, NewSystemError(b.kind, err)
	}
	return resp, nil
}

func (b *RequestBuilder) encodeBody() ([]byte, string, error) {
	contentType := contentTypeJSON
	if b.format == FormatXML {
		contentType = contentTypeXML
	}

	switch body := b.body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return body, contentType, nil
	case string:
		return []byte(body), contentType, nil
	}

	if b.format == FormatXML {
		raw, err := xml.Marshal(b.body)
		if err != nil {
			return nil, "", fmt.Errorf("marshal xml body: %w", err)
		}
		return raw, contentType, nil
	}

	// 关闭 HTML 转义，URL 中的 & 不能被编码为 \u0026
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(b.body); err != nil {
		return nil, "", fmt.Errorf("marshal json body: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), contentType, nil
}
