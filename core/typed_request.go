package core

import (
	"context"
)

// TypedRequest 在 RequestBuilder 之上按 T 解码响应
//
// 解码失败或微信返回错误码时，错误类型由 Kind 指定的操作决定。
type TypedRequest[T any] struct {
	builder *RequestBuilder
}

// NewTypedRequest 基于 client 创建类型化请求，默认携带 access_token、按 JSON 解码
func NewTypedRequest[T any](client *Client) *TypedRequest[T] {
	return &TypedRequest[T]{builder: newRequestBuilder(client)}
}

func (r *TypedRequest[T]) Path(path string) *TypedRequest[T] {
	r.builder.Path(path)
	return r
}

func (r *TypedRequest[T]) Query(key, value string) *TypedRequest[T] {
	r.builder.Query(key, value)
	return r
}

func (r *TypedRequest[T]) QueryMap(query map[string]string) *TypedRequest[T] {
	r.builder.QueryMap(query)
	return r
}

func (r *TypedRequest[T]) Body(body any) *TypedRequest[T] {
	r.builder.Body(body)
	return r
}

// Kind 指定失败时归属的操作
func (r *TypedRequest[T]) Kind(kind ErrorKind) *TypedRequest[T] {
	r.builder.Kind(kind)
	return r
}

// XML 请求体按 XML 编码，响应按 XML 解码
func (r *TypedRequest[T]) XML() *TypedRequest[T] {
	r.builder.Format(FormatXML)
	return r
}

func (r *TypedRequest[T]) WithoutToken() *TypedRequest[T] {
	r.builder.WithoutToken()
	return r
}

func (r *TypedRequest[T]) Get(ctx context.Context) (T, error) {
	return r.decode(r.builder.Get(ctx))
}

func (r *TypedRequest[T]) Post(ctx context.Context) (T, error) {
	return r.decode(r.builder.Post(ctx))
}

func (r *TypedRequest[T]) decode(resp *Response, err error) (T, error) {
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](r.builder.kind, r.builder.format, resp.StatusCode, resp.Body)
}
