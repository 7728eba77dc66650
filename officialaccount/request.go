package officialaccount

import "github.com/ShinyNito/wxcred/core"

type TypedRequest[T any] = core.TypedRequest[T]

// Request 创建带 access_token 的类型化请求
func Request[T any](c *Client) *TypedRequest[T] {
	return core.NewTypedRequest[T](c.apiClient)
}
