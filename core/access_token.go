package core

import (
	"context"
)

// AccessTokenProvider 为需要 access_token 的请求提供凭证
// CredentialManager 是默认实现，测试中可替换为桩
type AccessTokenProvider interface {
	// GetToken 获取当前可用的 access_token
	// 实现应在凭证过期时自动拉取
	//
	// 错误:
	//   - 从未成功拉取过凭证且本次拉取失败
	//   - 上下文取消
	GetToken(ctx context.Context) (string, error)

	// RefreshToken 强制拉取新的 access_token
	// 定时刷新任务调用，失败时旧值保持不变
	//
	// 错误:
	//   - 向微信服务端拉取失败（网络错误或业务错误）
	RefreshToken(ctx context.Context) (string, error)
}
