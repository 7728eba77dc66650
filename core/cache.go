package core

import (
	"context"
	"time"
)

// Cache 凭证镜像使用的字符串缓存
// 多个进程共享同一个 Cache 时，任一进程刷新得到的凭证可被其他进程在启动时恢复。
type Cache interface {
	// Get 读取缓存值
	//
	// 参数:
	//   - ctx: 上下文
	//   - key: 缓存键
	//
	// 返回:
	//   - string: 命中时的缓存值，未命中时为空字符串
	//   - bool: 是否命中；不存在、已过期或底层存储不可用都视为未命中
	Get(ctx context.Context, key string) (string, bool)

	// Set 写入缓存值，ttl 不大于 0 时永不过期
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete 删除缓存值，key 不存在时返回 nil
	Delete(ctx context.Context, key string) error
}
