package core

import "context"

// Store 是键值存储的领域接口，快照持久化通过它读写。
//
// 实现：
//   - store.MemoryStore（测试/单机）
//   - store.RedisStore（多实例共享快照）
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值，不存在时返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl 单位为秒，0 表示不过期
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// Delete 删除单个 key
	Delete(ctx context.Context, key string) error

	// Close 关闭连接/释放资源
	Close() error
}

// ErrStoreNotFound 表示 key 不存在
var ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Module == ModuleStore && domainErr.Code == ErrorCodeNotFound
}
