// Package store 提供 core.Store 的实现，用于持久化训练快照。
//
//	var st core.Store = store.NewMemoryStore()
//	st, err := store.NewRedisStore(ctx, store.RedisOptions{Addr: "localhost:6379"})
package store

import "github.com/rushteam/moviematch/core"

var (
	_ core.Store = (*MemoryStore)(nil)
	_ core.Store = (*RedisStore)(nil)
)
