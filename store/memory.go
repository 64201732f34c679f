package store

import (
	"context"
	"sync"
	"time"

	"github.com/rushteam/moviematch/core"
)

// MemoryStore 是内存实现的 Store，用于测试/单机部署。
// 支持 TTL（过期时间），进程重启后数据丢失。
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]entry
	clean *time.Ticker
	done  chan struct{}
	once  sync.Once
}

type entry struct {
	value    []byte
	expireAt time.Time // 零值表示不过期
}

func (e entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// NewMemoryStore 创建内存 Store，并启动后台过期清理。
func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		data:  make(map[string]entry),
		clean: time.NewTicker(10 * time.Second),
		done:  make(chan struct{}),
	}
	go ms.cleanup()
	return ms
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	if !ok || e.expired(time.Now()) {
		return nil, core.ErrStoreNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl ...int) error {
	e := entry{value: append([]byte(nil), value...)}
	if len(ttl) > 0 && ttl[0] > 0 {
		e.expireAt = time.Now().Add(time.Duration(ttl[0]) * time.Second)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = e
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		m.clean.Stop()
		close(m.done)
	})
	return nil
}

func (m *MemoryStore) cleanup() {
	for {
		select {
		case <-m.done:
			return
		case now := <-m.clean.C:
			m.mu.Lock()
			for k, e := range m.data {
				if e.expired(now) {
					delete(m.data, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
