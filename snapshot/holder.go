package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rushteam/moviematch/core"
)

// BuildFunc 构建一份新快照。
type BuildFunc func(ctx context.Context) (*Snapshot, error)

// Holder 持有当前发布的快照。
//
// 读路径无锁：Current 原子读取指针，请求在开始时拿到哪一版就用哪一版直到结束。
// 写路径（重训）互斥：先在旁路完整构建，再一次性原子替换。
// 版本分配与指针替换在 publishMu 下完成，发布顺序即版本顺序。
type Holder struct {
	current   atomic.Pointer[Snapshot]
	version   atomic.Int64
	publishMu sync.Mutex

	trainMu  sync.Mutex
	training atomic.Bool

	mu        sync.RWMutex
	lastError error
	lastTrain time.Time
}

// NewHolder 创建空 Holder，此时索引未就绪。
func NewHolder() *Holder {
	return &Holder{}
}

// Current 返回当前快照，未训练时为 nil。
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Acquire 返回当前快照，未就绪时返回 core.ErrIndexUnavailable。
func (h *Holder) Acquire() (*Snapshot, error) {
	s := h.current.Load()
	if s == nil || s.Size() == 0 {
		return nil, core.ErrIndexUnavailable
	}
	return s, nil
}

// Publish 分配版本号并原子发布快照。
func (h *Holder) Publish(s *Snapshot) {
	if s == nil {
		return
	}
	h.publishMu.Lock()
	defer h.publishMu.Unlock()
	h.publishLocked(s)
}

// PublishIfNewer 仅在当前没有快照或 s 的训练时刻晚于当前快照时发布，返回是否发布。
// 用于从 Store 恢复：恢复与重训并发时，不会用旧快照覆盖刚训练出的快照。
func (h *Holder) PublishIfNewer(s *Snapshot) bool {
	if s == nil {
		return false
	}
	h.publishMu.Lock()
	defer h.publishMu.Unlock()
	if cur := h.current.Load(); cur != nil && !s.TrainedAt.After(cur.TrainedAt) {
		return false
	}
	h.publishLocked(s)
	return true
}

func (h *Holder) publishLocked(s *Snapshot) {
	if v := h.version.Load(); s.Version <= v {
		s.Version = v + 1
	}
	h.version.Store(s.Version)
	h.current.Store(s)
}

// Train 串行执行一次重训：已有重训在进行时立即返回 core.ErrTrainingInProgress。
// 构建失败时保留旧快照。
func (h *Holder) Train(ctx context.Context, build BuildFunc) (*Snapshot, error) {
	if !h.trainMu.TryLock() {
		return nil, core.ErrTrainingInProgress
	}
	defer h.trainMu.Unlock()

	h.training.Store(true)
	defer h.training.Store(false)

	s, err := build(ctx)
	h.mu.Lock()
	h.lastError = err
	if err == nil {
		h.lastTrain = time.Now()
	}
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	h.Publish(s)
	return s, nil
}

// Training 报告是否有重训在进行。
func (h *Holder) Training() bool {
	return h.training.Load()
}

// LastError 返回最近一次重训的错误，成功后清空。
func (h *Holder) LastError() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastError
}
