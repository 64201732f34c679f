package filter

import (
	"context"

	"github.com/rushteam/moviematch/core"
)

// Filter 判断一个候选是否应该被过滤掉。
// 返回 true 表示应该过滤（移除），false 表示保留。
type Filter interface {
	Name() string

	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, c *core.Candidate) (bool, error)
}

// Binder 由需要按请求预取数据的过滤器实现（例如观影记录）。
// FilterNode 在每次 Process 开始时调用 Bind，用返回的请求级 Filter 逐个判断。
type Binder interface {
	Bind(ctx context.Context, rctx *core.RecommendContext) (Filter, error)
}
