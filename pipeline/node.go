package pipeline

import (
	"context"

	"github.com/rushteam/moviematch/core"
)

// Kind 用于标记 Node 类型，方便观测与编排（例如按阶段打点）。
type Kind string

const (
	KindRecall Kind = "recall" // 召回阶段：生成或扩展候选集
	KindFilter Kind = "filter" // 过滤阶段：剔除不符合约束的候选
	KindRank   Kind = "rank"   // 排序阶段：打分、排序、截断
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用“输入候选 -> 输出候选”的形态。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Candidate,
	) ([]*core.Candidate, error)
}
