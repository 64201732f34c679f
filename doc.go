// Package moviematch 是一个电影推荐服务：把好友推荐与相似检索融合为有界、有序的结果。
//
// 设计要点：
// - Snapshot-first: 目录、中位数、缩放参数、向量与索引作为一个整体训练并原子发布
// - Pipeline-first: 请求链路由 Node 串联（Expansion → Filter → Rank）
// - Labels-first: 来源、扩展决策、排序模型与兜底都以 label 透传，便于解释与观测
// - 显式兜底: 索引未就绪、协作方失败、打分失败各有命名的降级路径
package moviematch

import (
	"github.com/rushteam/moviematch/pipeline"
	"github.com/rushteam/moviematch/service"
)

// 轻量 facade：便于直接 import "moviematch" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind
type Recommender = service.Recommender
type Options = service.Options

const (
	KindRecall = pipeline.KindRecall
	KindFilter = pipeline.KindFilter
	KindRank   = pipeline.KindRank
)

// New 等价于 service.New。
func New(opts Options) (*Recommender, error) {
	return service.New(opts)
}
