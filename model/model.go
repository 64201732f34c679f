package model

import "github.com/rushteam/moviematch/core"

// RankModel 是排序阶段的最小抽象：输入候选，输出一个可比较的分数。
// 分数无法计算（例如输入或结果非有限值）时返回错误，由排序节点决定兜底。
type RankModel interface {
	Name() string
	Score(c *core.Candidate) (float64, error)
}
