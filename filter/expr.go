package filter

import (
	"context"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/pkg/dsl"
)

// ExprFilter 用 CEL 表达式描述候选的保留条件，表达式为 false 的候选被过滤。
//
// 例如：item.quality >= 6.0 || item.source == "social"
type ExprFilter struct {
	expr *dsl.Expr
}

// NewExprFilter 编译表达式。
func NewExprFilter(expr string) (*ExprFilter, error) {
	e, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{expr: e}, nil
}

func (f *ExprFilter) Name() string { return "filter.expr" }

// Expr 返回表达式原文。
func (f *ExprFilter) Expr() string { return f.expr.String() }

func (f *ExprFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, c *core.Candidate) (bool, error) {
	keep, err := f.expr.Eval(c, rctx)
	if err != nil {
		return false, err
	}
	return !keep, nil
}
