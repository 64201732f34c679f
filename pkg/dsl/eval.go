package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/moviematch/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("user", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Expr 是编译后的候选过滤表达式，使用 CEL (Common Expression Language) 语法。
// 编译一次，可被多个 goroutine 并发求值。
//
// 可用变量：
//   - item：候选字段，如 item.quality > 6.5 / item.source == "social" / "Drama" in item.genres
//   - label：候选 Label 的 value，如 label.recall_source == "similarity_expansion"
//   - user：用户特征，如 user.avg_quality / user.preferred_genres，未知用户时为空 map
//   - rctx：请求信息，如 rctx.scene / rctx.params
//
// 访问不存在的 key 会求值失败，存在性判断用 has(label.expansion)。
type Expr struct {
	src string
	prg cel.Program
}

// Compile 编译表达式，表达式必须返回 bool。
func Compile(expr string) (*Expr, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("dsl: init env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("dsl: compile %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return nil, fmt.Errorf("dsl: expression %q must return bool, got %s", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("dsl: program %q: %w", expr, err)
	}
	return &Expr{src: expr, prg: prg}, nil
}

// String 返回表达式原文。
func (e *Expr) String() string { return e.src }

// Eval 对单个候选求值。
func (e *Expr) Eval(c *core.Candidate, rctx *core.RecommendContext) (bool, error) {
	out, _, err := e.prg.Eval(buildInput(c, rctx))
	if err != nil {
		return false, fmt.Errorf("dsl: eval %q: %w", e.src, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("dsl: expression %q must return bool, got %T", e.src, out.Value())
	}
	return result, nil
}

// Evaluate 编译并执行一次表达式，空表达式恒为 true。
func Evaluate(expr string, c *core.Candidate, rctx *core.RecommendContext) (bool, error) {
	if expr == "" {
		return true, nil
	}
	e, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return e.Eval(c, rctx)
}

func buildInput(c *core.Candidate, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any, len(c.Labels))
	for k, v := range c.Labels {
		labels[k] = v.Value
	}
	genres := make([]any, 0, len(c.Genres))
	for _, g := range c.Genres {
		genres = append(genres, g)
	}

	item := map[string]any{
		"id":                c.MovieID,
		"title":             c.Title,
		"source":            string(c.Source),
		"rating":            c.Rating,
		"endorsers":         int64(c.Endorsers),
		"similarity":        c.Similarity,
		"similar_to":        c.SimilarToID,
		"quality":           c.Quality,
		"popularity":        c.Popularity,
		"mean_user_rating":  c.MeanUserRating,
		"user_rating_count": c.UserRatingCount,
		"genres":            genres,
		"score":             c.Score,
	}

	user := map[string]any{}
	reqCtx := map[string]any{"user_id": "", "scene": "", "params": map[string]any{}}
	if rctx != nil {
		if rctx.User != nil {
			user = rctx.User.AsMap()
		}
		params := rctx.Params
		if params == nil {
			params = map[string]any{}
		}
		reqCtx = map[string]any{
			"user_id": rctx.UserID,
			"scene":   rctx.Scene,
			"params":  params,
		}
	}

	return map[string]any{
		"item":  item,
		"label": labels,
		"user":  user,
		"rctx":  reqCtx,
	}
}
