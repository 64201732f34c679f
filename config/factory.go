package config

import (
	"fmt"
	"strings"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/filter"
	"github.com/rushteam/moviematch/model"
	"github.com/rushteam/moviematch/pipeline"
	"github.com/rushteam/moviematch/pkg/conv"
	"github.com/rushteam/moviematch/rank"
	"github.com/rushteam/moviematch/recall"
	"github.com/rushteam/moviematch/snapshot"
)

// Deps 是构建 Node 所需的运行时依赖。Node 配置中未给出的参数取 Settings 中的值。
type Deps struct {
	Holder   *snapshot.Holder
	Finder   recall.SimilarityFinder
	Watched  core.WatchedSource
	Store    core.Store
	Settings *Settings
}

// NewFactory 返回注册了所有内置 Node 的工厂：
//
//	recall.expansion / recall.popularity / filter.expr / filter.watched / filter.blacklist / rank.weighted
func NewFactory(deps Deps) *pipeline.NodeFactory {
	if deps.Settings == nil {
		deps.Settings = Default()
	}
	if deps.Finder == nil && deps.Holder != nil {
		deps.Finder = &recall.SnapshotFinder{Holder: deps.Holder}
	}
	b := &builders{deps: deps}

	f := pipeline.NewNodeFactory()
	f.Register("recall.expansion", b.expansion)
	f.Register("recall.popularity", b.popularity)
	f.Register("filter.expr", b.exprFilter)
	f.Register("filter.watched", b.watchedFilter)
	f.Register("filter.blacklist", b.blacklistFilter)
	f.Register("rank.weighted", b.weightedRank)
	return f
}

// DefaultPipeline 返回内置链路：扩展 -> 可选表达式过滤 -> 加权排序。
func DefaultPipeline(s *Settings) *pipeline.Config {
	cfg := &pipeline.Config{}
	cfg.Pipeline.Name = "default"
	cfg.Pipeline.Nodes = append(cfg.Pipeline.Nodes, pipeline.NodeConfig{Type: "recall.expansion"})
	if s.Pipeline.FilterExpr != "" {
		cfg.Pipeline.Nodes = append(cfg.Pipeline.Nodes, pipeline.NodeConfig{
			Type:   "filter.expr",
			Config: map[string]any{"expr": s.Pipeline.FilterExpr},
		})
	}
	cfg.Pipeline.Nodes = append(cfg.Pipeline.Nodes, pipeline.NodeConfig{Type: "rank.weighted"})
	return cfg
}

// LoadPipeline 读取 Settings.Pipeline.Path 指定的链路文件（.json 使用 JSON，其余按 YAML），
// 未配置时返回 DefaultPipeline。
func LoadPipeline(s *Settings) (*pipeline.Config, error) {
	path := s.Pipeline.Path
	switch {
	case path == "":
		return DefaultPipeline(s), nil
	case strings.HasSuffix(path, ".json"):
		return pipeline.LoadFromJSON(path)
	default:
		return pipeline.LoadFromYAML(path)
	}
}

type builders struct {
	deps Deps
}

func (b *builders) expansion(cfg map[string]any) (pipeline.Node, error) {
	if b.deps.Finder == nil {
		return nil, fmt.Errorf("recall.expansion: similarity finder not configured")
	}
	s := b.deps.Settings.Expansion
	e := recall.NewExpansion(b.deps.Finder)
	e.MinSocial = conv.ConfigGetInt(cfg, "min_social", s.MinSocial)
	e.MaxSeeds = conv.ConfigGetInt(cfg, "max_seeds", s.MaxSeeds)
	e.PerSeed = conv.ConfigGetInt(cfg, "per_seed", s.PerSeed)
	e.Concurrency = conv.ConfigGetInt(cfg, "concurrency", s.Concurrency)
	if e.MinSocial <= 0 || e.MaxSeeds <= 0 || e.PerSeed <= 0 {
		return nil, fmt.Errorf("recall.expansion: thresholds must be positive")
	}
	return e, nil
}

func (b *builders) popularity(cfg map[string]any) (pipeline.Node, error) {
	if b.deps.Holder == nil {
		return nil, fmt.Errorf("recall.popularity: snapshot holder not configured")
	}
	return &recall.Popularity{
		Holder: b.deps.Holder,
		Limit:  conv.ConfigGetInt(cfg, "limit", b.deps.Settings.Rank.TopK),
	}, nil
}

func (b *builders) exprFilter(cfg map[string]any) (pipeline.Node, error) {
	expr := conv.ConfigGet(cfg, "expr", "")
	if expr == "" {
		return nil, fmt.Errorf("filter.expr: expr not found")
	}
	f, err := filter.NewExprFilter(expr)
	if err != nil {
		return nil, err
	}
	return filter.NewFilterNode(f), nil
}

func (b *builders) watchedFilter(map[string]any) (pipeline.Node, error) {
	if b.deps.Watched == nil {
		return nil, fmt.Errorf("filter.watched: watched source not configured")
	}
	return filter.NewFilterNode(&filter.WatchedFilter{Source: b.deps.Watched}), nil
}

func (b *builders) blacklistFilter(cfg map[string]any) (pipeline.Node, error) {
	ids, ok := conv.ToInt64Slice(cfg["movie_ids"])
	if !ok {
		return nil, fmt.Errorf("filter.blacklist: movie_ids must be a list of integers")
	}
	f := &filter.BlacklistFilter{MovieIDs: ids}
	if key := conv.ConfigGet(cfg, "key", ""); key != "" {
		if b.deps.Store == nil {
			return nil, fmt.Errorf("filter.blacklist: key %q set but no store configured", key)
		}
		f.Store = b.deps.Store
		f.Key = key
	}
	return filter.NewFilterNode(f), nil
}

func (b *builders) weightedRank(cfg map[string]any) (pipeline.Node, error) {
	s := b.deps.Settings.Rank
	w := s.Weights
	if raw, ok := cfg["weights"].(map[string]any); ok {
		w = model.Weights{
			SocialRating:    conv.ConfigGetFloat64(raw, "social_rating", w.SocialRating),
			SocialEndorsers: conv.ConfigGetFloat64(raw, "social_endorsers", w.SocialEndorsers),
			Similarity:      conv.ConfigGetFloat64(raw, "similarity", w.Similarity),
			Quality:         conv.ConfigGetFloat64(raw, "quality", w.Quality),
			Popularity:      conv.ConfigGetFloat64(raw, "popularity", w.Popularity),
			UserRating:      conv.ConfigGetFloat64(raw, "user_rating", w.UserRating),
			UserRatingCount: conv.ConfigGetFloat64(raw, "user_rating_count", w.UserRatingCount),
		}
	}
	topK := conv.ConfigGetInt(cfg, "top_k", s.TopK)
	if topK <= 0 {
		return nil, fmt.Errorf("rank.weighted: top_k must be positive, got %d", topK)
	}
	return &rank.WeightedNode{Model: model.NewWeightedModel(w), TopK: topK}, nil
}
