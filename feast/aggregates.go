package feast

import (
	"context"
	"fmt"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/pkg/conv"
)

// AggregateConfig 描述评分聚合在 Feast 中的特征名。
type AggregateConfig struct {
	Project      string
	EntityKey    string // 默认 movie_id
	MeanFeature  string // 默认 movie_stats:avg_user_rating
	CountFeature string // 默认 movie_stats:user_rating_count
	BatchSize    int    // 每次请求的实体数，默认 500
}

// AggregateSource 从 Feast 在线存储读取电影评分聚合，实现 core.AggregateSource。
type AggregateSource struct {
	client Client
	cfg    AggregateConfig
}

// NewAggregateSource 创建聚合数据源。
func NewAggregateSource(client Client, cfg AggregateConfig) *AggregateSource {
	if cfg.EntityKey == "" {
		cfg.EntityKey = "movie_id"
	}
	if cfg.MeanFeature == "" {
		cfg.MeanFeature = "movie_stats:avg_user_rating"
	}
	if cfg.CountFeature == "" {
		cfg.CountFeature = "movie_stats:user_rating_count"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &AggregateSource{client: client, cfg: cfg}
}

// RatingAggregates 按批读取聚合。两个特征都存在的电影才会出现在结果中。
// 在线存储按实体查询，movieIDs 为空时返回空结果。
func (s *AggregateSource) RatingAggregates(ctx context.Context, movieIDs []int64) (map[int64]core.RatingAggregate, error) {
	out := make(map[int64]core.RatingAggregate, len(movieIDs))
	features := []string{s.cfg.MeanFeature, s.cfg.CountFeature}

	for start := 0; start < len(movieIDs); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(movieIDs))
		batch := movieIDs[start:end]

		rows := make([]map[string]any, len(batch))
		for i, id := range batch {
			rows[i] = map[string]any{s.cfg.EntityKey: id}
		}
		resp, err := s.client.GetOnlineFeatures(ctx, &GetOnlineFeaturesRequest{
			Features:   features,
			EntityRows: rows,
			Project:    s.cfg.Project,
		})
		if err != nil {
			return nil, fmt.Errorf("feast: rating aggregates [%d:%d]: %w", start, end, err)
		}
		if len(resp.FeatureVectors) != len(batch) {
			return nil, fmt.Errorf("feast: expected %d feature vectors, got %d", len(batch), len(resp.FeatureVectors))
		}

		for i, fv := range resp.FeatureVectors {
			mean, okMean := conv.ToFloat64(fv.Values[s.cfg.MeanFeature])
			count, okCount := conv.ToInt64(fv.Values[s.cfg.CountFeature])
			if !okMean || !okCount {
				continue
			}
			out[batch[i]] = core.RatingAggregate{MovieID: batch[i], Mean: mean, Count: count}
		}
	}
	return out, nil
}
