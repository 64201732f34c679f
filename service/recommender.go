// Package service 把快照、召回、过滤和排序组装成对外的推荐入口。
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/moviematch/config"
	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/feature"
	"github.com/rushteam/moviematch/metrics"
	"github.com/rushteam/moviematch/model"
	"github.com/rushteam/moviematch/pipeline"
	"github.com/rushteam/moviematch/pkg/logging"
	"github.com/rushteam/moviematch/rank"
	"github.com/rushteam/moviematch/recall"
	"github.com/rushteam/moviematch/snapshot"
)

// Options 是 Recommender 的协作方。Catalog 必填，其余可为空：
//   - Aggregates 为空时不带评分聚合训练
//   - Watched 为空时个性化入口总是冷启动
//   - Social 为空时 RecommendSocial 不可用
//   - Store 为空时不持久化快照
type Options struct {
	Settings   *config.Settings
	Catalog    core.CatalogSource
	Aggregates core.AggregateSource
	Watched    core.WatchedSource
	Social     core.SocialSource
	Store      core.Store
}

// Recommender 是推荐服务的门面，所有请求共享同一个快照 Holder。
type Recommender struct {
	settings *config.Settings
	holder   *snapshot.Holder
	loader   *snapshot.Loader
	store    core.Store
	watched  core.WatchedSource

	expansion    *recall.Expansion
	ranker       *rank.WeightedNode
	personalized *recall.Personalized
	social       *recall.Social
	pipeline     *pipeline.Pipeline

	logger zerolog.Logger
}

// New 按配置组装 Recommender。链路由 config.LoadPipeline 决定。
func New(opts Options) (*Recommender, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("service: catalog source is required")
	}
	s := opts.Settings
	if s == nil {
		s = config.Default()
	}

	holder := snapshot.NewHolder()
	finder := &recall.SnapshotFinder{Holder: holder}

	expansion := recall.NewExpansion(finder)
	expansion.MinSocial = s.Expansion.MinSocial
	expansion.MaxSeeds = s.Expansion.MaxSeeds
	expansion.PerSeed = s.Expansion.PerSeed
	expansion.Concurrency = s.Expansion.Concurrency

	personalized := recall.NewPersonalized(holder, opts.Watched)
	personalized.MaxSeeds = s.Personalize.MaxSeeds

	r := &Recommender{
		settings:     s,
		holder:       holder,
		loader:       snapshot.NewLoader(opts.Catalog, opts.Aggregates, snapshotOptions(s)),
		store:        opts.Store,
		watched:      opts.Watched,
		expansion:    expansion,
		ranker:       &rank.WeightedNode{Model: model.NewWeightedModel(s.Rank.Weights), TopK: s.Rank.TopK},
		personalized: personalized,
		logger:       logging.Component("service"),
	}
	if opts.Social != nil {
		r.social = &recall.Social{Friends: opts.Social, MinRating: s.Social.MinFriendRating}
	}

	pcfg, err := config.LoadPipeline(s)
	if err != nil {
		return nil, fmt.Errorf("service: load pipeline: %w", err)
	}
	factory := config.NewFactory(config.Deps{
		Holder:   holder,
		Finder:   finder,
		Watched:  opts.Watched,
		Store:    opts.Store,
		Settings: s,
	})
	if err := pcfg.Validate(factory); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	r.pipeline, err = pcfg.BuildPipeline(factory)
	if err != nil {
		return nil, fmt.Errorf("service: build pipeline: %w", err)
	}
	r.adoptPipelineNodes()
	return r, nil
}

// adoptPipelineNodes 让 Expand、Rank 与 Status 使用链路中实际构建的节点，
// 链路配置覆盖的阈值与权重因此对所有入口一致。链路缺少对应节点时保留 Settings 构建的实例。
func (r *Recommender) adoptPipelineNodes() {
	var expansionSeen bool
	for _, n := range r.pipeline.Nodes {
		switch node := n.(type) {
		case *recall.Expansion:
			if !expansionSeen {
				r.expansion = node
				expansionSeen = true
			}
		case *rank.WeightedNode:
			r.ranker = node
		}
	}
}

func snapshotOptions(s *config.Settings) snapshot.Options {
	return snapshot.Options{
		MinCatalogSize: s.Snapshot.MinCatalogSize,
		CacheSize:      s.Snapshot.CacheSize,
	}
}

func (r *Recommender) snapshotKey() string {
	if r.settings.Snapshot.Key == "" {
		return snapshot.DefaultKey
	}
	return r.settings.Snapshot.Key
}

// Holder 返回共享的快照 Holder。
func (r *Recommender) Holder() *snapshot.Holder { return r.holder }

// Expand 对社交候选做按需相似扩展，索引未就绪时返回排序后的原列表。
func (r *Recommender) Expand(ctx context.Context, social []*core.Candidate) []*core.Candidate {
	return r.expansion.Expand(ctx, social)
}

// Rank 用加权公式打分并返回前 topK 个结果。topK <= 0 时取链路中 rank.weighted 的 top_k。
func (r *Recommender) Rank(ctx context.Context, candidates []*core.Candidate, topK int) ([]core.ScoredRecommendation, error) {
	if topK <= 0 {
		topK = r.ranker.TopK
	}
	ranked, err := r.ranker.Rank(ctx, candidates, topK)
	if err != nil {
		return nil, err
	}
	return core.ToScored(ranked), nil
}

// GetEfficientRecommendations 走完整链路：扩展 -> 过滤 -> 排序。
// user 可为空，非空时对过滤表达式以 user 暴露。
func (r *Recommender) GetEfficientRecommendations(
	ctx context.Context,
	social []*core.Candidate,
	user *core.UserFeatures,
) ([]core.ScoredRecommendation, error) {
	rctx := &core.RecommendContext{User: user}
	if user != nil {
		rctx.UserID = user.UserID
	}
	out, err := r.pipeline.Run(ctx, rctx, social)
	if err != nil {
		return nil, err
	}
	return core.ToScored(out), nil
}

// FindSimilar 返回与 movieID 最相似的 topK 部电影。
// 快照未就绪时返回 core.ErrIndexUnavailable，未知电影返回空结果。
func (r *Recommender) FindSimilar(_ context.Context, movieID int64, topK int) ([]core.SimilarMovie, error) {
	s, err := r.holder.Acquire()
	if err != nil {
		return nil, err
	}
	return s.FindSimilar(movieID, topK), nil
}

// RecommendForUser 是整用户推荐入口，不经过加权排序。
func (r *Recommender) RecommendForUser(ctx context.Context, userID string, limit int) ([]*core.Candidate, error) {
	return r.personalized.Recommend(ctx, userID, limit)
}

// RecommendSocial 从好友推荐生成社交候选并走完整链路。
// 好友查询失败时以空社交列表继续；用户无法识别时返回 NOT_FOUND。
func (r *Recommender) RecommendSocial(ctx context.Context, userID string) ([]core.ScoredRecommendation, error) {
	if r.social == nil {
		return nil, fmt.Errorf("service: social source not configured")
	}
	items, err := r.social.Recall(ctx, &core.RecommendContext{UserID: userID})
	switch {
	case core.IsNotFound(err):
		return nil, err
	case err != nil:
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("friend recommendations unavailable")
		items = nil
	}
	if s := r.holder.Current(); s != nil {
		enrich(s, items)
	}

	user, err := r.UserFeatures(ctx, userID)
	if err != nil {
		r.logger.Debug().Err(err).Str("user_id", userID).Msg("user features unavailable")
		user = &core.UserFeatures{UserID: userID}
	}
	return r.GetEfficientRecommendations(ctx, items, user)
}

// enrich 用快照里的目录信号补齐社交候选缺失的字段。
func enrich(s *snapshot.Snapshot, items []*core.Candidate) {
	for _, it := range items {
		m, ok := s.Movie(it.MovieID)
		if !ok {
			continue
		}
		if it.Title == "" {
			it.Title = m.Title
		}
		if it.Quality == 0 {
			it.Quality = m.QualityOr(0)
		}
		if it.Popularity == 0 {
			it.Popularity = m.PopularityOr(0)
		}
		if it.MeanUserRating == 0 && m.MeanUserRating != nil {
			it.MeanUserRating = *m.MeanUserRating
		}
		if it.UserRatingCount == 0 && m.UserRatingCount != nil {
			it.UserRatingCount = *m.UserRatingCount
		}
		if len(it.Genres) == 0 {
			it.Genres = m.Genres
		}
	}
}

// UserFeatures 从观影历史聚合用户画像，年数按快照参考时刻计算。
func (r *Recommender) UserFeatures(ctx context.Context, userID string) (*core.UserFeatures, error) {
	s, err := r.holder.Acquire()
	if err != nil {
		return nil, err
	}
	if r.watched == nil {
		return &core.UserFeatures{UserID: userID}, nil
	}
	ids, err := r.watched.WatchedMovies(ctx, userID)
	if err != nil {
		return nil, err
	}
	return feature.BuildUserFeatures(userID, s.Movies(ids), s.RefTime()), nil
}

// Retrain 重新加载目录并构建快照，成功后原子发布；开启持久化时随即保存。
// 失败时保留旧快照并把错误返回给调用方。
func (r *Recommender) Retrain(ctx context.Context) error {
	start := time.Now()
	s, err := r.holder.Train(ctx, r.loader.Load)
	if errors.Is(err, core.ErrTrainingInProgress) {
		return err
	}
	metrics.RecordTrain(time.Since(start), s.Size(), err)
	if err != nil {
		r.logger.Error().Err(err).Msg("retrain failed, keeping previous snapshot")
		return err
	}
	r.logger.Info().
		Int64("version", s.Version).
		Int("catalog_size", s.Size()).
		Dur("duration", time.Since(start)).
		Msg("snapshot published")

	if r.settings.Snapshot.Persist && r.store != nil {
		if err := r.SaveSnapshot(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("snapshot persist failed")
		}
	}
	return nil
}

// Train 供 RetrainService 调用。
func (r *Recommender) Train(ctx context.Context) error {
	return r.Retrain(ctx)
}

// SaveSnapshot 把当前快照写入 Store。
func (r *Recommender) SaveSnapshot(ctx context.Context) error {
	if r.store == nil {
		return fmt.Errorf("service: snapshot store not configured")
	}
	s, err := r.holder.Acquire()
	if err != nil {
		return err
	}
	if err := snapshot.Save(ctx, r.store, r.snapshotKey(), s); err != nil {
		return err
	}
	r.logger.Info().Int64("version", s.Version).Str("store", r.store.Name()).Msg("snapshot saved")
	return nil
}

// LoadSnapshot 从 Store 恢复快照并发布。key 不存在时返回 core.ErrStoreNotFound。
// 当前快照的训练时刻不早于恢复出的快照时，保持当前快照不变。
func (r *Recommender) LoadSnapshot(ctx context.Context) error {
	if r.store == nil {
		return fmt.Errorf("service: snapshot store not configured")
	}
	s, err := snapshot.Restore(ctx, r.store, r.snapshotKey(), snapshotOptions(r.settings))
	if err != nil {
		return err
	}
	if !r.holder.PublishIfNewer(s) {
		r.logger.Info().
			Time("trained_at", s.TrainedAt).
			Msg("persisted snapshot is not newer than current, keeping current")
		return nil
	}
	metrics.CatalogSize.Set(float64(s.Size()))
	r.logger.Info().
		Int64("version", s.Version).
		Int("catalog_size", s.Size()).
		Time("trained_at", s.TrainedAt).
		Msg("snapshot restored")
	return nil
}
