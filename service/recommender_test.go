package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/moviematch/config"
	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/snapshot"
	"github.com/rushteam/moviematch/store"
)

type fakeCatalog struct {
	mu     sync.Mutex
	movies []core.Movie
	err    error
}

func (c *fakeCatalog) LoadMovies(context.Context) ([]core.Movie, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return append([]core.Movie(nil), c.movies...), nil
}

func (c *fakeCatalog) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

type fakeWatched map[string][]int64

func (w fakeWatched) WatchedMovies(_ context.Context, userID string) ([]int64, error) {
	return w[userID], nil
}

type fakeSocial struct {
	items []*core.Candidate
	err   error
}

func (s fakeSocial) FriendRecommendations(context.Context, string, float64) ([]*core.Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*core.Candidate, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it.Clone())
	}
	return out, nil
}

func movies(n int) []core.Movie {
	out := make([]core.Movie, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, core.Movie{
			ID:         int64(i + 1),
			Title:      fmt.Sprintf("movie-%d", i+1),
			Genres:     []string{"18", fmt.Sprintf("%d", 30+i%3)},
			Quality:    core.Float64(float64(5 + i%5)),
			VoteCount:  core.Int64(int64(100 * (i + 1))),
			Popularity: core.Float64(float64(10 * (n - i))),
		})
	}
	return out
}

func friends() []*core.Candidate {
	return []*core.Candidate{
		{MovieID: 3, Source: core.SourceSocial, Rating: 4.5, Endorsers: 2},
		{MovieID: 1, Source: core.SourceSocial, Rating: 5, Endorsers: 1},
		{MovieID: 7, Source: core.SourceSocial, Rating: 4, Endorsers: 3},
	}
}

func newRecommender(t *testing.T, mutate func(*config.Settings, *Options)) (*Recommender, *fakeCatalog) {
	t.Helper()
	cat := &fakeCatalog{movies: movies(12)}
	settings := config.Default()
	opts := Options{
		Settings: settings,
		Catalog:  cat,
		Watched:  fakeWatched{"1": {2, 4}},
		Social:   fakeSocial{items: friends()},
		Store:    store.NewMemoryStore(),
	}
	if mutate != nil {
		mutate(settings, &opts)
	}
	r, err := New(opts)
	require.NoError(t, err)
	return r, cat
}

func TestNew_RequiresCatalog(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNew_InvalidFilterExpr(t *testing.T) {
	settings := config.Default()
	settings.Pipeline.FilterExpr = "item.rating >"
	_, err := New(Options{Settings: settings, Catalog: &fakeCatalog{}})
	assert.Error(t, err)
}

func TestRecommender_BeforeTraining(t *testing.T) {
	r, _ := newRecommender(t, nil)
	ctx := context.Background()

	st := r.Status()
	assert.False(t, st.IndexReady)
	assert.Zero(t, st.CatalogSize)
	assert.Len(t, st.FeatureColumns, 7)
	assert.Equal(t, 15, st.Thresholds.MinSocial)

	_, err := r.FindSimilar(ctx, 1, 3)
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)
	_, err = r.RecommendForUser(ctx, "1", 5)
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)

	// 扩展降级为排序后的社交列表，排序照常
	expanded := r.Expand(ctx, friends())
	assert.Equal(t, []int64{1, 3, 7}, movieIDs(expanded))

	scored, err := r.GetEfficientRecommendations(ctx, friends(), nil)
	require.NoError(t, err)
	require.Len(t, scored, 3)
	assert.Equal(t, int64(1), scored[0].Candidate.MovieID)
}

func TestRecommender_RetrainAndServe(t *testing.T) {
	r, _ := newRecommender(t, nil)
	ctx := context.Background()
	require.NoError(t, r.Retrain(ctx))

	st := r.Status()
	assert.True(t, st.IndexReady)
	assert.Equal(t, 12, st.CatalogSize)
	assert.Equal(t, int64(1), st.Version)
	assert.False(t, st.TrainedAt.IsZero())
	assert.False(t, st.Training)
	assert.Empty(t, st.LastError)

	similar, err := r.FindSimilar(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, similar, 3)
	for i, sm := range similar {
		assert.NotEqual(t, int64(1), sm.Movie.ID)
		if i > 0 {
			assert.LessOrEqual(t, sm.Similarity, similar[i-1].Similarity)
		}
	}

	unknown, err := r.FindSimilar(ctx, 999, 3)
	require.NoError(t, err)
	assert.Empty(t, unknown)

	personal, err := r.RecommendForUser(ctx, "1", 4)
	require.NoError(t, err)
	assert.Len(t, personal, 4)
	for _, c := range personal {
		assert.NotContains(t, []int64{2, 4}, c.MovieID)
	}

	cold, err := r.RecommendForUser(ctx, "nobody", 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, movieIDs(cold))
}

func TestRecommender_RetrainFailureKeepsSnapshot(t *testing.T) {
	r, cat := newRecommender(t, nil)
	ctx := context.Background()
	require.NoError(t, r.Retrain(ctx))

	cat.fail(errors.New("connection refused"))
	err := r.Retrain(ctx)
	require.Error(t, err)
	assert.True(t, core.IsUpstream(err))

	st := r.Status()
	assert.True(t, st.IndexReady)
	assert.Equal(t, int64(1), st.Version)
	assert.Contains(t, st.LastError, "connection refused")

	_, err = r.FindSimilar(ctx, 1, 2)
	assert.NoError(t, err)
}

func TestRecommender_MinCatalogSize(t *testing.T) {
	r, _ := newRecommender(t, func(s *config.Settings, _ *Options) {
		s.Snapshot.MinCatalogSize = 50
	})
	err := r.Retrain(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsUnavailable(err))
	assert.False(t, r.Status().IndexReady)
}

func TestRecommender_SnapshotPersistence(t *testing.T) {
	shared := store.NewMemoryStore()
	ctx := context.Background()

	first, _ := newRecommender(t, func(_ *config.Settings, o *Options) { o.Store = shared })
	require.NoError(t, first.Retrain(ctx))

	second, _ := newRecommender(t, func(_ *config.Settings, o *Options) { o.Store = shared })
	require.NoError(t, second.LoadSnapshot(ctx))
	st := second.Status()
	assert.True(t, st.IndexReady)
	assert.Equal(t, 12, st.CatalogSize)

	want, err := first.FindSimilar(ctx, 5, 3)
	require.NoError(t, err)
	got, err := second.FindSimilar(ctx, 5, 3)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Movie.ID, got[i].Movie.ID)
		assert.InDelta(t, want[i].Similarity, got[i].Similarity, 1e-9)
	}
}

func TestRecommender_LoadSnapshotMissing(t *testing.T) {
	r, _ := newRecommender(t, nil)
	err := r.LoadSnapshot(context.Background())
	assert.True(t, core.IsStoreNotFound(err))

	r, _ = newRecommender(t, func(_ *config.Settings, o *Options) { o.Store = nil })
	assert.Error(t, r.LoadSnapshot(context.Background()))
	assert.Error(t, r.SaveSnapshot(context.Background()))
}

func TestRecommender_RecommendSocial(t *testing.T) {
	r, _ := newRecommender(t, nil)
	ctx := context.Background()
	require.NoError(t, r.Retrain(ctx))

	scored, err := r.RecommendSocial(ctx, "1")
	require.NoError(t, err)
	require.NotEmpty(t, scored)
	assert.LessOrEqual(t, len(scored), 10)

	seen := map[int64]bool{}
	for i, s := range scored {
		assert.False(t, seen[s.Candidate.MovieID], "duplicate movie %d", s.Candidate.MovieID)
		seen[s.Candidate.MovieID] = true
		if i > 0 {
			assert.LessOrEqual(t, s.Score, scored[i-1].Score)
		}
	}
	assert.Equal(t, int64(1), scored[0].Candidate.MovieID)
	// 社交候选由目录补齐质量与标题
	assert.Equal(t, "movie-1", scored[0].Candidate.Title)
	assert.InDelta(t, 5.0, scored[0].Candidate.Quality, 1e-9)
}

func TestRecommender_RecommendSocialDegrades(t *testing.T) {
	r, _ := newRecommender(t, func(_ *config.Settings, o *Options) {
		o.Social = fakeSocial{err: core.WrapUpstream(core.ModuleCatalog, "friends", errors.New("timeout"))}
	})
	ctx := context.Background()
	require.NoError(t, r.Retrain(ctx))

	scored, err := r.RecommendSocial(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, scored)

	_, err = r.RecommendSocial(ctx, "")
	assert.True(t, core.IsNotFound(err))
}

func TestRecommender_FilterExpr(t *testing.T) {
	r, _ := newRecommender(t, func(s *config.Settings, _ *Options) {
		s.Pipeline.FilterExpr = "item.source != 'social'"
	})
	ctx := context.Background()
	require.NoError(t, r.Retrain(ctx))

	scored, err := r.GetEfficientRecommendations(ctx, friends(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, scored)
	for _, s := range scored {
		assert.Equal(t, core.SourceSimilarityExpansion, s.Candidate.Source)
		assert.NotZero(t, s.Candidate.SimilarToID)
	}
}

func TestRecommender_Rank(t *testing.T) {
	r, _ := newRecommender(t, nil)
	scored, err := r.Rank(context.Background(), friends(), 2)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, int64(1), scored[0].Candidate.MovieID)
	assert.InDelta(t, 0.4*5+0.1*1, scored[0].Score, 1e-9)
}

func TestRecommender_UserFeatures(t *testing.T) {
	r, _ := newRecommender(t, nil)
	ctx := context.Background()

	_, err := r.UserFeatures(ctx, "1")
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)

	require.NoError(t, r.Retrain(ctx))
	uf, err := r.UserFeatures(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", uf.UserID)
	assert.Equal(t, 2, uf.WatchedCount)
	// movie-2 质量 6，movie-4 质量 8
	assert.InDelta(t, 7.0, uf.AvgQuality, 1e-9)
	assert.Contains(t, uf.PreferredGenres, "18")
}

func TestRecommender_UntaggedFriendsKeepSocialScore(t *testing.T) {
	r, _ := newRecommender(t, nil)
	untagged := friends()
	for _, c := range untagged {
		c.Source = ""
	}

	scored, err := r.GetEfficientRecommendations(context.Background(), untagged, nil)
	require.NoError(t, err)
	require.Len(t, scored, 3)
	assert.Equal(t, int64(1), scored[0].Candidate.MovieID)
	assert.Equal(t, core.SourceSocial, scored[0].Candidate.Source)
	assert.Equal(t, "social", scored[0].Candidate.Labels["recall_source"].Value)
	assert.InDelta(t, 0.4*5+0.1*1, scored[0].Score, 1e-9)
}

func TestRecommender_PipelineOverridesDriveAllEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  name: tuned
  nodes:
    - type: recall.expansion
      config:
        min_social: 2
        max_seeds: 4
        per_seed: 1
    - type: rank.weighted
      config:
        top_k: 2
        weights:
          social_rating: 1
          social_endorsers: 0
`), 0o600))

	r, _ := newRecommender(t, func(s *config.Settings, _ *Options) { s.Pipeline.Path = path })
	ctx := context.Background()

	th := r.Status().Thresholds
	assert.Equal(t, 2, th.MinSocial)
	assert.Equal(t, 4, th.MaxSeeds)
	assert.Equal(t, 1, th.PerSeed)
	assert.Equal(t, 2, th.TopK)

	require.NoError(t, r.Retrain(ctx))
	// 3 个好友候选已达到 min_social，不再扩展
	expanded := r.Expand(ctx, friends())
	assert.Equal(t, []int64{1, 3, 7}, movieIDs(expanded))
	assert.Equal(t, "skipped", expanded[0].Labels["expansion"].Value)

	scored, err := r.Rank(ctx, friends(), 0)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, int64(1), scored[0].Candidate.MovieID)

	viaPipeline, err := r.GetEfficientRecommendations(ctx, friends(), nil)
	require.NoError(t, err)
	require.Len(t, viaPipeline, 2)
	assert.InDelta(t, scored[0].Score, viaPipeline[0].Score, 1e-9)
}

func TestRecommender_LoadSnapshotKeepsNewerSnapshot(t *testing.T) {
	r, _ := newRecommender(t, nil)
	ctx := context.Background()
	require.NoError(t, r.Retrain(ctx))
	trained := r.Holder().Current()

	stale, err := snapshot.Build(movies(12), time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), snapshot.Options{})
	require.NoError(t, err)
	require.NoError(t, snapshot.Save(ctx, r.store, r.snapshotKey(), stale))

	require.NoError(t, r.LoadSnapshot(ctx))
	assert.Same(t, trained, r.Holder().Current())
	assert.Equal(t, trained.Version, r.Status().Version)
}

func movieIDs(items []*core.Candidate) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.MovieID)
	}
	return out
}
