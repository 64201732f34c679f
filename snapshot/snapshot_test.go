package snapshot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/store"
)

var ref = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func scenarioCatalog() []core.Movie {
	return []core.Movie{
		{ID: 1, Title: "A", Quality: core.Float64(9), Popularity: core.Float64(90)},
		{ID: 2, Title: "B", Quality: core.Float64(5), Popularity: core.Float64(10)},
		{ID: 3, Title: "C", Quality: core.Float64(7), Popularity: core.Float64(50)},
	}
}

func TestBuild_FindSimilarScenario(t *testing.T) {
	s, err := Build(scenarioCatalog(), ref, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Size())

	for i := 0; i < 3; i++ {
		got := s.FindSimilar(1, 1)
		require.Len(t, got, 1)
		assert.Equal(t, int64(3), got[0].Movie.ID)
	}

	all := s.FindSimilar(1, 5)
	require.Len(t, all, 2)
	for _, sm := range all {
		assert.NotEqual(t, int64(1), sm.Movie.ID)
	}
	assert.Greater(t, all[0].Similarity, all[1].Similarity)
}

func TestFindSimilar_UnknownAndNonPositive(t *testing.T) {
	s, err := Build(scenarioCatalog(), ref, Options{CacheSize: 16})
	require.NoError(t, err)

	assert.Empty(t, s.FindSimilar(404, 3))
	assert.Empty(t, s.FindSimilar(1, 0))
}

func TestFindSimilar_CachedResultIsCopied(t *testing.T) {
	s, err := Build(scenarioCatalog(), ref, Options{CacheSize: 16})
	require.NoError(t, err)

	first := s.FindSimilar(1, 2)
	first[0].Similarity = -1
	second := s.FindSimilar(1, 2)
	assert.Greater(t, second[0].Similarity, 0.0)
}

func TestSimilarToMovie_OutsideCatalog(t *testing.T) {
	s, err := Build(scenarioCatalog(), ref, Options{})
	require.NoError(t, err)

	query := &core.Movie{ID: 99, Quality: core.Float64(8.9), Popularity: core.Float64(88)}
	got := s.SimilarToMovie(query, 1)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Movie.ID)

	self := s.SimilarToMovie(&scenarioCatalog()[0], 2)
	for _, sm := range self {
		assert.NotEqual(t, int64(1), sm.Movie.ID)
	}
}

func TestPopular(t *testing.T) {
	movies := append(scenarioCatalog(), core.Movie{ID: 4, Title: "D", Quality: core.Float64(9.5), Popularity: core.Float64(50)})
	s, err := Build(movies, ref, Options{})
	require.NoError(t, err)

	ids := func(ms []*core.Movie) []int64 {
		out := make([]int64, 0, len(ms))
		for _, m := range ms {
			out = append(out, m.ID)
		}
		return out
	}
	assert.Equal(t, []int64{1, 4, 3, 2}, ids(s.Popular(10, nil)))
	assert.Equal(t, []int64{4, 3}, ids(s.Popular(2, map[int64]struct{}{1: {}})))
	assert.Empty(t, s.Popular(0, nil))
}

func TestBuild_MinCatalogSize(t *testing.T) {
	_, err := Build(nil, ref, Options{})
	assert.True(t, core.IsUnavailable(err))

	_, err = Build(scenarioCatalog(), ref, Options{MinCatalogSize: 10})
	assert.True(t, core.IsUnavailable(err))
}

func TestHolder_AcquireBeforeTrain(t *testing.T) {
	h := NewHolder()
	_, err := h.Acquire()
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)
}

func TestHolder_TrainPublishesAtomically(t *testing.T) {
	h := NewHolder()
	ctx := context.Background()

	s1, err := h.Train(ctx, func(context.Context) (*Snapshot, error) {
		return Build(scenarioCatalog(), ref, Options{})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), s1.Version)

	_, err = h.Train(ctx, func(context.Context) (*Snapshot, error) {
		return nil, errors.New("db down")
	})
	require.Error(t, err)
	assert.Same(t, s1, h.Current())
	assert.EqualError(t, h.LastError(), "db down")

	s2, err := h.Train(ctx, func(context.Context) (*Snapshot, error) {
		return Build(scenarioCatalog()[:2], ref, Options{})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), s2.Version)
	assert.Equal(t, 2, h.Current().Size())
	assert.NoError(t, h.LastError())
}

func TestHolder_ConcurrentTrainRejected(t *testing.T) {
	h := NewHolder()
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = h.Train(context.Background(), func(context.Context) (*Snapshot, error) {
			close(started)
			<-release
			return Build(scenarioCatalog(), ref, Options{})
		})
	}()

	<-started
	assert.True(t, h.Training())
	_, err := h.Train(context.Background(), func(context.Context) (*Snapshot, error) {
		t.Fatal("second build must not run")
		return nil, nil
	})
	assert.ErrorIs(t, err, core.ErrTrainingInProgress)

	close(release)
	wg.Wait()
	assert.False(t, h.Training())
	assert.NotNil(t, h.Current())
}

func TestHolder_ConcurrentPublishAssignsUniqueVersions(t *testing.T) {
	h := NewHolder()
	const n = 32
	published := make([]*Snapshot, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := Build(scenarioCatalog(), ref, Options{})
			if err != nil {
				return
			}
			h.Publish(s)
			published[i] = s
		}(i)
	}
	wg.Wait()

	seen := map[int64]bool{}
	var maxVersion int64
	for _, s := range published {
		require.NotNil(t, s)
		assert.False(t, seen[s.Version], "version %d assigned twice", s.Version)
		seen[s.Version] = true
		if s.Version > maxVersion {
			maxVersion = s.Version
		}
	}
	assert.Equal(t, int64(n), maxVersion)
	assert.Equal(t, maxVersion, h.Current().Version)
}

func TestHolder_PublishIfNewer(t *testing.T) {
	h := NewHolder()
	older, err := Build(scenarioCatalog(), ref, Options{})
	require.NoError(t, err)
	assert.True(t, h.PublishIfNewer(older))
	assert.Equal(t, int64(1), older.Version)

	trained, err := h.Train(context.Background(), func(context.Context) (*Snapshot, error) {
		return Build(scenarioCatalog(), ref.Add(time.Hour), Options{})
	})
	require.NoError(t, err)

	stale, err := Build(scenarioCatalog(), ref, Options{})
	require.NoError(t, err)
	assert.False(t, h.PublishIfNewer(stale))
	assert.Same(t, trained, h.Current())

	same, err := Build(scenarioCatalog(), ref.Add(time.Hour), Options{})
	require.NoError(t, err)
	assert.False(t, h.PublishIfNewer(same))

	newer, err := Build(scenarioCatalog()[:2], ref.Add(2*time.Hour), Options{})
	require.NoError(t, err)
	newer.Version = 10
	assert.True(t, h.PublishIfNewer(newer))
	assert.Same(t, newer, h.Current())
	assert.Equal(t, int64(10), newer.Version)

	// 之后的发布版本号继续递增
	next, err := h.Train(context.Background(), func(context.Context) (*Snapshot, error) {
		return Build(scenarioCatalog(), ref.Add(3*time.Hour), Options{})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), next.Version)
	assert.False(t, h.PublishIfNewer(nil))
}

type staticCatalog struct {
	movies []core.Movie
	err    error
}

func (c staticCatalog) LoadMovies(context.Context) ([]core.Movie, error) {
	return append([]core.Movie(nil), c.movies...), c.err
}

type staticAggregates struct {
	aggs map[int64]core.RatingAggregate
	err  error
}

func (a staticAggregates) RatingAggregates(context.Context, []int64) (map[int64]core.RatingAggregate, error) {
	return a.aggs, a.err
}

func TestLoader_AppliesAggregates(t *testing.T) {
	l := NewLoader(
		staticCatalog{movies: scenarioCatalog()},
		staticAggregates{aggs: map[int64]core.RatingAggregate{1: {MovieID: 1, Mean: 4.5, Count: 12}}},
		Options{},
	)
	l.Now = func() time.Time { return ref }

	s, err := l.Load(context.Background())
	require.NoError(t, err)
	m, ok := s.Movie(1)
	require.True(t, ok)
	require.NotNil(t, m.MeanUserRating)
	assert.Equal(t, 4.5, *m.MeanUserRating)
	assert.Equal(t, int64(12), *m.UserRatingCount)
	assert.Equal(t, ref, s.TrainedAt)
}

func TestLoader_AggregateFailureDegrades(t *testing.T) {
	l := NewLoader(
		staticCatalog{movies: scenarioCatalog()},
		staticAggregates{err: errors.New("timeout")},
		Options{},
	)
	s, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, s.Size())
}

func TestLoader_CatalogFailure(t *testing.T) {
	l := NewLoader(staticCatalog{err: errors.New("connection refused")}, nil, Options{})
	_, err := l.Load(context.Background())
	assert.True(t, core.IsUpstream(err))
}

func TestSaveRestore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	defer st.Close()

	movies := scenarioCatalog()
	movies[0].ReleaseDate = &ref
	movies[0].Genres = []string{"18", "35"}
	orig, err := Build(movies, ref, Options{})
	require.NoError(t, err)
	orig.Version = 7

	require.NoError(t, Save(ctx, st, DefaultKey, orig))
	restored, err := Restore(ctx, st, DefaultKey, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(7), restored.Version)
	assert.Equal(t, orig.Size(), restored.Size())
	assert.Equal(t, orig.FindSimilar(1, 2), restored.FindSimilar(1, 2))
	m, _ := restored.Movie(1)
	assert.Equal(t, orig.Scaled(m), restored.Scaled(m))
}

func TestRestore_Missing(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	_, err := Restore(context.Background(), st, DefaultKey, Options{})
	assert.True(t, core.IsStoreNotFound(err))
}

func TestRestore_Corrupted(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	defer st.Close()

	require.NoError(t, st.Set(ctx, DefaultKey, []byte("not a snapshot")))
	_, err := Restore(ctx, st, DefaultKey, Options{})
	assert.Error(t, err)
}
