// Package snapshot 管理训练产物：目录、中位数、缩放参数、缩放后的向量与相似索引。
//
// 这些产物作为一个不可变整体构建和发布，读路径只通过 Holder 拿到某一版快照，
// 不会看到新目录配旧索引这样的半成品。
package snapshot

import (
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/feature"
	"github.com/rushteam/moviematch/vector"
)

// Options 控制快照构建。
type Options struct {
	// MinCatalogSize 目录少于该数量时拒绝训练，最小为 1
	MinCatalogSize int
	// CacheSize 每个快照内近邻结果缓存条数，0 表示不缓存
	CacheSize int
}

func (o Options) withDefaults() Options {
	if o.MinCatalogSize < 1 {
		o.MinCatalogSize = 1
	}
	return o
}

// Snapshot 是一次训练的完整产物，发布后只读。
type Snapshot struct {
	Version   int64
	TrainedAt time.Time

	movies     []core.Movie
	byID       map[int64]int
	vectorizer *feature.Vectorizer
	scaler     feature.Scaler
	vectors    []feature.Vector
	index      *vector.Index
	popular    []int
	cache      *lru.Cache[neighborKey, []core.SimilarMovie]
}

type neighborKey struct {
	id int64
	k  int
}

// Build 在一份目录上完成向量化、缩放拟合与建索引。
// ref 是上映年数的参考时刻，通常为构建时间。
func Build(movies []core.Movie, ref time.Time, opts Options) (*Snapshot, error) {
	opts = opts.withDefaults()
	if len(movies) < opts.MinCatalogSize {
		return nil, core.NewDomainError(core.ModuleSnapshot, core.ErrorCodeUnavailable,
			fmt.Sprintf("snapshot: catalog has %d movies, need at least %d", len(movies), opts.MinCatalogSize))
	}

	movies = append([]core.Movie(nil), movies...)
	vz := feature.NewVectorizer(movies, ref)
	raw := vz.VectorizeAll(movies)
	scaler, err := feature.FitScaler(raw)
	if err != nil {
		return nil, fmt.Errorf("snapshot: fit scaler: %w", err)
	}
	scaled := make([]feature.Vector, len(raw))
	for i, v := range raw {
		scaled[i] = scaler.Transform(v)
	}
	return assemble(state{
		TrainedAt: ref,
		RefTime:   ref,
		Movies:    movies,
		Medians:   vz.Medians,
		Scaler:    scaler,
		Vectors:   scaled,
	}, opts)
}

// state 是快照可持久化的部分，索引由向量重建。
type state struct {
	Version   int64
	TrainedAt time.Time
	RefTime   time.Time
	Movies    []core.Movie
	Medians   feature.Medians
	Scaler    feature.Scaler
	Vectors   []feature.Vector
}

func assemble(st state, opts Options) (*Snapshot, error) {
	if len(st.Movies) != len(st.Vectors) {
		return nil, fmt.Errorf("snapshot: %d movies for %d vectors", len(st.Movies), len(st.Vectors))
	}
	ids := make([]int64, len(st.Movies))
	byID := make(map[int64]int, len(st.Movies))
	for i := range st.Movies {
		ids[i] = st.Movies[i].ID
		byID[st.Movies[i].ID] = i
	}
	index, err := vector.Build(ids, st.Vectors)
	if err != nil {
		return nil, fmt.Errorf("snapshot: build index: %w", err)
	}

	s := &Snapshot{
		Version:    st.Version,
		TrainedAt:  st.TrainedAt,
		movies:     st.Movies,
		byID:       byID,
		vectorizer: &feature.Vectorizer{Medians: st.Medians, RefTime: st.RefTime},
		scaler:     st.Scaler,
		vectors:    st.Vectors,
		index:      index,
		popular:    popularityOrder(st.Movies),
	}
	if opts.CacheSize > 0 {
		s.cache, err = lru.New[neighborKey, []core.SimilarMovie](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("snapshot: neighbor cache: %w", err)
		}
	}
	return s, nil
}

func (s *Snapshot) state() state {
	return state{
		Version:   s.Version,
		TrainedAt: s.TrainedAt,
		RefTime:   s.vectorizer.RefTime,
		Movies:    s.movies,
		Medians:   s.vectorizer.Medians,
		Scaler:    s.scaler,
		Vectors:   s.vectors,
	}
}

// popularityOrder 按热度降序、质量降序排列目录位置，同分保持目录顺序。
func popularityOrder(movies []core.Movie) []int {
	order := make([]int, len(movies))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ma, mb := &movies[order[a]], &movies[order[b]]
		pa, pb := ma.PopularityOr(0), mb.PopularityOr(0)
		if pa != pb {
			return pa > pb
		}
		return ma.QualityOr(0) > mb.QualityOr(0)
	})
	return order
}

// Size 返回目录大小。
func (s *Snapshot) Size() int {
	if s == nil {
		return 0
	}
	return len(s.movies)
}

// Movie 按 ID 查找目录条目。
func (s *Snapshot) Movie(id int64) (*core.Movie, bool) {
	i, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return &s.movies[i], true
}

// Movies 按 ID 批量查找，未知 ID 跳过。
func (s *Snapshot) Movies(ids []int64) []*core.Movie {
	out := make([]*core.Movie, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.Movie(id); ok {
			out = append(out, m)
		}
	}
	return out
}

// Scaled 返回一部电影缩放后的向量，使用本快照的中位数与缩放参数。
func (s *Snapshot) Scaled(m *core.Movie) feature.Vector {
	return s.scaler.Transform(s.vectorizer.Vectorize(m))
}

// FindSimilar 返回与 id 最相似的 topK 部电影（不含自身），按相似度降序。
// 未知 ID 返回空结果而不是错误。
func (s *Snapshot) FindSimilar(id int64, topK int) []core.SimilarMovie {
	if topK <= 0 {
		return nil
	}
	key := neighborKey{id: id, k: topK}
	if s.cache != nil {
		if hit, ok := s.cache.Get(key); ok {
			return append([]core.SimilarMovie(nil), hit...)
		}
	}

	neighbors, ok := s.index.QueryByID(id, topK)
	if !ok {
		return nil
	}
	out := s.resolve(neighbors)
	if s.cache != nil {
		s.cache.Add(key, append([]core.SimilarMovie(nil), out...))
	}
	return out
}

// SimilarToMovie 对不一定在目录内的电影做相似检索：按本快照的参数向量化后查询，
// 若该电影本身在目录中则剔除自身。
func (s *Snapshot) SimilarToMovie(m *core.Movie, topK int) []core.SimilarMovie {
	if m == nil || topK <= 0 {
		return nil
	}
	k := topK
	if s.index.Contains(m.ID) {
		k++
	}
	raw := s.index.Query(s.Scaled(m), k)
	neighbors := make([]vector.Neighbor, 0, topK)
	for _, n := range raw {
		if n.ID == m.ID {
			continue
		}
		if len(neighbors) == topK {
			break
		}
		neighbors = append(neighbors, n)
	}
	return s.resolve(neighbors)
}

func (s *Snapshot) resolve(neighbors []vector.Neighbor) []core.SimilarMovie {
	out := make([]core.SimilarMovie, 0, len(neighbors))
	for _, n := range neighbors {
		m, ok := s.Movie(n.ID)
		if !ok {
			continue
		}
		out = append(out, core.SimilarMovie{
			Movie:      m,
			Distance:   n.Distance,
			Similarity: vector.Similarity(n.Distance),
		})
	}
	return out
}

// Popular 返回按热度、质量排序的前 limit 部电影，跳过 exclude 中的 ID。
func (s *Snapshot) Popular(limit int, exclude map[int64]struct{}) []*core.Movie {
	if limit <= 0 {
		return nil
	}
	out := make([]*core.Movie, 0, limit)
	for _, i := range s.popular {
		m := &s.movies[i]
		if _, skip := exclude[m.ID]; skip {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out
}

// RefTime 返回计算上映年数的参考时刻。
func (s *Snapshot) RefTime() time.Time {
	return s.vectorizer.RefTime
}
