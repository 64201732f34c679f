package vector

import (
	"fmt"
	"math"
	"sort"

	"github.com/rushteam/moviematch/feature"
)

// Neighbor 是一次近邻查询的结果。
type Neighbor struct {
	ID       int64
	Distance float64
}

// Index 是基于余弦距离的精确 KNN 索引（暴力检索）。
// 构建后只读，可被多个 goroutine 并发查询。
type Index struct {
	ids     []int64
	vectors []feature.Vector
	norms   []float64
	pos     map[int64]int
}

// Build 在缩放后的向量上构建索引，ids 与 vectors 按位置对应。
func Build(ids []int64, vectors []feature.Vector) (*Index, error) {
	if len(ids) != len(vectors) {
		return nil, fmt.Errorf("vector: %d ids for %d vectors", len(ids), len(vectors))
	}
	ix := &Index{
		ids:     append([]int64(nil), ids...),
		vectors: append([]feature.Vector(nil), vectors...),
		norms:   make([]float64, len(vectors)),
		pos:     make(map[int64]int, len(ids)),
	}
	for i, id := range ids {
		if _, dup := ix.pos[id]; dup {
			return nil, fmt.Errorf("vector: duplicate id %d", id)
		}
		ix.pos[id] = i
		ix.norms[i] = norm(vectors[i])
	}
	return ix, nil
}

// Len 返回索引中的条目数。
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.ids)
}

// Vector 返回某个 ID 的向量。
func (ix *Index) Vector(id int64) (feature.Vector, bool) {
	if ix == nil {
		return feature.Vector{}, false
	}
	i, ok := ix.pos[id]
	if !ok {
		return feature.Vector{}, false
	}
	return ix.vectors[i], true
}

// Contains 判断 ID 是否在索引中。
func (ix *Index) Contains(id int64) bool {
	if ix == nil {
		return false
	}
	_, ok := ix.pos[id]
	return ok
}

// Query 返回距离 target 最近的 k 个条目，按距离升序；距离相同按构建顺序。
// k 超过索引大小时截断为索引大小。
func (ix *Index) Query(target feature.Vector, k int) []Neighbor {
	if ix.Len() == 0 || k <= 0 {
		return nil
	}
	if k > len(ix.ids) {
		k = len(ix.ids)
	}
	tn := norm(target)
	all := make([]Neighbor, len(ix.ids))
	for i := range ix.ids {
		all[i] = Neighbor{ID: ix.ids[i], Distance: cosineDistance(target, ix.vectors[i], tn, ix.norms[i])}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Distance < all[j].Distance
	})
	return all[:k]
}

// QueryByID 查询目录内条目的近邻：内部多取一个再剔除自身，自身不占用 k 的名额。
// 未知 ID 返回 ok=false。
func (ix *Index) QueryByID(id int64, k int) ([]Neighbor, bool) {
	target, ok := ix.Vector(id)
	if !ok {
		return nil, false
	}
	if k <= 0 {
		return nil, true
	}
	raw := ix.Query(target, k+1)
	out := make([]Neighbor, 0, k)
	for _, n := range raw {
		if n.ID == id {
			continue
		}
		if len(out) == k {
			break
		}
		out = append(out, n)
	}
	return out, true
}

// Similarity 把距离转换为 (0,1] 区间的相似度，随距离严格递减。
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}

// CosineDistance 返回 1 - 余弦相似度；任一向量模为 0 时距离为 1。
func CosineDistance(a, b feature.Vector) float64 {
	return cosineDistance(a, b, norm(a), norm(b))
}

func cosineDistance(a, b feature.Vector, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 1
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	d := 1 - dot/(na*nb)
	// 浮点误差可能让距离略微越界
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}

func norm(v feature.Vector) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
