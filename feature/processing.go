package feature

import (
	"errors"
	"math"
	"sort"
)

// FeatureStatistics 单个维度的统计量。
type FeatureStatistics struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	Std    float64 // 总体标准差
	Median float64
}

// ComputeStatistics 计算一组值的统计量，空输入返回零值。
func ComputeStatistics(values []float64) FeatureStatistics {
	if len(values) == 0 {
		return FeatureStatistics{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	stats := FeatureStatistics{
		Count: len(values),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	stats.Mean = sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - stats.Mean) * (v - stats.Mean)
	}
	stats.Std = math.Sqrt(variance / float64(len(values)))
	stats.Median = computePercentile(sorted, 0.5)

	return stats
}

func computePercentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// ErrEmptyCatalog 表示没有向量可用于拟合缩放参数。
var ErrEmptyCatalog = errors.New("feature: no vectors to fit scaler")

// Scaler 是 z-score 缩放参数，每个快照拟合一次。
// 方差为 0 的维度缩放系数取 1，避免除零。
type Scaler struct {
	Mean  Vector
	Scale Vector
}

// FitScaler 在整份目录的向量上拟合缩放参数。
func FitScaler(vectors []Vector) (Scaler, error) {
	if len(vectors) == 0 {
		return Scaler{}, ErrEmptyCatalog
	}
	var s Scaler
	column := make([]float64, len(vectors))
	for d := 0; d < Dims; d++ {
		for i, v := range vectors {
			column[i] = v[d]
		}
		stats := ComputeStatistics(column)
		s.Mean[d] = stats.Mean
		s.Scale[d] = stats.Std
		if stats.Std == 0 || math.IsNaN(stats.Std) {
			s.Scale[d] = 1
		}
	}
	return s, nil
}

// Transform 用已拟合的参数缩放一个向量。
func (s Scaler) Transform(v Vector) Vector {
	var out Vector
	for d := 0; d < Dims; d++ {
		scale := s.Scale[d]
		if scale == 0 {
			scale = 1
		}
		out[d] = (v[d] - s.Mean[d]) / scale
	}
	return out
}
