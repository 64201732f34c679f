package service

import (
	"time"

	"github.com/rushteam/moviematch/feature"
)

// Thresholds 是当前生效的链路阈值。
type Thresholds struct {
	MinSocial   int `json:"min_social"`
	MaxSeeds    int `json:"max_seeds"`
	PerSeed     int `json:"per_seed"`
	TopK        int `json:"top_k"`
	PersonalMax int `json:"personal_max_seeds"`
}

// Status 是服务状态快照。
type Status struct {
	IndexReady     bool       `json:"index_ready"`
	CatalogSize    int        `json:"catalog_size"`
	Thresholds     Thresholds `json:"thresholds"`
	Version        int64      `json:"version"`
	TrainedAt      time.Time  `json:"trained_at,omitempty"`
	FeatureColumns []string   `json:"feature_columns"`
	Training       bool       `json:"training"`
	LastError      string     `json:"last_error,omitempty"`
}

// Status 返回当前快照与重训状态。
func (r *Recommender) Status() Status {
	st := Status{
		Thresholds: Thresholds{
			MinSocial:   r.expansion.MinSocial,
			MaxSeeds:    r.expansion.MaxSeeds,
			PerSeed:     r.expansion.PerSeed,
			TopK:        r.ranker.TopK,
			PersonalMax: r.personalized.MaxSeeds,
		},
		FeatureColumns: append([]string(nil), feature.FeatureColumns[:]...),
		Training:       r.holder.Training(),
	}
	if s := r.holder.Current(); s != nil {
		st.IndexReady = s.Size() > 0
		st.CatalogSize = s.Size()
		st.Version = s.Version
		st.TrainedAt = s.TrainedAt
	}
	if err := r.holder.LastError(); err != nil {
		st.LastError = err.Error()
	}
	return st
}
