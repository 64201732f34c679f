package feature

import (
	"sort"
	"time"

	"github.com/rushteam/moviematch/core"
)

const preferredGenreCount = 3

// BuildUserFeatures 从观影历史聚合用户画像：平均评分、平均热度、偏好类型、平均上映年数。
// 缺失字段不参与对应均值。
func BuildUserFeatures(userID string, watched []*core.Movie, ref time.Time) *core.UserFeatures {
	uf := &core.UserFeatures{UserID: userID, WatchedCount: len(watched)}
	if len(watched) == 0 {
		return uf
	}

	var qSum, pSum, aSum float64
	var qN, pN, aN int
	genreCount := make(map[string]int)
	for _, m := range watched {
		if m == nil {
			continue
		}
		if m.Quality != nil {
			qSum += *m.Quality
			qN++
		}
		if m.Popularity != nil {
			pSum += *m.Popularity
			pN++
		}
		if age, ok := m.AgeYears(ref); ok {
			aSum += age
			aN++
		}
		for _, g := range m.Genres {
			genreCount[g]++
		}
	}
	if qN > 0 {
		uf.AvgQuality = qSum / float64(qN)
	}
	if pN > 0 {
		uf.AvgPopularity = pSum / float64(pN)
	}
	if aN > 0 {
		uf.AvgAgeYears = aSum / float64(aN)
	}

	genres := make([]string, 0, len(genreCount))
	for g := range genreCount {
		genres = append(genres, g)
	}
	sort.Slice(genres, func(i, j int) bool {
		if genreCount[genres[i]] != genreCount[genres[j]] {
			return genreCount[genres[i]] > genreCount[genres[j]]
		}
		return genres[i] < genres[j]
	})
	if len(genres) > preferredGenreCount {
		genres = genres[:preferredGenreCount]
	}
	uf.PreferredGenres = genres
	return uf
}
