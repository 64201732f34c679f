package catalog

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/feature"
)

// movieRow 是 movies 表一行的扫描目标，两种数据源共用。
type movieRow struct {
	ID          int64
	Title       sql.NullString
	GenreIDs    any
	VoteAverage sql.NullFloat64
	VoteCount   sql.NullInt64
	ReleaseDate sql.NullTime
	Popularity  sql.NullFloat64
	Overview    sql.NullString
	PosterPath  sql.NullString
}

func (r *movieRow) movie() core.Movie {
	m := core.Movie{
		ID:         r.ID,
		Title:      r.Title.String,
		Overview:   r.Overview.String,
		PosterPath: r.PosterPath.String,
	}
	if genres, ok := feature.ParseGenres(r.GenreIDs); ok {
		m.Genres = genres
	}
	if r.VoteAverage.Valid {
		m.Quality = core.Float64(r.VoteAverage.Float64)
	}
	if r.VoteCount.Valid {
		m.VoteCount = core.Int64(r.VoteCount.Int64)
	}
	if r.Popularity.Valid {
		m.Popularity = core.Float64(r.Popularity.Float64)
	}
	if r.ReleaseDate.Valid {
		t := r.ReleaseDate.Time.UTC()
		m.ReleaseDate = &t
	}
	return m
}

// socialRow 是好友推荐聚合一行的扫描目标。
type socialRow struct {
	MovieID     int64
	Title       sql.NullString
	GenreIDs    any
	Rating      float64
	Endorsers   int64
	VoteAverage sql.NullFloat64
	Popularity  sql.NullFloat64
}

func (r *socialRow) candidate(recommenders []string) *core.Candidate {
	c := &core.Candidate{
		MovieID:      r.MovieID,
		Title:        r.Title.String,
		Source:       core.SourceSocial,
		Rating:       r.Rating,
		Endorsers:    int(r.Endorsers),
		Recommenders: recommenders,
		Quality:      r.VoteAverage.Float64,
		Popularity:   r.Popularity.Float64,
	}
	if genres, ok := feature.ParseGenres(r.GenreIDs); ok {
		c.Genres = genres
	}
	return c
}

// parseUserID 把外部用户 ID 转为表主键，无法解析时视为用户不存在。
func parseUserID(userID string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(userID), 10, 64)
	if err != nil {
		return 0, core.ErrUserNotFound
	}
	return id, nil
}

// parseDate 解析 SQLite 中以文本保存的日期。
func parseDate(s sql.NullString) sql.NullTime {
	if !s.Valid || s.String == "" {
		return sql.NullTime{}
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s.String); err == nil {
			return sql.NullTime{Time: t, Valid: true}
		}
	}
	return sql.NullTime{}
}

func filterAggregates(all map[int64]core.RatingAggregate, ids []int64) map[int64]core.RatingAggregate {
	if len(ids) == 0 {
		return all
	}
	out := make(map[int64]core.RatingAggregate, len(ids))
	for _, id := range ids {
		if agg, ok := all[id]; ok {
			out[id] = agg
		}
	}
	return out
}
