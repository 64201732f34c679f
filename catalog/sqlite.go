package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/rushteam/moviematch/core"
)

const (
	sqliteMoviesQuery = `
SELECT m.id, m.title, m.genre_ids, m.vote_average, m.vote_count,
       m.release_date, m.popularity, m.overview, m.poster_path
FROM movies m
WHERE m.vote_average IS NOT NULL AND m.vote_count IS NOT NULL
ORDER BY m.vote_count DESC`

	sqliteAggregatesQuery = `
SELECT movie_id, AVG(rating), COUNT(*)
FROM user_movies
WHERE rating IS NOT NULL
GROUP BY movie_id`

	sqliteWatchedQuery = `
SELECT movie_id
FROM user_movies
WHERE user_id = ?1 AND watched = 1
ORDER BY rating DESC, created_at DESC`

	sqliteSocialQuery = `
WITH friends AS (
    SELECT CASE WHEN user1_id = ?1 THEN user2_id ELSE user1_id END AS friend_id
    FROM user_connections
    WHERE ?1 IN (user1_id, user2_id)
)
SELECT m.id, m.title, m.genre_ids,
       AVG(um.rating) AS rating,
       COUNT(DISTINCT um.user_id) AS endorsers,
       group_concat(DISTINCT um.user_id) AS recommenders,
       m.vote_average, m.popularity
FROM user_movies um
JOIN friends f ON f.friend_id = um.user_id
JOIN movies m ON m.id = um.movie_id
WHERE um.rating >= ?2
  AND NOT EXISTS (
      SELECT 1 FROM user_movies own
      WHERE own.user_id = ?1 AND own.movie_id = um.movie_id
  )
GROUP BY m.id
ORDER BY rating DESC, endorsers DESC`
)

// SQLite 从本地数据库文件读取与 Postgres 相同结构的数据。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开数据库文件。
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open sqlite %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: ping sqlite %s: %w", path, err)
	}
	return &SQLite{db: db}, nil
}

// NewSQLite 使用已打开的连接。
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) LoadMovies(ctx context.Context) ([]core.Movie, error) {
	rows, err := s.db.QueryContext(ctx, sqliteMoviesQuery)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	defer rows.Close()

	var movies []core.Movie
	for rows.Next() {
		var (
			r    movieRow
			date sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.GenreIDs, &r.VoteAverage, &r.VoteCount,
			&date, &r.Popularity, &r.Overview, &r.PosterPath); err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		r.ReleaseDate = parseDate(date)
		movies = append(movies, r.movie())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movies: %w", err)
	}
	return movies, nil
}

func (s *SQLite) RatingAggregates(ctx context.Context, movieIDs []int64) (map[int64]core.RatingAggregate, error) {
	rows, err := s.db.QueryContext(ctx, sqliteAggregatesQuery)
	if err != nil {
		return nil, fmt.Errorf("query rating aggregates: %w", err)
	}
	defer rows.Close()

	all := make(map[int64]core.RatingAggregate)
	for rows.Next() {
		var agg core.RatingAggregate
		if err := rows.Scan(&agg.MovieID, &agg.Mean, &agg.Count); err != nil {
			return nil, fmt.Errorf("scan rating aggregate: %w", err)
		}
		all[agg.MovieID] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating aggregates: %w", err)
	}
	return filterAggregates(all, movieIDs), nil
}

func (s *SQLite) WatchedMovies(ctx context.Context, userID string) ([]int64, error) {
	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqliteWatchedQuery, uid)
	if err != nil {
		return nil, fmt.Errorf("query watched movies: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan watched movie: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watched movies: %w", err)
	}
	return ids, nil
}

func (s *SQLite) FriendRecommendations(ctx context.Context, userID string, minRating float64) ([]*core.Candidate, error) {
	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqliteSocialQuery, uid, minRating)
	if err != nil {
		return nil, fmt.Errorf("query friend recommendations: %w", err)
	}
	defer rows.Close()

	var out []*core.Candidate
	for rows.Next() {
		var (
			r            socialRow
			recommenders sql.NullString
		)
		if err := rows.Scan(&r.MovieID, &r.Title, &r.GenreIDs, &r.Rating, &r.Endorsers,
			&recommenders, &r.VoteAverage, &r.Popularity); err != nil {
			return nil, fmt.Errorf("scan friend recommendation: %w", err)
		}
		var ids []string
		if recommenders.String != "" {
			ids = strings.Split(recommenders.String, ",")
		}
		out = append(out, r.candidate(ids))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend recommendations: %w", err)
	}
	return out, nil
}
