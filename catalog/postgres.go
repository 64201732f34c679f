package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rushteam/moviematch/core"
)

const (
	pgMoviesQuery = `
SELECT m.id, m.title, m.genre_ids, m.vote_average, m.vote_count,
       m.release_date, m.popularity, m.overview, m.poster_path
FROM movies m
WHERE m.vote_average IS NOT NULL AND m.vote_count IS NOT NULL
ORDER BY m.vote_count DESC`

	pgAggregatesQuery = `
SELECT movie_id, AVG(rating)::float8, COUNT(*)
FROM user_movies
WHERE rating IS NOT NULL
GROUP BY movie_id`

	pgWatchedQuery = `
SELECT movie_id
FROM user_movies
WHERE user_id = $1 AND watched = true
ORDER BY rating DESC NULLS LAST, created_at DESC`

	pgSocialQuery = `
WITH friends AS (
    SELECT CASE WHEN user1_id = $1 THEN user2_id ELSE user1_id END AS friend_id
    FROM user_connections
    WHERE $1 IN (user1_id, user2_id)
)
SELECT m.id, m.title, m.genre_ids,
       AVG(um.rating)::float8 AS rating,
       COUNT(DISTINCT um.user_id) AS endorsers,
       array_agg(DISTINCT um.user_id) AS recommenders,
       m.vote_average, m.popularity
FROM user_movies um
JOIN friends f ON f.friend_id = um.user_id
JOIN movies m ON m.id = um.movie_id
WHERE um.rating >= $2
  AND NOT EXISTS (
      SELECT 1 FROM user_movies own
      WHERE own.user_id = $1 AND own.movie_id = um.movie_id
  )
GROUP BY m.id, m.title, m.genre_ids, m.vote_average, m.popularity
ORDER BY rating DESC, endorsers DESC`
)

// DB 是 Postgres 仓储需要的最小查询接口，*pgxpool.Pool 与 pgxmock 都满足。
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres 从关系库读取目录、评分聚合、观影列表与好友推荐。
type Postgres struct {
	db DB
}

// NewPostgres 使用已有连接创建仓储。
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// OpenPool 创建并验证连接池。
func OpenPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("catalog: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog: ping postgres: %w", err)
	}
	return pool, nil
}

func (p *Postgres) LoadMovies(ctx context.Context) ([]core.Movie, error) {
	rows, err := p.db.Query(ctx, pgMoviesQuery)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	defer rows.Close()

	var movies []core.Movie
	for rows.Next() {
		var r movieRow
		if err := rows.Scan(&r.ID, &r.Title, &r.GenreIDs, &r.VoteAverage, &r.VoteCount,
			&r.ReleaseDate, &r.Popularity, &r.Overview, &r.PosterPath); err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		movies = append(movies, r.movie())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movies: %w", err)
	}
	return movies, nil
}

func (p *Postgres) RatingAggregates(ctx context.Context, movieIDs []int64) (map[int64]core.RatingAggregate, error) {
	rows, err := p.db.Query(ctx, pgAggregatesQuery)
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

func (p *Postgres) WatchedMovies(ctx context.Context, userID string) ([]int64, error) {
	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.Query(ctx, pgWatchedQuery, uid)
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

func (p *Postgres) FriendRecommendations(ctx context.Context, userID string, minRating float64) ([]*core.Candidate, error) {
	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.Query(ctx, pgSocialQuery, uid, minRating)
	if err != nil {
		return nil, fmt.Errorf("query friend recommendations: %w", err)
	}
	defer rows.Close()

	var out []*core.Candidate
	for rows.Next() {
		var (
			r            socialRow
			recommenders []int64
		)
		if err := rows.Scan(&r.MovieID, &r.Title, &r.GenreIDs, &r.Rating, &r.Endorsers,
			&recommenders, &r.VoteAverage, &r.Popularity); err != nil {
			return nil, fmt.Errorf("scan friend recommendation: %w", err)
		}
		ids := make([]string, 0, len(recommenders))
		for _, id := range recommenders {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		out = append(out, r.candidate(ids))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend recommendations: %w", err)
	}
	return out, nil
}
