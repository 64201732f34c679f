package catalog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/moviematch/core"
)

const testSchema = `
CREATE TABLE movies (
    id INTEGER PRIMARY KEY,
    title TEXT,
    genre_ids TEXT,
    vote_average REAL,
    vote_count INTEGER,
    release_date TEXT,
    popularity REAL,
    overview TEXT,
    poster_path TEXT
);
CREATE TABLE user_movies (
    user_id INTEGER,
    movie_id INTEGER,
    rating REAL,
    watched INTEGER,
    created_at TEXT
);
CREATE TABLE user_connections (
    user1_id INTEGER,
    user2_id INTEGER
);
INSERT INTO movies VALUES
    (1, 'Heat', '80,18', 7.9, 6000, '1995-12-15', 45.5, 'thieves', '/heat.jpg'),
    (2, 'Ronin', '[28, 53]', 7.1, 2500, '1998-09-25', 20.0, NULL, NULL),
    (3, 'Collateral', '80', 7.5, 4000, NULL, 30.0, NULL, NULL),
    (4, 'Draft', NULL, NULL, NULL, NULL, NULL, NULL, NULL);
INSERT INTO user_movies VALUES
    (7, 1, 5.0, 1, '2024-01-01'),
    (7, 3, 4.0, 1, '2024-02-01'),
    (8, 2, 4.5, 1, '2024-01-05'),
    (9, 2, 4.0, 1, '2024-01-06'),
    (9, 1, 5.0, 1, '2024-01-07'),
    (9, 3, 2.0, 1, '2024-01-08');
INSERT INTO user_connections VALUES (7, 8), (9, 7);
`

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movies.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_LoadMovies(t *testing.T) {
	s := openTestDB(t)
	movies, err := s.LoadMovies(context.Background())
	require.NoError(t, err)
	require.Len(t, movies, 3)

	assert.Equal(t, []int64{1, 3, 2}, []int64{movies[0].ID, movies[1].ID, movies[2].ID})
	assert.Equal(t, []string{"80", "18"}, movies[0].Genres)
	assert.Equal(t, []string{"28", "53"}, movies[2].Genres)
	require.NotNil(t, movies[0].ReleaseDate)
	assert.Equal(t, 1995, movies[0].ReleaseDate.Year())
	assert.Nil(t, movies[1].ReleaseDate)
}

func TestSQLite_RatingAggregates(t *testing.T) {
	s := openTestDB(t)
	aggs, err := s.RatingAggregates(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, aggs, 3)
	assert.InDelta(t, 4.25, aggs[2].Mean, 1e-9)
	assert.Equal(t, int64(2), aggs[2].Count)
}

func TestSQLite_WatchedMovies(t *testing.T) {
	s := openTestDB(t)
	ids, err := s.WatchedMovies(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)

	ids, err = s.WatchedMovies(context.Background(), "404")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = s.WatchedMovies(context.Background(), "abc")
	assert.True(t, core.IsNotFound(err))
}

func TestSQLite_FriendRecommendations(t *testing.T) {
	s := openTestDB(t)
	out, err := s.FriendRecommendations(context.Background(), "7", 4.0)
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	assert.Equal(t, int64(2), c.MovieID)
	assert.Equal(t, "Ronin", c.Title)
	assert.InDelta(t, 4.25, c.Rating, 1e-9)
	assert.Equal(t, 2, c.Endorsers)
	assert.ElementsMatch(t, []string{"8", "9"}, c.Recommenders)
	assert.Equal(t, core.SourceSocial, c.Source)
}
