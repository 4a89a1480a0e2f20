package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is implemented by *pgxpool.Pool and can be mocked for testing.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const movieQuery = `SELECT id, title, COALESCE(poster_url, ''), storage_prefix
FROM movies WHERE id = $1`

const episodeQuery = `SELECT e.id, e.title, COALESCE(e.still_url, ''), COALESCE(s.title, ''),
	e.season_number, e.episode_number, e.storage_prefix
FROM episodes e LEFT JOIN shows s ON s.id = e.show_id WHERE e.id = $1`

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Connect opens a pool and verifies it is reachable.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}

	return pool, nil
}

func (s *PostgresStore) FindContent(ctx context.Context, id string, kind Kind) (*Record, error) {
	rec := &Record{ID: id, Kind: kind}

	var err error
	switch kind {
	case KindMovie:
		err = s.db.QueryRow(ctx, movieQuery, id).Scan(
			&rec.ID, &rec.Name, &rec.Artwork, &rec.StoragePrefix,
		)
	case KindEpisode:
		err = s.db.QueryRow(ctx, episodeQuery, id).Scan(
			&rec.ID, &rec.Name, &rec.Artwork, &rec.ShowName,
			&rec.SeasonNumber, &rec.EpisodeNumber, &rec.StoragePrefix,
		)
	default:
		return nil, fmt.Errorf("unknown content kind %q", kind)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s %s: %w", kind, id, err)
	}

	return rec, nil
}
