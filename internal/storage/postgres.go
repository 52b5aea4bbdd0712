package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wlim33/spades-server/internal/game"
)

const createGamesTable = `
CREATE TABLE IF NOT EXISTS games (
	id         UUID PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore persists games as JSONB rows in Postgres.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects to the database at dsn and ensures the games
// table exists.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createGamesTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create games table: %w", err)
	}
	logger.Info("postgres store initialized")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) SaveGame(ctx context.Context, g *game.Game) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal game %s: %w", g.ID(), err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO games (id, data, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		g.ID(), data,
	)
	if err != nil {
		return fmt.Errorf("save game %s: %w", g.ID(), err)
	}
	return nil
}

func (s *PostgresStore) LoadAll(ctx context.Context) ([]*game.Game, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM games`)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var games []*game.Game
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan game row: %w", err)
		}
		var g game.Game
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("unmarshal stored game: %w", err)
		}
		games = append(games, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate game rows: %w", err)
	}
	s.logger.Info("loaded games from storage", zap.Int("count", len(games)))
	return games, nil
}

func (s *PostgresStore) DeleteGame(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete game %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGameNotFound
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
