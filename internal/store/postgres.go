package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Colla/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const uniqueViolation = "23505"

type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool and checks the server is reachable.
func NewPostgres(ctx context.Context, dsn string, maxConns int32) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, password_hash, created_at
	`, uuid.NewString(), username, passwordHash)

	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, fmt.Errorf("user %q: %w", username, ErrConflict)
		}
		return User{}, err
	}
	return u, nil
}

func (p *Postgres) UserByName(ctx context.Context, username string) (User, error) {
	return scanUser(p.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at FROM users WHERE username = $1
	`, username))
}

func (p *Postgres) UserByID(ctx context.Context, id string) (User, error) {
	return scanUser(p.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at FROM users WHERE id = $1
	`, id))
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (p *Postgres) RoomsOf(ctx context.Context, userID string) ([]Room, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT r.room_key
		FROM rooms r
		JOIN room_members m ON m.room_key = r.room_key
		WHERE m.user_id = $1
		ORDER BY r.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make([]Room, 0, len(keys))
	for _, k := range keys {
		room, err := p.room(ctx, p.pool, domain.RoomKey(k))
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, nil
}

func (p *Postgres) JoinRoom(ctx context.Context, key domain.RoomKey, userID string) (Room, error) {
	var room Room
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO rooms (room_key) VALUES ($1) ON CONFLICT DO NOTHING
		`, string(key)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO room_members (room_key, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, string(key), userID); err != nil {
			return err
		}
		var err error
		room, err = p.room(ctx, tx, key)
		return err
	})
	if err != nil {
		return Room{}, err
	}
	log.Info().Str("module", "store").Str("room", string(key)).Str("user", userID).Msg("room joined")
	return room, nil
}

func (p *Postgres) LeaveRoom(ctx context.Context, key domain.RoomKey, userID string) (Room, error) {
	var room Room
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM room_members WHERE room_key = $1 AND user_id = $2
		`, string(key), userID); err != nil {
			return err
		}
		var err error
		room, err = p.room(ctx, tx, key)
		return err
	})
	if err != nil {
		return Room{}, err
	}
	return room, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (p *Postgres) room(ctx context.Context, q querier, key domain.RoomKey) (Room, error) {
	room := Room{Key: key}
	err := q.QueryRow(ctx, `SELECT created_at FROM rooms WHERE room_key = $1`, string(key)).Scan(&room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Room{}, fmt.Errorf("room %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return Room{}, err
	}
	rows, err := q.Query(ctx, `
		SELECT user_id FROM room_members WHERE room_key = $1 ORDER BY joined_at, user_id
	`, string(key))
	if err != nil {
		return Room{}, err
	}
	room.Members, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return Room{}, err
	}
	return room, nil
}

func (p *Postgres) ListFiles(ctx context.Context, key domain.RoomKey) ([]domain.File, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT name, language, content FROM room_files WHERE room_key = $1 ORDER BY position, name
	`, string(key))
	if err != nil {
		return nil, err
	}
	files, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.File, error) {
		var f domain.File
		err := row.Scan(&f.Name, &f.Language, &f.Content)
		return f, err
	})
	if err != nil {
		return nil, err
	}
	return domain.CloneFiles(files), nil
}

func (p *Postgres) SaveFiles(ctx context.Context, key domain.RoomKey, files []domain.File) error {
	if len(files) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, f := range files {
		batch.Queue(`
			INSERT INTO room_files (room_key, name, language, content, position)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (room_key, name) DO UPDATE
			SET language = EXCLUDED.language, content = EXCLUDED.content,
			    position = EXCLUDED.position, updated_at = NOW()
		`, string(key), f.Name, f.Language, f.Content, i)
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save files of %q: %w", key, err)
	}
	log.Info().Str("module", "store").Str("room", string(key)).Int("files", len(files)).Msg("files saved")
	return nil
}
