package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avik-b/pulseboard/internal/models"
	"github.com/avik-b/pulseboard/internal/repository"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, email, username, password_hash, avatar, preferences, stats, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u           models.User
		preferences []byte
		stats       []byte
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.Avatar,
		&preferences,
		&stats,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(preferences, &u.Preferences); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	if err := json.Unmarshal(stats, &u.Stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &u, nil
}

func (s *UserStore) Create(ctx context.Context, user models.User) (*models.User, error) {
	preferences, err := json.Marshal(user.Preferences)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}
	stats, err := json.Marshal(user.Stats)
	if err != nil {
		return nil, fmt.Errorf("encode stats: %w", err)
	}

	query := `
		INSERT INTO users (id, email, username, password_hash, avatar, preferences, stats, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash, user.Avatar, preferences, stats))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getBy(ctx, "id = $1", id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getBy(ctx, "email = $1", email)
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getBy(ctx, "username = $1", username)
}

func (s *UserStore) getBy(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	u, err := scanUser(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpdateProfile applies partial mutations. nil fields pass NULL, and
// COALESCE keeps the stored value, so one static statement covers every
// combination of provided fields.
func (s *UserStore) UpdateProfile(ctx context.Context, id uuid.UUID, update repository.ProfileUpdate) (*models.User, error) {
	var preferences []byte
	if update.Preferences != nil {
		raw, err := json.Marshal(update.Preferences)
		if err != nil {
			return nil, fmt.Errorf("encode preferences: %w", err)
		}
		preferences = raw
	}

	query := `
		UPDATE users
		SET username    = COALESCE($2, username),
		    avatar      = COALESCE($3, avatar),
		    preferences = COALESCE($4, preferences),
		    updated_at  = now()
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query, id, update.Username, update.Avatar, preferences))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// UpdateStats merges the provided counters into the stats document with a
// jsonb concatenation, leaving omitted fields untouched.
func (s *UserStore) UpdateStats(ctx context.Context, id uuid.UUID, update repository.StatsUpdate) (*models.User, error) {
	patch := map[string]any{}
	if update.GamesPlayed != nil {
		patch["gamesPlayed"] = *update.GamesPlayed
	}
	if update.GamesWon != nil {
		patch["gamesWon"] = *update.GamesWon
	}
	if update.Rating != nil {
		patch["rating"] = *update.Rating
	}
	if update.Achievements != nil {
		patch["achievements"] = *update.Achievements
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encode stats patch: %w", err)
	}

	query := `
		UPDATE users
		SET stats = stats || $2::jsonb, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query, id, raw))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update stats: %w", err)
	}
	return u, nil
}

func (s *UserStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *UserStore) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY (stats->>'rating')::int DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
