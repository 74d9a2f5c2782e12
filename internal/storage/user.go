package storage

import (
	"context"
	"database/sql"

	"trackhub-backend/internal/models"
)

func (s *Storage) CreateUser(ctx context.Context, email, name string, passwordHash *string) (*models.User, error) {
	query := `
		INSERT INTO users (email, name, password_hash, active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, email, name, password_hash, active, created_at
	`

	var user models.User
	err := s.db.QueryRowContext(ctx, query, email, name, passwordHash).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Active,
		&user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return &user, nil
}

func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, name, password_hash, active, created_at
		FROM users
		WHERE id = $1
	`

	var user models.User
	if err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Active,
		&user.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, name, password_hash, active, created_at
		FROM users
		WHERE email = $1
	`

	var user models.User
	if err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Active,
		&user.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}
