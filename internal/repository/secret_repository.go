package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/marqetly/marqetly/internal/models"
)

type SecretRepository interface {
	GetByName(ctx context.Context, name string) (*models.Secret, error)
	Upsert(ctx context.Context, name, value string) error
	ListNames(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, name string) error
}

type secretRepository struct {
	db *sql.DB
}

func NewSecretRepository(db *sql.DB) SecretRepository {
	return &secretRepository{db: db}
}

func (r *secretRepository) GetByName(ctx context.Context, name string) (*models.Secret, error) {
	query := `SELECT id, name, value, created_at, updated_at FROM secrets WHERE name = $1`
	row := r.db.QueryRowContext(ctx, query, name)

	var secret models.Secret
	err := row.Scan(&secret.ID, &secret.Name, &secret.Value, &secret.CreatedAt, &secret.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &secret, nil
}

func (r *secretRepository) Upsert(ctx context.Context, name, value string) error {
	query := `
		INSERT INTO secrets (name, value)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = $3
	`
	_, err := r.db.ExecContext(ctx, query, name, value, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *secretRepository) ListNames(ctx context.Context) ([]string, error) {
	query := `SELECT name FROM secrets ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *secretRepository) Remove(ctx context.Context, name string) error {
	query := `DELETE FROM secrets WHERE name = $1`
	_, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
