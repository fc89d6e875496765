package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/faceoff-league/faceoff/models"
)

var ErrSettingNotFound = errors.New("setting not found")

type SettingRepository interface {
	Get(ctx context.Context, exec SQLExecutor, name string) (*models.Setting, error)
	// Set creates the setting or overwrites its value if it already exists.
	Set(ctx context.Context, exec SQLExecutor, name, value string) error
}

type postgresSettingRepository struct {
	db *sql.DB
}

func NewPostgresSettingRepository(db *sql.DB) SettingRepository {
	return &postgresSettingRepository{db: db}
}

func (r *postgresSettingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSettingRepository) Get(ctx context.Context, exec SQLExecutor, name string) (*models.Setting, error) {
	executor := r.getExecutor(exec)
	setting := &models.Setting{}
	err := executor.QueryRowContext(ctx,
		`SELECT name, value FROM settings WHERE name = $1`, name).
		Scan(&setting.Name, &setting.Value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingNotFound
		}
		return nil, fmt.Errorf("failed to get setting %s: %w", name, err)
	}
	return setting, nil
}

func (r *postgresSettingRepository) Set(ctx context.Context, exec SQLExecutor, name, value string) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO settings (name, value)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`

	_, err := executor.ExecContext(ctx, query, name, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", name, err)
	}
	return nil
}
