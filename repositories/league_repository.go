package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/faceoff-league/faceoff/models"
)

var (
	ErrLeagueNotFound     = errors.New("league not found")
	ErrLeagueSlugConflict = errors.New("league slug is already in use")
)

type LeagueRepository interface {
	Create(ctx context.Context, exec SQLExecutor, league *models.League) error
	GetByID(ctx context.Context, id string) (*models.League, error)
	GetBySlug(ctx context.Context, slug string) (*models.League, error)
	SlugExists(ctx context.Context, exec SQLExecutor, slug string) (bool, error)
	ListAll(ctx context.Context, exec SQLExecutor) ([]*models.League, error)
	ListActive(ctx context.Context, exec SQLExecutor) ([]*models.League, error)
}

type postgresLeagueRepository struct {
	db *sql.DB
}

func NewPostgresLeagueRepository(db *sql.DB) LeagueRepository {
	return &postgresLeagueRepository{db: db}
}

func (r *postgresLeagueRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresLeagueRepository) Create(ctx context.Context, exec SQLExecutor, league *models.League) error {
	executor := r.getExecutor(exec)
	if league.ID == "" {
		league.ID = uuid.NewString()
	}
	if league.CreatedAt.IsZero() {
		league.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO leagues (id, name, slug, active, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := executor.ExecContext(ctx, query,
		league.ID,
		league.Name,
		league.Slug,
		league.Active,
		league.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			if pqErr.Constraint == "leagues_slug_key" {
				return ErrLeagueSlugConflict
			}
		}
		return fmt.Errorf("failed to create league: %w", err)
	}
	return nil
}

func (r *postgresLeagueRepository) scanLeague(rowScanner interface{ Scan(...interface{}) error }) (*models.League, error) {
	league := &models.League{}
	err := rowScanner.Scan(
		&league.ID,
		&league.Name,
		&league.Slug,
		&league.Active,
		&league.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeagueNotFound
		}
		return nil, err
	}
	return league, nil
}

func (r *postgresLeagueRepository) GetByID(ctx context.Context, id string) (*models.League, error) {
	query := `SELECT id, name, slug, active, created_at FROM leagues WHERE id = $1`
	return r.scanLeague(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresLeagueRepository) GetBySlug(ctx context.Context, slug string) (*models.League, error) {
	query := `SELECT id, name, slug, active, created_at FROM leagues WHERE slug = $1`
	return r.scanLeague(r.db.QueryRowContext(ctx, query, slug))
}

func (r *postgresLeagueRepository) SlugExists(ctx context.Context, exec SQLExecutor, slug string) (bool, error) {
	executor := r.getExecutor(exec)
	var exists bool
	err := executor.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM leagues WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check league slug %s: %w", slug, err)
	}
	return exists, nil
}

func (r *postgresLeagueRepository) list(ctx context.Context, executor SQLExecutor, query string) ([]*models.League, error) {
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list leagues: %w", err)
	}
	defer rows.Close()

	leagues := make([]*models.League, 0)
	for rows.Next() {
		league, errScan := r.scanLeague(rows)
		if errScan != nil {
			return nil, errScan
		}
		leagues = append(leagues, league)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return leagues, nil
}

func (r *postgresLeagueRepository) ListAll(ctx context.Context, exec SQLExecutor) ([]*models.League, error) {
	return r.list(ctx, r.getExecutor(exec),
		`SELECT id, name, slug, active, created_at FROM leagues ORDER BY name ASC`)
}

func (r *postgresLeagueRepository) ListActive(ctx context.Context, exec SQLExecutor) ([]*models.League, error) {
	return r.list(ctx, r.getExecutor(exec),
		`SELECT id, name, slug, active, created_at FROM leagues WHERE active = TRUE ORDER BY name ASC`)
}
