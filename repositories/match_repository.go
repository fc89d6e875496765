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

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx, letting services
// decide whether repository calls run inside a transaction.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	ErrMatchNotFound      = errors.New("match not found")
	ErrMatchLeagueInvalid = errors.New("match league conflict or invalid")
	ErrMatchPlayerInvalid = errors.New("match player conflict or invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id string) (*models.Match, error)
	// ListByLeague returns every match of the league ordered by creation time
	// ascending, id ascending. The rebuild engine folds history in exactly
	// this order, so it must be total and deterministic.
	ListByLeague(ctx context.Context, exec SQLExecutor, leagueID string) ([]*models.Match, error)
	// History returns matches joined with player nicknames, newest first.
	History(ctx context.Context, leagueID string, limit, offset int) ([]*models.Match, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	if match.ID == "" {
		match.ID = uuid.NewString()
	}
	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO matches (id, league_id, winner_id, loser_id, winner_rank, loser_rank, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := executor.ExecContext(ctx, query,
		match.ID,
		match.LeagueID,
		match.WinnerID,
		match.LoserID,
		match.WinnerRank,
		match.LoserRank,
		match.CreatedAt,
	)
	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	query := `
		SELECT id, league_id, winner_id, loser_id, winner_rank, loser_rank, created_at
		FROM matches
		WHERE id = $1`

	match := &models.Match{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&match.ID,
		&match.LeagueID,
		&match.WinnerID,
		&match.LoserID,
		&match.WinnerRank,
		&match.LoserRank,
		&match.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %s: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListByLeague(ctx context.Context, exec SQLExecutor, leagueID string) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, league_id, winner_id, loser_id, winner_rank, loser_rank, created_at
		FROM matches
		WHERE league_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := executor.QueryContext(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for league %s: %w", leagueID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match := &models.Match{}
		if err := rows.Scan(
			&match.ID,
			&match.LeagueID,
			&match.WinnerID,
			&match.LoserID,
			&match.WinnerRank,
			&match.LoserRank,
			&match.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *postgresMatchRepository) History(ctx context.Context, leagueID string, limit, offset int) ([]*models.Match, error) {
	query := `
		SELECT m.id, m.league_id, m.winner_id, m.loser_id, m.winner_rank, m.loser_rank, m.created_at,
		       winner.nickname, loser.nickname
		FROM matches m
		INNER JOIN users winner ON winner.id = m.winner_id
		INNER JOIN users loser ON loser.id = m.loser_id
		WHERE m.league_id = $1
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, leagueID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list match history for league %s: %w", leagueID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match := &models.Match{}
		if err := rows.Scan(
			&match.ID,
			&match.LeagueID,
			&match.WinnerID,
			&match.LoserID,
			&match.WinnerRank,
			&match.LoserRank,
			&match.CreatedAt,
			&match.WinnerNickname,
			&match.LoserNickname,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match history row: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" { // foreign_key_violation
		switch pqErr.Constraint {
		case "matches_league_id_fkey":
			return ErrMatchLeagueInvalid
		case "matches_winner_id_fkey", "matches_loser_id_fkey":
			return ErrMatchPlayerInvalid
		}
	}
	return fmt.Errorf("failed to create match: %w", err)
}
