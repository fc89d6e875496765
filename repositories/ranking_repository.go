package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/faceoff-league/faceoff/models"
)

var ErrRankingNotFound = errors.New("ranking not found")

// RankingRepository accesses the derived standings table. The table is owned
// by the rebuild engine: rows only ever change via DeleteByLeagueID followed
// by BatchCreate inside the engine's exclusive write section.
type RankingRepository interface {
	DeleteByLeagueID(ctx context.Context, exec SQLExecutor, leagueID string) error
	BatchCreate(ctx context.Context, exec SQLExecutor, rankings []*models.Ranking) error
	// ListByLeague returns the standings ordered by rank ascending, joined
	// with each player's nickname.
	ListByLeague(ctx context.Context, exec SQLExecutor, leagueID string) ([]*models.Ranking, error)
	GetByLeagueAndUser(ctx context.Context, exec SQLExecutor, leagueID, userID string) (*models.Ranking, error)
}

type postgresRankingRepository struct {
	db *sql.DB
}

func NewPostgresRankingRepository(db *sql.DB) RankingRepository {
	return &postgresRankingRepository{db: db}
}

func (r *postgresRankingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRankingRepository) DeleteByLeagueID(ctx context.Context, exec SQLExecutor, leagueID string) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM rankings WHERE league_id = $1`, leagueID)
	if err != nil {
		return fmt.Errorf("failed to delete rankings for league %s: %w", leagueID, err)
	}
	return nil
}

func (r *postgresRankingRepository) BatchCreate(ctx context.Context, exec SQLExecutor, rankings []*models.Ranking) error {
	executor := r.getExecutor(exec)
	if len(rankings) == 0 {
		return nil
	}

	query := `
		INSERT INTO rankings
			(league_id, user_id, rank, mu, sigma, wins, losses, win_streak, loss_streak, games)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, ranking := range rankings {
		_, err := executor.ExecContext(ctx, query,
			ranking.LeagueID,
			ranking.UserID,
			ranking.Rank,
			ranking.Mu,
			ranking.Sigma,
			ranking.Wins,
			ranking.Losses,
			ranking.WinStreak,
			ranking.LossStreak,
			ranking.Games,
		)
		if err != nil {
			return fmt.Errorf("failed to insert ranking for user %s: %w", ranking.UserID, err)
		}
	}
	return nil
}

func (r *postgresRankingRepository) scanRanking(rowScanner interface{ Scan(...interface{}) error }) (*models.Ranking, error) {
	ranking := &models.Ranking{}
	err := rowScanner.Scan(
		&ranking.LeagueID,
		&ranking.UserID,
		&ranking.Rank,
		&ranking.Mu,
		&ranking.Sigma,
		&ranking.Wins,
		&ranking.Losses,
		&ranking.WinStreak,
		&ranking.LossStreak,
		&ranking.Games,
		&ranking.Nickname,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRankingNotFound
		}
		return nil, err
	}
	return ranking, nil
}

func (r *postgresRankingRepository) ListByLeague(ctx context.Context, exec SQLExecutor, leagueID string) ([]*models.Ranking, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT rk.league_id, rk.user_id, rk.rank, rk.mu, rk.sigma, rk.wins, rk.losses,
		       rk.win_streak, rk.loss_streak, rk.games, u.nickname
		FROM rankings rk
		INNER JOIN users u ON u.id = rk.user_id
		WHERE rk.league_id = $1
		ORDER BY rk.rank ASC`

	rows, err := executor.QueryContext(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rankings for league %s: %w", leagueID, err)
	}
	defer rows.Close()

	rankings := make([]*models.Ranking, 0)
	for rows.Next() {
		ranking, errScan := r.scanRanking(rows)
		if errScan != nil {
			return nil, errScan
		}
		rankings = append(rankings, ranking)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rankings, nil
}

func (r *postgresRankingRepository) GetByLeagueAndUser(ctx context.Context, exec SQLExecutor, leagueID, userID string) (*models.Ranking, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT rk.league_id, rk.user_id, rk.rank, rk.mu, rk.sigma, rk.wins, rk.losses,
		       rk.win_streak, rk.loss_streak, rk.games, u.nickname
		FROM rankings rk
		INNER JOIN users u ON u.id = rk.user_id
		WHERE rk.league_id = $1 AND rk.user_id = $2`

	row := executor.QueryRowContext(ctx, query, leagueID, userID)
	return r.scanRanking(row)
}
