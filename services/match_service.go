package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/faceoff-league/faceoff/models"
	"github.com/faceoff-league/faceoff/repositories"
)

const defaultHistoryPageSize = 100

// MatchService records reported results and triggers the standings rebuild.
type MatchService interface {
	// Report inserts one match and rebuilds the league's standings, all
	// inside a single exclusive write section, so two simultaneous reports
	// can never interleave their rebuilds. Returns the new match id.
	Report(ctx context.Context, leagueID, winnerUserID, loserUserID string) (string, error)
	// History lists a league's matches newest first, joined with nicknames.
	History(ctx context.Context, leagueID string, limit, offset int) ([]*models.Match, error)
}

type matchService struct {
	db          TxBeginner
	matchRepo   repositories.MatchRepository
	rankingRepo repositories.RankingRepository
	leagueRepo  repositories.LeagueRepository
	userRepo    repositories.UserRepository
	standings   StandingsService
	logger      *slog.Logger
}

func NewMatchService(
	db TxBeginner,
	matchRepo repositories.MatchRepository,
	rankingRepo repositories.RankingRepository,
	leagueRepo repositories.LeagueRepository,
	userRepo repositories.UserRepository,
	standings StandingsService,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		db:          db,
		matchRepo:   matchRepo,
		rankingRepo: rankingRepo,
		leagueRepo:  leagueRepo,
		userRepo:    userRepo,
		standings:   standings,
		logger:      logger,
	}
}

func (s *matchService) Report(ctx context.Context, leagueID, winnerUserID, loserUserID string) (string, error) {
	if winnerUserID == loserUserID {
		return "", ErrSelfPlayForbidden
	}

	league, err := s.leagueRepo.GetByID(ctx, leagueID)
	if err != nil {
		if errors.Is(err, repositories.ErrLeagueNotFound) {
			return "", ErrLeagueNotFound
		}
		return "", fmt.Errorf("failed to load league %s: %w", leagueID, err)
	}
	if !league.Active {
		return "", ErrLeagueInactive
	}
	for _, userID := range []string{winnerUserID, loserUserID} {
		if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return "", ErrUserNotFound
			}
			return "", fmt.Errorf("failed to load user %s: %w", userID, err)
		}
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin report transaction: %w", err)
	}
	var txErr error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			// A failed commit already finished the transaction; sql.ErrTxDone
			// from the rollback is not an error then.
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error("report rollback failed",
					slog.String("league_id", leagueID), slog.Any("error", rbErr))
			}
		}
	}()

	if txErr = LockExclusive(ctx, tx); txErr != nil {
		return "", txErr
	}

	match := &models.Match{
		LeagueID:   leagueID,
		WinnerID:   winnerUserID,
		LoserID:    loserUserID,
		WinnerRank: s.currentRank(ctx, tx, leagueID, winnerUserID),
		LoserRank:  s.currentRank(ctx, tx, leagueID, loserUserID),
		CreatedAt:  time.Now().UTC(),
	}
	if txErr = s.matchRepo.Create(ctx, tx, match); txErr != nil {
		return "", txErr
	}

	if txErr = s.standings.RebuildInTx(ctx, tx, leagueID); txErr != nil {
		return "", txErr
	}

	if txErr = tx.Commit(); txErr != nil {
		return "", fmt.Errorf("failed to commit match report: %w", txErr)
	}

	s.logger.Info("match reported",
		slog.String("league_id", leagueID),
		slog.String("match_id", match.ID),
		slog.String("winner_id", winnerUserID),
		slog.String("loser_id", loserUserID))
	return match.ID, nil
}

// currentRank snapshots a player's standing rank before the match is
// recorded. Best effort: nil when the player has no ranking row yet.
func (s *matchService) currentRank(ctx context.Context, exec repositories.SQLExecutor, leagueID, userID string) *int {
	ranking, err := s.rankingRepo.GetByLeagueAndUser(ctx, exec, leagueID, userID)
	if err != nil {
		return nil
	}
	rank := ranking.Rank
	return &rank
}

func (s *matchService) History(ctx context.Context, leagueID string, limit, offset int) ([]*models.Match, error) {
	if limit <= 0 {
		limit = defaultHistoryPageSize
	}
	if offset < 0 {
		offset = 0
	}
	matches, err := s.matchRepo.History(ctx, leagueID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to load match history for league %s: %w", leagueID, err)
	}
	return matches, nil
}
