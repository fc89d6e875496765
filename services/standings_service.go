package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/faceoff-league/faceoff/models"
	"github.com/faceoff-league/faceoff/repositories"
	"github.com/faceoff-league/faceoff/skill"
)

// StandingsService rebuilds and serves a league's standings table.
//
// Every rebuild recomputes the table from scratch: the full match history is
// folded in creation-time order into per-player aggregates (wins, losses,
// streaks, skill rating), the players are sorted by conservative skill
// estimate, and the rankings table for the league is replaced wholesale.
//
// Concurrent match reports are serialized by an exclusive write section over
// the matches and rankings tables. Rebuild owns that section by default;
// RebuildInTx runs inside a section the caller already holds, which is how
// bulk fixture generation makes a whole batch one atomic unit.
type StandingsService interface {
	Rebuild(ctx context.Context, leagueID string) error
	RebuildInTx(ctx context.Context, tx repositories.SQLExecutor, leagueID string) error
	LeagueRanking(ctx context.Context, leagueID string) ([]*models.Ranking, error)
	UserStanding(ctx context.Context, leagueID, userID string) (*models.Ranking, error)
}

type standingsService struct {
	db          TxBeginner
	matchRepo   repositories.MatchRepository
	rankingRepo repositories.RankingRepository
	logger      *slog.Logger
}

func NewStandingsService(
	db TxBeginner,
	matchRepo repositories.MatchRepository,
	rankingRepo repositories.RankingRepository,
	logger *slog.Logger,
) StandingsService {
	return &standingsService{
		db:          db,
		matchRepo:   matchRepo,
		rankingRepo: rankingRepo,
		logger:      logger,
	}
}

// LockExclusive takes the exclusive write section for the whole backend.
// Deliberately coarse: one serialization point for all leagues, correctness
// over throughput at the low write rates a league tracker sees. Callers that
// batch work across leagues take it once and use RebuildInTx.
func LockExclusive(ctx context.Context, tx repositories.SQLExecutor) error {
	if _, err := tx.ExecContext(ctx, `LOCK TABLE matches, rankings IN ACCESS EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("failed to lock match and ranking tables: %w", err)
	}
	return nil
}

// Rebuild recomputes the standings for one league inside its own exclusive
// transaction. Either the entire rankings table for the league is replaced,
// or on any failure the transaction rolls back and no partial state is
// visible. No retries are attempted here.
func (s *standingsService) Rebuild(ctx context.Context, leagueID string) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin rebuild transaction: %w", err)
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
				s.logger.Error("rebuild rollback failed",
					slog.String("league_id", leagueID), slog.Any("error", rbErr))
			}
		}
	}()

	if txErr = LockExclusive(ctx, tx); txErr != nil {
		return txErr
	}
	if txErr = s.rebuild(ctx, tx, leagueID); txErr != nil {
		return txErr
	}
	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("failed to commit rebuild for league %s: %w", leagueID, txErr)
	}
	return nil
}

// RebuildInTx recomputes the standings for one league inside a transaction
// the caller already holds. The caller is responsible for having taken the
// exclusive write section and for commit/rollback of the whole batch.
func (s *standingsService) RebuildInTx(ctx context.Context, tx repositories.SQLExecutor, leagueID string) error {
	return s.rebuild(ctx, tx, leagueID)
}

// playerProfile accumulates one player's aggregates while folding history.
type playerProfile struct {
	userID     string
	wins       int
	losses     int
	winStreak  int
	lossStreak int
	games      int
	rating     skill.Rating
}

func (s *standingsService) rebuild(ctx context.Context, exec repositories.SQLExecutor, leagueID string) error {
	if err := s.rankingRepo.DeleteByLeagueID(ctx, exec, leagueID); err != nil {
		return err
	}

	matches, err := s.matchRepo.ListByLeague(ctx, exec, leagueID)
	if err != nil {
		return err
	}

	profiles := make(map[string]*playerProfile)
	profile := func(userID string) *playerProfile {
		p, ok := profiles[userID]
		if !ok {
			p = &playerProfile{userID: userID, rating: skill.NewRating()}
			profiles[userID] = p
		}
		return p
	}

	for _, match := range matches {
		if match.WinnerID == "" || match.LoserID == "" || match.WinnerID == match.LoserID {
			return fmt.Errorf("%w: match %s in league %s", ErrCorruptMatchHistory, match.ID, leagueID)
		}

		winner := profile(match.WinnerID)
		loser := profile(match.LoserID)

		winner.games++
		winner.wins++
		winner.winStreak++
		winner.lossStreak = 0
		loser.games++
		loser.losses++
		loser.winStreak = 0
		loser.lossStreak++

		winner.rating, loser.rating = skill.Update(winner.rating, loser.rating)
	}

	players := make([]*playerProfile, 0, len(profiles))
	for _, p := range profiles {
		players = append(players, p)
	}

	// Exposure descending; equal exposures fall back to user id so the
	// resulting order is total and identical across rebuilds.
	sort.Slice(players, func(i, j int) bool {
		ei, ej := players[i].rating.Exposure(), players[j].rating.Exposure()
		if ei != ej {
			return ei > ej
		}
		return players[i].userID < players[j].userID
	})

	rankings := make([]*models.Ranking, len(players))
	for i, p := range players {
		rankings[i] = &models.Ranking{
			LeagueID:   leagueID,
			UserID:     p.userID,
			Rank:       i + 1,
			Mu:         p.rating.Mu,
			Sigma:      p.rating.Sigma,
			Wins:       p.wins,
			Losses:     p.losses,
			WinStreak:  p.winStreak,
			LossStreak: p.lossStreak,
			Games:      p.games,
		}
	}

	if err := s.rankingRepo.BatchCreate(ctx, exec, rankings); err != nil {
		return err
	}

	s.logger.Debug("rebuilt rankings",
		slog.String("league_id", leagueID),
		slog.Int("matches", len(matches)),
		slog.Int("players", len(rankings)))
	return nil
}

func (s *standingsService) LeagueRanking(ctx context.Context, leagueID string) ([]*models.Ranking, error) {
	rankings, err := s.rankingRepo.ListByLeague(ctx, nil, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ranking for league %s: %w", leagueID, err)
	}
	return rankings, nil
}

func (s *standingsService) UserStanding(ctx context.Context, leagueID, userID string) (*models.Ranking, error) {
	ranking, err := s.rankingRepo.GetByLeagueAndUser(ctx, nil, leagueID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrRankingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load standing for user %s in league %s: %w", userID, leagueID, err)
	}
	return ranking, nil
}
