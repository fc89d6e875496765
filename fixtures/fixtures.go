// Package fixtures populates the database with synthetic sample data: users,
// leagues, and a plausible match history per league. The whole batch runs as
// one exclusive transaction, with standings rebuilt once per league at the
// end, so a half-generated dataset is never visible.
package fixtures

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/faceoff-league/faceoff/models"
	"github.com/faceoff-league/faceoff/repositories"
	"github.com/faceoff-league/faceoff/services"
	"github.com/faceoff-league/faceoff/utils"
)

// FixturePassword is the shared password of every generated user.
const FixturePassword = "faceoff!"

const (
	minUsers         = 4
	maxUsers         = 12
	minLeagues       = 2
	maxLeagues       = 6
	maxLeagueMatches = 25
	historySpanDays  = 100
)

var humanNames = [][2]string{
	{"Wayne", "Gretzky"}, {"Bobby", "Orr"}, {"Gordie", "Howe"},
	{"Mario", "Lemieux"}, {"Maurice", "Richard"}, {"Doug", "Harvey"},
	{"Jean", "Beliveau"}, {"Bobby", "Hull"}, {"Terry", "Sawchuk"},
	{"Eddie", "Shore"}, {"Guy", "Lafleur"}, {"Mark", "Messier"},
	{"Jacques", "Plante"}, {"Ray", "Bourque"}, {"Howie", "Morenz"},
	{"Glenn", "Hall"}, {"Stan", "Mikita"}, {"Phil", "Esposito"},
	{"Denis", "Potvin"}, {"Mike", "Bossy"}, {"Ted", "Lindsay"},
	{"Patrick", "Roy"}, {"Red", "Kelly"}, {"Bobby", "Clarke"},
	{"Larry", "Robinson"}, {"Ken", "Dryden"}, {"Frank", "Mahovlich"},
	{"Milt", "Schmidt"}, {"Paul", "Coffey"}, {"Henri", "Richard"},
	{"Bryan", "Trottier"}, {"Dickie", "Moore"}, {"Newsy", "Lalonde"},
	{"Syl", "Apps"}, {"Bill", "Durnan"}, {"Charlie", "Conacher"},
	{"Jaromir", "Jagr"}, {"Marcel", "Dionne"}, {"Joe", "Malone"},
	{"Chris", "Chelios"}, {"Dit", "Clapper"}, {"Bernie", "Geoffrion"},
	{"Tim", "Horton"}, {"Bill", "Cook"}, {"Johnny", "Bucyk"},
	{"George", "Hainsworth"}, {"Gilbert", "Perreault"}, {"Max", "Bentley"},
	{"Brad", "Park"}, {"Jari", "Kurri"},
}

var gameNames = []string{
	"Table Tennis", "Chess", "Thumb Wrestling", "Foosball", "Boxing",
	"Checkers", "Scrabble", "Poker", "Billiards", "Basketball",
	"Flag Football", "Horseshoes", "Backgammon", "Shuffleboard", "Archery",
	"Air Hockey", "Bowling", "Tetris", "Street Fighter",
}

type Generator struct {
	db          services.TxBeginner
	userRepo    repositories.UserRepository
	leagueRepo  repositories.LeagueRepository
	matchRepo   repositories.MatchRepository
	settingRepo repositories.SettingRepository
	standings   services.StandingsService
	logger      *slog.Logger
	seed        int64
}

func NewGenerator(
	db services.TxBeginner,
	userRepo repositories.UserRepository,
	leagueRepo repositories.LeagueRepository,
	matchRepo repositories.MatchRepository,
	settingRepo repositories.SettingRepository,
	standings services.StandingsService,
	logger *slog.Logger,
	seed int64,
) *Generator {
	return &Generator{
		db:          db,
		userRepo:    userRepo,
		leagueRepo:  leagueRepo,
		matchRepo:   matchRepo,
		settingRepo: settingRepo,
		standings:   standings,
		logger:      logger,
		seed:        seed,
	}
}

// matchPlan is one synthesized result, computed before anything is written.
type matchPlan struct {
	winnerID string
	loserID  string
	at       time.Time
}

// Generate seeds a complete dataset: access-code setting, users, leagues, and
// match history, then rebuilds every league's standings. Everything happens
// inside a single exclusive write section; on any failure the whole batch
// rolls back.
func (g *Generator) Generate(ctx context.Context) error {
	rng := rand.New(rand.NewSource(g.seed))

	tx, err := g.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin fixtures transaction: %w", err)
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
				g.logger.Error("fixtures rollback failed", slog.Any("error", rbErr))
			}
		}
	}()

	if txErr = services.LockExclusive(ctx, tx); txErr != nil {
		return txErr
	}

	if txErr = g.settingRepo.Set(ctx, tx, services.AccessCodeSetting, "letmeplay"); txErr != nil {
		return txErr
	}

	users, txErr := g.generateUsers(ctx, tx, rng)
	if txErr != nil {
		return txErr
	}
	g.logger.Info("fixtures: users created", slog.Int("count", len(users)))

	leagues, txErr := g.generateLeagues(ctx, tx, rng)
	if txErr != nil {
		return txErr
	}
	g.logger.Info("fixtures: leagues created", slog.Int("count", len(leagues)))

	if txErr = g.generateMatches(ctx, tx, rng, leagues, users); txErr != nil {
		return txErr
	}

	for _, league := range leagues {
		if txErr = g.standings.RebuildInTx(ctx, tx, league.ID); txErr != nil {
			return txErr
		}
	}

	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("failed to commit fixtures: %w", txErr)
	}
	g.logger.Info("fixtures: generation complete")
	return nil
}

func (g *Generator) generateUsers(ctx context.Context, tx repositories.SQLExecutor, rng *rand.Rand) ([]*models.User, error) {
	names := make([][2]string, len(humanNames))
	copy(names, humanNames)
	rng.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })

	// One hash shared by every fixture user; hashing per user at full bcrypt
	// cost would dominate generation time.
	hash, err := utils.HashPassword(FixturePassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash fixture password: %w", err)
	}

	count := minUsers + rng.Intn(maxUsers-minUsers+1)
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		first, last := names[i][0], names[i][1]
		rank := models.RankMember
		if i < 2 {
			rank = models.RankAdmin
		}
		user := &models.User{
			Nickname:     nickname(rng, first, last),
			PasswordHash: hash,
			Rank:         rank,
		}
		if err := g.userRepo.Create(ctx, tx, user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func nickname(rng *rand.Rand, first, last string) string {
	if rng.Intn(2) == 0 {
		first = strings.ToLower(first)
	}
	if rng.Intn(2) == 0 {
		last = strings.ToLower(last)
	}
	return first + last
}

func (g *Generator) generateLeagues(ctx context.Context, tx repositories.SQLExecutor, rng *rand.Rand) ([]*models.League, error) {
	games := make([]string, len(gameNames))
	copy(games, gameNames)
	rng.Shuffle(len(games), func(i, j int) { games[i], games[j] = games[j], games[i] })

	count := minLeagues + rng.Intn(maxLeagues-minLeagues+1)
	leagues := make([]*models.League, 0, count)
	for i := 0; i < count; i++ {
		slug, err := services.AvailableSlug(ctx, g.leagueRepo, tx, utils.Slugify(games[i]))
		if err != nil {
			return nil, err
		}
		league := &models.League{
			Name:   games[i],
			Slug:   slug,
			Active: rng.Intn(4) != 0,
		}
		if err := g.leagueRepo.Create(ctx, tx, league); err != nil {
			return nil, err
		}
		leagues = append(leagues, league)
	}
	return leagues, nil
}

func (g *Generator) generateMatches(ctx context.Context, tx repositories.SQLExecutor, rng *rand.Rand, leagues []*models.League, users []*models.User) error {
	active := make([]*models.League, 0, len(leagues))
	for _, league := range leagues {
		if league.Active {
			active = append(active, league)
		}
	}

	// Synthesize every league's schedule concurrently; this is pure
	// computation, all writes stay on the single transaction below. Each
	// goroutine gets its own seeded source so the output is reproducible.
	plans := make([][]matchPlan, len(active))
	eg, _ := errgroup.WithContext(ctx)
	for i := range active {
		i := i
		leagueRng := rand.New(rand.NewSource(g.seed + int64(i) + 1))
		eg.Go(func() error {
			plans[i] = planLeagueMatches(leagueRng, users)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, league := range active {
		for _, plan := range plans[i] {
			match := &models.Match{
				LeagueID:  league.ID,
				WinnerID:  plan.winnerID,
				LoserID:   plan.loserID,
				CreatedAt: plan.at,
			}
			if err := g.matchRepo.Create(ctx, tx, match); err != nil {
				return err
			}
		}
		g.logger.Info("fixtures: matches created",
			slog.String("league", league.Name), slog.Int("count", len(plans[i])))
	}
	return nil
}

// planLeagueMatches draws a random number of pairings and spreads them evenly
// backwards over the history span, oldest first.
func planLeagueMatches(rng *rand.Rand, users []*models.User) []matchPlan {
	count := rng.Intn(maxLeagueMatches + 1)
	if count == 0 || len(users) < 2 {
		return nil
	}

	interval := historySpanDays * 24 * time.Hour / time.Duration(count)
	at := time.Now().UTC().Add(-historySpanDays * 24 * time.Hour)

	plans := make([]matchPlan, 0, count)
	for i := 0; i < count; i++ {
		a := rng.Intn(len(users))
		b := rng.Intn(len(users) - 1)
		if b >= a {
			b++
		}
		at = at.Add(interval)
		plans = append(plans, matchPlan{
			winnerID: users[a].ID,
			loserID:  users[b].ID,
			at:       at,
		})
	}
	return plans
}
