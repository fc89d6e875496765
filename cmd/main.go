package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/faceoff-league/faceoff/config"
	"github.com/faceoff-league/faceoff/db"
	"github.com/faceoff-league/faceoff/fixtures"
	"github.com/faceoff-league/faceoff/repositories"
	"github.com/faceoff-league/faceoff/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).
			Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	logger.Info("configuration loaded")

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	if err := db.RunMigrations(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations applied")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	leagueRepo := repositories.NewPostgresLeagueRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	rankingRepo := repositories.NewPostgresRankingRepository(dbConn)
	settingRepo := repositories.NewPostgresSettingRepository(dbConn)

	txBeginner := services.NewTxBeginner(dbConn)
	standingsService := services.NewStandingsService(txBeginner, matchRepo, rankingRepo, logger)

	ctx := context.Background()

	if cfg.DBFixtures {
		seed := cfg.FixtureSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		generator := fixtures.NewGenerator(
			txBeginner, userRepo, leagueRepo, matchRepo, settingRepo,
			standingsService, logger, seed,
		)
		if err := generator.Generate(ctx); err != nil {
			logger.Error("failed to generate fixtures", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Sanity pass: rebuild and report every league's standings so a fresh
	// deployment (or a schema migration) leaves consistent tables behind.
	leagues, err := leagueRepo.ListAll(ctx, nil)
	if err != nil {
		logger.Error("failed to list leagues", slog.Any("error", err))
		os.Exit(1)
	}
	for _, league := range leagues {
		if err := standingsService.Rebuild(ctx, league.ID); err != nil {
			logger.Error("failed to rebuild standings",
				slog.String("league", league.Name), slog.Any("error", err))
			os.Exit(1)
		}
		ranking, err := standingsService.LeagueRanking(ctx, league.ID)
		if err != nil {
			logger.Error("failed to load standings",
				slog.String("league", league.Name), slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("league standings",
			slog.String("league", league.Name),
			slog.String("slug", league.Slug),
			slog.Int("players", len(ranking)))
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
