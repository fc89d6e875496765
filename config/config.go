package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all process configuration.
type Config struct {
	DatabaseURL    string
	MigrationsPath string
	// DBFixtures, when true, regenerates the database with synthetic sample
	// data on startup.
	DBFixtures  bool
	FixtureSeed int64
	LogLevel    string
}

// Load reads configuration from environment variables, optionally seeded
// from a local .env file. A missing .env is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}

	fixtures := false
	if v := os.Getenv("DB_FIXTURES"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_FIXTURES environment variable: %w", err)
		}
		fixtures = parsed
	}

	var seed int64
	if v := os.Getenv("FIXTURE_SEED"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid FIXTURE_SEED environment variable: %w", err)
		}
		seed = parsed
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		DatabaseURL:    dbURL,
		MigrationsPath: migrationsPath,
		DBFixtures:     fixtures,
		FixtureSeed:    seed,
		LogLevel:       logLevel,
	}, nil
}
