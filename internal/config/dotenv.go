package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	RoundDurationSeconds     int
	CountdownSeconds         int
	StartingLives            int
	DeckSize                 int
	MaxPlayersPrivate        int
	MaxPlayersBattleRoyale   int
	CatalogPath              string
	CatalogURL               string
	CatalogRefreshSeconds    int
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
}

func Default() Config {
	return Config{
		RoundDurationSeconds:     30,
		CountdownSeconds:         60,
		StartingLives:            3,
		DeckSize:                 30,
		MaxPlayersPrivate:        8,
		MaxPlayersBattleRoyale:   20,
		CatalogPath:              "data/cards.json",
		CatalogRefreshSeconds:    3600,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("ROUND_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.RoundDurationSeconds = value
		}
	}
	if raw := os.Getenv("COUNTDOWN_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.CountdownSeconds = value
		}
	}
	if raw := os.Getenv("STARTING_LIVES"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.StartingLives = value
		}
	}
	if raw := os.Getenv("DECK_SIZE"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 1 {
			cfg.DeckSize = value
		}
	}
	if raw := os.Getenv("MAX_PLAYERS_PRIVATE"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 1 {
			cfg.MaxPlayersPrivate = value
		}
	}
	if raw := os.Getenv("MAX_PLAYERS_BATTLE_ROYALE"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 1 {
			cfg.MaxPlayersBattleRoyale = value
		}
	}
	if raw := os.Getenv("CATALOG_PATH"); raw != "" {
		cfg.CatalogPath = raw
	}
	if raw := os.Getenv("CATALOG_URL"); raw != "" {
		cfg.CatalogURL = raw
	}
	if raw := os.Getenv("CATALOG_REFRESH_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.CatalogRefreshSeconds = value
		}
	}
	if raw := os.Getenv("DB_MAX_OPEN_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxOpenConns = value
		}
	}
	if raw := os.Getenv("DB_MAX_IDLE_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxIdleConns = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_LIFETIME_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxLifetimeSeconds = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_IDLE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxIdleTimeSeconds = value
		}
	}
	return cfg
}
