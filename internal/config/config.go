package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDatabaseURL = "dailies.db"
	defaultSummaryTime = "23:55"
)

var ErrMissingToken = errors.New("TELEGRAM_TOKEN is required")

// Config keeps runtime settings.
type Config struct {
	DatabaseURL   string
	TelegramToken string
	// OwnerID restricts the bot to one Telegram user when non-zero.
	OwnerID     int64
	SummaryTime string
	Location    *time.Location
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory, when present, fills in variables
// that are not already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		DatabaseURL:   strings.TrimSpace(os.Getenv("DAILIES_DB")),
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		SummaryTime:   strings.TrimSpace(os.Getenv("DAILIES_SUMMARY_TIME")),
		Location:      time.Local,
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.SummaryTime == "" {
		cfg.SummaryTime = defaultSummaryTime
	}

	if raw := strings.TrimSpace(os.Getenv("DAILIES_OWNER_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("DAILIES_OWNER_ID: %w", err)
		}
		cfg.OwnerID = id
	}

	if tz := strings.TrimSpace(os.Getenv("DAILIES_TZ")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("DAILIES_TZ: %w", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// RequireBot checks the settings only the Telegram front end needs.
func (c Config) RequireBot() error {
	if c.TelegramToken == "" {
		return ErrMissingToken
	}
	return nil
}

// Now returns the current time in the configured location.
func (c Config) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}
