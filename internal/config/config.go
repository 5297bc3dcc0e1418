package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port   string `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"game.db"`

	BotToken   string `env:"BOT_TOKEN"`
	AdminToken string `env:"ADMIN_TOKEN"`
	// DevUserID stands in for players whose initData is missing; 0 disables it.
	DevUserID int64 `env:"DEV_USER_ID" envDefault:"0"`

	RedisAddr string `env:"REDIS_ADDR"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	MinBet        int64         `env:"MIN_BET" envDefault:"1"`
	MaxBet        int64         `env:"MAX_BET" envDefault:"1000000"`
	DailyBonus    int64         `env:"DAILY_BONUS" envDefault:"1000"`
	BonusCooldown time.Duration `env:"BONUS_COOLDOWN" envDefault:"24h"`

	TiersFile         string        `env:"TIERS_FILE"`
	AllowMultiSession bool          `env:"ALLOW_MULTI_SESSION" envDefault:"false"`
	SessionMaxAge     time.Duration `env:"SESSION_MAX_AGE" envDefault:"0s"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	IdempotencyTTL    time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"10m"`
}

// Load reads the environment and checks the settings the server cannot run without.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.BotToken == "" && c.DevUserID == 0 {
		errs = append(errs, errors.New("BOT_TOKEN is required unless DEV_USER_ID is set"))
	}
	if c.AdminToken == "" {
		errs = append(errs, errors.New("ADMIN_TOKEN is required"))
	}
	if c.MinBet < 1 {
		errs = append(errs, errors.New("MIN_BET must be >= 1"))
	}
	if c.MaxBet < c.MinBet {
		errs = append(errs, errors.New("MAX_BET must be >= MIN_BET"))
	}
	if c.DailyBonus < 0 {
		errs = append(errs, errors.New("DAILY_BONUS must be >= 0"))
	}
	if c.SessionMaxAge < 0 {
		errs = append(errs, errors.New("SESSION_MAX_AGE must be >= 0"))
	}

	return errors.Join(errs...)
}

func (c *Config) Addr() string {
	return ":" + c.Port
}
