package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/auction-draft-backend/internal/engine"
)

type Config struct {
	Addr         string        `env:"AUCTION_ADDR" envDefault:":8080"`
	BackupDir    string        `env:"AUCTION_BACKUP_DIR" envDefault:"backups"`
	DatabaseURL  string        `env:"AUCTION_DATABASE_URL"`
	NATSURL      string        `env:"AUCTION_NATS_URL"`
	AdvanceDelay time.Duration `env:"AUCTION_ADVANCE_DELAY" envDefault:"1s"`
	Dev          bool          `env:"AUCTION_DEV" envDefault:"false"`
	DefaultsFile string        `env:"AUCTION_DEFAULTS_FILE"`
}

// Load reads .env files if present, then the process environment. Variables
// already set in the environment win over .env values.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

type leagueDefaults struct {
	LeagueName     string `yaml:"league_name"`
	TeamCount      int    `yaml:"team_count"`
	PlayersPerTeam int    `yaml:"players_per_team"`
	Budget         int    `yaml:"budget"`
	BasePrice      int    `yaml:"base_price"`
}

// LoadDefaults overlays the YAML file at path on the built-in league
// defaults. An empty path returns the built-ins.
func LoadDefaults(path string) (engine.Defaults, error) {
	d := engine.DefaultSettings()
	if path == "" {
		return d, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("read defaults file: %w", err)
	}
	var raw leagueDefaults
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return d, fmt.Errorf("parse defaults file: %w", err)
	}

	if raw.LeagueName != "" {
		d.LeagueName = raw.LeagueName
	}
	for _, f := range []struct {
		dst *int
		v   int
	}{
		{&d.TeamCount, raw.TeamCount},
		{&d.PlayersPerTeam, raw.PlayersPerTeam},
		{&d.Budget, raw.Budget},
		{&d.BasePrice, raw.BasePrice},
	} {
		if f.v < 0 {
			return engine.DefaultSettings(), fmt.Errorf("parse defaults file: negative value %d", f.v)
		}
		if f.v > 0 {
			*f.dst = f.v
		}
	}
	return d, nil
}
