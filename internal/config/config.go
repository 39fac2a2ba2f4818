package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/kiliankoe/promptparty/internal/game"
)

type Config struct {
	Port      string        `env:"PORT" envDefault:"8080"`
	LogLevel  zerolog.Level `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string        `env:"LOG_FORMAT" envDefault:"console"`
	// CardsDir holds prompts.json and answers.json. Empty uses the built-in
	// catalog.
	CardsDir string `env:"CARDS_DIR"`

	MinPlayers       int           `env:"MIN_PLAYERS" envDefault:"3"`
	MaxPlayers       int           `env:"MAX_PLAYERS" envDefault:"8"`
	HandSize         int           `env:"HAND_SIZE" envDefault:"5"`
	WinPoints        int           `env:"WIN_POINTS" envDefault:"5"`
	JudgePickTime    time.Duration `env:"JUDGE_PICK_TIME" envDefault:"20s"`
	PlayersPickTime  time.Duration `env:"PLAYERS_PICK_TIME" envDefault:"60s"`
	JudgeSelectTime  time.Duration `env:"JUDGE_SELECT_TIME" envDefault:"60s"`
	RoundOverTime    time.Duration `env:"ROUND_OVER_TIME" envDefault:"0s"`
	AnonymousJudging bool          `env:"ANONYMOUS_JUDGING" envDefault:"false"`

	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	ActionRate    float64       `env:"ACTION_RATE" envDefault:"10"`
	ActionBurst   int           `env:"ACTION_BURST" envDefault:"20"`

	ExportEnabled bool   `env:"EXPORT_ENABLED" envDefault:"false"`
	ExportFile    string `env:"EXPORT_FILE" envDefault:"./promptparty-results.txt"`
	CORSOrigin    string `env:"CORS_ORIGIN" envDefault:"*"`
}

// Load reads the environment and checks that the game rules it describes
// are playable.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Rules().Validate(); err != nil {
		return nil, err
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", cfg.SweepInterval)
	}
	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be console or json, got %q", cfg.LogFormat)
	}
	return &cfg, nil
}

func (c *Config) Rules() game.Rules {
	return game.Rules{
		MinPlayers:       c.MinPlayers,
		MaxPlayers:       c.MaxPlayers,
		HandSize:         c.HandSize,
		WinPoints:        c.WinPoints,
		JudgePickTime:    c.JudgePickTime,
		PlayersPickTime:  c.PlayersPickTime,
		JudgeSelectTime:  c.JudgeSelectTime,
		RoundOverTime:    c.RoundOverTime,
		AnonymousJudging: c.AnonymousJudging,
	}
}
