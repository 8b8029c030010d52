package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type StoreBackend string

const (
	StoreFile  StoreBackend = "file"
	StoreRedis StoreBackend = "redis"
)

type Config struct {
	MisskeyAPIURL string `env:"MISSKEY_API_URL,required"`
	MisskeyToken  string `env:"MISSKEY_TOKEN,required"`
	BotUserID     string `env:"BOT_USER_ID,required"`

	// Misskey settings
	StreamChannel  string `env:"STREAM_CHANNEL" envDefault:"homeTimeline"`
	NoteVisibility string `env:"NOTE_VISIBILITY"`

	// Dice engine
	BCDiceAPIURL string `env:"BCDICE_API_URL" envDefault:"https://bcdice.kazagakure.net/v2"`

	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	MaxInflight int           `env:"MAX_INFLIGHT" envDefault:"8"`

	// Storage
	StoreBackend    StoreBackend `env:"STORE_BACKEND" envDefault:"file"`
	SystemsFilePath string       `env:"SYSTEMS_FILE_PATH" envDefault:"data/userSystems.json"`
	RedisAddr       string       `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisKey        string       `env:"REDIS_KEY" envDefault:"dicebot:systems"`
	RollLogPath     string       `env:"ROLL_LOG_PATH" envDefault:"data/rolls.jsonl"`

	// Daily report
	ReportCron string `env:"REPORT_CRON" envDefault:"0 21 * * *"`
	ReportNote bool   `env:"REPORT_NOTE" envDefault:"false"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Engine holds the subset of settings needed to talk to the dice engine
// without a Misskey account.
type Engine struct {
	BCDiceAPIURL string        `env:"BCDICE_API_URL" envDefault:"https://bcdice.kazagakure.net/v2"`
	HTTPTimeout  time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string        `env:"LOG_FORMAT" envDefault:"console"`
}

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func NewEngine() (*Engine, error) {
	cfg := &Engine{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.MisskeyAPIURL) == "" || strings.TrimSpace(c.MisskeyToken) == "" || strings.TrimSpace(c.BotUserID) == "" {
		return fmt.Errorf("MISSKEY_API_URL, MISSKEY_TOKEN and BOT_USER_ID must not be blank")
	}
	switch c.StoreBackend {
	case StoreFile:
		if c.SystemsFilePath == "" {
			return fmt.Errorf("SYSTEMS_FILE_PATH is required for the file store")
		}
	case StoreRedis:
		if c.RedisAddr == "" || c.RedisKey == "" {
			return fmt.Errorf("REDIS_ADDR and REDIS_KEY are required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", c.StoreBackend)
	}
	if c.MaxInflight < 1 {
		return fmt.Errorf("MAX_INFLIGHT must be positive, got %d", c.MaxInflight)
	}
	return nil
}
