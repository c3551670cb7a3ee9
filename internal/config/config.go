// Package config loads server configuration from defaults, an optional
// config.yaml, a .env file and BIP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps every load or validation failure.
var ErrConfiguration = errors.New("configuration error")

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Presence   PresenceConfig   `mapstructure:"presence"`
	Messages   MessagesConfig   `mapstructure:"messages"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Address        string        `mapstructure:"address" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" validate:"min=1"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret" validate:"required,min=16"`
	JWTExpiration time.Duration `mapstructure:"jwt_expiration" validate:"min=1m"`
}

type DatabaseConfig struct {
	Path         string `mapstructure:"path" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"min=1"`
}

// PresenceConfig controls how liveness is derived from the last heartbeat.
type PresenceConfig struct {
	FreshnessWindow   time.Duration `mapstructure:"freshness_window" validate:"min=1s"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"min=1s,ltfield=FreshnessWindow"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval" validate:"min=1s"`
}

type MessagesConfig struct {
	MaxLength int `mapstructure:"max_length" validate:"min=1"`
}

type ModerationConfig struct {
	CensoredWords []string `mapstructure:"censored_words"`
	CensorChar    string   `mapstructure:"censor_char" validate:"len=1"`
}

// NotifyConfig enables moderator alerts on Telegram when a token is set.
type NotifyConfig struct {
	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID int64  `mapstructure:"telegram_chat_id" validate:"required_with=TelegramToken"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// Enabled reports whether Telegram alerts are configured.
func (n NotifyConfig) Enabled() bool {
	return n.TelegramToken != ""
}

// CensorRune returns the masking rune for censored words.
func (m ModerationConfig) CensorRune() rune {
	for _, r := range m.CensorChar {
		return r
	}
	return '*'
}

// Load reads configuration from:
// 1. Default values
// 2. config.yaml in the working directory (optional)
// 3. .env file (optional)
// 4. BIP_* environment variables
func Load() (*Config, error) {
	// Missing .env is fine; real environment wins over it.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("BIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: failed to read config file: %v", ErrConfiguration, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags on the whole tree.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Secret has no default and must come from the environment.
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_expiration", 24*time.Hour)

	v.SetDefault("database.path", "bip.db")
	v.SetDefault("database.max_open_conns", 1)

	v.SetDefault("presence.freshness_window", 180*time.Second)
	v.SetDefault("presence.heartbeat_interval", 30*time.Second)
	v.SetDefault("presence.sweep_interval", time.Minute)

	v.SetDefault("messages.max_length", 4000)

	v.SetDefault("moderation.censored_words", []string{})
	v.SetDefault("moderation.censor_char", "*")

	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.telegram_chat_id", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
