// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process configuration shared by the server and historian binaries.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Game      GameConfig      `mapstructure:"game"`
	Historian HistorianConfig `mapstructure:"historian"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

type AuthConfig struct {
	// TokenExpire is "never", "0", or a Go duration string.
	TokenExpire string `mapstructure:"token_expire"`
}

type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
}

// DSN builds the pgx connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	DB      int    `mapstructure:"db"`
	Queue   string `mapstructure:"queue"`
}

type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// GameConfig seeds the house rules of newly created rooms.
type GameConfig struct {
	TurnTimerSec            int  `mapstructure:"turn_timer_sec"`
	MinBid                  int  `mapstructure:"min_bid"`
	OpenBidding             bool `mapstructure:"open_bidding"`
	AllowDealMiss           bool `mapstructure:"allow_deal_miss"`
	DealMissThreshold       int  `mapstructure:"deal_miss_threshold"`
	TrumpChangeRaise        int  `mapstructure:"trump_change_raise"`
	JokerPowerlessFirstLast bool `mapstructure:"joker_powerless_first_last"`
	StartingChips           int  `mapstructure:"starting_chips"`
	TrickClearDelayMs       int  `mapstructure:"trick_clear_delay_ms"`
	AutoStart               bool `mapstructure:"auto_start"`
}

type HistorianConfig struct {
	BatchSize         int           `mapstructure:"batch_size"`
	PollTimeout       time.Duration `mapstructure:"poll_timeout"`
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout"`
}

// legacyEnv maps keys to the unprefixed variable names older deployments set.
var legacyEnv = map[string]string{
	"server.port":       "PORT",
	"auth.token_expire": "TOKEN_EXPIRE_TIME",
	"postgres.user":     "POSTGRES_USER",
	"postgres.password": "POSTGRES_PASSWORD",
	"postgres.host":     "PG_HOST",
	"postgres.port":     "PG_PORT",
	"postgres.database": "PG_DATABASE",
	"redis.addr":        "REDIS_ADDR",
	"redis.db":          "REDIS_DB",
	"redis.queue":       "HISTORIAN_QUEUE_NAME",
	"nats.url":          "NATS_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 9004)
	v.SetDefault("server.log_level", "debug")

	v.SetDefault("auth.token_expire", "never")

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.database", "mighty")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queue", "mighty_actions")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "mighty")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)

	v.SetDefault("game.turn_timer_sec", 30)
	v.SetDefault("game.min_bid", 13)
	v.SetDefault("game.open_bidding", false)
	v.SetDefault("game.allow_deal_miss", true)
	v.SetDefault("game.deal_miss_threshold", 0)
	v.SetDefault("game.trump_change_raise", 0)
	v.SetDefault("game.joker_powerless_first_last", false)
	v.SetDefault("game.starting_chips", 100)
	v.SetDefault("game.trick_clear_delay_ms", 1500)
	v.SetDefault("game.auto_start", true)

	v.SetDefault("historian.batch_size", 100)
	v.SetDefault("historian.poll_timeout", 5*time.Second)
	v.SetDefault("historian.inactivity_timeout", 10*time.Minute)
}

// Load reads defaults, then the optional YAML file at path, then MIGHTY_* environment
// variables (e.g. MIGHTY_REDIS_ADDR). An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MIGHTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, "MIGHTY_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Server.Port <= 0 {
		return nil, fmt.Errorf("server.port must be positive, got %d", cfg.Server.Port)
	}
	return &cfg, nil
}
