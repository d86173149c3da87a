package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
)

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig      `json:"server"`
	Zoo         ZooConfig         `json:"zoo"`
	Scheduler   SchedulerConfig   `json:"scheduler"`
	Feeding     FeedingConfig     `json:"feeding"`
	Weather     WeatherConfig     `json:"weather"`
	Gateway     GatewayConfig     `json:"gateway"`
	Persistence PersistenceConfig `json:"persistence"`
	Database    DatabaseConfig    `json:"database"`
	// Admins may run the maintenance commands. Empty opens them to everyone.
	Admins []string `json:"admins"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type ZooConfig struct {
	AreaCapacity    int      `json:"area_capacity"`
	EventLogSize    int      `json:"event_log_size"`
	CatalogPath     string   `json:"catalog_path"`
	UpstreamTimeout Duration `json:"upstream_timeout"`
}

type SchedulerConfig struct {
	TickInterval  Duration `json:"tick_interval"`
	Speed         float64  `json:"speed"`
	EventChance   float64  `json:"event_chance"`
	FlyoverChance float64  `json:"flyover_chance"`
	Parallelism   int      `json:"parallelism"`
}

type FeedingConfig struct {
	Cooldown        Duration `json:"cooldown"`
	HungerThreshold Duration `json:"hunger_threshold"`
}

type WeatherConfig struct {
	APIKey   string   `json:"api_key"`
	Location string   `json:"location"`
	CacheTTL Duration `json:"cache_ttl"`
}

type GatewayConfig struct {
	Slack     SlackGatewayConfig   `json:"slack"`
	Discord   DiscordGatewayConfig `json:"discord"`
	Broadcast BroadcastConfig      `json:"broadcast"`
}

type SlackGatewayConfig struct {
	Enabled   bool   `json:"enabled"`
	BotToken  string `json:"bot_token"`
	AppToken  string `json:"app_token"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	// Channels maps a guild id to its narration channel.
	Channels map[string]string `json:"channels,omitempty"`
	// Webhooks maps a guild id to a webhook URL used instead of the bot.
	Webhooks map[string]string `json:"webhooks,omitempty"`
	Persona  PersonaConfig     `json:"persona"`
}

type PersonaConfig struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url"`
	Emoji   string `json:"emoji"`
}

type BroadcastConfig struct {
	Timeout     Duration `json:"timeout"`
	HistorySize int      `json:"history_size"`
}

// PersistenceConfig selects the snapshot backend: file, sqlite or postgres.
type PersistenceConfig struct {
	Backend       string   `json:"backend"`
	Dir           string   `json:"dir"`
	Compress      bool     `json:"compress"`
	SQLitePath    string   `json:"sqlite_path"`
	FlushInterval Duration `json:"flush_interval"`
	Timeout       Duration `json:"timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL          string `json:"url"`
	StreamMaxLen int64  `json:"stream_max_len"`
}

// Duration is a time.Duration that reads "30m" style strings or
// integer nanoseconds from JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*d = Duration(time.Duration(x))
	case string:
		if x == "" {
			*d = 0
			return nil
		}
		p, err := time.ParseDuration(x)
		if err != nil {
			return fmt.Errorf("duration %q: %w", x, err)
		}
		*d = Duration(p)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// LoadEnv reads .env files into the process environment. Missing files
// are not an error.
func LoadEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// Load reads a JSON config file, substitutes environment variable
// references and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes raw JSON config. Environment references are expanded first.
func Parse(data []byte) (*Config, error) {
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every zero value with its default.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Zoo.AreaCapacity <= 0 {
		c.Zoo.AreaCapacity = 5
	}
	if c.Zoo.EventLogSize <= 0 {
		c.Zoo.EventLogSize = 50
	}
	if c.Zoo.UpstreamTimeout <= 0 {
		c.Zoo.UpstreamTimeout = Duration(300 * time.Millisecond)
	}

	if c.Scheduler.TickInterval <= 0 {
		c.Scheduler.TickInterval = Duration(time.Minute)
	}
	if c.Scheduler.Speed <= 0 {
		c.Scheduler.Speed = 1
	}
	if c.Scheduler.EventChance <= 0 {
		c.Scheduler.EventChance = 0.35
	}
	if c.Scheduler.FlyoverChance <= 0 {
		c.Scheduler.FlyoverChance = 0.15
	}
	if c.Scheduler.Parallelism <= 0 {
		c.Scheduler.Parallelism = 8
	}

	if c.Feeding.Cooldown <= 0 {
		c.Feeding.Cooldown = Duration(30 * time.Minute)
	}
	if c.Feeding.HungerThreshold <= 0 {
		c.Feeding.HungerThreshold = Duration(12 * time.Hour)
	}

	if c.Weather.Location == "" {
		c.Weather.Location = "Tokyo,JP"
	}
	if c.Weather.CacheTTL <= 0 {
		c.Weather.CacheTTL = Duration(30 * time.Minute)
	}

	if c.Gateway.Broadcast.Timeout <= 0 {
		c.Gateway.Broadcast.Timeout = Duration(5 * time.Second)
	}
	if c.Gateway.Broadcast.HistorySize <= 0 {
		c.Gateway.Broadcast.HistorySize = 200
	}

	if c.Persistence.Backend == "" {
		c.Persistence.Backend = "file"
	}
	if c.Persistence.Dir == "" {
		c.Persistence.Dir = "data/zoos"
	}
	if c.Persistence.SQLitePath == "" {
		c.Persistence.SQLitePath = "data/birdzoo.db"
	}
	if c.Persistence.FlushInterval <= 0 {
		c.Persistence.FlushInterval = Duration(5 * time.Second)
	}
	if c.Persistence.Timeout <= 0 {
		c.Persistence.Timeout = Duration(5 * time.Second)
	}

	if c.Database.Redis.StreamMaxLen <= 0 {
		c.Database.Redis.StreamMaxLen = 1000
	}
}

// Validate rejects settings that cannot run.
func (c *Config) Validate() error {
	switch c.Persistence.Backend {
	case "file", "sqlite", "none":
	case "postgres":
		if c.Database.Postgres.DSN == "" {
			return fmt.Errorf("persistence backend postgres requires database.postgres.dsn")
		}
	default:
		return fmt.Errorf("unknown persistence backend %q", c.Persistence.Backend)
	}
	if c.Scheduler.EventChance > 1 || c.Scheduler.FlyoverChance > 1 {
		return fmt.Errorf("scheduler chances must be within [0, 1]")
	}
	if c.Gateway.Slack.Enabled && c.Gateway.Slack.GuildID == "" {
		return fmt.Errorf("slack gateway requires guild_id")
	}
	return nil
}
