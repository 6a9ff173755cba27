package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// OperatorChatID receives automatic sensor notifications.
	OperatorChatID int64  `yaml:"operator_chat_id" envconfig:"CHAT_ID"`
	APIURL         string `yaml:"api_url" envconfig:"TELEGRAM_API_URL"`
	RunMode        string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// RetryAttempts enables transport level retries for dial failures; 0 disables them.
	RetryAttempts int `yaml:"retry_attempts" envconfig:"TELEGRAM_RETRY_ATTEMPTS"`
}

// WebhookConfig specifies how Telegram reaches the webhook endpoint.
type WebhookConfig struct {
	// PublicURL is the externally reachable base URL; empty skips setWebhook.
	PublicURL string `yaml:"public_url" envconfig:"WEBHOOK_PUBLIC_URL"`
}

// HTTPConfig configures the device and webhook HTTP listener.
type HTTPConfig struct {
	Listen      string   `yaml:"listen" envconfig:"HTTP_LISTEN"`
	Port        int      `yaml:"port" envconfig:"PORT"`
	CORSOrigins []string `yaml:"cors_origins" envconfig:"HTTP_CORS_ORIGINS"`
	// ShutdownTimeoutSeconds bounds graceful shutdown; 0 -> default
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds" envconfig:"HTTP_SHUTDOWN_TIMEOUT_SECONDS"`
}

// DisplayConfig controls how values are rendered in chat messages.
type DisplayConfig struct {
	Timezone string `yaml:"timezone" envconfig:"DISPLAY_TIMEZONE"`
}

// SenderConfig tunes the outbound message dispatcher.
type SenderConfig struct {
	QueueSize int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	Workers   int `yaml:"workers" envconfig:"SENDER_WORKERS"`
}

// InfluxConfig enables the InfluxDB archive when URL is set.
type InfluxConfig struct {
	URL    string `yaml:"url" envconfig:"INFLUX_URL"`
	Token  string `yaml:"token" envconfig:"INFLUX_TOKEN"`
	Org    string `yaml:"org" envconfig:"INFLUX_ORG"`
	Bucket string `yaml:"bucket" envconfig:"INFLUX_BUCKET"`
}

// MQTTConfig enables the MQTT device transport when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker" envconfig:"MQTT_BROKER"`
	ClientID string `yaml:"client_id" envconfig:"MQTT_CLIENT_ID"`
	Username string `yaml:"username" envconfig:"MQTT_USERNAME"`
	Password string `yaml:"password" envconfig:"MQTT_PASSWORD"`
	Prefix   string `yaml:"topic_prefix" envconfig:"MQTT_TOPIC_PREFIX"`
	QoS      byte   `yaml:"qos" envconfig:"MQTT_QOS"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	File        string `yaml:"file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// RunModeWebhook receives Telegram updates on POST /webhook/{token}.
	RunModeWebhook = "webhook"
	// RunModeLongpoll pulls Telegram updates with getUpdates.
	RunModeLongpoll = "longpoll"
)

const (
	// DefaultAPIURL is the public Telegram Bot API endpoint.
	DefaultAPIURL = "https://api.telegram.org"
	// DefaultPort matches the port the device firmware expects.
	DefaultPort = 3000
	// DefaultTimezone is used for timestamps shown in chat.
	DefaultTimezone = "Asia/Bangkok"
	// DefaultMQTTPrefix is the topic root for the MQTT transport.
	DefaultMQTTPrefix = "sensorbridge"
	// DefaultInfluxBucket receives archived readings.
	DefaultInfluxBucket = "sensorbridge"
)

// DatabaseConfig holds Postgres archive settings; empty Host disables it.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// Enabled reports whether a database was configured.
func (d DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(d.Host) != ""
}

// Config aggregates the service configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	HTTP     HTTPConfig     `yaml:"http"`
	Display  DisplayConfig  `yaml:"display"`
	Sender   SenderConfig   `yaml:"sender"`
	Database DatabaseConfig `yaml:"database"`
	Influx   InfluxConfig   `yaml:"influx"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Load reads an optional .env file, an optional YAML file, and the environment.
// A missing YAML file is not an error; defaults and environment apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	var cfg Config
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	cfg.Telegram.Token = strings.TrimSpace(cfg.Telegram.Token)
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	api := strings.TrimRight(strings.TrimSpace(cfg.Telegram.APIURL), "/")
	if api == "" {
		api = DefaultAPIURL
	}
	if _, err := url.ParseRequestURI(api); err != nil {
		return fmt.Errorf("invalid telegram.api_url %q: %w", cfg.Telegram.APIURL, err)
	}
	cfg.Telegram.APIURL = api

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeWebhook
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		cfg.Webhook.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.Webhook.PublicURL), "/")
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm
	if cfg.Telegram.RetryAttempts < 0 {
		return fmt.Errorf("telegram.retry_attempts must be >= 0")
	}

	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = DefaultPort
	}
	if cfg.HTTP.Port < 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", cfg.HTTP.Port)
	}
	if cfg.HTTP.ShutdownTimeoutSeconds <= 0 {
		cfg.HTTP.ShutdownTimeoutSeconds = 10
	}
	origins := cfg.HTTP.CORSOrigins[:0]
	for _, o := range cfg.HTTP.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.HTTP.CORSOrigins = origins

	if strings.TrimSpace(cfg.Display.Timezone) == "" {
		cfg.Display.Timezone = DefaultTimezone
	}
	if _, err := time.LoadLocation(cfg.Display.Timezone); err != nil {
		return fmt.Errorf("invalid display.timezone %q: %w", cfg.Display.Timezone, err)
	}

	if cfg.Database.Enabled() {
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.MaxConnections <= 0 {
			cfg.Database.MaxConnections = 4
		}
		if cfg.Database.MigrationsDir == "" {
			cfg.Database.MigrationsDir = "migrations"
		}
	}

	if strings.TrimSpace(cfg.Influx.URL) != "" {
		if cfg.Influx.Org == "" {
			return fmt.Errorf("influx.org is required when influx.url is set")
		}
		if cfg.Influx.Bucket == "" {
			cfg.Influx.Bucket = DefaultInfluxBucket
		}
	}

	if strings.TrimSpace(cfg.MQTT.Broker) != "" {
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
		cfg.MQTT.Prefix = strings.Trim(strings.TrimSpace(cfg.MQTT.Prefix), "/")
		if cfg.MQTT.Prefix == "" {
			cfg.MQTT.Prefix = DefaultMQTTPrefix
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = "sensorbridge"
		}
	}
	return nil
}

// DisplayLocation resolves the configured display timezone.
func (c *Config) DisplayLocation() *time.Location {
	if c == nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Display.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
