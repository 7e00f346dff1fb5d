// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Pricer    PricerConfig    `mapstructure:"pricer"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Web       WebConfig       `mapstructure:"web"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	History   HistoryConfig   `mapstructure:"history"`
	Schema    SchemaConfig    `mapstructure:"schema"`
	Health    HealthConfig    `mapstructure:"health"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// PricerConfig holds upstream price feed configuration.
type PricerConfig struct {
	APIURL       string `mapstructure:"api_url"`
	WebSocketURL string `mapstructure:"websocket_url"`

	// Snapshot pagination.
	PageLimit           int           `mapstructure:"page_limit"`
	PageDelay           time.Duration `mapstructure:"page_delay"`
	MaxSnapshotAttempts int           `mapstructure:"max_snapshot_attempts"`
	SnapshotBackoff     time.Duration `mapstructure:"snapshot_backoff"`
	ServerErrorDelay    time.Duration `mapstructure:"server_error_delay"`

	// Stream reconnects.
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// MonitorConfig holds feed health check configuration.
type MonitorConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	IdleThreshold int           `mapstructure:"idle_threshold"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
}

// WebConfig holds the JSON API server configuration.
type WebConfig struct {
	Port              int           `mapstructure:"port"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// DiscordConfig holds webhook notification configuration.
type DiscordConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	PriceWebhookURLs  []string `mapstructure:"price_webhook_urls"`
	KeyWebhookURLs    []string `mapstructure:"key_webhook_urls"`
	KeyMentionRoleID  string   `mapstructure:"key_mention_role_id"`
	RequestsPerMinute int      `mapstructure:"requests_per_minute"`
}

// HistoryConfig holds the price update journal configuration.
type HistoryConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention"`
}

// SchemaConfig holds item schema configuration.
type SchemaConfig struct {
	ItemsFile string `mapstructure:"items_file"`
}

// HealthConfig holds the health endpoint configuration.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceExporter  string `mapstructure:"trace_exporter"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// OTLPHeadersMap parses "key=value,key2=value2" headers into a map.
func (c *TelemetryConfig) OTLPHeadersMap() map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(c.OTLPHeaders, ",") {
		if kv := strings.SplitN(pair, "=", 2); len(kv) == 2 {
			headers[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}
	return headers
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("PW")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file is fine, env vars and defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "PW_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "PW_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "PW_LOG_LEVEL", "LOG_LEVEL")

	// Pricer
	v.BindEnv("pricer.api_url", "PW_PRICER_API_URL")
	v.BindEnv("pricer.websocket_url", "PW_PRICER_WS_URL")

	// Web
	v.BindEnv("web.port", "PW_WEB_PORT", "PORT")

	// Discord
	v.BindEnv("discord.enabled", "PW_DISCORD_ENABLED")
	v.BindEnv("discord.price_webhook_urls", "PW_DISCORD_PRICE_WEBHOOKS")
	v.BindEnv("discord.key_webhook_urls", "PW_DISCORD_KEY_WEBHOOKS")
	v.BindEnv("discord.key_mention_role_id", "PW_DISCORD_KEY_ROLE_ID")

	// History
	v.BindEnv("history.enabled", "PW_HISTORY_ENABLED")
	v.BindEnv("history.path", "PW_HISTORY_PATH")

	// Schema
	v.BindEnv("schema.items_file", "PW_SCHEMA_ITEMS_FILE")

	// Telemetry
	v.BindEnv("telemetry.enabled", "PW_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "PW_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.trace_exporter", "PW_OTEL_TRACE_EXPORTER")
	v.BindEnv("telemetry.otlp_endpoint", "PW_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "PW_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "pricewatch")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Pricer
	v.SetDefault("pricer.api_url", "https://api2.prices.tf")
	v.SetDefault("pricer.websocket_url", "wss://ws.prices.tf")
	v.SetDefault("pricer.page_limit", 100)
	v.SetDefault("pricer.page_delay", "200ms")
	v.SetDefault("pricer.max_snapshot_attempts", 5)
	v.SetDefault("pricer.snapshot_backoff", "1s")
	v.SetDefault("pricer.server_error_delay", "10s")
	v.SetDefault("pricer.max_reconnects", 0) // infinite
	v.SetDefault("pricer.initial_backoff", "1s")
	v.SetDefault("pricer.max_backoff", "30s")

	// Monitor
	v.SetDefault("monitor.interval", "60s")
	v.SetDefault("monitor.idle_threshold", 3)
	v.SetDefault("monitor.cooldown", "5m")

	// Web
	v.SetDefault("web.port", 8080)
	v.SetDefault("web.requests_per_minute", 300)
	v.SetDefault("web.read_timeout", "10s")
	v.SetDefault("web.write_timeout", "30s")
	v.SetDefault("web.shutdown_timeout", "15s")

	// Discord
	v.SetDefault("discord.enabled", false)
	v.SetDefault("discord.requests_per_minute", 30)

	// History
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "pricewatch.db")
	v.SetDefault("history.retention", "720h") // 30 days

	// Health
	v.SetDefault("health.port", 8081)

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "pricewatch")
	v.SetDefault("telemetry.trace_exporter", "none")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate checks required and internally consistent settings.
func (c *Config) Validate() error {
	if c.Pricer.APIURL == "" {
		return fmt.Errorf("pricer.api_url is required")
	}
	if c.Pricer.WebSocketURL == "" {
		return fmt.Errorf("pricer.websocket_url is required")
	}
	if c.Pricer.PageLimit <= 0 {
		return fmt.Errorf("pricer.page_limit must be positive")
	}
	if c.Pricer.MaxSnapshotAttempts <= 0 {
		return fmt.Errorf("pricer.max_snapshot_attempts must be positive")
	}
	if c.Monitor.IdleThreshold <= 0 {
		return fmt.Errorf("monitor.idle_threshold must be positive")
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port out of range: %d", c.Web.Port)
	}
	if c.Discord.Enabled && len(c.Discord.PriceWebhookURLs) == 0 && len(c.Discord.KeyWebhookURLs) == 0 {
		return fmt.Errorf("discord enabled but no webhook urls configured")
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	return nil
}
