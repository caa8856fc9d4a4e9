package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	WebSocket     WebSocketConfig     `mapstructure:"websocket"`
	Alerting      AlertingConfig      `mapstructure:"alerting"`
	MetricSources MetricSourcesConfig `mapstructure:"metric_sources"`
	Transports    TransportsConfig    `mapstructure:"transports"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	Mode           string        `mapstructure:"mode"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `mapstructure:"ping_interval"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BufferSize   int           `mapstructure:"buffer_size"`
}

// AlertingConfig configures the alert manager and its housekeeping jobs
type AlertingConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	EvaluationInterval   time.Duration `mapstructure:"evaluation_interval"`
	MetricWindow         time.Duration `mapstructure:"metric_window"`
	CorrelationWindow    time.Duration `mapstructure:"correlation_window"`
	CorrelationThreshold int           `mapstructure:"correlation_threshold"`
	MaxConcurrentEvals   int           `mapstructure:"max_concurrent_evals"`
	RulesFile            string        `mapstructure:"rules_file"`
	SampleRetention      time.Duration `mapstructure:"sample_retention"`
	SummarySchedule      string        `mapstructure:"summary_schedule"`
	PurgeSchedule        string        `mapstructure:"purge_schedule"`

	// Defaults applied to fires that carry no rule
	DefaultChatChannel string   `mapstructure:"default_chat_channel"`
	DefaultEmailTo     []string `mapstructure:"default_email_to"`
	DefaultWebhookURL  string   `mapstructure:"default_webhook_url"`
	EscalationDelay    string   `mapstructure:"escalation_delay"`
	EscalationRouting  string   `mapstructure:"escalation_routing_key"`
}

type MetricSourcesConfig struct {
	Prometheus PrometheusSourceConfig `mapstructure:"prometheus"`
	Host       HostSourceConfig       `mapstructure:"host"`
	// CacheTTL memoizes source lookups; zero disables the cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type PrometheusSourceConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	TenantLabel string        `mapstructure:"tenant_label"`
	// Prefixes routes metrics with these prefixes to Prometheus; empty routes everything unmatched.
	Prefixes []string `mapstructure:"prefixes"`
}

type HostSourceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
}

type TransportsConfig struct {
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Slack     SlackConfig     `mapstructure:"slack"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	SMS       SMSConfig       `mapstructure:"sms"`
	PagerDuty PagerDutyConfig `mapstructure:"pagerduty"`
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type SlackConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	APIURL  string `mapstructure:"api_url"`
}

type WebhookConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	InitialBackoff   time.Duration `mapstructure:"initial_backoff"`
	BreakerFailures  int           `mapstructure:"breaker_failures"`
	BreakerResetTime time.Duration `mapstructure:"breaker_reset_time"`
}

type SMSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	GatewayURL string `mapstructure:"gateway_url"`
	APIKey     string `mapstructure:"api_key"`
	From       string `mapstructure:"from"`
}

type PagerDutyConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	EventsURL string `mapstructure:"events_url"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Load reads config.yaml from ./configs or the working directory, applies
// ALERT_ENGINE_* environment overrides and validates the result
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path; an empty path searches
// the default locations
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix("ALERT_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets and common deployment knobs without the prefix
	_ = v.BindEnv("auth.jwt_secret", "ALERT_ENGINE_AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("server.port", "ALERT_ENGINE_SERVER_PORT", "PORT")
	_ = v.BindEnv("database.path", "ALERT_ENGINE_DATABASE_PATH", "DATABASE_PATH")
	_ = v.BindEnv("transports.slack.token", "ALERT_ENGINE_TRANSPORTS_SLACK_TOKEN", "SLACK_BOT_TOKEN")
	_ = v.BindEnv("transports.smtp.password", "ALERT_ENGINE_TRANSPORTS_SMTP_PASSWORD", "SMTP_PASSWORD")
	_ = v.BindEnv("transports.sms.api_key", "ALERT_ENGINE_TRANSPORTS_SMS_API_KEY", "SMS_API_KEY")
	_ = v.BindEnv("metric_sources.prometheus.url", "ALERT_ENGINE_METRIC_SOURCES_PROMETHEUS_URL", "PROMETHEUS_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration for completeness and correctness
func (c *Config) Validate() error {
	var errors []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errors = append(errors, "server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		errors = append(errors, "database.path is required")
	}
	if c.Auth.Enabled && len(c.Auth.JWTSecret) < 16 {
		errors = append(errors, "auth.jwt_secret must be at least 16 characters when auth is enabled")
	}

	if c.Alerting.EvaluationInterval <= 0 {
		errors = append(errors, "alerting.evaluation_interval must be positive")
	}
	if c.Alerting.MetricWindow <= 0 {
		errors = append(errors, "alerting.metric_window must be positive")
	}
	if c.Alerting.CorrelationThreshold < 2 {
		errors = append(errors, "alerting.correlation_threshold must be at least 2")
	}
	if c.Alerting.EscalationDelay != "" {
		if _, err := monitoring.ParseDuration(c.Alerting.EscalationDelay); err != nil {
			errors = append(errors, fmt.Sprintf("alerting.escalation_delay: %v", err))
		}
	}

	if c.MetricSources.Prometheus.Enabled && c.MetricSources.Prometheus.URL == "" {
		errors = append(errors, "metric_sources.prometheus.url is required when prometheus is enabled")
	}

	if c.Transports.SMTP.Enabled {
		if c.Transports.SMTP.Host == "" || c.Transports.SMTP.From == "" {
			errors = append(errors, "transports.smtp.host and transports.smtp.from are required when smtp is enabled")
		}
	}
	if c.Transports.Slack.Enabled && c.Transports.Slack.Token == "" {
		errors = append(errors, "transports.slack.token is required when slack is enabled")
	}
	if c.Transports.SMS.Enabled && c.Transports.SMS.GatewayURL == "" {
		errors = append(errors, "transports.sms.gateway_url is required when sms is enabled")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

// ManagerConfig converts the alerting section into alert manager settings
func (a AlertingConfig) ManagerConfig() *monitoring.AlertingConfig {
	cfg := monitoring.DefaultAlertingConfig()
	cfg.Enabled = a.Enabled
	cfg.EvaluationInterval = a.EvaluationInterval
	cfg.MetricWindow = a.MetricWindow
	cfg.CorrelationWindow = a.CorrelationWindow
	cfg.CorrelationThreshold = a.CorrelationThreshold
	if a.MaxConcurrentEvals > 0 {
		cfg.MaxConcurrentEvals = a.MaxConcurrentEvals
	}
	cfg.DefaultActions = a.DefaultActions()
	cfg.DefaultEscalation = a.DefaultEscalation()
	return cfg
}

// DefaultActions builds the actions run for fires without a rule
func (a AlertingConfig) DefaultActions() []monitoring.AlertAction {
	var actions []monitoring.AlertAction
	if a.DefaultChatChannel != "" {
		actions = append(actions, monitoring.AlertAction{
			Type: monitoring.ActionChat,
			Chat: &monitoring.ChatAction{Channel: a.DefaultChatChannel},
		})
	}
	if len(a.DefaultEmailTo) > 0 {
		actions = append(actions, monitoring.AlertAction{
			Type:  monitoring.ActionEmail,
			Email: &monitoring.EmailAction{To: a.DefaultEmailTo},
		})
	}
	if a.DefaultWebhookURL != "" {
		actions = append(actions, monitoring.AlertAction{
			Type:    monitoring.ActionWebhook,
			Webhook: &monitoring.WebhookAction{URL: a.DefaultWebhookURL},
		})
	}
	return actions
}

// DefaultEscalation pages the configured routing key for high and critical
// alerts still open after EscalationDelay
func (a AlertingConfig) DefaultEscalation() *monitoring.EscalationPolicy {
	if a.EscalationRouting == "" || a.EscalationDelay == "" {
		return nil
	}
	return &monitoring.EscalationPolicy{
		Name: "default",
		Steps: []monitoring.EscalationStep{{
			Delay: a.EscalationDelay,
			Actions: []monitoring.AlertAction{{
				Type: monitoring.ActionPager,
				Conditions: monitoring.ActionConditions{
					Severities: []monitoring.AlertSeverity{monitoring.SeverityHigh, monitoring.SeverityCritical},
				},
				Pager: &monitoring.PagerAction{RoutingKey: a.EscalationRouting},
			}},
		}},
	}
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.path", "./data/alerts.db")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("auth.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.buffer_size", 256)

	// Alerting defaults
	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.evaluation_interval", "30s")
	v.SetDefault("alerting.metric_window", "5m")
	v.SetDefault("alerting.correlation_window", "5m")
	v.SetDefault("alerting.correlation_threshold", 2)
	v.SetDefault("alerting.max_concurrent_evals", 10)
	v.SetDefault("alerting.sample_retention", "24h")
	v.SetDefault("alerting.summary_schedule", "@every 5m")
	v.SetDefault("alerting.purge_schedule", "@hourly")

	v.SetDefault("metric_sources.prometheus.enabled", false)
	v.SetDefault("metric_sources.prometheus.timeout", "10s")
	v.SetDefault("metric_sources.prometheus.tenant_label", "tenant")
	v.SetDefault("metric_sources.host.enabled", true)
	v.SetDefault("metric_sources.host.prefix", "system.")
	v.SetDefault("metric_sources.cache_ttl", "5s")

	v.SetDefault("transports.smtp.port", 587)
	v.SetDefault("transports.webhook.enabled", true)
	v.SetDefault("transports.webhook.timeout", "10s")
	v.SetDefault("transports.webhook.max_attempts", 3)
	v.SetDefault("transports.webhook.initial_backoff", "500ms")
	v.SetDefault("transports.webhook.breaker_failures", 5)
	v.SetDefault("transports.webhook.breaker_reset_time", "1m")
	v.SetDefault("transports.pagerduty.events_url", "https://events.pagerduty.com/v2/enqueue")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "alert_engine")
}
