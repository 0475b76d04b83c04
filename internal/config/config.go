package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	CompanyGraph  CompanyGraphConfig  `yaml:"company_graph" mapstructure:"company_graph"`
	ContactVerify ContactVerifyConfig `yaml:"contact_verify" mapstructure:"contact_verify"`
	PeopleData    PeopleDataConfig    `yaml:"people_data" mapstructure:"people_data"`
	Anthropic     AnthropicConfig     `yaml:"anthropic" mapstructure:"anthropic"`
	Salesforce    SalesforceConfig    `yaml:"salesforce" mapstructure:"salesforce"`
	Notion        NotionConfig        `yaml:"notion" mapstructure:"notion"`
	Budget        BudgetConfig        `yaml:"budget" mapstructure:"budget"`
	Planner       PlannerConfig       `yaml:"planner" mapstructure:"planner"`
	Fusion        FusionConfig        `yaml:"fusion" mapstructure:"fusion"`
	Scoring       ScoringConfig       `yaml:"scoring" mapstructure:"scoring"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Discover      DiscoverConfig      `yaml:"discover" mapstructure:"discover"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Monitoring    MonitoringConfig    `yaml:"monitoring" mapstructure:"monitoring"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CompanyGraphConfig holds the employment-graph provider settings.
type CompanyGraphConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	CostPerSearch  float64 `yaml:"cost_per_search" mapstructure:"cost_per_search"`
	CostPerProfile float64 `yaml:"cost_per_profile" mapstructure:"cost_per_profile"`
	RatePerSec     float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ContactVerifyConfig holds the contact-verification provider settings.
type ContactVerifyConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	CostPerVerify float64 `yaml:"cost_per_verify" mapstructure:"cost_per_verify"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// PeopleDataConfig holds the people-data provider settings.
type PeopleDataConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	CostPerLookup float64 `yaml:"cost_per_lookup" mapstructure:"cost_per_lookup"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// AnthropicConfig holds the AI-research provider settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
}

// SalesforceConfig holds Salesforce JWT auth settings for result sync.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// NotionConfig holds Notion export settings.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReportDB string `yaml:"report_db" mapstructure:"report_db"`
}

// BudgetConfig configures per-tenant spend caps.
type BudgetConfig struct {
	DailyCapUSD   float64 `yaml:"daily_cap_usd" mapstructure:"daily_cap_usd"`
	MonthlyCapUSD float64 `yaml:"monthly_cap_usd" mapstructure:"monthly_cap_usd"`
	WarnFraction  float64 `yaml:"warn_fraction" mapstructure:"warn_fraction"`
}

// PlannerConfig configures query planning.
type PlannerConfig struct {
	PatternsPath     string  `yaml:"patterns_path" mapstructure:"patterns_path"`
	PerRequestCapUSD float64 `yaml:"per_request_cap_usd" mapstructure:"per_request_cap_usd"`
	PreviewLimit     int     `yaml:"preview_limit" mapstructure:"preview_limit"`
}

// FusionConfig configures candidate fusion.
type FusionConfig struct {
	FuzzyThreshold  float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	ReliabilityPath string  `yaml:"reliability_path" mapstructure:"reliability_path"`
}

// ScoringConfig configures role scoring and group selection.
type ScoringConfig struct {
	DenylistPath string `yaml:"denylist_path" mapstructure:"denylist_path"`
	GroupMin     int    `yaml:"group_min" mapstructure:"group_min"`
	GroupMax     int    `yaml:"group_max" mapstructure:"group_max"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Backend   string `yaml:"backend" mapstructure:"backend"` // "memory" or "redis"
	RedisAddr string `yaml:"redis_addr" mapstructure:"redis_addr"`
	TTLHours  int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// DiscoverConfig configures the orchestrator.
type DiscoverConfig struct {
	MaxConcurrentCalls  int `yaml:"max_concurrent_calls" mapstructure:"max_concurrent_calls"`
	TenantConcurrency   int `yaml:"tenant_concurrency" mapstructure:"tenant_concurrency"`
	CallTimeoutSecs     int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures the background alert checker.
type MonitoringConfig struct {
	Tenant                 string  `yaml:"tenant" mapstructure:"tenant"`
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold   float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	DegradedRateThreshold  float64 `yaml:"degraded_rate_threshold" mapstructure:"degraded_rate_threshold"`
	CostThresholdUSD       float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	LookbackWindowHours    int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs      int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BUYERGROUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "buyergroup.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("company_graph.base_url", "https://api.coresignal.com/cdapi/v2")
	v.SetDefault("company_graph.cost_per_search", 0.05)
	v.SetDefault("company_graph.cost_per_profile", 0.01)
	v.SetDefault("company_graph.rate_per_sec", 5)
	v.SetDefault("contact_verify.base_url", "https://api.prospeo.io")
	v.SetDefault("contact_verify.cost_per_verify", 0.0198)
	v.SetDefault("contact_verify.rate_per_sec", 10)
	v.SetDefault("people_data.base_url", "https://api.peopledatalabs.com/v5")
	v.SetDefault("people_data.cost_per_lookup", 0.03)
	v.SetDefault("people_data.rate_per_sec", 10)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("budget.daily_cap_usd", 50.0)
	v.SetDefault("budget.monthly_cap_usd", 1000.0)
	v.SetDefault("budget.warn_fraction", 0.8)
	v.SetDefault("planner.per_request_cap_usd", 5.0)
	v.SetDefault("planner.preview_limit", 50)
	v.SetDefault("fusion.fuzzy_threshold", 0.6)
	v.SetDefault("scoring.group_min", 8)
	v.SetDefault("scoring.group_max", 15)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("discover.max_concurrent_calls", 16)
	v.SetDefault("discover.tenant_concurrency", 4)
	v.SetDefault("discover.call_timeout_secs", 20)
	v.SetDefault("monitoring.tenant", "default")
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.degraded_rate_threshold", 0.5)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
