package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Meta       MetaConfig       `yaml:"meta"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Thresholds ThresholdConfig  `yaml:"thresholds"`
	Polling    PollingConfig    `yaml:"polling"`
	Storage    StorageConfig    `yaml:"storage"`
	Archive    ArchiveConfig    `yaml:"archive"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// MetaConfig holds Graph API client configuration, including the adaptive
// rate-limit delay tiers. DelayBaseMS applies below 20% quota usage; the
// other tiers apply at >=20/40/60/80% respectively.
type MetaConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIVersion     string `yaml:"api_version"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	PageSize       int    `yaml:"page_size"`
	BatchSize      int    `yaml:"batch_size"`
	MaxRetries     int    `yaml:"max_retries"`

	DelayBaseMS     int `yaml:"delay_base_ms"`
	DelayLightMS    int `yaml:"delay_light_ms"`
	DelayModerateMS int `yaml:"delay_moderate_ms"`
	DelayElevatedMS int `yaml:"delay_elevated_ms"`
	DelayHighMS     int `yaml:"delay_high_ms"`

	BackoffBaseSeconds   int `yaml:"backoff_base_seconds"`
	MaxBackoffSeconds    int `yaml:"max_backoff_seconds"`
	UsageHalfLifeSeconds int `yaml:"usage_half_life_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c MetaConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MaxBackoff returns the backoff cap as a duration
func (c MetaConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffSeconds) * time.Second
}

// UsageHalfLife returns the quota-usage decay half-life as a duration
func (c MetaConfig) UsageHalfLife() time.Duration {
	return time.Duration(c.UsageHalfLifeSeconds) * time.Second
}

// OpenAIConfig holds OpenAI API configuration for the reasoning upgrade
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Enabled        bool   `yaml:"enabled"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ThresholdConfig holds every rule-engine threshold: noise filters,
// performance buckets, trend states, and guardrails.
type ThresholdConfig struct {
	// Noise filters: audiences below these are excluded from evaluation
	MinSpend     float64 `yaml:"min_spend"`
	MinPurchases int     `yaml:"min_purchases"`
	MinAgeDays   int     `yaml:"min_age_days"`

	// Performance buckets (normalized ROAS)
	WinnerThreshold float64 `yaml:"winner_threshold"`
	LoserThreshold  float64 `yaml:"loser_threshold"`

	// Trend states
	ImprovingSlope float64 `yaml:"improving_slope"`
	DecliningSlope float64 `yaml:"declining_slope"`
	VolatileCPAStd float64 `yaml:"volatile_cpa_std"`

	// Guardrails
	MaxScalePct        int `yaml:"max_scale_pct"`
	ScaleCooldownHours int `yaml:"scale_cooldown_hours"`

	// Audience-type modifiers
	BroadThresholdMultiplier float64 `yaml:"broad_threshold_multiplier"`
	LookalikeScaleBump       int     `yaml:"lookalike_scale_bump"`
	LookalikeScaleCeiling    int     `yaml:"lookalike_scale_ceiling"`
	CustomMaxScalePct        int     `yaml:"custom_max_scale_pct"`
	LookalikeFatigueSpendX   float64 `yaml:"lookalike_fatigue_spend_multiplier"`

	// Confidence grading
	HighConfPurchases  int     `yaml:"high_conf_purchases"`
	HighConfSpendMult  float64 `yaml:"high_conf_spend_multiplier"`
	HighConfAgeDays    int     `yaml:"high_conf_age_days"`

	// Composite score weights (normalized ROAS / spend / CVR + purchase volume)
	ROASWeight   float64 `yaml:"roas_weight"`
	SpendWeight  float64 `yaml:"spend_weight"`
	CVRWeight    float64 `yaml:"cvr_weight"`
	VolumeWeight float64 `yaml:"volume_weight"`
}

// ScaleCooldown returns the scale cooldown window as a duration
func (c ThresholdConfig) ScaleCooldown() time.Duration {
	return time.Duration(c.ScaleCooldownHours) * time.Hour
}

// PollingConfig holds the scheduler intervals
type PollingConfig struct {
	SyncIntervalSeconds    int    `yaml:"sync_interval_seconds"`
	OutcomeIntervalSeconds int    `yaml:"outcome_interval_seconds"`
	DefaultDatePreset      string `yaml:"default_date_preset"`
}

// SyncInterval returns the account-sync interval as a duration
func (c PollingConfig) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

// OutcomeInterval returns the outcome-backfill interval as a duration
func (c PollingConfig) OutcomeInterval() time.Duration {
	return time.Duration(c.OutcomeIntervalSeconds) * time.Second
}

// StorageConfig holds datastore and cache configuration
type StorageConfig struct {
	DatabaseURL   string `yaml:"database_url"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// ArchiveConfig holds sync/recommendation archive configuration
type ArchiveConfig struct {
	Type       string `yaml:"type"` // "local", "s3", or "" (disabled)
	LocalPath  string `yaml:"local_path"`
	S3Bucket   string `yaml:"s3_bucket"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c ArchiveConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Meta.BaseURL == "" {
		cfg.Meta.BaseURL = "https://graph.facebook.com"
	}
	if cfg.Meta.APIVersion == "" {
		cfg.Meta.APIVersion = "v18.0"
	}
	if cfg.Meta.TimeoutSeconds == 0 {
		cfg.Meta.TimeoutSeconds = 30
	}
	if cfg.Meta.PageSize == 0 {
		cfg.Meta.PageSize = 200
	}
	if cfg.Meta.BatchSize == 0 {
		cfg.Meta.BatchSize = 20
	}
	if cfg.Meta.MaxRetries == 0 {
		cfg.Meta.MaxRetries = 3
	}
	if cfg.Meta.DelayBaseMS == 0 {
		cfg.Meta.DelayBaseMS = 1000
	}
	if cfg.Meta.DelayLightMS == 0 {
		cfg.Meta.DelayLightMS = 2000
	}
	if cfg.Meta.DelayModerateMS == 0 {
		cfg.Meta.DelayModerateMS = 10000
	}
	if cfg.Meta.DelayElevatedMS == 0 {
		cfg.Meta.DelayElevatedMS = 30000
	}
	if cfg.Meta.DelayHighMS == 0 {
		cfg.Meta.DelayHighMS = 60000
	}
	if cfg.Meta.BackoffBaseSeconds == 0 {
		cfg.Meta.BackoffBaseSeconds = 30
	}
	if cfg.Meta.MaxBackoffSeconds == 0 {
		cfg.Meta.MaxBackoffSeconds = 900
	}
	if cfg.Meta.UsageHalfLifeSeconds == 0 {
		cfg.Meta.UsageHalfLifeSeconds = 300
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o"
	}
	if cfg.OpenAI.TimeoutSeconds == 0 {
		cfg.OpenAI.TimeoutSeconds = 30
	}
	if cfg.Thresholds.MinSpend == 0 {
		cfg.Thresholds.MinSpend = 3000
	}
	if cfg.Thresholds.MinPurchases == 0 {
		cfg.Thresholds.MinPurchases = 2
	}
	if cfg.Thresholds.MinAgeDays == 0 {
		cfg.Thresholds.MinAgeDays = 2
	}
	if cfg.Thresholds.WinnerThreshold == 0 {
		cfg.Thresholds.WinnerThreshold = 1.2
	}
	if cfg.Thresholds.LoserThreshold == 0 {
		cfg.Thresholds.LoserThreshold = 0.9
	}
	if cfg.Thresholds.ImprovingSlope == 0 {
		cfg.Thresholds.ImprovingSlope = 0.05
	}
	if cfg.Thresholds.DecliningSlope == 0 {
		cfg.Thresholds.DecliningSlope = -0.05
	}
	if cfg.Thresholds.VolatileCPAStd == 0 {
		cfg.Thresholds.VolatileCPAStd = 0.3
	}
	if cfg.Thresholds.MaxScalePct == 0 {
		cfg.Thresholds.MaxScalePct = 25
	}
	if cfg.Thresholds.ScaleCooldownHours == 0 {
		cfg.Thresholds.ScaleCooldownHours = 48
	}
	if cfg.Thresholds.BroadThresholdMultiplier == 0 {
		cfg.Thresholds.BroadThresholdMultiplier = 0.9
	}
	if cfg.Thresholds.LookalikeScaleBump == 0 {
		cfg.Thresholds.LookalikeScaleBump = 5
	}
	if cfg.Thresholds.LookalikeScaleCeiling == 0 {
		cfg.Thresholds.LookalikeScaleCeiling = 30
	}
	if cfg.Thresholds.CustomMaxScalePct == 0 {
		cfg.Thresholds.CustomMaxScalePct = 15
	}
	if cfg.Thresholds.LookalikeFatigueSpendX == 0 {
		cfg.Thresholds.LookalikeFatigueSpendX = 2.0
	}
	if cfg.Thresholds.HighConfPurchases == 0 {
		cfg.Thresholds.HighConfPurchases = 10
	}
	if cfg.Thresholds.HighConfSpendMult == 0 {
		cfg.Thresholds.HighConfSpendMult = 3.0
	}
	if cfg.Thresholds.HighConfAgeDays == 0 {
		cfg.Thresholds.HighConfAgeDays = 7
	}
	if cfg.Thresholds.ROASWeight == 0 {
		cfg.Thresholds.ROASWeight = 0.7
	}
	if cfg.Thresholds.SpendWeight == 0 {
		cfg.Thresholds.SpendWeight = 0.15
	}
	if cfg.Thresholds.CVRWeight == 0 {
		cfg.Thresholds.CVRWeight = 0.05
	}
	if cfg.Thresholds.VolumeWeight == 0 {
		cfg.Thresholds.VolumeWeight = 0.1
	}
	if cfg.Polling.SyncIntervalSeconds == 0 {
		cfg.Polling.SyncIntervalSeconds = 21600
	}
	if cfg.Polling.OutcomeIntervalSeconds == 0 {
		cfg.Polling.OutcomeIntervalSeconds = 43200
	}
	if cfg.Polling.DefaultDatePreset == "" {
		cfg.Polling.DefaultDatePreset = "last_7d"
	}
	if cfg.Archive.LocalPath == "" {
		cfg.Archive.LocalPath = "./data"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if baseURL := os.Getenv("META_BASE_URL"); baseURL != "" {
		cfg.Meta.BaseURL = baseURL
	}
	if version := os.Getenv("META_API_VERSION"); version != "" {
		cfg.Meta.APIVersion = version
	}
	if v := os.Getenv("META_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Meta.BatchSize = n
		}
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.OpenAI.APIKey = apiKey
		cfg.OpenAI.Enabled = true
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.OpenAI.Model = model
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Storage.DatabaseURL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Storage.RedisAddr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Storage.RedisPassword = pw
	}
	if bucket := os.Getenv("ARCHIVE_S3_BUCKET"); bucket != "" {
		cfg.Archive.S3Bucket = bucket
		cfg.Archive.Type = "s3"
	}
	if region := os.Getenv("ARCHIVE_S3_REGION"); region != "" {
		cfg.Archive.AWSRegion = region
	}

	return cfg, nil
}
