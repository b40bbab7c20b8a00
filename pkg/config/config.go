package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Supported values for DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Workflow  WorkflowConfig
	Uploads   UploadConfig
	Dashboard DashboardConfig
	Reports   ReportsConfig
	Outbox    OutboxConfig
	Metrics   MetricsConfig
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	Schema       string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// WorkflowConfig tunes petition intake and the transition table.
type WorkflowConfig struct {
	SerialProgram string
	// AutoRoute forwards freshly created petitions to the CVO, or to the PO for JMD office receipts.
	AutoRoute bool
	// CloseAfterRejection adds a close edge out of permission_rejected.
	CloseAfterRejection bool
	FieldRuleCacheTTL   time.Duration
}

// UploadConfig controls the file reference service.
type UploadConfig struct {
	BaseDir          string
	MaxFileSizeBytes int64
	TokenSecret      string
	TokenTTL         time.Duration
}

// DashboardConfig governs dashboard exposure and cache tuning.
type DashboardConfig struct {
	Enabled        bool
	CacheTTL       time.Duration
	DrilldownLimit int
}

// ReportsConfig configures asynchronous register exports.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// OutboxConfig configures the transition notification relay.
type OutboxConfig struct {
	Enabled      bool
	PollInterval time.Duration
	BatchSize    int
	Channel      string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

var placeholderSecrets = map[string]struct{}{
	"":                   {},
	"dev_secret":         {},
	"dev_upload_secret":  {},
	"dev_reports_secret": {},
	"postgres":           {},
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		Schema:       v.GetString("DB_SCHEMA"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 8*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Workflow = WorkflowConfig{
		SerialProgram:       strings.ToUpper(strings.TrimSpace(v.GetString("WORKFLOW_SERIAL_PROGRAM"))),
		AutoRoute:           v.GetBool("WORKFLOW_AUTO_ROUTE"),
		CloseAfterRejection: v.GetBool("WORKFLOW_CLOSE_AFTER_REJECTION"),
		FieldRuleCacheTTL:   parseDuration(v.GetString("WORKFLOW_FIELD_RULE_CACHE_TTL"), 30*time.Second),
	}

	maxUploadMB := v.GetInt64("UPLOAD_MAX_SIZE_MB")
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	cfg.Uploads = UploadConfig{
		BaseDir:          v.GetString("UPLOAD_BASE_DIR"),
		MaxFileSizeBytes: maxUploadMB * 1024 * 1024,
		TokenSecret:      v.GetString("UPLOAD_TOKEN_SECRET"),
		TokenTTL:         parseDuration(v.GetString("UPLOAD_TOKEN_TTL"), 0),
	}

	drilldownLimit := v.GetInt("DASHBOARD_DRILLDOWN_LIMIT")
	if drilldownLimit <= 0 {
		drilldownLimit = 500
	}
	cfg.Dashboard = DashboardConfig{
		Enabled:        v.GetBool("ENABLE_DASHBOARD"),
		CacheTTL:       parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 2*time.Minute),
		DrilldownLimit: drilldownLimit,
	}

	cfg.Reports = ReportsConfig{
		Enabled:           v.GetBool("ENABLE_REPORTS"),
		StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
	}

	cfg.Outbox = OutboxConfig{
		Enabled:      v.GetBool("ENABLE_OUTBOX"),
		PollInterval: parseDuration(v.GetString("OUTBOX_POLL_INTERVAL"), 2*time.Second),
		BatchSize:    v.GetInt("OUTBOX_BATCH_SIZE"),
		Channel:      v.GetString("OUTBOX_CHANNEL"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg, nil
}

// Validate rejects configurations that are unsafe to run in production.
func (c *Config) Validate() error {
	if c.Database.Driver != DriverPostgres && c.Database.Driver != DriverPGX {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Workflow.SerialProgram == "" {
		return errors.New("WORKFLOW_SERIAL_PROGRAM must not be empty")
	}
	if c.Env != EnvProduction {
		return nil
	}
	var missing []string
	check := func(key, value string) {
		if _, weak := placeholderSecrets[value]; weak {
			missing = append(missing, key)
		}
	}
	check("JWT_SECRET", c.JWT.Secret)
	check("DB_PASSWORD", c.Database.Password)
	check("UPLOAD_TOKEN_SECRET", c.Uploads.TokenSecret)
	if c.Reports.Enabled {
		check("REPORTS_SIGNED_URL_SECRET", c.Reports.SignedURLSecret)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing or placeholder production settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "vigilance_tracker")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_SCHEMA", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "vigilance-tracker")
	v.SetDefault("JWT_EXPIRATION", "8h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("WORKFLOW_SERIAL_PROGRAM", "VIG")
	v.SetDefault("WORKFLOW_AUTO_ROUTE", true)
	v.SetDefault("WORKFLOW_CLOSE_AFTER_REJECTION", false)
	v.SetDefault("WORKFLOW_FIELD_RULE_CACHE_TTL", "30s")

	v.SetDefault("UPLOAD_BASE_DIR", "./uploads")
	v.SetDefault("UPLOAD_MAX_SIZE_MB", 10)
	v.SetDefault("UPLOAD_TOKEN_SECRET", "dev_upload_secret")
	v.SetDefault("UPLOAD_TOKEN_TTL", "")

	v.SetDefault("ENABLE_DASHBOARD", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "2m")
	v.SetDefault("DASHBOARD_DRILLDOWN_LIMIT", 500)

	v.SetDefault("ENABLE_REPORTS", false)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_OUTBOX", false)
	v.SetDefault("OUTBOX_POLL_INTERVAL", "2s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 50)
	v.SetDefault("OUTBOX_CHANNEL", "vigilance:petition-transitions")

	v.SetDefault("ENABLE_METRICS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
