package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Platform  PlatformConfig
	Ingest    IngestConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds JWT settings for the API surface
type JWTConfig struct {
	Secret                string
	AccessTokenExpiration time.Duration
	Issuer                string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	TrustedProxies    []string
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// SchedulerConfig holds the export poll scheduler configuration
type SchedulerConfig struct {
	Enabled         bool
	PollInterval    time.Duration // how often pending operations are re-checked
	Workers         int           // concurrent poll workers
	BatchSize       int           // due jobs claimed per tick
	LeaseDuration   time.Duration // claim lease; expired leases are re-claimed
	MaxPollAttempts int           // poll budget before a job fails with TIMEOUT
	MaxJobAge       time.Duration // wall-clock budget before a job fails with TIMEOUT
	BackoffBase     time.Duration // first per-shop delay after a throttled call
	BackoffCap      time.Duration // upper bound of the per-shop delay
}

// PlatformConfig holds commerce platform API settings
type PlatformConfig struct {
	Endpoint       string        // admin API base, e.g. https://{shop}/admin/api
	APIVersion     string        // e.g. 2025-07
	RequestTimeout time.Duration // per HTTP call
	FetchTimeout   time.Duration // result-file download, files can be large
}

// IngestConfig holds ingestion thresholds
type IngestConfig struct {
	ParseErrorThreshold float64 // skipped-line ratio that aborts a file, 0.0-1.0
	ParseErrorMinLines  int     // lines observed before the ratio is enforced
}

// StorageConfig holds S3-compatible object storage settings for raw result
// file archival
type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	DBSlowQueryThresh time.Duration
	ProfilerEnabled   bool
	ProfilerEndpoint  string // Pyroscope server address, e.g. http://pyroscope:4040
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SHOPSIGHT_ prefix (e.g., SHOPSIGHT_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SHOPSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			Issuer:                v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
		},
		Scheduler: SchedulerConfig{
			Enabled:         v.GetBool("scheduler.enabled"),
			PollInterval:    v.GetDuration("scheduler.poll_interval"),
			Workers:         v.GetInt("scheduler.workers"),
			BatchSize:       v.GetInt("scheduler.batch_size"),
			LeaseDuration:   v.GetDuration("scheduler.lease_duration"),
			MaxPollAttempts: v.GetInt("scheduler.max_poll_attempts"),
			MaxJobAge:       v.GetDuration("scheduler.max_job_age"),
			BackoffBase:     v.GetDuration("scheduler.backoff_base"),
			BackoffCap:      v.GetDuration("scheduler.backoff_cap"),
		},
		Platform: PlatformConfig{
			Endpoint:       v.GetString("platform.endpoint"),
			APIVersion:     v.GetString("platform.api_version"),
			RequestTimeout: v.GetDuration("platform.request_timeout"),
			FetchTimeout:   v.GetDuration("platform.fetch_timeout"),
		},
		Ingest: IngestConfig{
			ParseErrorThreshold: v.GetFloat64("ingest.parse_error_threshold"),
			ParseErrorMinLines:  v.GetInt("ingest.parse_error_min_lines"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilerEnabled:   v.GetBool("telemetry.profiler_enabled"),
			ProfilerEndpoint:  v.GetString("telemetry.profiler_endpoint"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "shopsight-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "shopsight"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 15 * time.Minute
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "shopsight-backend"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 4 << 20 // 4MB
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 {
		cfg.HTTP.CORSAllowOrigins = []string{"*"}
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Scheduler.PollInterval == 0 {
		cfg.Scheduler.PollInterval = 30 * time.Second
	}
	if cfg.Scheduler.Workers == 0 {
		cfg.Scheduler.Workers = 4
	}
	if cfg.Scheduler.BatchSize == 0 {
		cfg.Scheduler.BatchSize = 20
	}
	if cfg.Scheduler.LeaseDuration == 0 {
		// Twice the poll interval so a crashed worker's claim lapses before
		// the job would be due again anyway
		cfg.Scheduler.LeaseDuration = 2 * cfg.Scheduler.PollInterval
	}
	if cfg.Scheduler.MaxPollAttempts == 0 {
		cfg.Scheduler.MaxPollAttempts = 240
	}
	if cfg.Scheduler.MaxJobAge == 0 {
		cfg.Scheduler.MaxJobAge = 6 * time.Hour
	}
	if cfg.Scheduler.BackoffBase == 0 {
		cfg.Scheduler.BackoffBase = 5 * time.Second
	}
	if cfg.Scheduler.BackoffCap == 0 {
		cfg.Scheduler.BackoffCap = 5 * time.Minute
	}
	if cfg.Platform.APIVersion == "" {
		cfg.Platform.APIVersion = "2025-07"
	}
	if cfg.Platform.RequestTimeout == 0 {
		cfg.Platform.RequestTimeout = 30 * time.Second
	}
	if cfg.Platform.FetchTimeout == 0 {
		cfg.Platform.FetchTimeout = 30 * time.Minute
	}
	if cfg.Ingest.ParseErrorThreshold == 0 {
		cfg.Ingest.ParseErrorThreshold = 0.05
	}
	if cfg.Ingest.ParseErrorMinLines == 0 {
		cfg.Ingest.ParseErrorMinLines = 100
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.ProfilerEndpoint == "" {
		cfg.Telemetry.ProfilerEndpoint = "http://localhost:4040"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be at least 1")
	}
	if c.Scheduler.LeaseDuration < c.Scheduler.PollInterval {
		return fmt.Errorf("scheduler.lease_duration (%s) must be at least scheduler.poll_interval (%s)",
			c.Scheduler.LeaseDuration, c.Scheduler.PollInterval)
	}
	if c.Scheduler.BackoffCap < c.Scheduler.BackoffBase {
		return fmt.Errorf("scheduler.backoff_cap (%s) cannot be below scheduler.backoff_base (%s)",
			c.Scheduler.BackoffCap, c.Scheduler.BackoffBase)
	}

	if c.Ingest.ParseErrorThreshold < 0.0 || c.Ingest.ParseErrorThreshold > 1.0 {
		return fmt.Errorf("ingest.parse_error_threshold must be between 0.0 and 1.0, got %f", c.Ingest.ParseErrorThreshold)
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Storage.Enabled && (c.Storage.Bucket == "" || c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
			return fmt.Errorf("storage.bucket, storage.access_key and storage.secret_key are required when storage is enabled in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
