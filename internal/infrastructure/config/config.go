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
	Wix       WixConfig
	Sync      SyncConfig
	Retention RetentionConfig
	Scheduler SchedulerConfig
	Swagger   SwaggerConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
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

// JWTConfig holds JWT settings for the operator API
type JWTConfig struct {
	Secret          string
	APIKey          string // static key the dashboard exchanges for a token
	TokenExpiration time.Duration
	Issuer          string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// WixConfig holds the Wix Stores API connection settings
type WixConfig struct {
	BaseURL          string        // API base URL (e.g., "https://www.wixapis.com")
	APIKey           string        // API key sent via Authorization header
	SiteID           string        // Wix site identifier sent via wix-site-id header
	WebhookSecret    string        // Shared secret for webhook signature verification
	PageSize         int           // Page size for list endpoints
	Timeout          time.Duration // Per-request HTTP timeout
	RateLimitRPS     float64       // Outbound requests per second
	RateLimitBurst   int           // Token bucket burst capacity
	RateLimitMaxWait time.Duration // Max time a caller blocks waiting for a token
}

// EntitySyncConfig holds per-entity synchronization settings
type EntitySyncConfig struct {
	Enabled      bool
	Direction    string        // bidirectional, local_to_remote, remote_to_local, disabled
	PollInterval time.Duration // How often to poll the remote platform for changes
}

// SyncConfig holds synchronization engine configuration
type SyncConfig struct {
	Workers             int           // Number of dispatcher workers (queue shards)
	QueueSize           int           // Per-worker queue capacity
	JobTimeout          time.Duration // Per-job processing timeout
	MaxAttempts         int           // Attempts before a mapping stops being retried
	BackoffBase         time.Duration // First retry delay
	BackoffMax          time.Duration // Retry delay ceiling
	BackoffJitter       float64       // Jitter fraction applied to each delay (0.0-1.0)
	DedupeWindow        time.Duration // Webhook dedupe window
	WatermarkOverlap    time.Duration // Overlap subtracted from local change watermarks
	TieBreak            string        // most_recent_wins, remote_wins, local_wins
	AutoCreateProducts  bool          // Create local products for unknown remote products
	AutoCreateCustomers bool          // Create local customers for unknown remote customers
	DefaultWarehouse    string        // Warehouse assigned to auto-created inventory rows
	DefaultPriceList    string        // Price list assigned to auto-created products
	Products            EntitySyncConfig
	Orders              EntitySyncConfig
	Customers           EntitySyncConfig
	Inventory           EntitySyncConfig
}

// RetentionConfig holds sync attempt retention and archival settings
type RetentionConfig struct {
	Enabled        bool
	MaxAge         time.Duration // Attempts older than this are pruned
	KeepRows       int           // Newest rows always kept regardless of age
	BatchSize      int           // Rows pruned per pass
	ArchiveEnabled bool          // Archive pruned attempts before deleting
	ArchiveBackend string        // s3 or local
	S3Bucket       string
	S3Prefix       string
	S3Region       string
	S3Endpoint     string // Custom endpoint for S3-compatible storage (MinIO, RustFS)
	S3AccessKey    string
	S3SecretKey    string
	S3UseSSL       bool   // Prepend https when the endpoint carries no scheme
	S3UsePathStyle bool   // Path-style addressing, required by most S3-compatible servers
	LocalDir       string // Directory for the local archive backend
}

// SchedulerConfig holds background trigger configuration
type SchedulerConfig struct {
	Enabled           bool
	RetryScanInterval time.Duration // How often due retries are swept back into the queue
	RetentionInterval time.Duration // How often the attempt retention pass runs
}

// SwaggerConfig holds Swagger documentation endpoint configuration
type SwaggerConfig struct {
	Enabled     bool     // Whether to enable Swagger endpoint
	RequireAuth bool     // Require authentication to access Swagger
	AllowedIPs  []string // IP whitelist (empty = allow all)
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only, disable in prod for security)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
	// Continuous profiling options
	ProfilingEnabled bool   // Enable Pyroscope continuous profiling
	ProfilingServer  string // Pyroscope server address
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with STORESYNC_ prefix (e.g., STORESYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("STORESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
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
			Secret:          v.GetString("jwt.secret"),
			APIKey:          v.GetString("jwt.api_key"),
			TokenExpiration: v.GetDuration("jwt.token_expiration"),
			Issuer:          v.GetString("jwt.issuer"),
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
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Wix: WixConfig{
			BaseURL:          v.GetString("wix.base_url"),
			APIKey:           v.GetString("wix.api_key"),
			SiteID:           v.GetString("wix.site_id"),
			WebhookSecret:    v.GetString("wix.webhook_secret"),
			PageSize:         v.GetInt("wix.page_size"),
			Timeout:          v.GetDuration("wix.timeout"),
			RateLimitRPS:     v.GetFloat64("wix.rate_limit_rps"),
			RateLimitBurst:   v.GetInt("wix.rate_limit_burst"),
			RateLimitMaxWait: v.GetDuration("wix.rate_limit_max_wait"),
		},
		Sync: SyncConfig{
			Workers:             v.GetInt("sync.workers"),
			QueueSize:           v.GetInt("sync.queue_size"),
			JobTimeout:          v.GetDuration("sync.job_timeout"),
			MaxAttempts:         v.GetInt("sync.max_attempts"),
			BackoffBase:         v.GetDuration("sync.backoff_base"),
			BackoffMax:          v.GetDuration("sync.backoff_max"),
			BackoffJitter:       v.GetFloat64("sync.backoff_jitter"),
			DedupeWindow:        v.GetDuration("sync.dedupe_window"),
			WatermarkOverlap:    v.GetDuration("sync.watermark_overlap"),
			TieBreak:            v.GetString("sync.tie_break"),
			AutoCreateProducts:  v.GetBool("sync.auto_create_products"),
			AutoCreateCustomers: v.GetBool("sync.auto_create_customers"),
			DefaultWarehouse:    v.GetString("sync.default_warehouse"),
			DefaultPriceList:    v.GetString("sync.default_price_list"),
			Products: EntitySyncConfig{
				Enabled:      v.GetBool("sync.products.enabled"),
				Direction:    v.GetString("sync.products.direction"),
				PollInterval: v.GetDuration("sync.products.poll_interval"),
			},
			Orders: EntitySyncConfig{
				Enabled:      v.GetBool("sync.orders.enabled"),
				Direction:    v.GetString("sync.orders.direction"),
				PollInterval: v.GetDuration("sync.orders.poll_interval"),
			},
			Customers: EntitySyncConfig{
				Enabled:      v.GetBool("sync.customers.enabled"),
				Direction:    v.GetString("sync.customers.direction"),
				PollInterval: v.GetDuration("sync.customers.poll_interval"),
			},
			Inventory: EntitySyncConfig{
				Enabled:      v.GetBool("sync.inventory.enabled"),
				Direction:    v.GetString("sync.inventory.direction"),
				PollInterval: v.GetDuration("sync.inventory.poll_interval"),
			},
		},
		Retention: RetentionConfig{
			Enabled:        v.GetBool("retention.enabled"),
			MaxAge:         v.GetDuration("retention.max_age"),
			KeepRows:       v.GetInt("retention.keep_rows"),
			BatchSize:      v.GetInt("retention.batch_size"),
			ArchiveEnabled: v.GetBool("retention.archive_enabled"),
			ArchiveBackend: v.GetString("retention.archive_backend"),
			S3Bucket:       v.GetString("retention.s3_bucket"),
			S3Prefix:       v.GetString("retention.s3_prefix"),
			S3Region:       v.GetString("retention.s3_region"),
			S3Endpoint:     v.GetString("retention.s3_endpoint"),
			S3AccessKey:    v.GetString("retention.s3_access_key"),
			S3SecretKey:    v.GetString("retention.s3_secret_key"),
			S3UseSSL:       v.GetBool("retention.s3_use_ssl"),
			S3UsePathStyle: v.GetBool("retention.s3_use_path_style"),
			LocalDir:       v.GetString("retention.local_dir"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			RetryScanInterval: v.GetDuration("scheduler.retry_scan_interval"),
			RetentionInterval: v.GetDuration("scheduler.retention_interval"),
		},
		Swagger: SwaggerConfig{
			Enabled:     v.GetBool("swagger.enabled"),
			RequireAuth: v.GetBool("swagger.require_auth"),
			AllowedIPs:  v.GetStringSlice("swagger.allowed_ips"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storesync-backend"
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
		cfg.Database.DBName = "storesync"
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
	if cfg.JWT.TokenExpiration == 0 {
		cfg.JWT.TokenExpiration = 12 * time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "storesync-backend"
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
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// NOTE: CORS origins are intentionally not given a default fallback to "*".
	// An empty list means no cross-origin requests are allowed until explicitly configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Wix.BaseURL == "" {
		cfg.Wix.BaseURL = "https://www.wixapis.com"
	}
	if cfg.Wix.PageSize == 0 {
		cfg.Wix.PageSize = 100
	}
	if cfg.Wix.Timeout == 0 {
		cfg.Wix.Timeout = 30 * time.Second
	}
	if cfg.Wix.RateLimitRPS == 0 {
		cfg.Wix.RateLimitRPS = 10
	}
	if cfg.Wix.RateLimitBurst == 0 {
		cfg.Wix.RateLimitBurst = 20
	}
	if cfg.Wix.RateLimitMaxWait == 0 {
		cfg.Wix.RateLimitMaxWait = 10 * time.Second
	}
	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = 4
	}
	if cfg.Sync.QueueSize == 0 {
		cfg.Sync.QueueSize = 256
	}
	if cfg.Sync.JobTimeout == 0 {
		cfg.Sync.JobTimeout = 2 * time.Minute
	}
	if cfg.Sync.MaxAttempts == 0 {
		cfg.Sync.MaxAttempts = 8
	}
	if cfg.Sync.BackoffBase == 0 {
		cfg.Sync.BackoffBase = 30 * time.Second
	}
	if cfg.Sync.BackoffMax == 0 {
		cfg.Sync.BackoffMax = 30 * time.Minute
	}
	if cfg.Sync.BackoffJitter == 0 {
		cfg.Sync.BackoffJitter = 0.2
	}
	if cfg.Sync.DedupeWindow == 0 {
		cfg.Sync.DedupeWindow = 24 * time.Hour
	}
	if cfg.Sync.WatermarkOverlap == 0 {
		cfg.Sync.WatermarkOverlap = time.Second
	}
	if cfg.Sync.TieBreak == "" {
		cfg.Sync.TieBreak = "most_recent_wins"
	}
	if cfg.Sync.DefaultWarehouse == "" {
		cfg.Sync.DefaultWarehouse = "MAIN"
	}
	if cfg.Sync.DefaultPriceList == "" {
		cfg.Sync.DefaultPriceList = "STANDARD"
	}
	applyEntityDefaults(&cfg.Sync.Products, 2*time.Hour)
	applyEntityDefaults(&cfg.Sync.Orders, 24*time.Hour)
	applyEntityDefaults(&cfg.Sync.Customers, 2*time.Hour)
	applyEntityDefaults(&cfg.Sync.Inventory, 5*time.Minute)
	if cfg.Retention.MaxAge == 0 {
		cfg.Retention.MaxAge = 30 * 24 * time.Hour
	}
	if cfg.Retention.KeepRows == 0 {
		cfg.Retention.KeepRows = 100_000
	}
	if cfg.Retention.BatchSize == 0 {
		cfg.Retention.BatchSize = 1000
	}
	if cfg.Retention.ArchiveBackend == "" {
		cfg.Retention.ArchiveBackend = "local"
	}
	if cfg.Retention.LocalDir == "" {
		cfg.Retention.LocalDir = "./archive"
	}
	if cfg.Scheduler.RetryScanInterval == 0 {
		cfg.Scheduler.RetryScanInterval = time.Minute
	}
	if cfg.Scheduler.RetentionInterval == 0 {
		cfg.Scheduler.RetentionInterval = 24 * time.Hour
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "storesync-backend"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.ProfilingServer == "" {
		cfg.Telemetry.ProfilingServer = "http://localhost:4040"
	}
}

// applyEntityDefaults fills a per-entity sync block with its defaults
func applyEntityDefaults(ec *EntitySyncConfig, pollInterval time.Duration) {
	if ec.Direction == "" {
		ec.Direction = "bidirectional"
	}
	if ec.PollInterval == 0 {
		ec.PollInterval = pollInterval
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
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

	if c.Sync.BackoffJitter < 0 || c.Sync.BackoffJitter >= 1 {
		return fmt.Errorf("sync.backoff_jitter must be in [0.0, 1.0), got %f", c.Sync.BackoffJitter)
	}
	if c.Sync.BackoffBase > c.Sync.BackoffMax {
		return fmt.Errorf("sync.backoff_base (%s) cannot exceed sync.backoff_max (%s)",
			c.Sync.BackoffBase, c.Sync.BackoffMax)
	}
	switch c.Sync.TieBreak {
	case "most_recent_wins", "remote_wins", "local_wins":
	default:
		return fmt.Errorf("sync.tie_break must be one of most_recent_wins, remote_wins, local_wins, got %q", c.Sync.TieBreak)
	}
	for name, ec := range map[string]EntitySyncConfig{
		"sync.products":  c.Sync.Products,
		"sync.orders":    c.Sync.Orders,
		"sync.customers": c.Sync.Customers,
		"sync.inventory": c.Sync.Inventory,
	} {
		switch ec.Direction {
		case "bidirectional", "local_to_remote", "remote_to_local", "disabled":
		default:
			return fmt.Errorf("%s.direction must be one of bidirectional, local_to_remote, remote_to_local, disabled, got %q", name, ec.Direction)
		}
	}

	switch c.Retention.ArchiveBackend {
	case "s3", "local":
	default:
		return fmt.Errorf("retention.archive_backend must be s3 or local, got %q", c.Retention.ArchiveBackend)
	}
	if c.Retention.ArchiveEnabled && c.Retention.ArchiveBackend == "s3" && c.Retention.S3Bucket == "" {
		return fmt.Errorf("retention.s3_bucket is required when the s3 archive backend is enabled")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.JWT.APIKey == "" {
			return fmt.Errorf("jwt.api_key is required in production")
		}
		if c.Wix.WebhookSecret == "" {
			return fmt.Errorf("wix.webhook_secret is required in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		// CORS must not use wildcard with credentials
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		// Swagger must be disabled OR protected in production
		if c.Swagger.Enabled {
			if !c.Swagger.RequireAuth && len(c.Swagger.AllowedIPs) == 0 {
				return fmt.Errorf("swagger endpoint must be disabled, require authentication, or have IP restriction in production")
			}
		}
		// Database tracing: full SQL logging is a security risk in production
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	// Validate telemetry configuration (all environments)
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
