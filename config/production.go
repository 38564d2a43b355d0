// Package config provides configuration management and environment variable handling for the application
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	App       AppConfig       `json:"app"`
	Database  DatabaseConfig  `json:"database"`
	Server    ServerConfig    `json:"server"`
	Security  SecurityConfig  `json:"security"`
	JWT       JWTConfig       `json:"jwt"`
	Logging   LoggingConfig   `json:"logging"`
	Metrics   MetricsConfig   `json:"metrics"`
	Cache     CacheConfig     `json:"cache"`
	Links     LinksConfig     `json:"links"`
	Analytics AnalyticsConfig `json:"analytics"`
	Dashboard DashboardConfig `json:"dashboard"`
	Captcha   CaptchaConfig   `json:"captcha"`
}

type AppConfig struct {
	Name        string `json:"name"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	// BaseURL overrides the origin used when rendering short URLs; empty means request origin
	BaseURL string `json:"base_url"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

// DSN renders the connection string accepted by both pgx (via gorm) and lib/pq
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	BodyLimit         int           `json:"body_limit"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
	StaticDir         string        `json:"static_dir"`
}

type SecurityConfig struct {
	HSTSMaxAge int `json:"hsts_max_age"`

	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	AuthRateLimit     int           `json:"auth_rate_limit"`     // requests per window
	GlobalRateLimit   int           `json:"global_rate_limit"`   // requests per window
	RedirectRateLimit int           `json:"redirect_rate_limit"` // requests per window
	RateLimitWindow   time.Duration `json:"rate_limit_window"`

	// Content Security
	CSPPolicy      string `json:"csp_policy"`
	XFrameOptions  string `json:"x_frame_options"`
	ReferrerPolicy string `json:"referrer_policy"`

	// Password & Auth
	PasswordMinLength int `json:"password_min_length"`
	BcryptCost        int `json:"bcrypt_cost"`

	// Session Security
	SessionCookieName     string        `json:"session_cookie_name"`
	SessionCookieSecure   bool          `json:"session_cookie_secure"`
	SessionCookieHTTPOnly bool          `json:"session_cookie_httponly"`
	SessionCookieSameSite string        `json:"session_cookie_samesite"`
	SessionTimeout        time.Duration `json:"session_timeout"`

	// SessionCleanupInterval is how often expired session rows are closed; 0 disables the sweep
	SessionCleanupInterval time.Duration `json:"session_cleanup_interval"`
}

type JWTConfig struct {
	SecretKey       string        `json:"secret_key"`
	PrivateKey      string        `json:"private_key"`  // RSA private key in PEM format
	PublicKey       string        `json:"public_key"`   // RSA public key in PEM format
	UseRSAKeys      bool          `json:"use_rsa_keys"` // Whether to use RSA keys instead of secret key
	AccessTokenTTL  time.Duration `json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl"`
	Issuer          string        `json:"issuer"`
	Audience        string        `json:"audience"`
}

type LoggingConfig struct {
	Level        string `json:"level"`  // debug, info, warn, error
	Format       string `json:"format"` // json, console
	FilePath     string `json:"file_path"`
	MaxSize      int    `json:"max_size"` // MB
	MaxBackups   int    `json:"max_backups"`
	MaxAge       int    `json:"max_age"` // days
	Compress     bool   `json:"compress"`
	EnableCaller bool   `json:"enable_caller"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled     bool          `json:"enabled"`
	RedisURL    string        `json:"redis_url"`
	RedisPrefix string        `json:"redis_prefix"`
	LinkTTL     time.Duration `json:"link_ttl"`

	// Bound on the in-process negative cache used without redis
	MemoryMaxEntries int `json:"memory_max_entries"`

	// Circuit breaker around redis calls
	BreakerMaxFailures uint32        `json:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `json:"breaker_open_timeout"`
	HealthInterval     time.Duration `json:"health_interval"`
}

type LinksConfig struct {
	MaxLinksPerUser   int `json:"max_links_per_user"`
	MaxURLLength      int `json:"max_url_length"`
	ShortCodeLength   int `json:"short_code_length"`
	ShortCodeAttempts int `json:"short_code_attempts"`
}

const (
	AnalyticsModeEvents    = "events"
	AnalyticsModeHeuristic = "heuristic"
)

type AnalyticsConfig struct {
	Mode     string `json:"mode"`
	Timezone string `json:"timezone"`
}

type DashboardConfig struct {
	// RefetchInterval is the minimum spacing between live refetches for one viewer
	RefetchInterval   time.Duration `json:"refetch_interval"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	FetchTimeout      time.Duration `json:"fetch_timeout"`
}

type CaptchaConfig struct {
	SignupEnabled bool          `json:"signup_enabled"`
	TTL           time.Duration `json:"ttl"`
	Padding       int           `json:"padding"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// A missing .env is fine; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		App: AppConfig{
			Name:        getEnvString("APP_NAME", "ShortLink"),
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			BaseURL:     strings.TrimRight(getEnvString("BASE_URL", ""), "/"),
		},
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "shortlink"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("PORT", getEnvInt("SERVER_PORT", 3000)),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:    getEnvDuration("SERVER_REQUEST_TIMEOUT", 10*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024), // 1MB
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
			StaticDir:         getEnvString("STATIC_DIR", "./dist"),
		},
		Security: SecurityConfig{
			HSTSMaxAge:            getEnvInt("HSTS_MAX_AGE", 31536000), // 1 year
			AllowedOrigins:        getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:        getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"}),
			AllowedHeaders:        getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}),
			AllowCredentials:      getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:            getEnvInt("CORS_MAX_AGE", 86400),
			AuthRateLimit:         getEnvInt("AUTH_RATE_LIMIT", 20),
			GlobalRateLimit:       getEnvInt("GLOBAL_RATE_LIMIT", 2000),
			RedirectRateLimit:     getEnvInt("REDIRECT_RATE_LIMIT", 600),
			RateLimitWindow:       getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			CSPPolicy:             getEnvString("CSP_POLICY", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:"),
			XFrameOptions:         getEnvString("X_FRAME_OPTIONS", "DENY"),
			ReferrerPolicy:        getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
			PasswordMinLength:     getEnvInt("PASSWORD_MIN_LENGTH", 8),
			BcryptCost:            getEnvInt("BCRYPT_COST", 12),
			SessionCookieName:     getEnvString("SESSION_COOKIE_NAME", "session"),
			SessionCookieSecure:   getEnvBool("SESSION_COOKIE_SECURE", true),
			SessionCookieHTTPOnly: getEnvBool("SESSION_COOKIE_HTTPONLY", true),
			SessionCookieSameSite: getEnvString("SESSION_COOKIE_SAMESITE", "Lax"),
			SessionTimeout:        getEnvDuration("SESSION_TIMEOUT", 24*time.Hour),

			SessionCleanupInterval: getEnvDuration("SESSION_CLEANUP_INTERVAL", 1*time.Hour),
		},
		JWT: JWTConfig{
			SecretKey:       getEnvString("JWT_SECRET_KEY", ""),
			PrivateKey:      getEnvString("JWT_PRIVATE_KEY", ""),
			PublicKey:       getEnvString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys:      getEnvBool("JWT_USE_RSA_KEYS", false),
			AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
			RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TOKEN_TTL", 7*24*time.Hour),
			Issuer:          getEnvString("JWT_ISSUER", "shortlink"),
			Audience:        getEnvString("JWT_AUDIENCE", "shortlink-api"),
		},
		Logging: LoggingConfig{
			Level:        getEnvString("LOG_LEVEL", "info"),
			Format:       getEnvString("LOG_FORMAT", "json"),
			FilePath:     getEnvString("LOG_FILE_PATH", ""),
			MaxSize:      getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:   getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:       getEnvInt("LOG_MAX_AGE", 30),
			Compress:     getEnvBool("LOG_COMPRESS", true),
			EnableCaller: getEnvBool("LOG_ENABLE_CALLER", false),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:            getEnvBool("CACHE_ENABLED", true),
			RedisURL:           getEnvString("REDIS_URL", getEnvString("CACHE_REDIS_URL", "redis://localhost:6379/0")),
			RedisPrefix:        getEnvString("CACHE_REDIS_PREFIX", "shortlink:"),
			LinkTTL:            getEnvDuration("CACHE_LINK_TTL", 1*time.Hour),
			MemoryMaxEntries:   getEnvInt("CACHE_MEMORY_MAX_ENTRIES", 100000),
			BreakerMaxFailures: uint32(getEnvInt("CACHE_BREAKER_MAX_FAILURES", 5)),
			BreakerOpenTimeout: getEnvDuration("CACHE_BREAKER_OPEN_TIMEOUT", 30*time.Second),
			HealthInterval:     getEnvDuration("CACHE_HEALTH_INTERVAL", 30*time.Second),
		},
		Links: LinksConfig{
			MaxLinksPerUser:   getEnvInt("MAX_LINKS_PER_USER", 100),
			MaxURLLength:      getEnvInt("MAX_URL_LENGTH", 2048),
			ShortCodeLength:   getEnvInt("SHORT_CODE_LENGTH", 6),
			ShortCodeAttempts: getEnvInt("SHORT_CODE_MAX_ATTEMPTS", 5),
		},
		Analytics: AnalyticsConfig{
			Mode:     strings.ToLower(getEnvString("ANALYTICS_MODE", AnalyticsModeEvents)),
			Timezone: getEnvString("ANALYTICS_TIMEZONE", "UTC"),
		},
		Dashboard: DashboardConfig{
			RefetchInterval:   getEnvDuration("DASHBOARD_REFETCH_INTERVAL", 500*time.Millisecond),
			HeartbeatInterval: getEnvDuration("DASHBOARD_HEARTBEAT_INTERVAL", 15*time.Second),
			FetchTimeout:      getEnvDuration("DASHBOARD_FETCH_TIMEOUT", 10*time.Second),
		},
		Captcha: CaptchaConfig{
			SignupEnabled: getEnvBool("SIGNUP_CAPTCHA_ENABLED", false),
			TTL:           getEnvDuration("CAPTCHA_TTL", 2*time.Minute),
			Padding:       getEnvInt("CAPTCHA_PADDING", 6),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}

	// Validate JWT configuration
	if cfg.JWT.UseRSAKeys {
		if cfg.JWT.PrivateKey == "" || cfg.JWT.PublicKey == "" {
			errors = append(errors, "JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when JWT_USE_RSA_KEYS is set")
		}
	} else if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errors = append(errors, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.RefreshTokenTTL <= 0 {
		errors = append(errors, "JWT_REFRESH_TOKEN_TTL must be positive")
	}
	if cfg.JWT.Issuer == "" {
		errors = append(errors, "JWT_ISSUER is required")
	}
	if cfg.JWT.Audience == "" {
		errors = append(errors, "JWT_AUDIENCE is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}
	if cfg.App.BaseURL != "" && !strings.HasPrefix(cfg.App.BaseURL, "http://") && !strings.HasPrefix(cfg.App.BaseURL, "https://") {
		errors = append(errors, "BASE_URL must start with http:// or https://")
	}

	// Validate security configuration
	if cfg.Security.PasswordMinLength < 8 {
		errors = append(errors, "PASSWORD_MIN_LENGTH must be at least 8")
	}
	if cfg.Security.BcryptCost < 10 || cfg.Security.BcryptCost > 14 {
		errors = append(errors, "BCRYPT_COST must be between 10 and 14")
	}
	if !slices.Contains([]string{"Strict", "Lax", "None"}, cfg.Security.SessionCookieSameSite) {
		errors = append(errors, "SESSION_COOKIE_SAMESITE must be one of: Strict, Lax, None")
	}

	// Validate link configuration
	if cfg.Links.MaxLinksPerUser <= 0 {
		errors = append(errors, "MAX_LINKS_PER_USER must be positive")
	}
	if cfg.Links.MaxURLLength <= 0 {
		errors = append(errors, "MAX_URL_LENGTH must be positive")
	}
	if cfg.Links.ShortCodeLength < 4 || cfg.Links.ShortCodeLength > 32 {
		errors = append(errors, "SHORT_CODE_LENGTH must be between 4 and 32")
	}
	if cfg.Links.ShortCodeAttempts <= 0 {
		errors = append(errors, "SHORT_CODE_MAX_ATTEMPTS must be positive")
	}

	// Validate analytics configuration
	if cfg.Analytics.Mode != AnalyticsModeEvents && cfg.Analytics.Mode != AnalyticsModeHeuristic {
		errors = append(errors, fmt.Sprintf("ANALYTICS_MODE must be one of: %s, %s", AnalyticsModeEvents, AnalyticsModeHeuristic))
	}
	if _, err := time.LoadLocation(cfg.Analytics.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("ANALYTICS_TIMEZONE is invalid: %v", err))
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		if !slices.Contains(validLevels, cfg.Logging.Level) {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errors = append(errors, "REDIS_URL is required when cache is enabled")
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
