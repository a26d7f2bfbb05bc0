// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "SUBBAN"

// defaultJWTSecret is the dev-only signing secret. Production boots with
// this value are refused in ValidateConfig.
const defaultJWTSecret = "dev-only-change-me-please-0123456789ABCDEF"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: SUBBAN_MONGO_URI, SUBBAN_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "subban", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Token signing
	{Name: "jwt_secret", Default: defaultJWTSecret, Desc: "HMAC secret for bearer tokens (must be strong in production)"},
	{Name: "jwt_issuer", Default: "subban-server", Desc: "Issuer claim for bearer tokens"},
	{Name: "session_ttl", Default: "720h", Desc: "General session token lifetime (e.g., 720h for 30 days)"},
	{Name: "admin_session_ttl", Default: "2h", Desc: "Admin device token lifetime"},

	// Device sessions
	{Name: "max_admin_devices", Default: 3, Desc: "Concurrent admin device sessions per account"},

	// Rate limiting
	{Name: "rate_limit_enabled", Default: true, Desc: "Enable rate limiting for login attempts"},
	{Name: "rate_limit_login_attempts", Default: 5, Desc: "Max failed login attempts before lockout"},
	{Name: "rate_limit_login_window", Default: "15m", Desc: "Time window for counting failed attempts"},
	{Name: "rate_limit_login_lockout", Default: "15m", Desc: "Lockout duration after exceeding limit"},

	// Session sweep
	{Name: "session_sweep_interval", Default: "1h", Desc: "Interval between expired-token sweeps"},

	// File storage
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for uploaded files"},
	{Name: "storage_local_url", Default: "/media", Desc: "URL prefix for serving local files"},

	// S3/CloudFront
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "uploads/", Desc: "S3 key prefix"},
	{Name: "storage_cf_url", Default: "", Desc: "CloudFront distribution URL"},
	{Name: "storage_cf_keypair_id", Default: "", Desc: "CloudFront key pair ID"},
	{Name: "storage_cf_key_path", Default: "", Desc: "Path to CloudFront private key file"},

	// Admin seeding
	{Name: "seed_admin_email", Default: "", Desc: "Email of admin user to create on startup"},
	{Name: "seed_admin_name", Default: "Admin", Desc: "Name of admin user to create on startup"},
	{Name: "seed_admin_password", Default: "", Desc: "Initial password for the seeded admin"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret:       appValues.String("jwt_secret"),
		JWTIssuer:       appValues.String("jwt_issuer"),
		SessionTTL:      appValues.Duration("session_ttl", 720*time.Hour),
		AdminSessionTTL: appValues.Duration("admin_session_ttl", 2*time.Hour),

		MaxAdminDevices: appValues.Int("max_admin_devices"),

		RateLimitEnabled:       appValues.Bool("rate_limit_enabled"),
		RateLimitLoginAttempts: appValues.Int("rate_limit_login_attempts"),
		RateLimitLoginWindow:   appValues.Duration("rate_limit_login_window", 15*time.Minute),
		RateLimitLoginLockout:  appValues.Duration("rate_limit_login_lockout", 15*time.Minute),

		SessionSweepInterval: appValues.Duration("session_sweep_interval", time.Hour),

		StorageType:      appValues.String("storage_type"),
		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),

		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageCFURL:       appValues.String("storage_cf_url"),
		StorageCFKeyPairID: appValues.String("storage_cf_keypair_id"),
		StorageCFKeyPath:   appValues.String("storage_cf_key_path"),

		SeedAdminEmail:    appValues.String("seed_admin_email"),
		SeedAdminName:     appValues.String("seed_admin_name"),
		SeedAdminPassword: appValues.String("seed_admin_password"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if coreCfg.Env == "prod" && appCfg.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("jwt_secret must be changed from the default in production")
	}

	if appCfg.MaxAdminDevices < 1 {
		return fmt.Errorf("max_admin_devices must be at least 1, got %d", appCfg.MaxAdminDevices)
	}

	return nil
}
