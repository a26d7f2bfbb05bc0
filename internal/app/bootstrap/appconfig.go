// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (HTTP ports, TLS,
// logging, CORS, body limits). AppConfig is everything specific to this
// application: database connections, token signing, device session limits,
// media storage, and admin seeding.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Token signing configuration
	JWTSecret       string        // HMAC secret for bearer tokens (must be strong in production)
	JWTIssuer       string        // Issuer claim stamped into tokens
	SessionTTL      time.Duration // General session token lifetime (default: 720h)
	AdminSessionTTL time.Duration // Admin device token lifetime (default: 2h)

	// Device session configuration
	MaxAdminDevices int // Concurrent admin device sessions per account (default: 3)

	// Rate limiting configuration
	RateLimitEnabled       bool          // Enable rate limiting for login attempts (default: true)
	RateLimitLoginAttempts int           // Max failed login attempts before lockout (default: 5)
	RateLimitLoginWindow   time.Duration // Time window for counting failed attempts (default: 15m)
	RateLimitLoginLockout  time.Duration // Lockout duration after exceeding limit (default: 15m)

	// Session sweep configuration
	SessionSweepInterval time.Duration // How often expired device tokens are pruned (default: 1h)

	// File storage configuration
	StorageType      string // Storage backend: "local" or "s3"
	StorageLocalPath string // Local storage path (e.g., "./uploads")
	StorageLocalURL  string // URL prefix for serving local files (e.g., "/media")

	// S3/CloudFront configuration (only used if StorageType is "s3")
	StorageS3Region    string // AWS region
	StorageS3Bucket    string // S3 bucket name
	StorageS3Prefix    string // Key prefix (e.g., "uploads/")
	StorageCFURL       string // CloudFront distribution URL
	StorageCFKeyPairID string // CloudFront key pair ID
	StorageCFKeyPath   string // Path to CloudFront private key file

	// Admin seeding configuration
	SeedAdminEmail    string // Email of the admin user to create on startup (if set)
	SeedAdminName     string // Name of the admin user to create on startup
	SeedAdminPassword string // Initial password for the seeded admin
}
