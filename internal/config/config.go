package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Metadata store
	MongoURL      string
	MongoDatabase string

	// Redis (optional, feed response cache)
	RedisURL string

	// Object storage
	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string

	// Public base URL for uploaded derivatives (feed URLs)
	MediaBaseURL string

	// Reverse geocoding
	MapboxToken    string
	MapboxBaseURL  string
	GeocodeTimeout time.Duration

	// Ingestion
	InputDirectory   string
	ArchiveDirectory string
	Author           string

	// External raster converter
	MagickBin     string
	MagickTimeout time.Duration

	// Feed cache
	CacheTTL             time.Duration
	CacheInvalidateToken string

	// CORS
	AllowedOrigins []string

	// Logging
	LogLevel string
}

func Load() *Config {
	// Load .env file in development
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Metadata store
		MongoURL:      getEnv("MONGO_URL", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "aeroview"),

		// Redis
		RedisURL: getEnv("REDIS_URL", ""),

		// Object storage
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3Region:    getEnv("S3_REGION", "eu-central-1"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),

		MediaBaseURL: getEnv("MEDIA_BASE_URL", ""),

		// Reverse geocoding
		MapboxToken:    getEnv("MAPBOX_TOKEN", ""),
		MapboxBaseURL:  getEnv("MAPBOX_BASE_URL", "https://api.mapbox.com"),
		GeocodeTimeout: parseDuration(getEnv("GEOCODE_TIMEOUT", "10s"), 10*time.Second),

		// Ingestion
		InputDirectory:   getEnv("INPUT_DIRECTORY", ""),
		ArchiveDirectory: getEnv("ARCHIVE_DIRECTORY", ""),
		Author:           getEnv("AUTHOR", ""),

		// External raster converter
		MagickBin:     getEnv("MAGICK_BIN", "magick"),
		MagickTimeout: parseDuration(getEnv("MAGICK_TIMEOUT", "5m"), 5*time.Minute),

		// Feed cache
		CacheTTL:             parseDuration(getEnv("CACHE_TTL", "5m"), 5*time.Minute),
		CacheInvalidateToken: getEnv("CACHE_INVALIDATE_TOKEN", ""),

		// CORS
		AllowedOrigins: parseStringSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}
}

// ValidateIngest checks the variables the ingestion CLI cannot run without.
func (c *Config) ValidateIngest() error {
	missing := c.missingStoreVars()
	if c.InputDirectory == "" {
		missing = append(missing, "INPUT_DIRECTORY")
	}
	if c.ArchiveDirectory == "" {
		missing = append(missing, "ARCHIVE_DIRECTORY")
	}
	if c.Author == "" {
		missing = append(missing, "AUTHOR")
	}
	return missingError(missing)
}

// ValidateReconcile checks the variables the reconciliation CLI cannot run without.
func (c *Config) ValidateReconcile() error {
	return missingError(c.missingStoreVars())
}

// ValidateAPI checks the variables the feed server cannot run without.
func (c *Config) ValidateAPI() error {
	var missing []string
	if c.MongoURL == "" {
		missing = append(missing, "MONGO_URL")
	}
	return missingError(missing)
}

func (c *Config) missingStoreVars() []string {
	var missing []string
	if c.MongoURL == "" {
		missing = append(missing, "MONGO_URL")
	}
	if c.S3Bucket == "" {
		missing = append(missing, "S3_BUCKET")
	}
	return missing
}

func missingError(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

func parseStringSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
