package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Annany2002/nebula-cms/internal/logger"
	"github.com/joho/godotenv"
)

var (
	customLog = logger.NewLogger()
)

// Config holds application configuration values
type Config struct {
	ServerPort         string
	JWTSecret          string
	JWTExpiration      time.Duration
	MetadataDbDir      string
	MetadataDbFile     string
	CMSConfigPath      string   // Table/field schema document (JSON or YAML)
	UploadDir          string   // Where image-uploader files are written
	CORSAllowedOrigins []string // Dashboard origins allowed to call the API
	AuthRateLimit      int      // Requests per minute per IP on /auth; 0 disables
}

// LoadConfig loads configuration from environment variables.
// It uses a .env file for local development if present (ignores it for production).
func LoadConfig() (*Config, error) {
	customLog.Println("Loading configuration from environment variables...")

	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			customLog.Warnf("Warning: Error loading .env file: %v", err)
		}
	}

	port := getEnv("SERVER_PORT", "8080")
	jwtSecret := os.Getenv("JWT_SECRET") // No sensible default for secret!
	jwtExpHoursStr := getEnv("JWT_EXPIRATION_HOURS", "24")
	dbDir := getEnv("DATABASE_DIRECTORY", "data")
	dbFile := getEnv("DATABASE_DIRECTORY_FILE", "metadata.db")
	cmsConfigPath := getEnv("CMS_CONFIG_PATH", "cms.json")
	uploadDir := getEnv("UPLOAD_DIRECTORY", "uploads")
	origins := getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	rateLimitStr := getEnv("AUTH_RATE_LIMIT", "20")

	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable must be set")
	}

	jwtExpHours, err := strconv.Atoi(jwtExpHoursStr)
	if err != nil || jwtExpHours <= 0 {
		customLog.Warnf("Invalid JWT_EXPIRATION_HOURS '%s'. Using default 24h. Error: %v", jwtExpHoursStr, err)
		jwtExpHours = 24
	}

	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil || rateLimit < 0 {
		customLog.Warnf("Invalid AUTH_RATE_LIMIT '%s'. Using default 20/min. Error: %v", rateLimitStr, err)
		rateLimit = 20
	}

	cfg := &Config{
		ServerPort:         strings.TrimPrefix(port, ":"),
		JWTSecret:          jwtSecret,
		JWTExpiration:      time.Hour * time.Duration(jwtExpHours),
		MetadataDbDir:      dbDir,
		MetadataDbFile:     dbFile,
		CMSConfigPath:      cmsConfigPath,
		UploadDir:          uploadDir,
		CORSAllowedOrigins: splitList(origins),
		AuthRateLimit:      rateLimit,
	}

	customLog.Printf("Configuration loaded successfully. Port: %s, JWT Exp: %v, CMS config: %s", cfg.ServerPort, cfg.JWTExpiration, cfg.CMSConfigPath)
	return cfg, nil
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// splitList parses a comma separated env value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
