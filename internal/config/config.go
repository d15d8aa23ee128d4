package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration, read from the environment.
type Config struct {
	Port        string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins []string
	LogLevel    string
	LogPretty   bool
	GinMode     string
}

// Load reads configs/.env if present, then assembles the configuration with
// development defaults for anything not set.
func Load() Config {
	_ = godotenv.Load("configs/.env")

	dbHost := getenv("DB_HOST", "localhost")
	dbPort := getenv("DB_PORT", "5432")
	dbUser := getenv("DB_USER", "postgres")
	dbPassword := getenv("DB_PASSWORD", "postgres")
	dbName := getenv("DB_NAME", "postgres")
	dbSslMode := getenv("DB_SSLMODE", "disable")

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	ginMode := getenv("GIN_MODE", "debug")

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if ginMode == "release" {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		secret = "default_super_secret_key" // Development fallback only — DO NOT use in production
	}

	origins := strings.Split(getenv("CORS_ORIGINS", "http://localhost:4200,http://127.0.0.1:4200"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return Config{
		Port:        getenv("PORT", "8080"),
		DatabaseDSN: dsn,
		JWTSecret:   secret,
		CORSOrigins: origins,
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogPretty:   ginMode != "release",
		GinMode:     ginMode,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
