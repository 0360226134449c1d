package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Sessions
	JWTSecret     string
	SessionExpiry time.Duration

	// PCG registration service
	PCGBaseURL  string
	PCGAPIKey   string
	PCGTimeout  time.Duration
	PCGPageSize int

	// Mail relay
	MailRelayURL string
	MailAPIKey   string
	MailFrom     string

	// Portal
	LoginURL string

	// Server
	Port        string
	CORSOrigins string
}

func Load() *Config {
	// Missing .env is fine; real deployments use the environment directly.
	_ = godotenv.Load()

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "provider_admin"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		SessionExpiry: parseDuration(getEnv("SESSION_EXPIRY", "12h"), 12*time.Hour),

		PCGBaseURL:  getEnv("PCG_BASE_URL", ""),
		PCGAPIKey:   getEnv("PCG_API_KEY", ""),
		PCGTimeout:  parseDuration(getEnv("PCG_TIMEOUT", "30s"), 30*time.Second),
		PCGPageSize: parseInt(getEnv("PCG_PAGE_SIZE", "100"), 100),

		MailRelayURL: getEnv("MAIL_RELAY_URL", ""),
		MailAPIKey:   getEnv("MAIL_API_KEY", ""),
		MailFrom:     getEnv("MAIL_FROM", "no-reply@caretide.example"),

		LoginURL: getEnv("LOGIN_URL", "https://portal.caretide.example/login"),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
