package config // package config loads application configuration from environment variables

import (
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all runtime configuration values of the API server.  Each
// field corresponds to an environment variable.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DB             DBConfig
	JWTSecret      string        // secret used to sign JWTs
	AccessTTLMin   int           // access token time‑to‑live in minutes
	RefreshTTLDays int           // refresh token time‑to‑live in days
	BcryptCost     int           // bcrypt cost for password hashing
	UploadDir      string        // directory for branding uploads
	RabbitMQURL    string        // broker for domain events; empty disables it
	RequestTimeout time.Duration // per-request budget for store calls
	Log            LogConfig
}

// DBConfig is shared by the server and the export command.
type DBConfig struct {
	User        string
	Pass        string // empty allowed
	Host        string
	Port        string
	Name        string
	AutoMigrate bool // apply embedded migrations on startup
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // "console" or "json"
}

// LoadDotEnv reads a .env file from the working directory when present.
// Variables already set in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env")
	}
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	LoadDotEnv()
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DB:             LoadDB(),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		UploadDir:      envStr("UPLOAD_DIR", "uploads"),
		RabbitMQURL:    rabbitURL(),
		RequestTimeout: envDur("REQUEST_TIMEOUT", 5*time.Second),
		Log:            LoadLog(),
	}
}

// LoadDB reads the database settings.
func LoadDB() DBConfig {
	return DBConfig{
		User:        must("DB_USER"),
		Pass:        os.Getenv("DB_PASS"),
		Host:        must("DB_HOST"),
		Port:        must("DB_PORT"),
		Name:        must("DB_NAME"),
		AutoMigrate: envBool("DB_AUTOMIGRATE", true),
	}
}

// LoadLog reads the logging settings.  Development defaults to the console
// writer.
func LoadLog() LogConfig {
	format := "json"
	if os.Getenv("APP_ENV") == "dev" {
		format = "console"
	}
	return LogConfig{
		Level:  envStr("LOG_LEVEL", "info"),
		Format: envStr("LOG_FORMAT", format),
	}
}

// rabbitURL accepts RABBITMQ_URL or the older AMQP_URL.
func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatal().Str("key", key).Msg("missing required env var")
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatal().Str("key", key).Str("value", s).Msg("invalid int env var")
	}
	return n
}

// ExportDir is where the export command writes archives by default.
func ExportDir() string {
	return envStr("EXPORT_DIR", "exports")
}
