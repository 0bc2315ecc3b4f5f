package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by MIRROR_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("MIRROR_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// LedgerDriver selects the event store backend.
// Valid values: sqlite, postgres, memory. Defaults to "sqlite".
func LedgerDriver() string {
	d := os.Getenv("LEDGER_DRIVER")
	if d == "" {
		return "sqlite"
	}
	return d
}

// LedgerPath returns the SQLite database path for the sqlite driver.
func LedgerPath() string {
	p := os.Getenv("LEDGER_PATH")
	if p == "" {
		return "data/mirror.db"
	}
	return p
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// APIKey returns the bearer key required on /v1 routes.
// Empty means the API is unauthenticated.
func APIKey() string {
	return os.Getenv("API_KEY")
}

// CheckpointInterval returns how often the checkpoint worker snapshots the
// self-model. Defaults to 1m if not set or unparseable.
func CheckpointInterval() time.Duration {
	d, err := time.ParseDuration(os.Getenv("CHECKPOINT_INTERVAL"))
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
