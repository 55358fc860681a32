package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverSQL    = "sql"
	DriverMemory = "memory"
)

// Config is the process configuration, read from the environment
type Config struct {
	Port    string
	GinMode string

	DatabaseURL string
	DataPath    string
	StoreDriver string

	JWTSecret       string
	TokenTTL        time.Duration
	APIMasterSecret string
	AdminUsername   string
	AdminPassword   string

	DailyHourCap   int
	OneShiftPerDay bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string

	LogLevel  string
	LogFormat string

	SeedFile string
	SeedDemo bool
}

// LoadDotEnv loads the first .env found in the working directory or up to
// two parents. A missing file is not an error.
func LoadDotEnv() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// Load reads the configuration from the environment
func Load() (Config, error) {
	cfg := Config{
		Port:    getEnv("PORT", "8000"),
		GinMode: os.Getenv("GIN_MODE"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DataPath:    getEnv("DATA_PATH", "scheduler.db"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverSQL)),

		JWTSecret:       os.Getenv("JWT_SECRET"),
		TokenTTL:        envDuration("TOKEN_TTL", 8*time.Hour),
		APIMasterSecret: os.Getenv("API_MASTER_SECRET"),
		AdminUsername:   getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:   getEnv("ADMIN_PASSWORD", "admin123"),

		DailyHourCap:   envInt("DAILY_HOUR_CAP", 8),
		OneShiftPerDay: envBool("ONE_SHIFT_PER_DAY", true),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		LockTTL:       envDuration("LOCK_TTL", 10*time.Second),

		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 40),
		CORSOrigins:    envList("CORS_ORIGINS"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		SeedFile: os.Getenv("SEED_FILE"),
		SeedDemo: envBool("SEED_DEMO", false),
	}

	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET is required")
	}
	if cfg.StoreDriver != DriverSQL && cfg.StoreDriver != DriverMemory {
		return cfg, errors.New("STORE_DRIVER must be sql or memory")
	}
	if cfg.DailyHourCap <= 0 {
		return cfg, errors.New("DAILY_HOUR_CAP must be positive")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(name)))
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(name string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(name)), 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(name string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(name)))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envList(name string) []string {
	var out []string
	for _, value := range strings.Split(os.Getenv(name), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
