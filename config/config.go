package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	ListenAddr string
	MusicDir   string // Base directory scanned for local audio files
	JWTSecret  string

	ControlUser         string
	ControlPasswordHash string // bcrypt hash; empty disables the token endpoint

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Playback service tuning.
	MonitorInterval time.Duration // Cadence of the position checkpoint loop
	RecentLimit     int           // Default capacity of the recent-tracks playlist

	LogLevel  string
	LogPath   string
	LogMaxAge int // Days to keep rotated log files
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables and defaults.")
	}

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		MusicDir:   getEnv("MUSIC_DIR", "music"),
		JWTSecret:  getEnv("JWT_SECRET", "playdeck-dev-secret"),

		ControlUser:         getEnv("CONTROL_USER", "admin"),
		ControlPasswordHash: getEnv("CONTROL_PASSWORD_HASH", ""),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "playdeck"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "playdeck"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		MonitorInterval: time.Duration(getEnvInt("MONITOR_INTERVAL_MS", 5000)) * time.Millisecond,
		RecentLimit:     getEnvInt("RECENT_LIMIT", 50),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPath:   getEnv("LOG_PATH", ""),
		LogMaxAge: getEnvInt("LOG_MAX_AGE", 7),
	}
}
