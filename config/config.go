package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port        string
	BindAddress string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	RedisHost   string
	RedisPort   string
	JWTSecret   string

	// AnswerGrace is how far past a question's deadline a submission is
	// still accepted, to absorb network and scheduling jitter.
	AnswerGrace time.Duration
	// PinAttempts bounds PIN generation retries before giving up.
	PinAttempts int
	// SnapshotTTL is the lifetime of Redis session snapshots used for
	// client reconciliation after the live session is gone.
	SnapshotTTL time.Duration
	// QuizCacheTTL is how long loaded quiz definitions stay cached.
	QuizCacheTTL time.Duration
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		BindAddress:  getEnv("BIND_ADDRESS", "localhost"),
		DBHost:       getEnv("DB_HOST", "localhost"),
		DBPort:       getEnv("DB_PORT", "5432"),
		DBUser:       getEnv("DB_USER", "orchida"),
		DBPassword:   getEnv("DB_PASSWORD", "orchida123"),
		DBName:       getEnv("DB_NAME", "orchida"),
		RedisHost:    getEnv("REDIS_HOST", "localhost"),
		RedisPort:    getEnv("REDIS_PORT", "6379"),
		JWTSecret:    getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		AnswerGrace:  getEnvDuration("ANSWER_GRACE", 500*time.Millisecond),
		PinAttempts:  getEnvInt("PIN_ATTEMPTS", 100),
		SnapshotTTL:  getEnvDuration("SNAPSHOT_TTL", 2*time.Hour),
		QuizCacheTTL: getEnvDuration("QUIZ_CACHE_TTL", 10*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	return client
}
