package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	LocalStoreSQLite = "sqlite"
	LocalStoreRedis  = "redis"
	LocalStoreMemory = "memory"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	MongoURI              string
	MongoDatabase         string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	LocalStore            string
	LocalStorePath        string
	Timezone              string
	MaxSyncAttempts       int
	SyncIntervalSeconds   int
	ProbeIntervalSeconds  int
	RemoteTimeoutSeconds  int
	SuggestionTTLSeconds  int
	AuthSecret            string
	AccessTokenTTLMinutes int
	ManagerPIN            string
	StaffPIN              string
	LogLevel              string
	LogFormat             string
	LogFile               string
}

// Load reads the environment. A .env file in the working directory, or the
// one named by ENV_FILE, is applied first without overriding real variables.
func Load() Config {
	envFile := getEnv("ENV_FILE", ".env")
	_ = godotenv.Load(envFile)

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		MongoURI:              os.Getenv("MONGODB_URI"),
		MongoDatabase:         getEnv("MONGODB_DATABASE", "mesapos"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		LocalStore:            strings.ToLower(getEnv("LOCAL_STORE", LocalStoreSQLite)),
		LocalStorePath:        getEnv("LOCAL_STORE_PATH", "mesapos.db"),
		Timezone:              getEnv("TIMEZONE", "Local"),
		MaxSyncAttempts:       positiveInt("MAX_SYNC_ATTEMPTS", 3),
		SyncIntervalSeconds:   positiveInt("SYNC_INTERVAL_SECONDS", 60),
		ProbeIntervalSeconds:  positiveInt("PROBE_INTERVAL_SECONDS", 15),
		RemoteTimeoutSeconds:  positiveInt("REMOTE_TIMEOUT_SECONDS", 10),
		SuggestionTTLSeconds:  positiveInt("SUGGESTION_TTL_SECONDS", 60),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: positiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		ManagerPIN:            strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		StaffPIN:              strings.TrimSpace(os.Getenv("STAFF_PIN")),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "text"),
		LogFile:               os.Getenv("LOG_FILE"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves Timezone, falling back to the process zone.
func (c Config) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

func (c Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSeconds) * time.Second
}

func (c Config) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutSeconds) * time.Second
}

func (c Config) SuggestionTTL() time.Duration {
	return time.Duration(c.SuggestionTTLSeconds) * time.Second
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func positiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
