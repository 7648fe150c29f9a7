package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentmem/agentmem-go/pkg/cache"
	"github.com/agentmem/agentmem-go/pkg/cache/lru"
	"github.com/agentmem/agentmem-go/pkg/cache/redis"
	"github.com/agentmem/agentmem-go/pkg/storage"
	"github.com/agentmem/agentmem-go/pkg/storage/mysql"
	"github.com/agentmem/agentmem-go/pkg/storage/postgres"
	"github.com/agentmem/agentmem-go/pkg/storage/sqlite"
)

// Config contains the complete configuration for a memory manager.
//
// Example:
//
//	config := &core.Config{
//	    Storage: core.StorageConfig{
//	        Provider: "sqlite",
//	        SQLite:   sqlite.Config{Path: "./agentmem.db"},
//	    },
//	    Cache: core.CacheConfig{
//	        Provider: "redis",
//	        Redis:    *redis.DefaultConfig(),
//	    },
//	}
type Config struct {
	// Storage contains the durable storage backend configuration.
	Storage StorageConfig `json:"storage"`

	// Cache contains the cache backend configuration (optional).
	Cache CacheConfig `json:"cache"`
}

// StorageConfig selects and configures the storage backend.
//
// Supported providers: sqlite, postgres, mysql
type StorageConfig struct {
	// Provider is the storage backend name (sqlite, postgres, mysql).
	Provider string `json:"provider"`

	// QuotaMB is the per-tenant quota in megabytes. Defaults to 100.
	QuotaMB float64 `json:"quota_mb,omitempty"`

	SQLite   sqlite.Config   `json:"sqlite,omitempty"`
	Postgres postgres.Config `json:"postgres,omitempty"`
	MySQL    mysql.Config    `json:"mysql,omitempty"`
}

// CacheConfig selects and configures the cache backend.
//
// Supported providers: redis, lru, none. An empty provider disables caching.
type CacheConfig struct {
	// Provider is the cache backend name (redis, lru, none).
	Provider string `json:"provider,omitempty"`

	// DefaultTTL applies to cache entries without an explicit TTL.
	DefaultTTL time.Duration `json:"default_ttl,omitempty"`

	Redis redis.Config `json:"redis,omitempty"`

	// LRUSize is the entry capacity of the in-process cache.
	LRUSize int `json:"lru_size,omitempty"`
}

// Validate checks that the configuration names a usable storage backend.
func (c *Config) Validate() error {
	switch c.Storage.Provider {
	case "sqlite", "postgres", "mysql":
	case "":
		return fmt.Errorf("storage provider is required")
	default:
		return fmt.Errorf("unsupported storage provider: %s", c.Storage.Provider)
	}

	switch c.Cache.Provider {
	case "", "none", "redis", "lru":
	default:
		return fmt.Errorf("unsupported cache provider: %s", c.Cache.Provider)
	}

	return nil
}

// LoadConfigFromEnv builds a Config from environment variables, loading a
// .env file first when one can be found.
//
// Recognized variables:
//
//	STORAGE_PROVIDER   sqlite (default) | postgres | mysql
//	STORAGE_QUOTA_MB   per-tenant quota in MB
//	SQLITE_PATH, SQLITE_TABLE
//	POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD,
//	POSTGRES_DATABASE, POSTGRES_TABLE, POSTGRES_SSLMODE
//	MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD,
//	MYSQL_DATABASE, MYSQL_TABLE
//	CACHE_PROVIDER     none (default) | redis | lru
//	CACHE_DEFAULT_TTL  Go duration, e.g. "5m"
//	REDIS_ADDR, REDIS_PASSWORD, REDIS_DB
//	LRU_SIZE
func LoadConfigFromEnv() (*Config, error) {
	if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	quotaMB, _ := strconv.ParseFloat(getEnvOrDefault("STORAGE_QUOTA_MB", "0"), 64)
	if quotaMB <= 0 {
		quotaMB = storage.DefaultQuotaMB
	}

	cfg := &Config{
		Storage: StorageConfig{
			Provider: getEnvOrDefault("STORAGE_PROVIDER", "sqlite"),
			QuotaMB:  quotaMB,
		},
		Cache: CacheConfig{
			Provider: getEnvOrDefault("CACHE_PROVIDER", "none"),
		},
	}

	switch cfg.Storage.Provider {
	case "sqlite":
		cfg.Storage.SQLite = sqlite.Config{
			Path:    getEnvOrDefault("SQLITE_PATH", "./agentmem.db"),
			Table:   getEnvOrDefault("SQLITE_TABLE", "memory_contexts"),
			QuotaMB: quotaMB,
		}
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		cfg.Storage.Postgres = postgres.Config{
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     port,
			User:     getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   getEnvOrDefault("POSTGRES_DATABASE", "agentmem"),
			Table:    getEnvOrDefault("POSTGRES_TABLE", "memory_contexts"),
			SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
			QuotaMB:  quotaMB,
		}
	case "mysql":
		port, _ := strconv.Atoi(getEnvOrDefault("MYSQL_PORT", "3306"))
		cfg.Storage.MySQL = mysql.Config{
			Host:     getEnvOrDefault("MYSQL_HOST", "127.0.0.1"),
			Port:     port,
			User:     getEnvOrDefault("MYSQL_USER", "root"),
			Password: os.Getenv("MYSQL_PASSWORD"),
			DBName:   getEnvOrDefault("MYSQL_DATABASE", "agentmem"),
			Table:    getEnvOrDefault("MYSQL_TABLE", "memory_contexts"),
			QuotaMB:  quotaMB,
		}
	}

	if ttlStr := os.Getenv("CACHE_DEFAULT_TTL"); ttlStr != "" {
		if ttl, err := time.ParseDuration(ttlStr); err == nil {
			cfg.Cache.DefaultTTL = ttl
		}
	}
	if cfg.Cache.DefaultTTL <= 0 {
		cfg.Cache.DefaultTTL = cache.DefaultTTL
	}

	switch cfg.Cache.Provider {
	case "redis":
		db, _ := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
		cfg.Cache.Redis = redis.Config{
			Addr:       getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         db,
			DefaultTTL: cfg.Cache.DefaultTTL,
		}
	case "lru":
		size, _ := strconv.Atoi(getEnvOrDefault("LRU_SIZE", strconv.Itoa(lru.DefaultSize)))
		cfg.Cache.LRUSize = size
	}

	return cfg, nil
}

// FindEnvFile locates a .env file, searching the current directory and up
// to five parent directories.
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
