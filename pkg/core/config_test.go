package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Provider)
	assert.Equal(t, "./agentmem.db", cfg.Storage.SQLite.Path)
	assert.InDelta(t, 100.0, cfg.Storage.QuotaMB, 1e-9)
	assert.Equal(t, "none", cfg.Cache.Provider)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
}

func TestLoadConfigFromEnv_Postgres(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "5433")
	t.Setenv("POSTGRES_USER", "agentmem")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DATABASE", "memories")
	t.Setenv("STORAGE_QUOTA_MB", "250")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Provider)
	assert.Equal(t, "db.internal", cfg.Storage.Postgres.Host)
	assert.Equal(t, 5433, cfg.Storage.Postgres.Port)
	assert.Equal(t, "agentmem", cfg.Storage.Postgres.User)
	assert.Equal(t, "memories", cfg.Storage.Postgres.DBName)
	assert.Equal(t, "disable", cfg.Storage.Postgres.SSLMode)
	assert.InDelta(t, 250.0, cfg.Storage.Postgres.QuotaMB, 1e-9)
}

func TestLoadConfigFromEnv_MySQLAndRedis(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "mysql")
	t.Setenv("MYSQL_HOST", "mysql.internal")
	t.Setenv("MYSQL_DATABASE", "memories")
	t.Setenv("CACHE_PROVIDER", "redis")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CACHE_DEFAULT_TTL", "90s")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Storage.Provider)
	assert.Equal(t, "mysql.internal", cfg.Storage.MySQL.Host)
	assert.Equal(t, 3306, cfg.Storage.MySQL.Port)
	assert.Equal(t, "memories", cfg.Storage.MySQL.DBName)

	assert.Equal(t, "redis", cfg.Cache.Provider)
	assert.Equal(t, "redis.internal:6380", cfg.Cache.Redis.Addr)
	assert.Equal(t, 2, cfg.Cache.Redis.DB)
	assert.Equal(t, 90*time.Second, cfg.Cache.Redis.DefaultTTL)
}

func TestLoadConfigFromEnv_LRU(t *testing.T) {
	t.Setenv("CACHE_PROVIDER", "lru")
	t.Setenv("LRU_SIZE", "4096")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "lru", cfg.Cache.Provider)
	assert.Equal(t, 4096, cfg.Cache.LRUSize)
}

func TestConfig_Validate(t *testing.T) {
	valid := &Config{Storage: StorageConfig{Provider: "sqlite"}}
	assert.NoError(t, valid.Validate())

	missing := &Config{}
	assert.Error(t, missing.Validate())

	badStorage := &Config{Storage: StorageConfig{Provider: "cassandra"}}
	assert.Error(t, badStorage.Validate())

	badCache := &Config{
		Storage: StorageConfig{Provider: "sqlite"},
		Cache:   CacheConfig{Provider: "memcached"},
	}
	assert.Error(t, badCache.Validate())
}
