package config

import "time"

// StorageBackend names the medium the credential store persists into.
type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageFile   StorageBackend = "file"
	StorageRedis  StorageBackend = "redis"
)

type StorageConfig interface {
	GetStorageBackend() StorageBackend
	GetStorageFile() string
	GetStoragePassphrase() string
	GetRedisAddr() string
	GetRedisPrefix() string
	GetRedisTTL() time.Duration
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetStorageBackend() StorageBackend {
	return StorageBackend(GetEnv("STORAGE_BACKEND", string(StorageFile)))
}

func (Storage) GetStorageFile() string {
	return GetEnv("STORAGE_FILE", "./data/session.json")
}

// GetStoragePassphrase returns the passphrase used to seal the session file.
// Empty leaves the file in plain JSON.
func (Storage) GetStoragePassphrase() string {
	return GetEnv("STORAGE_PASSPHRASE", "")
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Storage) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", "fintrack")
}

func (Storage) GetRedisTTL() time.Duration {
	return GetEnvDuration("REDIS_TTL", 7*24*time.Hour) // 7 days
}
