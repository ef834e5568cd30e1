// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"time"

	"github.com/spf13/viper"
)

// Ledger store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Access token formats.
const (
	TokenPaseto = "paseto"
	TokenJWT    = "jwt"
)

// Lock table backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Ledger engine defaults, shared by the config loader and the engine itself.
const (
	DefaultLockTimeout    = 3 * time.Second
	DefaultCommitAttempts = 3
	DefaultPublishTimeout = 2 * time.Second
)

// Config stores all configuration of the application.
//
// The values are read by viper fron a config file or environement variables.
type Config struct {
	DBDriver            string        `mapstructure:"DB_DRIVER"`
	DBSource            string        `mapstructure:"DB_SOURCE"`
	MigrationURL        string        `mapstructure:"MIGRATION_URL"`
	ServerAddress       string        `mapstructure:"SERVER_ADDRESS"`
	TokenSymmetricKey   string        `mapstructure:"TOKEN_SYMMETRIC_KEY"`
	TokenType           string        `mapstructure:"TOKEN_TYPE"`
	AccessTokenDuration time.Duration `mapstructure:"ACCESS_TOKEN_DURATION"`
	Environement        string        `mapstructure:"GO_ENV"`
	LedgerStore         string        `mapstructure:"LEDGER_STORE"`
	LockBackend         string        `mapstructure:"LOCK_BACKEND"`
	LockTimeout         time.Duration `mapstructure:"LOCK_TIMEOUT"`
	LockExpiry          time.Duration `mapstructure:"LOCK_EXPIRY"`
	RedisAddress        string        `mapstructure:"REDIS_ADDRESS"`
	CommitAttempts      int           `mapstructure:"COMMIT_ATTEMPTS"`
	KafkaBrokers        []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic          string        `mapstructure:"KAFKA_TOPIC"`
	PublishTimeout      time.Duration `mapstructure:"PUBLISH_TIMEOUT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_SOURCE", "")
	v.SetDefault("MIGRATION_URL", "")
	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("TOKEN_SYMMETRIC_KEY", "")
	v.SetDefault("TOKEN_TYPE", TokenPaseto)
	v.SetDefault("ACCESS_TOKEN_DURATION", 15*time.Minute)
	v.SetDefault("GO_ENV", "production")
	v.SetDefault("LEDGER_STORE", StorePostgres)
	v.SetDefault("LOCK_BACKEND", LockLocal)
	v.SetDefault("LOCK_TIMEOUT", DefaultLockTimeout)
	v.SetDefault("LOCK_EXPIRY", 10*time.Second)
	v.SetDefault("REDIS_ADDRESS", "localhost:6379")
	v.SetDefault("COMMIT_ATTEMPTS", DefaultCommitAttempts)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "transaction_completed")
	v.SetDefault("PUBLISH_TIMEOUT", DefaultPublishTimeout)
}

// Load read configuration from file or environment variables.
func Load(path string) (Config, error) {
	var c Config

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	setDefaults(v)
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		return c, err
	}

	err = v.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	return c, nil
}
