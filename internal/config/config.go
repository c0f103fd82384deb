// Package config provides configuration management for the yield ledger
// service. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Ledger    LedgerConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// LedgerConfig holds the financial engine configuration
type LedgerConfig struct {
	AdminAddress    common.Address
	VaultAddress    common.Address
	APYBasisPoints  uint64
	LockPeriod      time.Duration
	InitialBalances map[common.Address]uint64
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	ClaimableTTL time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	adminAddr, err := getEnvAsAddress("LEDGER_ADMIN_ADDRESS")
	if err != nil {
		return nil, err
	}
	vaultAddr, err := getEnvAsAddress("LEDGER_VAULT_ADDRESS")
	if err != nil {
		return nil, err
	}
	initialBalances, err := getEnvAsBalances("LEDGER_INITIAL_BALANCES")
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "yield_ledger"),
				User:           getEnv("POSTGRES_USER", "ledger"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "yield_ledger"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Ledger: LedgerConfig{
			AdminAddress:   adminAddr,
			VaultAddress:   vaultAddr,
			APYBasisPoints:  uint64(getEnvAsInt("STAKING_APY_BPS", 500)),
			LockPeriod:      getEnvAsDuration("STAKING_LOCK_PERIOD", 30*24*time.Hour),
			InitialBalances: initialBalances,
		},
		Cache: CacheConfig{
			ClaimableTTL: getEnvAsDuration("CACHE_CLAIMABLE_TTL", 20*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 600),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 30),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBalances parses a comma-separated list of address:amount pairs,
// used to seed the in-process token ledger for development runs.
func getEnvAsBalances(key string) (map[common.Address]uint64, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return nil, nil
	}

	balances := make(map[common.Address]uint64)
	for _, pair := range strings.Split(valueStr, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid balance entry in %s: %s", key, pair)
		}
		if !common.IsHexAddress(parts[0]) {
			return nil, fmt.Errorf("invalid address in %s: %s", key, parts[0])
		}
		amount, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount in %s: %s", key, parts[1])
		}
		balances[common.HexToAddress(parts[0])] += amount
	}
	return balances, nil
}

// getEnvAsAddress gets a required environment variable as an Ethereum-style
// address. A missing value falls back to the zero address so local runs work
// without a full environment; an invalid value is a hard error.
func getEnvAsAddress(key string) (common.Address, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(valueStr) {
		return common.Address{}, fmt.Errorf("invalid address in %s: %s", key, valueStr)
	}
	return common.HexToAddress(valueStr), nil
}
