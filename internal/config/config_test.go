package config

import (
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoadConfig(t *testing.T) {
	// Set some test environment variables
	if err := os.Setenv("SERVER_PORT", "9090"); err != nil {
		t.Fatalf("Failed to set SERVER_PORT: %v", err)
	}
	if err := os.Setenv("POSTGRES_HOST", "testhost"); err != nil {
		t.Fatalf("Failed to set POSTGRES_HOST: %v", err)
	}
	if err := os.Setenv("STAKING_LOCK_PERIOD", "48h"); err != nil {
		t.Fatalf("Failed to set STAKING_LOCK_PERIOD: %v", err)
	}
	if err := os.Setenv("LEDGER_ADMIN_ADDRESS", "0x1111111111111111111111111111111111111111"); err != nil {
		t.Fatalf("Failed to set LEDGER_ADMIN_ADDRESS: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("SERVER_PORT")
		_ = os.Unsetenv("POSTGRES_HOST")
		_ = os.Unsetenv("STAKING_LOCK_PERIOD")
		_ = os.Unsetenv("LEDGER_ADMIN_ADDRESS")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}

	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}

	if cfg.Ledger.LockPeriod != 48*time.Hour {
		t.Errorf("Ledger.LockPeriod = %v, want %v", cfg.Ledger.LockPeriod, 48*time.Hour)
	}

	want := common.HexToAddress("0x1111111111111111111111111111111111111111")
	if cfg.Ledger.AdminAddress != want {
		t.Errorf("Ledger.AdminAddress = %v, want %v", cfg.Ledger.AdminAddress, want)
	}
}

func TestLoadConfigRejectsInvalidAddress(t *testing.T) {
	if err := os.Setenv("LEDGER_VAULT_ADDRESS", "not-an-address"); err != nil {
		t.Fatalf("Failed to set LEDGER_VAULT_ADDRESS: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("LEDGER_VAULT_ADDRESS")
	}()

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() with invalid vault address should fail")
	}
}

func TestGetEnvAsBalances(t *testing.T) {
	if err := os.Setenv("TEST_BALANCES", "0x1111111111111111111111111111111111111111:1000, 0x2222222222222222222222222222222222222222:50"); err != nil {
		t.Fatalf("Failed to set TEST_BALANCES: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("TEST_BALANCES")
	}()

	balances, err := getEnvAsBalances("TEST_BALANCES")
	if err != nil {
		t.Fatalf("getEnvAsBalances() error = %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("len(balances) = %d, want 2", len(balances))
	}
	if got := balances[common.HexToAddress("0x1111111111111111111111111111111111111111")]; got != 1000 {
		t.Errorf("first balance = %d, want 1000", got)
	}
	if got := balances[common.HexToAddress("0x2222222222222222222222222222222222222222")]; got != 50 {
		t.Errorf("second balance = %d, want 50", got)
	}
}

func TestGetEnvAsBalancesRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"missing amount", "0x1111111111111111111111111111111111111111"},
		{"bad address", "nope:100"},
		{"bad amount", "0x1111111111111111111111111111111111111111:lots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.Setenv("TEST_BALANCES_BAD", tt.value); err != nil {
				t.Fatalf("Failed to set env var: %v", err)
			}
			defer func() {
				_ = os.Unsetenv("TEST_BALANCES_BAD")
			}()

			if _, err := getEnvAsBalances("TEST_BALANCES_BAD"); err == nil {
				t.Errorf("getEnvAsBalances(%q) should fail", tt.value)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "NONEXISTENT_KEY",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{
			name:         "returns integer when valid",
			key:          "TEST_INT",
			defaultValue: 100,
			envValue:     "200",
			want:         200,
		},
		{
			name:         "returns default when invalid",
			key:          "TEST_INT_INVALID",
			defaultValue: 100,
			envValue:     "invalid",
			want:         100,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_INT_NOTSET",
			defaultValue: 100,
			envValue:     "",
			want:         100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnvAsInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "returns duration when valid",
			key:          "TEST_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "30s",
			want:         30 * time.Second,
		},
		{
			name:         "returns default when invalid",
			key:          "TEST_DURATION_INVALID",
			defaultValue: 10 * time.Second,
			envValue:     "invalid",
			want:         10 * time.Second,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_DURATION_NOTSET",
			defaultValue: 10 * time.Second,
			envValue:     "",
			want:         10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnvAsDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}
