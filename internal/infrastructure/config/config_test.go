package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL == "" {
		t.Fatalf("expected default database URL to be set")
	}

	if cfg.StorageDriver != config.StorageMemory {
		t.Fatalf("expected memory storage by default, got %s", cfg.StorageDriver)
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}

	if cfg.DefaultCurrency != domain.BDT || cfg.HouseEdgeCurrency != domain.BDT {
		t.Fatalf("expected BDT defaults, got %s/%s", cfg.DefaultCurrency, cfg.HouseEdgeCurrency)
	}

	if !cfg.HouseEdgeCeiling.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected ceiling 150, got %s", cfg.HouseEdgeCeiling)
	}

	if len(cfg.GameRules) != len(domain.DefaultGameRules()) {
		t.Fatalf("expected default game rules, got %v", cfg.GameRules)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_TIMEOUT", "45s")
	t.Setenv("JWT_SECRET", "top-secret")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("DEFAULT_CURRENCY", "usd")
	t.Setenv("GAME_RULES", "dice:0.5:1.1:3")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("expected custom database URL, got %s", cfg.DatabaseURL)
	}

	if cfg.RedisURL != "redis://example" {
		t.Fatalf("expected custom redis URL, got %s", cfg.RedisURL)
	}

	if cfg.DatabaseTimeout != 45*time.Second {
		t.Fatalf("expected database timeout override, got %s", cfg.DatabaseTimeout)
	}

	if cfg.JWTSecret != "top-secret" || !cfg.AuthEnabled {
		t.Fatalf("expected auth settings to be set, got secret=%s enabled=%v", cfg.JWTSecret, cfg.AuthEnabled)
	}

	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("expected two kafka brokers, got %v", cfg.KafkaBrokers)
	}

	if cfg.DefaultCurrency != domain.USD {
		t.Fatalf("expected USD default currency, got %s", cfg.DefaultCurrency)
	}

	dice := cfg.GameRules[domain.GameDice]
	if dice.WinChance != 0.5 || !dice.MaxMultiplier.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected dice override, got %+v", dice)
	}
	if _, ok := cfg.GameRules[domain.GameSlots]; !ok {
		t.Fatalf("expected slots to keep its default rule")
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "not-a-duration")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestLoadRejectsUnknownCurrency(t *testing.T) {
	t.Setenv("DEFAULT_CURRENCY", "XYZ")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for unknown currency")
	}
}

func TestLoadRejectsUnknownStorage(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for unknown storage driver")
	}
}

func TestLoadRejectsAuthWithoutSecret(t *testing.T) {
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("JWT_SECRET", "")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error when auth has no secret")
	}
}

func TestLoadHouseEdgeCeiling(t *testing.T) {
	t.Setenv("HOUSE_EDGE_CEILING", "0")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected zero ceiling to be accepted, got %v", err)
	}
	if !cfg.HouseEdgeCeiling.IsZero() {
		t.Fatalf("expected zero ceiling, got %s", cfg.HouseEdgeCeiling)
	}

	t.Setenv("HOUSE_EDGE_CEILING", "-1")
	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for negative ceiling")
	}
}
