package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Budget int `env:"CANONFORGE_TEST_BUDGET" envDefault:"80"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Budget != 80 {
		t.Fatalf("expected default budget 80, got %d", cfg.Budget)
	}
}

func TestParseEnvOverride(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("CANONFORGE_TEST_BUDGET", "120")

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Budget != 120 {
		t.Fatalf("expected budget 120, got %d", cfg.Budget)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("CANONFORGE_TEST_BUDGET", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
