package config

import "testing"

type testConfig struct {
	Addr string `env:"TEAMSPACE_TEST_ADDR" envDefault:"localhost:9999"`
}

func TestParseEnvDefault(t *testing.T) {
	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "localhost:9999" {
		t.Fatalf("addr = %q, want default", cfg.Addr)
	}
}

func TestParseEnvOverride(t *testing.T) {
	t.Setenv("TEAMSPACE_TEST_ADDR", "0.0.0.0:8080")
	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "0.0.0.0:8080" {
		t.Fatalf("addr = %q, want override", cfg.Addr)
	}
}
