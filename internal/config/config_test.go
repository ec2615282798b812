package config

import (
	"testing"
)

func TestConfig_Validate_ProductionRequiresSecret(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		JWTSecret:   "",
	}

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty JWT_SECRET in production")
	}
}

func TestConfig_Validate_ProductionShortSecret(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		JWTSecret:   "too-short",
	}

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for short JWT_SECRET in production")
	}
}

func TestConfig_Validate_ProductionStrongSecret(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		JWTSecret:   "a-strong-secret-value-of-32-chars-or-more",
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}

func TestConfig_Validate_DevelopmentDefaultsSecret(t *testing.T) {
	cfg := &Config{
		Environment: "development",
		JWTSecret:   "",
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.JWTSecret == "" {
		t.Error("expected development secret to be defaulted")
	}
}

func TestConfig_EnvironmentHelpers(t *testing.T) {
	tests := []struct {
		env    string
		isProd bool
		isDev  bool
	}{
		{"production", true, false},
		{"prod", true, false},
		{"development", false, true},
		{"dev", false, true},
		{"", false, true},
		{"staging", false, false},
	}

	for _, tt := range tests {
		cfg := &Config{Environment: tt.env}
		if cfg.IsProduction() != tt.isProd {
			t.Errorf("env %q: IsProduction() = %v, want %v", tt.env, cfg.IsProduction(), tt.isProd)
		}
		if cfg.IsDevelopment() != tt.isDev {
			t.Errorf("env %q: IsDevelopment() = %v, want %v", tt.env, cfg.IsDevelopment(), tt.isDev)
		}
	}
}
