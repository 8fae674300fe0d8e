package config

import (
	"flag"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		StorageType: "memory",
		CodeLength:  7,
		GinMode:     "release",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid memory storage",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "valid postgres storage",
			mutate: func(c *Config) {
				c.StorageType = "postgres"
				c.DatabaseURL = "postgres://localhost/test"
			},
			wantErr: false,
		},
		{
			name:    "invalid storage type",
			mutate:  func(c *Config) { c.StorageType = "invalid" },
			wantErr: true,
		},
		{
			name:    "postgres without database url",
			mutate:  func(c *Config) { c.StorageType = "postgres" },
			wantErr: true,
		},
		{
			name:    "code length six",
			mutate:  func(c *Config) { c.CodeLength = 6 },
			wantErr: false,
		},
		{
			name:    "code length too short",
			mutate:  func(c *Config) { c.CodeLength = 3 },
			wantErr: true,
		},
		{
			name:    "code length too long",
			mutate:  func(c *Config) { c.CodeLength = 17 },
			wantErr: true,
		},
		{
			name: "redis without ttl",
			mutate: func(c *Config) {
				c.RedisAddr = "localhost:6379"
				c.CacheTTL = 0
			},
			wantErr: true,
		},
		{
			name: "redis with ttl",
			mutate: func(c *Config) {
				c.RedisAddr = "localhost:6379"
				c.CacheTTL = time.Hour
			},
			wantErr: false,
		},
		{
			name:    "invalid gin mode",
			mutate:  func(c *Config) { c.GinMode = "verbose" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.ServerAddress != ":8080" {
		t.Errorf("ServerAddress = %v, want %v", cfg.ServerAddress, ":8080")
	}
	if cfg.StorageType != "memory" {
		t.Errorf("StorageType = %v, want %v", cfg.StorageType, "memory")
	}
	if cfg.CodeLength != 7 {
		t.Errorf("CodeLength = %v, want %v", cfg.CodeLength, 7)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Errorf("CacheTTL = %v, want %v", cfg.CacheTTL, 24*time.Hour)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("CORSOrigins = %v, want [*]", cfg.CORSOrigins)
	}
}

func TestLoad_EnvOverridesFlags(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "memory")
	t.Setenv("CODE_LENGTH", "6")
	t.Setenv("BASE_URL", "https://hop.example/")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CACHE_TTL", "1h")

	args := []string{"-code-length", "9", "-storage", "postgres"}
	cfg, err := load(flag.NewFlagSet("test", flag.ContinueOnError), args)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.StorageType != "memory" {
		t.Errorf("StorageType = %v, want %v", cfg.StorageType, "memory")
	}
	if cfg.CodeLength != 6 {
		t.Errorf("CodeLength = %v, want %v", cfg.CodeLength, 6)
	}
	if cfg.BaseURL != "https://hop.example" {
		t.Errorf("BaseURL = %v, want %v", cfg.BaseURL, "https://hop.example")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v, want %v", cfg.CacheTTL, time.Hour)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "code length not a number", key: "CODE_LENGTH", value: "seven"},
		{name: "code length out of range", key: "CODE_LENGTH", value: "2"},
		{name: "bad cache ttl", key: "CACHE_TTL", value: "soon"},
		{name: "bad storage", key: "STORAGE_TYPE", value: "sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
			if err == nil {
				t.Errorf("load() expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
