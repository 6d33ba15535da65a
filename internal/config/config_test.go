package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Test loading config (will use defaults if file doesn't exist)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg == nil {
		t.Fatal("expected config, got nil")
	}

	// Verify defaults are set
	if cfg.Paths.Root == "" {
		t.Error("expected default root, got empty")
	}

	if cfg.Resolver.UpgradePolicy != "lowest" && cfg.Resolver.UpgradePolicy != "highest" {
		t.Errorf("unexpected upgrade policy %q", cfg.Resolver.UpgradePolicy)
	}

	if cfg.Install.LockTimeout <= 0 {
		t.Errorf("expected positive lock timeout, got %v", cfg.Install.LockTimeout)
	}

	if cfg.Install.StagingTimeout < time.Second {
		t.Errorf("expected staging timeout of at least a second, got %v", cfg.Install.StagingTimeout)
	}

	if cfg.Logging.Level == "" {
		t.Error("expected default log level, got empty")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults pass",
			mutate: func(*Config) {},
		},
		{
			name:   "highest policy passes",
			mutate: func(c *Config) { c.Resolver.UpgradePolicy = "highest" },
		},
		{
			name:    "unknown policy fails",
			mutate:  func(c *Config) { c.Resolver.UpgradePolicy = "newest" },
			wantErr: true,
		},
		{
			name:    "negative reserve fails",
			mutate:  func(c *Config) { c.Install.MinFreeMB = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Resolver: ResolverConfig{UpgradePolicy: "lowest"},
			}
			tt.mutate(cfg)
			err := validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty path",
			input: "",
			want:  "",
		},
		{
			name:  "absolute path",
			input: "/usr/local/bin",
			want:  "/usr/local/bin",
		},
		{
			name:  "home expansion",
			input: "~/test",
			want:  filepath.Join(homeDir, "test"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandPath(tt.input)
			if got != tt.want {
				t.Errorf("expandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
