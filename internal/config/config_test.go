package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LLM.Provider != ProviderGroq {
		t.Errorf("expected default provider %q, got %q", ProviderGroq, cfg.LLM.Provider)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Uploads.MaxBytes != 5*1024*1024 {
		t.Errorf("expected 5MB upload limit, got %d", cfg.Uploads.MaxBytes)
	}
	if cfg.Products.TopK != 3 {
		t.Errorf("expected top_k 3, got %d", cfg.Products.TopK)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.autogenius.yml")

	original := DefaultConfig()
	original.LLM.Provider = ProviderOpenAI
	original.LLM.Model = "gpt-4o"
	original.Server.Port = 9000
	original.Server.AllowedOrigins = []string{"http://example.test"}
	original.Products.TopK = 5

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if diff := cmp.Diff(original, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveOmitsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yml")
	cfg := DefaultConfig()
	cfg.Google.ClientSecret = "super-secret"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "super-secret") {
		t.Error("client secret written to disk")
	}
	if cfg.Google.ClientSecret != "super-secret" {
		t.Error("Save must not mutate the receiver")
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.yml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTOGENIUS_SERVER__PORT", "9191")
	t.Setenv("AUTOGENIUS_LLM__PROVIDER", "ollama")
	t.Setenv("AUTOGENIUS_LLM__MODEL", "")
	t.Setenv("GOOGLE_CLIENT_ID", "cid")
	t.Setenv("GOOGLE_CLIENT_SECRET", "csecret")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.LLM.Provider != ProviderOllama {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "llama3" {
		t.Errorf("model = %q, want provider default", cfg.LLM.Model)
	}
	if cfg.Google.ClientID != "cid" || cfg.Google.ClientSecret != "csecret" {
		t.Errorf("google credentials not picked up: %+v", cfg.Google)
	}
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("ValidateServer: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"no base url", func(c *Config) { c.Server.BaseURL = "" }},
		{"no ttl", func(c *Config) { c.Server.SessionTTLHours = 0 }},
		{"no db", func(c *Config) { c.Database.Path = "" }},
		{"bad provider", func(c *Config) { c.LLM.Provider = "bard" }},
		{"negative rpm", func(c *Config) { c.LLM.RPM = -1 }},
		{"no upload dir", func(c *Config) { c.Uploads.Dir = "" }},
		{"zero upload limit", func(c *Config) { c.Uploads.MaxBytes = 0 }},
		{"bad embedder", func(c *Config) { c.Products.Embedder = "bert" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateServerRequiresGoogle(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ValidateServer(); err == nil {
		t.Error("expected error without Google credentials")
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	if got := APIKeyEnvVar(ProviderGroq); got != "GROQ_API_KEY" {
		t.Errorf("groq env var = %q", got)
	}
	if got := APIKeyEnvVar(ProviderOllama); got != "" {
		t.Errorf("ollama env var = %q, want empty", got)
	}
}
