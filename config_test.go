package devtoolkit

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Addr != ":3000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.AutosaveDelay != 15*time.Second {
		t.Errorf("AutosaveDelay = %v", cfg.AutosaveDelay)
	}
	if cfg.Storage.Driver != "local" {
		t.Errorf("Storage.Driver = %q", cfg.Storage.Driver)
	}
	if cfg.Slug.ProbeFailOpen {
		t.Error("slug probe must fail closed by default")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SITE_NAME", "My Site")
	t.Setenv("AUTOSAVE_DELAY", "3s")
	t.Setenv("AUTH_TOKEN_SECRET", "tok")
	t.Setenv("STORAGE_DRIVER", "minio")
	t.Setenv("STORAGE_USE_SSL", "true")
	t.Setenv("SLUG_MAX_ATTEMPTS", "25")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "My Site" || cfg.AutosaveDelay != 3*time.Second {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Auth.TokenSecret != "tok" {
		t.Errorf("Auth.TokenSecret = %q", cfg.Auth.TokenSecret)
	}
	if cfg.Storage.Driver != "minio" || !cfg.Storage.UseSSL {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Slug.MaxAttempts != 25 || cfg.Log.Format != "json" {
		t.Errorf("unexpected slug/log config: %+v %+v", cfg.Slug, cfg.Log)
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("AUTOSAVE_DELAY", "soon")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := SiteConfig{
		SessionSecret: "s",
		Auth:          AuthConfig{TokenSecret: "t", CallbackSecret: "c"},
		Storage:       StorageConfig{Driver: "local"},
	}
	if err := valid.validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*SiteConfig)
	}{
		{"no session secret", func(c *SiteConfig) { c.SessionSecret = "" }},
		{"no token secret", func(c *SiteConfig) { c.Auth.TokenSecret = "" }},
		{"no callback secret", func(c *SiteConfig) { c.Auth.CallbackSecret = "" }},
		{"unknown driver", func(c *SiteConfig) { c.Storage.Driver = "ftp" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, LogConfig{Level: "warn", Format: "json"})
	l.Info("hidden")
	l.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info must be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("expected JSON record, got %s", out)
	}
}
