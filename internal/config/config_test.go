package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTPAddr != ":8000" {
		t.Fatalf("expected default addr, got %s", cfg.HTTPAddr)
	}
	if cfg.SiteDomain != "ipnt.uk" {
		t.Fatalf("expected default domain, got %s", cfg.SiteDomain)
	}
	if cfg.API.CacheTTL != 5*time.Minute {
		t.Fatalf("expected 5m cache ttl, got %s", cfg.API.CacheTTL)
	}
	if cfg.Map.TileURL == "" {
		t.Fatal("expected a default tile url")
	}
	if !cfg.Map.ClusteringEnabled {
		t.Fatal("expected clustering on by default")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http_addr: ":9000"
site_domain: other.net
map:
  default_zoom: 7
mqtt:
  broker_host: mqtt.other.net
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTPAddr != ":9000" || cfg.SiteDomain != "other.net" {
		t.Fatalf("expected file overrides applied, got %+v", cfg)
	}
	if cfg.Map.DefaultZoom != 7 {
		t.Fatalf("expected zoom override, got %d", cfg.Map.DefaultZoom)
	}
	if cfg.MQTT.BrokerHost != "mqtt.other.net" {
		t.Fatalf("expected broker override, got %s", cfg.MQTT.BrokerHost)
	}
	// Untouched fields keep their defaults.
	if cfg.MQTT.BrokerPort != 1883 {
		t.Fatalf("expected default broker port, got %d", cfg.MQTT.BrokerPort)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http_addr: \":9000\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HTTP_ADDR", ":7000")
	t.Setenv("MQTT_BROKER_PORT", "8883")
	t.Setenv("MQTT_USE_TLS", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTPAddr != ":7000" {
		t.Fatalf("expected env to win over file, got %s", cfg.HTTPAddr)
	}
	if cfg.MQTT.BrokerPort != 8883 || !cfg.MQTT.UseTLS {
		t.Fatalf("expected typed env overrides, got %+v", cfg.MQTT)
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("expected missing file to be skipped, got %v", err)
	}
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
