package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Values come from an optional YAML
// file with environment variables overriding individual fields, so container
// deployments can run file-less.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	LogLevel    string `yaml:"log_level"`
	DatabaseURL string `yaml:"database_url"`
	AssetsDir   string `yaml:"assets_dir"`
	SiteDomain  string `yaml:"site_domain"`

	API  APIConfig  `yaml:"api"`
	MQTT MQTTConfig `yaml:"mqtt"`
	Map  MapConfig  `yaml:"map"`
}

// APIConfig points at the external mesh node API.
type APIConfig struct {
	URL       string        `yaml:"url"`
	Key       string        `yaml:"key"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	CacheFile string        `yaml:"cache_file"`
}

// MQTTConfig configures the live-update broker connection.
type MQTTConfig struct {
	BrokerHost string        `yaml:"broker_host"`
	BrokerPort int           `yaml:"broker_port"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	UseTLS     bool          `yaml:"use_tls"`
	ClientID   string        `yaml:"client_id"`
	Keepalive  time.Duration `yaml:"keepalive"`
}

// MapConfig configures the map reconciliation engine.
type MapConfig struct {
	TileURL           string  `yaml:"tile_url"`
	DefaultLat        float64 `yaml:"default_lat"`
	DefaultLng        float64 `yaml:"default_lng"`
	DefaultZoom       int     `yaml:"default_zoom"`
	PinnedZoom        int     `yaml:"pinned_zoom"`
	SingleNodeZoom    int     `yaml:"single_node_zoom"`
	MaxFitZoom        int     `yaml:"max_fit_zoom"`
	FitPadding        int     `yaml:"fit_padding"`
	ClusteringEnabled bool    `yaml:"clustering_enabled"`
	PinLabelsEnabled  bool    `yaml:"pin_labels_enabled"`
}

// Default returns the baseline configuration before file and env overrides.
func Default() Config {
	return Config{
		HTTPAddr:   ":8000",
		LogLevel:   "info",
		AssetsDir:  "assets",
		SiteDomain: "ipnt.uk",
		API: APIConfig{
			CacheTTL:  5 * time.Minute,
			CacheFile: "instance/cache/api/nodes.json",
		},
		MQTT: MQTTConfig{
			BrokerPort: 1883,
			ClientID:   "ipnet-website",
			Keepalive:  120 * time.Second,
		},
		Map: MapConfig{
			TileURL:           "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
			DefaultLat:        52.06,
			DefaultLng:        1.15,
			DefaultZoom:       10,
			PinnedZoom:        15,
			SingleNodeZoom:    13,
			MaxFitZoom:        15,
			FitPadding:        40,
			ClusteringEnabled: true,
			PinLabelsEnabled:  true,
		},
	}
}

// Load reads the config file at path (skipped when path is empty or the file
// does not exist) and applies environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = envOr("HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.DatabaseURL = envOr("DATABASE_URL", c.DatabaseURL)
	c.AssetsDir = envOr("ASSETS_DIR", c.AssetsDir)
	c.SiteDomain = envOr("SITE_DOMAIN", c.SiteDomain)

	c.API.URL = envOr("API_URL", c.API.URL)
	c.API.Key = envOr("API_KEY", c.API.Key)

	c.MQTT.BrokerHost = envOr("MQTT_BROKER_HOST", c.MQTT.BrokerHost)
	c.MQTT.BrokerPort = envIntOr("MQTT_BROKER_PORT", c.MQTT.BrokerPort)
	c.MQTT.Username = envOr("MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = envOr("MQTT_PASSWORD", c.MQTT.Password)
	c.MQTT.UseTLS = envBoolOr("MQTT_USE_TLS", c.MQTT.UseTLS)
	c.MQTT.ClientID = envOr("MQTT_CLIENT_ID", c.MQTT.ClientID)

	c.Map.TileURL = envOr("MAP_TILE_URL", c.Map.TileURL)
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "true") || v == "1"
}
