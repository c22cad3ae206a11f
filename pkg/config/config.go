package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

const (
	envConfigPath        = "CONCIERGE_CONFIG"
	envGatewayPort       = "PORT"
	envAdminPort         = "ADMIN_PORT"
	envModel             = "CONCIERGE_MODEL"
	envOpenAIBaseURL     = "OPENAI_BASE_URL"
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
	envWhatsAppStorePath = "WHATSAPP_STORE_PATH"
	envWhatsAppAllowFrom = "WHATSAPP_ALLOW_FROM"
)

const (
	DefaultHotelName        = "Hotel Paradise"
	DefaultModel            = "gpt-4o-mini"
	DefaultGatewayPort      = 3008
	DefaultAdminPort        = 3009
	DefaultWhatsAppStore    = "whatsapp.db"
	defaultHost             = "0.0.0.0"
	defaultAdminEnabledFlag = true
)

// Config is the root runtime configuration. Every field has a usable default,
// so an absent config.json is not an error.
type Config struct {
	Hotel      HotelConfig      `json:"hotel"`
	Completion CompletionConfig `json:"completion"`
	Channels   ChannelsConfig   `json:"channels"`
	Gateway    GatewayConfig    `json:"gateway"`
	Admin      AdminConfig      `json:"admin"`
	Logging    LoggingConfig    `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// HotelConfig describes the property the concierge speaks for.
type HotelConfig struct {
	Name           string       `json:"name"`
	WeatherSummary string       `json:"weather_summary"`
	Catalog        *CatalogSeed `json:"catalog,omitempty"`
}

// CatalogSeed overrides the built-in content at startup. Empty fields keep
// the built-in value.
type CatalogSeed struct {
	Breakfast   string   `json:"breakfast"`
	Lunch       string   `json:"lunch"`
	Dinner      string   `json:"dinner"`
	Activities  []string `json:"activities"`
	Restaurants []string `json:"restaurants"`
	Plans       []string `json:"plans"`
}

// CompletionConfig configures the chat-completion vendor.
type CompletionConfig struct {
	BaseURL               string `json:"base_url"`
	APIKeyEnv             string `json:"api_key_env"`
	Organization          string `json:"organization"`
	Project               string `json:"project"`
	Model                 string `json:"model"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Telegram TelegramConfig `json:"telegram"`
}

// WhatsAppConfig configures the WhatsApp multi-device channel.
type WhatsAppConfig struct {
	Enabled   bool     `json:"enabled"`
	StorePath string   `json:"store_path"`
	AllowFrom []string `json:"allow_from"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allow_from"`
}

// GatewayConfig configures the health/metrics bind settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Address is the host:port the status server listens on.
func (g GatewayConfig) Address() string {
	return net.JoinHostPort(strings.TrimSpace(g.Host), strconv.Itoa(g.Port))
}

// AdminConfig configures the admin panel. Enabled is a pointer so that an
// explicit false in config.json survives default application.
type AdminConfig struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// IsEnabled reports whether the admin panel should run alongside the gateway.
func (a AdminConfig) IsEnabled() bool {
	if a.Enabled == nil {
		return defaultAdminEnabledFlag
	}

	return *a.Enabled
}

// Address is the host:port the admin panel listens on.
func (a AdminConfig) Address() string {
	return net.JoinHostPort(strings.TrimSpace(a.Host), strconv.Itoa(a.Port))
}

// LoadConfig resolves config.json if present, applies defaults and then
// environment overrides.
func LoadConfig() (*Config, error) {
	var cfg Config

	configPath, err := findConfigPath()
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyDefaults(&cfg)
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Hotel.Name) == "" {
		cfg.Hotel.Name = DefaultHotelName
	}
	if strings.TrimSpace(cfg.Completion.Model) == "" {
		cfg.Completion.Model = DefaultModel
	}
	if strings.TrimSpace(cfg.Channels.WhatsApp.StorePath) == "" {
		cfg.Channels.WhatsApp.StorePath = DefaultWhatsAppStore
	}
	if strings.TrimSpace(cfg.Gateway.Host) == "" {
		cfg.Gateway.Host = defaultHost
	}
	if cfg.Gateway.Port <= 0 {
		cfg.Gateway.Port = DefaultGatewayPort
	}
	if strings.TrimSpace(cfg.Admin.Host) == "" {
		cfg.Admin.Host = defaultHost
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = DefaultAdminPort
	}
}

// applyEnvOverrides injects env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	if port, ok, err := envPort(envGatewayPort); err != nil {
		return err
	} else if ok {
		cfg.Gateway.Port = port
	}

	if port, ok, err := envPort(envAdminPort); err != nil {
		return err
	} else if ok {
		cfg.Admin.Port = port
	}

	if model := strings.TrimSpace(os.Getenv(envModel)); model != "" {
		cfg.Completion.Model = model
	}
	if baseURL := strings.TrimSpace(os.Getenv(envOpenAIBaseURL)); baseURL != "" {
		cfg.Completion.BaseURL = baseURL
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if raw := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); raw != "" {
		cfg.Channels.Telegram.AllowFrom = parseCSV(raw)
	}

	if storePath := strings.TrimSpace(os.Getenv(envWhatsAppStorePath)); storePath != "" {
		cfg.Channels.WhatsApp.StorePath = storePath
	}
	if raw := strings.TrimSpace(os.Getenv(envWhatsAppAllowFrom)); raw != "" {
		cfg.Channels.WhatsApp.AllowFrom = parseCSV(raw)
	}

	return nil
}

func envPort(name string) (int, bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false, nil
	}

	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return 0, false, fmt.Errorf("%s must be a TCP port, got %q", name, raw)
	}

	return port, true, nil
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	return lo.Compact(lo.Map(strings.Split(input, ","), func(part string, _ int) string {
		return strings.TrimSpace(part)
	}))
}

// findConfigPath resolves the active config file location.
//
// CONCIERGE_CONFIG must point at a file when set. Otherwise cwd-local paths
// are probed and fs.ErrNotExist is returned when none exists.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fs.ErrNotExist
}
