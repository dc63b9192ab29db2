// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// DefaultMountPrefix is the path under which the hosting environment routes
// requests to the proxy function.
const DefaultMountPrefix = "/.netlify/functions/proxy"

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/voice-proxy/config.toml",
	"configs/config.toml",
}

// Chat providers.
const (
	ProviderOpenAI  = "openai"
	ProviderCopilot = "copilot"
)

var defaultAPIBase = map[string]string{
	ProviderOpenAI:  "https://api.openai.com/v1",
	ProviderCopilot: "https://models.inference.ai.azure.com",
}

var defaultChatModel = map[string]string{
	ProviderOpenAI:  "gpt-3.5-turbo",
	ProviderCopilot: "gpt-4o-mini",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config      string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host        string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port        int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	BackendURL  string `kong:"name='backend-url',help='Backend origin requests are forwarded to (overrides config).',env='BACKEND_URL'"`
	MountPrefix string `kong:"help='Path prefix stripped before forwarding (overrides config).',env='MOUNT_PREFIX'"`
	ChatAPIKey  string `kong:"name='chat-api-key',help='Chat provider API key (overrides config).',env='CHAT_API_KEY'"`
	LogLevel    string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`

	Serve  ServeCmd  `kong:"cmd,default='1',help='Run the HTTP server.'"`
	Invoke InvokeCmd `kong:"cmd,help='Handle a single function event and print the response.'"`
}

// ServeCmd runs the long-lived HTTP server.
type ServeCmd struct{}

// InvokeCmd handles one function event read from Event or stdin.
type InvokeCmd struct {
	Event string `kong:"arg,optional,type='existingfile',help='Event JSON file (default: stdin).'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Backend BackendConfig `toml:"backend"`
	Chat    ChatConfig    `toml:"chat"`
	UI      UIConfig      `toml:"ui"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"` // 0 means "use default" (8000)
	BodyMaxBytes int64  `toml:"body_max_bytes"`
}

// BackendConfig describes where proxied requests go.
type BackendConfig struct {
	// Origin may be empty; the proxy reports that per request rather than
	// refusing to start.
	Origin          string `toml:"origin"`
	MountPrefix     string `toml:"mount_prefix"`
	TimeoutSeconds  int    `toml:"timeout_seconds"` // 0 disables the client timeout
	IdleConnections int    `toml:"idle_connections"`
}

// ChatConfig configures the chat completions provider behind /chat.
type ChatConfig struct {
	Enabled        bool     `toml:"enabled"`
	Provider       string   `toml:"provider"`
	APIBase        string   `toml:"api_base"`
	APIKey         string   `toml:"api_key"`
	DefaultModel   string   `toml:"default_model"`
	AllowedModels  []string `toml:"allowed_models"`
	SystemPrompt   string   `toml:"system_prompt"`
	MaxTokens      int      `toml:"max_tokens"`
	// Temperature is a pointer so an explicit 0 is kept; nil means unset.
	Temperature    *float64 `toml:"temperature"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// DefaultTemperature is the sampling temperature used when none is configured.
const DefaultTemperature = 0.7

// SamplingTemperature returns the configured temperature or DefaultTemperature.
func (c *ChatConfig) SamplingTemperature() float64 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// UIConfig toggles the embedded browser client.
type UIConfig struct {
	Enabled bool `toml:"enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// An explicit path (via --config or CONFIG_PATH) must exist. Otherwise
// /etc/voice-proxy/config.toml then configs/config.toml are searched, and
// when neither exists the defaults plus CLI overrides are used.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.BackendURL != "" {
		c.Backend.Origin = cli.BackendURL
	}
	if cli.MountPrefix != "" {
		c.Backend.MountPrefix = cli.MountPrefix
	}
	if cli.ChatAPIKey != "" {
		c.Chat.APIKey = cli.ChatAPIKey
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Backend origin is optional here; when set it must be an absolute http(s) URL.
	if c.Backend.Origin != "" {
		u, err := url.Parse(c.Backend.Origin)
		if err != nil {
			return fmt.Errorf("backend.origin is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("backend.origin must use http or https; got %q", c.Backend.Origin)
		}
		if u.Host == "" {
			return fmt.Errorf("backend.origin must include a host; got %q", c.Backend.Origin)
		}
		if u.RawQuery != "" || u.Fragment != "" {
			return fmt.Errorf("backend.origin must not carry a query or fragment; got %q", c.Backend.Origin)
		}
	}
	if p := c.Backend.MountPrefix; p != "" {
		if p[0] != '/' {
			return fmt.Errorf("backend.mount_prefix must start with '/'; got %q", p)
		}
		if strings.HasSuffix(p, "/") {
			return fmt.Errorf("backend.mount_prefix must not end with '/'; got %q", p)
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("backend.timeout_seconds must be non-negative; got %d", c.Backend.TimeoutSeconds)
	}
	if c.Backend.IdleConnections < 0 {
		return fmt.Errorf("backend.idle_connections must be non-negative; got %d", c.Backend.IdleConnections)
	}

	if err := c.Chat.validate(); err != nil {
		return err
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range c.reservedRoutes() {
			if p == reserved || (reserved != "/" && strings.HasPrefix(p, reserved+"/")) {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

func (c *ChatConfig) validate() error {
	switch strings.ToLower(c.Provider) {
	case ProviderOpenAI, ProviderCopilot, "":
		// valid
	default:
		return fmt.Errorf("chat.provider must be one of: openai, copilot; got %q", c.Provider)
	}
	if c.APIBase != "" {
		u, err := url.Parse(c.APIBase)
		if err != nil || u.Host == "" {
			return fmt.Errorf("chat.api_base is not a valid absolute URL: %q", c.APIBase)
		}
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("chat.max_tokens must be non-negative; got %d", c.MaxTokens)
	}
	if t := c.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("chat.temperature must be within 0–2; got %v", *t)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("chat.timeout_seconds must be non-negative; got %d", c.TimeoutSeconds)
	}
	return nil
}

func (c *Config) reservedRoutes() []string {
	mount := c.Backend.MountPrefix
	if mount == "" {
		mount = DefaultMountPrefix
	}
	return []string{"/", mount, "/models", "/chat", "/healthz", "/proxy/status", "/static"}
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields, zero means "unset" because TOML cannot distinguish
// between an explicit 0 and an omitted key. backend.timeout_seconds is the
// exception: 0 keeps the replay unbounded.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Backend.MountPrefix == "" {
		c.Backend.MountPrefix = DefaultMountPrefix
	}
	if c.Backend.IdleConnections == 0 {
		c.Backend.IdleConnections = 100
	}

	c.Chat.Provider = strings.ToLower(c.Chat.Provider)
	if c.Chat.Provider == "" {
		c.Chat.Provider = ProviderOpenAI
	}
	if c.Chat.APIBase == "" {
		c.Chat.APIBase = defaultAPIBase[c.Chat.Provider]
	}
	c.Chat.APIBase = strings.TrimRight(c.Chat.APIBase, "/")
	if c.Chat.DefaultModel == "" {
		if len(c.Chat.AllowedModels) > 0 {
			c.Chat.DefaultModel = c.Chat.AllowedModels[0]
		} else {
			c.Chat.DefaultModel = defaultChatModel[c.Chat.Provider]
		}
	}
	if len(c.Chat.AllowedModels) == 0 {
		c.Chat.AllowedModels = []string{c.Chat.DefaultModel}
	}
	if c.Chat.SystemPrompt == "" {
		c.Chat.SystemPrompt = "You are Jarvis, a helpful AI assistant."
	}
	if c.Chat.MaxTokens == 0 {
		c.Chat.MaxTokens = 512
	}
	if c.Chat.Temperature == nil {
		t := DefaultTemperature
		c.Chat.Temperature = &t
	}
	if c.Chat.TimeoutSeconds == 0 {
		c.Chat.TimeoutSeconds = 60
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or
// others. The file may carry the chat API key.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
