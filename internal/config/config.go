package config

import (
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/synthdesk/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "synthdesk.yaml"

	// EnvConfigFile names an explicit configuration file.
	EnvConfigFile = "SYNTHDESK_CONFIG"

	DefaultAddr              = ":8080"
	DefaultAPIBaseURL        = "http://localhost:8000/api"
	DefaultSocketURL         = "ws://localhost:8000/ws"
	DefaultRefreshEndpoint   = "/auth/refresh"
	DefaultCacheTTL          = 60 * time.Second
	DefaultAPITimeout        = 30 * time.Second
	DefaultHeartbeat         = 30 * time.Second
	DefaultReconnectInterval = time.Second
	DefaultMaxReconnects     = 10
	DefaultConnectTimeout    = 10 * time.Second
	DefaultRequestTimeout    = 10 * time.Second
	DefaultFrameInterval     = 16 * time.Millisecond
)

// Endpoint names resolved through api.endpoints.
const (
	EndpointMe             = "me"
	EndpointDashboardStats = "dashboardStats"
	EndpointModels         = "models"
	EndpointModel          = "model"
	EndpointGenerate       = "generate"
	EndpointRules          = "rules"
	EndpointTokenUsage     = "tokenUsage"
	EndpointAdminUsers     = "adminUsers"
)

// DefaultEndpoints returns the built-in endpoint templates. Entries in
// api.endpoints replace them by name.
func DefaultEndpoints() map[string]string {
	return map[string]string{
		EndpointMe:             "/auth/me",
		EndpointDashboardStats: "/dashboard/stats",
		EndpointModels:         "/models",
		EndpointModel:          "/models/:id",
		EndpointGenerate:       "/data/generate",
		EndpointRules:          "/rules",
		EndpointTokenUsage:     "/tokens/usage",
		EndpointAdminUsers:     "/admin/users",
	}
}

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
)

// Config represents the complete synthdesk.yaml configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Socket  SocketConfig  `yaml:"socket"`
	Storage StorageConfig `yaml:"storage"`
	Binding BindingConfig `yaml:"binding"`
	Log     LogConfig     `yaml:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr,omitempty"`
}

// APIConfig configures the REST client.
type APIConfig struct {
	// BaseURL is the API root, usually <origin>/api.
	BaseURL string `yaml:"baseURL,omitempty"`

	// CacheTTL is how long GET responses are served from cache. An
	// explicit 0 turns caching off.
	CacheTTL time.Duration `yaml:"cacheTTL"`

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// RefreshEndpoint receives the refresh token after a 401.
	RefreshEndpoint string `yaml:"refreshEndpoint,omitempty"`

	// Endpoints are named path templates with :param placeholders.
	Endpoints map[string]string `yaml:"endpoints,omitempty"`
}

// SocketConfig configures the WebSocket client.
type SocketConfig struct {
	URL                  string        `yaml:"url,omitempty"`
	HeartbeatInterval    time.Duration `yaml:"heartbeatInterval,omitempty"`
	ReconnectInterval    time.Duration `yaml:"reconnectInterval,omitempty"`
	MaxReconnectAttempts int           `yaml:"maxReconnectAttempts"` // 0 disables reconnection
	ConnectTimeout       time.Duration `yaml:"connectTimeout,omitempty"`
	RequestTimeout       time.Duration `yaml:"requestTimeout,omitempty"`
}

// StorageConfig selects where tokens and cached snapshots persist.
type StorageConfig struct {
	// Backend is one of memory, file, sqlite, s3.
	Backend string `yaml:"backend,omitempty"`

	// Path is the file or database path for file and sqlite backends.
	Path string `yaml:"path,omitempty"`

	// Bucket and Prefix locate objects for the s3 backend.
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`

	// Region and Endpoint configure the S3 client. Endpoint is optional
	// and points at S3-compatible stores.
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// BindingConfig configures the reactive data-binding layer.
type BindingConfig struct {
	// FrameInterval is the flush cadence of queued updates.
	FrameInterval time.Duration `yaml:"frameInterval,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format is text or json.
	Format string `yaml:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{
		API:    APIConfig{CacheTTL: DefaultCacheTTL},
		Socket: SocketConfig{MaxReconnectAttempts: DefaultMaxReconnects},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the specified directory.
// It looks for synthdesk.yaml in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E303").
				WithDetail("No " + ConfigFileName + " found at " + path).
				WithSuggestion("Create the file or run without --config to use defaults")
		}
		return nil, errors.New("E301").Wrap(err)
	}

	// Decoding over New keeps defaults for absent keys while explicit
	// zeros such as cacheTTL: 0 survive.
	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E301").
			WithSuggestion("Check that " + filepath.Base(path) + " is valid YAML").
			Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads the file named by SYNTHDESK_CONFIG, or returns
// defaults when the variable is unset.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv(EnvConfigFile)
	if path == "" {
		return New(), nil
	}
	return LoadFile(path)
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.New("E301").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E301").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}

	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	c.API.BaseURL = strings.TrimSuffix(c.API.BaseURL, "/")
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.RefreshEndpoint == "" {
		c.API.RefreshEndpoint = DefaultRefreshEndpoint
	}
	if c.API.Endpoints == nil {
		c.API.Endpoints = make(map[string]string)
	}
	for name, template := range DefaultEndpoints() {
		if c.API.Endpoints[name] == "" {
			c.API.Endpoints[name] = template
		}
	}

	if c.Socket.URL == "" {
		c.Socket.URL = DefaultSocketURL
	}
	if c.Socket.HeartbeatInterval == 0 {
		c.Socket.HeartbeatInterval = DefaultHeartbeat
	}
	if c.Socket.ReconnectInterval == 0 {
		c.Socket.ReconnectInterval = DefaultReconnectInterval
	}
	if c.Socket.ConnectTimeout == 0 {
		c.Socket.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Socket.RequestTimeout == 0 {
		c.Socket.RequestTimeout = DefaultRequestTimeout
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}
	if c.Storage.Path == "" {
		switch c.Storage.Backend {
		case BackendFile:
			c.Storage.Path = "synthdesk-state.json"
		case BackendSQLite:
			c.Storage.Path = "synthdesk.db"
		}
	}

	if c.Binding.FrameInterval == 0 {
		c.Binding.FrameInterval = DefaultFrameInterval
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("E302").
			WithDetail("api.baseURL must be an absolute URL, got " + c.API.BaseURL)
	}
	if u, err := url.Parse(c.Socket.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return errors.New("E302").
			WithDetail("socket.url must use ws:// or wss://, got " + c.Socket.URL)
	}
	if c.API.CacheTTL < 0 {
		return errors.New("E302").
			WithDetail("api.cacheTTL must not be negative")
	}
	if c.Socket.MaxReconnectAttempts < 0 {
		return errors.New("E302").
			WithDetail("socket.maxReconnectAttempts must not be negative")
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendS3:
		if c.Storage.Bucket == "" {
			return errors.New("E302").
				WithDetail("storage.bucket is required for the s3 backend")
		}
	default:
		return errors.New("E302").
			WithDetail("unknown storage.backend " + c.Storage.Backend).
			WithSuggestion("Use one of memory, file, sqlite, s3")
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New("E302").
			WithDetail("unknown log.level " + c.Log.Level)
	}
	return nil
}

// NewLogger builds the process logger described by the log section.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if c.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
