package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultGRPCPort       = 50051
	DefaultHTTPPort       = 8080
	DefaultCacheMaxAge    = 5 * time.Minute
	DefaultPageSize       = 50
	DefaultThroughput     = 4
	DefaultTimeout        = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultRefreshCron    = "@every 5m"
	DefaultRefdataTTL     = 5 * time.Minute
	DefaultTimeInStatus   = "[CHART] Time in Status"
	DefaultLogLevel       = "info"
	DefaultAPIKeyHeader   = "x-api-key"
	DefaultJiraAuthHeader = "Authorization"
)

// Config is the root of config.yaml.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Jira    JiraConfig    `yaml:"jira"`
	Refdata RefdataConfig `yaml:"refdata"`
	Mapping MappingConfig `yaml:"mapping"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds the listener settings of the service binary.
type ServerConfig struct {
	// GRPCPort serves the grpc.health.v1 service (default 50051).
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort serves the REST API and /metrics (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates incoming clients.
	Auth AuthConfig `yaml:"auth"`

	// CacheMaxAge is advertised in Cache-Control on query responses (default 5m).
	CacheMaxAge time.Duration `yaml:"cache_max_age"`
}

// AuthConfig controls inbound client authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the gRPC metadata key (and HTTP header name) carrying the key.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultAPIKeyHeader
}

// JiraConfig describes the upstream Jira instance.
type JiraConfig struct {
	// BaseURL is the site root, e.g. "https://example.atlassian.net".
	BaseURL string `yaml:"base_url"`

	Auth JiraAuthConfig `yaml:"auth"`
	TLS  TLSConfig      `yaml:"tls"`

	// PageSize is maxResults per search page (default 50).
	PageSize int `yaml:"page_size"`

	// Throughput caps concurrent upstream requests (default 4).
	Throughput int `yaml:"throughput"`

	// Timeout bounds one upstream request (default 30s).
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries on 429 and 5xx (default 3).
	MaxRetries int `yaml:"max_retries"`
}

// JiraAuthConfig selects how requests to Jira are authenticated.
type JiraAuthConfig struct {
	// Mode is one of: none | basic | bearer | apikey | propagate.
	// "propagate" forwards the caller's Authorization header.
	Mode string `yaml:"mode"`

	// Username is used with Mode "basic" (the account email on Jira Cloud).
	Username string `yaml:"username"`

	// PasswordEnv names the variable holding the basic-auth password or API token.
	PasswordEnv string `yaml:"password_env"`

	// TokenEnv names the variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Header and KeyEnv configure Mode "apikey".
	Header string `yaml:"header"`
	KeyEnv string `yaml:"key_env"`
}

// Password returns the basic-auth secret resolved from the environment.
func (a JiraAuthConfig) Password() string { return getenv(a.PasswordEnv) }

// Token returns the bearer token resolved from the environment.
func (a JiraAuthConfig) Token() string { return getenv(a.TokenEnv) }

// Key returns the API key resolved from the environment.
func (a JiraAuthConfig) Key() string { return getenv(a.KeyEnv) }

// EffectiveHeader returns the API key header, or "Authorization".
func (a JiraAuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultJiraAuthHeader
}

// TLSConfig holds TLS settings for the upstream connection.
type TLSConfig struct {
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// RefdataConfig controls the field and status cache.
type RefdataConfig struct {
	// Refresh is a cron spec for background refreshes (default "@every 5m").
	Refresh string `yaml:"refresh"`

	// TTL is how long loaded reference data counts as fresh (default 5m).
	TTL time.Duration `yaml:"ttl"`
}

// MappingConfig tunes record enrichment. It is hot-reloadable.
type MappingConfig struct {
	// CycleTimeStatuses lists, in order, the statuses summed into X-CycleTime.
	CycleTimeStatuses []string `yaml:"cycle_time_statuses"`

	// TimeInStatusField is the name of the packed time-in-status field.
	TimeInStatusField string `yaml:"time_in_status_field"`

	// SkipMalformed drops records with malformed time-in-status data instead
	// of failing the request.
	SkipMalformed bool `yaml:"skip_malformed"`

	// EnrichWorkers bounds concurrent enrichment (0 = GOMAXPROCS).
	EnrichWorkers int `yaml:"enrich_workers"`
}

// LogConfig sets the slog level: debug | info | warn | error.
type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel maps Level onto a slog.Level; unknown values mean info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse parses config YAML held in memory.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	cfg.Jira.BaseURL = strings.TrimRight(cfg.Jira.BaseURL, "/")

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort:    DefaultGRPCPort,
			HTTPPort:    DefaultHTTPPort,
			CacheMaxAge: DefaultCacheMaxAge,
		},
		Jira: JiraConfig{
			Auth:       JiraAuthConfig{Mode: "none"},
			PageSize:   DefaultPageSize,
			Throughput: DefaultThroughput,
			Timeout:    DefaultTimeout,
			MaxRetries: DefaultMaxRetries,
		},
		Refdata: RefdataConfig{
			Refresh: DefaultRefreshCron,
			TTL:     DefaultRefdataTTL,
		},
		Mapping: MappingConfig{
			TimeInStatusField: DefaultTimeInStatus,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.GRPCPort <= 0 || cfg.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", cfg.Server.GRPCPort)
	}
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Auth.Mode == "apikey" && cfg.Server.Auth.KeyEnv == "" {
		return fmt.Errorf("server.auth.key_env is required when mode is apikey")
	}
	if cfg.Server.CacheMaxAge < 0 {
		return fmt.Errorf("server.cache_max_age must not be negative")
	}

	if cfg.Jira.BaseURL == "" {
		return fmt.Errorf("jira.base_url is required")
	}
	if !strings.HasPrefix(cfg.Jira.BaseURL, "http://") && !strings.HasPrefix(cfg.Jira.BaseURL, "https://") {
		return fmt.Errorf("jira.base_url %q must start with http:// or https://", cfg.Jira.BaseURL)
	}
	switch cfg.Jira.Auth.Mode {
	case "", "none", "propagate":
	case "basic":
		if cfg.Jira.Auth.Username == "" || cfg.Jira.Auth.PasswordEnv == "" {
			return fmt.Errorf("jira.auth: basic mode needs username and password_env")
		}
	case "bearer":
		if cfg.Jira.Auth.TokenEnv == "" {
			return fmt.Errorf("jira.auth: bearer mode needs token_env")
		}
	case "apikey":
		if cfg.Jira.Auth.KeyEnv == "" {
			return fmt.Errorf("jira.auth: apikey mode needs key_env")
		}
	default:
		return fmt.Errorf("jira.auth.mode %q unknown: want none|basic|bearer|apikey|propagate", cfg.Jira.Auth.Mode)
	}
	if cfg.Jira.PageSize <= 0 || cfg.Jira.PageSize > 100 {
		return fmt.Errorf("jira.page_size %d is out of range [1, 100]", cfg.Jira.PageSize)
	}
	if cfg.Jira.Throughput <= 0 {
		return fmt.Errorf("jira.throughput must be positive")
	}
	if cfg.Jira.Timeout <= 0 {
		return fmt.Errorf("jira.timeout must be positive")
	}
	if cfg.Jira.MaxRetries < 0 {
		return fmt.Errorf("jira.max_retries must not be negative")
	}

	if _, err := cron.ParseStandard(cfg.Refdata.Refresh); err != nil {
		return fmt.Errorf("refdata.refresh %q: %w", cfg.Refdata.Refresh, err)
	}
	if cfg.Refdata.TTL < 0 {
		return fmt.Errorf("refdata.ttl must not be negative")
	}

	if cfg.Mapping.EnrichWorkers < 0 {
		return fmt.Errorf("mapping.enrich_workers must not be negative")
	}
	if cfg.Mapping.TimeInStatusField == "" {
		cfg.Mapping.TimeInStatusField = DefaultTimeInStatus
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	return nil
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
