package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("labportal version %s, commit %s, built at %s", version, commit, date)
}

type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Provider ProviderConfig `mapstructure:"provider"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Session  SessionConfig  `mapstructure:"session"`
	Canvas   CanvasConfig   `mapstructure:"canvas"`
	Polling  PollingConfig  `mapstructure:"polling"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	Color             bool   `mapstructure:"color"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

// ProviderName identifies the identity provider flavour.
type ProviderName string

const (
	ProviderAuth0    ProviderName = "auth0"
	ProviderKeycloak ProviderName = "keycloak"
)

type ProviderConfig struct {
	Name            ProviderName `mapstructure:"name"`
	Domain          string       `mapstructure:"domain"` // auth0 tenant domain, e.g. tenant.eu.auth0.com
	Issuer          string       `mapstructure:"issuer"` // OIDC issuer used for discovery (keycloak realm URL)
	ClientID        string       `mapstructure:"client_id"`
	Audience        string       `mapstructure:"audience"`
	Scopes          []string     `mapstructure:"scopes"`
	RedirectURL     string       `mapstructure:"redirect_url"`
	LogoutReturnURL string       `mapstructure:"logout_return_url"`
}

// BackendAPI selects the wire form used to talk to the portal backend.
type BackendAPI string

const (
	BackendREST    BackendAPI = "rest"
	BackendGraphQL BackendAPI = "graphql"
)

type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	API     BackendAPI    `mapstructure:"api"`
	Timeout time.Duration `mapstructure:"timeout"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Interval    time.Duration `mapstructure:"interval"`
}

// StorageDriver names a key/value backend.
type StorageDriver string

const (
	StorageMemory StorageDriver = "memory"
	StorageBolt   StorageDriver = "bolt"
	StorageSQLite StorageDriver = "sqlite"
	StorageRedis  StorageDriver = "redis"
)

type StorageConfig struct {
	Driver      StorageDriver `mapstructure:"driver"`
	Path        string        `mapstructure:"path"`
	Namespace   string        `mapstructure:"namespace"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	Redis       RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SessionConfig struct {
	VerifyTimeout   time.Duration `mapstructure:"verify_timeout"`
	CallbackTimeout time.Duration `mapstructure:"callback_timeout"`
	HomeURL         string        `mapstructure:"home_url"`
}

type CanvasConfig struct {
	Workspace string `mapstructure:"workspace"`
}

type PollingConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Interval    time.Duration `mapstructure:"interval"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"`
}

// InitFlags initializes command line flags (without parsing)
func InitFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to a config file (default: ./config.yaml, ~/.labportal/config.yaml)")
	flags.String("storage.driver", "", "Storage driver (bolt|sqlite|redis|memory)")
	flags.String("storage.path", "", "Path of the local storage file")
	flags.String("logging.level", "", "Log level (debug|info|warn|error)")
	flags.String("canvas.workspace", "", "File holding the live canvas graph (.json, .yaml)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")

	v.SetDefault("provider.name", string(ProviderAuth0))
	v.SetDefault("provider.scopes", []string{"openid", "profile", "email"})
	v.SetDefault("provider.redirect_url", "http://127.0.0.1:8765/callback")

	v.SetDefault("backend.api", string(BackendGraphQL))
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("backend.breaker.max_failures", 5)
	v.SetDefault("backend.breaker.timeout", 30*time.Second)
	v.SetDefault("backend.breaker.interval", 60*time.Second)

	v.SetDefault("storage.driver", string(StorageBolt))
	v.SetDefault("storage.path", "labportal.db")
	v.SetDefault("storage.namespace", "labportal")
	v.SetDefault("storage.lock_timeout", time.Second)
	v.SetDefault("storage.redis.addr", "127.0.0.1:6379")

	v.SetDefault("session.verify_timeout", 10*time.Second)
	v.SetDefault("session.callback_timeout", 5*time.Minute)
	v.SetDefault("session.home_url", "/")

	v.SetDefault("canvas.workspace", "canvas.json")

	v.SetDefault("polling.max_attempts", 30)
	v.SetDefault("polling.interval", 2*time.Second)

	v.SetDefault("tracing.exporter", "stderr")

	// Keys without a meaningful default still need registering so that
	// AutomaticEnv picks them up during Unmarshal.
	for _, key := range []string{
		"logging.output_path",
		"provider.domain",
		"provider.issuer",
		"provider.client_id",
		"provider.audience",
		"provider.logout_return_url",
		"backend.base_url",
		"storage.redis.password",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("tracing.enabled", false)
}

// Load reads the configuration from flags, LABPORTAL_* environment variables and
// the first config.yaml found. A missing config file is not an error.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LABPORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, err
		}
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.labportal")
		v.AddConfigPath("/etc/labportal")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &config, nil
}

// ValidateAuth checks the settings needed by the login/logout flow.
func (c *Config) ValidateAuth() error {
	switch c.Provider.Name {
	case ProviderAuth0:
		if c.Provider.Domain == "" {
			return fmt.Errorf("provider.domain is required for auth0, please adjust the config or set LABPORTAL_PROVIDER_DOMAIN")
		}
	case ProviderKeycloak:
		if c.Provider.Issuer == "" {
			return fmt.Errorf("provider.issuer is required for keycloak, please adjust the config or set LABPORTAL_PROVIDER_ISSUER")
		}
	default:
		return fmt.Errorf("unsupported provider.name %q", c.Provider.Name)
	}
	if c.Provider.ClientID == "" {
		return fmt.Errorf("provider.client_id is required, please adjust the config or set LABPORTAL_PROVIDER_CLIENT_ID")
	}
	if c.Provider.RedirectURL == "" {
		return fmt.Errorf("provider.redirect_url is required")
	}
	return c.ValidateBackend()
}

// ValidateBackend checks the settings needed to reach the portal backend.
func (c *Config) ValidateBackend() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required, please adjust the config or set LABPORTAL_BACKEND_BASE_URL")
	}
	switch c.Backend.API {
	case BackendREST, BackendGraphQL:
		return nil
	default:
		return fmt.Errorf("unsupported backend.api %q", c.Backend.API)
	}
}
