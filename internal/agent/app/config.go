package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/session"
	"gopkg.in/yaml.v3"
)

const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"

	// ConfigEnv names the YAML file read when no path is passed to LoadConfig.
	ConfigEnv = "AUTHSESSION_CONFIG"

	envPrefix = "AUTHSESSION_"
)

type Config struct {
	IssuerURL             string   `yaml:"issuer_url"`               // Required: OIDC issuer, e.g. https://sso.example.com/realms/main
	ClientID              string   `yaml:"client_id"`                // Required: public or confidential client id
	ClientSecret          string   `yaml:"client_secret"`            // Optional: only for confidential clients
	RedirectURL           string   `yaml:"redirect_url"`             // Optional: callback URL (default: http://localhost:<port>/auth/callback)
	PostLogoutRedirectURL string   `yaml:"post_logout_redirect_url"` // Optional: where the provider sends the browser after logout (default: app_url)
	AppURL                string   `yaml:"app_url"`                  // Optional: application home, used as the default return target (default: http://localhost:<port>/)
	Scopes                []string `yaml:"scopes"`                   // Optional: requested scopes (default: openid profile email)
	RoleClients           []string `yaml:"role_clients"`             // Optional: clients whose resource_access roles count as identity roles

	Landing        []session.RoleRoute `yaml:"landing"`         // Optional: post-login page per role, first match wins
	LandingDefault string              `yaml:"landing_default"` // Optional: post-login page when no role matches (default: /)

	StorageKeyPrefix  string `yaml:"storage_key_prefix"` // Optional: namespace for stored slots (default: authsession:)
	StorageMode       string `yaml:"storage_mode"`       // Optional: memory or sqlite (default: sqlite)
	DatabaseFile      string `yaml:"database_file"`      // Optional: SQLite file for sqlite mode (default: ./authsession.db)
	StoragePassphrase string `yaml:"storage_passphrase"` // Optional: encrypts stored values when set

	RefreshLead       time.Duration `yaml:"refresh_lead"`        // Optional: renew this long before expiry (default: 60s)
	SafetyNetInterval time.Duration `yaml:"safety_net_interval"` // Optional: periodic expiry check (default: 60s)
	WarningLead       time.Duration `yaml:"warning_lead"`        // Optional: warn this long before expiry (default: 1m)
	OpenBrowser       bool          `yaml:"open_browser"`        // Optional: open sign-in pages in the system browser (default: true)

	AgentSecret string `yaml:"agent_secret"` // Optional: bearer secret required by the /v1 API and logout
	Host        string `yaml:"host"`         // Optional: listen address (default: 127.0.0.1)

	Env                  string        `yaml:"env"`                   // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        `yaml:"log_level"`             // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        `yaml:"log_format"`            // Log format (json, text) (default: json)
	Port                 int           `yaml:"port"`                  // HTTP server port (default: 8400)
	ShutdownGracePeriod  time.Duration `yaml:"shutdown_grace_period"` // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration `yaml:"housekeeping_interval"` // Expired login attempt sweep interval (default: 15m)
}

func defaultConfig() Config {
	return Config{
		Scopes:               []string{"openid", "profile", "email"},
		LandingDefault:       "/",
		StorageKeyPrefix:     "authsession:",
		StorageMode:          StorageSQLite,
		DatabaseFile:         "authsession.db",
		RefreshLead:          60 * time.Second,
		SafetyNetInterval:    60 * time.Second,
		WarningLead:          time.Minute,
		OpenBrowser:          true,
		Host:                 "127.0.0.1",
		Env:                  "dev",
		LogLevel:             "info",
		LogFormat:            "json",
		Port:                 8400,
		ShutdownGracePeriod:  10 * time.Second,
		HousekeepingInterval: 15 * time.Minute,
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file at
// path (or $AUTHSESSION_CONFIG), then environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.IssuerURL = getEnvOrDefault(envPrefix+"ISSUER_URL", c.IssuerURL)
	c.ClientID = getEnvOrDefault(envPrefix+"CLIENT_ID", c.ClientID)
	c.ClientSecret = getEnvOrDefault(envPrefix+"CLIENT_SECRET", c.ClientSecret)
	c.RedirectURL = getEnvOrDefault(envPrefix+"REDIRECT_URL", c.RedirectURL)
	c.PostLogoutRedirectURL = getEnvOrDefault(envPrefix+"POST_LOGOUT_REDIRECT_URL", c.PostLogoutRedirectURL)
	c.AppURL = getEnvOrDefault(envPrefix+"APP_URL", c.AppURL)
	c.Scopes = getEnvListOrDefault(envPrefix+"SCOPES", c.Scopes)
	c.RoleClients = getEnvListOrDefault(envPrefix+"ROLE_CLIENTS", c.RoleClients)
	c.Landing = getEnvRoutesOrDefault(envPrefix+"LANDING", c.Landing)
	c.LandingDefault = getEnvOrDefault(envPrefix+"LANDING_DEFAULT", c.LandingDefault)

	c.StorageKeyPrefix = getEnvOrDefault(envPrefix+"STORAGE_KEY_PREFIX", c.StorageKeyPrefix)
	c.StorageMode = getEnvOrDefault(envPrefix+"STORAGE_MODE", c.StorageMode)
	c.DatabaseFile = getEnvOrDefault(envPrefix+"DATABASE_FILE", c.DatabaseFile)
	c.StoragePassphrase = getEnvOrDefault(envPrefix+"STORAGE_PASSPHRASE", c.StoragePassphrase)

	c.RefreshLead = getEnvDurationOrDefault(envPrefix+"REFRESH_LEAD", c.RefreshLead)
	c.SafetyNetInterval = getEnvDurationOrDefault(envPrefix+"SAFETY_NET_INTERVAL", c.SafetyNetInterval)
	c.WarningLead = getEnvDurationOrDefault(envPrefix+"WARNING_LEAD", c.WarningLead)
	c.OpenBrowser = getEnvBoolOrDefault(envPrefix+"OPEN_BROWSER", c.OpenBrowser)

	c.AgentSecret = getEnvOrDefault(envPrefix+"AGENT_SECRET", c.AgentSecret)
	c.Host = getEnvOrDefault(envPrefix+"HOST", c.Host)

	c.Env = getEnvOrDefault("ENV", c.Env)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)
	c.Port = getEnvIntOrDefault("PORT", c.Port)
	c.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", c.ShutdownGracePeriod)
	c.HousekeepingInterval = getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", c.HousekeepingInterval)
}

// applyDerived fills URLs that default to the agent's own address.
func (c *Config) applyDerived() {
	if c.AppURL == "" {
		c.AppURL = fmt.Sprintf("http://localhost:%d/", c.Port)
	}
	if c.RedirectURL == "" {
		c.RedirectURL = fmt.Sprintf("http://localhost:%d/auth/callback", c.Port)
	}
	if c.PostLogoutRedirectURL == "" {
		c.PostLogoutRedirectURL = c.AppURL
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.IssuerURL == "" {
		errs = append(errs, errors.New("issuer_url is required"))
	}
	if c.ClientID == "" {
		errs = append(errs, errors.New("client_id is required"))
	}
	if c.StorageMode != StorageMemory && c.StorageMode != StorageSQLite {
		errs = append(errs, fmt.Errorf("storage_mode must be %q or %q, got %q", StorageMemory, StorageSQLite, c.StorageMode))
	}
	if c.StorageMode == StorageSQLite && c.DatabaseFile == "" {
		errs = append(errs, errors.New("database_file is required in sqlite mode"))
	}
	if c.RefreshLead <= 0 {
		errs = append(errs, errors.New("refresh_lead must be positive"))
	}
	if c.SafetyNetInterval <= 0 {
		errs = append(errs, errors.New("safety_net_interval must be positive"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("log_format must be json or text, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

// getEnvListOrDefault splits on commas and whitespace.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// getEnvRoutesOrDefault parses "role=/path,role2=/other".
func getEnvRoutesOrDefault(key string, defaultValue []session.RoleRoute) []session.RoleRoute {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var routes []session.RoleRoute
	for _, pair := range strings.Split(value, ",") {
		role, path, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || role == "" || path == "" {
			continue
		}
		routes = append(routes, session.RoleRoute{Role: role, Path: path})
	}
	return routes
}
