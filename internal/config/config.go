package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hbctl/hbctl/internal/apperrors"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.hbctl/hbctl.yaml"
)

// Config is the top-level configuration.
type Config struct {
	Version     int              `yaml:"version"`
	ConfigRoot  string           `yaml:"config_root,omitempty"`
	PackageRoot string           `yaml:"package_root,omitempty"`
	StateDir    string           `yaml:"state_dir,omitempty"`
	RemoteUser  string           `yaml:"remote_user,omitempty"`
	Supervisor  SupervisorConfig `yaml:"supervisor"`
	Packages    PackagesConfig   `yaml:"packages,omitempty"`
	Inventory   InventoryConfig  `yaml:"inventory,omitempty"`
	Journal     JournalConfig    `yaml:"journal,omitempty"`
	Metrics     MetricsConfig    `yaml:"metrics,omitempty"`
	Polling     PollingConfig    `yaml:"polling,omitempty"`
	Logging     LogConfig        `yaml:"logging,omitempty"`
}

// SupervisorConfig defines how the per-host supervisor agents are reached.
type SupervisorConfig struct {
	Port     int    `yaml:"port,omitempty"` // default 9001
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// PackagesConfig defines the S3 artifact store used by install.
type PackagesConfig struct {
	S3Bucket string `yaml:"s3_bucket,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Profile  string `yaml:"profile,omitempty"`
}

// InventoryConfig points at the Postgres inventory of dependent clusters.
// When DSN is empty dependencies are read from cluster files under ConfigRoot.
type InventoryConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

// JournalConfig defines the MongoDB operation history.
type JournalConfig struct {
	URI      string `yaml:"uri,omitempty"`
	Database string `yaml:"database,omitempty"` // default hbctl
}

// MetricsConfig defines where command metrics are pushed.
type MetricsConfig struct {
	Pushgateway string `yaml:"pushgateway,omitempty"`
}

// PollingConfig tunes convergence waits.
type PollingConfig struct {
	Interval        time.Duration `yaml:"interval,omitempty"`         // default 2s
	RestartAttempts int           `yaml:"restart_attempts,omitempty"` // default 60
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level     string `yaml:"level,omitempty"`     // debug, info, warn, error
	Directory string `yaml:"directory,omitempty"` // default ~/.hbctl/logs/
}

// Load reads and parses the config file from the given path. Secret
// references are resolved before defaults are applied.
func Load(ctx context.Context, path string) (*Config, error) {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := cfg.resolveSecrets(ctx); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Default returns a config with every default applied, used when no file exists.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	cfg.applyDefaults()
	return cfg
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyDefaults() {
	if c.ConfigRoot == "" {
		c.ConfigRoot = "~/.hbctl/clusters"
	}
	c.ConfigRoot = ExpandHome(c.ConfigRoot)
	if c.PackageRoot == "" {
		c.PackageRoot = "~/.hbctl/packages"
	}
	c.PackageRoot = ExpandHome(c.PackageRoot)
	if c.StateDir == "" {
		c.StateDir = "~/.hbctl/state"
	}
	c.StateDir = ExpandHome(c.StateDir)
	if c.RemoteUser == "" {
		c.RemoteUser = os.Getenv("USER")
	}
	if c.Supervisor.Port == 0 {
		c.Supervisor.Port = 9001
	}
	if c.Journal.Database == "" {
		c.Journal.Database = "hbctl"
	}
	if c.Polling.Interval == 0 {
		c.Polling.Interval = 2 * time.Second
	}
	if c.Polling.RestartAttempts == 0 {
		c.Polling.RestartAttempts = 60
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = "~/.hbctl/logs/"
	}
	c.Logging.Directory = ExpandHome(c.Logging.Directory)
}

// validate rejects values applyDefaults would otherwise pass through. Zero
// means "use the default"; negatives are mistakes.
func (c *Config) validate() error {
	if c.Polling.Interval < 0 {
		return apperrors.Validationf("polling.interval", "must not be negative, got %s", c.Polling.Interval)
	}
	if c.Polling.RestartAttempts < 0 {
		return apperrors.Validationf("polling.restart_attempts", "must not be negative, got %d", c.Polling.RestartAttempts)
	}
	if c.Supervisor.Port < 0 || c.Supervisor.Port > 65535 {
		return apperrors.Validationf("supervisor.port", "out of range: %d", c.Supervisor.Port)
	}
	return nil
}

// Krb5Path is the operator side Kerberos config copied to secure hosts.
func (c *Config) Krb5Path() string {
	return filepath.Join(c.ConfigRoot, "krb5-hadoop.conf")
}

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

func (c *Config) resolveSecrets(ctx context.Context) error {
	r := Resolver{AWSProfile: c.Packages.Profile, AWSRegion: c.Packages.Region}
	var err error
	c.Supervisor.Password, err = r.Resolve(ctx, c.Supervisor.Password)
	if err != nil {
		return fmt.Errorf("supervisor password: %w", err)
	}
	c.Inventory.DSN, err = r.Resolve(ctx, c.Inventory.DSN)
	if err != nil {
		return fmt.Errorf("inventory dsn: %w", err)
	}
	c.Journal.URI, err = r.Resolve(ctx, c.Journal.URI)
	if err != nil {
		return fmt.Errorf("journal uri: %w", err)
	}
	return nil
}

// Resolver resolves secret references of the form ${ENV:NAME},
// ${VAULT:path#key} and ${AWS_SM:name}.
type Resolver struct {
	AWSProfile string
	AWSRegion  string
}

// ResolveValue resolves a secret reference with the default AWS settings.
func ResolveValue(ctx context.Context, val string) (string, error) {
	return Resolver{}.Resolve(ctx, val)
}

// Resolve returns val unchanged unless it is a secret reference.
func (r Resolver) Resolve(ctx context.Context, val string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	provider := matches[1]
	ref := matches[2]

	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ctx, ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ctx, ref, r.AWSProfile, r.AWSRegion)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
