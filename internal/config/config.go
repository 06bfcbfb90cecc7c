// Package config loads engd settings from <home>/config/engd.toml, ENGD_*
// environment variables and command line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"cosmossdk.io/log"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"encryptednumbers/internal/state"
)

const (
	EnvPrefix   = "ENGD"
	DefaultHome = ".engd"
	FileName    = "engd.toml"
)

type Config struct {
	Home      string `mapstructure:"home"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	App     AppConfig     `mapstructure:"app"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Relay   RelayConfig   `mapstructure:"relay"`
}

type AppConfig struct {
	ABCIAddr     string `mapstructure:"abci_addr"`
	Transport    string `mapstructure:"transport"`
	StateBackend string `mapstructure:"state_backend"`
}

type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the listener.
	Addr string `mapstructure:"addr"`
}

type RelayConfig struct {
	Listen  string `mapstructure:"listen"`
	NodeRPC string `mapstructure:"node_rpc"`
	ChainID string `mapstructure:"chain_id"`
	// KeyFile holds the hex encoded network secret key.
	KeyFile string `mapstructure:"key_file"`

	MaxHandles     int           `mapstructure:"max_handles"`
	CacheSize      int           `mapstructure:"cache_size"`
	RateLimit      int           `mapstructure:"rate_limit"`
	RateWindow     time.Duration `mapstructure:"rate_window"`
	ClockSkew      time.Duration `mapstructure:"clock_skew"`
	RedisAddr      string        `mapstructure:"redis_addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

func Default(home string) Config {
	return Config{
		Home:      home,
		LogLevel:  "info",
		LogFormat: "plain",
		App: AppConfig{
			ABCIAddr:     "tcp://127.0.0.1:26658",
			Transport:    "socket",
			StateBackend: state.BackendGoLevelDB,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:26660"},
		Relay: RelayConfig{
			Listen:         "127.0.0.1:8788",
			NodeRPC:        "tcp://127.0.0.1:26657",
			KeyFile:        filepath.Join(home, "config", "network_key.hex"),
			MaxHandles:     16,
			CacheSize:      4096,
			RateLimit:      60,
			RateWindow:     time.Minute,
			ClockSkew:      5 * time.Minute,
			AllowedOrigins: []string{"*"},
		},
	}
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("home", d.Home)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("app.abci_addr", d.App.ABCIAddr)
	v.SetDefault("app.transport", d.App.Transport)
	v.SetDefault("app.state_backend", d.App.StateBackend)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("relay.listen", d.Relay.Listen)
	v.SetDefault("relay.node_rpc", d.Relay.NodeRPC)
	v.SetDefault("relay.chain_id", d.Relay.ChainID)
	v.SetDefault("relay.key_file", d.Relay.KeyFile)
	v.SetDefault("relay.max_handles", d.Relay.MaxHandles)
	v.SetDefault("relay.cache_size", d.Relay.CacheSize)
	v.SetDefault("relay.rate_limit", d.Relay.RateLimit)
	v.SetDefault("relay.rate_window", d.Relay.RateWindow)
	v.SetDefault("relay.clock_skew", d.Relay.ClockSkew)
	v.SetDefault("relay.redis_addr", d.Relay.RedisAddr)
	v.SetDefault("relay.allowed_origins", d.Relay.AllowedOrigins)
}

// Load reads the config file under home if present, then applies the
// environment and any flags set on flags. Flag names use dashes in place of the
// key's dots and underscores, e.g. --relay-node-rpc.
func Load(home string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v, Default(home))

	// A missing file is fine; viper reports it as a plain fs error since the
	// path is explicit.
	v.SetConfigFile(filepath.Join(home, "config", FileName))
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if i := strings.Index(key, "_"); i > 0 {
				if section := key[:i]; section == "app" || section == "metrics" || section == "relay" {
					key = section + "." + key[i+1:]
				}
			}
			if err := v.BindPFlag(key, f); err != nil {
				bindErr = multierror.Append(bindErr, err)
			}
		})
		if bindErr != nil {
			return Config{}, bindErr
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Home = home
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var result *multierror.Error
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, fmt.Errorf("log_level: %w", err))
	}
	if c.LogFormat != "plain" && c.LogFormat != "json" {
		result = multierror.Append(result, fmt.Errorf("log_format: want plain or json, got %q", c.LogFormat))
	}
	switch c.App.StateBackend {
	case state.BackendFile, state.BackendGoLevelDB, state.BackendMemDB:
	default:
		result = multierror.Append(result, fmt.Errorf("app.state_backend: unknown backend %q", c.App.StateBackend))
	}
	if c.App.Transport != "socket" && c.App.Transport != "grpc" {
		result = multierror.Append(result, fmt.Errorf("app.transport: want socket or grpc, got %q", c.App.Transport))
	}
	if c.Relay.MaxHandles <= 0 {
		result = multierror.Append(result, fmt.Errorf("relay.max_handles must be positive"))
	}
	if c.Relay.CacheSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("relay.cache_size must be positive"))
	}
	if c.Relay.RateLimit < 0 {
		result = multierror.Append(result, fmt.Errorf("relay.rate_limit must not be negative"))
	}
	if c.Relay.RateLimit > 0 && c.Relay.RateWindow <= 0 {
		result = multierror.Append(result, fmt.Errorf("relay.rate_window must be positive when rate_limit is set"))
	}
	if c.Relay.ClockSkew < 0 {
		result = multierror.Append(result, fmt.Errorf("relay.clock_skew must not be negative"))
	}
	return result.ErrorOrNil()
}

// StateDir is where the application state store lives.
func (c Config) StateDir() string {
	return filepath.Join(c.Home, "data")
}

// NewLogger builds the process logger from the configured level and format.
func (c Config) NewLogger(w io.Writer) (log.Logger, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	opts := []log.Option{log.LevelOption(level)}
	if c.LogFormat == "json" {
		opts = append(opts, log.OutputJSONOption())
	}
	return log.NewLogger(w, opts...), nil
}
