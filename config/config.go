package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "RTC"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	API       APIConfig       `mapstructure:"api"`
	Reconnect ReconnectConfig `mapstructure:"reconnect"`
	Transport TransportConfig `mapstructure:"transport"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Control   ControlConfig   `mapstructure:"control"`
	Rooms     RoomsConfig     `mapstructure:"rooms"`

	v *viper.Viper
}

type ServerConfig struct {
	URL string `mapstructure:"url"`
}

// IdentityConfig is the principal announced by whoami. Empty PrincipalID means "read it
// from the secure store".
type IdentityConfig struct {
	Role        string `mapstructure:"role"`
	PrincipalID string `mapstructure:"principal_id"`
	BusinessID  string `mapstructure:"business_id"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Token   string        `mapstructure:"token"`
}

type ReconnectConfig struct {
	Initial time.Duration `mapstructure:"initial"`
	Max     time.Duration `mapstructure:"max"`
}

type TransportConfig struct {
	PingPeriod time.Duration `mapstructure:"ping_period"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	RedisAddr string `mapstructure:"redis_addr"`
}

type ControlConfig struct {
	Listen string `mapstructure:"listen"`
}

// RoomsConfig lists rooms joined at startup.
type RoomsConfig struct {
	RideID  string `mapstructure:"ride_id"`
	OrderID string `mapstructure:"order_id"`
}

// Flags returns the command-line overrides understood by LoadConfig.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.String("config_file", "", "Path to the configuration file")
	fs.String("server.url", "", "Realtime channel websocket URL")
	fs.String("identity.role", "", "passenger or merchant")
	fs.String("identity.principal_id", "", "Principal announced by whoami")
	fs.String("identity.business_id", "", "Merchant business id")
	fs.String("api.base_url", "", "Order/ride HTTP API base URL")
	fs.String("log.level", "", "debug, info, warn or error")
	fs.String("control.listen", "", "Control surface listen address")
	fs.String("rooms.ride_id", "", "Ride room joined at startup")
	fs.String("rooms.order_id", "", "Order room joined at startup")
	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "ws://127.0.0.1:8080/ws")
	v.SetDefault("identity.role", "passenger")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.token", "")
	v.SetDefault("reconnect.initial", 500*time.Millisecond)
	v.SetDefault("reconnect.max", 30*time.Second)
	v.SetDefault("transport.ping_period", 25*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.redis_addr", "127.0.0.1:6379")
	v.SetDefault("control.listen", "127.0.0.1:8090")
}

// LoadConfig resolves the configuration from defaults, an optional file, RTC_* environment
// variables and args, in increasing priority.
func LoadConfig(args []string) (*Config, error) {
	fs := Flags()
	// [FORWARD_COMPAT] Unknown flags belong to the caller's command line.
	fs.ParseErrorsAllowlist.UnknownFlags = true
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.URL == "" {
		errs = append(errs, errors.New("server.url is required"))
	}
	switch strings.ToLower(c.Identity.Role) {
	case "passenger", "merchant":
	default:
		errs = append(errs, fmt.Errorf("identity.role %q must be passenger or merchant", c.Identity.Role))
	}
	switch c.Store.Driver {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be memory or redis", c.Store.Driver))
	}
	if c.Reconnect.Initial <= 0 || c.Reconnect.Max < c.Reconnect.Initial {
		errs = append(errs, errors.New("reconnect.initial must be positive and not above reconnect.max"))
	}
	return errors.Join(errs...)
}

// Watch invokes fn with the new identity section whenever the config file changes.
// It reports false when no file backs the configuration.
func (c *Config) Watch(fn func(IdentityConfig)) bool {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return false
	}

	var mu sync.Mutex
	last := c.Identity

	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var next IdentityConfig
		if err := c.v.UnmarshalKey("identity", &next); err != nil {
			return
		}

		mu.Lock()
		changed := next != last
		last = next
		mu.Unlock()

		if changed {
			fn(next)
		}
	})
	c.v.WatchConfig()
	return true
}
