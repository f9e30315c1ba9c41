// Package config loads daemon and client configuration from an optional
// config.yml, an optional .env file and EVSETTINGS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/evervolv/evsettings/internal/engine"
	"github.com/evervolv/evsettings/internal/logging"
	"github.com/evervolv/evsettings/pkg/hardware"
)

// EnvPrefix prefixes every environment variable. "server.addr" is read from
// EVSETTINGS_SERVER_ADDR.
const EnvPrefix = "EVSETTINGS"

// Config aggregates configuration for the application.
type Config struct {
	DataDir   string           `mapstructure:"data_dir"`
	Server    ServerConfig     `mapstructure:"server"`
	Auth      AuthConfig       `mapstructure:"auth"`
	Resources engine.Resources `mapstructure:"resources"`
	Hardware  HardwareConfig   `mapstructure:"hardware"`
	Logging   logging.Config   `mapstructure:"logging"`
}

type ServerConfig struct {
	// Addr is the TCP address of the line protocol.
	Addr     string `mapstructure:"addr"`
	// HTTPAddr is the management API address. Empty disables the API.
	HTTPAddr string `mapstructure:"http_addr"`
	TLS      bool   `mapstructure:"tls"`
	MaxConns int    `mapstructure:"max_conns"`
}

type AuthConfig struct {
	// Tokens maps a token to the permission names it grants.
	Tokens map[string][]string `mapstructure:"tokens"`
	// Token is what the client sends.
	Token  string              `mapstructure:"token"`
}

type HardwareConfig struct {
	// Nodes maps a FEATURE_* name to the sysfs node that toggles it.
	Nodes    map[string]string `mapstructure:"nodes"`
	Vibrator VibratorConfig    `mapstructure:"vibrator"`
	Gestures []GestureConfig   `mapstructure:"gestures"`
}

// VibratorConfig describes a vibrator whose strength is a sysfs node.
type VibratorConfig struct {
	Node    string `mapstructure:"node"`
	Default int    `mapstructure:"default"`
	Min     int    `mapstructure:"min"`
	Max     int    `mapstructure:"max"`
	Warning int    `mapstructure:"warning"`
}

// GestureConfig describes one touchscreen gesture and its sysfs node.
type GestureConfig struct {
	ID      int    `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Keycode int    `mapstructure:"keycode"`
	Node    string `mapstructure:"node"`
}

// Configured reports whether any hardware control is set up.
func (h HardwareConfig) Configured() bool {
	return len(h.Nodes) > 0 || h.Vibrator.Node != "" || len(h.Gestures) > 0
}

// ServiceOptions returns the vibrator and gesture controls for hardware.NewSysfsService.
func (h HardwareConfig) ServiceOptions() []hardware.Option {
	var opts []hardware.Option
	if v := h.Vibrator; v.Node != "" {
		opts = append(opts, hardware.WithVibrator(hardware.SysfsVibrator{
			Path:    v.Node,
			Default: v.Default,
			Min:     v.Min,
			Max:     v.Max,
			Warning: v.Warning,
		}))
	}
	if len(h.Gestures) > 0 {
		gestures := make(hardware.SysfsGestures, 0, len(h.Gestures))
		for _, g := range h.Gestures {
			gestures = append(gestures, hardware.SysfsGesture{
				Gesture: hardware.Gesture{ID: g.ID, Name: g.Name, Keycode: g.Keycode},
				Path:    g.Node,
			})
		}
		opts = append(opts, hardware.WithGestures(gestures))
	}
	return opts
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		DataDir: "./data",
		Server: ServerConfig{
			Addr:     "127.0.0.1:7001",
			HTTPAddr: "127.0.0.1:7002",
			TLS:      true,
			MaxConns: 100,
		},
		Resources: engine.DefaultResources(),
	}
	cfg.Logging.ApplyDefaults()
	return cfg
}

// Options selects the files Load reads. Empty paths are searched for.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "EVSETTINGS" and the dot character
// in keys is replaced by an underscore.
func Load(opts Options) (*Config, error) {
	// 1. Optional .env, never overriding the real environment
	envFile := opts.EnvFile
	if envFile == "" && exists(".env") {
		envFile = ".env"
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := Default()

	v := viper.New()
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/evsettings")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	// 2. Config file, required only when named explicitly
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.Logging.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the whole configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr must be set")
	}
	if v := c.Hardware.Vibrator; v.Node != "" && v.Min > v.Max {
		return fmt.Errorf("hardware.vibrator: min %d is above max %d", v.Min, v.Max)
	}
	ids := make(map[int]bool, len(c.Hardware.Gestures))
	for _, g := range c.Hardware.Gestures {
		if g.Node == "" {
			return fmt.Errorf("hardware.gestures: gesture %d has no node", g.ID)
		}
		if ids[g.ID] {
			return fmt.Errorf("hardware.gestures: duplicate id %d", g.ID)
		}
		ids[g.ID] = true
	}
	return c.Logging.Validate()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling. Maps and slices
// are left to the config file.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		switch f.Type.Kind() {
		case reflect.Struct:
			bindEnvs(v, val.Field(i).Interface(), key...)
		case reflect.Map, reflect.Slice:
		default:
			_ = v.BindEnv(strings.Join(key, "."))
		}
	}
}
