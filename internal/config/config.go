package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds launcher configuration loaded from rc files and environment.
type Config struct {
	// Global settings
	Quiet bool `mapstructure:"quiet"`
	Debug bool `mapstructure:"debug"`

	// Interpreter used for pre-flight syntax checks
	Interpreter InterpreterConfig `mapstructure:"interpreter"`

	// Default values for launch options
	Defaults DefaultsConfig `mapstructure:"defaults"`

	// Path to the engine init script run before the main loop
	InitScript string `mapstructure:"init_script"`
}

// InterpreterConfig describes the host interpreter invoked for syntax-only
// validation of the target before every debug run.
type InterpreterConfig struct {
	// CheckCommand is the argv prefix for a syntax-only check; the target
	// path is appended as the final argument.
	CheckCommand []string `mapstructure:"check_command"`
}

// DefaultsConfig holds default values for launch flags.
type DefaultsConfig struct {
	NoQuit     bool     `mapstructure:"no_quit"`
	NoStop     bool     `mapstructure:"no_stop"`
	PostMortem bool     `mapstructure:"post_mortem"`
	Trace      bool     `mapstructure:"trace"`
	Include    []string `mapstructure:"include"`
	Require    []string `mapstructure:"require"`
}

// Default returns a Config with default values.
func Default() *Config {
	cfg := &Config{
		Quiet: false,
		Debug: false,
		Interpreter: InterpreterConfig{
			CheckCommand: []string{"luac", "-p"},
		},
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.InitScript = filepath.Join(home, ".ldbrc.lua")
	}
	return cfg
}

// Load loads configuration from rc files and environment. Callers fall back
// to Default() when it fails: a broken per-user rc file must never prevent a
// debug session from starting.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".ldbrc")
	v.SetConfigType("yaml")

	// Config paths, lowest precedence first
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "ldb"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("LDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.BindEnv("quiet", "LDB_QUIET")
	v.BindEnv("debug", "LDB_DEBUG")
	v.BindEnv("init_script", "LDB_INIT_SCRIPT")

	// Set defaults
	cfg := Default()
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("debug", cfg.Debug)
	v.SetDefault("interpreter.check_command", cfg.Interpreter.CheckCommand)
	v.SetDefault("init_script", cfg.InitScript)

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found; use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
