// Package config loads nyxprobe.yaml for the probe CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ProbeConfig is the probe CLI configuration.
type ProbeConfig struct {
	// LogLevel is applied to the boundary after init.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"oneof=error warn info debug trace"`
	Diag     DiagConfig   `yaml:"diag" mapstructure:"diag"`
	Engine   EngineConfig `yaml:"engine" mapstructure:"engine"`
	// Mobile is passed as JSON to CreateClient; keys follow MobileConfig.
	Mobile map[string]any `yaml:"mobile" mapstructure:"mobile"`
	// Labels are set as telemetry labels at startup.
	Labels map[string]string `yaml:"labels" mapstructure:"labels"`
}

// DiagConfig configures the diagnostics HTTP server.
type DiagConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr" validate:"required,hostname_port"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"min=0"`
}

// EngineConfig tunes the in-memory queue engine.
type EngineConfig struct {
	QueueDepth int  `yaml:"queue_depth" mapstructure:"queue_depth" validate:"min=1,max=65536"`
	Loopback   bool `yaml:"loopback" mapstructure:"loopback"`
}

const (
	envPrefix = "NYXPROBE"
	fileBase  = "nyxprobe"
)

// New returns a viper instance reading configFile, or nyxprobe.yaml/.yml from
// the working directory or $HOME/.nyxprobe, with NYXPROBE_ env overrides.
func New(configFile string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		v.SetConfigFile(found)
	} else {
		v.SetConfigName(fileBase)
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"log_level", "diag.addr", "diag.read_timeout", "diag.shutdown_timeout", "engine.queue_depth", "engine.loopback"} {
		_ = v.BindEnv(key)
	}
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("diag.addr", "127.0.0.1:7420")
	v.SetDefault("diag.read_timeout", 10*time.Second)
	v.SetDefault("diag.shutdown_timeout", 5*time.Second)
	v.SetDefault("engine.queue_depth", 128)
	v.SetDefault("engine.loopback", false)
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	return findConfigFileInPaths([]string{".", filepath.Join(home, ".nyxprobe")})
}

func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, fileBase+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// Load reads and validates the configuration. A missing config file is not
// an error.
func Load(v *viper.Viper) (*ProbeConfig, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	var cfg ProbeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks struct tags.
func (c *ProbeConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed on %q", fe.Namespace(), fe.Tag()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return nil
}

// LogLevelCode maps LogLevel onto the boundary's numeric codes.
func (c *ProbeConfig) LogLevelCode() int {
	switch c.LogLevel {
	case "error":
		return 0
	case "warn":
		return 1
	case "debug":
		return 3
	case "trace":
		return 4
	}
	return 2
}

// MobileJSON renders Mobile for CreateClient, or "" when unset.
func (c *ProbeConfig) MobileJSON() (string, error) {
	if len(c.Mobile) == 0 {
		return "", nil
	}
	b, err := json.Marshal(c.Mobile)
	if err != nil {
		return "", fmt.Errorf("encode mobile config: %w", err)
	}
	return string(b), nil
}
