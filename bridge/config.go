//  config.go
//  Nyx Mobile Bridge
//
//  Runtime configuration exchanged with the host as JSON through
//  nyx_mobile_create_client and nyx_mobile_update_config.

package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MobileConfig captures the tunables an embedding application may change at
// runtime. Field names follow the JSON keys used by the mobile shims.
type MobileConfig struct {
	// MaxConnections caps concurrently open connections.
	MaxConnections uint32 `json:"max_connections" yaml:"max_connections" validate:"min=1,max=1024"`
	// BackgroundKeepalive keeps sessions alive while the app is backgrounded.
	// When false, new connections are refused in background mode.
	BackgroundKeepalive bool `json:"background_keepalive" yaml:"background_keepalive"`
	// BatteryOptimization suspends periodic keepalives in Critical power.
	BatteryOptimization bool `json:"battery_optimization" yaml:"battery_optimization"`
	// CellularDataUsage allows connecting over cellular networks.
	CellularDataUsage bool `json:"cellular_data_usage" yaml:"cellular_data_usage"`
	// BiometricAuthRequired is carried for the host; this layer has no
	// biometric prompt of its own.
	BiometricAuthRequired bool `json:"biometric_auth_required" yaml:"biometric_auth_required"`
	// AutoReconnect is carried for the engine.
	AutoReconnect bool `json:"auto_reconnect" yaml:"auto_reconnect"`
	// ConnectionTimeoutMS bounds each dial.
	ConnectionTimeoutMS uint64 `json:"connection_timeout_ms" yaml:"connection_timeout_ms" validate:"min=100,max=600000"`
	// BackgroundTaskIntervalMS is the keepalive period in background mode.
	BackgroundTaskIntervalMS uint64 `json:"background_task_interval_ms" yaml:"background_task_interval_ms" validate:"min=100,max=86400000"`
}

// DefaultMobileConfig returns the configuration applied by Init.
func DefaultMobileConfig() MobileConfig {
	return MobileConfig{
		MaxConnections:           5,
		BackgroundKeepalive:      true,
		BatteryOptimization:      true,
		CellularDataUsage:        true,
		BiometricAuthRequired:    false,
		AutoReconnect:            true,
		ConnectionTimeoutMS:      30000,
		BackgroundTaskIntervalMS: 60000,
	}
}

// ConnectionTimeout returns the dial timeout as a duration.
func (c MobileConfig) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutMS) * time.Millisecond
}

// BackgroundTaskInterval returns the keepalive period as a duration.
func (c MobileConfig) BackgroundTaskInterval() time.Duration {
	return time.Duration(c.BackgroundTaskIntervalMS) * time.Millisecond
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct-tag constraints.
func (c MobileConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// ParseMobileConfig decodes data over base, so keys absent from the JSON keep
// their base values, then validates the result.
func ParseMobileConfig(base MobileConfig, data string) (MobileConfig, error) {
	cfg := base
	if strings.TrimSpace(data) == "" {
		return base, errors.New("empty configuration")
	}
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return base, fmt.Errorf("invalid configuration JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", jsonFieldName(fe.StructField()), fe.Tag()+"="+fe.Param(), fe.Value()))
	}
	return errors.New("invalid configuration: " + strings.Join(msgs, "; "))
}

func jsonFieldName(field string) string {
	switch field {
	case "MaxConnections":
		return "max_connections"
	case "ConnectionTimeoutMS":
		return "connection_timeout_ms"
	case "BackgroundTaskIntervalMS":
		return "background_task_interval_ms"
	}
	return field
}
