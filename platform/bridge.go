//  bridge.go
//  Nyx Mobile Bridge
//
//  Platform bridge object bound to Swift/Kotlin with gomobile. The host's
//  OS glue forwards battery, power, app-state, screen and network
//  notifications here; the bridge keeps the last-known values and turns them
//  into boundary calls.

// Package platform mirrors OS notifications into boundary calls.
package platform

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nyx-network/nyx-mobile/bridge"
)

// PowerStateCallback is implemented by the host to observe derived power
// state changes.
type PowerStateCallback interface {
	OnPowerStateChanged(state int)
}

// Boundary is the part of the boundary adapter the platform bridge drives.
type Boundary interface {
	Init() error
	Shutdown() error
	SetPowerState(bridge.PowerState) error
	PushWake() error
	EnterBackground() error
	EnterForeground() error
	SetNetworkType(bridge.NetworkType) error
	SetTelemetryLabel(key string, value *string) error
	Logger() *zap.Logger
}

// Bridge tracks last-known sensor state for one process.
type Bridge struct {
	boundary Boundary
	device   DeviceInfo
	now      func() time.Time

	mu                sync.Mutex
	callback          PowerStateCallback
	monitoring        bool
	telemetry         bool
	batteryMonitoring bool
	appNotifications  bool
	networkMonitoring bool

	sensors      sensors
	networkState int
	derived      bridge.PowerState

	screenSince   time.Time
	screenOffTime time.Duration
	monitorStart  time.Time
}

// Option configures a Bridge built with NewBridge.
type Option func(*Bridge)

// WithDeviceInfo replaces the uname-based device provider.
func WithDeviceInfo(d DeviceInfo) Option {
	return func(b *Bridge) {
		if d != nil {
			b.device = d
		}
	}
}

// WithClock replaces time.Now for the screen-off ratio.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBridge binds a platform bridge to boundary.
func NewBridge(boundary Boundary, opts ...Option) *Bridge {
	b := &Bridge{
		boundary: boundary,
		now:      time.Now,
		sensors: sensors{
			batteryLevel: -1,
			screenOn:     true,
			appState:     AppStateActive,
		},
		networkState: NetworkStateNone,
		derived:      bridge.PowerActive,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.device == nil {
		b.device = HostDevice()
	}
	return b
}

var (
	sharedOnce sync.Once
	shared     *Bridge
)

// Shared returns the process-wide bridge bound to bridge.Default().
func Shared() *Bridge {
	sharedOnce.Do(func() {
		shared = NewBridge(bridge.Default())
	})
	return shared
}

func (b *Bridge) logger() *zap.Logger {
	return b.boundary.Logger().Named("platform")
}

// SetCallback registers the host power-state observer; nil removes it.
func (b *Bridge) SetCallback(cb PowerStateCallback) {
	b.mu.Lock()
	b.callback = cb
	b.mu.Unlock()
}

// InitializeMonitoring initialises the boundary and enables every monitor.
// An already initialised boundary counts as success.
func (b *Bridge) InitializeMonitoring() bool {
	if err := b.boundary.Init(); err != nil && !errors.Is(err, bridge.ErrAlreadyInitialized) {
		b.logger().Error("initialize monitoring", zap.Error(err))
		return false
	}
	b.mu.Lock()
	b.monitoring = true
	b.batteryMonitoring = true
	b.appNotifications = true
	b.networkMonitoring = true
	now := b.now()
	b.monitorStart = now
	b.screenSince = now
	b.screenOffTime = 0
	prev := b.derived
	next := derivePowerState(b.sensors)
	b.derived = next
	cb := b.callback
	b.mu.Unlock()

	// Init resets the boundary to Active, so push the derived state even when
	// the bridge already holds it.
	b.syncPowerState(next)
	if next != prev && cb != nil {
		cb.OnPowerStateChanged(int(next))
	}
	b.logger().Info("platform monitoring started", zap.Stringer("power_state", next))
	return true
}

func (b *Bridge) syncPowerState(state bridge.PowerState) {
	log := b.logger()
	if err := b.boundary.SetPowerState(state); err != nil {
		log.Warn("set power state", zap.Stringer("state", state), zap.Error(err))
	}
	if state == bridge.PowerBackground {
		if err := b.boundary.EnterBackground(); err != nil {
			log.Warn("enter background", zap.Error(err))
		}
		return
	}
	if err := b.boundary.EnterForeground(); err != nil {
		log.Warn("enter foreground", zap.Error(err))
	}
}

// Cleanup stops all monitors and shuts the boundary down.
func (b *Bridge) Cleanup() {
	b.mu.Lock()
	b.monitoring = false
	b.telemetry = false
	b.batteryMonitoring = false
	b.appNotifications = false
	b.networkMonitoring = false
	b.callback = nil
	b.mu.Unlock()
	if err := b.boundary.Shutdown(); err != nil && !errors.Is(err, bridge.ErrNotInitialized) {
		b.logger().Warn("cleanup", zap.Error(err))
	}
}

// StartTelemetryIfAvailable mirrors sensor changes into telemetry labels.
func (b *Bridge) StartTelemetryIfAvailable() {
	b.mu.Lock()
	b.telemetry = true
	b.mu.Unlock()
	b.InjectTelemetryLabels()
	b.publishSensorLabels()
}

// StopTelemetryIfAvailable stops mirroring sensor labels.
func (b *Bridge) StopTelemetryIfAvailable() {
	b.mu.Lock()
	b.telemetry = false
	b.mu.Unlock()
}

// InjectTelemetryLabels sets platform, device_model and os_version.
func (b *Bridge) InjectTelemetryLabels() {
	labels := map[string]string{
		"platform":     b.device.Platform(),
		"device_model": b.device.Model(),
		"os_version":   b.device.OSVersion(),
	}
	for k, v := range labels {
		if v == "" {
			continue
		}
		b.setLabel(k, v)
	}
}

func (b *Bridge) setLabel(key, value string) {
	if err := b.boundary.SetTelemetryLabel(key, &value); err != nil {
		b.logger().Warn("set telemetry label", zap.String("key", key), zap.Error(err))
	}
}

func (b *Bridge) publishSensorLabels() {
	b.mu.Lock()
	if !b.telemetry {
		b.mu.Unlock()
		return
	}
	s := b.sensors
	network := b.networkState
	ratio := b.screenOffRatioLocked()
	b.mu.Unlock()

	if s.batteryLevel >= 0 {
		b.setLabel("battery_level", strconv.Itoa(s.batteryLevel))
	}
	b.setLabel("power_save_mode", strconv.FormatBool(s.lowPower))
	b.setLabel("network_type", networkStateName(network))
	b.setLabel("screen_off_ratio", strconv.FormatFloat(ratio, 'f', 3, 64))
}

// EnableBatteryMonitoring toggles battery notification handling.
func (b *Bridge) EnableBatteryMonitoring(enabled bool) {
	b.mu.Lock()
	b.batteryMonitoring = enabled
	b.mu.Unlock()
}

// RegisterForAppStateNotifications enables app-state handling.
func (b *Bridge) RegisterForAppStateNotifications() {
	b.mu.Lock()
	b.appNotifications = true
	b.mu.Unlock()
}

// UnregisterFromAppStateNotifications disables app-state handling.
func (b *Bridge) UnregisterFromAppStateNotifications() {
	b.mu.Lock()
	b.appNotifications = false
	b.mu.Unlock()
}

// StartNetworkMonitoring enables network-state handling.
func (b *Bridge) StartNetworkMonitoring() {
	b.mu.Lock()
	b.networkMonitoring = true
	b.mu.Unlock()
}

// StopNetworkMonitoring disables network-state handling.
func (b *Bridge) StopNetworkMonitoring() {
	b.mu.Lock()
	b.networkMonitoring = false
	b.mu.Unlock()
}

func (b *Bridge) BatteryLevel() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sensors.batteryLevel
}

func (b *Bridge) IsCharging() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sensors.charging
}

func (b *Bridge) IsBatteryMonitoringEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.batteryMonitoring
}

func (b *Bridge) IsLowPowerModeEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sensors.lowPower
}

func (b *Bridge) IsScreenOn() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sensors.screenOn
}

func (b *Bridge) AppState() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sensors.appState
}

func (b *Bridge) NetworkState() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.networkState
}

// PowerState returns the last derived power state.
func (b *Bridge) PowerState() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.derived)
}

// ScreenOffRatio is the fraction of monitored time spent with the screen
// off, in [0,1]. It is 0 before monitoring starts.
func (b *Bridge) ScreenOffRatio() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.screenOffRatioLocked()
}

func (b *Bridge) screenOffRatioLocked() float64 {
	if b.monitorStart.IsZero() {
		return 0
	}
	now := b.now()
	total := now.Sub(b.monitorStart)
	if total <= 0 {
		return 0
	}
	off := b.screenOffTime
	if !b.sensors.screenOn {
		off += now.Sub(b.screenSince)
	}
	ratio := float64(off) / float64(total)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// OnBatteryLevelChanged records a battery percentage (0..100).
func (b *Bridge) OnBatteryLevelChanged(level int) {
	if level < 0 || level > 100 {
		b.logger().Debug("ignoring battery level", zap.Int("level", level))
		return
	}
	b.update(func() bool {
		if !b.batteryMonitoring {
			return false
		}
		b.sensors.batteryLevel = level
		return true
	})
}

// OnChargingStateChanged records whether the device is charging.
func (b *Bridge) OnChargingStateChanged(charging bool) {
	b.update(func() bool {
		if !b.batteryMonitoring {
			return false
		}
		b.sensors.charging = charging
		return true
	})
}

// OnLowPowerModeChanged records the OS low-power / power-save flag.
func (b *Bridge) OnLowPowerModeChanged(enabled bool) {
	b.update(func() bool {
		if !b.monitoring {
			return false
		}
		b.sensors.lowPower = enabled
		return true
	})
}

// OnAppStateChanged records the app lifecycle state.
func (b *Bridge) OnAppStateChanged(state int) {
	if state < AppStateActive || state > AppStateInactive {
		b.logger().Debug("ignoring app state", zap.Int("state", state))
		return
	}
	b.update(func() bool {
		if !b.appNotifications {
			return false
		}
		b.sensors.appState = state
		return true
	})
}

// OnAppResume is the Android onResume hook.
func (b *Bridge) OnAppResume() { b.OnAppStateChanged(AppStateActive) }

// OnAppPause is the Android onPause hook.
func (b *Bridge) OnAppPause() { b.OnAppStateChanged(AppStateBackground) }

// OnScreenStateChanged records screen interactivity.
func (b *Bridge) OnScreenStateChanged(on bool) {
	b.update(func() bool {
		if !b.monitoring || b.sensors.screenOn == on {
			return false
		}
		now := b.now()
		if !b.sensors.screenOn && !b.screenSince.IsZero() {
			b.screenOffTime += now.Sub(b.screenSince)
		}
		b.screenSince = now
		b.sensors.screenOn = on
		return true
	})
}

// OnNetworkStateChanged records the OS network path and forwards it to the
// boundary.
func (b *Bridge) OnNetworkStateChanged(state int) {
	nt, ok := networkTypeFor(state)
	if !ok {
		b.logger().Debug("ignoring network state", zap.Int("state", state))
		return
	}
	b.mu.Lock()
	if !b.networkMonitoring {
		b.mu.Unlock()
		return
	}
	b.networkState = state
	b.mu.Unlock()

	if err := b.boundary.SetNetworkType(nt); err != nil {
		b.logger().Warn("forward network state", zap.Int("state", state), zap.Error(err))
	}
	b.publishSensorLabels()
}

// update applies mutate under the lock and, when it reports a change,
// re-derives the power state and mirrors telemetry.
func (b *Bridge) update(mutate func() bool) {
	b.mu.Lock()
	if !mutate() {
		b.mu.Unlock()
		return
	}
	prev := b.derived
	next := derivePowerState(b.sensors)
	b.derived = next
	cb := b.callback
	b.mu.Unlock()

	if next != prev {
		b.applyPowerState(prev, next, cb)
	}
	b.publishSensorLabels()
}

func (b *Bridge) applyPowerState(prev, next bridge.PowerState, cb PowerStateCallback) {
	log := b.logger()
	if err := b.boundary.SetPowerState(next); err != nil {
		log.Warn("set power state", zap.Stringer("state", next), zap.Error(err))
	}
	switch next {
	case bridge.PowerActive:
		if err := b.boundary.PushWake(); err != nil {
			log.Warn("push wake", zap.Error(err))
		}
		if err := b.boundary.EnterForeground(); err != nil {
			log.Warn("enter foreground", zap.Error(err))
		}
	case bridge.PowerBackground:
		if err := b.boundary.EnterBackground(); err != nil {
			log.Warn("enter background", zap.Error(err))
		}
	}
	log.Info("derived power state changed", zap.Stringer("from", prev), zap.Stringer("to", next))
	if cb != nil {
		cb.OnPowerStateChanged(int(next))
	}
}
