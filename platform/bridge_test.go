package platform

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nyx-network/nyx-mobile/bridge"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type discardSink struct{}

func (discardSink) Log(string, string) {}

type fakeDevice struct{}

func (fakeDevice) Platform() string  { return "ios" }
func (fakeDevice) Model() string     { return "iPhone15,2" }
func (fakeDevice) OSVersion() string { return "17.4" }

type callbackRecorder struct {
	mu     sync.Mutex
	states []int
}

func (c *callbackRecorder) OnPowerStateChanged(state int) {
	c.mu.Lock()
	c.states = append(c.states, state)
	c.mu.Unlock()
}

func (c *callbackRecorder) got() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.states...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBridge(t *testing.T) (*Bridge, *bridge.Runtime, *fakeClock) {
	t.Helper()
	rt := bridge.New(bridge.WithLogSink(discardSink{}))
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	b := NewBridge(rt, WithDeviceInfo(fakeDevice{}), WithClock(clock.now))
	t.Cleanup(b.Cleanup)
	require.True(t, b.InitializeMonitoring())
	return b, rt, clock
}

func TestInitializeMonitoringTwice(t *testing.T) {
	b, rt, _ := newTestBridge(t)
	assert.True(t, b.InitializeMonitoring())
	assert.True(t, rt.Initialized())

	b.Cleanup()
	assert.False(t, rt.Initialized())
	b.Cleanup()
}

func TestDefaults(t *testing.T) {
	b := NewBridge(bridge.New(bridge.WithLogSink(discardSink{})), WithDeviceInfo(fakeDevice{}))
	assert.Equal(t, -1, b.BatteryLevel())
	assert.True(t, b.IsScreenOn())
	assert.False(t, b.IsLowPowerModeEnabled())
	assert.Equal(t, AppStateActive, b.AppState())
	assert.Equal(t, NetworkStateNone, b.NetworkState())
	assert.Zero(t, b.ScreenOffRatio())
	assert.False(t, b.IsBatteryMonitoringEnabled())
}

func TestLowBatteryIsCritical(t *testing.T) {
	b, rt, _ := newTestBridge(t)
	cb := &callbackRecorder{}
	b.SetCallback(cb)

	b.OnBatteryLevelChanged(50)
	assert.Equal(t, bridge.PowerActive, rt.PowerState())

	b.OnBatteryLevelChanged(10)
	assert.Equal(t, bridge.PowerCritical, rt.PowerState())
	assert.Equal(t, PowerStateCritical, b.PowerState())

	b.OnChargingStateChanged(true)
	assert.Equal(t, bridge.PowerActive, rt.PowerState())
	assert.Equal(t, []int{PowerStateCritical, PowerStateActive}, cb.got())
}

func TestBatteryMonitoringDisabledIgnoresUpdates(t *testing.T) {
	b, rt, _ := newTestBridge(t)
	b.EnableBatteryMonitoring(false)
	b.OnBatteryLevelChanged(5)
	assert.Equal(t, -1, b.BatteryLevel())
	assert.Equal(t, bridge.PowerActive, rt.PowerState())

	b.OnBatteryLevelChanged(500)
	assert.Equal(t, -1, b.BatteryLevel())
}

func TestLowPowerModeIsCritical(t *testing.T) {
	b, rt, _ := newTestBridge(t)
	b.OnLowPowerModeChanged(true)
	assert.True(t, b.IsLowPowerModeEnabled())
	assert.Equal(t, bridge.PowerCritical, rt.PowerState())

	b.OnLowPowerModeChanged(false)
	assert.Equal(t, bridge.PowerActive, rt.PowerState())
}

func TestAppStateDrivesBackground(t *testing.T) {
	b, rt, _ := newTestBridge(t)

	b.OnAppPause()
	assert.Equal(t, bridge.PowerBackground, rt.PowerState())
	assert.True(t, rt.Background())

	b.OnAppStateChanged(AppStateInactive)
	assert.Equal(t, bridge.PowerInactive, rt.PowerState())

	b.OnAppResume()
	assert.Equal(t, bridge.PowerActive, rt.PowerState())
	assert.False(t, rt.Background())
	assert.Equal(t, uint32(1), rt.WakeCount(), "becoming active pushes a wake")

	b.OnAppStateChanged(7)
	assert.Equal(t, AppStateActive, b.AppState())
}

func TestUnregisteredAppStateIgnored(t *testing.T) {
	b, rt, _ := newTestBridge(t)
	b.UnregisterFromAppStateNotifications()
	b.OnAppPause()
	assert.Equal(t, AppStateActive, b.AppState())
	assert.Equal(t, bridge.PowerActive, rt.PowerState())

	b.RegisterForAppStateNotifications()
	b.OnAppPause()
	assert.Equal(t, AppStateBackground, b.AppState())
}

func TestScreenOffIsInactive(t *testing.T) {
	b, rt, clock := newTestBridge(t)

	clock.advance(30 * time.Second)
	b.OnScreenStateChanged(false)
	assert.False(t, b.IsScreenOn())
	assert.Equal(t, bridge.PowerInactive, rt.PowerState())

	clock.advance(10 * time.Second)
	assert.InDelta(t, 0.25, b.ScreenOffRatio(), 1e-9)

	b.OnScreenStateChanged(true)
	clock.advance(40 * time.Second)
	assert.InDelta(t, 0.125, b.ScreenOffRatio(), 1e-9)
	assert.Equal(t, bridge.PowerActive, rt.PowerState())
}

func TestNetworkStateMapping(t *testing.T) {
	b, rt, _ := newTestBridge(t)
	cases := map[int]bridge.NetworkType{
		NetworkStateWiFi:     bridge.NetworkWifi,
		NetworkStateCellular: bridge.NetworkCellular,
		NetworkStateEthernet: bridge.NetworkEthernet,
		NetworkStateNone:     bridge.NetworkUnknown,
	}
	for state, want := range cases {
		b.OnNetworkStateChanged(state)
		got, err := rt.NetworkType()
		require.NoError(t, err)
		assert.Equal(t, want, got, "state %d", state)
		assert.Equal(t, state, b.NetworkState())
	}

	b.StopNetworkMonitoring()
	b.OnNetworkStateChanged(NetworkStateWiFi)
	assert.Equal(t, NetworkStateNone, b.NetworkState())

	b.StartNetworkMonitoring()
	b.OnNetworkStateChanged(9)
	assert.Equal(t, NetworkStateNone, b.NetworkState())
}

func TestTelemetryLabels(t *testing.T) {
	b, rt, _ := newTestBridge(t)
	require.NoError(t, rt.ClearTelemetryLabels())

	b.OnBatteryLevelChanged(80)
	assert.Empty(t, rt.TelemetryLabels(), "telemetry not started")

	b.StartTelemetryIfAvailable()
	labels := rt.TelemetryLabels()
	assert.Equal(t, "ios", labels["platform"])
	assert.Equal(t, "iPhone15,2", labels["device_model"])
	assert.Equal(t, "17.4", labels["os_version"])
	assert.Equal(t, "80", labels["battery_level"])
	assert.Equal(t, "false", labels["power_save_mode"])
	assert.Equal(t, "none", labels["network_type"])
	assert.Equal(t, "0.000", labels["screen_off_ratio"])

	b.OnNetworkStateChanged(NetworkStateCellular)
	assert.Equal(t, "cellular", rt.TelemetryLabels()["network_type"])

	b.StopTelemetryIfAvailable()
	b.OnBatteryLevelChanged(70)
	assert.Equal(t, "80", rt.TelemetryLabels()["battery_level"])
}

func TestDerivePowerState(t *testing.T) {
	cases := []struct {
		name string
		in   sensors
		want bridge.PowerState
	}{
		{"idle", sensors{batteryLevel: -1, screenOn: true}, bridge.PowerActive},
		{"unknown battery", sensors{batteryLevel: -1, screenOn: true, appState: AppStateBackground}, bridge.PowerBackground},
		{"low discharging", sensors{batteryLevel: 14, screenOn: true}, bridge.PowerCritical},
		{"threshold", sensors{batteryLevel: 15, screenOn: true}, bridge.PowerActive},
		{"low charging", sensors{batteryLevel: 5, charging: true, screenOn: true}, bridge.PowerActive},
		{"low power mode", sensors{batteryLevel: 90, lowPower: true, screenOn: true}, bridge.PowerCritical},
		{"screen off", sensors{batteryLevel: 90}, bridge.PowerInactive},
		{"inactive", sensors{batteryLevel: 90, screenOn: true, appState: AppStateInactive}, bridge.PowerInactive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, derivePowerState(tc.in))
		})
	}
}

func TestHostDevice(t *testing.T) {
	d := HostDevice()
	assert.NotEmpty(t, d.Platform())
	assert.NotEmpty(t, d.Model())
	assert.NotEmpty(t, d.OSVersion())
}

func TestMonitoringResyncsAcrossInitCycles(t *testing.T) {
	b, rt, _ := newTestBridge(t)

	b.OnAppPause()
	require.Equal(t, bridge.PowerBackground, rt.PowerState())

	for cycle := 0; cycle < 2; cycle++ {
		b.Cleanup()
		require.True(t, b.InitializeMonitoring())
		assert.Equal(t, bridge.PowerBackground, rt.PowerState(), "cycle %d", cycle)
		assert.True(t, rt.Background(), "cycle %d", cycle)
		assert.Equal(t, PowerStateBackground, b.PowerState())
	}

	b.OnAppResume()
	assert.Equal(t, bridge.PowerActive, rt.PowerState())
	b.Cleanup()
	require.True(t, b.InitializeMonitoring())
	b.OnAppPause()
	assert.Equal(t, bridge.PowerBackground, rt.PowerState())
	assert.True(t, rt.Background())
}

func TestHandlersIgnoredBeforeMonitoring(t *testing.T) {
	rt := bridge.New(bridge.WithLogSink(discardSink{}))
	b := NewBridge(rt, WithDeviceInfo(fakeDevice{}))
	t.Cleanup(b.Cleanup)

	b.OnLowPowerModeChanged(true)
	b.OnScreenStateChanged(false)
	assert.False(t, b.IsLowPowerModeEnabled())
	assert.True(t, b.IsScreenOn())
	assert.Equal(t, PowerStateActive, b.PowerState())

	require.True(t, b.InitializeMonitoring())
	assert.Equal(t, bridge.PowerActive, rt.PowerState())
	b.OnLowPowerModeChanged(true)
	assert.Equal(t, bridge.PowerCritical, rt.PowerState())
	assert.Equal(t, PowerStateCritical, b.PowerState())
}
