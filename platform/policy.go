package platform

import (
	"github.com/nyx-network/nyx-mobile/bridge"
)

// App states reported by the OS glue.
const (
	AppStateActive     = 0
	AppStateBackground = 1
	AppStateInactive   = 2
)

// Network states reported by the OS glue.
const (
	NetworkStateWiFi     = 0
	NetworkStateCellular = 1
	NetworkStateEthernet = 2
	NetworkStateNone     = 3
)

// Power states passed to PowerStateCallback; identical to the boundary
// codes.
const (
	PowerStateActive     = int(bridge.PowerActive)
	PowerStateBackground = int(bridge.PowerBackground)
	PowerStateInactive   = int(bridge.PowerInactive)
	PowerStateCritical   = int(bridge.PowerCritical)
)

// CriticalBatteryLevel is the percentage below which a discharging device is
// treated as Critical.
const CriticalBatteryLevel = 15

// sensors is the last-known OS state the policy is derived from.
type sensors struct {
	batteryLevel int
	charging     bool
	lowPower     bool
	screenOn     bool
	appState     int
}

// derivePowerState maps sensor state onto a boundary power state.
func derivePowerState(s sensors) bridge.PowerState {
	if s.lowPower {
		return bridge.PowerCritical
	}
	if s.batteryLevel >= 0 && s.batteryLevel < CriticalBatteryLevel && !s.charging {
		return bridge.PowerCritical
	}
	switch s.appState {
	case AppStateBackground:
		return bridge.PowerBackground
	case AppStateInactive:
		return bridge.PowerInactive
	}
	if !s.screenOn {
		return bridge.PowerInactive
	}
	return bridge.PowerActive
}

// networkTypeFor maps an OS network state to the boundary network type.
func networkTypeFor(state int) (bridge.NetworkType, bool) {
	switch state {
	case NetworkStateWiFi:
		return bridge.NetworkWifi, true
	case NetworkStateCellular:
		return bridge.NetworkCellular, true
	case NetworkStateEthernet:
		return bridge.NetworkEthernet, true
	case NetworkStateNone:
		return bridge.NetworkUnknown, true
	}
	return bridge.NetworkUnknown, false
}

func networkStateName(state int) string {
	switch state {
	case NetworkStateWiFi:
		return "wifi"
	case NetworkStateCellular:
		return "cellular"
	case NetworkStateEthernet:
		return "ethernet"
	}
	return "none"
}
