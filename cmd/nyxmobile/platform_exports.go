package main

/*
#include <stdbool.h>
*/
import "C"

// Thin entry points for ObjC/Java shims that forward OS notifications
// without binding the gomobile framework.

//export nyx_mobile_on_battery_level_changed
func nyx_mobile_on_battery_level_changed(level C.int) {
	guard("platform.battery", func() error { pb().OnBatteryLevelChanged(int(level)); return nil })
}

//export nyx_mobile_on_charging_state_changed
func nyx_mobile_on_charging_state_changed(charging C.int) {
	guard("platform.charging", func() error { pb().OnChargingStateChanged(charging != 0); return nil })
}

//export nyx_mobile_on_low_power_mode_changed
func nyx_mobile_on_low_power_mode_changed(enabled C.int) {
	guard("platform.low_power", func() error { pb().OnLowPowerModeChanged(enabled != 0); return nil })
}

//export nyx_mobile_on_app_state_changed
func nyx_mobile_on_app_state_changed(state C.int) {
	guard("platform.app_state", func() error { pb().OnAppStateChanged(int(state)); return nil })
}

//export nyx_mobile_on_network_state_changed
func nyx_mobile_on_network_state_changed(state C.int) {
	guard("platform.network", func() error { pb().OnNetworkStateChanged(int(state)); return nil })
}

//export nyx_mobile_on_screen_state_changed
func nyx_mobile_on_screen_state_changed(on C.int) {
	guard("platform.screen", func() error { pb().OnScreenStateChanged(on != 0); return nil })
}

//export nyx_mobile_initialize_monitoring
func nyx_mobile_initialize_monitoring() C.bool {
	var ok bool
	guard("platform.init", func() error { ok = pb().InitializeMonitoring(); return nil })
	return C.bool(ok)
}

//export nyx_mobile_cleanup_monitoring
func nyx_mobile_cleanup_monitoring() {
	guard("platform.cleanup", func() error { pb().Cleanup(); return nil })
}

//export nyx_mobile_get_battery_level
func nyx_mobile_get_battery_level() C.int {
	return C.int(guardInt("platform.battery", -1, func() int32 { return int32(pb().BatteryLevel()) }))
}

//export nyx_mobile_is_screen_on
func nyx_mobile_is_screen_on() C.int {
	return C.int(guardInt("platform.screen", -1, func() int32 { return boolCode(pb().IsScreenOn()) }))
}

//export nyx_mobile_is_low_power_mode
func nyx_mobile_is_low_power_mode() C.int {
	return C.int(guardInt("platform.low_power", -1, func() int32 { return boolCode(pb().IsLowPowerModeEnabled()) }))
}

//export nyx_mobile_get_app_state
func nyx_mobile_get_app_state() C.int {
	return C.int(guardInt("platform.app_state", -1, func() int32 { return int32(pb().AppState()) }))
}

func boolCode(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
