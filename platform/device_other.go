//go:build !(linux || darwin || ios || android)

package platform

import "runtime"

func probeHostDevice() DeviceInfo {
	return hostDevice{model: runtime.GOARCH, release: "unknown"}
}
