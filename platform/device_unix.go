//go:build linux || darwin || ios || android

package platform

import (
	"golang.org/x/sys/unix"
)

func probeHostDevice() DeviceInfo {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return hostDevice{model: "unknown", release: "unknown"}
	}
	return hostDevice{
		model:   unix.ByteSliceToString(u.Machine[:]),
		release: unix.ByteSliceToString(u.Release[:]),
	}
}
