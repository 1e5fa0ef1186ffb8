package platform

import (
	"runtime"
)

// DeviceInfo supplies the static labels injected by InjectTelemetryLabels.
// Hosts may implement it in Swift/Kotlin to report UIDevice or Build values.
type DeviceInfo interface {
	Platform() string
	Model() string
	OSVersion() string
}

type hostDevice struct {
	model   string
	release string
}

func (d hostDevice) Platform() string {
	switch runtime.GOOS {
	case "ios", "darwin":
		return "ios"
	case "android":
		return "android"
	}
	return runtime.GOOS
}

func (d hostDevice) Model() string     { return d.model }
func (d hostDevice) OSVersion() string { return d.release }

// HostDevice reports the running kernel as seen by the process.
func HostDevice() DeviceInfo {
	return probeHostDevice()
}
