package bridge

import "fmt"

// ConnectionID is the opaque handle returned by Connect. Zero is never issued.
type ConnectionID uint64

// PowerState is the unified power state communicated as a uint32 code.
type PowerState uint32

const (
	PowerActive PowerState = iota
	PowerBackground
	PowerInactive
	PowerCritical
	PowerHibernating
	PowerNetworkConstrained
)

var powerNames = [...]string{"active", "background", "inactive", "critical", "hibernating", "network_constrained"}

func (p PowerState) String() string {
	if int(p) < len(powerNames) {
		return powerNames[p]
	}
	return fmt.Sprintf("power(%d)", uint32(p))
}

// Settable reports whether the boundary accepts p from the host. Hibernating
// and NetworkConstrained are engine-internal.
func (p PowerState) Settable() bool {
	return p <= PowerCritical
}

// ParsePowerState resolves a power state by name or numeric code.
func ParsePowerState(v string) (PowerState, bool) {
	for i, name := range powerNames {
		if name == v {
			return PowerState(i), true
		}
	}
	var n uint32
	if _, err := fmt.Sscanf(v, "%d", &n); err == nil && int(n) < len(powerNames) {
		return PowerState(n), true
	}
	return 0, false
}

// NetworkType is the network optimisation hint set by the host.
type NetworkType int32

const (
	NetworkUnknown NetworkType = iota
	NetworkWifi
	NetworkCellular
	NetworkEthernet
	NetworkBluetooth
	NetworkVPN
)

var networkNames = [...]string{"unknown", "wifi", "cellular", "ethernet", "bluetooth", "vpn"}

// Valid reports whether n is a declared network type.
func (n NetworkType) Valid() bool {
	return n >= NetworkUnknown && n <= NetworkVPN
}

func (n NetworkType) String() string {
	if n.Valid() {
		return networkNames[n]
	}
	return fmt.Sprintf("network(%d)", int32(n))
}

// ParseNetworkType resolves a network type by name or numeric code.
func ParseNetworkType(v string) (NetworkType, bool) {
	for i, name := range networkNames {
		if name == v {
			return NetworkType(i), true
		}
	}
	var n int32
	if _, err := fmt.Sscanf(v, "%d", &n); err == nil && NetworkType(n).Valid() {
		return NetworkType(n), true
	}
	return 0, false
}

// ConnectionQuality grades a connection, best first.
type ConnectionQuality uint32

const (
	QualityExcellent ConnectionQuality = iota
	QualityGood
	QualityFair
	QualityPoor
	QualityDisconnected
)

var qualityNames = [...]string{"excellent", "good", "fair", "poor", "disconnected"}

func (q ConnectionQuality) String() string {
	if int(q) < len(qualityNames) {
		return qualityNames[q]
	}
	return fmt.Sprintf("quality(%d)", uint32(q))
}

func worseQuality(a, b ConnectionQuality) ConnectionQuality {
	if b > a {
		return b
	}
	return a
}

// ConnStats is the per-connection snapshot behind
// nyx_mobile_get_connection_stats.
type ConnStats struct {
	ID            ConnectionID      `json:"id" yaml:"id"`
	Endpoint      string            `json:"endpoint" yaml:"endpoint"`
	BytesSent     uint64            `json:"bytes_sent" yaml:"bytes_sent"`
	BytesReceived uint64            `json:"bytes_received" yaml:"bytes_received"`
	Quality       ConnectionQuality `json:"quality" yaml:"quality"`
	Pending       int               `json:"pending" yaml:"pending"`
}

// GlobalStats aggregates counters since the last Init.
type GlobalStats struct {
	TotalConnections     uint64 `json:"total_connections" yaml:"total_connections"`
	SuccessfulHandshakes uint64 `json:"successful_handshakes" yaml:"successful_handshakes"`
	ConnectionFailures   uint64 `json:"connection_failures" yaml:"connection_failures"`
	NetworkChanges       uint64 `json:"network_changes" yaml:"network_changes"`
	ActiveConnections    int    `json:"active_connections" yaml:"active_connections"`
	BytesSent            uint64 `json:"bytes_sent" yaml:"bytes_sent"`
	BytesReceived        uint64 `json:"bytes_received" yaml:"bytes_received"`
	KeepalivePasses      uint64 `json:"keepalive_passes" yaml:"keepalive_passes"`
	WakeCount            uint32 `json:"wake_count" yaml:"wake_count"`
	ResumeCount          uint32 `json:"resume_count" yaml:"resume_count"`
}

// Snapshot is the runtime status reported to diagnostics.
type Snapshot struct {
	Version     string            `json:"version" yaml:"version"`
	Initialized bool              `json:"initialized" yaml:"initialized"`
	SessionID   string            `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	ClientID    string            `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	PowerState  string            `json:"power_state" yaml:"power_state"`
	NetworkType string            `json:"network_type" yaml:"network_type"`
	Quality     string            `json:"quality" yaml:"quality"`
	Background  bool              `json:"background" yaml:"background"`
	LogLevel    string            `json:"log_level" yaml:"log_level"`
	LastError   string            `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	Config      MobileConfig      `json:"config" yaml:"config"`
	Labels      map[string]string `json:"labels" yaml:"labels"`
}
