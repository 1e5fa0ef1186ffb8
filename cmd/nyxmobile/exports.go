package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"unsafe"

	"github.com/nyx-network/nyx-mobile/bridge"
)

//export nyx_mobile_init
func nyx_mobile_init() C.int {
	return C.int(guard("init", rt().Init))
}

//export nyx_mobile_shutdown
func nyx_mobile_shutdown() C.int {
	return C.int(guard("shutdown", rt().Shutdown))
}

//export nyx_mobile_set_log_level
func nyx_mobile_set_log_level(level C.int) C.int {
	return C.int(guard("log.level", func() error { return rt().SetLogLevel(int(level)) }))
}

//export nyx_mobile_set____log_level
func nyx_mobile_set____log_level(level C.int) C.int {
	return nyx_mobile_set_log_level(level)
}

//export nyx_mobile_create_client
func nyx_mobile_create_client(configJSON *C.char) C.int {
	return C.int(guard("client.create", func() error {
		if err := rt().CheckInit("client.create"); err != nil {
			return err
		}
		if configJSON == nil {
			return rt().RejectArgument("client.create", "config_json is null")
		}
		return rt().CreateClient(C.GoString(configJSON))
	}))
}

//export nyx_mobile_connect
func nyx_mobile_connect(endpoint *C.char, connectionIDOut *C.ulong) C.int {
	return C.int(guard("connect", func() error {
		if err := rt().CheckInit("connect"); err != nil {
			return err
		}
		if connectionIDOut == nil {
			return rt().RejectArgument("connect", "connection_id_out is null")
		}
		if endpoint == nil {
			return rt().RejectArgument("connect", "endpoint is null")
		}
		id, err := rt().Connect(context.Background(), C.GoString(endpoint))
		if err != nil {
			return err
		}
		*connectionIDOut = C.ulong(id)
		return nil
	}))
}

//export nyx_mobile_send_data
func nyx_mobile_send_data(connectionID C.ulong, data unsafe.Pointer, dataLen C.uintptr_t, bytesSentOut *C.uintptr_t) C.int {
	return C.int(guard("send", func() error {
		if err := rt().CheckInit("send"); err != nil {
			return err
		}
		payload, ok := hostBytes(data, uint64(dataLen))
		if !ok {
			return rt().RejectArgument("send", "data is null or empty")
		}
		n, err := rt().Send(bridge.ConnectionID(connectionID), payload)
		if err != nil {
			return err
		}
		if bytesSentOut != nil {
			*bytesSentOut = C.uintptr_t(n)
		}
		return nil
	}))
}

//export nyx_mobile_receive_data
func nyx_mobile_receive_data(connectionID C.ulong, buffer unsafe.Pointer, bufferLen C.uintptr_t, bytesReceivedOut *C.uintptr_t) C.int {
	return C.int(guard("receive", func() error {
		if err := rt().CheckInit("receive"); err != nil {
			return err
		}
		buf, ok := hostBytes(buffer, uint64(bufferLen))
		if !ok {
			return rt().RejectArgument("receive", "buffer is null or empty")
		}
		n, err := rt().Receive(bridge.ConnectionID(connectionID), buf)
		if err != nil {
			return err
		}
		if bytesReceivedOut != nil {
			*bytesReceivedOut = C.uintptr_t(n)
		}
		return nil
	}))
}

//export nyx_mobile_deliver_data
func nyx_mobile_deliver_data(connectionID C.ulong, data unsafe.Pointer, dataLen C.uintptr_t) C.int {
	return C.int(guard("deliver", func() error {
		if err := rt().CheckInit("deliver"); err != nil {
			return err
		}
		payload, ok := hostBytes(data, uint64(dataLen))
		if !ok {
			return rt().RejectArgument("deliver", "data is null or empty")
		}
		return rt().Deliver(bridge.ConnectionID(connectionID), payload)
	}))
}

//export nyx_mobile_disconnect
func nyx_mobile_disconnect(connectionID C.ulong) C.int {
	return C.int(guard("disconnect", func() error {
		return rt().Disconnect(bridge.ConnectionID(connectionID))
	}))
}

//export nyx_mobile_get_connection_stats
func nyx_mobile_get_connection_stats(connectionID C.ulong, bytesSentOut, bytesReceivedOut *C.ulong, qualityOut *C.int) C.int {
	return C.int(guard("stats.connection", func() error {
		st, err := rt().ConnectionStats(bridge.ConnectionID(connectionID))
		if err != nil {
			return err
		}
		if bytesSentOut != nil {
			*bytesSentOut = C.ulong(st.BytesSent)
		}
		if bytesReceivedOut != nil {
			*bytesReceivedOut = C.ulong(st.BytesReceived)
		}
		if qualityOut != nil {
			*qualityOut = C.int(st.Quality)
		}
		return nil
	}))
}

//export nyx_mobile_set_network_type
func nyx_mobile_set_network_type(networkType C.int) C.int {
	return C.int(guard("network.set", func() error {
		return rt().SetNetworkType(bridge.NetworkType(networkType))
	}))
}

//export nyx_mobile_get_network_type
func nyx_mobile_get_network_type(networkTypeOut *C.int) C.int {
	return C.int(guard("network.get", func() error {
		if err := rt().CheckInit("network.get"); err != nil {
			return err
		}
		if networkTypeOut == nil {
			return rt().RejectArgument("network.get", "network_type_out is null")
		}
		t, err := rt().NetworkType()
		if err != nil {
			return err
		}
		*networkTypeOut = C.int(t)
		return nil
	}))
}

//export nyx_mobile_update_config
func nyx_mobile_update_config(configJSON *C.char) C.int {
	return C.int(guard("config.update", func() error {
		if err := rt().CheckInit("config.update"); err != nil {
			return err
		}
		if configJSON == nil {
			return rt().RejectArgument("config.update", "config_json is null")
		}
		return rt().UpdateConfig(C.GoString(configJSON))
	}))
}

//export nyx_mobile_get_global_stats
func nyx_mobile_get_global_stats(totalConnectionsOut, successfulHandshakesOut, connectionFailuresOut, networkChangesOut *C.ulong) C.int {
	return C.int(guard("stats.global", func() error {
		st, err := rt().GlobalStats()
		if err != nil {
			return err
		}
		if totalConnectionsOut != nil {
			*totalConnectionsOut = C.ulong(st.TotalConnections)
		}
		if successfulHandshakesOut != nil {
			*successfulHandshakesOut = C.ulong(st.SuccessfulHandshakes)
		}
		if connectionFailuresOut != nil {
			*connectionFailuresOut = C.ulong(st.ConnectionFailures)
		}
		if networkChangesOut != nil {
			*networkChangesOut = C.ulong(st.NetworkChanges)
		}
		return nil
	}))
}

//export nyx_mobile_enter_background_mode
func nyx_mobile_enter_background_mode() C.int {
	return C.int(guard("mode.background", rt().EnterBackground))
}

//export nyx_mobile_enter_foreground_mode
func nyx_mobile_enter_foreground_mode() C.int {
	return C.int(guard("mode.foreground", rt().EnterForeground))
}

//export nyx_mobile_assess_connection_quality
func nyx_mobile_assess_connection_quality() C.int {
	return C.int(guard("quality.assess", func() error {
		_, err := rt().AssessConnectionQuality()
		return err
	}))
}

//export nyx_power_set_state
func nyx_power_set_state(state C.uint32_t) C.int {
	return C.int(guard("power.set", func() error {
		return rt().SetPowerState(bridge.PowerState(state))
	}))
}

//export nyx_power_get_state
func nyx_power_get_state(outState *C.uint32_t) C.int {
	return C.int(guard("power.get", func() error {
		if outState == nil {
			return rt().RejectArgument("power.get", "out_state is null")
		}
		*outState = C.uint32_t(rt().PowerState())
		return nil
	}))
}

//export nyx_push_wake
func nyx_push_wake() C.int {
	return C.int(guard("power.wake", rt().PushWake))
}

//export nyx_resume_low_power_session
func nyx_resume_low_power_session() C.int {
	return C.int(guard("power.resume", rt().ResumeLowPowerSession))
}

//export nyx_mobile_set_telemetry_label
func nyx_mobile_set_telemetry_label(key, value *C.char) C.int {
	return C.int(guard("telemetry.set", func() error {
		if key == nil {
			return rt().RejectArgument("telemetry.set", "telemetry key is null")
		}
		var v *string
		if value != nil {
			s := C.GoString(value)
			v = &s
		}
		return rt().SetTelemetryLabel(C.GoString(key), v)
	}))
}

//export nyx_mobile_clear_telemetry_labels
func nyx_mobile_clear_telemetry_labels() C.int {
	return C.int(guard("telemetry.clear", rt().ClearTelemetryLabels))
}

//export nyx_mobile_clear_telemetry_label_s
func nyx_mobile_clear_telemetry_label_s() C.int {
	return nyx_mobile_clear_telemetry_labels()
}

//export nyx_mobile_version
func nyx_mobile_version(buf *C.char, bufLen C.uintptr_t) C.int {
	return C.int(guardInt("version", -1, func() int32 {
		return copyVersion(unsafe.Pointer(buf), uint64(bufLen), rt().Version())
	}))
}

//export nyx_mobile_last_error
func nyx_mobile_last_error(buf *C.char, bufLen C.uintptr_t) C.int {
	return C.int(guardInt("last_error", -1, func() int32 {
		return copyOut(unsafe.Pointer(buf), uint64(bufLen), rt().LastError())
	}))
}

//export nyx_mobile_set_log_callback
func nyx_mobile_set_log_callback(cb unsafe.Pointer) C.int {
	return C.int(guard("log.callback", func() error {
		if cb == nil {
			rt().SetLogSink(nil)
			return nil
		}
		rt().SetLogSink(&cLogSink{fn: cb})
		return nil
	}))
}
