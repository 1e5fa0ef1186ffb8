package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestSetPowerState(t *testing.T) {
	r := initRuntime(t)

	for _, s := range []PowerState{PowerActive, PowerBackground, PowerInactive, PowerCritical} {
		require.NoError(t, r.SetPowerState(s))
		assert.Equal(t, s, r.PowerState())
	}
	for _, s := range []PowerState{PowerHibernating, PowerNetworkConstrained, PowerState(99)} {
		assert.Equal(t, StatusInvalidArgument, StatusOf(r.SetPowerState(s)))
	}
	assert.Equal(t, PowerCritical, r.PowerState())
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.PowerStateSets.WithLabelValues("background")))
}

func TestPowerStateReadableWithoutInit(t *testing.T) {
	r := newTestRuntime(t)
	assert.Equal(t, PowerActive, r.PowerState())
}

func TestPushWakeAndResumeCounters(t *testing.T) {
	r := initRuntime(t)
	require.NoError(t, r.PushWake())
	require.NoError(t, r.PushWake())
	require.NoError(t, r.ResumeLowPowerSession())

	assert.Equal(t, uint32(2), r.WakeCount())
	assert.Equal(t, uint32(1), r.ResumeCount())
	assert.Equal(t, float64(2), testutil.ToFloat64(r.metrics.PushWakes))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.Resumes))

	stats, err := r.GlobalStats()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), stats.WakeCount)
	assert.Equal(t, uint32(1), stats.ResumeCount)
}

func TestPushWakeRunsKeepalivePass(t *testing.T) {
	r := initRuntime(t)
	id, err := r.Connect(context.Background(), "peer")
	require.NoError(t, err)

	require.NoError(t, r.PushWake())
	assert.Eventually(t, func() bool {
		return r.keepalivePasses.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	r.mu.Lock()
	qs := r.conns[id].session.(*queueSession)
	r.mu.Unlock()
	qs.mu.Lock()
	defer qs.mu.Unlock()
	assert.NotZero(t, qs.keepalives)
}

func TestTelemetryLabels(t *testing.T) {
	r := newTestRuntime(t)

	require.NoError(t, r.SetTelemetryLabel("platform", strPtr("ios")))
	require.NoError(t, r.SetTelemetryLabel("os_version", strPtr("17.4")))
	assert.Equal(t, map[string]string{"platform": "ios", "os_version": "17.4"}, r.TelemetryLabels())
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.TelemetryLabel.WithLabelValues("platform", "ios")))

	require.NoError(t, r.SetTelemetryLabel("platform", strPtr("android")))
	assert.Equal(t, "android", r.TelemetryLabels()["platform"])
	assert.Equal(t, 2, testutil.CollectAndCount(r.metrics.TelemetryLabel))

	// A nil value removes the key.
	require.NoError(t, r.SetTelemetryLabel("platform", nil))
	_, ok := r.TelemetryLabels()["platform"]
	assert.False(t, ok)
	require.NoError(t, r.SetTelemetryLabel("missing", nil))

	err := r.SetTelemetryLabel("", strPtr("x"))
	assert.Equal(t, StatusInvalidArgument, StatusOf(err))
	assert.NotEqual(t, StatusOK, StatusOf(err))

	require.NoError(t, r.ClearTelemetryLabels())
	assert.Empty(t, r.TelemetryLabels())
	assert.Zero(t, testutil.CollectAndCount(r.metrics.TelemetryLabel))
	require.NoError(t, r.ClearTelemetryLabels())
}

func TestTelemetryLabelsSurviveShutdown(t *testing.T) {
	r := initRuntime(t)
	require.NoError(t, r.SetTelemetryLabel("device_model", strPtr("Pixel")))
	require.NoError(t, r.Shutdown())
	require.NoError(t, r.Init())
	assert.Equal(t, "Pixel", r.TelemetryLabels()["device_model"])
}

func TestTelemetryLabelInvalidUTF8(t *testing.T) {
	r := newTestRuntime(t)
	require.NoError(t, r.ClearTelemetryLabels())

	require.NotPanics(t, func() {
		require.NoError(t, r.SetTelemetryLabel("k", strPtr("caf\xe9")))
		require.NoError(t, r.SetTelemetryLabel("\xff", strPtr("v")))
	})
	labels := r.TelemetryLabels()
	assert.Equal(t, "caf�", labels["k"])
	assert.Equal(t, "v", labels["�"])
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.TelemetryLabel.WithLabelValues("k", "caf�")))

	require.NoError(t, r.SetTelemetryLabel("\xff", nil))
	assert.NotContains(t, r.TelemetryLabels(), "�")
}
