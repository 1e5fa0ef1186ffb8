package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) Log(level, message string) {
	s.mu.Lock()
	s.lines = append(s.lines, level+" "+message)
	s.mu.Unlock()
}

func (s *recordingSink) contains(substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	opts = append([]Option{WithLogSink(&recordingSink{})}, opts...)
	r := New(opts...)
	t.Cleanup(func() { _ = r.Shutdown() })
	return r
}

func initRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	r := newTestRuntime(t, opts...)
	require.NoError(t, r.Init())
	return r
}

func TestInitShutdownIdempotent(t *testing.T) {
	r := newTestRuntime(t)

	require.NoError(t, r.Init())
	err := r.Init()
	require.Error(t, err)
	assert.Equal(t, StatusAlreadyInitialized, StatusOf(err))
	assert.True(t, r.Initialized())

	require.NoError(t, r.Shutdown())
	err = r.Shutdown()
	assert.Equal(t, StatusNotInitialized, StatusOf(err))
	assert.False(t, r.Initialized())
}

func TestReinitStartsClean(t *testing.T) {
	r := initRuntime(t)

	id, err := r.Connect(context.Background(), "peer-a")
	require.NoError(t, err)
	require.NoError(t, r.SetNetworkType(NetworkWifi))
	require.NoError(t, r.SetPowerState(PowerBackground))
	require.NoError(t, r.PushWake())
	require.NoError(t, r.UpdateConfig(`{"max_connections": 9}`))
	first := r.Snapshot().SessionID

	require.NoError(t, r.Shutdown())
	require.NoError(t, r.Init())

	stats, err := r.GlobalStats()
	require.NoError(t, err)
	assert.Equal(t, GlobalStats{}, stats)
	assert.Equal(t, PowerActive, r.PowerState())
	nt, err := r.NetworkType()
	require.NoError(t, err)
	assert.Equal(t, NetworkUnknown, nt)
	assert.Equal(t, DefaultMobileConfig(), r.Config())
	assert.Empty(t, r.Connections())
	assert.Empty(t, r.LastError())
	assert.Zero(t, r.WakeCount())
	assert.NotEqual(t, first, r.Snapshot().SessionID)

	_, err = r.ConnectionStats(id)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestOperationsRequireInit(t *testing.T) {
	r := newTestRuntime(t)

	calls := map[string]func() error{
		"log.level":       func() error { return r.SetLogLevel(2) },
		"client.create":   func() error { return r.CreateClient(`{}`) },
		"config.update":   func() error { return r.UpdateConfig(`{}`) },
		"mode.background": r.EnterBackground,
		"mode.foreground": r.EnterForeground,
		"power.wake":      r.PushWake,
		"power.resume":    r.ResumeLowPowerSession,
		"power.set":       func() error { return r.SetPowerState(PowerActive) },
		"network.set":     func() error { return r.SetNetworkType(NetworkWifi) },
		"disconnect":      func() error { return r.Disconnect(1) },
		"connect": func() error {
			_, err := r.Connect(context.Background(), "peer")
			return err
		},
		"stats.global": func() error {
			_, err := r.GlobalStats()
			return err
		},
		"quality.assess": func() error {
			_, err := r.AssessConnectionQuality()
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.Equal(t, StatusNotInitialized, StatusOf(err))
			assert.Contains(t, r.LastError(), "not initialized")
		})
	}
}

func TestSuccessfulInitAndShutdownClearLastError(t *testing.T) {
	r := newTestRuntime(t)
	_ = r.PushWake()
	require.NotEmpty(t, r.LastError())

	require.NoError(t, r.Init())
	assert.Empty(t, r.LastError())

	_ = r.SetPowerState(PowerHibernating)
	require.NotEmpty(t, r.LastError())
	require.NoError(t, r.Shutdown())
	assert.Empty(t, r.LastError())
}

func TestAlreadyInitializedKeepsLastError(t *testing.T) {
	r := initRuntime(t)
	_ = r.SetLogLevel(9)
	msg := r.LastError()
	require.NotEmpty(t, msg)

	_ = r.Init()
	assert.Equal(t, msg, r.LastError())
}

func TestSetLogLevel(t *testing.T) {
	r := initRuntime(t)
	for code, want := range []string{"error", "warn", "info", "debug", "trace"} {
		require.NoError(t, r.SetLogLevel(code))
		assert.Equal(t, want, r.LogLevel())
	}
	assert.Equal(t, StatusInvalidArgument, StatusOf(r.SetLogLevel(5)))
	assert.Equal(t, StatusInvalidArgument, StatusOf(r.SetLogLevel(-1)))
	assert.Equal(t, "trace", r.LogLevel())
}

func TestCreateClientAndUpdateConfig(t *testing.T) {
	r := initRuntime(t)

	require.NoError(t, r.CreateClient(`{"max_connections": 2, "cellular_data_usage": false}`))
	cfg := r.Config()
	assert.Equal(t, uint32(2), cfg.MaxConnections)
	assert.False(t, cfg.CellularDataUsage)
	assert.True(t, cfg.BackgroundKeepalive)
	assert.NotEmpty(t, r.Snapshot().ClientID)

	require.NoError(t, r.UpdateConfig(`{"connection_timeout_ms": 500}`))
	cfg = r.Config()
	assert.Equal(t, uint32(2), cfg.MaxConnections)
	assert.Equal(t, 500*time.Millisecond, cfg.ConnectionTimeout())

	// CreateClient starts from defaults again.
	require.NoError(t, r.CreateClient(`{}`))
	assert.Equal(t, DefaultMobileConfig(), r.Config())

	for _, bad := range []string{``, `{`, `{"max_connections": 0}`, `{"connection_timeout_ms": 5}`, `[1,2]`} {
		err := r.UpdateConfig(bad)
		assert.Equal(t, StatusConfigurationError, StatusOf(err), "input %q", bad)
	}
	assert.Equal(t, DefaultMobileConfig(), r.Config())
}

func TestBackgroundForeground(t *testing.T) {
	r := initRuntime(t)
	require.NoError(t, r.EnterBackground())
	assert.True(t, r.Background())
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.BackgroundMode))
	require.NoError(t, r.EnterForeground())
	assert.False(t, r.Background())
	assert.Equal(t, float64(0), testutil.ToFloat64(r.metrics.BackgroundMode))
}

func TestLogSinkReceivesFailures(t *testing.T) {
	sink := &recordingSink{}
	r := New(WithLogSink(sink))
	_ = r.PushWake()
	assert.True(t, sink.contains("ERROR"), "lines: %v", sink.lines)
	assert.True(t, sink.contains("op=power.wake"))
	assert.True(t, sink.contains("status=not_initialized"))

	other := &recordingSink{}
	r.SetLogSink(other)
	_ = r.Shutdown()
	assert.True(t, other.contains("op=shutdown"))
}

func TestCallsTotalMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := newTestRuntime(t, WithRegistry(reg))
	assert.Same(t, reg, r.Registry())

	require.NoError(t, r.Init())
	_ = r.Init()
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.CallsTotal.WithLabelValues("init", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.CallsTotal.WithLabelValues("init", "already_initialized")))
}

func TestRejectArgumentAndRecordPanic(t *testing.T) {
	r := newTestRuntime(t)

	err := r.RejectArgument("connect", "connection_id out-pointer is null")
	assert.Equal(t, StatusInvalidArgument, StatusOf(err))
	assert.Contains(t, r.LastError(), "out-pointer is null")

	err = r.RecordPanic("send", "boom")
	assert.Equal(t, StatusInternalError, StatusOf(err))
	assert.Contains(t, r.LastError(), "panic: boom")
}

func TestEventsPublished(t *testing.T) {
	r := newTestRuntime(t)
	events, unsub := r.Subscribe()
	defer unsub()

	require.NoError(t, r.Init())
	require.NoError(t, r.SetPowerState(PowerInactive))

	var got []EventType
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case e := <-events:
			got = append(got, e.Type)
		case <-timeout:
			t.Fatalf("events so far: %v", got)
		}
	}
	assert.Equal(t, []EventType{EventLifecycle, EventPowerState}, got)
}

func TestSnapshotWhenIdle(t *testing.T) {
	r := newTestRuntime(t)
	s := r.Snapshot()
	assert.False(t, s.Initialized)
	assert.Empty(t, s.SessionID)
	assert.Equal(t, Version, s.Version)
	assert.Equal(t, "active", s.PowerState)
	assert.Equal(t, "disconnected", s.Quality)
}
