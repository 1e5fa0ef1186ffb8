package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/nyx-network/nyx-mobile/bridge"
	"github.com/nyx-network/nyx-mobile/internal/config"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "nyxprobe "+bridge.Version)
	assert.Contains(t, out, "Go version:")
}

func TestRunCommand(t *testing.T) {
	cfg := writeFile(t, "nyxprobe.yaml", "engine:\n  loopback: true\n")
	script := writeFile(t, "smoke.nyx", strings.Join([]string{
		"init",
		"connect a relay:443",
		"send a ping",
		"recv a",
		"expect ok",
		"shutdown",
	}, "\n"))

	out, err := execute(t, "--config", cfg, "run", script)
	require.NoError(t, err)
	assert.Contains(t, out, `recv -> ok received=4 "ping"`)
}

func TestRunCommandFailedExpectation(t *testing.T) {
	cfg := writeFile(t, "nyxprobe.yaml", "{}\n")
	script := writeFile(t, "fail.nyx", "stats\nexpect ok\n")
	_, err := execute(t, "--config", cfg, "run", script)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestRunCommandMissingScript(t *testing.T) {
	cfg := writeFile(t, "nyxprobe.yaml", "{}\n")
	_, err := execute(t, "--config", cfg, "run", filepath.Join(t.TempDir(), "absent.nyx"))
	assert.Error(t, err)
}

func TestWriteStats(t *testing.T) {
	cfg, err := config.Load(config.New(writeFile(t, "nyxprobe.yaml", "labels:\n  platform: probe\n")))
	require.NoError(t, err)
	rt := newRuntime(cfg)
	require.NoError(t, boot(rt, cfg))
	defer func() { _ = rt.Shutdown() }()

	id, err := rt.Connect(context.Background(), "relay:443")
	require.NoError(t, err)
	require.NoError(t, rt.Deliver(id, make([]byte, 2048)))
	buf := make([]byte, 4096)
	_, err = rt.Receive(id, buf)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, writeStats(&out, rt))

	var report struct {
		Status struct {
			Initialized bool              `yaml:"initialized"`
			Labels      map[string]string `yaml:"labels"`
		} `yaml:"status"`
		Counters struct {
			TotalConnections uint64 `yaml:"total_connections"`
		} `yaml:"counters"`
		Traffic struct {
			Received string `yaml:"received"`
		} `yaml:"traffic"`
		Connections []map[string]any `yaml:"connections"`
	}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &report))
	assert.True(t, report.Status.Initialized)
	assert.Equal(t, "probe", report.Status.Labels["platform"])
	assert.Equal(t, uint64(1), report.Counters.TotalConnections)
	assert.Equal(t, "2.048kB", report.Traffic.Received)
	assert.Len(t, report.Connections, 1)
}

func TestMemtest(t *testing.T) {
	memtestConns, memtestPayload, memtestSettle = 2, 10000, 0
	rt := bridge.New(bridge.WithLogSink(nopSink{}))
	var out bytes.Buffer
	require.NoError(t, memtest(context.Background(), &out, rt))

	for _, tag := range []string{"startup", "after Init", "after Connect", "after traffic", "after GC", "after Shutdown"} {
		assert.Contains(t, out.String(), tag+": alloc=")
	}
	assert.False(t, rt.Initialized())
}

type nopSink struct{}

func (nopSink) Log(string, string) {}

func TestApplyReload(t *testing.T) {
	path := writeFile(t, "nyxprobe.yaml", "mobile:\n  max_connections: 2\n")
	cfg, err := config.Load(config.New(path))
	require.NoError(t, err)
	rt := bridge.New(bridge.WithLogSink(nopSink{}))
	require.NoError(t, boot(rt, cfg))
	defer func() { _ = rt.Shutdown() }()
	assert.Equal(t, uint32(2), rt.Config().MaxConnections)

	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nmobile:\n  max_connections: 7\nlabels:\n  build: beta\n"), 0o600))
	cfg, err = config.Load(config.New(path))
	require.NoError(t, err)
	require.NoError(t, apply(rt, cfg, rt.UpdateConfig))

	assert.Equal(t, uint32(7), rt.Config().MaxConnections)
	assert.Equal(t, "beta", rt.TelemetryLabels()["build"])
	assert.Equal(t, "debug", rt.LogLevel())
}
