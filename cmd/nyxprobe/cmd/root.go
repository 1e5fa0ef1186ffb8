// Package cmd provides the CLI commands for nyxprobe.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nyx-network/nyx-mobile/bridge"
	"github.com/nyx-network/nyx-mobile/internal/config"
)

var cfgFile string

var v *viper.Viper

var rootCmd = &cobra.Command{
	Use:   "nyxprobe",
	Short: "nyxprobe - Nyx mobile boundary probe",
	Long: `nyxprobe drives the Nyx mobile boundary the way an embedding app does.

Configuration:
  Config is loaded from nyxprobe.yaml in the current directory or
  $HOME/.nyxprobe/.

  Environment variables override config values with the NYXPROBE_ prefix.
  Example: NYXPROBE_DIAG_ADDR=127.0.0.1:9090

Commands:
  run         Execute a probe script
  serve       Start the diagnostics server
  stats       Print a runtime snapshot as YAML
  memtest     Print heap statistics around a boundary cycle
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./nyxprobe.yaml)")
}

func initConfig() {
	v = config.New(cfgFile)
}

func loadConfig() (*config.ProbeConfig, error) {
	if v == nil {
		initConfig()
	}
	return config.Load(v)
}

func newRuntime(cfg *config.ProbeConfig) *bridge.Runtime {
	return bridge.New(bridge.WithEngine(bridge.NewQueueEngine(bridge.QueueEngineConfig{
		QueueDepth: cfg.Engine.QueueDepth,
		Loopback:   cfg.Engine.Loopback,
	})))
}

// boot initializes rt and applies the mobile config, log level and labels.
func boot(rt *bridge.Runtime, cfg *config.ProbeConfig) error {
	if err := rt.Init(); err != nil {
		return err
	}
	return apply(rt, cfg, rt.CreateClient)
}

// apply pushes cfg into an initialized runtime. setConfig is CreateClient at
// boot and UpdateConfig on reload.
func apply(rt *bridge.Runtime, cfg *config.ProbeConfig, setConfig func(string) error) error {
	js, err := cfg.MobileJSON()
	if err != nil {
		return err
	}
	if js != "" {
		if err := setConfig(js); err != nil {
			return err
		}
	}
	if err := rt.SetLogLevel(cfg.LogLevelCode()); err != nil {
		return err
	}
	for k, val := range cfg.Labels {
		if err := rt.SetTelemetryLabel(k, &val); err != nil {
			return err
		}
	}
	return nil
}
