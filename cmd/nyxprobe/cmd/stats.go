package cmd

import (
	"fmt"
	"io"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nyx-network/nyx-mobile/bridge"
)

var statsConnect []string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print a runtime snapshot as YAML",
	Long: `Initialize a boundary runtime from the config, optionally open connections,
then print the status snapshot and counters as YAML.

Examples:
  nyxprobe stats
  nyxprobe stats --connect relay-a:443 --connect relay-b:443`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringArrayVar(&statsConnect, "connect", nil, "endpoint to connect before reporting (repeatable)")
	rootCmd.AddCommand(statsCmd)
}

type statsReport struct {
	Status      bridge.Snapshot    `yaml:"status"`
	Counters    bridge.GlobalStats `yaml:"counters"`
	Traffic     trafficReport      `yaml:"traffic"`
	Connections []bridge.ConnStats `yaml:"connections,omitempty"`
}

type trafficReport struct {
	Sent     string `yaml:"sent"`
	Received string `yaml:"received"`
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt := newRuntime(cfg)
	if err := boot(rt, cfg); err != nil {
		return err
	}
	defer func() { _ = rt.Shutdown() }()

	for _, ep := range statsConnect {
		if _, err := rt.Connect(cmd.Context(), ep); err != nil {
			return fmt.Errorf("connect %s: %w", ep, err)
		}
	}
	return writeStats(cmd.OutOrStdout(), rt)
}

func writeStats(w io.Writer, rt *bridge.Runtime) error {
	counters, err := rt.GlobalStats()
	if err != nil {
		return err
	}
	report := statsReport{
		Status:   rt.Snapshot(),
		Counters: counters,
		Traffic: trafficReport{
			Sent:     units.HumanSize(float64(counters.BytesSent)),
			Received: units.HumanSize(float64(counters.BytesReceived)),
		},
		Connections: rt.Connections(),
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	return enc.Close()
}
