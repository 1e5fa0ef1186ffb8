package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nyx-network/nyx-mobile/internal/probe"
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Execute a probe script",
	Long: `Execute a probe script against a fresh boundary runtime. Use "-" to read
the script from stdin.

Each line is one call, split shell-style. Lines starting with # are comments.

Example:
  init
  connect a relay.example:443
  deliver a "hello"
  recv a
  power critical
  assess
  expect ok
  shutdown`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open script: %w", err)
		}
		defer f.Close()
		r = f
	}

	rt := newRuntime(cfg)
	defer func() {
		if rt.Initialized() {
			_ = rt.Shutdown()
		}
	}()
	return probe.New(rt, cmd.OutOrStdout()).Run(cmd.Context(), r)
}
