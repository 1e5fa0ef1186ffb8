package cmd

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/nyx-network/nyx-mobile/bridge"
)

var (
	memtestConns   int
	memtestPayload int
	memtestSettle  time.Duration
)

var memtestCmd = &cobra.Command{
	Use:   "memtest",
	Short: "Print heap statistics around a boundary cycle",
	Long: `Print Go heap statistics at each step of an init, connect, traffic and
shutdown cycle, to check the footprint stays within mobile extension limits.`,
	RunE: runMemtest,
}

func init() {
	memtestCmd.Flags().IntVar(&memtestConns, "connections", 4, "connections to open")
	memtestCmd.Flags().IntVar(&memtestPayload, "payload", 64*1024, "bytes delivered and read per connection")
	memtestCmd.Flags().DurationVar(&memtestSettle, "settle", 500*time.Millisecond, "pause before forcing GC")
	rootCmd.AddCommand(memtestCmd)
}

func printStats(w io.Writer, tag string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Fprintf(w, "%s: alloc=%s total=%s sys=%s heapAlloc=%s heapSys=%s stack=%s gcSys=%s otherSys=%s\n",
		tag,
		units.BytesSize(float64(m.Alloc)),
		units.BytesSize(float64(m.TotalAlloc)),
		units.BytesSize(float64(m.Sys)),
		units.BytesSize(float64(m.HeapAlloc)),
		units.BytesSize(float64(m.HeapSys)),
		units.BytesSize(float64(m.StackInuse)),
		units.BytesSize(float64(m.GCSys)),
		units.BytesSize(float64(m.OtherSys)),
	)
}

func runMemtest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return memtest(cmd.Context(), cmd.OutOrStdout(), newRuntime(cfg))
}

func memtest(ctx context.Context, w io.Writer, rt *bridge.Runtime) error {
	printStats(w, "startup")
	if err := rt.Init(); err != nil {
		return err
	}
	printStats(w, "after Init")

	limit := fmt.Sprintf(`{"max_connections":%d}`, max(memtestConns, 1))
	if err := rt.UpdateConfig(limit); err != nil {
		return err
	}
	ids := make([]bridge.ConnectionID, 0, memtestConns)
	for i := 0; i < memtestConns; i++ {
		id, err := rt.Connect(ctx, fmt.Sprintf("memtest-%d", i))
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	printStats(w, "after Connect")

	payload := make([]byte, memtestPayload)
	buf := make([]byte, 4096)
	for _, id := range ids {
		if err := rt.Deliver(id, payload); err != nil {
			return err
		}
		for {
			n, err := rt.Receive(id, buf)
			if err != nil {
				return err
			}
			if n == 0 {
				break
			}
		}
	}
	printStats(w, "after traffic")

	time.Sleep(memtestSettle)
	runtime.GC()
	printStats(w, "after GC")
	debug.FreeOSMemory()
	printStats(w, "after FreeOSMemory")
	if err := rt.Shutdown(); err != nil {
		return err
	}
	printStats(w, "after Shutdown")
	return nil
}
