package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nyx-network/nyx-mobile/bridge"
	"github.com/nyx-network/nyx-mobile/internal/config"
	"github.com/nyx-network/nyx-mobile/internal/diag"
	"github.com/nyx-network/nyx-mobile/platform"
)

var (
	serveTelemetry bool
	serveWatch     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the diagnostics server",
	Long: `Initialize a boundary runtime and serve its status, labels, power controls,
event stream and Prometheus metrics over HTTP until interrupted.

Examples:
  nyxprobe serve
  NYXPROBE_DIAG_ADDR=127.0.0.1:9090 nyxprobe serve --telemetry`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveTelemetry, "telemetry", false, "mirror host device and sensor state into telemetry labels")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "re-apply mobile config, log level and labels when the config file changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt := newRuntime(cfg)
	if err := boot(rt, cfg); err != nil {
		return err
	}

	pb := platform.NewBridge(rt)
	defer pb.Cleanup()
	if !pb.InitializeMonitoring() {
		return errors.New("platform monitoring failed to start")
	}
	if serveTelemetry {
		pb.StartTelemetryIfAvailable()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := rt.Logger()
	if serveWatch {
		watchConfig(rt, log)
	}
	srv := diag.New(rt, diag.Options{
		Addr:            cfg.Diag.Addr,
		AllowedOrigins:  cfg.Diag.AllowedOrigins,
		ReadTimeout:     cfg.Diag.ReadTimeout,
		ShutdownTimeout: cfg.Diag.ShutdownTimeout,
	}, log)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Error("diagnostics server", zap.Error(err))
		return err
	}
	log.Info("diagnostics server stopped")
	return nil
}

func watchConfig(rt *bridge.Runtime, log *zap.Logger) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := config.Load(v)
		if err != nil {
			log.Warn("config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := apply(rt, cfg, rt.UpdateConfig); err != nil {
			log.Warn("config reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		log.Info("config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()
}
