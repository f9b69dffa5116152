package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/workspaces/internal/metrics"
	"github.com/mesh-intelligence/workspaces/internal/paths"
	"github.com/mesh-intelligence/workspaces/internal/syncbridge"
)

type syncFlags struct {
	watch       bool
	metricsAddr string
	syncDir     string
	deviceID    string
	debounce    time.Duration
}

func newSyncCmd() *cobra.Command {
	var sf syncFlags
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Exchange workspace changes with other devices",
		Long: "Pull peer records from the sync directory, apply them last-writer-wins,\n" +
			"and publish this device's pending changes. With --watch the command keeps\n" +
			"running and syncs whenever a peer file changes.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, sf)
		},
	}
	cmd.Flags().BoolVar(&sf.watch, "watch", false, "keep running and sync on peer file changes")
	cmd.Flags().StringVar(&sf.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while watching (default: config metrics_addr)")
	cmd.Flags().StringVar(&sf.syncDir, "sync-dir", "", "sync directory (default: config sync.dir or <data-dir>/sync)")
	cmd.Flags().StringVar(&sf.deviceID, "device-id", "", "device id (default: config sync.device_id or host name)")
	cmd.Flags().DurationVar(&sf.debounce, "debounce", syncbridge.DefaultDebounce, "quiet period before a watched sync runs")
	return cmd
}

func runSync(cmd *cobra.Command, sf syncFlags) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	var reg *prometheus.Registry
	addr := sf.metricsAddr
	if addr == "" {
		addr = e.cfg.GetString(cfgKeyMetricsAddr)
	}
	if sf.watch && addr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		e.metrics = metrics.New(reg)
	}

	if err := e.attach(); err != nil {
		return err
	}
	defer e.close()

	dir, err := paths.ResolveSyncDir(sf.syncDir, e.cfg.GetString(cfgKeySyncDir), e.dataDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve sync dir: %w", err))
	}
	deviceID, err := paths.DeviceID(firstNonEmpty(sf.deviceID, e.cfg.GetString(cfgKeyDeviceID)))
	if err != nil {
		return sysError(fmt.Errorf("resolve device id: %w", err))
	}
	transport, err := syncbridge.NewFileTransport(dir, deviceID, e.logger)
	if err != nil {
		return userError(err)
	}
	bridge, err := syncbridge.New(syncbridge.Options{
		Workspaces: e.backend.Workspaces(),
		Bookmarks:  e.backend.Bookmarks(),
		Transport:  transport,
		Notifier:   e.bus,
		DeviceID:   deviceID,
		Logger:     e.logger,
		Metrics:    e.metrics,
	})
	if err != nil {
		return sysError(err)
	}

	if !sf.watch {
		res, err := bridge.Sync(cmd.Context())
		if err != nil {
			return sysError(err)
		}
		if flags.jsonMode {
			return printJSON(cmd.OutOrStdout(), res)
		}
		printSuccess(cmd.OutOrStdout(), "Synced %s: pulled %d, applied %d, skipped %d, pushed %d",
			deviceID, res.Pulled, res.Applied, res.Skipped, res.Pushed)
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if reg != nil {
		srv := &http.Server{
			Addr:              addr,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.logger.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		printSuccess(cmd.OutOrStdout(), "Serving metrics on %s/metrics", addr)
	}

	printSuccess(cmd.OutOrStdout(), "Watching %s as %s", dir, deviceID)
	w := syncbridge.NewWatcher(bridge, transport, sf.debounce, e.logger)
	if err := w.Run(ctx); err != nil {
		return sysError(err)
	}
	return nil
}

func metricsMux(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
