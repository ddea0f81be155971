// Command librarian is the process entry point: it loads configuration,
// assembles a pkg/librarian.App, runs the catalog/replication/offload/
// staging machinery and the ambient metrics/health endpoints, and drains
// cleanly on SIGINT/SIGTERM. The production RPC transport is expected to
// come from a fronting gateway; pkg/rpc/httpadapter.go is a demonstration
// wire contract, not wired in here by default - pass --enable-rpc-demo to
// mount it for local testing against this binary.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/librarian/pkg/auth"
	"github.com/cuemby/librarian/pkg/config"
	"github.com/cuemby/librarian/pkg/librarian"
	"github.com/cuemby/librarian/pkg/log"
	"github.com/cuemby/librarian/pkg/mc"
	"github.com/cuemby/librarian/pkg/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version information, set via -ldflags at build time.
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "librarian",
	Short:   "Librarian - a federated catalog and replication service for scientific data files",
	Version: Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the librarian: catalog, standing-order replication, and background task manager",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		metricsAddr, _ := cmd.Flags().GetString("metrics-listen")
		watchConfig, _ := cmd.Flags().GetBool("watch-config")
		enableRPCDemo, _ := cmd.Flags().GetBool("enable-rpc-demo")
		rpcDemoAddr, _ := cmd.Flags().GetString("rpc-demo-listen")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log.Init(log.Config{Level: cfg.LogLevel, JSONOutput: true})
		logger := log.WithComponent("main")

		var checker auth.IdentityChecker
		if hc := auth.NewHTTPIdentityChecker(cfg.IdentityCheckURL); hc != nil {
			checker = hc
		}
		var sink mc.Sink
		if cfg.ReportToMandc {
			sink = mc.LogSink{}
		}

		app, err := librarian.New(cfg, checker, sink)
		if err != nil {
			return fmt.Errorf("assemble librarian: %w", err)
		}

		isPrimary, err := app.AcquirePrimary()
		if err != nil {
			app.Catalog.Close()
			return fmt.Errorf("acquire primary lock: %w", err)
		}
		logger.Info().Bool("primary", isPrimary).Msg("primary-process gating resolved")

		if watchConfig {
			_, err := config.NewWatcher(configPath, cfg, func(updated *config.Config) {
				app.Replication.SetMode(updated.StandingOrderMode)
				log.Init(log.Config{Level: updated.LogLevel, JSONOutput: true})
				logger.Info().Msg("configuration hot-reloaded")
			})
			if err != nil {
				logger.Warn().Err(err).Msg("config watcher not started")
			}
		}

		app.Start()

		metrics.SetVersion(Version)
		metrics.RegisterComponent("catalog", true, "ready")

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		metricsMux.Handle("/health", metrics.HealthHandler())
		metricsMux.Handle("/ready", metrics.ReadyHandler())
		metricsMux.Handle("/live", metrics.LivenessHandler())
		metricsServer := &http.Server{Addr: metricsAddr, Handler: metricsMux}

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", metricsAddr).Msg("metrics/health endpoints listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()

		var rpcDemoServer *http.Server
		if enableRPCDemo {
			metrics.RegisterComponent("rpc-demo", true, "ready")
			rpcDemoServer = &http.Server{Addr: rpcDemoAddr, Handler: app.HTTP.Handler()}
			go func() {
				logger.Warn().Str("addr", rpcDemoAddr).Msg("RPC-over-HTTP demo adapter listening - not a production transport, see pkg/rpc/httpadapter.go")
				if err := rpcDemoServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- fmt.Errorf("rpc demo server: %w", err)
				}
			}()
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigCh:
			logger.Info().Msg("shutdown signal received")
		case err := <-errCh:
			logger.Error().Err(err).Msg("server failed")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
		if rpcDemoServer != nil {
			_ = rpcDemoServer.Shutdown(shutdownCtx)
		}
		return app.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("config", "librarian.yaml", "Path to the librarian configuration file")
	serveCmd.Flags().String("metrics-listen", "127.0.0.1:9090", "Address the metrics/health endpoints listen on")
	serveCmd.Flags().Bool("watch-config", false, "Hot-reload standing_order_mode/log_level on config file changes")
	serveCmd.Flags().Bool("enable-rpc-demo", false, "Mount pkg/rpc's net/http demo adapter for local testing")
	serveCmd.Flags().String("rpc-demo-listen", "127.0.0.1:8080", "Address the RPC-over-HTTP demo adapter listens on, if enabled")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("librarian version %s (%s)\n", Version, Commit)
	},
}
