package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"sqlgateway/internal/metrics"
	"sqlgateway/pkg/logging"

	"github.com/spf13/cobra"
)

var metricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway and block until SIGINT or SIGTERM",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address the /metrics endpoint listens on")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, cfg, err := buildGateway(ctx, configPath)
	if err != nil {
		return err
	}
	defer gw.Shutdown()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Warn("serve", "metrics server stopped: %v", err)
		}
	}()

	logging.Info("serve", "gateway started with %d configured servers, metrics on %s", len(cfg.Servers), metricsAddr)

	<-ctx.Done()
	logging.Info("serve", "shutdown signal received, draining sessions")
	_ = metricsServer.Close()
	return nil
}
