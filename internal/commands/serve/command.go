// Package serve implements `weave serve`: a small HTTP process that
// exposes the OTel/Prometheus metrics weave's scheduler and resolver
// emit while embedded as a library elsewhere in the same process tree.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgxrun/weave/internal/commands/shared"
	intlog "github.com/dgxrun/weave/internal/log"
	"github.com/dgxrun/weave/pkg/observability"
)

var servePort int

// NewCommand builds the `weave serve` subcommand.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve weave's Prometheus metrics endpoint",
		Long: `Serve starts an OTel-backed metrics provider and exposes it over
/metrics. It does not run workflows itself: pair it with an embedding
process that shares the same observability.TracerProvider, or use it
standalone to confirm the otel wiring before embedding weave.`,
		RunE: runServe,
	}
	cmd.Flags().IntVar(&servePort, "port", 9877, "Port to bind the metrics endpoint to")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := intlog.New(intlog.FromEnv())

	v, _, _ := shared.GetVersion()
	provider, err := observability.NewOTelProvider("weave", v)
	if err != nil {
		return shared.NewConfigError("starting observability provider", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", provider.MetricsHandler())

	addr := fmt.Sprintf(":%d", servePort)
	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("weave metrics server listening", intlog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return shared.NewExecutionError("metrics server failed", err)
	case <-sigCh:
	case <-cmd.Context().Done():
	}

	logger.Info("shutting down metrics server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return shared.NewExecutionError("shutting down metrics server", err)
	}
	return provider.Shutdown(ctx)
}
