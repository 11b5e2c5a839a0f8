package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/abdhe/kelly-poet/pkg/server"
)

func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve kelly.v1.Kelly over gRPC with Prometheus metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, *configFile)
			if err != nil {
				return err
			}
			defer a.close()

			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	grpcServer := server.NewGRPCServer(server.NewHandler(a.chat, a.log))

	grpcLis, err := net.Listen("tcp", a.cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Server.GRPCAddr, err)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	metricsServer := &http.Server{
		Addr:         a.cfg.Server.MetricsAddr,
		Handler:      metricsMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(context.Context) error {
		a.log.Info().Str("addr", a.cfg.Server.GRPCAddr).Msg("gRPC server listening")
		return grpcServer.Serve(grpcLis)
	})

	p.Go(func(context.Context) error {
		a.log.Info().Str("addr", a.cfg.Server.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Stops both servers on signal, or when either one fails.
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		a.log.Info().Msg("shutting down")

		grpcServer.GracefulStop()
		a.log.Info().Msg("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			a.log.Error().Err(err).Msg("metrics server shutdown")
		}
		a.log.Info().Msg("metrics server stopped")
		return nil
	})

	return p.Wait()
}
