package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/autotag/internal/api"
	"github.com/yairfalse/autotag/internal/auth"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the discovery and tagging API.

Routes:
  GET  /v1/accounts/:accountId/resources   discover a linked account
  POST /v1/accounts/:accountId/tags        tag resources in a linked account
  GET  /healthz                            liveness
  GET  /metrics                            Prometheus metrics (when enabled)

Requests carry a bearer JWT signed with http.jwt_secret (or AUTOTAG_JWT_SECRET).`,
	Example: `  autotag serve --config autotag.toml
  autotag serve --addr :9000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides http.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.HTTP.JWTSecret == "" {
		return errors.New("http.jwt_secret (or AUTOTAG_JWT_SECRET) is required to serve")
	}
	if serveAddr != "" {
		cfg.HTTP.Addr = serveAddr
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	verifier := auth.NewVerifier(cfg.HTTP.JWTSecret, cfg.HTTP.JWTIssuer, cfg.HTTP.PrincipalClaim)
	server := api.NewServer(a.discovery, a.tagging, verifier,
		api.WithMetrics(a.telemetry.MetricsHandler()),
		api.WithLogger(logger("api")),
	)
	srv := server.HTTPServer(cfg.HTTP.Addr)

	var g run.Group
	g.Add(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		log.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}
