package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/edvin/clustermanifest/internal/api"
	"github.com/edvin/clustermanifest/internal/metrics"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve manifest rendering over HTTP and MCP",
		Long: `Serve starts the rendering service. Topologies are POSTed to /v1/manifests,
/v1/groups or /v1/plan and rendered in memory; nothing is written. MCP clients
connect to /mcp. Prometheus metrics are at /metrics, and additionally on
--metrics-addr when set.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	addGenerationFlags(cmd)
	addDeployFlags(cmd)

	f := cmd.Flags()
	f.String("listen-addr", ":8400", "HTTP listen address")
	f.String("metrics-addr", "", "separate listen address for /metrics and /healthz")
	f.String("tls-cert", "", "server certificate file")
	f.String("tls-key", "", "server private key file")
	f.String("tls-client-ca", "", "CA bundle; when set, clients must present a certificate it signed")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	tlsConfig, err := cfg.ServerTLS()
	if err != nil {
		return err
	}

	m := metrics.New(true)
	gen, err := newGenerator(cfg, logger, m)
	if err != nil {
		return err
	}
	srv := api.NewServer(logger, gen, m, deployConfig(cfg))

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv,
		TLSConfig:    tlsConfig,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	servers := []*http.Server{httpServer}
	if cfg.MetricsAddr != "" {
		servers = append(servers, metrics.NewServer(cfg.MetricsAddr, m.Registry))
	}

	errc := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *http.Server) {
			var err error
			if s.TLSConfig != nil {
				logger.Info().Str("addr", s.Addr).Bool("mtls", cfg.TLSClientCA != "").Msg("starting HTTPS server")
				err = s.ListenAndServeTLS("", "")
			} else {
				logger.Info().Str("addr", s.Addr).Msg("starting HTTP server")
				err = s.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}(s)
	}

	var serveErr error
	select {
	case <-cmd.Context().Done():
	case serveErr = <-errc:
		logger.Error().Err(serveErr).Msg("server failed")
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, s := range servers {
		s.Shutdown(shutdownCtx)
	}
	return serveErr
}
