// Command signalhub runs the WebRTC signaling hub: it loads a YAML config,
// builds the Hub, and fans out one HTTP (or HTTPS) listener per configured
// port, mirroring the original implementation's multi-listener fan-out.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/swarm-cloud/signalhub/internal/auth"
	"github.com/swarm-cloud/signalhub/internal/config"
	"github.com/swarm-cloud/signalhub/internal/logging"
	"github.com/swarm-cloud/signalhub/internal/ratelimit"
	"github.com/swarm-cloud/signalhub/internal/signaling"
	"github.com/swarm-cloud/signalhub/internal/stats"
	"github.com/swarm-cloud/signalhub/internal/transport"
)

// serverVersion is the semantic version string reported at /version and
// encoded into the "ver" hello frame via signaling.EncodedVersion.
const serverVersion = "1.4"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "signalhub",
		Short: "WebRTC signaling hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("signalhub: %w", err)
	}

	log, err := logging.New(logging.Config{
		Writers:        cfg.Log.Writers,
		Level:          cfg.Log.Level,
		Dir:            cfg.Log.Dir,
		RotateDateDays: cfg.Log.RotateDateDays,
		RotateSizeMB:   cfg.Log.RotateSizeMB,
	})
	if err != nil {
		return fmt.Errorf("signalhub: building logger: %w", err)
	}
	defer log.Sync()

	hub := signaling.NewHub(log)
	defer hub.Stop()

	authCfg := auth.Config{
		Enabled:    cfg.Security.Enable,
		SharedKey:  cfg.Security.Token,
		MaxAgeSecs: cfg.Security.MaxTimestampAge,
	}
	limiter := ratelimit.New(cfg.RateLimit.Enable, cfg.RateLimit.MaxRate)
	versionNumber := signaling.EncodedVersion(serverVersion)

	transportSrv := transport.NewServer(hub, authCfg, limiter, versionNumber, log)
	statsSrv := stats.NewServer(hub, cfg.Stats, cfg.TLS, cfg.Security.Enable, cfg.RateLimit.MaxRate, serverVersion, log)

	mux := http.NewServeMux()
	mux.Handle("/", transportSrv.Handler())
	statsSrv.Register(mux)

	servers := make([]*http.Server, 0, len(cfg.Listen)+len(cfg.TLS))

	for _, port := range cfg.Listen {
		srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
		servers = append(servers, srv)
		go func(port int) {
			log.Info("listening", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal("listener failed", zap.Int("port", port), zap.Error(err))
			}
		}(port)
	}

	for _, tlsCfg := range cfg.TLS {
		srv := &http.Server{Addr: fmt.Sprintf(":%d", tlsCfg.Port), Handler: mux}
		servers = append(servers, srv)
		go func(tlsCfg config.TLSCert) {
			log.Info("listening (tls)", zap.Int("port", tlsCfg.Port))
			if err := srv.ListenAndServeTLS(tlsCfg.Cert, tlsCfg.Key); err != nil && err != http.ErrServerClosed {
				log.Fatal("tls listener failed", zap.Int("port", tlsCfg.Port), zap.Error(err))
			}
		}(tlsCfg)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("server shutdown error", zap.Error(err))
		}
	}
	return nil
}
