package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mroth/livelog"
	"github.com/mroth/livelog/admin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// serveConfig holds the flags of the serve command.
type serveConfig struct {
	port      int
	host      string
	debug     bool
	adminAddr string
	keepAlive time.Duration
}

func serveCmd() *cobra.Command {
	var cfg serveConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a demo server",
		Long: `Run a livelog server with three demo channels:

  console   messages go to the browser's developer console
  document  messages are appended to the page
  clock     the time, pushed every second to all of the above

Every flag falls back to an environment variable when not given.

Examples:
  livelog serve
  livelog serve --port=8080 --admin-addr=127.0.0.1:9090
  LIVELOG_DEBUG=1 livelog serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&cfg.port, "port", "p", envInt("LIVELOG_PORT", livelog.DefaultPort), "Port to serve channels on ($LIVELOG_PORT)")
	flags.StringVarP(&cfg.host, "host", "H", envString("LIVELOG_HOST", livelog.DefaultHost), "Host to bind to ($LIVELOG_HOST)")
	flags.BoolVarP(&cfg.debug, "debug", "d", envBool("LIVELOG_DEBUG"), "Verbose request tracing ($LIVELOG_DEBUG)")
	flags.StringVar(&cfg.adminAddr, "admin-addr", envString("LIVELOG_ADMIN_ADDR", ""), "Address for /metrics and /admin/, disabled if empty ($LIVELOG_ADMIN_ADDR)")
	flags.DurationVar(&cfg.keepAlive, "keepalive", envDuration("LIVELOG_KEEPALIVE", 0), "Keep-alive interval for live streams, 0 disables ($LIVELOG_KEEPALIVE)")

	return cmd
}

func (cfg serveConfig) options(reg prometheus.Registerer) []livelog.ServerOption {
	return []livelog.ServerOption{
		livelog.WithPort(cfg.port),
		livelog.WithHost(cfg.host),
		livelog.WithDebug(cfg.debug),
		livelog.WithKeepAlive(cfg.keepAlive),
		livelog.WithMetrics(reg),
		livelog.WithChannel("console", livelog.Console{}),
		livelog.WithChannel("document", livelog.Document{}),
		livelog.WithChannel("clock", livelog.Document{}),
	}
}

func runServe(cfg serveConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s, err := livelog.NewServer(cfg.options(reg)...)
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}

	var adminSrv *http.Server
	if cfg.adminAddr != "" {
		adminSrv = newAdminServer(cfg.adminAddr, s, reg)
		go func() {
			log.Printf("admin listening on http://%s/admin/", cfg.adminAddr)
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("admin server error: %v", err)
			}
		}()
	}

	go tick(ctx, s)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if adminSrv != nil {
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("admin server shutdown error: %v", err)
		}
	}
	return s.Shutdown(shutdownCtx)
}

func newAdminServer(addr string, s *livelog.Server, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/admin/", admin.AdminHandler(s))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// tick pushes demo traffic to every channel once a second until ctx is done.
func tick(ctx context.Context, s *livelog.Server) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	var n uint64
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			n++
			s.Push("console", "tick", n)
			s.Push("document", fmt.Sprintf("[%d] %s", n, t.Format(time.RFC3339)))
			s.Push("clock", t.Format("3:04:05 pm (MST)"))
		}
	}
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
