// Command aegis-launcher supervises the dashboard server process and
// serves a loading page until it reports healthy, then reverse-proxies
// all traffic to it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"aegis/internal/config"
	"aegis/internal/infrastructure"
	"aegis/internal/supervisor"
)

const loadingPage = `<!DOCTYPE html>
<html>
<head>
  <title>AEGIS - Starting</title>
  <meta http-equiv="refresh" content="2">
  <style>
    body { font-family: sans-serif; display: flex; justify-content: center;
           align-items: center; height: 100vh; margin: 0;
           background: #1f2937; color: #f9fafb; }
    .box { text-align: center; }
    .spinner { border: 4px solid #374151; border-top: 4px solid #60a5fa;
               border-radius: 50%; width: 48px; height: 48px;
               animation: spin 1.2s linear infinite; margin: 0 auto 16px; }
    @keyframes spin { to { transform: rotate(360deg); } }
  </style>
</head>
<body>
  <div class="box">
    <div class="spinner"></div>
    <p>Starting the analytics server&hellip;</p>
  </div>
</body>
</html>`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aegis-launcher: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	target, err := url.Parse(cfg.Supervisor.TargetURL)
	if err != nil {
		return fmt.Errorf("parse target url: %w", err)
	}

	sup := supervisor.New(logger, cfg.Supervisor)
	proxy := httputil.NewSingleHostReverseProxy(target)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !sup.Ready() {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, loadingPage)
			return
		}
		proxy.ServeHTTP(w, r)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Supervisor.ListenPort),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("launcher listening",
			slog.String("addr", server.Addr),
			slog.String("target", cfg.Supervisor.TargetURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("launcher server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sup.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := sup.Shutdown(shutdownCtx); err != nil {
			logger.Warn("child shutdown failed", slog.String("error", err.Error()))
		}
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if cerr := infrastructure.CloseLogFile(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
