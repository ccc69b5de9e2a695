package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/atinyakov/linkcore/internal/config"
	"github.com/atinyakov/linkcore/internal/logger"
)

var buildVersion string
var buildDate string
var buildCommit string

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// hostPolicy allows certificates only for the host of the public base URL.
func hostPolicy(baseURL string) (autocert.HostPolicy, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}
	return autocert.HostWhitelist(u.Hostname()), nil
}

func main() {
	fmt.Printf("Build version: %s\n", orNA(buildVersion))
	fmt.Printf("Build date: %s\n", orNA(buildDate))
	fmt.Printf("Build commit: %s\n", orNA(buildCommit))

	options := config.Parse()

	log := logger.New()
	if err := log.Init(options.LogLevel); err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Starting linkcore", "version", orNA(buildVersion), "logLevel", options.LogLevel)
	zapLogger := log.Component("linkcore")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if options.EnablePprof {
		go func() {
			zapLogger.Info("Starting pprof server", zap.String("addr", "localhost:6060"))
			if err := http.ListenAndServe("localhost:6060", nil); err != nil {
				zapLogger.Error("pprof server error", zap.Error(err))
			}
		}()
	}

	a, err := newApp(ctx, options, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot start", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              options.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	if options.EnableHTTPS {
		policy, err := hostPolicy(options.ResultHostname)
		if err != nil {
			zapLogger.Fatal("cannot configure TLS", zap.Error(err))
		}
		manager := &autocert.Manager{
			Cache:      autocert.DirCache("cache-dir"),
			Prompt:     autocert.AcceptTOS,
			HostPolicy: policy,
		}
		srv.Addr = ":443"
		srv.TLSConfig = manager.TLSConfig()

		go func() {
			zapLogger.Info("Server is running with TLS", zap.String("base", options.ResultHostname))
			serveErr <- srv.ListenAndServeTLS("", "")
		}()
	} else {
		go func() {
			zapLogger.Info("Server is running", zap.String("hostname", options.Port))
			serveErr <- srv.ListenAndServe()
		}()
	}

	select {
	case <-ctx.Done():
		zapLogger.Info("Shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}

	a.Close()
	zapLogger.Info("Server stopped")
}
