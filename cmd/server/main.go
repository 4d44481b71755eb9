package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/aria/internal/config"
	"github.com/me/aria/internal/gateway"
	"github.com/me/aria/internal/logging"
	"github.com/me/aria/internal/media"
	"github.com/me/aria/internal/resource"
	"github.com/me/aria/internal/store"
)

func main() {
	configFile := flag.String("config", "", "Path to server config file (YAML)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	logFormat := flag.String("log-format", "", "Log format: text, json (overrides config)")
	dbPath := flag.String("db", "", "Database path (overrides config)")
	ytdlp := flag.String("yt-dlp", "yt-dlp", "yt-dlp binary for song acquisition (empty to disable)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	cfg := config.DefaultServerConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "aria.db"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	st, err := store.NewSQLiteStore(cfg.DBPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", cfg.DBPath)

	lib, err := media.NewLibrary(cfg.SongsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open song library: %v\n", err)
		os.Exit(1)
	}

	resources := resource.NewStore(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go resources.RunSweeper(ctx, time.Minute)

	opts := []gateway.Option{gateway.WithShutdown(stop)}
	if *ytdlp != "" {
		opts = append(opts, gateway.WithFetcher(media.NewYTDLPFetcher(*ytdlp, logger)))
	}

	srv := gateway.New(cfg, st, resources, lib, logger, opts...)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	go func() {
		var err error
		if cfg.TLSEnabled() {
			logger.Info("server starting", "addr", cfg.Addr, "tls", true)
			err = httpServer.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			logger.Info("server starting", "addr", cfg.Addr)
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
