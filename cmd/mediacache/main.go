// Package main is the entry point for the mediacache transform cache server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/musefactory/mediacache/internal/config"
	"github.com/musefactory/mediacache/internal/encoder"
	"github.com/musefactory/mediacache/internal/ledger"
	"github.com/musefactory/mediacache/internal/logging"
	"github.com/musefactory/mediacache/internal/metrics"
	"github.com/musefactory/mediacache/internal/notify"
	"github.com/musefactory/mediacache/internal/origin"
	"github.com/musefactory/mediacache/internal/pipeline"
	"github.com/musefactory/mediacache/internal/server"
	"github.com/musefactory/mediacache/internal/storage"
	"github.com/musefactory/mediacache/internal/tenant"
	"github.com/musefactory/mediacache/internal/transform"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	port := flag.Int("port", 0, "override listening port (default: from config or 3000)")
	host := flag.String("host", "", "override listening host (default: from config or 0.0.0.0)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (default: from config or info)")
	logFormat := flag.String("log-format", "", "log format: text, json (default: from config or text)")
	shutdownTimeout := flag.Int("shutdown-timeout", 0, "graceful shutdown timeout in seconds (default: from config or 30)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command-line flags override config file values.
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if *shutdownTimeout != 0 {
		cfg.Server.ShutdownTimeout = *shutdownTimeout
	}

	// Initialize structured logging.
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	metrics.Register()

	// Image encoder engine.
	var imageEnc encoder.Encoder
	switch cfg.Encoder.Engine {
	case "native":
		imageEnc = encoder.NewNativeEncoder()
		slog.Info("Image encoder initialized", "engine", "native")
	default:
		encoder.StartVips()
		defer encoder.StopVips()
		imageEnc = encoder.NewVipsEncoder()
		slog.Info("Image encoder initialized", "engine", "vips")
	}

	// Video transcoding is opt-in; ffmpeg must be present when enabled.
	var videoEnc encoder.Encoder
	if cfg.Encoder.VideoEnabled {
		v, err := encoder.NewVideoEncoder(cfg.Encoder.FFmpegPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize video encoder: %v\n", err)
			os.Exit(1)
		}
		videoEnc = v
		slog.Info("Video encoder initialized")
	}

	// Configure every storage provider with credentials; the selector
	// picks per request.
	var stores []storage.ObjectStore
	if cfg.Storage.S3.Bucket != "" {
		s3Store, err := storage.NewS3Store(context.Background(), storage.S3Options{
			Bucket:    cfg.Storage.S3.Bucket,
			Region:    cfg.Storage.S3.Region,
			Endpoint:  cfg.Storage.S3.Endpoint,
			AccessKey: cfg.Storage.S3.AccessKey,
			SecretKey: cfg.Storage.S3.SecretKey,
			PublicURL: cfg.Storage.S3.PublicURL,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize S3 store: %v\n", err)
			os.Exit(1)
		}
		stores = append(stores, s3Store)
		slog.Info("Storage provider initialized", "provider", "s3", "bucket", cfg.Storage.S3.Bucket, "endpoint", cfg.Storage.S3.Endpoint)
	}
	if cfg.Storage.Local.RootDir != "" {
		localStore, err := storage.NewLocalStore(cfg.Storage.Local.RootDir, cfg.Storage.Local.PublicURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize local store: %v\n", err)
			os.Exit(1)
		}
		// Clean orphan temp files from interrupted writes.
		if err := localStore.CleanTempFiles(); err != nil {
			slog.Warn("Failed to clean temp files", "error", err)
		}
		stores = append(stores, localStore)
		slog.Info("Storage provider initialized", "provider", "local", "root", cfg.Storage.Local.RootDir)
	}
	if cfg.Storage.GCS.Bucket != "" {
		gcsStore, err := storage.NewGCSStore(context.Background(), cfg.Storage.GCS.Bucket, cfg.Storage.GCS.PublicURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize GCS store: %v\n", err)
			os.Exit(1)
		}
		stores = append(stores, gcsStore)
		slog.Info("Storage provider initialized", "provider", "gcs", "bucket", cfg.Storage.GCS.Bucket)
	}

	selector := storage.NewSelector(stores...)
	if !selector.Configured() {
		fmt.Fprintf(os.Stderr, "no storage provider configured\n")
		os.Exit(1)
	}

	// Usage ledger (optional).
	var usage *ledger.Ledger
	if cfg.Ledger.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Ledger.Path), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create ledger directory: %v\n", err)
			os.Exit(1)
		}
		usage, err = ledger.Open(cfg.Ledger.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open usage ledger: %v\n", err)
			os.Exit(1)
		}
		defer usage.Close()
		slog.Info("Usage ledger opened", "path", cfg.Ledger.Path)
	}

	// Admin alerts (optional).
	var alerter notify.Alerter = notify.Nop{}
	if cfg.Notify.SMTPHost != "" && cfg.Notify.AdminEmail != "" {
		alerter = notify.NewSMTPAlerter(
			cfg.Notify.SMTPHost, cfg.Notify.SMTPPort,
			cfg.Notify.Username, cfg.Notify.Password,
			cfg.Notify.From, cfg.Notify.AdminEmail)
		slog.Info("Admin alerts enabled", "smtp_host", cfg.Notify.SMTPHost, "admin", cfg.Notify.AdminEmail)
	}

	pipe := pipeline.New(pipeline.Options{
		Tenants:  tenant.NewResolver(cfg.Tenants.Allowed, cfg.Tenants.Default),
		Norm:     transform.NewNormalizer(cfg.Limits.MaxWidth, cfg.Limits.DefaultQuality, cfg.Encoder.QualityTiers),
		Fetcher:  origin.NewFetcher(cfg.Limits.MaxSourceBytes, time.Duration(cfg.Limits.FetchTimeout)*time.Second),
		Selector: selector,
		Image:    imageEnc,
		Video:    videoEnc,
		Usage:    usage,
		Alerter:  alerter,
		Provider: cfg.Storage.Provider,
	})

	srv, err := server.New(cfg,
		server.WithPipeline(pipe),
		server.WithSelector(selector),
		server.WithLedger(usage),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create server: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	// Start the server in a goroutine so we can handle shutdown signals.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("mediacache listening", "addr", addr)
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Received signal, shutting down", "signal", sig)

		// Give in-flight requests time to complete.
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Shutdown error", "error", err)
		}
		slog.Info("Server stopped")

	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}
}
