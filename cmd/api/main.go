package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"inkwell/api/internal/app"
	"inkwell/api/internal/archive"
	"inkwell/api/internal/config"
	"inkwell/api/internal/email"
	"inkwell/api/internal/export"
	"inkwell/api/internal/logger"
	"inkwell/api/internal/session"
	"inkwell/api/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger.Init()
	defer logger.Sync()
	log := logger.Sugar

	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalw("migrations failed", "error", err)
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		log.Fatalw("failed to create archive dir", "error", err)
	}

	dataStore := store.NewPostgresStore(db)
	archiveService := archive.New(cfg.ArchiveDir)

	var emailService *email.Service
	if cfg.SMTPHost != "" {
		emailService = email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
		log.Infow("email sending enabled", "host", cfg.SMTPHost)
	} else {
		log.Infow("email sending disabled, SMTP not configured")
	}

	var artifacts *export.ArtifactStore
	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		artifacts, err = export.NewArtifactStore(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
		if err != nil {
			log.Fatalw("object storage connection failed", "error", err)
		}
		if err := artifacts.EnsureBucket(ctx); err != nil {
			log.Fatalw("object storage bucket check failed", "error", err)
		}
		log.Infow("export artifact storage enabled", "bucket", cfg.S3Bucket)
	}
	exportService := export.NewService(dataStore, artifacts)

	service := app.New(cfg, dataStore, archiveService, exportService, emailService)

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalw("redis connection failed", "error", err)
		}
		defer redisStore.Close()
		service.UseSessionStore(redisStore)
		log.Infow("using Redis for refresh token storage")
	} else {
		log.Infow("using PostgreSQL for refresh token storage")
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infow("Inkwell API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("shutdown error", "error", err)
	}
}
