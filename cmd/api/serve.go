package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Byak-ko/Qualification-work-sub001/internal/database"
	"github.com/Byak-ko/Qualification-work-sub001/internal/export"
	"github.com/Byak-ko/Qualification-work-sub001/internal/metrics"
	"github.com/Byak-ko/Qualification-work-sub001/internal/middleware"
	"github.com/Byak-ko/Qualification-work-sub001/internal/router"
	"github.com/Byak-ko/Qualification-work-sub001/internal/services"
	"github.com/Byak-ko/Qualification-work-sub001/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func serveCommand(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(ctx, a)
		},
	}

	cmd.Flags().String("port", "", "port to listen on")
	cmd.Flags().Bool("migrate", true, "apply schema migrations and seed the admin before serving")
	_ = a.v.BindPFlag("PORT", cmd.Flags().Lookup("port"))
	_ = a.v.BindPFlag("AUTO_MIGRATE", cmd.Flags().Lookup("migrate"))
	return cmd
}

func serve(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	if a.v.GetBool("AUTO_MIGRATE") {
		if err := database.RunMigrations(db); err != nil {
			return err
		}
		if err := database.SeedAdmin(db, logger); err != nil {
			return err
		}
	}

	redisClient, err := session.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	workflowMetrics, err := metrics.NewWorkflowMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	store, err := services.NewStorageService(ctx, cfg)
	if err != nil {
		return err
	}
	search := services.NewSearchService(cfg, logger)
	notifier := services.NewEmailNotifier(services.NewEmailService(cfg), cfg.SMTPFromName, cfg.AppURL, logger, workflowMetrics)

	engine := router.Setup(cfg, router.Deps{
		DB:       db,
		Redis:    redisClient,
		Gatherer: registry,

		Issuer:    session.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAccessExpiry),
		Blocklist: session.NewBlocklist(redisClient),
		Limiter:   middleware.NewRateLimiter(redisClient, logger),

		Users:      services.NewUserService(db),
		Ratings:    services.NewRatingService(db, notifier, search, workflowMetrics, logger),
		Responses:  services.NewResponseService(db, notifier, workflowMetrics, logger),
		Reviews:    services.NewReviewService(db, notifier, workflowMetrics, logger),
		Reports:    services.NewReportService(db, export.NewChromeRenderer(cfg.ChromePath), logger),
		Documents:  services.NewDocumentService(db, store, cfg.AppURL, cfg.UploadMaxBytes, logger),
		Activities: services.NewActivityService(db),
		Search:     search,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
