package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sneakerhub/storefront/internal/di"
	"github.com/sneakerhub/storefront/internal/handlers"
	"github.com/sneakerhub/storefront/internal/platform/config"
	"github.com/sneakerhub/storefront/internal/platform/idempotency"
	"github.com/sneakerhub/storefront/internal/platform/observability"
	"github.com/sneakerhub/storefront/internal/platform/secrets"
	"github.com/sneakerhub/storefront/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	secretOpts := []secrets.Option{
		secrets.WithProject(secretProjectFromEnv()),
		secrets.WithLogger(logger.Named("secrets")),
	}
	if path := strings.TrimSpace(os.Getenv("STOREFRONT_SECRET_FALLBACK_FILE")); path != "" {
		secretOpts = append(secretOpts, secrets.WithFallbackFile(path))
	}
	resolver, err := secrets.NewResolver(ctx, secretOpts...)
	if err != nil {
		logger.Fatal("failed to initialise secret resolver", zap.Error(err))
	}
	defer func() {
		if err := resolver.Close(); err != nil {
			logger.Warn("secret resolver close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(resolver))
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(cfg, startedAt)
	metrics := observability.NewMetrics()

	container, err := di.NewContainer(ctx, cfg,
		di.WithLogger(baseLogger),
		di.WithMetrics(metrics),
		di.WithBuildInfo(buildInfo),
	)
	if err != nil {
		logger.Fatal("failed to initialise dependencies", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	runCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	if err := container.Start(runCtx); err != nil {
		logger.Fatal("failed to start background workers", zap.Error(err))
	}

	router := handlers.NewRouter(routerOptions(container, buildInfo)...)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront api listening",
			zap.String("cartBackend", cfg.Cart.Backend),
			zap.String("locale", cfg.Locale),
			zap.String("origin", container.Origin()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")
	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func routerOptions(c *di.Container, build services.BuildInfo) []handlers.Option {
	cfg := c.Config

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(c.Logger.Named("http")),
		observability.TraceMiddleware(traceProjectID(cfg)),
		observability.RecoveryMiddleware(c.Logger.Named("http")),
		observability.RequestLoggerMiddleware(),
		c.Metrics.Middleware(),
		handlers.LocaleMiddleware(cfg.Locale),
	}

	idempotencyMiddleware := idempotency.Middleware(
		c.Idempotency,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
	)

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(
			handlers.WithHealthSystemService(c.Services.System),
			handlers.WithHealthBuildInfo(build),
		)),
		handlers.WithMetricsHandler(c.Metrics.Handler()),
		handlers.WithDeviceMiddlewares(c.Devices.RequireDevice(cfg.Device.TokenHeader)),
		handlers.WithPublicRoutes(handlers.NewProductHandlers(c.Services.Catalog).Routes),
		handlers.WithDeviceRoutes(handlers.NewDeviceHandlers(c.Devices).Routes),
		handlers.WithCartRoutes(handlers.NewCartHandlers(
			c.Services.Cart,
			handlers.WithCartPriceFormatter(c.Formatter),
		).Routes),
		handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(
			c.Services.Checkout,
			handlers.WithCheckoutIdempotency(idempotencyMiddleware),
		).Routes),
	}

	if c.Services.Account != nil {
		opts = append(opts,
			handlers.WithAccountRoutes(handlers.NewAccountHandlers(
				c.Auth,
				c.Services.Account,
				handlers.WithAccountLocalizer(c.Localizer),
			).Routes),
			handlers.WithMeRoutes(handlers.NewMeHandlers(c.Auth, c.Services.Account).Routes),
		)
	}
	return opts
}

func buildInfoFromEnv(cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("STOREFRONT_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("STOREFRONT_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firestore.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firebase.ProjectID)
}

func secretProjectFromEnv() string {
	for _, key := range []string{"STOREFRONT_SECRETS_PROJECT_ID", "STOREFRONT_FIREBASE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}
