package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/storefront/internal/analytics"
	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/consumer"
	api "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/session"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	zl, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	var log logging.Logger = zl

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() { _ = tp.Shutdown(context.Background()) }()

	st, closeStorage, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStorage()

	authDeps, err := buildAuthDeps(cfg, log)
	if err != nil {
		return err
	}
	if cfg.UsesDefaultSecret() {
		log.Warn(ctx, "session tokens are signed with the development secret, set JWT_SECRET")
	}

	var tracker session.Tracker = analytics.LogTracker{Log: log}
	if len(cfg.Kafka.Brokers) > 0 {
		kt := analytics.NewKafkaTracker(cfg.Kafka.AnalyticsTopic, log, cfg.Kafka.Brokers...)
		defer func() { _ = kt.Close() }()
		tracker = kt
	}

	registry := session.NewRegistry(session.Deps{
		Storage: st,
		Tracker: tracker,
		Auth:    authDeps,
		IdleTTL: cfg.Session.IdleTTL,
		Log:     log,
	})
	go registry.Run(ctx, cfg.Session.SweepInterval)

	if len(cfg.Kafka.Brokers) > 0 {
		c := consumer.NewConsumer(registry, log, cfg.Kafka.CheckoutTopic, cfg.Kafka.GroupID, cfg.Kafka.Brokers...)
		defer c.Close()
		go c.Run(ctx)
		log.Info(ctx, "checkout consumer started", "topic", cfg.Kafka.CheckoutTopic)
	}

	server := api.NewServer(api.Options{
		Sessions: registry,
		Catalog: catalog.NewClient(catalog.Options{
			BaseURL: cfg.Catalog.BaseURL,
			Timeout: cfg.Catalog.Timeout,
			Log:     log,
		}),
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		AuthRate:           authRate(cfg.RateLimit.AuthPerMinute),
		AuthBurst:          cfg.RateLimit.AuthBurst,
		LimiterIdleTTL:     cfg.Session.IdleTTL,
		Log:                log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(server.Router(), "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "storefront starting", "port", cfg.HTTPPort, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info(context.Background(), "server exited")
	return nil
}

func buildAuthDeps(cfg *config.Config, log logging.Logger) (auth.Deps, error) {
	var policy auth.Policy = auth.EscalatingPolicy{}
	if cfg.Auth.LockoutPolicy == config.PolicyFixed {
		policy = auth.NewFixedPolicy()
	}

	var verifier auth.Verifier = auth.AcceptAllVerifier{}
	if !cfg.Auth.AcceptAll {
		pv, err := auth.NewPasswordVerifier(cfg.Auth.DemoAccounts, bcrypt.DefaultCost)
		if err != nil {
			return auth.Deps{}, err
		}
		verifier = pv
	}

	return auth.Deps{
		Policy:   policy,
		Verifier: verifier,
		Tokens:   auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, nil),
		Sender:   auth.LogSender{Log: log},
	}, nil
}

func authRate(perMinute int) rate.Limit {
	if perMinute <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Minute / time.Duration(perMinute))
}
