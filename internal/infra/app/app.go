package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/config"
	kafkainfra "github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/kafka"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/logger"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/security"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/telemetry"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/transport/http/middleware"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/transport/http/routes"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/usecase"
)

// Services are the security components embedding processes call into.
type Services struct {
	Passwords *security.PasswordSecurity
	Audit     *usecase.AuditLogger
	Lockouts  *usecase.LockoutService
}

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	storage  *storage
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
	services Services
}

// New wires storage, alerting, metrics and the security services from cfg.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return newApplication(ctx, cfg, log)
}

func newApplication(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*Application, error) {
	a := &Application{cfg: cfg, logger: log}

	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		a.tracer = tp
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	securityMetrics, err := telemetry.NewSecurityMetrics(telemetry.SecurityMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init security metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		a.shutdownTracer()
		return nil, err
	}
	a.storage = store

	hasher, err := security.NewHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}, cfg.Argon2.MaxConcurrent)
	if err != nil {
		a.release()
		return nil, fmt.Errorf("configure argon2: %w", err)
	}
	hasher.WithMetrics(securityMetrics)

	passwords, err := security.NewPasswordSecurity(cfg.PasswordPolicy.ToDomain(), hasher)
	if err != nil {
		a.release()
		return nil, fmt.Errorf("init password security: %w", err)
	}
	passwords.WithLogger(log)

	audit := usecase.NewAuditLogger(store.audit, log).
		WithMetrics(securityMetrics).
		WithSummaryWindow(cfg.Audit.SummaryWindow)
	if cfg.Audit.AlertsEnabled {
		audit.WithAlertPublisher(a.alertPublisher(log))
	}

	lockouts, err := usecase.NewLockoutService(store.lockouts, audit, cfg.LockoutPolicy.ToDomain(), log)
	if err != nil {
		a.release()
		return nil, fmt.Errorf("init lockout service: %w", err)
	}
	lockouts.WithMetrics(securityMetrics)

	a.services = Services{Passwords: passwords, Audit: audit, Lockouts: lockouts}

	deps := routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Metrics:  httpMetrics,
		Gatherer: registry,
	}
	if store.pool != nil {
		deps.Database = store.pool
	}
	if store.redis != nil {
		deps.Cache = store.redis
	}
	a.engine = routes.Register(deps)

	return a, nil
}

func (a *Application) alertPublisher(log *zap.Logger) port.AlertPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, using stub alert publisher")
		return kafkainfra.NewStubAlertPublisher(log)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub alert publisher", zap.Error(err))
		return kafkainfra.NewStubAlertPublisher(log)
	}
	a.producer = producer
	return kafkainfra.NewAlertPublisher(producer, a.cfg.App, log)
}

// Services returns the wired security services.
func (a *Application) Services() Services {
	return a.services
}

// Handler returns the ops HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.engine
}

// Run serves the ops endpoints until ctx is cancelled, then shuts everything down.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.release()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting security service",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		timeout := a.cfg.App.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// Close releases connections without serving. Run calls it on exit.
func (a *Application) Close() {
	a.release()
}

func (a *Application) release() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
		a.producer = nil
	}
	if a.storage != nil {
		a.storage.close()
		a.storage = nil
	}
	a.shutdownTracer()
}

func (a *Application) shutdownTracer() {
	if a.tracer == nil {
		return
	}
	if err := a.tracer.Shutdown(context.Background()); err != nil {
		a.logger.Warn("shutdown tracer", zap.Error(err))
	}
	a.tracer = nil
}
