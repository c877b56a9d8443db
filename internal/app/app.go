// Package app собирает сервис витрины: хранилища, сессии корзин, gRPC API,
// outbox-воркер и HTTP-эндпоинты метрик и health.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/session"
	"github.com/vladislavdragonenkov/storefront/internal/tracing"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const tracerName = "github.com/vladislavdragonenkov/storefront/internal/cart"

// Run запускает сервис и блокируется до отмены ctx или падения одного из серверов.
// При штатной остановке возвращает ctx.Err().
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	if errs := cfg.Validate(); len(errs) > 0 {
		return errors.Join(errs...)
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	verifier, err := initVerifier(ctx, cfg, logger)
	if err != nil {
		return err
	}

	cartMetrics := metrics.NewCartMetrics()

	catalogOptions := []catalog.Option{
		catalog.WithLogger(logger.WithField("layer", "catalog")),
		catalog.WithMetrics(cartMetrics),
	}
	if cache := initCatalogCache(ctx, cfg, deps, logger); cache != nil {
		catalogOptions = append(catalogOptions, catalog.WithCache(cache))
	}
	catalogService := catalog.NewService(deps.catalog, catalogOptions...)

	tracer, err := initTracing(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer shutdownTracing(tracer, cfg.ShutdownTimeout, logger)

	lines := cart.NewTracingLineStore(deps.lines, tracer.Tracer(tracerName))
	sessions := session.NewManager(lines,
		session.WithLogger(logger.WithField("layer", "session")),
		session.WithMetrics(cartMetrics),
		session.WithIdleTTL(cfg.SessionIdleTTL),
		session.WithCartOptions(
			cart.WithLogger(logger.WithField("layer", "cart")),
			cart.WithMetrics(cartMetrics),
		),
	)
	reaper := session.NewReaper(sessions,
		session.WithReaperLogger(logger.WithField("layer", "session-reaper")),
		session.WithSweepInterval(cfg.SessionSweepInterval),
	)

	checkoutService := checkout.NewService(deps.orders, deps.outbox,
		checkout.WithLogger(logger.WithField("layer", "checkout")),
		checkout.WithMetrics(cartMetrics),
		checkout.WithDeliveryCharge(cfg.DeliveryCharge),
	)

	// Ошибка producer уже залогирована, сервис работает без публикации событий.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	worker := newOutboxWorker(cfg, deps, kafkaProducer, logger, outbox.WithMetrics(metrics.NewOutboxMetrics()))
	if worker == nil {
		logger.Warn("kafka is not configured, order events stay in the outbox")
	}

	service := grpcsvc.NewStorefrontService(
		catalogService,
		sessions,
		checkoutService,
		auth.ParseAdmins(cfg.AdminEmails),
		logger.WithField("layer", "grpc"),
	)

	grpcMetrics := registerGRPCMetrics(logger)
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcMetrics.UnaryServerInterceptor(),
		auth.UnaryServerInterceptor(verifier, logger.WithField("layer", "auth")),
	))
	grpcsvc.RegisterStorefrontServiceServer(grpcServer, service)
	grpcMetrics.InitializeMetrics(grpcServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcsvc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	for name, checker := range deps.checkers {
		healthHandler.RegisterChecker(name, checker)
	}

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	metricsListener, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		_ = grpcListener.Close()
		return fmt.Errorf("listen metrics: %w", err)
	}
	metricsSrv := newMetricsServer(healthHandler)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Infof("gRPC сервер слушает %s", grpcListener.Addr())
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		logger.Infof("метрики и health checks доступны по адресу %s", metricsListener.Addr())
		if err := metricsSrv.Serve(metricsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics serve: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		reaper.Run(groupCtx)
		return nil
	})

	if worker != nil {
		group.Go(func() error {
			return worker.Run(groupCtx)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("получен сигнал остановки, останавливаем серверы")
		healthServer.Shutdown()
		stopGRPC(grpcServer, cfg.ShutdownTimeout, logger)
		shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// registerGRPCMetrics регистрирует метрики gRPC сервера; повторный запуск в том же
// процессе переиспользует уже зарегистрированный коллектор.
func registerGRPCMetrics(logger *log.Entry) *promgrpc.ServerMetrics {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				return existing
			}
		}
		logger.WithError(err).Warn("failed to register grpc metrics")
	}
	return grpcMetrics
}

// newMetricsServer собирает HTTP-обработчики /metrics, /healthz, /livez и /readyz.
func newMetricsServer(healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	return &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// stopGRPC пытается остановить сервер штатно и обрывает соединения по таймауту.
func stopGRPC(server *grpc.Server, timeout time.Duration, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
		<-stopped
	}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}

func initTracing(ctx context.Context, cfg Config, logger *log.Entry) (*tracing.Provider, error) {
	provider, err := tracing.New(ctx, tracing.Config{
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
		SampleRatio:    cfg.TraceSampleRatio,
		ServiceName:    "storefront",
		ServiceVersion: version.GetVersion(),
	}, logger.WithField("layer", "tracing"))
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	return provider, nil
}

// shutdownTracing выгружает оставшиеся спаны; ctx сервиса к этому моменту уже отменён.
func shutdownTracing(provider *tracing.Provider, timeout time.Duration, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := provider.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("tracing shutdown failed")
	}
}
