// Package tracing настраивает OpenTelemetry для сервиса: OTLP/gRPC экспортёр,
// глобальный TracerProvider и propagator.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
)

const shutdownTimeout = 10 * time.Second

// Config: параметры экспорта спанов. Пустой Endpoint выключает трассировку.
type Config struct {
	Endpoint       string
	Insecure       bool
	SampleRatio    float64
	ServiceName    string
	ServiceVersion string
}

// Enabled сообщает, задан ли коллектор.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// Provider владеет TracerProvider и отвечает за его остановку.
type Provider struct {
	provider *sdktrace.TracerProvider
	logger   *log.Entry
}

// New создаёт провайдер с OTLP/gRPC экспортёром и делает его глобальным.
// При выключенной трассировке возвращает провайдер, отдающий глобальный no-op.
func New(ctx context.Context, cfg Config, logger *log.Entry) (*Provider, error) {
	if logger == nil {
		logger = log.WithField("component", "tracing")
	}
	if !cfg.Enabled() {
		logger.Debug("tracing disabled, spans go to the no-op provider")
		return &Provider{logger: logger}, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(strings.TrimSpace(cfg.Endpoint))}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	p, err := NewWithExporter(cfg, exporter, logger)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, err
	}

	logger.WithFields(log.Fields{
		"endpoint":     cfg.Endpoint,
		"sample_ratio": cfg.SampleRatio,
	}).Info("tracing enabled")
	return p, nil
}

// NewWithExporter собирает провайдер поверх готового экспортёра.
// Спаны отправляются пачками; провайдер становится глобальным.
func NewWithExporter(cfg Config, exporter sdktrace.SpanExporter, logger *log.Entry) (*Provider, error) {
	if exporter == nil {
		return nil, errors.New("tracing: exporter is nil")
	}
	if logger == nil {
		logger = log.WithField("component", "tracing")
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build tracing resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{provider: provider, logger: logger}, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// Tracer возвращает именованный tracer провайдера или глобального no-op.
func (p *Provider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p == nil || p.provider == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return p.provider.Tracer(name, opts...)
}

// Enabled сообщает, экспортируются ли спаны.
func (p *Provider) Enabled() bool {
	return p != nil && p.provider != nil
}

// ForceFlush немедленно выгружает накопленные спаны.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.provider.ForceFlush(ctx)
}

// Shutdown выгружает оставшиеся спаны и останавливает экспортёр.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := p.provider.Shutdown(shutdownCtx); err != nil {
		p.logger.WithError(err).Warn("tracer provider shutdown failed")
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	p.logger.Debug("tracer provider stopped")
	return nil
}
