package tracing

import (
	"context"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func loggerForTests() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	return logger.WithField("component", "test")
}

// keepGlobalProvider возвращает глобальный провайдер после теста.
func keepGlobalProvider(t *testing.T) {
	t.Helper()
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
}

func TestNewWithExporter_RecordsLineStoreSpans(t *testing.T) {
	keepGlobalProvider(t)

	exporter := tracetest.NewInMemoryExporter()
	p, err := NewWithExporter(Config{ServiceName: "storefront-test", ServiceVersion: "test", SampleRatio: 1}, exporter, loggerForTests())
	require.NoError(t, err)
	require.True(t, p.Enabled())

	ctx := context.Background()
	lines := cart.NewTracingLineStore(memory.NewLineStore(), p.Tracer("storefront/cart"))

	_, err = lines.Insert(ctx, domain.CartLine{ProductRef: "p-1", Quantity: 1, Owner: "buyer@example.com"})
	require.NoError(t, err)
	_, err = lines.Query(ctx, "buyer@example.com")
	require.NoError(t, err)
	require.ErrorIs(t, lines.Update(ctx, "missing", domain.QuantityPatch(2)), domain.ErrLineNotFound)

	require.NoError(t, p.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)
	require.Equal(t, "LineStore.Insert", spans[0].Name)
	require.Equal(t, "LineStore.Query", spans[1].Name)
	require.Equal(t, "LineStore.Update", spans[2].Name)
	require.Equal(t, codes.Error, spans[2].Status.Code)

	var service string
	for _, attr := range spans[0].Resource.Attributes() {
		if attr.Key == "service.name" {
			service = attr.Value.AsString()
		}
	}
	require.Equal(t, "storefront-test", service)

	require.NoError(t, p.Shutdown(ctx))
}

func TestNewWithExporter_GlobalProviderIsInstalled(t *testing.T) {
	keepGlobalProvider(t)

	exporter := tracetest.NewInMemoryExporter()
	p, err := NewWithExporter(Config{ServiceName: "storefront-test", SampleRatio: 1}, exporter, loggerForTests())
	require.NoError(t, err)

	// Декоратор без явного tracer берёт глобальный провайдер.
	lines := cart.NewTracingLineStore(memory.NewLineStore(), nil)
	_, err = lines.Query(context.Background(), "buyer@example.com")
	require.NoError(t, err)

	require.NoError(t, p.Shutdown(context.Background()))
	require.Len(t, exporter.GetSpans(), 1)
}

func TestNewWithExporter_NilExporter(t *testing.T) {
	_, err := NewWithExporter(Config{}, nil, loggerForTests())
	require.Error(t, err)
}

func TestNew_Disabled(t *testing.T) {
	keepGlobalProvider(t)

	p, err := New(context.Background(), Config{Endpoint: "  "}, loggerForTests())
	require.NoError(t, err)
	require.False(t, p.Enabled())
	require.NotNil(t, p.Tracer("storefront/cart"))
	require.NoError(t, p.ForceFlush(context.Background()))
	require.NoError(t, p.Shutdown(context.Background()))

	var nilProvider *Provider
	require.NoError(t, nilProvider.Shutdown(context.Background()))
}

func TestNew_OTLPExporter(t *testing.T) {
	keepGlobalProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Экспортёр подключается лениво: коллектор для создания не нужен.
	p, err := New(ctx, Config{Endpoint: "127.0.0.1:4317", Insecure: true, SampleRatio: 1, ServiceName: "storefront"}, loggerForTests())
	require.NoError(t, err)
	require.True(t, p.Enabled())
	require.NoError(t, p.Shutdown(ctx))
}

func TestSampler(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{ratio: 1, want: "AlwaysOnSampler"},
		{ratio: 2, want: "AlwaysOnSampler"},
		{ratio: 0, want: "AlwaysOffSampler"},
		{ratio: 0.25, want: "TraceIDRatioBased"},
	}

	for _, tc := range cases {
		if got := sampler(tc.ratio).Description(); !strings.Contains(got, tc.want) {
			t.Fatalf("sampler(%v) = %q, want %q inside", tc.ratio, got, tc.want)
		}
	}
}
