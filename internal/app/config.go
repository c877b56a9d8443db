package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory    = "memory"
	StorageDriverPostgres  = "postgres"
	StorageDriverFirestore = "firestore"
)

// Режимы проверки bearer-токенов.
const (
	AuthModeFirebase = "firebase"
	AuthModeInsecure = "insecure"
)

// Config описывает настройки запуска сервиса витрины.
type Config struct {
	GRPCAddr    string
	MetricsAddr string
	LogLevel    string

	StorageDriver        string
	PostgresDSN          string
	PostgresAutoMigrate  bool
	FirestoreProject     string
	FirestoreCredentials string

	AuthMode    string
	AdminEmails string

	RedisAddr       string
	CatalogCacheTTL time.Duration

	KafkaBrokers       []string
	KafkaTopic         string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	SessionIdleTTL       time.Duration
	SessionSweepInterval time.Duration

	// Пустой OTLPEndpoint выключает экспорт спанов.
	OTLPEndpoint     string
	OTLPInsecure     bool
	TraceSampleRatio float64

	DeliveryCharge  decimal.Decimal
	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска в памяти.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:             ":50051",
		MetricsAddr:          ":9090",
		LogLevel:             "info",
		StorageDriver:        StorageDriverMemory,
		PostgresAutoMigrate:  true,
		AuthMode:             AuthModeInsecure,
		CatalogCacheTTL:      5 * time.Minute,
		KafkaTopic:           kafka.TopicOrderEvents,
		OutboxPollInterval:   time.Second,
		OutboxBatchSize:      100,
		OutboxMaxAttempts:    3,
		OutboxRetryDelay:     50 * time.Millisecond,
		SessionIdleTTL:       30 * time.Minute,
		SessionSweepInterval: time.Minute,
		OTLPInsecure:         true,
		TraceSampleRatio:     1,
		DeliveryCharge:       checkout.DefaultDeliveryCharge,
		ShutdownTimeout:      5 * time.Second,
	}
}

var errConfigInvalid = errors.New("invalid config")

// Validate проверяет согласованность настроек и возвращает все найденные проблемы.
func (c Config) Validate() []error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{errConfigInvalid}, args...)...))
	}

	if strings.TrimSpace(c.GRPCAddr) == "" {
		add("grpc address is required")
	}
	if strings.TrimSpace(c.MetricsAddr) == "" {
		add("metrics address is required")
	}
	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			add("log level %q", c.LogLevel)
		}
	}

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			add("postgres dsn is required for storage driver %q", c.StorageDriver)
		}
	case StorageDriverFirestore:
		if strings.TrimSpace(c.FirestoreProject) == "" {
			add("firestore project is required for storage driver %q", c.StorageDriver)
		}
	default:
		add("unsupported storage driver %q", c.StorageDriver)
	}

	switch c.AuthMode {
	case AuthModeInsecure:
	case AuthModeFirebase:
		if strings.TrimSpace(c.FirestoreProject) == "" {
			add("firebase auth requires a project id")
		}
	default:
		add("unsupported auth mode %q", c.AuthMode)
	}

	if c.DeliveryCharge.IsNegative() {
		add("delivery charge must be non-negative")
	}
	if c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 {
		add("outbox batch size and max attempts must be positive")
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		add("trace sample ratio %v must be within [0, 1]", c.TraceSampleRatio)
	}
	return errs
}
