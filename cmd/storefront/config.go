package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/app"
)

const (
	envGRPCAddr             = "STOREFRONT_GRPC_ADDR"
	envMetricsAddr          = "STOREFRONT_METRICS_ADDR"
	envLogLevel             = "STOREFRONT_LOG_LEVEL"
	envStorageDriver        = "STOREFRONT_STORAGE_DRIVER"
	envPostgresDSN          = "STOREFRONT_POSTGRES_DSN"
	envPostgresAutoMigrate  = "STOREFRONT_POSTGRES_AUTOMIGRATE"
	envFirestoreProject     = "STOREFRONT_FIRESTORE_PROJECT"
	envFirestoreCredentials = "STOREFRONT_FIRESTORE_CREDENTIALS"
	envAuthMode             = "STOREFRONT_AUTH_MODE"
	envAdminEmails          = "STOREFRONT_ADMIN_EMAILS"
	envRedisAddr            = "STOREFRONT_REDIS_ADDR"
	envCatalogCacheTTL      = "STOREFRONT_CATALOG_CACHE_TTL"
	envKafkaBrokers         = "STOREFRONT_KAFKA_BROKERS"
	envKafkaTopic           = "STOREFRONT_KAFKA_TOPIC"
	envOutboxPollInterval   = "STOREFRONT_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize      = "STOREFRONT_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts    = "STOREFRONT_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay     = "STOREFRONT_OUTBOX_RETRY_DELAY"
	envSessionIdleTTL       = "STOREFRONT_SESSION_IDLE_TTL"
	envSessionSweepInterval = "STOREFRONT_SESSION_SWEEP_INTERVAL"
	envOTLPEndpoint         = "STOREFRONT_OTLP_ENDPOINT"
	envOTLPInsecure         = "STOREFRONT_OTLP_INSECURE"
	envTraceSampleRatio     = "STOREFRONT_TRACE_SAMPLE_RATIO"
	envDeliveryCharge       = "STOREFRONT_DELIVERY_CHARGE"
	envShutdownTimeout      = "STOREFRONT_SHUTDOWN_TIMEOUT"
)

type envLookup func(key string) (string, bool)

// readConfigFromEnv собирает конфигурацию из переменных окружения.
// Некорректные значения не роняют запуск: остаётся значение по умолчанию, а в ответ добавляется предупреждение.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("invalid %s=%q: %v, using default", key, value, err))
	}

	plain := map[string]*string{
		envGRPCAddr:             &cfg.GRPCAddr,
		envMetricsAddr:          &cfg.MetricsAddr,
		envPostgresDSN:          &cfg.PostgresDSN,
		envFirestoreProject:     &cfg.FirestoreProject,
		envFirestoreCredentials: &cfg.FirestoreCredentials,
		envAdminEmails:          &cfg.AdminEmails,
		envRedisAddr:            &cfg.RedisAddr,
		envKafkaTopic:           &cfg.KafkaTopic,
		envOTLPEndpoint:         &cfg.OTLPEndpoint,
	}
	for key, target := range plain {
		if v, ok := lookupTrimmed(lookup, key); ok {
			*target = v
		}
	}

	lowered := map[string]*string{
		envLogLevel:      &cfg.LogLevel,
		envStorageDriver: &cfg.StorageDriver,
		envAuthMode:      &cfg.AuthMode,
	}
	for key, target := range lowered {
		if v, ok := lookupTrimmed(lookup, key); ok {
			*target = strings.ToLower(v)
		}
	}

	if v, ok := lookupTrimmed(lookup, envKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(v)
	}

	bools := map[string]*bool{
		envPostgresAutoMigrate: &cfg.PostgresAutoMigrate,
		envOTLPInsecure:        &cfg.OTLPInsecure,
	}
	for key, target := range bools {
		v, ok := lookupTrimmed(lookup, key)
		if !ok {
			continue
		}
		parsed, err := parseBool(v)
		if err != nil {
			warn(key, v, err)
			continue
		}
		*target = parsed
	}

	if v, ok := lookupTrimmed(lookup, envTraceSampleRatio); ok {
		ratio, err := strconv.ParseFloat(v, 64)
		switch {
		case err != nil:
			warn(envTraceSampleRatio, v, err)
		case ratio < 0 || ratio > 1:
			warn(envTraceSampleRatio, v, fmt.Errorf("must be within [0, 1]"))
		default:
			cfg.TraceSampleRatio = ratio
		}
	}

	positive := func(v time.Duration) bool { return v > 0 }
	nonNegative := func(v time.Duration) bool { return v >= 0 }
	durations := []struct {
		key    string
		target *time.Duration
		valid  func(time.Duration) bool
		rule   string
	}{
		{envCatalogCacheTTL, &cfg.CatalogCacheTTL, positive, "must be > 0"},
		{envOutboxPollInterval, &cfg.OutboxPollInterval, positive, "must be > 0"},
		{envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegative, "must be >= 0"},
		{envSessionIdleTTL, &cfg.SessionIdleTTL, positive, "must be > 0"},
		{envSessionSweepInterval, &cfg.SessionSweepInterval, positive, "must be > 0"},
		{envShutdownTimeout, &cfg.ShutdownTimeout, positive, "must be > 0"},
	}
	for _, d := range durations {
		v, ok := lookupTrimmed(lookup, d.key)
		if !ok {
			continue
		}
		parsed, err := parseDuration(v, d.valid, d.rule)
		if err != nil {
			warn(d.key, v, err)
			continue
		}
		*d.target = parsed
	}

	ints := []struct {
		key    string
		target *int
	}{
		{envOutboxBatchSize, &cfg.OutboxBatchSize},
		{envOutboxMaxAttempts, &cfg.OutboxMaxAttempts},
	}
	for _, i := range ints {
		v, ok := lookupTrimmed(lookup, i.key)
		if !ok {
			continue
		}
		parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
		if err != nil {
			warn(i.key, v, err)
			continue
		}
		*i.target = parsed
	}

	if v, ok := lookupTrimmed(lookup, envDeliveryCharge); ok {
		charge, err := decimal.NewFromString(v)
		switch {
		case err != nil:
			warn(envDeliveryCharge, v, err)
		case charge.IsNegative():
			warn(envDeliveryCharge, v, fmt.Errorf("must be >= 0"))
		default:
			cfg.DeliveryCharge = charge
		}
	}

	return cfg, warnings
}

// lookupTrimmed возвращает значение без пробелов; пустая строка считается отсутствующей.
func lookupTrimmed(lookup envLookup, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean")
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, fmt.Errorf("%s", rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, fmt.Errorf("%s", rule)
	}
	return value, nil
}
