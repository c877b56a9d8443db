package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	producer, err := initKafkaProducer(nil, log.WithField("test", "kafka"))
	if err != nil {
		t.Errorf("expected no error for empty brokers, got %v", err)
	}
	if producer != nil {
		t.Error("expected nil producer for empty brokers")
	}
}

func TestInitKafkaProducer_InvalidBrokers(t *testing.T) {
	producer, err := initKafkaProducer([]string{"invalid-broker:9999"}, log.WithField("test", "kafka"))
	if err == nil {
		t.Error("expected error for invalid brokers")
	}
	if producer != nil {
		t.Error("expected nil producer on error")
	}
}

func TestCloseKafka_NilProducer(_ *testing.T) {
	closeKafka(nil, log.WithField("test", "kafka"))
}

func TestNewOutboxWorker_DisabledWithoutProducer(t *testing.T) {
	deps := &runtimeDependencies{outbox: memory.NewOutboxRepository()}
	if worker := newOutboxWorker(DefaultConfig(), deps, nil, log.WithField("test", "kafka")); worker != nil {
		t.Fatal("worker must be nil without producer")
	}
}

// Заказ, оформленный через checkout, доходит до Kafka в конверте с заголовками.
func TestOutboxWorker_PublishesPlacedOrder(t *testing.T) {
	logger := log.WithField("test", "outbox-flow")
	outboxRepo := memory.NewOutboxRepository()
	deps := &runtimeDependencies{outbox: outboxRepo, orders: memory.NewOrderRepository()}

	service := checkout.NewService(deps.orders, deps.outbox, checkout.WithLogger(logger))
	lines := []domain.CartLine{{
		ID: "line-1", ProductRef: "p-1", Quantity: 2, Owner: "buyer@example.com",
		ProductSnapshot: domain.ProductSnapshot{Name: "Runner", Price: decimal.RequireFromString("12.50")},
	}}
	order, err := service.PlaceOrder(context.Background(),
		domain.Identity{UID: "uid-1", Email: "buyer@example.com"},
		lines,
		domain.ComputeTotals(lines),
		domain.ShippingDetails{
			FirstName: "Ada", LastName: "Lovelace", Email: "buyer@example.com",
			Phone: "+1", Address: "1 Main St", City: "London",
		},
	)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var envelope kafka.Envelope
		if err := json.Unmarshal(val, &envelope); err != nil {
			return err
		}
		if envelope.EventType != domain.EventOrderPlaced || envelope.AggregateID != order.ID {
			return errors.New("unexpected envelope")
		}
		return nil
	})

	cfg := DefaultConfig()
	cfg.OutboxRetryDelay = 0
	worker := newOutboxWorker(cfg, deps, kafka.NewProducerWithSync(mockProducer), logger)
	if worker == nil {
		t.Fatal("worker must be created with producer")
	}

	result := worker.ProcessOnce(context.Background())
	if result.Sent != 1 {
		t.Fatalf("expected 1 sent event, got %+v", result)
	}
	if pending := outboxRepo.AllPending(); len(pending) != 0 {
		t.Fatalf("expected empty outbox, got %d", len(pending))
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatalf("close mock producer: %v", err)
	}
}
