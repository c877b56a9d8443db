// Package firestore хранит каталог, корзины и заказы в Cloud Firestore
// в коллекциях Products, Cart и Checkout.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Имена коллекций.
const (
	CollectionProducts = "Products"
	CollectionCart     = "Cart"
	CollectionCheckout = "Checkout"
)

var errClientNotInitialized = errors.New("firestore client is not initialized")

// Client оборачивает *firestore.Client и проект.
type Client struct {
	fs        *firestore.Client
	projectID string
	logger    *log.Entry
}

// Open создаёт клиента. Пустой credentialsFile — Application Default Credentials
// (или эмулятор, если задан FIRESTORE_EMULATOR_HOST).
func Open(ctx context.Context, projectID, credentialsFile string) (*Client, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("firestore project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(credentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	fs, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}

	logger := log.WithFields(log.Fields{
		"component": "firestore-store",
		"project":   projectID,
	})
	logger.Info("firestore client initialized")

	return &Client{fs: fs, projectID: projectID, logger: logger}, nil
}

// Ping читает один документ каталога, чтобы проверить доступность (readiness).
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.fs == nil {
		return errClientNotInitialized
	}
	iter := c.fs.Collection(CollectionProducts).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore ping failed: %w", err)
	}
	return nil
}

// Close закрывает клиента.
func (c *Client) Close() error {
	if c == nil || c.fs == nil {
		return nil
	}
	return c.fs.Close()
}

func (c *Client) col(name string) *firestore.CollectionRef {
	return c.fs.Collection(name)
}
