package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CartStore: LineStore поверх коллекции Cart; одна позиция — один документ.
type CartStore struct {
	client *Client
}

// NewCartStore создаёт LineStore на Firestore.
func NewCartStore(client *Client) *CartStore {
	return &CartStore{client: client}
}

// Insert создаёт документ позиции. Проверка уникальности (email, productId)
// и запись выполняются в одной транзакции.
func (s *CartStore) Insert(ctx context.Context, line domain.CartLine) (string, error) {
	if s.client == nil || s.client.fs == nil {
		return "", errClientNotInitialized
	}
	if strings.TrimSpace(line.ProductRef) == "" {
		return "", domain.ErrProductRefRequired
	}
	if line.CreatedAt.IsZero() {
		line.CreatedAt = time.Now().UTC()
	}

	col := s.client.col(CollectionCart)
	ref := col.NewDoc()
	err := s.client.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(col.
			Where("email", "==", line.Owner).
			Where("productId", "==", line.ProductRef).
			Limit(1)).GetAll()
		if err != nil {
			return fmt.Errorf("query existing cart line: %w", err)
		}
		if len(existing) > 0 {
			return domain.ErrLineAlreadyExists
		}
		return tx.Create(ref, lineDocFromDomain(line))
	})
	if err != nil {
		if errors.Is(err, domain.ErrLineAlreadyExists) {
			return "", domain.ErrLineAlreadyExists
		}
		return "", fmt.Errorf("insert cart line: %w", err)
	}
	return ref.ID, nil
}

// Query возвращает позиции пользователя в порядке добавления.
// Сортировка на клиенте, чтобы не требовать составного индекса.
func (s *CartStore) Query(ctx context.Context, owner string) ([]domain.CartLine, error) {
	if s.client == nil || s.client.fs == nil {
		return nil, errClientNotInitialized
	}

	iter := s.client.col(CollectionCart).Where("email", "==", owner).Documents(ctx)
	defer iter.Stop()

	lines := make([]domain.CartLine, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query cart lines: %w", err)
		}

		var doc lineDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode cart line %s: %w", snap.Ref.ID, err)
		}
		lines = append(lines, doc.toDomain(snap.Ref.ID))
	}

	sort.Slice(lines, func(i, j int) bool {
		if !lines[i].CreatedAt.Equal(lines[j].CreatedAt) {
			return lines[i].CreatedAt.Before(lines[j].CreatedAt)
		}
		return lines[i].ID < lines[j].ID
	})
	return lines, nil
}

// Update меняет только поле quantity.
func (s *CartStore) Update(ctx context.Context, id string, patch domain.LinePatch) error {
	if s.client == nil || s.client.fs == nil {
		return errClientNotInitialized
	}
	if patch.Quantity == nil {
		return nil
	}

	_, err := s.client.col(CollectionCart).Doc(id).Update(ctx, []firestore.Update{
		{Path: "quantity", Value: *patch.Quantity},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrLineNotFound
		}
		return fmt.Errorf("update cart line: %w", err)
	}
	return nil
}

// Delete удаляет документ; Firestore не считает удаление отсутствующего документа ошибкой.
func (s *CartStore) Delete(ctx context.Context, id string) error {
	if s.client == nil || s.client.fs == nil {
		return errClientNotInitialized
	}
	if _, err := s.client.col(CollectionCart).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

var _ domain.LineStore = (*CartStore)(nil)
