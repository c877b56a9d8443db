package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CatalogRepository: товары в коллекции Products.
type CatalogRepository struct {
	client *Client
}

// NewCatalogRepository создаёт CatalogRepository на Firestore.
func NewCatalogRepository(client *Client) *CatalogRepository {
	return &CatalogRepository{client: client}
}

func (r *CatalogRepository) List(ctx context.Context) ([]domain.Product, error) {
	if r.client == nil || r.client.fs == nil {
		return nil, errClientNotInitialized
	}

	iter := r.client.col(CollectionProducts).OrderBy("timestamp", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	products := make([]domain.Product, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}

		var doc productDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
		}
		products = append(products, doc.toDomain(snap.Ref.ID))
	}
	return products, nil
}

func (r *CatalogRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	if r.client == nil || r.client.fs == nil {
		return domain.Product{}, errClientNotInitialized
	}

	snap, err := r.client.col(CollectionProducts).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}

	var doc productDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.Product{}, fmt.Errorf("decode product %s: %w", id, err)
	}
	return doc.toDomain(id), nil
}

func (r *CatalogRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r.client == nil || r.client.fs == nil {
		return domain.Product{}, errClientNotInitialized
	}

	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	ref := r.client.col(CollectionProducts).NewDoc()
	if _, err := ref.Create(ctx, productDocFromDomain(product)); err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	product.ID = ref.ID
	return product, nil
}

func (r *CatalogRepository) Update(ctx context.Context, product domain.Product) error {
	if r.client == nil || r.client.fs == nil {
		return errClientNotInitialized
	}

	_, err := r.client.col(CollectionProducts).Doc(product.ID).Update(ctx, []firestore.Update{
		{Path: "name", Value: product.Name},
		{Path: "price", Value: product.Price.InexactFloat64()},
		{Path: "image", Value: product.Image},
		{Path: "category", Value: product.Category},
		{Path: "subcategory", Value: product.Subcategory},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// Delete удаляет товар; отсутствие документа проверяется предусловием.
func (r *CatalogRepository) Delete(ctx context.Context, id string) error {
	if r.client == nil || r.client.fs == nil {
		return errClientNotInitialized
	}

	_, err := r.client.col(CollectionProducts).Doc(id).Delete(ctx, firestore.Exists)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

var _ domain.CatalogRepository = (*CatalogRepository)(nil)
