package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type lineStore struct {
	db *sql.DB
}

// NewLineStore создаёт PostgreSQL-реализацию LineStore (таблица cart_lines).
func NewLineStore(store *Store) domain.LineStore {
	return &lineStore{db: store.DB()}
}

func (s *lineStore) Insert(ctx context.Context, line domain.CartLine) (string, error) {
	if strings.TrimSpace(line.ProductRef) == "" {
		return "", domain.ErrProductRefRequired
	}

	id := uuid.NewString()
	if line.CreatedAt.IsZero() {
		line.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_lines (
			id, owner, product_id, quantity, name, price, image, category, subcategory, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		id, line.Owner, line.ProductRef, line.Quantity, line.Name, line.Price,
		line.Image, line.Category, line.Subcategory, line.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", domain.ErrLineAlreadyExists
		}
		return "", fmt.Errorf("insert cart line: %w", err)
	}
	return id, nil
}

func (s *lineStore) Query(ctx context.Context, owner string) ([]domain.CartLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, product_id, quantity, name, price, image, category, subcategory, created_at
		FROM cart_lines
		WHERE owner = $1
		ORDER BY created_at ASC, id ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(
			&line.ID, &line.Owner, &line.ProductRef, &line.Quantity, &line.Name,
			&line.Price, &line.Image, &line.Category, &line.Subcategory, &line.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		line.CreatedAt = line.CreatedAt.UTC()
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}
	return lines, nil
}

func (s *lineStore) Update(ctx context.Context, id string, patch domain.LinePatch) error {
	if patch.Quantity == nil {
		return nil
	}

	res, err := s.db.ExecContext(ctx, `UPDATE cart_lines SET quantity = $2 WHERE id = $1`, id, *patch.Quantity)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for cart line: %w", err)
	}
	if affected == 0 {
		return domain.ErrLineNotFound
	}
	return nil
}

func (s *lineStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

var _ domain.LineStore = (*lineStore)(nil)
