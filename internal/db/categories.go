package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CategoryStore struct {
	pool *pgxpool.Pool
}

func NewCategoryStore(pool *pgxpool.Pool) *CategoryStore {
	return &CategoryStore{pool: pool}
}

const categoryColumns = `c.id, c.name, c.slug, c.description, c.image_url, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM products p WHERE p.category_id = c.id)`

func scanCategory(row pgx.Row) (*Category, error) {
	var c Category
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ImageURL, &c.CreatedAt, &c.UpdatedAt, &c.ProductCount); err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

// List returns every category alphabetically with its product count.
func (s *CategoryStore) List(ctx context.Context) ([]*Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories c ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (s *CategoryStore) GetByID(ctx context.Context, id uuid.UUID) (*Category, error) {
	return scanCategory(s.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE c.id = $1`, id))
}

func (s *CategoryStore) GetBySlug(ctx context.Context, slug string) (*Category, error) {
	return scanCategory(s.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE c.slug = $1`, slug))
}

// SlugTaken reports whether another category already uses slug.
func (s *CategoryStore) SlugTaken(ctx context.Context, slug string, exceptID uuid.UUID) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE slug = $1 AND id <> $2)`, slug, exceptID,
	).Scan(&taken)
	return taken, err
}

func (s *CategoryStore) Create(ctx context.Context, category *Category) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO categories (name, slug, description, image_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		category.Name, category.Slug, category.Description, category.ImageURL,
	).Scan(&category.ID, &category.CreatedAt, &category.UpdatedAt)
	return mapError(err)
}

func (s *CategoryStore) Update(ctx context.Context, category *Category) error {
	err := s.pool.QueryRow(ctx, `
		UPDATE categories
		SET name = $1, slug = $2, description = $3, image_url = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`,
		category.Name, category.Slug, category.Description, category.ImageURL, category.ID,
	).Scan(&category.UpdatedAt)
	return mapError(err)
}

// Upsert inserts or refreshes a category keyed by slug.
func (s *CategoryStore) Upsert(ctx context.Context, category *Category) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO categories (name, slug, description, image_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description,
			image_url = EXCLUDED.image_url, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		category.Name, category.Slug, category.Description, category.ImageURL,
	).Scan(&category.ID, &category.CreatedAt, &category.UpdatedAt)
	return mapError(err)
}

func (s *CategoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CategoryStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count)
	return count, err
}
