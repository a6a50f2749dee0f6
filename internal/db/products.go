package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kumamontessori/kuma/internal/money"
)

type ProductStore struct {
	pool *pgxpool.Pool
}

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

const productColumns = `p.id, p.name, p.slug, p.description, p.price_cents, p.sku, p.stock, p.image_url,
	p.category_id, p.featured, p.created_at, p.updated_at,
	c.id, c.name, c.slug`

const productFrom = ` FROM products p JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.Row) (*Product, error) {
	var (
		p          Product
		category   Category
		priceCents int64
		sku        *string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &priceCents, &sku, &p.Stock, &p.ImageURL,
		&p.CategoryID, &p.Featured, &p.CreatedAt, &p.UpdatedAt,
		&category.ID, &category.Name, &category.Slug,
	)
	if err != nil {
		return nil, mapError(err)
	}
	p.Price = money.FromCents(priceCents)
	p.SKU = textValue(sku)
	p.Category = &category
	return &p, nil
}

func (s *ProductStore) queryProducts(ctx context.Context, query string, args ...any) ([]*Product, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// List returns products newest first.
func (s *ProductStore) List(ctx context.Context) ([]*Product, error) {
	return s.queryProducts(ctx, `SELECT `+productColumns+productFrom+` ORDER BY p.created_at DESC`)
}

func (s *ProductStore) Featured(ctx context.Context, limit int) ([]*Product, error) {
	return s.queryProducts(ctx,
		`SELECT `+productColumns+productFrom+` WHERE p.featured ORDER BY p.created_at DESC LIMIT $1`, limit)
}

func (s *ProductStore) ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]*Product, error) {
	return s.queryProducts(ctx,
		`SELECT `+productColumns+productFrom+` WHERE p.category_id = $1 ORDER BY p.created_at DESC`, categoryID)
}

// GetByIDs loads the products referenced by a cart, keyed by ID.
func (s *ProductStore) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	products, err := s.queryProducts(ctx,
		`SELECT `+productColumns+productFrom+` WHERE p.id = ANY($1::uuid[])`, keys)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}
	return byID, nil
}

func (s *ProductStore) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	product, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+productFrom+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, err
	}
	return product, s.loadImages(ctx, product)
}

func (s *ProductStore) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	product, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+productFrom+` WHERE p.slug = $1`, slug))
	if err != nil {
		return nil, err
	}
	return product, s.loadImages(ctx, product)
}

func (s *ProductStore) loadImages(ctx context.Context, product *Product) error {
	rows, err := s.pool.Query(ctx,
		`SELECT id, product_id, url, alt FROM product_images WHERE product_id = $1 ORDER BY position`, product.ID)
	if err != nil {
		return fmt.Errorf("failed to load product images: %w", err)
	}
	images, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ProductImage, error) {
		var image ProductImage
		err := row.Scan(&image.ID, &image.ProductID, &image.URL, &image.Alt)
		return image, err
	})
	if err != nil {
		return fmt.Errorf("failed to scan product images: %w", err)
	}
	product.Images = images
	return nil
}

// SlugTaken reports whether another product already uses slug.
func (s *ProductStore) SlugTaken(ctx context.Context, slug string, exceptID uuid.UUID) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE slug = $1 AND id <> $2)`, slug, exceptID,
	).Scan(&taken)
	return taken, err
}

func (s *ProductStore) Create(ctx context.Context, product *Product) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO products (name, slug, description, price_cents, sku, stock, image_url, category_id, featured)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at`,
			product.Name, product.Slug, product.Description, money.ToCents(product.Price),
			nullableText(product.SKU), product.Stock, product.ImageURL, product.CategoryID, product.Featured,
		).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
		if err != nil {
			return mapError(err)
		}
		return replaceImages(ctx, tx, product)
	})
}

func (s *ProductStore) Update(ctx context.Context, product *Product) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE products
			SET name = $1, slug = $2, description = $3, price_cents = $4, sku = $5, stock = $6,
				image_url = $7, category_id = $8, featured = $9, updated_at = NOW()
			WHERE id = $10
			RETURNING updated_at`,
			product.Name, product.Slug, product.Description, money.ToCents(product.Price),
			nullableText(product.SKU), product.Stock, product.ImageURL, product.CategoryID, product.Featured,
			product.ID,
		).Scan(&product.UpdatedAt)
		if err != nil {
			return mapError(err)
		}
		return replaceImages(ctx, tx, product)
	})
}

// Upsert inserts or refreshes a product keyed by slug. Stock is only set on insert.
func (s *ProductStore) Upsert(ctx context.Context, product *Product) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (name, slug, description, price_cents, sku, stock, image_url, category_id, featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, price_cents = EXCLUDED.price_cents,
			sku = EXCLUDED.sku, image_url = EXCLUDED.image_url, category_id = EXCLUDED.category_id,
			featured = EXCLUDED.featured, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		product.Name, product.Slug, product.Description, money.ToCents(product.Price),
		nullableText(product.SKU), product.Stock, product.ImageURL, product.CategoryID, product.Featured,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	return mapError(err)
}

func replaceImages(ctx context.Context, tx pgx.Tx, product *Product) error {
	if product.Images == nil {
		return nil
	}
	if _, err := tx.Exec(ctx, `DELETE FROM product_images WHERE product_id = $1`, product.ID); err != nil {
		return fmt.Errorf("failed to clear product images: %w", err)
	}
	for i := range product.Images {
		image := &product.Images[i]
		image.ProductID = product.ID
		err := tx.QueryRow(ctx,
			`INSERT INTO product_images (product_id, url, alt, position) VALUES ($1, $2, $3, $4) RETURNING id`,
			product.ID, image.URL, image.Alt, i,
		).Scan(&image.ID)
		if err != nil {
			return fmt.Errorf("failed to insert product image: %w", err)
		}
	}
	return nil
}

func (s *ProductStore) SetImageURL(ctx context.Context, id uuid.UUID, url string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE products SET image_url = $1, updated_at = NOW() WHERE id = $2`, url, id)
	if err != nil {
		return fmt.Errorf("failed to set product image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ProductStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ProductStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&count)
	return count, err
}
