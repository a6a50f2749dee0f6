package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kumamontessori/kuma/internal/catalog"
	"github.com/kumamontessori/kuma/internal/db"
	"github.com/kumamontessori/kuma/internal/logging"
	"github.com/kumamontessori/kuma/internal/models"
	"github.com/kumamontessori/kuma/internal/money"
	"github.com/kumamontessori/kuma/internal/storage"
)

const featuredProductsLimit = 8

var ErrCatalogUnavailable = errors.New("catalog service unavailable")

type categoryStore interface {
	List(ctx context.Context) ([]*models.Category, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	GetBySlug(ctx context.Context, slug string) (*models.Category, error)
	SlugTaken(ctx context.Context, slug string, exceptID uuid.UUID) (bool, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Upsert(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int, error)
}

type productStore interface {
	List(ctx context.Context) ([]*models.Product, error)
	Featured(ctx context.Context, limit int) ([]*models.Product, error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]*models.Product, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	SlugTaken(ctx context.Context, slug string, exceptID uuid.UUID) (bool, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Upsert(ctx context.Context, product *models.Product) error
	SetImageURL(ctx context.Context, id uuid.UUID, url string) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int, error)
}

type seedParser interface {
	DefaultSeed() (*catalog.Seed, error)
}

type seedValidator interface {
	Validate(seed *catalog.Seed) error
}

type CatalogService struct {
	categories categoryStore
	products   productStore
	images     storage.ImageStore
	parser     seedParser
	validator  seedValidator
	now        func() time.Time
	logger     *slog.Logger
}

func NewCatalogService(categories categoryStore, products productStore, images storage.ImageStore, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		categories: categories,
		products:   products,
		images:     images,
		parser:     catalog.NewParser(),
		validator:  catalog.NewValidator(),
		now:        time.Now,
		logger:     logger,
	}
}

func (s *CatalogService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *CatalogService) ready() error {
	if s == nil || s.categories == nil || s.products == nil {
		return ErrCatalogUnavailable
	}
	return nil
}

func startSpan(ctx context.Context, name, op, description string) *sentry.Span {
	return sentry.StartSpan(
		ctx,
		name,
		sentry.WithOpName(op),
		sentry.WithDescription(description),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
}

type CategoryInput struct {
	Name        string
	Slug        string
	Description string
	ImageURL    string
}

type ProductInput struct {
	Name        string
	Slug        string
	Description string
	Price       decimal.Decimal
	SKU         string
	Stock       int
	ImageURL    string
	CategoryID  uuid.UUID
	Featured    bool
	Images      []models.ProductImage
}

// ListCategories returns the stored categories, or the seed categories when the
// database has none so the storefront never renders an empty menu.
func (s *CatalogService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if len(categories) > 0 {
		return categories, nil
	}
	return s.FallbackCategories(), nil
}

// FallbackCategories returns the categories bundled in the embedded seed.
func (s *CatalogService) FallbackCategories() []*models.Category {
	seed, err := s.parser.DefaultSeed()
	if err != nil {
		s.logger.Warn("failed to load fallback categories", "error", err)
		return nil
	}
	categories := make([]*models.Category, 0, len(seed.Categories))
	for _, c := range seed.Categories {
		categories = append(categories, &models.Category{
			Name:        c.Name,
			Slug:        c.Slug,
			Description: c.Description,
			ImageURL:    c.ImageURL,
		})
	}
	return categories
}

func (s *CatalogService) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	category, err := s.categories.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrCategoryNotFound
	}
	return category, err
}

// GetCategoryBySlug returns the category and its products, newest first.
func (s *CatalogService) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, []*models.Product, error) {
	if err := s.ready(); err != nil {
		return nil, nil, err
	}
	category, err := s.categories.GetBySlug(ctx, slug)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get category: %w", err)
	}
	products, err := s.products.ListByCategory(ctx, category.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list category products: %w", err)
	}
	return category, products, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, input CategoryInput) (*models.Category, error) {
	span := startSpan(ctx, "service.catalog.create_category", "service.catalog", "CreateCategory")
	defer span.Finish()
	ctx = span.Context()

	if err := s.ready(); err != nil {
		return nil, err
	}
	category := &models.Category{}
	if err := s.applyCategoryInput(ctx, category, input); err != nil {
		return nil, err
	}
	if err := s.categories.Create(ctx, category); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, userError("Ya existe una categoría con ese slug")
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	s.loggerFromContext(ctx).Info("category created", "category_id", category.ID, "slug", category.Slug)
	return category, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryInput) (*models.Category, error) {
	span := startSpan(ctx, "service.catalog.update_category", "service.catalog", "UpdateCategory")
	defer span.Finish()
	ctx = span.Context()

	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyCategoryInput(ctx, category, input); err != nil {
		return nil, err
	}
	if err := s.categories.Update(ctx, category); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, userError("Ya existe una categoría con ese slug")
		}
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	return category, nil
}

func (s *CatalogService) applyCategoryInput(ctx context.Context, category *models.Category, input CategoryInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return userError("El nombre es requerido")
	}
	slug := catalog.Slugify(input.Slug)
	if slug == "" {
		slug = catalog.Slugify(name)
	}
	if slug == "" {
		return userError("El nombre debe contener letras o números")
	}
	taken, err := s.categories.SlugTaken(ctx, slug, category.ID)
	if err != nil {
		return fmt.Errorf("failed to check category slug: %w", err)
	}
	if taken {
		return userError("Ya existe una categoría con ese slug")
	}

	category.Name = name
	category.Slug = slug
	category.Description = strings.TrimSpace(input.Description)
	category.ImageURL = strings.TrimSpace(input.ImageURL)
	return nil
}

// DeleteCategory refuses to delete a category that still owns products.
func (s *CatalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	span := startSpan(ctx, "service.catalog.delete_category", "service.catalog", "DeleteCategory")
	defer span.Finish()
	ctx = span.Context()

	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if category.ProductCount > 0 {
		return categoryInUse(category.ProductCount)
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, db.ErrInUse):
			return categoryInUse(1)
		case errors.Is(err, db.ErrNotFound):
			return ErrCategoryNotFound
		}
		return fmt.Errorf("failed to delete category: %w", err)
	}
	s.loggerFromContext(ctx).Info("category deleted", "category_id", id)
	return nil
}

func categoryInUse(count int) error {
	return userError(fmt.Sprintf("No se puede eliminar la categoría porque tiene %d productos asociados.", count))
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]*models.Product, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *CatalogService) FeaturedProducts(ctx context.Context) ([]*models.Product, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	products, err := s.products.Featured(ctx, featuredProductsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list featured products: %w", err)
	}
	return products, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	product, err := s.products.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	return product, err
}

func (s *CatalogService) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	product, err := s.products.GetBySlug(ctx, slug)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	return product, err
}

func (s *CatalogService) CreateProduct(ctx context.Context, input ProductInput) (*models.Product, error) {
	span := startSpan(ctx, "service.catalog.create_product", "service.catalog", "CreateProduct")
	defer span.Finish()
	ctx = span.Context()

	if err := s.ready(); err != nil {
		return nil, err
	}
	product := &models.Product{}
	if err := s.applyProductInput(ctx, product, input); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, product); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, userError("Ya existe un producto con ese slug")
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	s.loggerFromContext(ctx).Info("product created", "product_id", product.ID, "slug", product.Slug)
	return product, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*models.Product, error) {
	span := startSpan(ctx, "service.catalog.update_product", "service.catalog", "UpdateProduct")
	defer span.Finish()
	ctx = span.Context()

	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyProductInput(ctx, product, input); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, product); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, userError("Ya existe un producto con ese slug")
		}
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

func (s *CatalogService) applyProductInput(ctx context.Context, product *models.Product, input ProductInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return userError("El nombre es requerido")
	}
	if input.Price.IsNegative() {
		return userError("El precio no puede ser negativo")
	}
	if input.Stock < 0 {
		return userError("El stock no puede ser negativo")
	}
	if input.CategoryID == uuid.Nil {
		return userError("La categoría seleccionada no existe")
	}
	category, err := s.categories.GetByID(ctx, input.CategoryID)
	if errors.Is(err, db.ErrNotFound) {
		return userError("La categoría seleccionada no existe")
	}
	if err != nil {
		return fmt.Errorf("failed to get category: %w", err)
	}

	slug := catalog.Slugify(input.Slug)
	if slug == "" {
		slug = catalog.Slugify(name)
	}
	if slug == "" {
		return userError("El nombre debe contener letras o números")
	}
	taken, err := s.products.SlugTaken(ctx, slug, product.ID)
	if err != nil {
		return fmt.Errorf("failed to check product slug: %w", err)
	}
	if taken {
		return userError("Ya existe un producto con ese slug")
	}

	product.Name = name
	product.Slug = slug
	product.Description = catalog.SanitizeDescription(input.Description)
	product.Price = input.Price.Round(2)
	product.SKU = strings.TrimSpace(input.SKU)
	product.Stock = input.Stock
	product.ImageURL = strings.TrimSpace(input.ImageURL)
	product.CategoryID = category.ID
	product.Category = category
	product.Featured = input.Featured
	product.Images = input.Images
	return nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	span := startSpan(ctx, "service.catalog.delete_product", "service.catalog", "DeleteProduct")
	defer span.Finish()
	ctx = span.Context()

	if err := s.ready(); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			return ErrProductNotFound
		case errors.Is(err, db.ErrInUse):
			return userError("No se puede eliminar el producto porque tiene órdenes asociadas.")
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	s.loggerFromContext(ctx).Info("product deleted", "product_id", id)
	return nil
}

// UploadProductImage validates the upload, stores it and points the product at it.
func (s *CatalogService) UploadProductImage(ctx context.Context, productID uuid.UUID, r io.Reader, filename string) (string, error) {
	span := startSpan(ctx, "service.catalog.upload_product_image", "service.catalog", "UploadProductImage")
	defer span.Finish()
	ctx = span.Context()

	if err := s.ready(); err != nil {
		return "", err
	}
	if s.images == nil {
		return "", fmt.Errorf("%w: image storage is not configured", ErrCatalogUnavailable)
	}

	image, err := storage.ReadImage(r, filename)
	if err != nil {
		if errors.Is(err, storage.ErrMissingImage) || errors.Is(err, storage.ErrNotImage) || errors.Is(err, storage.ErrImageTooLarge) {
			return "", &UserError{Message: err.Error(), Err: err}
		}
		return "", err
	}
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return "", err
	}

	url, err := s.images.Save(ctx, image.Key(s.now()), image.ContentType, image.Data)
	if err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	if err := s.products.SetImageURL(ctx, productID, url); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", ErrProductNotFound
		}
		return "", err
	}
	s.loggerFromContext(ctx).Info("product image uploaded", "product_id", productID, "url", url, "bytes", len(image.Data))
	return url, nil
}

type SeedResult struct {
	Categories int
	Products   int
}

// SeedDefaultCatalog loads the embedded catalog. Rows are matched by slug so
// running it again refreshes instead of duplicating.
func (s *CatalogService) SeedDefaultCatalog(ctx context.Context) (*SeedResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	seed, err := s.parser.DefaultSeed()
	if err != nil {
		return nil, err
	}
	return s.Seed(ctx, seed)
}

func (s *CatalogService) Seed(ctx context.Context, seed *catalog.Seed) (*SeedResult, error) {
	span := startSpan(ctx, "service.catalog.seed", "service.catalog", "Seed")
	defer span.Finish()
	ctx = span.Context()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(seed); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}

	result := &SeedResult{}
	categoryIDs := make(map[string]uuid.UUID, len(seed.Categories))
	for _, c := range seed.Categories {
		category := &models.Category{
			Name:        c.Name,
			Slug:        c.Slug,
			Description: c.Description,
			ImageURL:    c.ImageURL,
		}
		if err := s.categories.Upsert(ctx, category); err != nil {
			return result, fmt.Errorf("failed to seed category %s: %w", c.Slug, err)
		}
		categoryIDs[c.Slug] = category.ID
		result.Categories++
	}

	for _, p := range seed.Products {
		price, err := money.Parse(p.Price)
		if err != nil {
			return result, fmt.Errorf("invalid price for product %s: %w", p.Slug, err)
		}
		product := &models.Product{
			Name:        p.Name,
			Slug:        p.Slug,
			Description: catalog.SanitizeDescription(p.Description),
			Price:       price,
			SKU:         p.SKU,
			Stock:       p.Stock,
			ImageURL:    p.ImageURL,
			CategoryID:  categoryIDs[p.Category],
			Featured:    p.Featured,
		}
		if err := s.products.Upsert(ctx, product); err != nil {
			return result, fmt.Errorf("failed to seed product %s: %w", p.Slug, err)
		}
		result.Products++
	}

	s.loggerFromContext(ctx).Info("catalog seeded", "categories", result.Categories, "products", result.Products)
	return result, nil
}
