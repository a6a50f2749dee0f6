package catalog

import (
	"fmt"
	"strings"

	"github.com/kumamontessori/kuma/internal/money"
)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks that a seed can be loaded without violating catalog rules.
func (v *Validator) Validate(seed *Seed) error {
	if seed == nil {
		return fmt.Errorf("seed is required")
	}
	if len(seed.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}

	categorySlugs := make(map[string]bool)
	for i, category := range seed.Categories {
		if strings.TrimSpace(category.Name) == "" {
			return fmt.Errorf("category %d validation failed: name is required", i)
		}
		if categorySlugs[category.Slug] {
			return fmt.Errorf("duplicate category slug: %s", category.Slug)
		}
		categorySlugs[category.Slug] = true
	}

	productSlugs := make(map[string]bool)
	skus := make(map[string]bool)
	for i, product := range seed.Products {
		if err := v.validateProduct(&product, categorySlugs); err != nil {
			return fmt.Errorf("product %d validation failed: %w", i, err)
		}
		if productSlugs[product.Slug] {
			return fmt.Errorf("duplicate product slug: %s", product.Slug)
		}
		productSlugs[product.Slug] = true
		if product.SKU != "" {
			if skus[product.SKU] {
				return fmt.Errorf("duplicate SKU: %s", product.SKU)
			}
			skus[product.SKU] = true
		}
	}

	return nil
}

func (v *Validator) validateProduct(product *SeedProduct, categorySlugs map[string]bool) error {
	if strings.TrimSpace(product.Name) == "" {
		return fmt.Errorf("product name is required")
	}

	price, err := money.Parse(product.Price)
	if err != nil {
		return err
	}
	if price.IsNegative() {
		return fmt.Errorf("product price must be zero or positive")
	}

	if product.Stock < 0 {
		return fmt.Errorf("product stock must be zero or positive")
	}

	if !categorySlugs[product.Category] {
		return fmt.Errorf("unknown category %q", product.Category)
	}

	return nil
}
