package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description"`
	ImageURL     string    `json:"image_url"`
	ProductCount int       `json:"product_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Product struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	SKU         string          `json:"sku"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url"`
	CategoryID  uuid.UUID       `json:"category_id"`
	Category    *Category       `json:"category,omitempty"`
	Featured    bool            `json:"featured"`
	Images      []ProductImage  `json:"images"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Product) InStock() bool {
	return p != nil && p.Stock > 0
}

// PrimaryImage prefers the product image and falls back to the first gallery image.
func (p *Product) PrimaryImage() string {
	if p == nil {
		return ""
	}
	if p.ImageURL != "" {
		return p.ImageURL
	}
	if len(p.Images) > 0 {
		return p.Images[0].URL
	}
	return ""
}

type ProductImage struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	URL       string    `json:"url"`
	Alt       string    `json:"alt"`
}
