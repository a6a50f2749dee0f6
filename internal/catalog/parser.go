package catalog

// Package catalog provides slugs, description sanitizing, seed data and cart pricing.

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

type Seed struct {
	Categories []SeedCategory `yaml:"categories"`
	Products   []SeedProduct  `yaml:"products"`
}

type SeedCategory struct {
	Name        string `yaml:"name"`
	Slug        string `yaml:"slug"`
	Description string `yaml:"description"`
	ImageURL    string `yaml:"image_url"`
}

type SeedProduct struct {
	Name        string `yaml:"name"`
	Slug        string `yaml:"slug"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	SKU         string `yaml:"sku"`
	Stock       int    `yaml:"stock"`
	ImageURL    string `yaml:"image_url"`
	Category    string `yaml:"category"`
	Featured    bool   `yaml:"featured"`
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(content, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i := range seed.Categories {
		if seed.Categories[i].Slug == "" {
			seed.Categories[i].Slug = Slugify(seed.Categories[i].Name)
		}
	}
	for i := range seed.Products {
		if seed.Products[i].Slug == "" {
			seed.Products[i].Slug = Slugify(seed.Products[i].Name)
		}
	}

	return &seed, nil
}

// DefaultSeed returns the catalog shipped with the binary.
func (p *Parser) DefaultSeed() (*Seed, error) {
	return p.Parse(defaultSeed)
}
